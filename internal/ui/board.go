package ui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/desertthunder/kbx/internal/drag"
	"github.com/desertthunder/kbx/internal/models"
	"github.com/desertthunder/kbx/internal/notify"
	"github.com/desertthunder/kbx/internal/shared"
)

const (
	minColumnWidth = 22
	maxColumnWidth = 36
)

func (m *Model) handleBoardKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if d, ok := m.session.Drag.Active(); ok {
		return m.handleDragKeys(msg, d)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.help):
		m.showHelp = !m.showHelp
	case key.Matches(msg, m.keys.back):
		if m.state.Query != "" {
			m.session.Search("")
			return m, m.sync()
		}
		m.view = BoardPickerView
	case key.Matches(msg, m.keys.left):
		m.col--
		m.row = 0
		m.clamp()
	case key.Matches(msg, m.keys.right):
		m.col++
		m.row = 0
		m.clamp()
	case key.Matches(msg, m.keys.up):
		m.row--
		m.clamp()
	case key.Matches(msg, m.keys.down):
		m.row++
		m.clamp()
	case key.Matches(msg, m.keys.enter):
		if c, ok := m.currentCard(); ok && !c.IsPending() {
			m.detail = c.ID()
			m.view = CardDetailView
		}
	case key.Matches(msg, m.keys.grab):
		return m, m.grabCard()
	case key.Matches(msg, m.keys.grabCol):
		return m, m.grabList()
	case key.Matches(msg, m.keys.newCard):
		if l, ok := m.currentList(); ok {
			m.targetList = l.Identity
			return m, m.openPrompt(promptNewCard, "")
		}
	case key.Matches(msg, m.keys.newList):
		return m, m.openPrompt(promptNewList, "")
	case key.Matches(msg, m.keys.edit):
		if c, ok := m.savedCard("rename"); ok {
			m.target = c.ID()
			return m, m.openPrompt(promptRenameCard, c.Row.Title)
		}
	case key.Matches(msg, m.keys.editCol):
		if l, ok := m.savedList("rename"); ok {
			m.target = l.ID()
			return m, m.openPrompt(promptRenameList, l.Row.Title)
		}
	case key.Matches(msg, m.keys.del):
		if c, ok := m.savedCard("delete"); ok {
			m.target, m.targetName = c.ID(), c.Row.Title
			m.confirm = confirmDeleteCard
		}
	case key.Matches(msg, m.keys.delCol):
		if l, ok := m.savedList("delete"); ok {
			m.target, m.targetName = l.ID(), l.Row.Title
			m.confirm = confirmDeleteList
		}
	case key.Matches(msg, m.keys.search):
		return m, m.openPrompt(promptSearch, m.state.Query)
	case key.Matches(msg, m.keys.refresh):
		m.loading = true
		return m, m.reload()
	}
	return m, nil
}

// savedCard returns the focused card when the server has confirmed it.
func (m *Model) savedCard(action string) (models.CardEntry, bool) {
	c, ok := m.currentCard()
	if !ok {
		return c, false
	}
	if c.IsPending() {
		m.setNotice(notify.Infof("Cannot %s %q until it is saved", action, c.Row.Title))
		return c, false
	}
	return c, true
}

// savedList returns the focused list when the server has confirmed it.
func (m *Model) savedList(action string) (models.ListEntry, bool) {
	l, ok := m.currentList()
	if !ok {
		return l, false
	}
	if l.IsPending() {
		m.setNotice(notify.Infof("Cannot %s %q until it is saved", action, l.Row.Title))
		return l, false
	}
	return l, true
}

func (m *Model) grabCard() tea.Cmd {
	if m.state.Query != "" {
		m.setNotice(notify.Infof("Clear the search to reorder cards"))
		return nil
	}
	c, ok := m.savedCard("move")
	if !ok {
		return nil
	}
	if err := m.session.Drag.StartCard(c.ID()); err != nil {
		m.setNotice(notify.Failed(err, "Cannot move card"))
	}
	return m.sync()
}

func (m *Model) grabList() tea.Cmd {
	l, ok := m.savedList("move")
	if !ok {
		return nil
	}
	if err := m.session.Drag.StartList(l.ID()); err != nil {
		m.setNotice(notify.Failed(err, "Cannot move list"))
	}
	return m.sync()
}

// handleDragKeys steers a drag with the keyboard. Sideways moves hover the
// neighbouring list and vertical moves hover the neighbouring card.
func (m *Model) handleDragKeys(msg tea.KeyMsg, d drag.Drag) (tea.Model, tea.Cmd) {
	ctl := m.session.Drag

	var err error
	switch {
	case msg.Type == tea.KeyCtrlC:
		ctl.Cancel()
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		ctl.Cancel()
	case key.Matches(msg, m.keys.enter), key.Matches(msg, m.keys.grab), key.Matches(msg, m.keys.grabCol):
		err = ctl.Drop(dropTarget(d))
	case key.Matches(msg, m.keys.left):
		err = m.hoverSideways(d, -1)
	case key.Matches(msg, m.keys.right):
		err = m.hoverSideways(d, 1)
	case key.Matches(msg, m.keys.up):
		err = m.hoverVertical(d, -1)
	case key.Matches(msg, m.keys.down):
		err = m.hoverVertical(d, 1)
	default:
		return m, nil
	}

	if err != nil {
		m.setNotice(notify.Failed(err, "Cannot move %s", d.Kind))
	}
	return m, m.sync()
}

// dropTarget drops the dragged item where it currently sits.
func dropTarget(d drag.Drag) drag.Target {
	if d.Kind == drag.KindList {
		return drag.Target{ListID: d.ID}
	}
	return drag.Target{CardID: d.ID}
}

func (m *Model) hoverSideways(d drag.Drag, delta int) error {
	var from int
	switch d.Kind {
	case drag.KindCard:
		from = m.state.ListIndex(d.Over)
	case drag.KindList:
		from = m.state.ListIndex(d.ID)
	}
	to := from + delta
	if from < 0 || to < 0 || to >= len(m.state.Lists) {
		return nil
	}
	return m.session.Drag.HoverList(m.state.Lists[to].ID())
}

func (m *Model) hoverVertical(d drag.Drag, delta int) error {
	if d.Kind != drag.KindCard {
		return nil
	}
	cards := m.state.ListCards(d.Over)
	from := slices.IndexFunc(cards, func(c models.CardEntry) bool { return c.ID() == d.ID })
	to := from + delta
	if from < 0 || to < 0 || to >= len(cards) {
		return nil
	}
	return m.session.Drag.HoverCard(cards[to].ID())
}

// follow moves the cursor onto the dragged item.
func (m *Model) follow(kind drag.Kind, id string) {
	switch kind {
	case drag.KindCard:
		if listID, idx, ok := m.state.LocateCard(id); ok {
			m.col, m.row = m.state.ListIndex(listID), idx
		}
	case drag.KindList:
		if i := m.state.ListIndex(id); i >= 0 {
			m.col = i
		}
	}
}

func (m *Model) columnWidth() int {
	n := max(len(m.state.Lists), 1)
	if m.width == 0 {
		return maxColumnWidth
	}
	w := (m.width - 2) / n
	return min(max(w, minColumnWidth), maxColumnWidth)
}

// visibleColumns is the window of lists that fits the terminal around the focused one.
func (m *Model) visibleColumns(width int) (int, int) {
	n := len(m.state.Lists)
	fit := n
	if m.width > 0 {
		fit = max(m.width/(width+4), 1)
	}
	if fit >= n {
		return 0, n
	}
	start := min(max(m.col-fit/2, 0), n-fit)
	return start, start + fit
}

func (m *Model) renderBoard() string {
	board, ok := m.state.SelectedBoard()
	if !ok {
		return styles.help.Render("No board selected")
	}

	title := board.Title
	if m.state.Query != "" {
		title = fmt.Sprintf("%s  %s", title, styles.warn.Render(fmt.Sprintf("search: %q", m.state.Query)))
	}
	header := styles.title.Render(title)

	if len(m.state.Lists) == 0 {
		return header + "\n" + styles.help.Render("No lists yet. Press A to add one.")
	}

	active, dragging := m.session.Drag.Active()
	width := m.columnWidth()
	start, end := m.visibleColumns(width)

	columns := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		columns = append(columns, m.renderColumn(i, width, active, dragging))
	}

	row := lipgloss.JoinHorizontal(lipgloss.Top, columns...)
	if start > 0 {
		row = lipgloss.JoinHorizontal(lipgloss.Center, styles.help.Render("‹ "), row)
	}
	if end < len(m.state.Lists) {
		row = lipgloss.JoinHorizontal(lipgloss.Center, row, styles.help.Render(" ›"))
	}
	return header + "\n" + row
}

func (m *Model) renderColumn(i, width int, active drag.Drag, dragging bool) string {
	l := m.state.Lists[i]
	focused := i == m.col

	heading := fmt.Sprintf("%s (%d)", l.Row.Title, len(m.state.ListCards(l.ID())))
	switch {
	case dragging && active.Kind == drag.KindList && active.ID == l.ID():
		heading = styles.dragging.Render(shared.Truncate(heading, width))
	case l.IsPending():
		heading = styles.pending.Render(shared.Truncate(heading+" …", width))
	default:
		heading = styles.heading.Render(shared.Truncate(heading, width))
	}

	lines := []string{heading, ""}
	cards := m.state.VisibleCards(l.ID())
	if l.IsPending() {
		cards = nil
	}
	for j, c := range cards {
		lines = append(lines, m.renderCard(c, width, focused && j == m.row, active, dragging))
	}
	if len(cards) == 0 {
		lines = append(lines, styles.help.Render("empty"))
	}

	style := styles.column
	if focused {
		style = styles.focused
	}
	return style.Width(width).Render(strings.Join(lines, "\n"))
}

func (m *Model) renderCard(c models.CardEntry, width int, focused bool, active drag.Drag, dragging bool) string {
	text := c.Row.Title
	if c.Row.DueDate != nil {
		text = fmt.Sprintf("%s · %s", text, c.Row.DueDate.Format("Jan 2"))
	}
	text = shared.Truncate(text, width)

	switch {
	case dragging && active.Kind == drag.KindCard && active.ID == c.ID():
		return styles.dragging.Render(text)
	case c.IsPending():
		return styles.pending.Render(text)
	case focused:
		return styles.selected.Render(text)
	default:
		return styles.card.Render(text)
	}
}

func (m *Model) renderDetail() string {
	c, ok := m.state.Card(m.detail)
	if !ok {
		return styles.help.Render("Card not found")
	}

	var due string
	if c.Row.DueDate != nil {
		due = c.Row.DueDate.Format("Mon Jan 2, 2006")
	}
	width := m.width - 4
	if width <= 0 {
		width = 80
	}
	body := renderMarkdown(cardMarkdown(c.Row.Title, c.Row.Description, due, c.Row.Labels), width)

	if l, ok := m.state.List(c.Row.ListID); ok {
		body += "\n" + styles.help.Render("in "+l.Row.Title)
	}
	return body
}

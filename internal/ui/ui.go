package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/kbx/internal/models"
	"github.com/desertthunder/kbx/internal/notify"
	"github.com/desertthunder/kbx/internal/session"
	"github.com/desertthunder/kbx/internal/store"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	BoardPickerView ViewState = iota
	BoardView
	CardDetailView
)

// promptKind is what a submitted text prompt does.
type promptKind int

const (
	promptNone promptKind = iota
	promptNewBoard
	promptRenameBoard
	promptNewList
	promptRenameList
	promptNewCard
	promptRenameCard
	promptSearch
)

func (p promptKind) label() string {
	switch p {
	case promptNewBoard:
		return "New board"
	case promptRenameBoard:
		return "Rename board"
	case promptNewList:
		return "New list"
	case promptRenameList:
		return "Rename list"
	case promptNewCard:
		return "New card"
	case promptRenameCard:
		return "Rename card"
	case promptSearch:
		return "Search"
	default:
		return ""
	}
}

// confirmKind is what a y/n confirmation deletes.
type confirmKind int

const (
	confirmNone confirmKind = iota
	confirmDeleteBoard
	confirmDeleteList
	confirmDeleteCard
)

// Model represents the TUI application state.
type Model struct {
	ctx     context.Context
	session *session.Session
	notices <-chan notify.Notice
	changes <-chan uint64
	stop    func()

	view   ViewState
	state  store.State
	boards list.Model
	col    int
	row    int
	detail string

	input      textinput.Model
	prompt     promptKind
	confirm    confirmKind
	target     string
	targetList models.Identity
	targetName string

	notice   *notify.Notice
	loading  bool
	err      error
	width    int
	height   int
	help     help.Model
	keys     keyMap
	showHelp bool
}

// NewModel creates a TUI over a session. notices may be nil; when set it should
// be the channel the session's notifier publishes to.
func NewModel(ctx context.Context, s *session.Session, notices <-chan notify.Notice) *Model {
	changes, stop := s.Store.Subscribe()

	input := textinput.New()
	input.CharLimit = 200
	input.Prompt = "> "

	keys := newKeyMap()
	boards := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	boards.Title = "Boards"
	boards.AdditionalShortHelpKeys = keys.pickerKeys

	return &Model{
		ctx:     ctx,
		session: s,
		notices: notices,
		changes: changes,
		stop:    stop,
		view:    BoardPickerView,
		boards:  boards,
		input:   input,
		help:    help.New(),
		keys:    keys,
	}
}

// Close releases the store subscription.
func (m *Model) Close() {
	if m.stop != nil {
		m.stop()
		m.stop = nil
	}
}

// Err returns the error that stopped the session from starting.
func (m *Model) Err() error { return m.err }

// Init starts the session and begins listening for store changes and notices.
func (m *Model) Init() tea.Cmd {
	m.loading = true
	return tea.Batch(m.start(), m.waitForChange(), m.waitForNotice())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.boards.SetSize(msg.Width-4, msg.Height-6)
		m.input.Width = max(msg.Width-20, 20)
		return m, nil

	case Msg:
		return m.handleMsg(msg)

	case tea.KeyMsg:
		if m.err != nil {
			if key.Matches(msg, m.keys.quit) {
				return m, tea.Quit
			}
			return m, nil
		}
		if m.prompt != promptNone {
			return m.handlePromptKeys(msg)
		}
		if m.confirm != confirmNone {
			return m.handleConfirmKeys(msg)
		}
		switch m.view {
		case BoardPickerView:
			return m.handlePickerKeys(msg)
		case BoardView:
			return m.handleBoardKeys(msg)
		case CardDetailView:
			return m.handleDetailKeys(msg)
		}
	}

	var cmd tea.Cmd
	switch {
	case m.prompt != promptNone:
		m.input, cmd = m.input.Update(msg)
	case m.view == BoardPickerView:
		m.boards, cmd = m.boards.Update(msg)
	}
	return m, cmd
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgSessionStarted:
		m.loading = false
		if err := msg.err(); err != nil {
			m.err = err
			return m, nil
		}
		return m, m.sync()

	case MsgBoardSelected:
		m.loading = false
		cmd := m.sync()
		if msg.err() == nil {
			m.view = BoardView
		}
		return m, cmd

	case MsgStoreChanged:
		return m, tea.Batch(m.sync(), m.waitForChange())

	case MsgNotice:
		n := msg.data.(notify.Notice)
		m.notice = &n
		return m, m.waitForNotice()

	case MsgReloaded:
		m.loading = false
		if err := msg.err(); err != nil {
			m.setNotice(notify.Failed(err, "Reload failed"))
		}
		return m, m.sync()
	}
	return m, nil
}

// sync copies the store into the model and keeps the cursor on something that exists.
func (m *Model) sync() tea.Cmd {
	prev := m.state.Selected
	m.state = m.session.Store.Snapshot()
	cmd := m.boards.SetItems(boardItems(m.state.Boards))

	switch {
	case m.state.Selected == "" && m.view != BoardPickerView:
		m.view = BoardPickerView
	case m.state.Selected != "" && m.state.Selected != prev:
		m.view = BoardView
		m.col, m.row = 0, 0
	}
	if m.view == CardDetailView {
		if _, ok := m.state.Card(m.detail); !ok {
			m.view = BoardView
		}
	}
	if d, ok := m.session.Drag.Active(); ok {
		m.follow(d.Kind, d.ID)
	}
	m.clamp()
	return cmd
}

func (m *Model) clamp() {
	m.col = min(m.col, len(m.state.Lists)-1)
	m.col = max(m.col, 0)
	m.row = min(m.row, len(m.cards())-1)
	m.row = max(m.row, 0)
}

func (m *Model) setNotice(n notify.Notice) {
	m.notice = &n
}

func (m *Model) currentList() (models.ListEntry, bool) {
	if m.col < 0 || m.col >= len(m.state.Lists) {
		return models.ListEntry{}, false
	}
	return m.state.Lists[m.col], true
}

// cards are the visible cards of the focused list.
func (m *Model) cards() []models.CardEntry {
	l, ok := m.currentList()
	if !ok || l.IsPending() {
		return nil
	}
	return m.state.VisibleCards(l.ID())
}

func (m *Model) currentCard() (models.CardEntry, bool) {
	cards := m.cards()
	if m.row < 0 || m.row >= len(cards) {
		return models.CardEntry{}, false
	}
	return cards[m.row], true
}

func (m *Model) selectedBoard() (models.Board, bool) {
	item, ok := m.boards.SelectedItem().(boardItem)
	if !ok {
		return models.Board{}, false
	}
	return item.board, true
}

func (m *Model) handlePickerKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.boards.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.boards, cmd = m.boards.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.enter):
		if b, ok := m.selectedBoard(); ok {
			m.loading = true
			return m, m.selectBoard(b.ID)
		}
		return m, nil
	case key.Matches(msg, m.keys.newCard):
		return m, m.openPrompt(promptNewBoard, "")
	case key.Matches(msg, m.keys.edit):
		if b, ok := m.selectedBoard(); ok {
			m.target = b.ID
			return m, m.openPrompt(promptRenameBoard, b.Title)
		}
		return m, nil
	case key.Matches(msg, m.keys.del):
		if b, ok := m.selectedBoard(); ok {
			m.target, m.targetName = b.ID, b.Title
			m.confirm = confirmDeleteBoard
		}
		return m, nil
	case key.Matches(msg, m.keys.refresh):
		m.loading = true
		return m, m.reload()
	}

	var cmd tea.Cmd
	m.boards, cmd = m.boards.Update(msg)
	return m, cmd
}

func (m *Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.enter):
		m.view = BoardView
	case key.Matches(msg, m.keys.edit):
		if c, ok := m.state.Card(m.detail); ok {
			m.target = m.detail
			return m, m.openPrompt(promptRenameCard, c.Row.Title)
		}
	}
	return m, nil
}

func (m *Model) openPrompt(kind promptKind, value string) tea.Cmd {
	m.prompt = kind
	m.input.Placeholder = strings.ToLower(kind.label())
	m.input.SetValue(value)
	m.input.CursorEnd()
	return m.input.Focus()
}

func (m *Model) closePrompt() {
	m.prompt = promptNone
	m.input.Blur()
	m.input.SetValue("")
}

func (m *Model) handlePromptKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.closePrompt()
		return m, nil
	case tea.KeyEnter:
		kind, value := m.prompt, strings.TrimSpace(m.input.Value())
		m.closePrompt()
		return m, m.submit(kind, value)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit applies a prompt. Writes go through the coordinator, which updates the
// store before the backend answers.
func (m *Model) submit(kind promptKind, value string) tea.Cmd {
	if value == "" && kind != promptSearch {
		return nil
	}

	coord := m.session.Coordinator
	switch kind {
	case promptNewBoard:
		coord.CreateBoard(models.NewBoard{Title: value})
	case promptRenameBoard:
		coord.UpdateBoard(m.target, models.BoardPatch{Title: &value})
	case promptNewList:
		coord.CreateList(value)
	case promptRenameList:
		coord.UpdateList(m.target, models.ListPatch{Title: &value})
	case promptNewCard:
		coord.CreateCard(m.targetList, models.NewCard{Title: value})
	case promptRenameCard:
		coord.UpdateCard(m.target, models.CardPatch{Title: &value})
	case promptSearch:
		m.session.Search(value)
		m.row = 0
	}
	return m.sync()
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		coord := m.session.Coordinator
		switch m.confirm {
		case confirmDeleteBoard:
			coord.DeleteBoard(m.target)
		case confirmDeleteList:
			coord.DeleteList(m.target)
		case confirmDeleteCard:
			coord.DeleteCard(m.target)
		}
		m.confirm = confirmNone
		return m, m.sync()
	case key.Matches(msg, m.keys.no):
		m.confirm = confirmNone
	}
	return m, nil
}

func (m *Model) start() tea.Cmd {
	return func() tea.Msg {
		return sessionStartedMsg(m.session.Start(m.ctx))
	}
}

func (m *Model) selectBoard(id string) tea.Cmd {
	return func() tea.Msg {
		return boardSelectedMsg(id, m.session.SelectBoard(m.ctx, id))
	}
}

func (m *Model) reload() tea.Cmd {
	return func() tea.Msg {
		return reloadedMsg(m.session.Refresh(m.ctx))
	}
}

func (m *Model) waitForChange() tea.Cmd {
	ch := m.changes
	return func() tea.Msg {
		v, ok := <-ch
		if !ok {
			return nil
		}
		return storeChangedMsg(v)
	}
}

func (m *Model) waitForNotice() tea.Cmd {
	if m.notices == nil {
		return nil
	}
	ch := m.notices
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		return noticeMsg(n)
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}
	if m.loading && len(m.state.Boards) == 0 {
		return styles.help.Render("Loading boards...")
	}

	var body string
	switch m.view {
	case BoardPickerView:
		body = m.boards.View()
	case BoardView:
		body = m.renderBoard()
	case CardDetailView:
		body = m.renderDetail()
	}

	return strings.Join([]string{body, m.renderFooter()}, "\n\n")
}

func (m *Model) renderFooter() string {
	var lines []string
	switch {
	case m.prompt != promptNone:
		lines = append(lines, fmt.Sprintf("%s %s", styles.heading.Render(m.prompt.label()), m.input.View()))
	case m.confirm != confirmNone:
		lines = append(lines, styles.warn.Render(m.confirmQuestion()))
		lines = append(lines, m.help.ShortHelpView([]key.Binding{m.keys.yes, m.keys.no}))
	}

	if m.notice != nil {
		lines = append(lines, renderNotice(*m.notice))
	}

	if m.prompt == promptNone && m.confirm == confirmNone && m.view != BoardPickerView {
		if _, dragging := m.session.Drag.Active(); dragging {
			lines = append(lines, m.help.ShortHelpView(m.keys.dragKeys()))
		} else if m.showHelp {
			lines = append(lines, m.help.FullHelpView(m.keys.FullHelp()))
		} else {
			lines = append(lines, m.help.ShortHelpView(m.keys.ShortHelp()))
		}
	}
	return strings.Join(lines, "\n")
}

func (m *Model) confirmQuestion() string {
	switch m.confirm {
	case confirmDeleteBoard:
		return fmt.Sprintf("Delete board %q with all its lists and cards?", m.targetName)
	case confirmDeleteList:
		return fmt.Sprintf("Delete list %q and its cards?", m.targetName)
	case confirmDeleteCard:
		return fmt.Sprintf("Delete card %q?", m.targetName)
	default:
		return ""
	}
}

func renderNotice(n notify.Notice) string {
	switch n.Level {
	case notify.Success:
		return styles.ok.Render("✓ " + n.String())
	case notify.Failure:
		return styles.err.Render("✗ " + n.String())
	default:
		return styles.help.Render(n.String())
	}
}

package ui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/kbx/internal/models"
	"github.com/desertthunder/kbx/internal/notify"
	"github.com/desertthunder/kbx/internal/session"
	tu "github.com/desertthunder/kbx/internal/testing"
)

type fixture struct {
	m       *Model
	backend *tu.FakeBackend
	board   models.Board
	l1, l2  models.List
	c1, c2  models.Card
}

// newFixture starts a model on the board picker. Roadmap holds Todo=[write docs, ship] and Done=[].
func newFixture(t *testing.T) fixture {
	t.Helper()
	backend := tu.NewFakeBackend()
	board := backend.SeedBoard(models.Board{Title: "Roadmap", CreatedAt: time.Now().Add(-time.Hour)})
	backend.SeedBoard(models.Board{Title: "Other", CreatedAt: time.Now().Add(-2 * time.Hour)})
	l1 := backend.SeedList(models.List{Title: "Todo", BoardID: board.ID, Position: 0})
	l2 := backend.SeedList(models.List{Title: "Done", BoardID: board.ID, Position: 1})
	c1 := backend.SeedCard(models.Card{Title: "write docs", ListID: l1.ID, Position: 0})
	c2 := backend.SeedCard(models.Card{Title: "ship", Description: "release notes", ListID: l1.ID, Position: 1})

	s := session.New(backend, &notify.Recorder{}, session.Options{
		UserID:          backend.UserID,
		Backoff:         10 * time.Millisecond,
		RestoreOnCancel: true,
		Workers:         2,
		RateLimit:       1000,
	}, tu.DiscardLogger())
	t.Cleanup(s.Close)

	m := NewModel(context.Background(), s, nil)
	t.Cleanup(m.Close)
	m.Update(tea.WindowSizeMsg{Width: 160, Height: 40})
	m.Update(m.start()())

	return fixture{m: m, backend: backend, board: board, l1: l1, l2: l2, c1: c1, c2: c2}
}

// open selects the first board in the picker and waits for it to load.
func (f fixture) open(t *testing.T) {
	t.Helper()
	_, cmd := f.m.Update(keyMsg("enter"))
	if cmd == nil {
		t.Fatal("expected a command selecting the board")
	}
	f.m.Update(cmd())
	if f.m.view != BoardView {
		t.Fatalf("expected board view, got %v", f.m.view)
	}
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "space":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
}

func press(m *Model, keys ...string) {
	for _, k := range keys {
		m.Update(keyMsg(k))
	}
}

func typeText(m *Model, text string) {
	for _, r := range text {
		m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

func eventually(t *testing.T, what string, m *Model, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		m.sync()
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func titles(cards []models.CardEntry) string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.Row.Title
	}
	return strings.Join(out, ",")
}

func TestPicker(t *testing.T) {
	t.Run("lists boards newest first", func(t *testing.T) {
		f := newFixture(t)
		if f.m.view != BoardPickerView {
			t.Fatalf("expected picker, got %v", f.m.view)
		}
		items := f.m.boards.Items()
		if len(items) != 2 {
			t.Fatalf("expected 2 boards, got %d", len(items))
		}
		if got := items[0].(boardItem).board.Title; got != "Roadmap" {
			t.Errorf("expected Roadmap first, got %q", got)
		}
		if !strings.Contains(f.m.View(), "Roadmap") {
			t.Error("expected board title in view")
		}
	})

	t.Run("enter opens the board", func(t *testing.T) {
		f := newFixture(t)
		f.open(t)

		view := f.m.View()
		for _, want := range []string{"Roadmap", "Todo", "Done", "write docs", "ship"} {
			if !strings.Contains(view, want) {
				t.Errorf("expected %q in board view", want)
			}
		}
	})

	t.Run("esc returns to the picker", func(t *testing.T) {
		f := newFixture(t)
		f.open(t)
		press(f.m, "esc")
		if f.m.view != BoardPickerView {
			t.Errorf("expected picker, got %v", f.m.view)
		}
	})

	t.Run("creates a board and opens it", func(t *testing.T) {
		f := newFixture(t)
		press(f.m, "a")
		if f.m.prompt != promptNewBoard {
			t.Fatalf("expected new board prompt, got %v", f.m.prompt)
		}
		typeText(f.m, "Launch")
		press(f.m, "enter")

		eventually(t, "new board selected", f.m, func() bool {
			b, ok := f.m.state.SelectedBoard()
			return ok && b.Title == "Launch"
		})
		if f.m.view != BoardView {
			t.Errorf("expected board view, got %v", f.m.view)
		}
	})

	t.Run("start failure is fatal", func(t *testing.T) {
		backend := tu.NewFakeBackend()
		backend.Fail("ListBoards", errors.New("offline"))
		s := session.New(backend, nil, session.Options{UserID: backend.UserID, Workers: 1, RateLimit: 1000}, tu.DiscardLogger())
		t.Cleanup(s.Close)
		m := NewModel(context.Background(), s, nil)
		t.Cleanup(m.Close)

		m.Update(m.start()())
		if m.Err() == nil {
			t.Fatal("expected start error")
		}
		if !strings.Contains(m.View(), "offline") {
			t.Errorf("expected error in view, got %q", m.View())
		}
		if _, cmd := m.Update(keyMsg("q")); cmd == nil {
			t.Error("expected quit command")
		}
	})
}

func TestBoardNavigation(t *testing.T) {
	f := newFixture(t)
	f.open(t)

	press(f.m, "j")
	if c, _ := f.m.currentCard(); c.ID() != f.c2.ID {
		t.Errorf("expected focus on ship, got %q", c.Row.Title)
	}
	press(f.m, "j", "j")
	if f.m.row != 1 {
		t.Errorf("expected row clamped to 1, got %d", f.m.row)
	}
	press(f.m, "l")
	if f.m.col != 1 || f.m.row != 0 {
		t.Errorf("expected col 1 row 0, got %d,%d", f.m.col, f.m.row)
	}
	press(f.m, "l")
	if f.m.col != 1 {
		t.Errorf("expected col clamped to 1, got %d", f.m.col)
	}
	if _, ok := f.m.currentCard(); ok {
		t.Error("expected no card in empty list")
	}
}

func TestKeyboardDrag(t *testing.T) {
	t.Run("moves a card down and saves", func(t *testing.T) {
		f := newFixture(t)
		f.open(t)

		press(f.m, "space")
		if _, ok := f.m.session.Drag.Active(); !ok {
			t.Fatal("expected drag in progress")
		}
		press(f.m, "j")
		if got := titles(f.m.state.ListCards(f.l1.ID)); got != "ship,write docs" {
			t.Errorf("expected preview order, got %s", got)
		}
		if f.m.row != 1 {
			t.Errorf("expected cursor to follow the card, got row %d", f.m.row)
		}

		press(f.m, "enter")
		if _, ok := f.m.session.Drag.Active(); ok {
			t.Fatal("expected drag finished")
		}
		eventually(t, "card position saved", f.m, func() bool {
			c, _ := f.backend.StoredCard(f.c1.ID)
			return c.Position == 1
		})
	})

	t.Run("moves a card to the next list", func(t *testing.T) {
		f := newFixture(t)
		f.open(t)

		press(f.m, "space", "l", "enter")
		if got := titles(f.m.state.ListCards(f.l2.ID)); got != "write docs" {
			t.Errorf("expected card in Done, got %s", got)
		}
		if f.m.col != 1 {
			t.Errorf("expected cursor in Done, got col %d", f.m.col)
		}
		eventually(t, "card list saved", f.m, func() bool {
			c, _ := f.backend.StoredCard(f.c1.ID)
			return c.ListID == f.l2.ID
		})
	})

	t.Run("esc restores the order", func(t *testing.T) {
		f := newFixture(t)
		f.open(t)

		press(f.m, "space", "j", "l", "esc")
		if _, ok := f.m.session.Drag.Active(); ok {
			t.Fatal("expected drag abandoned")
		}
		if got := titles(f.m.state.ListCards(f.l1.ID)); got != "write docs,ship" {
			t.Errorf("expected original order, got %s", got)
		}
		if n := len(f.m.state.ListCards(f.l2.ID)); n != 0 {
			t.Errorf("expected Done empty, got %d", n)
		}
	})

	t.Run("moves a list", func(t *testing.T) {
		f := newFixture(t)
		f.open(t)

		press(f.m, "m", "l", "enter")
		if got := f.m.state.Lists[0].Row.Title; got != "Done" {
			t.Errorf("expected Done first, got %s", got)
		}
		eventually(t, "list position saved", f.m, func() bool {
			l, _ := f.backend.StoredList(f.l1.ID)
			return l.Position == 1
		})
	})

	t.Run("refuses unsaved cards", func(t *testing.T) {
		f := newFixture(t)
		f.open(t)
		release := f.backend.Hold("InsertCard")
		defer release()

		press(f.m, "a")
		typeText(f.m, "draft")
		press(f.m, "enter", "j", "j", "space")

		if c, _ := f.m.currentCard(); !c.IsPending() {
			t.Fatalf("expected focus on the pending card, got %q", c.Row.Title)
		}
		if _, ok := f.m.session.Drag.Active(); ok {
			t.Error("expected no drag for a pending card")
		}
		if f.m.notice == nil || !strings.Contains(f.m.notice.Message, "until it is saved") {
			t.Errorf("expected a notice, got %v", f.m.notice)
		}
	})

	t.Run("search blocks card drags", func(t *testing.T) {
		f := newFixture(t)
		f.open(t)
		f.m.session.Search("ship")
		f.m.sync()

		press(f.m, "space")
		if _, ok := f.m.session.Drag.Active(); ok {
			t.Error("expected no drag while searching")
		}
	})
}

func TestPrompts(t *testing.T) {
	t.Run("adds a card to the focused list", func(t *testing.T) {
		f := newFixture(t)
		f.open(t)

		press(f.m, "a")
		typeText(f.m, "hello")
		press(f.m, "enter")

		if f.m.prompt != promptNone {
			t.Error("expected prompt closed")
		}
		if got := titles(f.m.state.ListCards(f.l1.ID)); got != "write docs,ship,hello" {
			t.Errorf("expected optimistic card, got %s", got)
		}
		eventually(t, "card confirmed", f.m, func() bool {
			cards := f.m.state.ListCards(f.l1.ID)
			return len(cards) == 3 && !cards[2].IsPending()
		})
	})

	t.Run("renames a list", func(t *testing.T) {
		f := newFixture(t)
		f.open(t)

		press(f.m, "E")
		if got := f.m.input.Value(); got != "Todo" {
			t.Errorf("expected current title prefilled, got %q", got)
		}
		typeText(f.m, " soon")
		press(f.m, "enter")

		eventually(t, "list renamed", f.m, func() bool {
			l, _ := f.backend.StoredList(f.l1.ID)
			return l.Title == "Todo soon"
		})
	})

	t.Run("esc discards the prompt", func(t *testing.T) {
		f := newFixture(t)
		f.open(t)

		press(f.m, "A")
		typeText(f.m, "Later")
		press(f.m, "esc")
		if f.m.prompt != promptNone || len(f.m.state.Lists) != 2 {
			t.Errorf("expected nothing created, lists=%d", len(f.m.state.Lists))
		}
	})

	t.Run("search filters and esc clears", func(t *testing.T) {
		f := newFixture(t)
		f.open(t)

		press(f.m, "/")
		typeText(f.m, "release")
		press(f.m, "enter")
		if f.m.state.Query != "release" {
			t.Fatalf("expected query set, got %q", f.m.state.Query)
		}
		if got := titles(f.m.cards()); got != "ship" {
			t.Errorf("expected only ship visible, got %s", got)
		}

		press(f.m, "esc")
		if f.m.state.Query != "" || f.m.view != BoardView {
			t.Errorf("expected search cleared on the board, query=%q view=%v", f.m.state.Query, f.m.view)
		}
	})
}

func TestConfirmDelete(t *testing.T) {
	f := newFixture(t)
	f.open(t)

	press(f.m, "d")
	if f.m.confirm != confirmDeleteCard {
		t.Fatalf("expected delete confirmation, got %v", f.m.confirm)
	}
	if !strings.Contains(f.m.View(), `Delete card "write docs"?`) {
		t.Error("expected confirmation question in view")
	}
	press(f.m, "n")
	if f.m.confirm != confirmNone || len(f.m.state.ListCards(f.l1.ID)) != 2 {
		t.Fatal("expected delete abandoned")
	}

	press(f.m, "d", "y")
	if got := titles(f.m.state.ListCards(f.l1.ID)); got != "ship" {
		t.Errorf("expected card removed, got %s", got)
	}
	eventually(t, "card deleted", f.m, func() bool {
		_, ok := f.backend.StoredCard(f.c1.ID)
		return !ok
	})
}

func TestDetail(t *testing.T) {
	t.Run("renders the card", func(t *testing.T) {
		f := newFixture(t)
		f.open(t)

		press(f.m, "j", "enter")
		if f.m.view != CardDetailView {
			t.Fatalf("expected detail view, got %v", f.m.view)
		}
		view := f.m.View()
		for _, want := range []string{"ship", "release", "Todo"} {
			if !strings.Contains(view, want) {
				t.Errorf("expected %q in detail view", want)
			}
		}
		press(f.m, "esc")
		if f.m.view != BoardView {
			t.Errorf("expected board view, got %v", f.m.view)
		}
	})

	t.Run("closes when the card is deleted elsewhere", func(t *testing.T) {
		f := newFixture(t)
		f.open(t)
		press(f.m, "enter")

		if err := f.backend.DeleteCard(context.Background(), f.c1.ID); err != nil {
			t.Fatalf("DeleteCard failed: %v", err)
		}
		eventually(t, "detail closed", f.m, func() bool { return f.m.view == BoardView })
	})
}

func TestMessages(t *testing.T) {
	t.Run("notice shows in the footer", func(t *testing.T) {
		f := newFixture(t)
		f.m.Update(noticeMsg(notify.Failed(errors.New("boom"), "Failed to save")))
		if !strings.Contains(f.m.View(), "Failed to save: boom") {
			t.Errorf("expected notice in view, got %q", f.m.View())
		}
	})

	t.Run("board deleted elsewhere returns to picker", func(t *testing.T) {
		f := newFixture(t)
		f.open(t)
		if err := f.backend.DeleteBoard(context.Background(), f.board.ID); err != nil {
			t.Fatalf("DeleteBoard failed: %v", err)
		}
		eventually(t, "picker shown", f.m, func() bool { return f.m.view == BoardPickerView })
		if len(f.m.boards.Items()) != 1 {
			t.Errorf("expected 1 board left, got %d", len(f.m.boards.Items()))
		}
	})

	t.Run("msg errors", func(t *testing.T) {
		err := errors.New("x")
		tests := []struct {
			name string
			msg  Msg
			want error
		}{
			{"started", sessionStartedMsg(err), err},
			{"selected", boardSelectedMsg("b1", err), err},
			{"reloaded ok", reloadedMsg(nil), nil},
			{"changed", storeChangedMsg(3), nil},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if got := tt.msg.err(); !errors.Is(got, tt.want) && got != tt.want {
					t.Errorf("expected %v, got %v", tt.want, got)
				}
			})
		}
	})
}

func TestCardMarkdown(t *testing.T) {
	md := cardMarkdown("ship", "", "Mon Jan 2, 2006", []string{"urgent"})
	for _, want := range []string{"# ship", "_No description_", "**Due** Mon Jan 2, 2006", "`urgent`"} {
		if !strings.Contains(md, want) {
			t.Errorf("expected %q in %q", want, md)
		}
	}
	if got := renderMarkdown("  ", 80); got != "" {
		t.Errorf("expected empty render, got %q", got)
	}
}

package reconciler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/kbx/internal/feed"
	"github.com/desertthunder/kbx/internal/models"
	"github.com/desertthunder/kbx/internal/sequencer"
	"github.com/desertthunder/kbx/internal/shared"
	"github.com/desertthunder/kbx/internal/store"
	tu "github.com/desertthunder/kbx/internal/testing"
)

// newState selects board b1 holding l1=[c1,c2] and l2=[c3].
func newState(t *testing.T) (*Reconciler, *store.Store) {
	t.Helper()
	st := store.New()
	st.Update(func(s *store.State) {
		s.SetBoards([]models.Board{{ID: "b1", Title: "Roadmap", UserID: "u1"}})
		s.Select("b1")
		s.Load(
			[]models.List{
				{ID: "l1", Title: "Todo", BoardID: "b1", Position: 0},
				{ID: "l2", Title: "Done", BoardID: "b1", Position: 1},
			},
			[]models.Card{
				{ID: "c1", Title: "a", ListID: "l1", Position: 0},
				{ID: "c2", Title: "b", ListID: "l1", Position: 1},
				{ID: "c3", Title: "c", ListID: "l2", Position: 0},
			},
		)
	})
	return New(st, tu.DiscardLogger()), st
}

func ids(cards []models.CardEntry) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.Identity.Key()
	}
	return out
}

func equal(a []string, b ...string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestInserted(t *testing.T) {
	t.Run("present identity is a no-op", func(t *testing.T) {
		r, st := newState(t)
		before := st.Snapshot().CardCount()

		changed := r.Apply(models.Inserted[models.Card]{Row: models.Card{ID: "c1", Title: "a", ListID: "l1"}})
		if changed {
			t.Error("expected no change")
		}
		if got := st.Snapshot().CardCount(); got != before {
			t.Errorf("card count changed from %d to %d", before, got)
		}
	})

	t.Run("out of order arrivals end sorted", func(t *testing.T) {
		r, st := newState(t)
		r.Apply(models.Inserted[models.Card]{Row: models.Card{ID: "c5", Title: "e", ListID: "l2", Position: 2}})
		r.Apply(models.Inserted[models.Card]{Row: models.Card{ID: "c4", Title: "d", ListID: "l2", Position: 1}})

		cards := st.Snapshot().ListCards("l2")
		if !equal(ids(cards), "c3", "c4", "c5") {
			t.Errorf("expected [c3 c4 c5], got %v", ids(cards))
		}
		if !sequencer.Contiguous(cards) {
			t.Errorf("expected contiguous positions")
		}
		if cards[1].Row.Labels == nil {
			t.Error("expected normalized labels")
		}
	})

	t.Run("card of unknown list is ignored", func(t *testing.T) {
		r, st := newState(t)
		if r.Apply(models.Inserted[models.Card]{Row: models.Card{ID: "c9", ListID: "lx"}}) {
			t.Error("expected no change")
		}
		if st.Snapshot().CardCount() != 3 {
			t.Error("card count changed")
		}
	})

	t.Run("list of another board is ignored", func(t *testing.T) {
		r, st := newState(t)
		r.Apply(models.Inserted[models.List]{Row: models.List{ID: "l9", BoardID: "b2"}})
		if len(st.Snapshot().Lists) != 2 {
			t.Error("expected list ignored")
		}
	})

	t.Run("list of selected board", func(t *testing.T) {
		r, st := newState(t)
		r.Apply(models.Inserted[models.List]{Row: models.List{ID: "l3", Title: "Doing", BoardID: "b1", Position: 1}})
		snap := st.Snapshot()
		if len(snap.Lists) != 3 || snap.Lists[2].ID() != "l3" {
			t.Errorf("unexpected lists: %+v", snap.Lists)
		}
		if _, ok := snap.Cards["l3"]; !ok {
			t.Error("expected card slot for l3")
		}
	})

	t.Run("placeholder is not matched", func(t *testing.T) {
		r, st := newState(t)
		st.Update(func(s *store.State) {
			s.SetCards("l2", sequencer.Append(s.ListCards("l2"), models.CardEntry{
				Identity: models.NewPending(),
				Row:      models.Card{Title: "new", ListID: "l2"},
			}))
		})

		r.Apply(models.Inserted[models.Card]{Row: models.Card{ID: "c4", Title: "new", ListID: "l2", Position: 1}})
		cards := st.Snapshot().ListCards("l2")
		if len(cards) != 3 || !cards[1].IsPending() || cards[2].ID() != "c4" {
			t.Errorf("expected placeholder kept beside c4, got %v", ids(cards))
		}
	})

	t.Run("boards newest first", func(t *testing.T) {
		r, st := newState(t)
		now := time.Now()
		r.Apply(models.Inserted[models.Board]{Row: models.Board{ID: "b3", CreatedAt: now}})
		r.Apply(models.Inserted[models.Board]{Row: models.Board{ID: "b2", CreatedAt: now.Add(-time.Hour)}})
		r.Apply(models.Inserted[models.Board]{Row: models.Board{ID: "b2", CreatedAt: now.Add(-time.Hour)}})

		boards := st.Snapshot().Boards
		if len(boards) != 3 || boards[0].ID != "b3" || boards[1].ID != "b2" || boards[2].ID != "b1" {
			t.Errorf("unexpected boards: %+v", boards)
		}
	})
}

func TestUpdated(t *testing.T) {
	t.Run("partial payload merges present fields", func(t *testing.T) {
		r, st := newState(t)
		st.Update(func(s *store.State) {
			s.ListCards("l1")[0].Row.Description = "keep me"
		})

		r.Apply(models.Updated[models.Card]{Row: models.Card{ID: "c1", Title: "renamed"}, Fields: []string{"id", "title"}})
		c, _ := st.Snapshot().Card("c1")
		if c.Row.Title != "renamed" || c.Row.Description != "keep me" || c.Row.ListID != "l1" {
			t.Errorf("unexpected merge: %+v", c.Row)
		}
	})

	t.Run("position change re-sorts", func(t *testing.T) {
		r, st := newState(t)
		r.Apply(models.Updated[models.Card]{Row: models.Card{ID: "c1", Position: 1}, Fields: []string{"id", "position"}})
		r.Apply(models.Updated[models.Card]{Row: models.Card{ID: "c2", Position: 0}, Fields: []string{"id", "position"}})

		cards := st.Snapshot().ListCards("l1")
		if !equal(ids(cards), "c2", "c1") || !sequencer.Contiguous(cards) {
			t.Errorf("expected [c2 c1], got %v", ids(cards))
		}
	})

	t.Run("list_id change moves the card", func(t *testing.T) {
		r, st := newState(t)
		r.Apply(models.Updated[models.Card]{
			Row:    models.Card{ID: "c1", ListID: "l2", Position: 1},
			Fields: []string{"id", "list_id", "position"},
		})

		snap := st.Snapshot()
		if !equal(ids(snap.ListCards("l1")), "c2") {
			t.Errorf("expected l1=[c2], got %v", ids(snap.ListCards("l1")))
		}
		if !equal(ids(snap.ListCards("l2")), "c3", "c1") {
			t.Errorf("expected l2=[c3 c1], got %v", ids(snap.ListCards("l2")))
		}
		if c, _ := snap.Card("c1"); c.Row.Title != "a" {
			t.Errorf("expected title kept, got %q", c.Row.Title)
		}
	})

	t.Run("move out of the board drops the card", func(t *testing.T) {
		r, st := newState(t)
		r.Apply(models.Updated[models.Card]{Row: models.Card{ID: "c3", ListID: "lx"}, Fields: []string{"id", "list_id"}})
		if _, ok := st.Snapshot().Card("c3"); ok {
			t.Error("expected c3 removed")
		}
	})

	t.Run("unknown card with known parent is inserted", func(t *testing.T) {
		r, st := newState(t)
		r.Apply(models.Updated[models.Card]{Row: models.Card{ID: "c7", Title: "late", ListID: "l2", Position: 1}})
		if c, ok := st.Snapshot().Card("c7"); !ok || c.Row.Title != "late" {
			t.Errorf("expected c7 inserted, got %+v", c)
		}
	})

	t.Run("unknown card without parent is ignored", func(t *testing.T) {
		r, st := newState(t)
		if r.Apply(models.Updated[models.Card]{Row: models.Card{ID: "c7", Title: "x"}, Fields: []string{"id", "title"}}) {
			t.Error("expected no change")
		}
		if st.Snapshot().CardCount() != 3 {
			t.Error("card count changed")
		}
	})

	t.Run("list moved to another board is removed", func(t *testing.T) {
		r, st := newState(t)
		r.Apply(models.Updated[models.List]{Row: models.List{ID: "l1", BoardID: "b2"}, Fields: []string{"id", "board_id"}})
		snap := st.Snapshot()
		if len(snap.Lists) != 1 || snap.Lists[0].ID() != "l2" {
			t.Errorf("unexpected lists: %+v", snap.Lists)
		}
		if _, ok := snap.Cards["l1"]; ok {
			t.Error("expected l1 cards dropped")
		}
	})

	t.Run("list reorder", func(t *testing.T) {
		r, st := newState(t)
		r.Apply(models.Updated[models.List]{Row: models.List{ID: "l2", Title: "Done", BoardID: "b1", Position: 0}})
		r.Apply(models.Updated[models.List]{Row: models.List{ID: "l1", Position: 1}, Fields: []string{"id", "position"}})
		snap := st.Snapshot()
		if snap.Lists[0].ID() != "l2" || snap.Lists[1].Row.Title != "Todo" {
			t.Errorf("unexpected lists: %+v", snap.Lists)
		}
	})

	t.Run("board rename", func(t *testing.T) {
		r, st := newState(t)
		r.Apply(models.Updated[models.Board]{Row: models.Board{ID: "b1", Title: "Plans"}, Fields: []string{"id", "title"}})
		b, _ := st.Snapshot().Board("b1")
		if b.Title != "Plans" || b.UserID != "u1" {
			t.Errorf("unexpected board: %+v", b)
		}
	})
}

func TestDeleted(t *testing.T) {
	t.Run("absent identity is a no-op", func(t *testing.T) {
		r, st := newState(t)
		before := st.Snapshot()
		if r.Apply(models.Deleted[models.Card]{ID: "nope"}) {
			t.Error("expected no change")
		}
		if r.Apply(models.Deleted[models.List]{ID: "nope"}) {
			t.Error("expected no change")
		}
		after := st.Snapshot()
		if after.CardCount() != before.CardCount() || len(after.Lists) != len(before.Lists) {
			t.Error("state changed")
		}
	})

	t.Run("card", func(t *testing.T) {
		r, st := newState(t)
		r.Apply(models.Deleted[models.Card]{ID: "c1"})
		if !equal(ids(st.Snapshot().ListCards("l1")), "c2") {
			t.Errorf("unexpected cards: %v", ids(st.Snapshot().ListCards("l1")))
		}
	})

	t.Run("list removes its cards", func(t *testing.T) {
		r, st := newState(t)
		r.Apply(models.Deleted[models.List]{ID: "l1"})
		snap := st.Snapshot()
		if len(snap.Lists) != 1 || snap.CardCount() != 1 {
			t.Errorf("unexpected state: %d lists, %d cards", len(snap.Lists), snap.CardCount())
		}
	})

	t.Run("selected board clears selection", func(t *testing.T) {
		r, st := newState(t)
		r.Apply(models.Deleted[models.Board]{ID: "b1"})
		snap := st.Snapshot()
		if snap.Selected != "" || len(snap.Lists) != 0 || snap.CardCount() != 0 {
			t.Errorf("unexpected state: %+v", snap)
		}
	})
}

func TestConsume(t *testing.T) {
	t.Run("applies until the feed ends", func(t *testing.T) {
		r, st := newState(t)
		hub := feed.NewHub(8, tu.DiscardLogger())
		sub, err := hub.Subscribe(context.Background(), models.Topic{Table: models.TableCards})
		if err != nil {
			t.Fatalf("Subscribe failed: %v", err)
		}

		hub.Publish(models.Inserted[models.Card]{Row: models.Card{ID: "c4", Title: "d", ListID: "l2", Position: 1}})
		hub.Publish(models.Deleted[models.Card]{ID: "c1", Old: models.Card{ID: "c1", ListID: "l1"}})
		hub.Close()

		if err := r.Consume(context.Background(), sub); !errors.Is(err, shared.ErrSubscriptionClosed) {
			t.Errorf("expected ErrSubscriptionClosed, got %v", err)
		}
		snap := st.Snapshot()
		if _, ok := snap.Card("c4"); !ok {
			t.Error("expected c4 applied")
		}
		if _, ok := snap.Card("c1"); ok {
			t.Error("expected c1 removed")
		}
	})

	t.Run("context end is not an error", func(t *testing.T) {
		r, _ := newState(t)
		hub := feed.NewHub(8, tu.DiscardLogger())
		ctx, cancel := context.WithCancel(context.Background())
		sub, _ := hub.Subscribe(ctx, models.Topic{Table: models.TableCards})
		cancel()

		if err := r.Consume(ctx, sub); err != nil {
			t.Errorf("expected nil, got %v", err)
		}
	})
}

// Package reconciler folds change-feed events into the board model.
//
// Events may repeat, arrive out of order, or echo the client's own writes;
// applying them is idempotent and every touched sequence is re-sorted by position.
package reconciler

import (
	"context"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/kbx/internal/models"
	"github.com/desertthunder/kbx/internal/sequencer"
	"github.com/desertthunder/kbx/internal/store"
)

// Reconciler applies events to a store.
type Reconciler struct {
	store  *store.Store
	logger *log.Logger
}

// New creates a Reconciler for st.
func New(st *store.Store, logger *log.Logger) *Reconciler {
	return &Reconciler{store: st, logger: logger}
}

// Apply folds a single event into the store and reports whether it changed anything.
func (r *Reconciler) Apply(e models.Event) bool {
	var changed bool
	r.store.Update(func(st *store.State) {
		changed = r.ApplyTo(st, e)
	})
	return changed
}

// Consume applies events from sub until the feed ends or ctx is done.
// It returns the subscription's error, or nil when ctx ended it.
func (r *Reconciler) Consume(ctx context.Context, sub models.Subscription) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-sub.Events():
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return sub.Err()
			}
			r.Apply(e)
		}
	}
}

// ApplyTo folds e into st. It must run inside [store.Store.Update].
func (r *Reconciler) ApplyTo(st *store.State, e models.Event) bool {
	r.logger.Debug("event", "op", e.Op(), "table", e.Table(), "id", e.EntityID())

	switch ev := e.(type) {
	case models.Inserted[models.Board]:
		if st.BoardIndex(ev.Row.ID) >= 0 {
			return false
		}
		st.PutBoard(ev.Row)
		return true
	case models.Updated[models.Board]:
		return r.updateBoard(st, ev)
	case models.Deleted[models.Board]:
		return st.RemoveBoard(ev.ID)

	case models.Inserted[models.List]:
		return insertList(st, ev.Row)
	case models.Updated[models.List]:
		return r.updateList(st, ev)
	case models.Deleted[models.List]:
		return removeList(st, ev.ID)

	case models.Inserted[models.Card]:
		return insertCard(st, ev.Row)
	case models.Updated[models.Card]:
		return r.updateCard(st, ev)
	case models.Deleted[models.Card]:
		return removeCard(st, ev.ID)

	default:
		r.logger.Warn("unhandled event", "type", e)
		return false
	}
}

func (r *Reconciler) updateBoard(st *store.State, ev models.Updated[models.Board]) bool {
	current, ok := st.Board(ev.Row.ID)
	if !ok {
		if ev.Fields != nil {
			return false
		}
		st.PutBoard(ev.Row)
		return true
	}
	merged, err := ev.Merge(current)
	if err != nil {
		r.logger.Error("failed to merge board update", "board", ev.Row.ID, "error", err)
		return false
	}
	st.PutBoard(merged)
	return true
}

// insertList adds a list of the selected board unless its id is already present.
func insertList(st *store.State, row models.List) bool {
	if row.BoardID == "" || row.BoardID != st.Selected || st.HasList(row.ID) {
		return false
	}
	st.Lists = sequencer.Sort(append(slices.Clone(st.Lists), models.ConfirmedEntry(row)))
	if _, ok := st.Cards[row.ID]; !ok {
		st.SetCards(row.ID, []models.CardEntry{})
	}
	return true
}

func (r *Reconciler) updateList(st *store.State, ev models.Updated[models.List]) bool {
	i := st.ListIndex(ev.Row.ID)
	if i < 0 {
		if !ev.Has("board_id") {
			return false
		}
		return insertList(st, ev.Row)
	}

	merged, err := ev.Merge(st.Lists[i].Row)
	if err != nil {
		r.logger.Error("failed to merge list update", "list", ev.Row.ID, "error", err)
		return false
	}
	if merged.BoardID != st.Selected {
		return removeList(st, merged.ID)
	}

	lists := slices.Clone(st.Lists)
	lists[i].Row = merged
	st.Lists = sequencer.Sort(lists)
	return true
}

// removeList drops a list and its cards. Remaining positions are left as the
// server reports them.
func removeList(st *store.State, id string) bool {
	i := st.ListIndex(id)
	if i < 0 {
		return false
	}
	st.Lists = slices.Delete(slices.Clone(st.Lists), i, i+1)
	delete(st.Cards, id)
	return true
}

// insertCard adds a card to a known list unless its id is already present.
func insertCard(st *store.State, row models.Card) bool {
	if !st.HasList(row.ListID) {
		return false
	}
	if _, _, ok := st.LocateCard(row.ID); ok {
		return false
	}
	entry := models.ConfirmedEntry(row.Normalize())
	st.SetCards(row.ListID, sequencer.Sort(append(slices.Clone(st.ListCards(row.ListID)), entry)))
	return true
}

func (r *Reconciler) updateCard(st *store.State, ev models.Updated[models.Card]) bool {
	listID, i, ok := st.LocateCard(ev.Row.ID)
	if !ok {
		if !ev.Has("list_id") {
			return false
		}
		return insertCard(st, ev.Row)
	}

	merged, err := ev.Merge(st.ListCards(listID)[i].Row)
	if err != nil {
		r.logger.Error("failed to merge card update", "card", ev.Row.ID, "error", err)
		return false
	}
	merged = merged.Normalize()

	if merged.ListID != listID {
		removeCard(st, merged.ID)
		insertCard(st, merged)
		return true
	}

	cards := slices.Clone(st.ListCards(listID))
	cards[i].Row = merged
	st.SetCards(listID, sequencer.Sort(cards))
	return true
}

func removeCard(st *store.State, id string) bool {
	listID, i, ok := st.LocateCard(id)
	if !ok {
		return false
	}
	st.SetCards(listID, slices.Delete(slices.Clone(st.ListCards(listID)), i, i+1))
	return true
}

// Package coordinator applies board mutations optimistically and reconciles
// them with the backend's answer.
//
// Every entry point updates the store before returning and issues the write on
// its own goroutine. Outcomes are reported through a [notify.Notifier]; no entry
// point blocks on the network.
package coordinator

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/kbx/internal/models"
	"github.com/desertthunder/kbx/internal/notify"
	"github.com/desertthunder/kbx/internal/sequencer"
	"github.com/desertthunder/kbx/internal/services"
	"github.com/desertthunder/kbx/internal/shared"
	"github.com/desertthunder/kbx/internal/store"
	"github.com/desertthunder/kbx/internal/tasks"
)

// Coordinator owns the write side of the board model.
type Coordinator struct {
	store     *store.Store
	backend   services.Writer
	positions *tasks.PositionWriter
	notifier  notify.Notifier
	logger    *log.Logger

	mu           sync.Mutex
	resync       func(context.Context)
	boardCreated func(context.Context, models.Board)

	wg sync.WaitGroup
}

// New creates a Coordinator. A nil positions writer gets the default pool settings.
func New(st *store.Store, backend services.Writer, positions *tasks.PositionWriter, notifier notify.Notifier, logger *log.Logger) *Coordinator {
	if positions == nil {
		positions = tasks.NewPositionWriter(backend, 0, 0, logger)
	}
	if notifier == nil {
		notifier = notify.Logger{L: logger}
	}
	return &Coordinator{
		store:     st,
		backend:   backend,
		positions: positions,
		notifier:  notifier,
		logger:    logger,
	}
}

// OnResync sets the function run after a rejected positional write to reload
// the selected board from the backend.
func (c *Coordinator) OnResync(fn func(context.Context)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resync = fn
}

// OnBoardCreated sets the function run after a board create is confirmed.
func (c *Coordinator) OnBoardCreated(fn func(context.Context, models.Board)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.boardCreated = fn
}

// Wait blocks until every issued write has resolved.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// spawn runs fn on its own goroutine. Writes are never cancelled once issued.
func (c *Coordinator) spawn(fn func(ctx context.Context)) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn(context.Background())
	}()
}

func (c *Coordinator) succeed(format string, args ...any) {
	n := notify.Succeeded(format, args...)
	c.logger.Debug(n.Message)
	c.notifier.Notify(n)
}

func (c *Coordinator) fail(err error, format string, args ...any) {
	n := notify.Failed(err, format, args...)
	c.logger.Error(n.Message, "error", err)
	c.notifier.Notify(n)
}

func (c *Coordinator) runResync(ctx context.Context) {
	c.mu.Lock()
	fn := c.resync
	c.mu.Unlock()
	if fn != nil {
		fn(ctx)
	}
}

// CreateList appends a placeholder list to the selected board and inserts it.
// It returns the placeholder identity, or nil when the create was rejected.
func (c *Coordinator) CreateList(title string) models.Identity {
	pending := models.NewPending()
	var (
		in  models.NewList
		err error
	)
	c.store.Update(func(st *store.State) {
		if st.Selected == "" {
			err = shared.ErrNoBoardSelected
			return
		}
		in = models.NewList{Title: strings.TrimSpace(title), BoardID: st.Selected, Position: len(st.Lists)}
		if err = in.List().Validate(); err != nil {
			return
		}
		st.Lists = sequencer.Append(st.Lists, models.ListEntry{Identity: pending, Row: in.List()})
	})
	if err != nil {
		c.fail(err, "Cannot create list")
		return nil
	}

	c.logger.Debug("create list", "pending", pending.LocalID, "position", in.Position)
	c.spawn(func(ctx context.Context) {
		row, err := c.backend.InsertList(ctx, in)
		if err != nil {
			c.store.Update(func(st *store.State) {
				if i := st.ListIndexOf(pending); i >= 0 {
					st.Lists = sequencer.RemoveAt(st.Lists, i)
				}
			})
			c.fail(err, "Failed to create list %q", in.Title)
			return
		}
		c.store.Update(func(st *store.State) { confirmList(st, pending, row) })
		c.succeed("Created list %q", row.Title)
	})
	return pending
}

// confirmList swaps the placeholder for the authoritative row at the same index.
// When the row already arrived through the change feed the placeholder is dropped.
func confirmList(st *store.State, pending models.Pending, row models.List) {
	i := st.ListIndexOf(pending)
	if i < 0 {
		return
	}
	if st.HasList(row.ID) {
		st.Lists = sequencer.RemoveAt(st.Lists, i)
		return
	}
	st.Lists[i] = models.ConfirmedEntry(row.WithPos(i))
	if _, ok := st.Cards[row.ID]; !ok {
		st.SetCards(row.ID, []models.CardEntry{})
	}
}

// CreateCard appends a placeholder card to a list and inserts it. The list must
// be confirmed. It returns the placeholder identity, or nil when rejected.
func (c *Coordinator) CreateCard(list models.Identity, in models.NewCard) models.Identity {
	var listID string
	switch id := list.(type) {
	case models.Confirmed:
		listID = id.ID
	case models.Pending:
		c.fail(fmt.Errorf("%w: list %s", shared.ErrPendingParent, id.LocalID), "Cannot create card")
		return nil
	default:
		c.fail(fmt.Errorf("%w: list identity", shared.ErrMissingArgument), "Cannot create card")
		return nil
	}

	pending := models.NewPending()
	var err error
	c.store.Update(func(st *store.State) {
		if !st.HasList(listID) {
			err = fmt.Errorf("%w: %s", shared.ErrListNotFound, listID)
			return
		}
		in.Title = strings.TrimSpace(in.Title)
		in.ListID = listID
		in.Position = len(st.ListCards(listID))
		if err = in.Card().Validate(); err != nil {
			return
		}
		entry := models.CardEntry{Identity: pending, Row: in.Card()}
		st.SetCards(listID, sequencer.Append(st.ListCards(listID), entry))
	})
	if err != nil {
		c.fail(err, "Cannot create card")
		return nil
	}

	c.logger.Debug("create card", "pending", pending.LocalID, "list", listID, "position", in.Position)
	c.spawn(func(ctx context.Context) {
		row, err := c.backend.InsertCard(ctx, in)
		if err != nil {
			c.store.Update(func(st *store.State) {
				if i := st.CardIndexOf(listID, pending); i >= 0 {
					st.SetCards(listID, sequencer.RemoveAt(st.ListCards(listID), i))
				}
			})
			c.fail(err, "Failed to create card %q", in.Title)
			return
		}
		c.store.Update(func(st *store.State) { confirmCard(st, listID, pending, row) })
		c.succeed("Created card %q", row.Title)
	})
	return pending
}

func confirmCard(st *store.State, listID string, pending models.Pending, row models.Card) {
	i := st.CardIndexOf(listID, pending)
	if i < 0 {
		return
	}
	cards := st.ListCards(listID)
	if _, _, ok := st.LocateCard(row.ID); ok {
		st.SetCards(listID, sequencer.RemoveAt(cards, i))
		return
	}
	cards[i] = models.ConfirmedEntry(row.Normalize().WithPos(i))
}

// UpdateList applies a title change locally and writes it. Reordering goes
// through [Coordinator.MoveList].
func (c *Coordinator) UpdateList(id string, patch models.ListPatch) {
	if patch.Position != nil || patch.BoardID != nil {
		c.fail(fmt.Errorf("%w: list position and board cannot be patched", shared.ErrInvalidArgument), "Cannot update list")
		return
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		c.fail(fmt.Errorf("%w: list title is required", shared.ErrInvalidInput), "Cannot update list")
		return
	}

	var found bool
	c.store.Update(func(st *store.State) {
		i := st.ListIndex(id)
		if i < 0 {
			return
		}
		found = true
		st.Lists[i].Row = patch.Apply(st.Lists[i].Row)
	})
	if !found {
		c.fail(fmt.Errorf("%w: %s", shared.ErrListNotFound, id), "Cannot update list")
		return
	}

	c.spawn(func(ctx context.Context) {
		row, err := c.backend.UpdateList(ctx, id, patch)
		if err != nil {
			c.fail(err, "Failed to update list")
			return
		}
		c.store.Update(func(st *store.State) {
			if i := st.ListIndex(id); i >= 0 {
				st.Lists[i].Row = row.WithPos(i)
			}
		})
		c.succeed("Updated list %q", row.Title)
	})
}

// UpdateCard applies field changes locally and writes them. Moving a card goes
// through [Coordinator.MoveCard].
func (c *Coordinator) UpdateCard(id string, patch models.CardPatch) {
	if patch.ListID != nil || patch.Position != nil {
		c.fail(fmt.Errorf("%w: card list and position cannot be patched", shared.ErrInvalidArgument), "Cannot update card")
		return
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		c.fail(fmt.Errorf("%w: card title is required", shared.ErrInvalidInput), "Cannot update card")
		return
	}

	var found bool
	c.store.Update(func(st *store.State) {
		listID, i, ok := st.LocateCard(id)
		if !ok {
			return
		}
		found = true
		cards := st.ListCards(listID)
		cards[i].Row = patch.Apply(cards[i].Row)
	})
	if !found {
		c.fail(fmt.Errorf("%w: %s", shared.ErrCardNotFound, id), "Cannot update card")
		return
	}

	c.spawn(func(ctx context.Context) {
		row, err := c.backend.UpdateCard(ctx, id, patch)
		if err != nil {
			c.fail(err, "Failed to update card")
			return
		}
		c.store.Update(func(st *store.State) {
			listID, i, ok := st.LocateCard(id)
			if !ok {
				return
			}
			row = row.Normalize()
			row.ListID = listID
			st.ListCards(listID)[i].Row = row.WithPos(i)
		})
		c.succeed("Updated card %q", row.Title)
	})
}

// DeleteList removes a list and its cards locally, deletes it, then persists
// the positions of the siblings that shifted.
func (c *Coordinator) DeleteList(id string) {
	var (
		found   bool
		title   string
		changed []models.List
	)
	c.store.Update(func(st *store.State) {
		i := st.ListIndex(id)
		if i < 0 {
			return
		}
		found = true
		before := st.Lists
		title = st.RemoveListAt(i).Row.Title
		changed = confirmedRows(sequencer.Changed(before, st.Lists, sameEntry[models.List]))
	})
	if !found {
		c.fail(fmt.Errorf("%w: %s", shared.ErrListNotFound, id), "Cannot delete list")
		return
	}

	c.spawn(func(ctx context.Context) {
		if err := c.backend.DeleteList(ctx, id); err != nil {
			c.fail(err, "Failed to delete list %q", title)
			return
		}
		if !c.persistLists(ctx, changed) {
			return
		}
		c.succeed("Deleted list %q", title)
	})
}

// DeleteCard removes a card locally, deletes it, then persists the positions
// of the siblings that shifted.
func (c *Coordinator) DeleteCard(id string) {
	var (
		found   bool
		title   string
		changed []models.Card
	)
	c.store.Update(func(st *store.State) {
		listID, i, ok := st.LocateCard(id)
		if !ok {
			return
		}
		found = true
		before := st.ListCards(listID)
		title = before[i].Row.Title
		after := sequencer.RemoveAt(before, i)
		st.SetCards(listID, after)
		changed = confirmedRows(sequencer.Changed(before, after, sameEntry[models.Card]))
	})
	if !found {
		c.fail(fmt.Errorf("%w: %s", shared.ErrCardNotFound, id), "Cannot delete card")
		return
	}

	c.spawn(func(ctx context.Context) {
		if err := c.backend.DeleteCard(ctx, id); err != nil {
			c.fail(err, "Failed to delete card %q", title)
			return
		}
		if !c.persistCards(ctx, changed) {
			return
		}
		c.succeed("Deleted card %q", title)
	})
}

// MoveCard moves a card to index in the target list and persists every card
// whose list or position changed.
func (c *Coordinator) MoveCard(id, toList string, index int) {
	var (
		err     error
		changed []models.Card
	)
	c.store.Update(func(st *store.State) {
		fromList, from, ok := st.LocateCard(id)
		if !ok {
			err = fmt.Errorf("%w: %s", shared.ErrCardNotFound, id)
			return
		}
		if !st.HasList(toList) {
			err = fmt.Errorf("%w: %s", shared.ErrListNotFound, toList)
			return
		}

		src := st.ListCards(fromList)
		if fromList == toList {
			after := sequencer.Move(src, from, index)
			st.SetCards(fromList, after)
			changed = confirmedRows(sequencer.Changed(src, after, sameEntry[models.Card]))
			return
		}

		dst := st.ListCards(toList)
		newSrc, newDst := sequencer.MoveAcross(src, from, dst, index, reparent(toList))
		st.SetCards(fromList, newSrc)
		st.SetCards(toList, newDst)
		changed = append(
			confirmedRows(sequencer.Changed(src, newSrc, sameEntry[models.Card])),
			confirmedRows(sequencer.Changed(dst, newDst, sameEntry[models.Card]))...,
		)
	})
	if err != nil {
		c.fail(err, "Cannot move card")
		return
	}

	c.spawn(func(ctx context.Context) {
		if c.persistCards(ctx, changed) {
			c.succeed("Moved card")
		}
	})
}

// MoveList moves a list to index within the selected board and persists the
// lists whose position changed.
func (c *Coordinator) MoveList(id string, index int) {
	var (
		found   bool
		changed []models.List
	)
	c.store.Update(func(st *store.State) {
		from := st.ListIndex(id)
		if from < 0 {
			return
		}
		found = true
		before := st.Lists
		st.Lists = sequencer.Move(before, from, index)
		changed = confirmedRows(sequencer.Changed(before, st.Lists, sameEntry[models.List]))
	})
	if !found {
		c.fail(fmt.Errorf("%w: %s", shared.ErrListNotFound, id), "Cannot move list")
		return
	}

	c.spawn(func(ctx context.Context) {
		if c.persistLists(ctx, changed) {
			c.succeed("Moved list")
		}
	})
}

// PersistCardOrder writes list and position of every confirmed card in the lists,
// as they are now.
func (c *Coordinator) PersistCardOrder(listIDs ...string) {
	var cards []models.Card
	c.store.Read(func(st store.State) {
		seen := map[string]bool{}
		for _, id := range listIDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			cards = append(cards, confirmedRows(sequencer.Renumber(st.ListCards(id)))...)
		}
	})

	c.spawn(func(ctx context.Context) {
		if c.persistCards(ctx, cards) {
			c.succeed("Saved card order")
		}
	})
}

// PersistListOrder writes the position of every confirmed list of the selected board.
func (c *Coordinator) PersistListOrder() {
	var lists []models.List
	c.store.Read(func(st store.State) {
		lists = confirmedRows(sequencer.Renumber(st.Lists))
	})

	c.spawn(func(ctx context.Context) {
		if c.persistLists(ctx, lists) {
			c.succeed("Saved list order")
		}
	})
}

// persistCards writes positions and reports whether all of them were accepted.
// A rejected write reloads the board.
func (c *Coordinator) persistCards(ctx context.Context, cards []models.Card) bool {
	if len(cards) == 0 {
		return true
	}
	if _, err := c.positions.WriteCards(ctx, nil, cards); err != nil {
		c.fail(err, "Failed to save card order")
		c.runResync(ctx)
		return false
	}
	return true
}

func (c *Coordinator) persistLists(ctx context.Context, lists []models.List) bool {
	if len(lists) == 0 {
		return true
	}
	if _, err := c.positions.WriteLists(ctx, nil, lists); err != nil {
		c.fail(err, "Failed to save list order")
		c.runResync(ctx)
		return false
	}
	return true
}

// CreateBoard inserts a board. Boards are not created optimistically: the board
// appears once the backend confirms it.
func (c *Coordinator) CreateBoard(in models.NewBoard) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		c.fail(fmt.Errorf("%w: board title is required", shared.ErrInvalidInput), "Cannot create board")
		return
	}

	c.spawn(func(ctx context.Context) {
		row, err := c.backend.InsertBoard(ctx, in)
		if err != nil {
			c.fail(err, "Failed to create board %q", in.Title)
			return
		}
		c.store.Update(func(st *store.State) { st.PutBoard(row) })
		c.succeed("Created board %q", row.Title)

		c.mu.Lock()
		fn := c.boardCreated
		c.mu.Unlock()
		if fn != nil {
			fn(ctx, row)
		}
	})
}

// UpdateBoard writes board fields and stores the confirmed row.
func (c *Coordinator) UpdateBoard(id string, patch models.BoardPatch) {
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		c.fail(fmt.Errorf("%w: board title is required", shared.ErrInvalidInput), "Cannot update board")
		return
	}

	c.spawn(func(ctx context.Context) {
		row, err := c.backend.UpdateBoard(ctx, id, patch)
		if err != nil {
			c.fail(err, "Failed to update board")
			return
		}
		c.store.Update(func(st *store.State) { st.PutBoard(row) })
		c.succeed("Updated board %q", row.Title)
	})
}

// DeleteBoard deletes a board and drops it once confirmed. Deleting the selected
// board clears the selection.
func (c *Coordinator) DeleteBoard(id string) {
	c.spawn(func(ctx context.Context) {
		if err := c.backend.DeleteBoard(ctx, id); err != nil {
			c.fail(err, "Failed to delete board")
			return
		}
		c.store.Update(func(st *store.State) { st.RemoveBoard(id) })
		c.succeed("Deleted board")
	})
}

func sameEntry[T models.Positioned[T]](a, b models.Entry[T]) bool {
	return models.SameIdentity(a.Identity, b.Identity)
}

// confirmedRows unwraps the rows of confirmed entries.
func confirmedRows[T models.Positioned[T]](entries []models.Entry[T]) []T {
	out := make([]T, 0, len(entries))
	for _, e := range entries {
		if !e.IsPending() {
			out = append(out, e.Row)
		}
	}
	return out
}

func reparent(listID string) func(models.CardEntry) models.CardEntry {
	return func(e models.CardEntry) models.CardEntry {
		e.Row.ListID = listID
		return e
	}
}

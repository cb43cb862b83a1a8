// Package drag tracks a drag gesture over the board and previews the reorder live.
//
// A drag is Idle until StartCard or StartList, follows hover events while
// Dragging, and returns to Idle on Drop or Cancel. Only a drop writes to the
// backend.
package drag

import (
	"fmt"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/kbx/internal/models"
	"github.com/desertthunder/kbx/internal/sequencer"
	"github.com/desertthunder/kbx/internal/shared"
	"github.com/desertthunder/kbx/internal/store"
)

// Kind is what is being dragged.
type Kind int

const (
	KindCard Kind = iota
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindCard:
		return "card"
	case KindList:
		return "list"
	default:
		return ""
	}
}

// Drag describes the gesture in progress.
type Drag struct {
	Kind   Kind
	ID     string
	Origin string // list id for cards, board id for lists
	Over   string // list the dragged card currently sits in
}

// Target is where a drop lands. A card target wins over a list target; the zero
// Target abandons the drag.
type Target struct {
	ListID string
	CardID string
}

// IsZero reports whether the target names nothing.
func (t Target) IsZero() bool { return t.ListID == "" && t.CardID == "" }

// Persister writes a settled order. The coordinator implements it.
type Persister interface {
	PersistCardOrder(listIDs ...string)
	PersistListOrder()
}

// Controller owns the drag state machine.
type Controller struct {
	store   *store.Store
	persist Persister
	restore bool
	logger  *log.Logger

	mu       sync.Mutex
	active   *Drag
	snapshot store.State
}

// New creates a Controller. restoreOnCancel selects what an abandoned drag
// does: put the pre-drag order back, or leave the previewed order unsaved.
func New(st *store.Store, persist Persister, restoreOnCancel bool, logger *log.Logger) *Controller {
	return &Controller{store: st, persist: persist, restore: restoreOnCancel, logger: logger}
}

// Active returns the drag in progress.
func (c *Controller) Active() (Drag, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return Drag{}, false
	}
	return *c.active, true
}

// StartCard picks up a confirmed card.
func (c *Controller) StartCard(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil {
		return fmt.Errorf("%w: %s %s", shared.ErrDragActive, c.active.Kind, c.active.ID)
	}

	snap := c.store.Snapshot()
	listID, _, ok := snap.LocateCard(id)
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrCardNotFound, id)
	}
	c.active = &Drag{Kind: KindCard, ID: id, Origin: listID, Over: listID}
	c.snapshot = snap
	c.logger.Debug("drag start", "kind", KindCard, "card", id, "list", listID)
	return nil
}

// StartList picks up a confirmed list of the selected board.
func (c *Controller) StartList(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil {
		return fmt.Errorf("%w: %s %s", shared.ErrDragActive, c.active.Kind, c.active.ID)
	}

	snap := c.store.Snapshot()
	if !snap.HasList(id) {
		return fmt.Errorf("%w: %s", shared.ErrListNotFound, id)
	}
	c.active = &Drag{Kind: KindList, ID: id, Origin: snap.Selected}
	c.snapshot = snap
	c.logger.Debug("drag start", "kind", KindList, "list", id)
	return nil
}

// HoverList previews the drag over a list. A card moves to the end of the list
// when it is not already in it; a list takes the hovered list's index.
func (c *Controller) HoverList(listID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hoverList(listID)
}

// HoverCard previews the drag over a card. A dragged card takes the hovered
// card's index; a dragged list takes the index of the hovered card's list.
func (c *Controller) HoverCard(cardID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hoverCard(cardID)
}

func (c *Controller) hoverList(listID string) error {
	if c.active == nil {
		return shared.ErrDragInactive
	}
	if listID == "" {
		return fmt.Errorf("%w: drop target list is not saved yet", shared.ErrPendingParent)
	}

	var err error
	c.store.Update(func(st *store.State) {
		if !st.HasList(listID) {
			err = fmt.Errorf("%w: %s", shared.ErrListNotFound, listID)
			return
		}
		switch c.active.Kind {
		case KindList:
			err = c.moveList(st, st.ListIndex(listID))
		case KindCard:
			if listID == c.active.Over {
				return
			}
			err = c.moveCard(st, listID, len(st.ListCards(listID)))
		}
	})
	return err
}

func (c *Controller) hoverCard(cardID string) error {
	if c.active == nil {
		return shared.ErrDragInactive
	}
	if c.active.Kind == KindCard && cardID == c.active.ID {
		return nil
	}

	var (
		listID string
		err    error
	)
	c.store.Update(func(st *store.State) {
		lid, index, ok := st.LocateCard(cardID)
		if !ok {
			err = fmt.Errorf("%w: %s", shared.ErrCardNotFound, cardID)
			return
		}
		if c.active.Kind == KindList {
			listID = lid
			return
		}
		err = c.moveCard(st, lid, index)
	})
	if err == nil && listID != "" {
		return c.hoverList(listID)
	}
	return err
}

// moveCard places the dragged card at index of listID. Source removal precedes
// target insertion.
func (c *Controller) moveCard(st *store.State, listID string, index int) error {
	from := slices.IndexFunc(st.ListCards(c.active.Over), func(e models.CardEntry) bool { return e.ID() == c.active.ID })
	if from < 0 {
		lost := c.active.ID
		c.active = nil
		return fmt.Errorf("%w: %s was removed during the drag", shared.ErrCardNotFound, lost)
	}

	if listID == c.active.Over {
		st.SetCards(listID, sequencer.Move(st.ListCards(listID), from, index))
		return nil
	}

	src, dst := sequencer.MoveAcross(
		st.ListCards(c.active.Over), from,
		st.ListCards(listID), index,
		func(e models.CardEntry) models.CardEntry {
			e.Row.ListID = listID
			return e
		},
	)
	st.SetCards(c.active.Over, src)
	st.SetCards(listID, dst)
	c.active.Over = listID
	return nil
}

func (c *Controller) moveList(st *store.State, index int) error {
	from := st.ListIndex(c.active.ID)
	if from < 0 {
		lost := c.active.ID
		c.active = nil
		return fmt.Errorf("%w: %s was removed during the drag", shared.ErrListNotFound, lost)
	}
	if from != index {
		st.Lists = sequencer.Move(st.Lists, from, index)
	}
	return nil
}

// Drop applies the final hover over target, ends the drag and persists the
// resulting order. A zero target abandons the drag like [Controller.Cancel].
func (c *Controller) Drop(target Target) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return shared.ErrDragInactive
	}
	if target.IsZero() {
		c.cancel()
		return nil
	}

	var err error
	if target.CardID != "" {
		err = c.hoverCard(target.CardID)
	} else {
		err = c.hoverList(target.ListID)
	}
	if err != nil {
		c.logger.Warn("drop target rejected", "error", err)
		if c.active != nil {
			c.cancel()
		}
		return err
	}

	c.finish()
	return nil
}

// Cancel abandons the drag.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil {
		c.cancel()
	}
}

// cancel ends the drag without writing. It restores the pre-drag order of the
// touched sequences, or leaves the preview in place when restore is off.
func (c *Controller) cancel() {
	d := *c.active
	snap := c.snapshot
	c.active = nil
	c.snapshot = store.State{}

	if !c.restore {
		c.logger.Debug("drag abandoned", "kind", d.Kind, "id", d.ID)
		return
	}

	c.store.Update(func(st *store.State) {
		if st.Selected != snap.Selected {
			return
		}
		switch d.Kind {
		case KindList:
			st.Lists = restoreLists(st.Lists, snap.Lists)
		case KindCard:
			var touched []string
			for _, id := range []string{d.Origin, d.Over} {
				if st.HasList(id) && !slices.Contains(touched, id) {
					touched = append(touched, id)
				}
			}
			restoreCards(st, snap, touched)
		}
	})
	c.logger.Debug("drag cancelled", "kind", d.Kind, "id", d.ID)
}

// restoreLists puts current lists back in the order they had before the drag.
// Lists created during the drag keep their place after the restored ones.
func restoreLists(current, before []models.ListEntry) []models.ListEntry {
	out := make([]models.ListEntry, 0, len(current))
	for _, b := range before {
		if i := slices.IndexFunc(current, func(e models.ListEntry) bool { return models.SameIdentity(e.Identity, b.Identity) }); i >= 0 {
			out = append(out, current[i])
		}
	}
	for _, e := range current {
		if !slices.ContainsFunc(before, func(b models.ListEntry) bool { return models.SameIdentity(e.Identity, b.Identity) }) {
			out = append(out, e)
		}
	}
	return sequencer.Renumber(out)
}

// restoreCards puts the current cards of listIDs back where they sat before
// the drag. Entries gone since then stay gone, so a placeholder whose create
// was confirmed gives way to its row. Cards that arrived during the drag
// follow the restored ones in the list that holds them now.
func restoreCards(st *store.State, before store.State, listIDs []string) {
	current := map[string]models.CardEntry{}
	for _, id := range listIDs {
		for _, e := range st.ListCards(id) {
			current[e.Identity.Key()] = e
		}
	}

	restored := make(map[string][]models.CardEntry, len(listIDs))
	for _, id := range listIDs {
		out := []models.CardEntry{}
		for _, b := range before.ListCards(id) {
			e, ok := current[b.Identity.Key()]
			if !ok {
				continue
			}
			delete(current, b.Identity.Key())
			e.Row.ListID = id
			out = append(out, e)
		}
		restored[id] = out
	}
	for _, id := range listIDs {
		out := restored[id]
		for _, e := range st.ListCards(id) {
			if _, ok := current[e.Identity.Key()]; ok {
				out = append(out, e)
			}
		}
		st.SetCards(id, sequencer.Renumber(out))
	}
}

// finish ends the drag and hands the settled order to the persister.
func (c *Controller) finish() {
	d := *c.active
	c.active = nil
	c.snapshot = store.State{}

	c.logger.Debug("drag drop", "kind", d.Kind, "id", d.ID, "origin", d.Origin, "over", d.Over)
	if c.persist == nil {
		return
	}
	switch d.Kind {
	case KindList:
		c.persist.PersistListOrder()
	case KindCard:
		if d.Origin == d.Over {
			c.persist.PersistCardOrder(d.Origin)
		} else {
			c.persist.PersistCardOrder(d.Origin, d.Over)
		}
	}
}

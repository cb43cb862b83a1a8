package testing

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/desertthunder/kbx/internal/feed"
	"github.com/desertthunder/kbx/internal/models"
	"github.com/desertthunder/kbx/internal/shared"
)

// FakeBackend is an in-memory test double for services.Backend.
//
// Writes can be made to fail with [FakeBackend.Fail] or held until released with
// [FakeBackend.Hold]. When Echo is set (the default) every successful write is
// published on the change feed, like a real server.
type FakeBackend struct {
	mu     sync.Mutex
	boards map[string]models.Board
	lists  map[string]models.List
	cards  map[string]models.Card
	nextID map[string]int

	fail  map[string]error
	gates map[string]chan struct{}
	calls map[string]int

	CardPatches []CardPatchCall
	Echo        bool
	Hub         *feed.Hub
	UserID      string
}

// CardPatchCall records an UpdateCard invocation.
type CardPatchCall struct {
	ID    string
	Patch models.CardPatch
}

// NewFakeBackend creates an empty backend acting as "u1".
func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		boards: map[string]models.Board{},
		lists:  map[string]models.List{},
		cards:  map[string]models.Card{},
		nextID: map[string]int{},
		fail:   map[string]error{},
		gates:  map[string]chan struct{}{},
		calls:  map[string]int{},
		Echo:   true,
		Hub:    feed.NewHub(256, DiscardLogger()),
		UserID: "u1",
	}
}

// Fail makes every call of op return err until cleared with a nil err.
func (f *FakeBackend) Fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, op)
		return
	}
	f.fail[op] = err
}

// Hold blocks calls of op until the returned release func is called.
func (f *FakeBackend) Hold(op string) (release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	f.gates[op] = gate
	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			if f.gates[op] == gate {
				delete(f.gates, op)
			}
			f.mu.Unlock()
			close(gate)
		})
	}
}

// Calls returns how many times op was invoked.
func (f *FakeBackend) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// SeedBoard stores a board directly, without events.
func (f *FakeBackend) SeedBoard(b models.Board) models.Board {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b.ID == "" {
		b.ID = f.id("b")
	}
	if b.UserID == "" {
		b.UserID = f.UserID
	}
	f.boards[b.ID] = b
	return b
}

// SeedList stores a list directly, without events.
func (f *FakeBackend) SeedList(l models.List) models.List {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l.ID == "" {
		l.ID = f.id("l")
	}
	f.lists[l.ID] = l
	return l
}

// SeedCard stores a card directly, without events.
func (f *FakeBackend) SeedCard(c models.Card) models.Card {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.ID == "" {
		c.ID = f.id("c")
	}
	c = c.Normalize()
	f.cards[c.ID] = c
	return c
}

// StoredCard returns the backend's copy of a card.
func (f *FakeBackend) StoredCard(id string) (models.Card, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cards[id]
	return c, ok
}

// StoredList returns the backend's copy of a list.
func (f *FakeBackend) StoredList(id string) (models.List, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.lists[id]
	return l, ok
}

func (f *FakeBackend) id(prefix string) string {
	f.nextID[prefix]++
	return fmt.Sprintf("%s%d", prefix, f.nextID[prefix])
}

// enter counts the call, waits on any gate and returns the injected failure.
func (f *FakeBackend) enter(ctx context.Context, op string) error {
	f.mu.Lock()
	f.calls[op]++
	gate := f.gates[op]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fail[op]
}

func (f *FakeBackend) publish(e models.Event) {
	if f.Echo {
		f.Hub.Publish(e)
	}
}

func (f *FakeBackend) ListBoards(ctx context.Context) ([]models.Board, error) {
	if err := f.enter(ctx, "ListBoards"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Board{}
	for _, b := range f.boards {
		if b.UserID == f.UserID {
			out = append(out, b)
		}
	}
	slices.SortFunc(out, func(a, b models.Board) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (f *FakeBackend) ListLists(ctx context.Context, boardID string) ([]models.List, error) {
	if err := f.enter(ctx, "ListLists"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.List{}
	for _, l := range f.lists {
		if l.BoardID == boardID {
			out = append(out, l)
		}
	}
	slices.SortFunc(out, func(a, b models.List) int { return a.Position - b.Position })
	return out, nil
}

func (f *FakeBackend) ListCards(ctx context.Context, listIDs []string) ([]models.Card, error) {
	if err := f.enter(ctx, "ListCards"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Card{}
	for _, c := range f.cards {
		if slices.Contains(listIDs, c.ListID) {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b models.Card) int {
		if a.ListID != b.ListID {
			if a.ListID < b.ListID {
				return -1
			}
			return 1
		}
		return a.Position - b.Position
	})
	return out, nil
}

func (f *FakeBackend) InsertBoard(ctx context.Context, in models.NewBoard) (models.Board, error) {
	if err := f.enter(ctx, "InsertBoard"); err != nil {
		return models.Board{}, err
	}
	f.mu.Lock()
	b := in.Board()
	if b.UserID == "" {
		b.UserID = f.UserID
	}
	b.ID = f.id("b")
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	f.boards[b.ID] = b
	f.mu.Unlock()

	f.publish(models.Inserted[models.Board]{Row: b})
	return b, nil
}

func (f *FakeBackend) UpdateBoard(ctx context.Context, id string, patch models.BoardPatch) (models.Board, error) {
	if err := f.enter(ctx, "UpdateBoard"); err != nil {
		return models.Board{}, err
	}
	f.mu.Lock()
	b, ok := f.boards[id]
	if !ok {
		f.mu.Unlock()
		return models.Board{}, fmt.Errorf("%w: %s", shared.ErrBoardNotFound, id)
	}
	b = patch.Apply(b)
	f.boards[id] = b
	f.mu.Unlock()

	f.publish(models.Updated[models.Board]{Row: b})
	return b, nil
}

func (f *FakeBackend) DeleteBoard(ctx context.Context, id string) error {
	if err := f.enter(ctx, "DeleteBoard"); err != nil {
		return err
	}
	f.mu.Lock()
	b, ok := f.boards[id]
	if !ok {
		f.mu.Unlock()
		return fmt.Errorf("%w: %s", shared.ErrBoardNotFound, id)
	}
	delete(f.boards, id)
	var events []models.Event
	for lid, l := range f.lists {
		if l.BoardID == id {
			events = append(events, f.dropListLocked(lid)...)
		}
	}
	f.mu.Unlock()

	for _, e := range events {
		f.publish(e)
	}
	f.publish(models.Deleted[models.Board]{ID: id, Old: b})
	return nil
}

func (f *FakeBackend) InsertList(ctx context.Context, in models.NewList) (models.List, error) {
	if err := f.enter(ctx, "InsertList"); err != nil {
		return models.List{}, err
	}
	f.mu.Lock()
	l := in.List()
	l.ID = f.id("l")
	l.CreatedAt = time.Now()
	f.lists[l.ID] = l
	f.mu.Unlock()

	f.publish(models.Inserted[models.List]{Row: l})
	return l, nil
}

func (f *FakeBackend) UpdateList(ctx context.Context, id string, patch models.ListPatch) (models.List, error) {
	if err := f.enter(ctx, "UpdateList"); err != nil {
		return models.List{}, err
	}
	f.mu.Lock()
	l, ok := f.lists[id]
	if !ok {
		f.mu.Unlock()
		return models.List{}, fmt.Errorf("%w: %s", shared.ErrListNotFound, id)
	}
	l = patch.Apply(l)
	f.lists[id] = l
	f.mu.Unlock()

	f.publish(models.Updated[models.List]{Row: l})
	return l, nil
}

func (f *FakeBackend) DeleteList(ctx context.Context, id string) error {
	if err := f.enter(ctx, "DeleteList"); err != nil {
		return err
	}
	f.mu.Lock()
	if _, ok := f.lists[id]; !ok {
		f.mu.Unlock()
		return fmt.Errorf("%w: %s", shared.ErrListNotFound, id)
	}
	events := f.dropListLocked(id)
	f.mu.Unlock()

	for _, e := range events {
		f.publish(e)
	}
	return nil
}

// dropListLocked removes a list and its cards and returns the delete events, cards first.
func (f *FakeBackend) dropListLocked(id string) []models.Event {
	var events []models.Event
	for cid, c := range f.cards {
		if c.ListID == id {
			delete(f.cards, cid)
			events = append(events, models.Deleted[models.Card]{ID: cid, Old: c})
		}
	}
	l := f.lists[id]
	delete(f.lists, id)
	return append(events, models.Deleted[models.List]{ID: id, Old: l})
}

func (f *FakeBackend) InsertCard(ctx context.Context, in models.NewCard) (models.Card, error) {
	if err := f.enter(ctx, "InsertCard"); err != nil {
		return models.Card{}, err
	}
	f.mu.Lock()
	if _, ok := f.lists[in.ListID]; !ok {
		f.mu.Unlock()
		return models.Card{}, fmt.Errorf("%w: %s", shared.ErrListNotFound, in.ListID)
	}
	c := in.Card()
	c.ID = f.id("c")
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	f.cards[c.ID] = c
	f.mu.Unlock()

	f.publish(models.Inserted[models.Card]{Row: c})
	return c, nil
}

func (f *FakeBackend) UpdateCard(ctx context.Context, id string, patch models.CardPatch) (models.Card, error) {
	f.mu.Lock()
	f.CardPatches = append(f.CardPatches, CardPatchCall{ID: id, Patch: patch})
	f.mu.Unlock()

	if err := f.enter(ctx, "UpdateCard"); err != nil {
		return models.Card{}, err
	}
	f.mu.Lock()
	c, ok := f.cards[id]
	if !ok {
		f.mu.Unlock()
		return models.Card{}, fmt.Errorf("%w: %s", shared.ErrCardNotFound, id)
	}
	c = patch.Apply(c)
	f.cards[id] = c
	f.mu.Unlock()

	f.publish(models.Updated[models.Card]{Row: c})
	return c, nil
}

func (f *FakeBackend) DeleteCard(ctx context.Context, id string) error {
	if err := f.enter(ctx, "DeleteCard"); err != nil {
		return err
	}
	f.mu.Lock()
	c, ok := f.cards[id]
	if !ok {
		f.mu.Unlock()
		return fmt.Errorf("%w: %s", shared.ErrCardNotFound, id)
	}
	delete(f.cards, id)
	f.mu.Unlock()

	f.publish(models.Deleted[models.Card]{ID: id, Old: c})
	return nil
}

func (f *FakeBackend) Subscribe(ctx context.Context, topic models.Topic) (models.Subscription, error) {
	if err := f.enter(ctx, "Subscribe"); err != nil {
		return nil, err
	}
	return f.Hub.Subscribe(ctx, topic)
}

// PatchCount returns the number of UpdateCard calls recorded so far.
func (f *FakeBackend) PatchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.CardPatches)
}

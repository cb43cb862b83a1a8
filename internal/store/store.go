// Package store owns the client's in-memory board model.
//
// All mutations run through [Store.Update], one at a time. Observers either take a
// [Store.Snapshot] or subscribe to change signals with [Store.Subscribe].
package store

import (
	"maps"
	"slices"
	"sync"

	"github.com/desertthunder/kbx/internal/models"
	"github.com/desertthunder/kbx/internal/sequencer"
)

// State is the board model: the user's boards, the selected board's lists in
// position order, and each confirmed list's cards in position order.
type State struct {
	Boards   []models.Board
	Selected string
	Lists    []models.ListEntry
	Cards    map[string][]models.CardEntry
	Query    string
}

// Store guards a [State] and signals subscribers after each update.
type Store struct {
	mu      sync.RWMutex
	state   State
	version uint64
	subs    map[int]chan uint64
	nextSub int
}

// New creates an empty store.
func New() *Store {
	return &Store{
		state: State{Cards: map[string][]models.CardEntry{}},
		subs:  map[int]chan uint64{},
	}
}

// Update runs fn with exclusive access to the state and returns the new version.
func (s *Store) Update(fn func(*State)) uint64 {
	s.mu.Lock()
	fn(&s.state)
	s.version++
	v := s.version
	subs := slices.Collect(maps.Values(s.subs))
	s.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- v:
		default:
			// a signal is already waiting; the reader will see the newest state
		}
	}
	return v
}

// Read runs fn with shared access to the state. fn must not retain slices from it.
func (s *Store) Read(fn func(State)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.state)
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Version returns the number of updates applied so far.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Subscribe returns a channel that receives the latest version after updates.
// Signals coalesce: a slow reader sees one pending signal, not every update.
func (s *Store) Subscribe() (<-chan uint64, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan uint64, 1)
	s.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
	return ch, cancel
}

// Clone deep-copies the sequences of the state.
func (st State) Clone() State {
	out := State{
		Boards:   slices.Clone(st.Boards),
		Selected: st.Selected,
		Lists:    slices.Clone(st.Lists),
		Cards:    make(map[string][]models.CardEntry, len(st.Cards)),
		Query:    st.Query,
	}
	for k, v := range st.Cards {
		out.Cards[k] = slices.Clone(v)
	}
	return out
}

// SetBoards replaces the board list, newest first.
func (st *State) SetBoards(boards []models.Board) {
	st.Boards = slices.Clone(boards)
	sortBoards(st.Boards)
}

// PutBoard inserts or replaces a board.
func (st *State) PutBoard(b models.Board) {
	if i := st.BoardIndex(b.ID); i >= 0 {
		st.Boards[i] = b
	} else {
		st.Boards = append(st.Boards, b)
	}
	sortBoards(st.Boards)
}

// RemoveBoard drops a board. Removing the selected board clears the selection.
func (st *State) RemoveBoard(id string) bool {
	i := st.BoardIndex(id)
	if i < 0 {
		return false
	}
	st.Boards = slices.Delete(st.Boards, i, i+1)
	if st.Selected == id {
		st.Select("")
	}
	return true
}

// BoardIndex returns the index of the board, or -1.
func (st State) BoardIndex(id string) int {
	return slices.IndexFunc(st.Boards, func(b models.Board) bool { return b.ID == id })
}

// Board looks up a board by id.
func (st State) Board(id string) (models.Board, bool) {
	if i := st.BoardIndex(id); i >= 0 {
		return st.Boards[i], true
	}
	return models.Board{}, false
}

// SelectedBoard returns the selected board.
func (st State) SelectedBoard() (models.Board, bool) {
	if st.Selected == "" {
		return models.Board{}, false
	}
	return st.Board(st.Selected)
}

// Select changes the selected board and clears the board contents.
func (st *State) Select(id string) {
	st.Selected = id
	st.Lists = nil
	st.Cards = map[string][]models.CardEntry{}
}

// Load replaces the selected board's lists and cards with authoritative rows.
// Cards of lists not in lists are discarded.
func (st *State) Load(lists []models.List, cards []models.Card) {
	st.Lists = make([]models.ListEntry, 0, len(lists))
	st.Cards = map[string][]models.CardEntry{}
	for _, l := range lists {
		st.Lists = append(st.Lists, models.ConfirmedEntry(l))
		st.Cards[l.ID] = []models.CardEntry{}
	}
	st.Lists = sequencer.Sort(st.Lists)

	for _, c := range cards {
		if _, ok := st.Cards[c.ListID]; ok {
			st.Cards[c.ListID] = append(st.Cards[c.ListID], models.ConfirmedEntry(c.Normalize()))
		}
	}
	for id, entries := range st.Cards {
		st.Cards[id] = sequencer.Sort(entries)
	}
}

// ListIndex returns the index of the confirmed list, or -1.
func (st State) ListIndex(id string) int {
	return st.ListIndexOf(models.Confirmed{ID: id})
}

// ListIndexOf returns the index of the list with the identity, or -1.
func (st State) ListIndexOf(id models.Identity) int {
	return slices.IndexFunc(st.Lists, func(e models.ListEntry) bool { return models.SameIdentity(e.Identity, id) })
}

// List looks up a confirmed list.
func (st State) List(id string) (models.ListEntry, bool) {
	if i := st.ListIndex(id); i >= 0 {
		return st.Lists[i], true
	}
	return models.ListEntry{}, false
}

// HasList reports whether the confirmed list belongs to the selected board.
func (st State) HasList(id string) bool {
	return st.ListIndex(id) >= 0
}

// SetLists replaces the lists sequence.
func (st *State) SetLists(lists []models.ListEntry) {
	st.Lists = lists
}

// RemoveListAt drops the list at index together with its cards.
func (st *State) RemoveListAt(i int) models.ListEntry {
	removed := st.Lists[i]
	st.Lists = sequencer.RemoveAt(st.Lists, i)
	if id := removed.ID(); id != "" {
		delete(st.Cards, id)
	}
	return removed
}

// ListCards returns the cards of a confirmed list.
func (st State) ListCards(listID string) []models.CardEntry {
	return st.Cards[listID]
}

// SetCards replaces the cards of a confirmed list.
func (st *State) SetCards(listID string, cards []models.CardEntry) {
	if st.Cards == nil {
		st.Cards = map[string][]models.CardEntry{}
	}
	st.Cards[listID] = cards
}

// CardIndexOf returns the index of the card with the identity in a list, or -1.
func (st State) CardIndexOf(listID string, id models.Identity) int {
	return slices.IndexFunc(st.Cards[listID], func(e models.CardEntry) bool { return models.SameIdentity(e.Identity, id) })
}

// LocateCard finds a confirmed card in any list.
func (st State) LocateCard(id string) (listID string, index int, ok bool) {
	for lid, cards := range st.Cards {
		if i := slices.IndexFunc(cards, func(e models.CardEntry) bool { return e.ID() == id }); i >= 0 {
			return lid, i, true
		}
	}
	return "", -1, false
}

// Card looks up a confirmed card.
func (st State) Card(id string) (models.CardEntry, bool) {
	lid, i, ok := st.LocateCard(id)
	if !ok {
		return models.CardEntry{}, false
	}
	return st.Cards[lid][i], true
}

// CardCount returns the number of cards across all lists.
func (st State) CardCount() int {
	n := 0
	for _, cards := range st.Cards {
		n += len(cards)
	}
	return n
}

// VisibleCards returns the list's cards that match the search query.
func (st State) VisibleCards(listID string) []models.CardEntry {
	if st.Query == "" {
		return st.Cards[listID]
	}
	var out []models.CardEntry
	for _, c := range st.Cards[listID] {
		if c.Row.Matches(st.Query) {
			out = append(out, c)
		}
	}
	return out
}

func sortBoards(boards []models.Board) {
	slices.SortStableFunc(boards, func(a, b models.Board) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}

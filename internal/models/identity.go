package models

import "github.com/google/uuid"

// Identity distinguishes rows the server has confirmed from local placeholders.
//
// The set of implementations is closed: [Confirmed] and [Pending].
type Identity interface {
	// Key is unique across both variants and safe to use as a map key.
	Key() string
	identity()
}

// Confirmed carries an authoritative server id.
type Confirmed struct{ ID string }

// Pending is the placeholder identity of an optimistic create awaiting its authoritative row.
type Pending struct{ LocalID string }

func (c Confirmed) Key() string { return c.ID }
func (p Pending) Key() string { return "pending:" + p.LocalID }
func (Confirmed) identity() {}
func (Pending) identity() {}

// NewPending returns a fresh placeholder identity.
func NewPending() Pending {
	return Pending{LocalID: uuid.NewString()}
}

// SameIdentity reports whether a and b name the same entity.
// A pending identity never equals a confirmed one.
func SameIdentity(a, b Identity) bool {
	switch x := a.(type) {
	case Confirmed:
		y, ok := b.(Confirmed)
		return ok && x.ID == y.ID
	case Pending:
		y, ok := b.(Pending)
		return ok && x.LocalID == y.LocalID
	default:
		return false
	}
}

// Positioned is implemented by rows ordered within a parent.
type Positioned[T any] interface {
	Pos() int
	WithPos(int) T
}

// Entry is a row as held by the client, paired with its identity.
type Entry[T Positioned[T]] struct {
	Identity Identity
	Row      T
}

// ListEntry and CardEntry are the entries the client store holds.
type (
	ListEntry = Entry[List]
	CardEntry = Entry[Card]
)

// ConfirmedEntry wraps an authoritative row.
func ConfirmedEntry[T interface {
	Positioned[T]
	RowID() string
}](row T) Entry[T] {
	return Entry[T]{Identity: Confirmed{ID: row.RowID()}, Row: row}
}

func (e Entry[T]) Pos() int { return e.Row.Pos() }

func (e Entry[T]) WithPos(p int) Entry[T] {
	e.Row = e.Row.WithPos(p)
	return e
}

// ID returns the confirmed server id, or "" while pending.
func (e Entry[T]) ID() string {
	if c, ok := e.Identity.(Confirmed); ok {
		return c.ID
	}
	return ""
}

// IsPending reports whether the entry is an unconfirmed placeholder.
func (e Entry[T]) IsPending() bool {
	_, ok := e.Identity.(Pending)
	return ok
}

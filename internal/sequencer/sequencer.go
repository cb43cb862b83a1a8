// Package sequencer re-derives integer positions for ordered siblings.
//
// Every function is pure: it returns a fresh slice and never modifies its input.
// In every result, element i has position i.
package sequencer

import (
	"slices"
)

// Item is an element ordered within a parent.
type Item[T any] interface {
	Pos() int
	WithPos(int) T
}

// Renumber assigns positions 0..n-1 in slice order.
func Renumber[T Item[T]](items []T) []T {
	out := make([]T, len(items))
	for i, it := range items {
		out[i] = it.WithPos(i)
	}
	return out
}

// Sort orders items by position, keeping arrival order for equal positions.
func Sort[T Item[T]](items []T) []T {
	out := slices.Clone(items)
	slices.SortStableFunc(out, func(a, b T) int { return a.Pos() - b.Pos() })
	return out
}

// Normalize sorts by position and then renumbers, collapsing gaps and duplicates.
func Normalize[T Item[T]](items []T) []T {
	return Renumber(Sort(items))
}

// Append adds item at the end with position len(items).
func Append[T Item[T]](items []T, item T) []T {
	out := slices.Clone(items)
	return append(out, item.WithPos(len(items)))
}

// InsertAt places item at index, clamped to [0, len(items)], and renumbers.
func InsertAt[T Item[T]](items []T, index int, item T) []T {
	index = clamp(index, 0, len(items))
	out := make([]T, 0, len(items)+1)
	out = append(out, items[:index]...)
	out = append(out, item)
	out = append(out, items[index:]...)
	return Renumber(out)
}

// RemoveAt drops the element at index and renumbers the rest. An index out of range
// returns a renumbered copy.
func RemoveAt[T Item[T]](items []T, index int) []T {
	if index < 0 || index >= len(items) {
		return Renumber(items)
	}
	out := make([]T, 0, len(items)-1)
	out = append(out, items[:index]...)
	out = append(out, items[index+1:]...)
	return Renumber(out)
}

// Move relocates the element at from to index to within the same parent.
// The element is removed first, so to is an index into the shortened sequence.
func Move[T Item[T]](items []T, from, to int) []T {
	if from < 0 || from >= len(items) {
		return Renumber(items)
	}
	moved := items[from]
	return InsertAt(RemoveAt(items, from), to, moved)
}

// MoveAcross removes the element at from in src and inserts it into dst at to.
// reparent updates the element's parent reference. Source removal always precedes
// target insertion; both results are renumbered.
func MoveAcross[T Item[T]](src []T, from int, dst []T, to int, reparent func(T) T) (newSrc, newDst []T) {
	if from < 0 || from >= len(src) {
		return Renumber(src), Renumber(dst)
	}
	moved := src[from]
	newSrc = RemoveAt(src, from)
	if reparent != nil {
		moved = reparent(moved)
	}
	newDst = InsertAt(dst, to, moved)
	return newSrc, newDst
}

// Contiguous reports whether positions are exactly 0..n-1 in order.
func Contiguous[T Item[T]](items []T) bool {
	for i, it := range items {
		if it.Pos() != i {
			return false
		}
	}
	return true
}

// Changed returns the elements of after whose position differs from the element
// matched by same in before. Elements with no match in before are included.
func Changed[T Item[T]](before, after []T, same func(a, b T) bool) []T {
	var out []T
	for _, a := range after {
		i := slices.IndexFunc(before, func(b T) bool { return same(a, b) })
		if i < 0 || before[i].Pos() != a.Pos() {
			out = append(out, a)
		}
	}
	return out
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

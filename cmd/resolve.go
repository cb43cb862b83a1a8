package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/kbx/internal/models"
	"github.com/desertthunder/kbx/internal/session"
	"github.com/desertthunder/kbx/internal/shared"
	"github.com/desertthunder/kbx/internal/store"
)

const dueLayout = "2006-01-02"

// findBoard resolves a board by id, then by case-insensitive title.
func findBoard(s *session.Session, ref string) (models.Board, error) {
	if ref == "" {
		return models.Board{}, fmt.Errorf("%w: board", shared.ErrMissingArgument)
	}
	st := s.Store.Snapshot()
	if b, ok := st.Board(ref); ok {
		return b, nil
	}

	var matches []models.Board
	for _, b := range st.Boards {
		if strings.EqualFold(b.Title, ref) {
			matches = append(matches, b)
		}
	}
	switch len(matches) {
	case 0:
		return models.Board{}, fmt.Errorf("%w: %s", shared.ErrBoardNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return models.Board{}, fmt.Errorf("%w: %d boards are titled %q, use an id", shared.ErrInvalidArgument, len(matches), ref)
	}
}

// findList resolves a list of the selected board by id, then by title.
func findList(st store.State, ref string) (models.ListEntry, error) {
	if ref == "" {
		return models.ListEntry{}, fmt.Errorf("%w: list", shared.ErrMissingArgument)
	}
	if l, ok := st.List(ref); ok {
		return l, nil
	}

	var matches []models.ListEntry
	for _, l := range st.Lists {
		if strings.EqualFold(l.Row.Title, ref) {
			matches = append(matches, l)
		}
	}
	switch len(matches) {
	case 0:
		return models.ListEntry{}, fmt.Errorf("%w: %s", shared.ErrListNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return models.ListEntry{}, fmt.Errorf("%w: %d lists are titled %q, use an id", shared.ErrInvalidArgument, len(matches), ref)
	}
}

// findCard resolves a card of the selected board by id, then by title.
func findCard(st store.State, ref string) (models.CardEntry, error) {
	if ref == "" {
		return models.CardEntry{}, fmt.Errorf("%w: card", shared.ErrMissingArgument)
	}
	if c, ok := st.Card(ref); ok {
		return c, nil
	}

	var matches []models.CardEntry
	for _, l := range st.Lists {
		for _, c := range st.ListCards(l.ID()) {
			if strings.EqualFold(c.Row.Title, ref) {
				matches = append(matches, c)
			}
		}
	}
	switch len(matches) {
	case 0:
		return models.CardEntry{}, fmt.Errorf("%w: %s", shared.ErrCardNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return models.CardEntry{}, fmt.Errorf("%w: %d cards are titled %q, use an id", shared.ErrInvalidArgument, len(matches), ref)
	}
}

// parseIndex reads a zero-based position. An empty string means "at the end" and yields end.
func parseIndex(s string, end int) (int, error) {
	if s == "" {
		return end, nil
	}
	i, err := strconv.Atoi(s)
	if err != nil || i < 0 {
		return 0, fmt.Errorf("%w: position must be a non-negative integer, got %q", shared.ErrInvalidArgument, s)
	}
	return i, nil
}

// parseDue reads a YYYY-MM-DD due date.
func parseDue(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dueLayout, s)
	if err != nil {
		return nil, fmt.Errorf("%w: due date must be YYYY-MM-DD, got %q", shared.ErrInvalidFlag, s)
	}
	return &t, nil
}

package models

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/desertthunder/kbx/internal/shared"
)

// ExportVersion is written into every [BoardExport].
const ExportVersion = 1

// BoardExport is a portable snapshot of one board with its lists and cards nested in position order.
//
// Ids are kept for reference only. Restoring a snapshot creates new rows.
type BoardExport struct {
	Version    int            `json:"version" yaml:"version"`
	ExportedAt time.Time      `json:"exported_at" yaml:"exported_at"`
	Board      ExportedBoard  `json:"board" yaml:"board"`
	Lists      []ExportedList `json:"lists" yaml:"lists"`
}

type ExportedBoard struct {
	ID          string `json:"id,omitempty" yaml:"id,omitempty"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

type ExportedList struct {
	ID    string         `json:"id,omitempty" yaml:"id,omitempty"`
	Title string         `json:"title" yaml:"title"`
	Cards []ExportedCard `json:"cards" yaml:"cards"`
}

type ExportedCard struct {
	ID          string     `json:"id,omitempty" yaml:"id,omitempty"`
	Title       string     `json:"title" yaml:"title"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty" yaml:"due_date,omitempty"`
	Labels      []string   `json:"labels,omitempty" yaml:"labels,omitempty"`
}

// NewBoardExport nests cards under their lists. Cards of lists not in lists are dropped.
func NewBoardExport(board Board, lists []List, cards []Card, now time.Time) *BoardExport {
	lists = slices.Clone(lists)
	slices.SortStableFunc(lists, func(a, b List) int { return cmp.Compare(a.Position, b.Position) })

	byList := make(map[string][]Card, len(lists))
	for _, c := range cards {
		byList[c.ListID] = append(byList[c.ListID], c)
	}

	export := &BoardExport{
		Version:    ExportVersion,
		ExportedAt: now.UTC(),
		Board:      ExportedBoard{ID: board.ID, Title: board.Title, Description: board.Description},
		Lists:      make([]ExportedList, 0, len(lists)),
	}
	for _, l := range lists {
		lc := byList[l.ID]
		slices.SortStableFunc(lc, func(a, b Card) int { return cmp.Compare(a.Position, b.Position) })

		el := ExportedList{ID: l.ID, Title: l.Title, Cards: make([]ExportedCard, 0, len(lc))}
		for _, c := range lc {
			el.Cards = append(el.Cards, ExportedCard{
				ID:          c.ID,
				Title:       c.Title,
				Description: c.Description,
				DueDate:     c.DueDate,
				Labels:      c.Labels,
			})
		}
		export.Lists = append(export.Lists, el)
	}
	return export
}

// CardCount returns the number of cards across all lists.
func (e *BoardExport) CardCount() int {
	n := 0
	for _, l := range e.Lists {
		n += len(l.Cards)
	}
	return n
}

// Validate checks a snapshot before it is restored.
func (e *BoardExport) Validate() error {
	if e.Version != ExportVersion {
		return fmt.Errorf("%w: unsupported export version %d", shared.ErrInvalidInput, e.Version)
	}
	if strings.TrimSpace(e.Board.Title) == "" {
		return fmt.Errorf("%w: board title is required", shared.ErrInvalidInput)
	}
	for i, l := range e.Lists {
		if strings.TrimSpace(l.Title) == "" {
			return fmt.Errorf("%w: list %d has no title", shared.ErrInvalidInput, i)
		}
		for j, c := range l.Cards {
			if strings.TrimSpace(c.Title) == "" {
				return fmt.Errorf("%w: card %d of list %q has no title", shared.ErrInvalidInput, j, l.Title)
			}
		}
	}
	return nil
}

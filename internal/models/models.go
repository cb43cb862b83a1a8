package models

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/desertthunder/kbx/internal/shared"
)

// Board is the root of containment. Lists and cards are deleted with it.
type Board struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	UserID      string    `json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// List is an ordered column. Position is zero-based and contiguous within its board.
type List struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	BoardID   string    `json:"board_id"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

// Card is an ordered task. Position is zero-based and contiguous within its list.
type Card struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	ListID      string     `json:"list_id"`
	Position    int        `json:"position"`
	DueDate     *time.Time `json:"due_date"`
	Labels      []string   `json:"labels"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (b Board) RowID() string { return b.ID }
func (b Board) ParentID() string { return b.UserID }
func (l List) RowID() string { return l.ID }
func (l List) ParentID() string { return l.BoardID }
func (c Card) RowID() string { return c.ID }
func (c Card) ParentID() string { return c.ListID }
func (l List) Pos() int { return l.Position }
func (c Card) Pos() int { return c.Position }
func (l List) WithPos(p int) List { l.Position = p; return l }
func (c Card) WithPos(p int) Card { c.Position = p; return c }

// Validate checks required board fields.
func (b Board) Validate() error {
	if strings.TrimSpace(b.Title) == "" {
		return fmt.Errorf("%w: board title is required", shared.ErrInvalidInput)
	}
	if b.UserID == "" {
		return fmt.Errorf("%w: board owner is required", shared.ErrInvalidInput)
	}
	return nil
}

// Validate checks required list fields.
func (l List) Validate() error {
	if strings.TrimSpace(l.Title) == "" {
		return fmt.Errorf("%w: list title is required", shared.ErrInvalidInput)
	}
	if l.BoardID == "" {
		return fmt.Errorf("%w: list board_id is required", shared.ErrInvalidInput)
	}
	if l.Position < 0 {
		return fmt.Errorf("%w: list position cannot be negative", shared.ErrInvalidInput)
	}
	return nil
}

// Validate checks required card fields.
func (c Card) Validate() error {
	if strings.TrimSpace(c.Title) == "" {
		return fmt.Errorf("%w: card title is required", shared.ErrInvalidInput)
	}
	if c.ListID == "" {
		return fmt.Errorf("%w: card list_id is required", shared.ErrInvalidInput)
	}
	if c.Position < 0 {
		return fmt.Errorf("%w: card position cannot be negative", shared.ErrInvalidInput)
	}
	return nil
}

// Normalize returns a copy with a non-nil labels slice that does not alias the receiver's.
func (c Card) Normalize() Card {
	if c.Labels == nil {
		c.Labels = []string{}
	} else {
		c.Labels = slices.Clone(c.Labels)
	}
	return c
}

// Matches reports whether query appears in the card title or description, ignoring case.
func (c Card) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(c.Title), q) || strings.Contains(strings.ToLower(c.Description), q)
}

// NewBoard is the input for creating a board.
type NewBoard struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	UserID      string `json:"user_id"`
}

// Board converts the input into an unsaved row.
func (n NewBoard) Board() Board {
	return Board{Title: n.Title, Description: n.Description, UserID: n.UserID}
}

// NewList is the input for creating a list.
type NewList struct {
	Title    string `json:"title"`
	BoardID  string `json:"board_id"`
	Position int    `json:"position"`
}

// List converts the input into an unsaved row.
func (n NewList) List() List {
	return List{Title: n.Title, BoardID: n.BoardID, Position: n.Position}
}

// NewCard is the input for creating a card.
type NewCard struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	ListID      string     `json:"list_id"`
	Position    int        `json:"position"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Labels      []string   `json:"labels"`
}

// Card converts the input into an unsaved row.
func (n NewCard) Card() Card {
	return Card{
		Title:       n.Title,
		Description: n.Description,
		ListID:      n.ListID,
		Position:    n.Position,
		DueDate:     n.DueDate,
		Labels:      n.Labels,
	}.Normalize()
}

package models

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/desertthunder/kbx/internal/shared"
)

// BoardPatch is a partial board update. Nil fields are left unchanged.
type BoardPatch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

// Apply returns b with the patch applied.
func (p BoardPatch) Apply(b Board) Board {
	if p.Title != nil {
		b.Title = *p.Title
	}
	if p.Description != nil {
		b.Description = *p.Description
	}
	return b
}

// Empty reports whether the patch changes nothing.
func (p BoardPatch) Empty() bool { return p.Title == nil && p.Description == nil }

// ListPatch is a partial list update. Nil fields are left unchanged.
type ListPatch struct {
	Title    *string `json:"title,omitempty"`
	BoardID  *string `json:"board_id,omitempty"`
	Position *int    `json:"position,omitempty"`
}

// Apply returns l with the patch applied.
func (p ListPatch) Apply(l List) List {
	if p.Title != nil {
		l.Title = *p.Title
	}
	if p.BoardID != nil {
		l.BoardID = *p.BoardID
	}
	if p.Position != nil {
		l.Position = *p.Position
	}
	return l
}

// Empty reports whether the patch changes nothing.
func (p ListPatch) Empty() bool { return p.Title == nil && p.BoardID == nil && p.Position == nil }

// CardPatch is a partial card update. Nil fields are left unchanged and ClearDue removes the due date.
type CardPatch struct {
	Title       *string
	Description *string
	ListID      *string
	Position    *int
	DueDate     *time.Time
	ClearDue    bool
	Labels      *[]string
}

// Apply returns c with the patch applied.
func (p CardPatch) Apply(c Card) Card {
	if p.Title != nil {
		c.Title = *p.Title
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.ListID != nil {
		c.ListID = *p.ListID
	}
	if p.Position != nil {
		c.Position = *p.Position
	}
	if p.ClearDue {
		c.DueDate = nil
	} else if p.DueDate != nil {
		due := *p.DueDate
		c.DueDate = &due
	}
	if p.Labels != nil {
		c.Labels = slices.Clone(*p.Labels)
	}
	return c.Normalize()
}

// Empty reports whether the patch changes nothing.
func (p CardPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.ListID == nil && p.Position == nil &&
		p.DueDate == nil && !p.ClearDue && p.Labels == nil
}

// Move is a patch that only changes where the card sits.
func Move(listID string, position int) CardPatch {
	return CardPatch{ListID: &listID, Position: &position}
}

// MarshalJSON encodes only the fields being changed. A cleared due date is sent as null.
func (p CardPatch) MarshalJSON() ([]byte, error) {
	m := map[string]any{}
	if p.Title != nil {
		m["title"] = *p.Title
	}
	if p.Description != nil {
		m["description"] = *p.Description
	}
	if p.ListID != nil {
		m["list_id"] = *p.ListID
	}
	if p.Position != nil {
		m["position"] = *p.Position
	}
	if p.ClearDue {
		m["due_date"] = nil
	} else if p.DueDate != nil {
		m["due_date"] = *p.DueDate
	}
	if p.Labels != nil {
		m["labels"] = *p.Labels
	}
	return json.Marshal(m)
}

// UnmarshalJSON is the inverse of [CardPatch.MarshalJSON].
func (p *CardPatch) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: card patch: %v", shared.ErrInvalidInput, err)
	}

	var out CardPatch
	for key, value := range raw {
		var err error
		switch key {
		case "title":
			out.Title = new(string)
			err = json.Unmarshal(value, out.Title)
		case "description":
			out.Description = new(string)
			err = json.Unmarshal(value, out.Description)
		case "list_id":
			out.ListID = new(string)
			err = json.Unmarshal(value, out.ListID)
		case "position":
			out.Position = new(int)
			err = json.Unmarshal(value, out.Position)
		case "due_date":
			if string(value) == "null" {
				out.ClearDue = true
				continue
			}
			out.DueDate = new(time.Time)
			err = json.Unmarshal(value, out.DueDate)
		case "labels":
			labels := []string{}
			err = json.Unmarshal(value, &labels)
			out.Labels = &labels
		default:
			return fmt.Errorf("%w: unknown card field %q", shared.ErrInvalidInput, key)
		}
		if err != nil {
			return fmt.Errorf("%w: card field %q: %v", shared.ErrInvalidInput, key, err)
		}
	}

	*p = out
	return nil
}

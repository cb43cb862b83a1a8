package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/kbx/internal/models"
)

var (
	_ list.Item = boardItem{}
)

// boardItem wraps [models.Board] to implement [list.Item].
type boardItem struct {
	board models.Board
}

func (i boardItem) FilterValue() string { return i.board.Title }
func (i boardItem) Title() string       { return i.board.Title }
func (i boardItem) Description() string {
	desc := fmt.Sprintf("created %s", i.board.CreatedAt.Format("Jan 2, 2006"))
	if i.board.CreatedAt.IsZero() {
		desc = "new"
	}
	if i.board.Description != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.board.Description)
	}
	return desc
}

func boardItems(boards []models.Board) []list.Item {
	items := make([]list.Item, len(boards))
	for i, b := range boards {
		items[i] = boardItem{board: b}
	}
	return items
}

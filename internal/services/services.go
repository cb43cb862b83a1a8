// package services defines the backend contract the board engine talks to
//
// Remote HTTP + websocket client
package services

import (
	"context"

	"github.com/desertthunder/kbx/internal/models"
)

// Reader fetches authoritative rows. Lists and cards come back ordered by position.
type Reader interface {
	// ListBoards returns the current user's boards.
	ListBoards(ctx context.Context) ([]models.Board, error)

	// ListLists returns the lists of a board.
	ListLists(ctx context.Context, boardID string) ([]models.List, error)

	// ListCards returns the cards of the given lists.
	ListCards(ctx context.Context, listIDs []string) ([]models.Card, error)
}

// Writer persists changes and returns the authoritative row.
type Writer interface {
	InsertBoard(ctx context.Context, in models.NewBoard) (models.Board, error)
	UpdateBoard(ctx context.Context, id string, patch models.BoardPatch) (models.Board, error)
	DeleteBoard(ctx context.Context, id string) error

	InsertList(ctx context.Context, in models.NewList) (models.List, error)
	UpdateList(ctx context.Context, id string, patch models.ListPatch) (models.List, error)
	DeleteList(ctx context.Context, id string) error

	InsertCard(ctx context.Context, in models.NewCard) (models.Card, error)
	UpdateCard(ctx context.Context, id string, patch models.CardPatch) (models.Card, error)
	DeleteCard(ctx context.Context, id string) error
}

// Subscriber opens live change feeds. A feed includes the subscriber's own writes
// and carries no ordering guarantee relative to write responses.
type Subscriber interface {
	Subscribe(ctx context.Context, topic models.Topic) (models.Subscription, error)
}

// Backend is the full storage collaborator.
type Backend interface {
	Reader
	Writer
	Subscriber
}

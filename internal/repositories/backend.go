package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/kbx/internal/feed"
	"github.com/desertthunder/kbx/internal/models"
	"github.com/desertthunder/kbx/internal/shared"
)

// Backend serves one user's boards from SQLite and publishes every write to a change feed.
type Backend struct {
	boards *BoardRepository
	lists  *ListRepository
	cards  *CardRepository
	hub    *feed.Hub
	userID string
	logger *log.Logger
}

// NewBackend creates a backend acting as userID.
func NewBackend(db *sql.DB, hub *feed.Hub, userID string, logger *log.Logger) *Backend {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	if hub == nil {
		hub = feed.NewHub(0, logger)
	}
	return &Backend{
		boards: NewBoardRepository(db),
		lists:  NewListRepository(db),
		cards:  NewCardRepository(db),
		hub:    hub,
		userID: userID,
		logger: shared.WithLogger(logger, "component", "backend"),
	}
}

// WithUser returns a backend sharing storage and feed but acting as another user.
func (b *Backend) WithUser(userID string) *Backend {
	clone := *b
	clone.userID = userID
	return &clone
}

// UserID returns the user the backend acts as.
func (b *Backend) UserID() string { return b.userID }

// Hub returns the change feed writes are published to.
func (b *Backend) Hub() *feed.Hub { return b.hub }

// Cards exposes the card repository for queries outside the [services.Backend] contract.
func (b *Backend) Cards() *CardRepository { return b.cards }

func (b *Backend) ListBoards(ctx context.Context) ([]models.Board, error) {
	return b.boards.ListByUser(ctx, b.userID)
}

func (b *Backend) ListLists(ctx context.Context, boardID string) ([]models.List, error) {
	if _, err := b.ownBoard(ctx, boardID); err != nil {
		return nil, err
	}
	return b.lists.ListByBoard(ctx, boardID)
}

func (b *Backend) ListCards(ctx context.Context, listIDs []string) ([]models.Card, error) {
	for _, id := range listIDs {
		if err := b.ownList(ctx, id); err != nil {
			return nil, err
		}
	}
	return b.cards.ListByLists(ctx, listIDs)
}

func (b *Backend) InsertBoard(ctx context.Context, in models.NewBoard) (models.Board, error) {
	if in.UserID == "" {
		in.UserID = b.userID
	}
	if in.UserID != b.userID {
		return models.Board{}, fmt.Errorf("%w: cannot create boards for another user", shared.ErrInvalidInput)
	}

	board := in.Board()
	if err := b.boards.Create(ctx, &board); err != nil {
		return models.Board{}, err
	}
	b.publish(models.Inserted[models.Board]{Row: board})
	b.logger.Debug("board created", "board", board.ID)
	return board, nil
}

func (b *Backend) UpdateBoard(ctx context.Context, id string, patch models.BoardPatch) (models.Board, error) {
	if _, err := b.ownBoard(ctx, id); err != nil {
		return models.Board{}, err
	}
	board, err := b.boards.Update(ctx, id, patch)
	if err != nil {
		return models.Board{}, err
	}
	b.publish(models.Updated[models.Board]{Row: board})
	return board, nil
}

// DeleteBoard removes a board and publishes deletes for it and everything it contained.
func (b *Backend) DeleteBoard(ctx context.Context, id string) error {
	board, err := b.ownBoard(ctx, id)
	if err != nil {
		return err
	}
	lists, err := b.lists.ListByBoard(ctx, id)
	if err != nil {
		return err
	}
	cards, err := b.cards.ListByLists(ctx, listIDs(lists))
	if err != nil {
		return err
	}

	if err := b.boards.Delete(ctx, id); err != nil {
		return err
	}

	for _, c := range cards {
		b.publish(models.Deleted[models.Card]{ID: c.ID, Old: c})
	}
	for _, l := range lists {
		b.publish(models.Deleted[models.List]{ID: l.ID, Old: l})
	}
	b.publish(models.Deleted[models.Board]{ID: id, Old: board})
	b.logger.Debug("board deleted", "board", id, "lists", len(lists), "cards", len(cards))
	return nil
}

func (b *Backend) InsertList(ctx context.Context, in models.NewList) (models.List, error) {
	if _, err := b.ownBoard(ctx, in.BoardID); err != nil {
		return models.List{}, err
	}
	list := in.List()
	if err := b.lists.Create(ctx, &list); err != nil {
		return models.List{}, err
	}
	b.publish(models.Inserted[models.List]{Row: list})
	return list, nil
}

func (b *Backend) UpdateList(ctx context.Context, id string, patch models.ListPatch) (models.List, error) {
	if err := b.ownList(ctx, id); err != nil {
		return models.List{}, err
	}
	if patch.BoardID != nil {
		if _, err := b.ownBoard(ctx, *patch.BoardID); err != nil {
			return models.List{}, err
		}
	}
	list, err := b.lists.Update(ctx, id, patch)
	if err != nil {
		return models.List{}, err
	}
	b.publish(models.Updated[models.List]{Row: list})
	return list, nil
}

// DeleteList removes a list and publishes deletes for it and its cards.
func (b *Backend) DeleteList(ctx context.Context, id string) error {
	if err := b.ownList(ctx, id); err != nil {
		return err
	}
	list, err := b.lists.Get(ctx, id)
	if err != nil {
		return err
	}
	cards, err := b.cards.ListByLists(ctx, []string{id})
	if err != nil {
		return err
	}

	if err := b.lists.Delete(ctx, id); err != nil {
		return err
	}

	for _, c := range cards {
		b.publish(models.Deleted[models.Card]{ID: c.ID, Old: c})
	}
	b.publish(models.Deleted[models.List]{ID: id, Old: list})
	return nil
}

func (b *Backend) InsertCard(ctx context.Context, in models.NewCard) (models.Card, error) {
	if err := b.ownList(ctx, in.ListID); err != nil {
		return models.Card{}, err
	}
	card := in.Card()
	if err := b.cards.Create(ctx, &card); err != nil {
		return models.Card{}, err
	}
	b.publish(models.Inserted[models.Card]{Row: card})
	return card, nil
}

func (b *Backend) UpdateCard(ctx context.Context, id string, patch models.CardPatch) (models.Card, error) {
	if err := b.ownCard(ctx, id); err != nil {
		return models.Card{}, err
	}
	if patch.ListID != nil {
		if err := b.ownList(ctx, *patch.ListID); err != nil {
			return models.Card{}, err
		}
	}
	card, err := b.cards.Update(ctx, id, patch)
	if err != nil {
		return models.Card{}, err
	}
	b.publish(models.Updated[models.Card]{Row: card})
	return card, nil
}

func (b *Backend) DeleteCard(ctx context.Context, id string) error {
	if err := b.ownCard(ctx, id); err != nil {
		return err
	}
	card, err := b.cards.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := b.cards.Delete(ctx, id); err != nil {
		return err
	}
	b.publish(models.Deleted[models.Card]{ID: id, Old: card})
	return nil
}

// Subscribe opens a feed for topic. The feed only carries changes to the
// backend user's rows, whatever the topic's parent.
func (b *Backend) Subscribe(ctx context.Context, topic models.Topic) (models.Subscription, error) {
	switch topic.Table {
	case models.TableBoards:
		topic.ParentID = b.userID
	case models.TableLists:
		if topic.ParentID != "" {
			if _, err := b.ownBoard(ctx, topic.ParentID); err != nil {
				return nil, err
			}
		}
	case models.TableCards:
		if topic.ParentID != "" {
			if err := b.ownList(ctx, topic.ParentID); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("%w: unknown table %q", shared.ErrInvalidInput, topic.Table)
	}
	return b.hub.SubscribeAs(ctx, b.userID, topic)
}

// publish announces a change to rows of the backend's user.
func (b *Backend) publish(e models.Event) {
	b.hub.PublishAs(b.userID, e)
}

// ownBoard loads a board and hides boards of other users as not found.
func (b *Backend) ownBoard(ctx context.Context, id string) (models.Board, error) {
	board, err := b.boards.Get(ctx, id)
	if err != nil {
		return models.Board{}, fmt.Errorf("%w: %s", err, id)
	}
	if board.UserID != b.userID {
		return models.Board{}, fmt.Errorf("%w: %s", shared.ErrBoardNotFound, id)
	}
	return board, nil
}

func (b *Backend) ownList(ctx context.Context, id string) error {
	owner, err := b.lists.Owner(ctx, id)
	if err != nil {
		return err
	}
	if owner != b.userID {
		return fmt.Errorf("%w: %s", shared.ErrListNotFound, id)
	}
	return nil
}

func (b *Backend) ownCard(ctx context.Context, id string) error {
	owner, err := b.cards.Owner(ctx, id)
	if err != nil {
		return err
	}
	if owner != b.userID {
		return fmt.Errorf("%w: %s", shared.ErrCardNotFound, id)
	}
	return nil
}

func listIDs(lists []models.List) []string {
	ids := make([]string, len(lists))
	for i, l := range lists {
		ids[i] = l.ID
	}
	return ids
}

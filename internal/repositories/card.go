package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/kbx/internal/models"
	"github.com/desertthunder/kbx/internal/shared"
)

const cardColumns = "id, title, description, list_id, position, due_date, labels, created_at, updated_at"

// CardRepository persists cards.
type CardRepository struct {
	db *sql.DB
}

// NewCardRepository creates a new CardRepository with the given database connection
func NewCardRepository(db *sql.DB) *CardRepository {
	return &CardRepository{db: db}
}

// Create inserts a card with a generated ID and timestamps.
func (r *CardRepository) Create(ctx context.Context, card *models.Card) error {
	*card = card.Normalize()
	if err := card.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	labels, err := encodeLabels(card.Labels)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	card.ID = shared.GenerateID()
	card.CreatedAt, card.UpdatedAt = now, now

	query := `INSERT INTO cards (` + cardColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		card.ID,
		card.Title,
		card.Description,
		card.ListID,
		card.Position,
		nullTime(card.DueDate),
		labels,
		card.CreatedAt,
		card.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert card: %w", err)
	}
	return nil
}

// Get retrieves a card by ID.
func (r *CardRepository) Get(ctx context.Context, id string) (models.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE id = ?`
	return r.scan(r.db.QueryRowContext(ctx, query, id))
}

// Update applies patch to the card and returns the stored row.
func (r *CardRepository) Update(ctx context.Context, id string, patch models.CardPatch) (models.Card, error) {
	card, err := r.Get(ctx, id)
	if err != nil {
		return models.Card{}, err
	}

	card = patch.Apply(card)
	if err := card.Validate(); err != nil {
		return models.Card{}, fmt.Errorf("validation failed: %w", err)
	}
	labels, err := encodeLabels(card.Labels)
	if err != nil {
		return models.Card{}, err
	}
	card.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE cards
		SET title = ?, description = ?, list_id = ?, position = ?, due_date = ?, labels = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		card.Title,
		card.Description,
		card.ListID,
		card.Position,
		nullTime(card.DueDate),
		labels,
		card.UpdatedAt,
		id,
	)
	if err != nil {
		return models.Card{}, fmt.Errorf("failed to update card: %w", err)
	}
	if err := checkAffected(result, shared.ErrCardNotFound, id); err != nil {
		return models.Card{}, err
	}
	return card, nil
}

// Delete removes a card.
func (r *CardRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete card: %w", err)
	}
	return checkAffected(result, shared.ErrCardNotFound, id)
}

// ListByLists returns the cards of the given lists ordered by list and position.
func (r *CardRepository) ListByLists(ctx context.Context, listIDs []string) ([]models.Card, error) {
	if len(listIDs) == 0 {
		return []models.Card{}, nil
	}
	query := `SELECT ` + cardColumns + ` FROM cards WHERE list_id IN (` + placeholders(len(listIDs)) + `) ORDER BY list_id, position ASC, created_at ASC`
	return r.query(ctx, query, anyStrings(listIDs)...)
}

// Search returns the cards of a board whose title or description contains term.
func (r *CardRepository) Search(ctx context.Context, boardID, term string) ([]models.Card, error) {
	query := `
		SELECT c.id, c.title, c.description, c.list_id, c.position, c.due_date, c.labels, c.created_at, c.updated_at
		FROM cards c JOIN lists l ON l.id = c.list_id
		WHERE l.board_id = ? AND (c.title LIKE ? OR c.description LIKE ?)
		ORDER BY l.position ASC, c.position ASC
	`
	pattern := "%" + term + "%"
	return r.query(ctx, query, boardID, pattern, pattern)
}

// Owner returns the user owning the card's board.
func (r *CardRepository) Owner(ctx context.Context, id string) (string, error) {
	var userID string
	query := `
		SELECT b.user_id FROM cards c
		JOIN lists l ON l.id = c.list_id
		JOIN boards b ON b.id = l.board_id
		WHERE c.id = ?
	`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", shared.ErrCardNotFound, id)
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up card owner: %w", err)
	}
	return userID, nil
}

func (r *CardRepository) query(ctx context.Context, query string, args ...any) ([]models.Card, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	defer rows.Close()

	cards := []models.Card{}
	for rows.Next() {
		c, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return cards, nil
}

func (r *CardRepository) scan(row scanner) (models.Card, error) {
	var (
		c      models.Card
		due    sql.NullTime
		labels string
	)
	err := row.Scan(&c.ID, &c.Title, &c.Description, &c.ListID, &c.Position, &due, &labels, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Card{}, shared.ErrCardNotFound
	}
	if err != nil {
		return models.Card{}, fmt.Errorf("failed to scan card: %w", err)
	}

	if due.Valid {
		t := due.Time
		c.DueDate = &t
	}
	if c.Labels, err = decodeLabels(labels); err != nil {
		return models.Card{}, err
	}
	return c, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

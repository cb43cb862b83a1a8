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

const listColumns = "id, title, board_id, position, created_at"

// ListRepository persists lists.
type ListRepository struct {
	db *sql.DB
}

// NewListRepository creates a new ListRepository with the given database connection
func NewListRepository(db *sql.DB) *ListRepository {
	return &ListRepository{db: db}
}

// Create inserts a list with a generated ID.
func (r *ListRepository) Create(ctx context.Context, list *models.List) error {
	if err := list.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	list.ID = shared.GenerateID()
	list.CreatedAt = time.Now().UTC()

	query := `INSERT INTO lists (` + listColumns + `) VALUES (?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, list.ID, list.Title, list.BoardID, list.Position, list.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert list: %w", err)
	}
	return nil
}

// Get retrieves a list by ID.
func (r *ListRepository) Get(ctx context.Context, id string) (models.List, error) {
	query := `SELECT ` + listColumns + ` FROM lists WHERE id = ?`
	return r.scan(r.db.QueryRowContext(ctx, query, id))
}

// Update applies patch to the list and returns the stored row.
func (r *ListRepository) Update(ctx context.Context, id string, patch models.ListPatch) (models.List, error) {
	list, err := r.Get(ctx, id)
	if err != nil {
		return models.List{}, err
	}

	list = patch.Apply(list)
	if err := list.Validate(); err != nil {
		return models.List{}, fmt.Errorf("validation failed: %w", err)
	}

	query := `UPDATE lists SET title = ?, board_id = ?, position = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, list.Title, list.BoardID, list.Position, id)
	if err != nil {
		return models.List{}, fmt.Errorf("failed to update list: %w", err)
	}
	if err := checkAffected(result, shared.ErrListNotFound, id); err != nil {
		return models.List{}, err
	}
	return list, nil
}

// Delete removes a list. Its cards go with it.
func (r *ListRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM lists WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete list: %w", err)
	}
	return checkAffected(result, shared.ErrListNotFound, id)
}

// ListByBoard returns a board's lists ordered by position.
func (r *ListRepository) ListByBoard(ctx context.Context, boardID string) ([]models.List, error) {
	query := `SELECT ` + listColumns + ` FROM lists WHERE board_id = ? ORDER BY position ASC, created_at ASC`
	rows, err := r.db.QueryContext(ctx, query, boardID)
	if err != nil {
		return nil, fmt.Errorf("failed to query lists: %w", err)
	}
	defer rows.Close()

	lists := []models.List{}
	for rows.Next() {
		l, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		lists = append(lists, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return lists, nil
}

// Owner returns the user owning the list's board.
func (r *ListRepository) Owner(ctx context.Context, id string) (string, error) {
	var userID string
	query := `SELECT b.user_id FROM lists l JOIN boards b ON b.id = l.board_id WHERE l.id = ?`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", shared.ErrListNotFound, id)
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up list owner: %w", err)
	}
	return userID, nil
}

func (r *ListRepository) scan(row scanner) (models.List, error) {
	var l models.List
	err := row.Scan(&l.ID, &l.Title, &l.BoardID, &l.Position, &l.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.List{}, shared.ErrListNotFound
	}
	if err != nil {
		return models.List{}, fmt.Errorf("failed to scan list: %w", err)
	}
	return l, nil
}

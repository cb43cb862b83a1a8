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

const boardColumns = "id, title, description, user_id, created_at, updated_at"

// BoardRepository persists boards.
type BoardRepository struct {
	db *sql.DB
}

// NewBoardRepository creates a new BoardRepository with the given database connection
func NewBoardRepository(db *sql.DB) *BoardRepository {
	return &BoardRepository{db: db}
}

// Create inserts a board with a generated ID and timestamps.
func (r *BoardRepository) Create(ctx context.Context, board *models.Board) error {
	if err := board.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	board.ID = shared.GenerateID()
	board.CreatedAt, board.UpdatedAt = now, now

	query := `INSERT INTO boards (` + boardColumns + `) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, board.ID, board.Title, nullString(board.Description), board.UserID, board.CreatedAt, board.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert board: %w", err)
	}
	return nil
}

// Get retrieves a board by ID.
func (r *BoardRepository) Get(ctx context.Context, id string) (models.Board, error) {
	query := `SELECT ` + boardColumns + ` FROM boards WHERE id = ?`
	return r.scan(r.db.QueryRowContext(ctx, query, id))
}

// Update applies patch to the board and returns the stored row.
func (r *BoardRepository) Update(ctx context.Context, id string, patch models.BoardPatch) (models.Board, error) {
	board, err := r.Get(ctx, id)
	if err != nil {
		return models.Board{}, err
	}

	board = patch.Apply(board)
	if err := board.Validate(); err != nil {
		return models.Board{}, fmt.Errorf("validation failed: %w", err)
	}
	board.UpdatedAt = time.Now().UTC()

	query := `UPDATE boards SET title = ?, description = ?, updated_at = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, board.Title, nullString(board.Description), board.UpdatedAt, id)
	if err != nil {
		return models.Board{}, fmt.Errorf("failed to update board: %w", err)
	}
	if err := checkAffected(result, shared.ErrBoardNotFound, id); err != nil {
		return models.Board{}, err
	}
	return board, nil
}

// Delete removes a board. Lists and cards go with it.
func (r *BoardRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM boards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete board: %w", err)
	}
	return checkAffected(result, shared.ErrBoardNotFound, id)
}

// ListByUser returns the user's boards, newest first.
func (r *BoardRepository) ListByUser(ctx context.Context, userID string) ([]models.Board, error) {
	query := `SELECT ` + boardColumns + ` FROM boards WHERE user_id = ? ORDER BY created_at DESC, id`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query boards: %w", err)
	}
	defer rows.Close()

	boards := []models.Board{}
	for rows.Next() {
		b, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		boards = append(boards, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return boards, nil
}

// scan reads a board from a single row or a row cursor.
func (r *BoardRepository) scan(row scanner) (models.Board, error) {
	var (
		b           models.Board
		description sql.NullString
	)
	err := row.Scan(&b.ID, &b.Title, &description, &b.UserID, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Board{}, shared.ErrBoardNotFound
	}
	if err != nil {
		return models.Board{}, fmt.Errorf("failed to scan board: %w", err)
	}
	b.Description = description.String
	return b, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

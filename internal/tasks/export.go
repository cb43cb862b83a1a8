package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/kbx/internal/models"
	"github.com/desertthunder/kbx/internal/services"
	"github.com/desertthunder/kbx/internal/shared"
)

// Export fetches a board and everything on it as a snapshot.
func (l *Loader) Export(ctx context.Context, progress chan<- ProgressUpdate, boardID string) (*models.BoardExport, error) {
	boards, err := l.Boards(ctx, progress)
	if err != nil {
		return nil, err
	}

	var board *models.Board
	for i := range boards {
		if boards[i].ID == boardID {
			board = &boards[i]
			break
		}
	}
	if board == nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrBoardNotFound, boardID)
	}

	data, err := l.BoardData(ctx, progress, boardID)
	if err != nil {
		return nil, err
	}
	return models.NewBoardExport(*board, data.Lists, data.Cards, time.Now()), nil
}

// Restore recreates a snapshot as a new board owned by userID.
//
// Rows are created one at a time in snapshot order, so positions come out contiguous. A failure
// part way leaves the rows created so far and returns the partial board with the error.
func Restore(ctx context.Context, writer services.Writer, progress chan<- ProgressUpdate, userID string, export *models.BoardExport) (models.Board, error) {
	if writer == nil {
		return models.Board{}, fmt.Errorf("%w: writer not initialized", shared.ErrServiceUnavailable)
	}
	if err := export.Validate(); err != nil {
		return models.Board{}, err
	}

	total := 1 + len(export.Lists) + export.CardCount()
	step := 0

	board, err := writer.InsertBoard(ctx, models.NewBoard{
		Title:       export.Board.Title,
		Description: export.Board.Description,
		UserID:      userID,
	})
	if err != nil {
		return models.Board{}, fmt.Errorf("failed to create board: %w", err)
	}
	step++
	SendProgress(progress, restoredRowUpdate(step, total, models.TableBoards, board.Title))

	for i, el := range export.Lists {
		list, err := writer.InsertList(ctx, models.NewList{Title: el.Title, BoardID: board.ID, Position: i})
		if err != nil {
			return board, fmt.Errorf("failed to create list %q: %w", el.Title, err)
		}
		step++
		SendProgress(progress, restoredRowUpdate(step, total, models.TableLists, list.Title))

		for j, ec := range el.Cards {
			card, err := writer.InsertCard(ctx, models.NewCard{
				Title:       ec.Title,
				Description: ec.Description,
				ListID:      list.ID,
				Position:    j,
				DueDate:     ec.DueDate,
				Labels:      ec.Labels,
			})
			if err != nil {
				return board, fmt.Errorf("failed to create card %q: %w", ec.Title, err)
			}
			step++
			SendProgress(progress, restoredRowUpdate(step, total, models.TableCards, card.Title))
		}
	}
	return board, nil
}

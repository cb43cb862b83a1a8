package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/desertthunder/kbx/internal/models"
	"github.com/desertthunder/kbx/internal/shared"
	tu "github.com/desertthunder/kbx/internal/testing"
)

func seedBoard(t *testing.T) (*tu.FakeBackend, models.Board, []models.List) {
	t.Helper()
	backend := tu.NewFakeBackend()
	board := backend.SeedBoard(models.Board{Title: "Roadmap"})
	todo := backend.SeedList(models.List{Title: "Todo", BoardID: board.ID, Position: 0})
	done := backend.SeedList(models.List{Title: "Done", BoardID: board.ID, Position: 1})
	backend.SeedCard(models.Card{Title: "a", ListID: todo.ID, Position: 0})
	backend.SeedCard(models.Card{Title: "b", ListID: todo.ID, Position: 1})
	backend.SeedCard(models.Card{Title: "c", ListID: done.ID, Position: 0})
	return backend, board, []models.List{todo, done}
}

func TestPhaseString(t *testing.T) {
	tests := []struct {
		phase Phase
		want  string
	}{
		{FetchBoards, "fetch_boards"},
		{FetchLists, "fetch_lists"},
		{FetchCards, "fetch_cards"},
		{WritePositions, "write_positions"},
		{Resubscribe, "resubscribe"},
		{RestoreBoard, "restore_board"},
		{Phase(99), ""},
	}
	for _, tt := range tests {
		if got := tt.phase.String(); got != tt.want {
			t.Errorf("Phase(%d).String() = %q, want %q", tt.phase, got, tt.want)
		}
	}
}

func TestSendProgress(t *testing.T) {
	t.Run("nil channel", func(t *testing.T) {
		SendProgress(nil, fetchingBoardsUpdate())
	})

	t.Run("full channel does not block", func(t *testing.T) {
		ch := make(chan ProgressUpdate, 1)
		SendProgress(ch, fetchingBoardsUpdate())
		SendProgress(ch, fetchingBoardsUpdate())
		if len(ch) != 1 {
			t.Errorf("expected 1 buffered update, got %d", len(ch))
		}
	})
}

func TestLoader(t *testing.T) {
	ctx := context.Background()

	t.Run("boards", func(t *testing.T) {
		backend, board, _ := seedBoard(t)
		loader := NewLoader(backend, tu.DiscardLogger())
		progress := make(chan ProgressUpdate, 10)

		boards, err := loader.Boards(ctx, progress)
		if err != nil {
			t.Fatalf("Boards failed: %v", err)
		}
		if len(boards) != 1 || boards[0].ID != board.ID {
			t.Errorf("unexpected boards: %+v", boards)
		}
		if len(progress) != 2 {
			t.Errorf("expected 2 progress updates, got %d", len(progress))
		}
	})

	t.Run("board data", func(t *testing.T) {
		backend, board, lists := seedBoard(t)
		loader := NewLoader(backend, tu.DiscardLogger())

		data, err := loader.BoardData(ctx, nil, board.ID)
		if err != nil {
			t.Fatalf("BoardData failed: %v", err)
		}
		if len(data.Lists) != 2 || data.Lists[0].ID != lists[0].ID {
			t.Errorf("unexpected lists: %+v", data.Lists)
		}
		if len(data.Cards) != 3 {
			t.Errorf("expected 3 cards, got %d", len(data.Cards))
		}
	})

	t.Run("empty board skips card query", func(t *testing.T) {
		backend := tu.NewFakeBackend()
		board := backend.SeedBoard(models.Board{Title: "Empty"})
		loader := NewLoader(backend, tu.DiscardLogger())

		data, err := loader.BoardData(ctx, nil, board.ID)
		if err != nil {
			t.Fatalf("BoardData failed: %v", err)
		}
		if data.Cards == nil || len(data.Cards) != 0 {
			t.Errorf("expected empty non-nil cards, got %v", data.Cards)
		}
		if n := backend.Calls("ListCards"); n != 0 {
			t.Errorf("expected no ListCards call, got %d", n)
		}
	})

	t.Run("missing board id", func(t *testing.T) {
		loader := NewLoader(tu.NewFakeBackend(), tu.DiscardLogger())
		_, err := loader.BoardData(ctx, nil, "")
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("read failure", func(t *testing.T) {
		backend, board, _ := seedBoard(t)
		backend.Fail("ListCards", shared.ErrServiceUnavailable)
		loader := NewLoader(backend, tu.DiscardLogger())

		_, err := loader.BoardData(ctx, nil, board.ID)
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("nil reader", func(t *testing.T) {
		loader := NewLoader(nil, tu.DiscardLogger())
		if _, err := loader.Boards(ctx, nil); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}

func TestPositionWriter(t *testing.T) {
	ctx := context.Background()

	t.Run("writes every card", func(t *testing.T) {
		backend, _, lists := seedBoard(t)
		writer := NewPositionWriter(backend, 2, 1000, tu.DiscardLogger())
		cards, _ := backend.ListCards(ctx, []string{lists[0].ID, lists[1].ID})

		moved := make([]models.Card, 0, len(cards))
		for i, c := range cards {
			c.ListID = lists[1].ID
			c.Position = i
			moved = append(moved, c)
		}

		progress := make(chan ProgressUpdate, 10)
		result, err := writer.WriteCards(ctx, progress, moved)
		if err != nil {
			t.Fatalf("WriteCards failed: %v", err)
		}
		if result.Total != 3 || result.Written != 3 || result.Failed() {
			t.Errorf("unexpected result: %+v", result)
		}
		for _, c := range moved {
			stored, _ := backend.StoredCard(c.ID)
			if stored.ListID != lists[1].ID || stored.Position != c.Position {
				t.Errorf("card %s stored at %s/%d, want %s/%d", c.ID, stored.ListID, stored.Position, lists[1].ID, c.Position)
			}
		}
		if len(progress) != 3 {
			t.Errorf("expected 3 progress updates, got %d", len(progress))
		}
	})

	t.Run("writes list positions", func(t *testing.T) {
		backend, _, lists := seedBoard(t)
		writer := NewPositionWriter(backend, 0, 0, tu.DiscardLogger())
		lists[0].Position, lists[1].Position = 1, 0

		if _, err := writer.WriteLists(ctx, nil, lists); err != nil {
			t.Fatalf("WriteLists failed: %v", err)
		}
		if stored, _ := backend.StoredList(lists[0].ID); stored.Position != 1 {
			t.Errorf("expected position 1, got %d", stored.Position)
		}
	})

	t.Run("partial failure attempts every row", func(t *testing.T) {
		backend, _, lists := seedBoard(t)
		writer := NewPositionWriter(backend, 4, 1000, tu.DiscardLogger())
		cards := []models.Card{
			{ID: "c1", ListID: lists[0].ID, Position: 0},
			{ID: "missing", ListID: lists[0].ID, Position: 1},
			{ID: "c2", ListID: lists[0].ID, Position: 2},
		}

		result, err := writer.WriteCards(ctx, nil, cards)
		if !errors.Is(err, shared.ErrPartialWrite) {
			t.Fatalf("expected ErrPartialWrite, got %v", err)
		}
		if result.Written != 2 || len(result.Failures) != 1 || result.Failures[0].ID != "missing" {
			t.Errorf("unexpected result: %+v", result)
		}
		if backend.PatchCount() != 3 {
			t.Errorf("expected 3 attempted writes, got %d", backend.PatchCount())
		}
		if !errors.Is(result.Failures[0].Err, shared.ErrNotFound) {
			t.Errorf("expected not found failure, got %v", result.Failures[0].Err)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		writer := NewPositionWriter(tu.NewFakeBackend(), 1, 1, tu.DiscardLogger())
		result, err := writer.WriteCards(ctx, nil, nil)
		if err != nil || result.Total != 0 {
			t.Errorf("expected empty result, got %+v, %v", result, err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		backend, _, lists := seedBoard(t)
		writer := NewPositionWriter(backend, 1, 1000, tu.DiscardLogger())
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := writer.WriteCards(cancelled, nil, []models.Card{{ID: "c1", ListID: lists[0].ID}})
		if !errors.Is(err, shared.ErrPartialWrite) {
			t.Errorf("expected ErrPartialWrite, got %v", err)
		}
	})

	t.Run("worker bounds", func(t *testing.T) {
		w := NewPositionWriter(nil, 100, -1, tu.DiscardLogger())
		if w.workers != MaxWorkers {
			t.Errorf("expected %d workers, got %d", MaxWorkers, w.workers)
		}
		if float64(w.limit) != DefaultRateLimit {
			t.Errorf("expected default rate limit, got %v", w.limit)
		}
		if _, err := w.WriteLists(ctx, nil, []models.List{{ID: "l1"}}); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}

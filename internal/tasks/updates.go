package tasks

import (
	"fmt"
	"strings"

	"github.com/desertthunder/kbx/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchBoards Phase = iota
	FetchLists
	FetchCards
	WritePositions
	Resubscribe
	RestoreBoard
)

func (p Phase) String() string {
	switch p {
	case FetchBoards:
		return "fetch_boards"
	case FetchLists:
		return "fetch_lists"
	case FetchCards:
		return "fetch_cards"
	case WritePositions:
		return "write_positions"
	case Resubscribe:
		return "resubscribe"
	case RestoreBoard:
		return "restore_board"
	default:
		return ""
	}
}

func fetchingBoardsUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchBoards,
		Step:    1,
		Total:   1,
		Message: "Fetching boards...",
	}
}

func fetchedBoardsUpdate(boards []models.Board) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchBoards,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found %d boards", len(boards)),
		Data:    boards,
	}
}

func fetchingListsUpdate(boardID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchLists,
		Step:    1,
		Total:   2,
		Message: fmt.Sprintf("Fetching lists of board %s...", boardID),
	}
}

func fetchingCardsUpdate(lists int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchCards,
		Step:    2,
		Total:   2,
		Message: fmt.Sprintf("Fetching cards of %d lists...", lists),
	}
}

func positionWrittenUpdate(step, total int, kind models.Table, id string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WritePositions,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Wrote position of %s %s", kind, id),
	}
}

func positionFailedUpdate(step, total int, kind models.Table, id string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WritePositions,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Failed to write position of %s %s: %v", kind, id, err),
		Data:    err,
	}
}

// ResubscribeUpdate reports a reconnect attempt of a live feed.
func ResubscribeUpdate(attempt int, topic models.Topic) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Resubscribe,
		Step:    attempt,
		Message: fmt.Sprintf("Resubscribing to %s (attempt %d)", topic, attempt),
		Data:    topic,
	}
}

func restoredRowUpdate(step, total int, kind models.Table, title string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RestoreBoard,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Created %s %q", strings.TrimSuffix(string(kind), "s"), title),
	}
}

package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Authentication errors
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrInvalidToken     = fmt.Errorf("invalid token")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrNotFound           = fmt.Errorf("not found")
	ErrBoardNotFound      = fmt.Errorf("board %w", ErrNotFound)
	ErrListNotFound       = fmt.Errorf("list %w", ErrNotFound)
	ErrCardNotFound       = fmt.Errorf("card %w", ErrNotFound)

	// Engine errors
	ErrPendingParent      = fmt.Errorf("parent has not been confirmed")
	ErrNoBoardSelected    = fmt.Errorf("no board selected")
	ErrPartialWrite       = fmt.Errorf("one or more writes failed")
	ErrSubscriptionClosed = fmt.Errorf("subscription closed")
	ErrDragInactive       = fmt.Errorf("no drag in progress")
	ErrDragActive         = fmt.Errorf("drag already in progress")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)

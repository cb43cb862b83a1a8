// Package tasks runs the bulk reads and positional writes behind the board engine.
//
// # Loading
//
// [Loader] performs the read side of synchronization:
//
//  1. [Loader.Boards] : the current user's boards
//  2. [Loader.BoardData] : lists of a board, then cards of those lists
//     - Cards are fetched in one query keyed by list ids
//     - A board without lists skips the card query
//
// Errors are returned to the caller untouched apart from context wrapping;
// the session turns them into notifications and keeps its previous state.
//
// # Positional Writes
//
// [PositionWriter] persists a settled order one row per write. Writes run on a
// bounded worker pool and share a [rate.Limiter], so a drop that renumbers a
// long list does not flood the backend. Every row is attempted even when some
// fail; the returned error wraps [shared.ErrPartialWrite] and the
// [WriteResult] lists the rejected rows.
//
// # Snapshots
//
// [Loader.Export] packs a board into a [models.BoardExport]. [Restore] replays a
// snapshot through a writer as a brand new board, creating rows in order so the
// positions it assigns are contiguous from zero.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
package tasks

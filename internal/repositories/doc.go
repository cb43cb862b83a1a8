// Package repositories implements SQLite persistence for boards, lists and cards, and
// the local [Backend] built on top of it.
//
// Key Implementations:
//   - [BoardRepository] : boards scoped by owner, newest first
//   - [ListRepository] : lists of a board ordered by position
//   - [CardRepository] : cards of one or more lists ordered by position, labels stored as JSON text
//   - [Backend] : the storage collaborator used by the engine when running without a server
//
// Deletes are hard deletes. Foreign keys cascade a board delete to its lists and a list
// delete to its cards. Positions are stored as given; renumbering siblings is the
// client's job.
//
// Every write through [Backend] publishes the matching change event on its [feed.Hub],
// including cascaded deletes, so subscribers see their own writes echoed back.
package repositories

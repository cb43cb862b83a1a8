// Package services defines the [Backend] contract the board engine depends on and
// implements it for a remote kbx server.
//
// # Backend Interface
//
// [Backend] is split into [Reader], [Writer] and [Subscriber] so each engine component
// depends only on what it uses. The local SQLite implementation lives in the
// repositories package; [Client] implements the same contract over HTTP.
//
// # Remote Client
//
// [Client] speaks JSON to the server's /api routes. Bearer tokens are attached by an
// [oauth2.Transport] built from a static token source, so the same client works for
// tokens minted by `kbx token`.
//
// Change feeds use a websocket on /api/realtime. Each text frame is one event envelope:
//
//	{"type": "INSERT" | "UPDATE" | "DELETE", "table": "boards" | "lists" | "cards", "new": {...}, "old": {...}}
//
// Frames are decoded with [models.ParseEvent]. Malformed frames are logged and skipped.
// When the socket drops, the subscription's channel closes and Err reports the cause.
//
// # Error Handling
//
// Non-2xx responses become [*APIError], which matches:
//   - [shared.ErrAPIRequest] : always
//   - [shared.ErrNotFound] : 404
//   - [shared.ErrNotAuthenticated] : 401
//   - [shared.ErrInvalidInput] : 400 and 422
package services

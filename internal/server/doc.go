// Package server exposes a board backend over HTTP for remote kbx clients.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
// Middleware only wraps handlers registered after it is added, so [Server] registers the health check before
// the auth middleware.
//
// The [BasicRouter] implementation uses gorilla/mux internally for method matching and path variables.
//
// # Authentication
//
// [Authenticator] verifies HS256 bearer tokens whose subject is the user id. Each request is served by the
// backend scoped to that user, so boards of other users read as not found. Without a configured secret
// every request acts as the configured local user.
//
// # REST Endpoints
//
//	GET    /api/boards              PATCH/DELETE /api/boards/{id}
//	POST   /api/boards              GET          /api/boards/{id}/lists
//	POST   /api/lists               PATCH/DELETE /api/lists/{id}
//	GET    /api/cards?list_id=...   PATCH/DELETE /api/cards/{id}
//	POST   /api/cards               GET          /api/boards/{id}/search?q=...
//
// Errors are JSON objects with a single "error" field. Not found maps to 404, validation to 400 and
// authentication to 401.
//
// # Realtime
//
// [RealtimeHandler] upgrades GET /api/realtime?table=...&parent=... to a websocket and writes each change
// feed event as a JSON text frame. Writes made through the REST endpoints are echoed to every matching
// subscriber, including the client that made them.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server

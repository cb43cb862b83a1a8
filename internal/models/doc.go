// Package models defines the board domain shared by every layer of kbx.
//
// The package contains three groups of types:
//
// 1. Rows: authoritative records as stored by the backend
//   - [Board] : root of containment, owned by a user
//   - [List] : ordered column within a board
//   - [Card] : ordered task within a list
//
// 2. Local bookkeeping
//   - [Identity] : either [Confirmed] (server id) or [Pending] (placeholder for an optimistic create)
//   - [Entry] : a row paired with its identity, as held by the client store
//
// 3. Change events
//   - [Inserted], [Updated], [Deleted] over [Board], [List] and [Card], closed under the [Event] interface
//   - [ParseEvent] / [EncodeEvent] convert to and from the JSON envelope used on the wire
//   - [Topic] and [Subscription] describe a live feed of events
//
// Writes take the partial [BoardPatch], [ListPatch] and [CardPatch] types and the create inputs
// [NewBoard], [NewList] and [NewCard].
package models

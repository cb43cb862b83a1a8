package models

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/desertthunder/kbx/internal/shared"
)

// Table names the kind of row an event carries.
type Table string

const (
	TableBoards Table = "boards"
	TableLists  Table = "lists"
	TableCards  Table = "cards"
)

// Op names the change an event describes.
type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
)

// Row is the closed set of row types carried by events.
type Row interface {
	Board | List | Card
	RowID() string
	ParentID() string
}

// Event is a change notification. The implementations are exactly
// [Inserted], [Updated] and [Deleted] instantiated with [Board], [List] or [Card].
type Event interface {
	Op() Op
	Table() Table
	// EntityID is the id of the row the event is about.
	EntityID() string
	// Parent is the owning id (user, board or list) when the payload carries it.
	Parent() string
	envelope() (envelope, error)
}

// Inserted reports a new row.
type Inserted[T Row] struct{ Row T }

// Updated reports a changed row. Fields lists the JSON keys present in a partial
// payload; nil means Row is complete.
type Updated[T Row] struct {
	Row    T
	Fields []string
}

// Deleted reports a removed row. Old may hold only the id.
type Deleted[T Row] struct {
	ID  string
	Old T
}

func tableOf[T Row]() Table {
	var zero T
	switch any(zero).(type) {
	case Board:
		return TableBoards
	case List:
		return TableLists
	default:
		return TableCards
	}
}

func (Inserted[T]) Op() Op { return OpInsert }
func (Updated[T]) Op() Op { return OpUpdate }
func (Deleted[T]) Op() Op { return OpDelete }
func (Inserted[T]) Table() Table { return tableOf[T]() }
func (Updated[T]) Table() Table { return tableOf[T]() }
func (Deleted[T]) Table() Table { return tableOf[T]() }
func (e Inserted[T]) EntityID() string { return e.Row.RowID() }
func (e Updated[T]) EntityID() string { return e.Row.RowID() }
func (e Deleted[T]) EntityID() string { return e.ID }
func (e Inserted[T]) Parent() string { return e.Row.ParentID() }
func (e Deleted[T]) Parent() string { return e.Old.ParentID() }

func (e Updated[T]) Parent() string {
	if e.Has(parentField[T]()) {
		return e.Row.ParentID()
	}
	return ""
}

// Has reports whether the payload carried the JSON field name.
func (e Updated[T]) Has(field string) bool {
	return e.Fields == nil || slices.Contains(e.Fields, field)
}

// Merge overlays the fields carried by the event onto current.
func (e Updated[T]) Merge(current T) (T, error) {
	if e.Fields == nil {
		return e.Row, nil
	}

	base, err := toFields(current)
	if err != nil {
		return current, err
	}
	incoming, err := toFields(e.Row)
	if err != nil {
		return current, err
	}
	for _, f := range e.Fields {
		if v, ok := incoming[f]; ok {
			base[f] = v
		}
	}

	var merged T
	data, err := json.Marshal(base)
	if err != nil {
		return current, err
	}
	if err := json.Unmarshal(data, &merged); err != nil {
		return current, err
	}
	return merged, nil
}

func parentField[T Row]() string {
	switch tableOf[T]() {
	case TableBoards:
		return "user_id"
	case TableLists:
		return "board_id"
	default:
		return "list_id"
	}
}

func toFields(v any) (map[string]json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// envelope is the wire shape of an event.
type envelope struct {
	Type  Op              `json:"type"`
	Table Table           `json:"table"`
	New   json.RawMessage `json:"new,omitempty"`
	Old   json.RawMessage `json:"old,omitempty"`
}

func (e Inserted[T]) envelope() (envelope, error) {
	data, err := json.Marshal(e.Row)
	return envelope{Type: OpInsert, Table: tableOf[T](), New: data}, err
}

func (e Updated[T]) envelope() (envelope, error) {
	fields, err := toFields(e.Row)
	if err != nil {
		return envelope{}, err
	}
	if e.Fields != nil {
		keep := append(slices.Clone(e.Fields), "id")
		maps.DeleteFunc(fields, func(k string, _ json.RawMessage) bool { return !slices.Contains(keep, k) })
	}
	data, err := json.Marshal(fields)
	return envelope{Type: OpUpdate, Table: tableOf[T](), New: data}, err
}

func (e Deleted[T]) envelope() (envelope, error) {
	fields, err := toFields(e.Old)
	if err != nil {
		return envelope{}, err
	}
	fields["id"], _ = json.Marshal(e.ID)
	data, err := json.Marshal(fields)
	return envelope{Type: OpDelete, Table: tableOf[T](), Old: data}, err
}

// EncodeEvent renders e as a JSON envelope: {"type", "table", "new", "old"}.
func EncodeEvent(e Event) ([]byte, error) {
	env, err := e.envelope()
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s %s event: %w", e.Op(), e.Table(), err)
	}
	return json.Marshal(env)
}

// ParseEvent decodes a JSON envelope into a typed [Event].
func ParseEvent(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: event envelope: %v", shared.ErrInvalidInput, err)
	}

	switch env.Table {
	case TableBoards:
		return parseTyped[Board](env)
	case TableLists:
		return parseTyped[List](env)
	case TableCards:
		return parseTyped[Card](env)
	default:
		return nil, fmt.Errorf("%w: unknown table %q", shared.ErrInvalidInput, env.Table)
	}
}

func parseTyped[T Row](env envelope) (Event, error) {
	switch env.Type {
	case OpInsert:
		row, _, err := decodeRow[T](env.New)
		if err != nil {
			return nil, err
		}
		return Inserted[T]{Row: row}, nil
	case OpUpdate:
		row, fields, err := decodeRow[T](env.New)
		if err != nil {
			return nil, err
		}
		return Updated[T]{Row: row, Fields: fields}, nil
	case OpDelete:
		row, _, err := decodeRow[T](env.Old)
		if err != nil {
			return nil, err
		}
		return Deleted[T]{ID: row.RowID(), Old: row}, nil
	default:
		return nil, fmt.Errorf("%w: unknown event type %q", shared.ErrInvalidInput, env.Type)
	}
}

// decodeRow unmarshals a payload and returns the sorted list of keys it carried.
func decodeRow[T Row](raw json.RawMessage) (T, []string, error) {
	var row T
	if len(raw) == 0 || string(raw) == "null" {
		return row, nil, fmt.Errorf("%w: %s event has no payload", shared.ErrInvalidInput, tableOf[T]())
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return row, nil, fmt.Errorf("%w: %s payload: %v", shared.ErrInvalidInput, tableOf[T](), err)
	}
	if err := json.Unmarshal(raw, &row); err != nil {
		return row, nil, fmt.Errorf("%w: %s payload: %v", shared.ErrInvalidInput, tableOf[T](), err)
	}
	if row.RowID() == "" {
		return row, nil, fmt.Errorf("%w: %s payload is missing id", shared.ErrInvalidInput, tableOf[T]())
	}

	return row, slices.Sorted(maps.Keys(fields)), nil
}

// Topic selects the events a subscriber receives. An empty ParentID matches every row of Table.
type Topic struct {
	Table    Table
	ParentID string
}

// Matches reports whether e belongs to the topic. Events whose payload omits the parent are delivered.
func (t Topic) Matches(e Event) bool {
	if e.Table() != t.Table {
		return false
	}
	if t.ParentID == "" {
		return true
	}
	p := e.Parent()
	return p == "" || p == t.ParentID
}

func (t Topic) String() string {
	if t.ParentID == "" {
		return string(t.Table)
	}
	return fmt.Sprintf("%s:%s", t.Table, t.ParentID)
}

// Subscription is a live feed of events. Events is closed when the feed ends; Err then
// reports why (nil after Close).
type Subscription interface {
	Events() <-chan Event
	Err() error
	Close() error
}

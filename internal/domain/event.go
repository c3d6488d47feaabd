package domain

import "time"

// ChangeKind enumerates record-store mutations relevant to the pipeline.
type ChangeKind string

const (
	ChangeCreated            ChangeKind = "created"
	ChangeUpdated            ChangeKind = "updated"
	ChangeDeleted            ChangeKind = "deleted"
	ChangeCounterIncremented ChangeKind = "counter_incremented"
)

// Valid reports whether k is a known change kind.
func (k ChangeKind) Valid() bool {
	switch k {
	case ChangeCreated, ChangeUpdated, ChangeDeleted, ChangeCounterIncremented:
		return true
	}
	return false
}

// Cursor is an opaque, totally ordered position in the change feed.
// The empty cursor means "from the beginning".
type Cursor string

// ChangeEvent is a record-store mutation notification. Delivery is
// at-least-once; every consumer must be idempotent.
type ChangeEvent struct {
	Cursor     Cursor
	ItemID     string
	Kind       ChangeKind
	OccurredAt time.Time

	// Diff names the fields touched by the mutation (counter name for
	// counter_incremented events). Informational only.
	Diff []string
}

// Validate rejects malformed events. A failed validation is permanent:
// the event is dead-lettered without retry.
func (e ChangeEvent) Validate() error {
	if e.ItemID == "" {
		return InvalidEvent("empty item id")
	}
	if !e.Kind.Valid() {
		return InvalidEvent("unknown change kind " + string(e.Kind))
	}
	return nil
}

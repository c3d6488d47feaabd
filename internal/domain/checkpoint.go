package domain

import "time"

// Component names a pipeline consumer with its own checkpoint cursor.
type Component string

const (
	ComponentIndexWriter Component = "indexwriter"
	ComponentRanking     Component = "ranking"
	ComponentTagImport   Component = "tagimport"
	ComponentReindex     Component = "reindex"
)

// Checkpoint is the durable cursor marking the last successfully processed
// change-feed position for one component. Revision guards compare-and-swap
// updates so concurrent cycle runs cannot regress the cursor.
type Checkpoint struct {
	Component Component `json:"component"`
	Cursor    Cursor    `json:"cursor"`
	Revision  int64     `json:"revision"`
	UpdatedAt time.Time `json:"updated_at"`
}

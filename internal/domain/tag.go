package domain

import "time"

// TagSource records who manages a tag assignment.
type TagSource string

const (
	// TagSourceRule marks manually curated assignments. The importer never
	// adds or removes them.
	TagSourceRule TagSource = "rule"
	// TagSourceImport marks assignments derived by the tag importer.
	TagSourceImport TagSource = "import"
)

// TagAssignment binds one tag to one item with provenance.
type TagAssignment struct {
	ItemID     string
	Tag        string
	Source     TagSource
	AssignedAt time.Time
}

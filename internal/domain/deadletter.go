package domain

import "time"

// DeadLetter is a permanently failed unit of work, set aside for manual
// inspection and excluded from automatic retry.
type DeadLetter struct {
	ID        string
	ItemID    string
	Component Component
	Kind      ChangeKind
	Attempts  int
	LastError string
	CreatedAt time.Time
}

// Alert is the fire-and-forget operator notification emitted when an item is
// dead-lettered. Delivery (chat bot, pager) happens outside the pipeline.
type Alert struct {
	ItemID       string
	Component    Component
	FailureCount int
	LastError    string
}

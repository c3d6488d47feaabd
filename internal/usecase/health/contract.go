package health

import "context"

// IndexPinger checks search index availability.
type IndexPinger interface {
	Ping(ctx context.Context) error
}

// RecordStorePinger checks catalog record store availability.
type RecordStorePinger interface {
	Ping(ctx context.Context) error
}

// Package notify publishes operator alerts to a Redis stream for external
// delivery (chat bridges, pagers). Delivery is fire and forget: a failed
// publish is logged and dropped, never propagated into the pipeline.
package notify

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/storeway/catsync/internal/domain"
)

// publisher is the consumer interface for stream appends (ISP).
type publisher interface {
	XAdd(ctx context.Context, stream string, fields map[string]string) (string, error)
}

// StreamNotifier writes alert events to a single stream.
type StreamNotifier struct {
	pub    publisher
	stream string
	logger *zap.Logger
	now    func() time.Time
}

// NewStreamNotifier creates a notifier publishing to the given stream key.
func NewStreamNotifier(pub publisher, stream string, logger *zap.Logger) *StreamNotifier {
	return &StreamNotifier{pub: pub, stream: stream, logger: logger, now: time.Now}
}

// WithClock overrides the clock (tests).
func (n *StreamNotifier) WithClock(now func() time.Time) *StreamNotifier {
	n.now = now
	return n
}

// Alert publishes one alert event.
func (n *StreamNotifier) Alert(ctx context.Context, a domain.Alert) {
	fields := map[string]string{
		"item_id":       a.ItemID,
		"component":     string(a.Component),
		"failure_count": strconv.Itoa(a.FailureCount),
		"last_error":    a.LastError,
		"at":            n.now().UTC().Format(time.RFC3339),
	}
	id, err := n.pub.XAdd(ctx, n.stream, fields)
	if err != nil {
		n.logger.Error("publish alert",
			zap.String("stream", n.stream),
			zap.String("item_id", a.ItemID),
			zap.Error(err))
		return
	}
	n.logger.Warn("alert published",
		zap.String("stream", n.stream),
		zap.String("entry_id", id),
		zap.String("item_id", a.ItemID),
		zap.Int("failure_count", a.FailureCount))
}

package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/tokenx/internal/ir"
	"github.com/roach88/tokenx/internal/registry"
)

// Source reads the notification log in seq order.
// Implemented by *store.Store.
type Source interface {
	ReadNotifications(ctx context.Context, afterSeq int64, limit int) ([]ir.Notification, error)
}

// DefaultBatchSize is how many notifications Relay reads per query.
const DefaultBatchSize = 500

// Relay redelivers logged notifications to a sink, starting after a
// cursor. It is the recovery path for sinks that missed deliveries while
// offline.
type Relay struct {
	source    Source
	sink      registry.Notifier
	batchSize int
	logger    *slog.Logger
}

// NewRelay creates a relay from source to sink.
func NewRelay(source Source, sink registry.Notifier, logger *slog.Logger) *Relay {
	return &Relay{
		source:    source,
		sink:      sink,
		batchSize: DefaultBatchSize,
		logger:    logger,
	}
}

// Run delivers every notification with seq > afterSeq and returns the seq
// of the last one delivered (afterSeq if none). Delivery stops at the
// first sink error so the returned cursor never skips a notification.
func (r *Relay) Run(ctx context.Context, afterSeq int64) (int64, error) {
	cursor := afterSeq
	for {
		batch, err := r.source.ReadNotifications(ctx, cursor, r.batchSize)
		if err != nil {
			return cursor, fmt.Errorf("relay: %w", err)
		}
		if len(batch) == 0 {
			return cursor, nil
		}

		for _, n := range batch {
			if err := r.sink.Notify(ctx, n); err != nil {
				return cursor, fmt.Errorf("relay seq %d: %w", n.Seq, err)
			}
			cursor = n.Seq
		}

		r.logger.Debug("relay batch delivered",
			"count", len(batch),
			"cursor", cursor,
		)
	}
}

// Package audit keeps a best-effort trail of invoice events. Recording never fails the
// caller: store errors are logged and dropped.
package audit

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type EventType string

const (
	EventGenerated  EventType = "generated"
	EventDownloaded EventType = "downloaded"
	EventEmailed    EventType = "emailed"
)

type Event struct {
	OrderID    string
	Type       EventType
	OccurredAt time.Time
	Metadata   map[string]any
}

type Recorder interface {
	Record(ctx context.Context, e Event)
}

// Log writes events to the structured log and, when DB is set, to invoice_events.
type Log struct {
	DB     *pgxpool.Pool
	Logger *zap.Logger
	Clock  func() time.Time
}

func (l *Log) Record(ctx context.Context, e Event) {
	if e.OccurredAt.IsZero() {
		if l.Clock != nil {
			e.OccurredAt = l.Clock().UTC()
		} else {
			e.OccurredAt = time.Now().UTC()
		}
	}
	logger := l.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("invoice event",
		zap.String("order_id", e.OrderID),
		zap.String("event_type", string(e.Type)),
		zap.Time("occurred_at", e.OccurredAt),
		zap.Any("metadata", e.Metadata),
	)

	if l.DB == nil {
		return
	}
	meta := e.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	_, err := l.DB.Exec(ctx, `
		INSERT INTO invoice_events(order_id, event_type, occurred_at, metadata)
		VALUES ($1, $2, $3, $4)`, e.OrderID, string(e.Type), e.OccurredAt, meta)
	if err != nil {
		logger.Warn("persist invoice event", zap.String("order_id", e.OrderID), zap.Error(err))
	}
}

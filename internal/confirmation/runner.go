package confirmation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	kafkax "github.com/ariefcatur/go-service-orders/internal/kafka"
	"github.com/ariefcatur/go-service-orders/internal/orders"
)

const DefaultTimeout = 2 * time.Minute

// InlineRunner handles confirmations in a background goroutine of the current process.
// The goroutine is detached from the request context and bounded by Timeout.
type InlineRunner struct {
	Orchestrator *Orchestrator
	Timeout      time.Duration
	Logger       *zap.Logger

	wg sync.WaitGroup
}

func (r *InlineRunner) Run(ctx context.Context, e orders.Effect) {
	if !e.Fires() {
		return
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	bg := context.WithoutCancel(ctx)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(bg, timeout)
		defer cancel()
		if err := r.Orchestrator.HandleConfirmed(ctx, e); err != nil && r.Logger != nil {
			r.Logger.Error("confirmation failed", zap.String("order_id", e.OrderID), zap.Error(err))
		}
	}()
}

// Wait blocks until every started confirmation has finished.
func (r *InlineRunner) Wait() { r.wg.Wait() }

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header) error
}

// KafkaRunner hands confirmations to the notifier worker through a topic.
type KafkaRunner struct {
	Producer    Publisher
	ServiceName string
	Sentinel    string
	Clock       func() time.Time
	Logger      *zap.Logger
}

func (r *KafkaRunner) Run(ctx context.Context, e orders.Effect) {
	if !e.Fires() {
		return
	}
	now := time.Now().UTC()
	if r.Clock != nil {
		now = r.Clock().UTC()
	}
	env := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventPaymentConfirmed,
		EventVersion:  1,
		OccurredAt:    now,
		Producer:      r.ServiceName,
		TraceID:       traceID(ctx),
		CorrelationID: e.OrderID,
		Payload: kafkax.MustMarshal(orders.PaymentConfirmedPayload{
			ID:            e.DocumentID,
			OrderID:       e.OrderID,
			PaymentStatus: r.Sentinel,
		}),
	}
	err := r.Producer.Publish(orders.PartitionKey(e.OrderID), kafkax.MustMarshal(env),
		kafkax.EventHeaders(orders.EventPaymentConfirmed, env.EventVersion)...)
	if err != nil && r.Logger != nil {
		r.Logger.Error("publish payment confirmed", zap.String("order_id", e.OrderID), zap.Error(err))
	}
}

func traceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

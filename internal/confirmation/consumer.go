package confirmation

import (
	"context"
	"encoding/json"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/ariefcatur/go-service-orders/internal/kafka"
	"github.com/ariefcatur/go-service-orders/internal/orders"
)

type Deduper interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

// Consumer turns PaymentConfirmed events into orchestrator runs, at most once per event id.
type Consumer struct {
	Orchestrator *Orchestrator
	Dedup        Deduper
	Logger       *zap.Logger
}

// HandleMessage is installed as the Kafka handler. A nil return commits the offset.
func (c *Consumer) HandleMessage(ctx context.Context, m kafkago.Message) error {
	if t := kafkax.HeaderValue(m, kafkax.HeaderEventType); t != "" && t != orders.EventPaymentConfirmed {
		return nil
	}

	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		c.log().Warn("dropping undecodable message", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if env.EventType != orders.EventPaymentConfirmed {
		return nil
	}
	p, err := kafkax.UnwrapPayload[orders.PaymentConfirmedPayload](env.Payload)
	if err != nil {
		c.log().Warn("dropping bad payload", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}

	if c.Dedup != nil {
		fresh, err := c.Dedup.Claim(ctx, env.EventID)
		if err != nil {
			return fmt.Errorf("dedup claim %s: %w", env.EventID, err)
		}
		if !fresh {
			c.log().Debug("duplicate event skipped", zap.String("event_id", env.EventID))
			return nil
		}
	}

	e := orders.Effect{Kind: orders.EffectPaymentConfirmed, DocumentID: p.ID, OrderID: p.OrderID}
	if err := c.Orchestrator.HandleConfirmed(ctx, e); err != nil {
		if c.Dedup != nil {
			if rerr := c.Dedup.Release(context.WithoutCancel(ctx), env.EventID); rerr != nil {
				c.log().Warn("dedup release", zap.String("event_id", env.EventID), zap.Error(rerr))
			}
		}
		return err
	}
	return nil
}

func (c *Consumer) log() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

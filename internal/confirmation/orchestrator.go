// Package confirmation runs what happens after an order's payment is confirmed: invoice
// generation followed by the customer and internal emails.
package confirmation

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ariefcatur/go-service-orders/internal/orders"
)

type OrderLoader interface {
	GetOrder(ctx context.Context, id string) (orders.Order, error)
}

type InvoiceGenerator interface {
	Generate(ctx context.Context, o orders.Order) (string, error)
}

type Notifier interface {
	SendConfirmation(ctx context.Context, o orders.Order, pdfPath string) error
	SendInternalAlert(ctx context.Context, o orders.Order) error
}

type Orchestrator struct {
	Orders   OrderLoader
	Invoices InvoiceGenerator
	Notifier Notifier
	Logger   *zap.Logger
}

// HandleConfirmed loads the order behind e and runs the confirmation steps. Only a failed
// load is returned: invoice and email failures are logged, and the two emails are sent
// independently of each other and of the invoice.
func (c *Orchestrator) HandleConfirmed(ctx context.Context, e orders.Effect) error {
	log := c.log().With(zap.String("order_id", e.OrderID), zap.String("id", e.DocumentID))

	o, err := c.Orders.GetOrder(ctx, e.DocumentID)
	if err != nil {
		return fmt.Errorf("load confirmed order %s: %w", e.DocumentID, err)
	}

	path, err := c.Invoices.Generate(ctx, o)
	if err != nil {
		log.Error("invoice generation failed; emailing without it", zap.Error(err))
		path = ""
	}

	if err := c.Notifier.SendConfirmation(ctx, o, path); err != nil {
		log.Error("customer confirmation email failed", zap.Error(err))
	}
	if err := c.Notifier.SendInternalAlert(ctx, o); err != nil {
		log.Error("internal alert email failed", zap.Error(err))
	}
	log.Info("payment confirmation handled")
	return nil
}

func (c *Orchestrator) log() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

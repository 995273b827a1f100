// Package notify composes and sends the order emails: the customer confirmation, the
// internal ops alert, and the on-demand invoice email.
package notify

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-service-orders/internal/audit"
	"github.com/ariefcatur/go-service-orders/internal/invoice"
	"github.com/ariefcatur/go-service-orders/internal/orders"
)

type Mode string

const (
	ModeLink       Mode = "link"
	ModeAttachment Mode = "attachment"
)

const DefaultSendTimeout = 15 * time.Second

var ErrDispatch = errors.New("email dispatch failed")

var tracer = otel.Tracer("github.com/ariefcatur/go-service-orders/internal/notify")

type Dispatcher struct {
	Transport   Transport
	From        string
	OpsAddress  string
	BaseURL     string
	Brand       string
	Mode        Mode
	SendTimeout time.Duration
	Audit       audit.Recorder
	Logger      *zap.Logger
}

// DownloadLink is the public URL serving the invoice of the order with row id id.
func (d *Dispatcher) DownloadLink(id string) string {
	return strings.TrimRight(d.BaseURL, "/") + "/download-invoice/download/" + id
}

// SendConfirmation emails the customer that their order is confirmed, in the order's
// locale. In attachment mode the invoice at pdfPath is attached; without a file the email
// falls back to the download link.
func (d *Dispatcher) SendConfirmation(ctx context.Context, o orders.Order, pdfPath string) error {
	to := customerEmail(o)
	if to == "" {
		return fmt.Errorf("%w: order %s has no customer email", ErrDispatch, o.OrderID)
	}
	data := d.data(o)
	var attachments []Attachment
	if d.Mode == ModeAttachment && pdfPath != "" {
		data.Attached = true
		attachments = []Attachment{{Path: pdfPath, Filename: invoiceFilename(o.OrderID)}}
	}
	body, err := confirmationTemplate(o.EffectiveLocale()).render(data)
	if err != nil {
		return fmt.Errorf("%w: confirmation template: %v", ErrDispatch, err)
	}
	return d.send(ctx, "confirmation", o.OrderID, Message{
		From:        d.From,
		To:          []string{to},
		Subject:     body.Subject,
		Text:        body.Text,
		HTML:        body.HTML,
		Attachments: attachments,
	})
}

// SendInternalAlert notifies the ops mailbox of a confirmed booking. Always English.
func (d *Dispatcher) SendInternalAlert(ctx context.Context, o orders.Order) error {
	if d.OpsAddress == "" {
		return fmt.Errorf("%w: no ops address configured", ErrDispatch)
	}
	body, err := internalAlertTemplate.render(d.data(o))
	if err != nil {
		return fmt.Errorf("%w: internal template: %v", ErrDispatch, err)
	}
	return d.send(ctx, "internal", o.OrderID, Message{
		From:    d.From,
		To:      []string{d.OpsAddress},
		Subject: body.Subject,
		Text:    body.Text,
		HTML:    body.HTML,
	})
}

// SendInvoiceEmail sends the invoice at pdfPath to the customer as an attachment.
func (d *Dispatcher) SendInvoiceEmail(ctx context.Context, o orders.Order, pdfPath string) error {
	to := customerEmail(o)
	if to == "" {
		return fmt.Errorf("%w: order %s has no customer email", ErrDispatch, o.OrderID)
	}
	if fi, err := os.Stat(pdfPath); err != nil || fi.Size() == 0 {
		return fmt.Errorf("%w: invoice file for order %s is missing", ErrDispatch, o.OrderID)
	}
	body, err := invoiceTemplate.render(d.data(o))
	if err != nil {
		return fmt.Errorf("%w: invoice template: %v", ErrDispatch, err)
	}
	return d.send(ctx, "invoice", o.OrderID, Message{
		From:        d.From,
		To:          []string{to},
		Subject:     body.Subject,
		Text:        body.Text,
		HTML:        body.HTML,
		Attachments: []Attachment{{Path: pdfPath, Filename: invoiceFilename(o.OrderID)}},
	})
}

func (d *Dispatcher) send(ctx context.Context, kind, orderID string, m Message) error {
	timeout := d.SendTimeout
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ctx, span := tracer.Start(ctx, "notify.send")
	span.SetAttributes(attribute.String("email.kind", kind), attribute.String("order.id", orderID))
	defer span.End()

	log := d.log().With(zap.String("kind", kind), zap.String("order_id", orderID), zap.Strings("to", m.To))
	if err := d.Transport.Send(ctx, m); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "send")
		log.Error("email send failed", zap.Error(err))
		return fmt.Errorf("%w: %s email for order %s: %v", ErrDispatch, kind, orderID, err)
	}
	log.Info("email sent")
	if d.Audit != nil {
		d.Audit.Record(ctx, audit.Event{
			OrderID:  orderID,
			Type:     audit.EventEmailed,
			Metadata: map[string]any{"recipient": strings.Join(m.To, ","), "kind": kind},
		})
	}
	return nil
}

func (d *Dispatcher) data(o orders.Order) templateData {
	td := templateData{
		Brand:        d.Brand,
		CustomerName: "Valued Customer",
		OrderID:      o.OrderID,
		DisplayID:    strings.ToUpper(o.OrderID),
		DownloadLink: d.DownloadLink(o.ID),
		ServiceDate:  invoice.FormatDate(o.Date),
		Total:        invoice.FormatCurrency(o.Total, o.CurrencyCode),
		ServiceName:  o.Package.Label(),
	}
	if c := o.Customer; c != nil {
		if c.FullName != "" {
			td.CustomerName = c.FullName
		}
		td.CustomerEmail = c.Email
		td.CustomerPhone = c.CountryCode + c.Phone
	}
	return td
}

func (d *Dispatcher) log() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

func customerEmail(o orders.Order) string {
	if o.Customer == nil {
		return ""
	}
	return strings.TrimSpace(o.Customer.Email)
}

func invoiceFilename(orderID string) string {
	return "invoice-" + orderID + ".pdf"
}

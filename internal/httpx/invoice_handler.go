package httpx

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-service-orders/internal/audit"
	"github.com/ariefcatur/go-service-orders/internal/invoice"
	"github.com/ariefcatur/go-service-orders/internal/notify"
	"github.com/ariefcatur/go-service-orders/internal/orders"
)

type InvoiceHandler struct {
	Orders   *orders.Service
	Invoices *invoice.Generator
	Notifier *notify.Dispatcher
	Audit    audit.Recorder
	Logger   *zap.Logger
}

func (h *InvoiceHandler) Register(r chi.Router) {
	r.Route("/download-invoice", func(r chi.Router) {
		r.Get("/generate/{orderId}", h.generate)
		r.Get("/download/{id}", h.download)
		r.Post("/send-email", h.sendEmail)
	})
}

func (h *InvoiceHandler) generate(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	if err := invoice.ValidateOrderID(orderID); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 45*time.Second)
	defer cancel()

	o, err := h.Orders.GetByOrderID(ctx, orderID)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	if _, err := h.Invoices.Generate(ctx, o); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"message":     "Invoice generated successfully",
		"orderId":     o.OrderID,
		"path":        "/invoices/" + o.OrderID + ".pdf",
		"downloadUrl": "/download-invoice/download/" + o.ID,
	})
}

// download serves the invoice of the order with row id {id}, generating it on first use.
func (h *InvoiceHandler) download(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 45*time.Second)
	defer cancel()

	o, err := h.Orders.Get(ctx, id)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	path, err := h.Invoices.Generate(ctx, o)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	f, err := os.Open(path)
	if err != nil {
		writeError(w, r, h.Logger, fmt.Errorf("open invoice %s: %w", o.OrderID, err))
		return
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		writeError(w, r, h.Logger, fmt.Errorf("stat invoice %s: %w", o.OrderID, err))
		return
	}

	if h.Audit != nil {
		h.Audit.Record(ctx, audit.Event{OrderID: o.OrderID, Type: audit.EventDownloaded})
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=invoice-%s.pdf", o.OrderID))
	http.ServeContent(w, r, "", fi.ModTime(), f)
}

type sendEmailReq struct {
	OrderID string `json:"orderId"`
}

func (h *InvoiceHandler) sendEmail(w http.ResponseWriter, r *http.Request) {
	var req sendEmailReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	req.OrderID = strings.TrimSpace(req.OrderID)
	if err := invoice.ValidateOrderID(req.OrderID); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	o, err := h.Orders.GetByOrderID(ctx, req.OrderID)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	path, err := h.Invoices.Generate(ctx, o)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	if err := h.Notifier.SendInvoiceEmail(ctx, o, path); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Invoice email sent successfully",
		"orderId": o.OrderID,
	})
}

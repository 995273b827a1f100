package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-service-orders/internal/orders"
)

type OrdersHandler struct {
	Service  *orders.Service
	Validate *validator.Validate
	Logger   *zap.Logger
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders/search", h.searchOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Patch("/orders/{id}", h.updateOrder)
}

// createOrder accepts the order either bare or wrapped as {"data": {...}}.
func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, r, h.Logger, fmt.Errorf("%w: read body: %v", orders.ErrValidation, err))
		return
	}
	var in orders.CreateOrderInput
	if err := decodeCreate(raw, &in); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	if err := validateStruct(h.Validate, in); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Service.Create(ctx, in)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"data": o})
}

func decodeCreate(raw []byte, in *orders.CreateOrderInput) error {
	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return fmt.Errorf("%w: invalid json: %v", orders.ErrValidation, err)
	}
	body := raw
	if len(bytes.TrimSpace(wrapper.Data)) > 0 && !bytes.Equal(bytes.TrimSpace(wrapper.Data), []byte("null")) {
		body = wrapper.Data
	}
	if err := json.Unmarshal(body, in); err != nil {
		return fmt.Errorf("%w: invalid json: %v", orders.ErrValidation, err)
	}
	return nil
}

// getOrder resolves {id} as a row id first and then as an order id.
func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Service.Get(ctx, id)
	if errors.Is(err, orders.ErrNotFound) {
		o, err = h.Service.GetByOrderID(ctx, id)
	}
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": o})
}

func (h *OrdersHandler) updateOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var patch orders.OrderPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	if err := validateStruct(h.Validate, patch); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Service.UpdateOrder(ctx, id, patch)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": o})
}

func (h *OrdersHandler) searchOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	res, err := h.Service.Search(ctx, r.URL.Query().Get("query"))
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": res})
}

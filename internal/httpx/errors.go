package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-service-orders/internal/invoice"
	"github.com/ariefcatur/go-service-orders/internal/notify"
	"github.com/ariefcatur/go-service-orders/internal/orders"
)

// errorBody is the JSON error envelope of every endpoint.
type errorBody struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// classify maps a domain error to its HTTP status, a stable code and a client-safe message.
// Only validation errors echo their detail; the rest stay server-side.
func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, orders.ErrValidation):
		return http.StatusBadRequest, "invalid_request", err.Error()
	case errors.Is(err, orders.ErrNotFound):
		return http.StatusNotFound, "not_found", "resource not found"
	case errors.Is(err, orders.ErrAllocationExhausted):
		return http.StatusInternalServerError, "allocation_exhausted", "could not allocate an order id"
	case errors.Is(err, invoice.ErrRender):
		return http.StatusInternalServerError, "render_failed", "failed to generate invoice"
	case errors.Is(err, notify.ErrDispatch):
		return http.StatusInternalServerError, "dispatch_failed", "failed to send email"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout", "request timed out"
	default:
		return http.StatusInternalServerError, "internal", "internal error"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	status, code, msg := classify(err)
	reqID := middleware.GetReqID(r.Context())
	if logger != nil {
		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.String("request_id", reqID),
			zap.Error(err),
		}
		if status >= http.StatusInternalServerError {
			logger.Error("request failed", fields...)
		} else {
			logger.Info("request rejected", fields...)
		}
	}
	writeJSON(w, status, errorBody{Error: code, Message: msg, RequestID: reqID})
}

// decodeJSON reads a JSON body into v. Syntax errors become validation errors.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid json: %v", orders.ErrValidation, err)
	}
	return nil
}

// validateStruct runs the struct tags through validator and reports failures as
// validation errors.
func validateStruct(v *validator.Validate, s any) error {
	if v == nil {
		return nil
	}
	if err := v.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: field %s failed %q", orders.ErrValidation, fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", orders.ErrValidation, err)
	}
	return nil
}

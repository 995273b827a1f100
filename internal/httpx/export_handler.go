package httpx

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-service-orders/internal/export"
)

type ExportHandler struct {
	Exporter *export.Exporter
	Logger   *zap.Logger
}

func (h *ExportHandler) Register(r chi.Router) {
	r.Get("/export-orders/export", h.export)
}

func (h *ExportHandler) export(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rng, err := h.Exporter.Range(q.Get("startDate"), q.Get("endDate"))
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	list, err := h.Exporter.Collect(ctx, rng)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	if truthy(q.Get("preview")) {
		writeJSON(w, http.StatusOK, map[string]int{"count": len(list)})
		return
	}

	// Buffer so a write failure can still be reported as a 500.
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, list); err != nil {
		writeError(w, r, h.Logger, fmt.Errorf("write csv: %w", err))
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename="+h.Exporter.Filename())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "0", "false", "no":
		return false
	default:
		return true
	}
}

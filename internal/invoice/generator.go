package invoice

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ariefcatur/go-service-orders/internal/audit"
	"github.com/ariefcatur/go-service-orders/internal/orders"
)

const DefaultRenderTimeout = 30 * time.Second

// ErrRender wraps every failure that prevented an invoice from being written.
var ErrRender = errors.New("invoice render failed")

var orderIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

var tracer = otel.Tracer("github.com/ariefcatur/go-service-orders/internal/invoice")

// Locker serialises generation of one key across processes.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Generator renders invoices into Dir as {orderId}.pdf. A file that exists is a cache hit
// and is never rendered again until Invalidate removes it.
type Generator struct {
	Dir           string
	Renderer      Renderer
	Locker        Locker
	Audit         audit.Recorder
	Sentinel      string
	// RenderTimeout bounds one render. Output produced after it expires is not written.
	RenderTimeout time.Duration
	Clock         func() time.Time
	Logger        *zap.Logger

	group singleflight.Group
}

// Path is the deterministic location of the invoice for orderID. It does no I/O.
func (g *Generator) Path(orderID string) string {
	return filepath.Join(g.Dir, orderID+".pdf")
}

func (g *Generator) Exists(orderID string) (bool, error) {
	if err := ValidateOrderID(orderID); err != nil {
		return false, err
	}
	fi, err := os.Stat(g.Path(orderID))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat invoice %s: %w", orderID, err)
	}
	return fi.Mode().IsRegular() && fi.Size() > 0, nil
}

// Generate returns the invoice path for o, rendering it first when absent. Concurrent
// callers for the same order share one render.
func (g *Generator) Generate(ctx context.Context, o orders.Order) (string, error) {
	if err := ValidateOrderID(o.OrderID); err != nil {
		return "", err
	}
	if ok, err := g.Exists(o.OrderID); err != nil {
		return "", err
	} else if ok {
		g.log().Debug("invoice cache hit", zap.String("order_id", o.OrderID))
		return g.Path(o.OrderID), nil
	}

	// The shared render outlives any single caller's cancellation.
	renderCtx := context.WithoutCancel(ctx)
	ch := g.group.DoChan(o.OrderID, func() (any, error) {
		return g.generate(renderCtx, o)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (g *Generator) generate(ctx context.Context, o orders.Order) (string, error) {
	path := g.Path(o.OrderID)

	if g.Locker != nil {
		unlock, err := g.Locker.Lock(ctx, o.OrderID)
		if err != nil {
			return "", fmt.Errorf("lock invoice %s: %w", o.OrderID, err)
		}
		defer unlock()
	}
	// The file may have been written since the caller's check.
	if ok, err := g.Exists(o.OrderID); err != nil {
		return "", err
	} else if ok {
		return path, nil
	}

	ctx, cancel := context.WithTimeout(ctx, g.renderTimeout())
	defer cancel()
	ctx, span := tracer.Start(ctx, "invoice.render")
	span.SetAttributes(attribute.String("order.id", o.OrderID))
	defer span.End()

	start := time.Now()
	data, err := g.Renderer.Render(ctx, NewDocument(o, g.Sentinel, g.now()))
	if err == nil && ctx.Err() != nil {
		// A render that finishes after its deadline is discarded.
		err = ctx.Err()
	}
	if err == nil && len(data) == 0 {
		err = errors.New("renderer returned no data")
	}
	if err == nil {
		err = writeAtomic(g.Dir, path, data)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "render")
		g.log().Error("invoice generation failed", zap.String("order_id", o.OrderID), zap.Error(err))
		return "", fmt.Errorf("%w: order %s: %v", ErrRender, o.OrderID, err)
	}

	g.log().Info("invoice generated",
		zap.String("order_id", o.OrderID),
		zap.Int("bytes", len(data)),
		zap.Duration("took", time.Since(start)),
	)
	if g.Audit != nil {
		g.Audit.Record(ctx, audit.Event{OrderID: o.OrderID, Type: audit.EventGenerated})
	}
	return path, nil
}

// Invalidate drops the cached artifact so the next Generate renders again.
func (g *Generator) Invalidate(orderID string) error {
	if err := ValidateOrderID(orderID); err != nil {
		return err
	}
	err := os.Remove(g.Path(orderID))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove invoice %s: %w", orderID, err)
	}
	return nil
}

// ValidateOrderID rejects identifiers that are unsafe to use as file names.
func ValidateOrderID(orderID string) error {
	if !orderIDPattern.MatchString(orderID) {
		return fmt.Errorf("%w: invalid order id %q", orders.ErrValidation, orderID)
	}
	return nil
}

// writeAtomic writes to a temp file in dir and renames it into place, so a reader never
// observes a partial invoice.
func writeAtomic(dir, path string, data []byte) (err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".invoice-*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (g *Generator) renderTimeout() time.Duration {
	if g.RenderTimeout > 0 {
		return g.RenderTimeout
	}
	return DefaultRenderTimeout
}

func (g *Generator) now() time.Time {
	if g.Clock != nil {
		return g.Clock().UTC()
	}
	return time.Now().UTC()
}

func (g *Generator) log() *zap.Logger {
	if g.Logger == nil {
		return zap.NewNop()
	}
	return g.Logger
}

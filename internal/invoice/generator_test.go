package invoice

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-service-orders/internal/audit"
	"github.com/ariefcatur/go-service-orders/internal/orders"
)

type countingRenderer struct {
	calls atomic.Int32
	delay time.Duration
	err   error
	// ignoreCtx makes the delay run to completion even after ctx is done.
	ignoreCtx bool
}

func (r *countingRenderer) Render(ctx context.Context, doc Document) ([]byte, error) {
	r.calls.Add(1)
	if r.delay > 0 && r.ignoreCtx {
		time.Sleep(r.delay)
	} else if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	return []byte("%PDF-1.3 " + doc.OrderID), nil
}

type memAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (m *memAudit) Record(_ context.Context, e audit.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
}

func sampleOrder(id string) orders.Order {
	return orders.Order{
		ID:            "row-" + id,
		OrderID:       id,
		Customer:      &orders.CustomerSnapshot{FullName: "Layla", Email: "l@example.com"},
		Total:         decimal.RequireFromString("157.5"),
		PaymentStatus: orders.SentinelPaid,
		CreatedAt:     time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC),
	}
}

func TestGenerator_RendersOnceThenServesCache(t *testing.T) {
	r := &countingRenderer{}
	rec := &memAudit{}
	g := &Generator{Dir: t.TempDir(), Renderer: r, Audit: rec, Sentinel: orders.SentinelPaid}
	ctx := context.Background()

	ok, err := g.Exists("BS-001")
	require.NoError(t, err)
	assert.False(t, ok)

	p1, err := g.Generate(ctx, sampleOrder("BS-001"))
	require.NoError(t, err)
	p2, err := g.Generate(ctx, sampleOrder("BS-001"))
	require.NoError(t, err)

	assert.Equal(t, p1, p2)
	assert.Equal(t, filepath.Join(g.Dir, "BS-001.pdf"), p1)
	assert.Equal(t, int32(1), r.calls.Load())

	ok, err = g.Exists("BS-001")
	require.NoError(t, err)
	assert.True(t, ok)

	require.Len(t, rec.events, 1)
	assert.Equal(t, audit.EventGenerated, rec.events[0].Type)
}

func TestGenerator_ConcurrentCallersShareOneRender(t *testing.T) {
	r := &countingRenderer{delay: 50 * time.Millisecond}
	g := &Generator{Dir: t.TempDir(), Renderer: r}

	const n = 16
	var wg sync.WaitGroup
	paths := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			paths[i], errs[i] = g.Generate(context.Background(), sampleOrder("BS-007"))
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, g.Path("BS-007"), paths[i])
	}
	assert.Equal(t, int32(1), r.calls.Load())
}

func TestGenerator_FailureLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	r := &countingRenderer{err: errors.New("font missing")}
	g := &Generator{Dir: dir, Renderer: r}

	_, err := g.Generate(context.Background(), sampleOrder("BS-003"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRender)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no final or temp file survives a failed render")

	ok, err := g.Exists("BS-003")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGenerator_RenderTimeout(t *testing.T) {
	r := &countingRenderer{delay: time.Second}
	g := &Generator{Dir: t.TempDir(), Renderer: r, RenderTimeout: 20 * time.Millisecond}

	_, err := g.Generate(context.Background(), sampleOrder("BS-004"))
	assert.ErrorIs(t, err, ErrRender)
}

func TestGenerator_OverrunningRendererWritesNothing(t *testing.T) {
	dir := t.TempDir()
	r := &countingRenderer{delay: 100 * time.Millisecond, ignoreCtx: true}
	g := &Generator{Dir: dir, Renderer: r, RenderTimeout: 20 * time.Millisecond}

	_, err := g.Generate(context.Background(), sampleOrder("BS-015"))
	assert.ErrorIs(t, err, ErrRender)
	ok, err := g.Exists("BS-015")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGenerator_EmptyFileIsNotACacheHit(t *testing.T) {
	r := &countingRenderer{}
	g := &Generator{Dir: t.TempDir(), Renderer: r}
	require.NoError(t, os.WriteFile(g.Path("BS-005"), nil, 0o644))

	ok, err := g.Exists("BS-005")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = g.Generate(context.Background(), sampleOrder("BS-005"))
	require.NoError(t, err)
	assert.Equal(t, int32(1), r.calls.Load())
}

func TestGenerator_InvalidateForcesRerender(t *testing.T) {
	r := &countingRenderer{}
	g := &Generator{Dir: t.TempDir(), Renderer: r}
	ctx := context.Background()

	_, err := g.Generate(ctx, sampleOrder("BS-006"))
	require.NoError(t, err)
	require.NoError(t, g.Invalidate("BS-006"))
	require.NoError(t, g.Invalidate("BS-006"), "invalidating a missing file is fine")
	_, err = g.Generate(ctx, sampleOrder("BS-006"))
	require.NoError(t, err)

	assert.Equal(t, int32(2), r.calls.Load())
}

func TestGenerator_RejectsUnsafeOrderIDs(t *testing.T) {
	g := &Generator{Dir: t.TempDir(), Renderer: &countingRenderer{}}
	for _, id := range []string{"", "../etc/passwd", "a/b", "BS 001", "x.pdf"} {
		_, err := g.Generate(context.Background(), sampleOrder(id))
		assert.ErrorIs(t, err, orders.ErrValidation, id)
	}
}

func TestGenerator_PathIsPure(t *testing.T) {
	g := &Generator{Dir: filepath.Join(t.TempDir(), "not-created")}
	assert.Equal(t, filepath.Join(g.Dir, "BS-010.pdf"), g.Path("BS-010"))
	_, err := os.Stat(g.Dir)
	assert.True(t, os.IsNotExist(err))
}

type fakeLocker struct {
	locked   atomic.Int32
	released atomic.Int32
}

func (l *fakeLocker) Lock(context.Context, string) (func(), error) {
	l.locked.Add(1)
	return func() { l.released.Add(1) }, nil
}

func TestGenerator_UsesLockerAroundRender(t *testing.T) {
	lk := &fakeLocker{}
	g := &Generator{Dir: t.TempDir(), Renderer: &countingRenderer{}, Locker: lk}

	_, err := g.Generate(context.Background(), sampleOrder("BS-011"))
	require.NoError(t, err)
	assert.Equal(t, int32(1), lk.locked.Load())
	assert.Equal(t, int32(1), lk.released.Load())
}

func TestPDFRenderer_ProducesPDF(t *testing.T) {
	o := sampleOrder("BS-012")
	o.Location = &orders.Location{Address: "Dubai, Marina", City: "Dubai"}
	doc := NewDocument(o, orders.SentinelPaid, time.Now())

	data, err := PDFRenderer{Brand: "Service Booking"}.Render(context.Background(), doc)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
	assert.Greater(t, len(data), 500)
}

func TestPDFRenderer_IsDeterministic(t *testing.T) {
	doc := NewDocument(sampleOrder("BS-013"), orders.SentinelPaid, time.Now())
	a, err := PDFRenderer{}.Render(context.Background(), doc)
	require.NoError(t, err)
	b, err := PDFRenderer{}.Render(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestGenerator_EndToEndWithPDFRenderer(t *testing.T) {
	g := &Generator{Dir: t.TempDir(), Renderer: PDFRenderer{Brand: "Service Booking"}, Sentinel: orders.SentinelPaid}
	path, err := g.Generate(context.Background(), sampleOrder("BS-014"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}

func TestPDFRenderer_ArabicCustomerFields(t *testing.T) {
	o := sampleOrder("BS-016")
	o.Customer.FullName = "ليلى حسن"
	o.Location = &orders.Location{Address: "شارع الشيخ زايد", City: "دبي"}
	doc := NewDocument(o, orders.SentinelPaid, time.Now())

	data, err := PDFRenderer{Brand: "Service Booking"}.Render(context.Background(), doc)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
	assert.Contains(t, string(data), "/FontFile2", "the UTF-8 font subset is embedded")
	assert.Contains(t, string(data), "/Identity-H")

	latin, err := PDFRenderer{Brand: "Service Booking"}.Render(context.Background(), NewDocument(sampleOrder("BS-016"), orders.SentinelPaid, time.Now()))
	require.NoError(t, err)
	assert.NotEqual(t, latin, data)
}

func TestHasArabic(t *testing.T) {
	assert.True(t, hasArabic("ليلى حسن"))
	assert.True(t, hasArabic("Villa 12, دبي"))
	assert.False(t, hasArabic("Layla Hassan"))
	assert.False(t, hasArabic(""))
}

func TestPDFRenderer_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := PDFRenderer{}.Render(ctx, NewDocument(sampleOrder("BS-017"), orders.SentinelPaid, time.Now()))
	assert.ErrorIs(t, err, context.Canceled)
}

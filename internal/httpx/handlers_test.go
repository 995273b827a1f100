package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-service-orders/internal/audit"
	"github.com/ariefcatur/go-service-orders/internal/export"
	"github.com/ariefcatur/go-service-orders/internal/invoice"
	"github.com/ariefcatur/go-service-orders/internal/notify"
	"github.com/ariefcatur/go-service-orders/internal/orders"
	"github.com/ariefcatur/go-service-orders/internal/orders/orderstest"
)

type sentMail struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (s *sentMail) Send(_ context.Context, m notify.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, m)
	return nil
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

type testServer struct {
	http.Handler
	store *orderstest.Store
	gen   *invoice.Generator
	mail  *sentMail
	audit *memAudit
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := orderstest.New()
	rec := &memAudit{}
	mail := &sentMail{}
	svc := &orders.Service{
		Repo:      store,
		Customers: &orders.CustomerResolver{Store: store},
		Allocator: &orders.CounterAllocator{Counters: store, Prefix: "BS-", Seed: 1},
		Sentinel:  orders.SentinelPaid,
	}
	gen := &invoice.Generator{
		Dir:      t.TempDir(),
		Renderer: invoice.PDFRenderer{Brand: "Service Booking"},
		Audit:    rec,
		Sentinel: orders.SentinelPaid,
	}
	d := &notify.Dispatcher{
		Transport: mail,
		From:      "noreply@example.com",
		BaseURL:   "https://orders.example.com",
		Brand:     "Service Booking",
		Mode:      notify.ModeLink,
	}
	clock := func() time.Time { return time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC) }

	r := NewRouter(nil)
	(&OrdersHandler{Service: svc, Validate: validator.New()}).Register(r)
	(&InvoiceHandler{Orders: svc, Invoices: gen, Notifier: d, Audit: rec}).Register(r)
	(&ExportHandler{Exporter: &export.Exporter{Repo: store, Clock: clock}}).Register(r)
	return &testServer{Handler: r, store: store, gen: gen, mail: mail, audit: rec}
}

func (s *testServer) do(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

const createBody = `{
	"customer": {"fullName": "Layla Hassan", "email": "layla@example.com", "phone": "501234567", "countryCode": "+971"},
	"date": "2025-01-20",
	"time": "09:00",
	"hours": 4,
	"price": "150",
	"total": "157.50"
}`

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) orders.Order {
	t.Helper()
	var out struct {
		Data orders.Order `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out.Data
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var out errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestCreateOrder_BareAndWrapped(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/orders", createBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decodeData(t, rec)
	assert.Equal(t, "BS-001", first.OrderID)
	assert.Equal(t, orders.StatusPending, first.PaymentStatus)

	rec = s.do(http.MethodPost, "/orders", `{"data": `+createBody+`}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	second := decodeData(t, rec)
	assert.Equal(t, "BS-002", second.OrderID)
	assert.Equal(t, first.CustomerID, second.CustomerID)
}

func TestCreateOrder_Invalid(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/orders", `{"customer": {"fullName": "x"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", decodeError(t, rec).Error)

	rec = s.do(http.MethodPost, "/orders", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, s.store.Len())
}

func TestGetOrder_ByRowIDOrOrderID(t *testing.T) {
	s := newTestServer(t)
	created := decodeData(t, s.do(http.MethodPost, "/orders", createBody))

	rec := s.do(http.MethodGet, "/orders/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.OrderID, decodeData(t, rec).OrderID)

	rec = s.do(http.MethodGet, "/orders/BS-001", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.ID, decodeData(t, rec).ID)

	rec = s.do(http.MethodGet, "/orders/BS-999", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Error)
}

func TestUpdateOrder_PaymentStatus(t *testing.T) {
	s := newTestServer(t)
	created := decodeData(t, s.do(http.MethodPost, "/orders", createBody))

	rec := s.do(http.MethodPatch, "/orders/"+created.ID, `{"paymentStatus": "paid", "locales": "ar"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeData(t, rec)
	assert.Equal(t, "paid", got.PaymentStatus)
	assert.Equal(t, "ar", got.Locale)

	rec = s.do(http.MethodPatch, "/orders/"+created.ID, `{"locales": "fr"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchOrders(t *testing.T) {
	s := newTestServer(t)
	s.do(http.MethodPost, "/orders", createBody)

	rec := s.do(http.MethodGet, "/orders/search?query=ab", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/orders/search?query=BS-001", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Data []orders.SearchResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Data, 1)
	assert.Equal(t, "BS-001", out.Data[0].OrderID)
	assert.Equal(t, "N/A", out.Data[0].Package)
}

func TestInvoice_GenerateThenDownload(t *testing.T) {
	s := newTestServer(t)
	created := decodeData(t, s.do(http.MethodPost, "/orders", createBody))

	rec := s.do(http.MethodGet, "/download-invoice/generate/BS-001", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var gen map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &gen))
	assert.Equal(t, true, gen["success"])
	assert.Equal(t, "BS-001", gen["orderId"])
	assert.Equal(t, "/invoices/BS-001.pdf", gen["path"])
	assert.Equal(t, "/download-invoice/download/"+created.ID, gen["downloadUrl"])

	rec = s.do(http.MethodGet, "/download-invoice/download/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=invoice-BS-001.pdf", rec.Header().Get("Content-Disposition"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))

	var types []audit.EventType
	for _, e := range s.audit.events {
		types = append(types, e.Type)
	}
	assert.Equal(t, []audit.EventType{audit.EventGenerated, audit.EventDownloaded}, types)
}

func TestInvoice_DownloadGeneratesOnDemand(t *testing.T) {
	s := newTestServer(t)
	created := decodeData(t, s.do(http.MethodPost, "/orders", createBody))

	rec := s.do(http.MethodGet, "/download-invoice/download/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	ok, err := s.gen.Exists("BS-001")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestInvoice_Errors(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/download-invoice/generate/BS-404", "").Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/download-invoice/generate/bad.id", "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/download-invoice/download/nope", "").Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/download-invoice/send-email", `{"orderId": ""}`).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, "/download-invoice/send-email", `{"orderId": "BS-404"}`).Code)
}

func TestInvoice_SendEmail(t *testing.T) {
	s := newTestServer(t)
	s.do(http.MethodPost, "/orders", createBody)

	rec := s.do(http.MethodPost, "/download-invoice/send-email", `{"orderId": "BS-001"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Len(t, s.mail.msgs, 1)
	m := s.mail.msgs[0]
	assert.Equal(t, []string{"layla@example.com"}, m.To)
	assert.Equal(t, "Invoice for Order BS-001", m.Subject)
	require.Len(t, m.Attachments, 1)
	assert.Equal(t, s.gen.Path("BS-001"), m.Attachments[0].Path)
}

func TestExport_PreviewAndCSV(t *testing.T) {
	s := newTestServer(t)
	s.store.Seed(orders.Order{OrderID: "BS-001", CreatedAt: time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)})
	s.store.Seed(orders.Order{OrderID: "BS-002", CreatedAt: time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)})
	s.store.Seed(orders.Order{OrderID: "BS-003", CreatedAt: time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)})

	rec := s.do(http.MethodGet, "/export-orders/export?startDate=2025-01-01&endDate=2025-01-31&preview=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count": 2}`, rec.Body.String())

	rec = s.do(http.MethodGet, "/export-orders/export?startDate=2025-01-01&endDate=2025-01-31", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=orders-2025-03-04-05:06:07.csv", rec.Header().Get("Content-Disposition"))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "orderId,package_type,"))
	assert.True(t, strings.HasPrefix(lines[1], "BS-002,"))
	assert.True(t, strings.HasPrefix(lines[2], "BS-001,"))

	rec = s.do(http.MethodGet, "/export-orders/export?startDate=2025-02-01&endDate=2025-01-01", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestTruthy(t *testing.T) {
	for _, v := range []string{"true", "1", "yes", "TRUE"} {
		assert.True(t, truthy(v), v)
	}
	for _, v := range []string{"", "0", "false", "No"} {
		assert.False(t, truthy(v), v)
	}
}

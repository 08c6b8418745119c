package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	auditrepository "github.com/smallbiznis/labdesk/internal/audit/repository"
	auditservice "github.com/smallbiznis/labdesk/internal/audit/service"
	clientdomain "github.com/smallbiznis/labdesk/internal/client/domain"
	clientrepository "github.com/smallbiznis/labdesk/internal/client/repository"
	"github.com/smallbiznis/labdesk/internal/clock"
	"github.com/smallbiznis/labdesk/internal/config"
	"github.com/smallbiznis/labdesk/internal/events"
	invoicerepository "github.com/smallbiznis/labdesk/internal/invoice/repository"
	invoiceservice "github.com/smallbiznis/labdesk/internal/invoice/service"
	ledgerservice "github.com/smallbiznis/labdesk/internal/ledger/service"
	"github.com/smallbiznis/labdesk/internal/locks"
	paymentrepository "github.com/smallbiznis/labdesk/internal/payment/repository"
	paymentservice "github.com/smallbiznis/labdesk/internal/payment/service"
	"github.com/smallbiznis/labdesk/internal/pricing"
	statementservice "github.com/smallbiznis/labdesk/internal/statement/service"
	"github.com/smallbiznis/labdesk/internal/testutil"
	workorderdomain "github.com/smallbiznis/labdesk/internal/workorder/domain"
	workorderrepository "github.com/smallbiznis/labdesk/internal/workorder/repository"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testServer struct {
	router *gin.Engine
	db     *gorm.DB
	node   *snowflake.Node
	now    time.Time
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.OpenTestDB(t)
	node := testutil.NewNode(t)
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	fixed := clock.Fixed{At: now}
	log := zap.NewNop()
	cfg := config.Config{
		DefaultCurrency:      "MXN",
		AdminRateLimit:       100,
		AdminRateLimitWindow: time.Minute,
	}

	prices, err := pricing.New(cfg)
	require.NoError(t, err)

	clientRepo := clientrepository.Provide()
	orderRepo := workorderrepository.Provide()
	invoiceRepo := invoicerepository.Provide()
	paymentRepo := paymentrepository.Provide()
	keyed := locks.New()
	outbox := events.NewOutbox(db, node)

	ledgerSvc := ledgerservice.NewService(ledgerservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Clock: fixed,
	})
	auditSvc := auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Repo:  auditrepository.Provide(),
	})
	invoiceSvc := invoiceservice.NewService(invoiceservice.Params{
		DB:          db,
		Log:         log,
		GenID:       node,
		Clock:       fixed,
		Cfg:         cfg,
		Locks:       keyed,
		Prices:      prices,
		Repo:        invoiceRepo,
		ClientRepo:  clientRepo,
		OrderRepo:   orderRepo,
		PaymentRepo: paymentRepo,
		LedgerSvc:   ledgerSvc,
		AuditSvc:    auditSvc,
		Outbox:      outbox,
	})
	paymentSvc := paymentservice.NewService(paymentservice.Params{
		DB:          db,
		Log:         log,
		GenID:       node,
		Clock:       fixed,
		Locks:       keyed,
		Repo:        paymentRepo,
		ClientRepo:  clientRepo,
		InvoiceRepo: invoiceRepo,
		LedgerSvc:   ledgerSvc,
		AuditSvc:    auditSvc,
		Outbox:      outbox,
	})
	statementSvc := statementservice.NewService(statementservice.Params{
		DB:          db,
		Log:         log,
		ClientRepo:  clientRepo,
		InvoiceRepo: invoiceRepo,
		OrderRepo:   orderRepo,
	})

	srv := NewServer(Params{
		Cfg:          cfg,
		Log:          log,
		DB:           db,
		InvoiceSvc:   invoiceSvc,
		PaymentSvc:   paymentSvc,
		StatementSvc: statementSvc,
		AuditSvc:     auditSvc,
	})
	return &testServer{router: srv.Router(), db: db, node: node, now: now}
}

func (ts *testServer) request(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) seedClientAndOrder(t *testing.T) (snowflake.ID, snowflake.ID) {
	t.Helper()
	client := clientdomain.Client{
		ID:        ts.node.Generate(),
		Name:      "Clinica del Valle",
		CreatedAt: ts.now,
		UpdatedAt: ts.now,
	}
	require.NoError(t, ts.db.Create(&client).Error)

	order := workorderdomain.WorkOrder{
		ID:          ts.node.Generate(),
		ClientID:    client.ID,
		PatientName: "Elena Ruiz",
		WorkType:    "corona_zirconia",
		Status:      workorderdomain.StatusDelivered,
		CreatedAt:   ts.now,
		UpdatedAt:   ts.now,
	}
	require.NoError(t, ts.db.Create(&order).Error)
	return client.ID, order.ID
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Data
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.request(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestInvoiceLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	clientID, orderID := ts.seedClientAndOrder(t)

	rec := ts.request(t, http.MethodPost, "/v1/invoices", gin.H{
		"work_order_id": orderID.String(),
	})
	require.Equal(t, http.StatusOK, rec.Code)
	invoice := decodeData(t, rec)
	invoiceID, ok := invoice["id"].(string)
	require.True(t, ok)
	require.Equal(t, "PENDING", invoice["status"])

	// invoicing the same order again conflicts
	rec = ts.request(t, http.MethodPost, "/v1/invoices", gin.H{
		"work_order_id": orderID.String(),
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.request(t, http.MethodGet, "/v1/invoices/"+invoiceID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.request(t, http.MethodPost, "/v1/payments", gin.H{
		"client_id": clientID.String(),
		"amount":    "2750.00",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.request(t, http.MethodGet, "/v1/invoices/"+invoiceID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "PAID", decodeData(t, rec)["status"])

	rec = ts.request(t, http.MethodGet, "/v1/clients/"+clientID.String()+"/statement", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	statement := decodeData(t, rec)
	lines, ok := statement["lines"].([]any)
	require.True(t, ok)
	require.Len(t, lines, 2)
}

func TestValidationAndNotFoundResponses(t *testing.T) {
	ts := newTestServer(t)
	clientID, _ := ts.seedClientAndOrder(t)

	rec := ts.request(t, http.MethodPost, "/v1/invoices", gin.H{
		"work_order_id": "not-a-number",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.request(t, http.MethodPost, "/v1/invoices", gin.H{
		"work_order_id": ts.node.Generate().String(),
	})
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.request(t, http.MethodPost, "/v1/payments", gin.H{
		"client_id": clientID.String(),
		"amount":    "-10.00",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.request(t, http.MethodGet, "/v1/clients/"+ts.node.Generate().String()+"/statement", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminRoutesAreRateLimited(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := newRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		require.True(t, limiter.Allow("10.0.0.1"))
	}
	require.False(t, limiter.Allow("10.0.0.1"))
	// other callers are unaffected
	require.True(t, limiter.Allow("10.0.0.2"))
}

func TestRateLimiterWindowResets(t *testing.T) {
	limiter := newRateLimiter(1, 10*time.Millisecond)
	require.True(t, limiter.Allow("10.0.0.1"))
	require.False(t, limiter.Allow("10.0.0.1"))
	time.Sleep(25 * time.Millisecond)
	require.True(t, limiter.Allow("10.0.0.1"))
}

func TestEditAmountOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	_, orderID := ts.seedClientAndOrder(t)

	rec := ts.request(t, http.MethodPost, "/v1/invoices", gin.H{
		"work_order_id": orderID.String(),
	})
	require.Equal(t, http.StatusOK, rec.Code)
	invoiceID := decodeData(t, rec)["id"].(string)

	rec = ts.request(t, http.MethodPatch, fmt.Sprintf("/v1/invoices/%s/amount", invoiceID), gin.H{
		"amount": "3100.00",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "3100", decodeData(t, rec)["amount"].(string)[:4])

	rec = ts.request(t, http.MethodPatch, fmt.Sprintf("/v1/invoices/%s/amount", invoiceID), gin.H{
		"amount": "zero pesos",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelAndDeleteOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	_, orderID := ts.seedClientAndOrder(t)

	rec := ts.request(t, http.MethodPost, "/v1/invoices", gin.H{
		"work_order_id": orderID.String(),
	})
	require.Equal(t, http.StatusOK, rec.Code)
	invoiceID := decodeData(t, rec)["id"].(string)

	rec = ts.request(t, http.MethodPost, fmt.Sprintf("/v1/invoices/%s/cancel", invoiceID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.request(t, http.MethodGet, "/v1/invoices/"+invoiceID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "CANCELLED", decodeData(t, rec)["status"])

	rec = ts.request(t, http.MethodDelete, "/v1/invoices/"+invoiceID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.request(t, http.MethodGet, "/v1/invoices/"+invoiceID, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuditLogsOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	_, orderID := ts.seedClientAndOrder(t)

	rec := ts.request(t, http.MethodPost, "/v1/invoices", gin.H{
		"work_order_id": orderID.String(),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.request(t, http.MethodGet, "/v1/audit-logs?action=invoice.create", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	require.Equal(t, "invoice.create", envelope.Data[0]["Action"])
}

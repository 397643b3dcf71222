package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ledgerkit/paytrack/internal/config"
	"github.com/ledgerkit/paytrack/internal/db"
	"github.com/ledgerkit/paytrack/internal/fx"
	"github.com/ledgerkit/paytrack/internal/models"
)

func setupServer(t *testing.T) (http.Handler, *gorm.DB) {
	return setupServerWithProcessor(t, "")
}

func setupServerWithProcessor(t *testing.T, processorURL string) (http.Handler, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	for _, m := range db.Models() {
		if err := conn.AutoMigrate(m); err != nil {
			t.Fatalf("migrate %T: %v", m, err)
		}
	}
	cfg := config.Config{Port: "0", Env: "test", FxTimeout: time.Second, ProcessorBaseURL: processorURL}
	return New(conn, cfg, fx.NewStaticRates(nil)), conn
}

func seedLedger(t *testing.T, conn *gorm.DB) (models.Workspace, models.Invoice, models.Payment) {
	t.Helper()
	ws := models.Workspace{Name: "Acme", BaseCurrency: "USD"}
	if err := conn.Create(&ws).Error; err != nil {
		t.Fatalf("workspace: %v", err)
	}
	inv := models.Invoice{
		WorkspaceID: ws.ID,
		Type:        models.InvoiceTypeReceivable,
		Status:      models.InvoiceStatusApproved,
		Total:       1000,
		Currency:    "USD",
		IssueDate:   time.Now(),
		DueDate:     time.Now().AddDate(0, 1, 0),
	}
	if err := conn.Create(&inv).Error; err != nil {
		t.Fatalf("invoice: %v", err)
	}
	p := models.Payment{
		WorkspaceID: ws.ID,
		Source:      models.PaymentSourceManual,
		Amount:      1000,
		Currency:    "USD",
		Direction:   models.PaymentDirectionReceived,
		Status:      models.PaymentStatusCompleted,
		ReceivedAt:  time.Now(),
	}
	if err := conn.Create(&p).Error; err != nil {
		t.Fatalf("payment: %v", err)
	}
	return ws, inv, p
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoints(t *testing.T) {
	h, _ := setupServer(t)
	for _, path := range []string{"/health", "/healthz"} {
		rr := doJSON(t, h, http.MethodGet, path, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: got %d", path, rr.Code)
		}
	}
}

func TestMatchCreateAndConflict(t *testing.T) {
	h, conn := setupServer(t)
	ws, inv, p := seedLedger(t, conn)

	body := map[string]any{
		"workspace_id": ws.ID,
		"invoice_id":   inv.ID,
		"payment_id":   p.ID,
		"score":        1.0,
	}
	rr := doJSON(t, h, http.MethodPost, "/matches", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: got %d, body %s", rr.Code, rr.Body.String())
	}
	var created models.Match
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Method != models.MatchMethodManual {
		t.Fatalf("expected manual method default, got %s", created.Method)
	}

	// Same payment again: the payment is already matched.
	rr = doJSON(t, h, http.MethodPost, "/matches", body)
	if rr.Code != http.StatusConflict {
		t.Fatalf("duplicate: got %d, body %s", rr.Code, rr.Body.String())
	}
}

func TestMatchCreateValidation(t *testing.T) {
	h, conn := setupServer(t)
	ws, inv, p := seedLedger(t, conn)

	rr := doJSON(t, h, http.MethodPost, "/matches", map[string]any{
		"workspace_id": ws.ID, "invoice_id": inv.ID, "payment_id": p.ID, "score": 2.0,
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad score: got %d", rr.Code)
	}

	rr = doJSON(t, h, http.MethodPost, "/matches", map[string]any{
		"workspace_id": ws.ID, "invoice_id": 9999, "payment_id": p.ID, "score": 1.0,
	})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing invoice: got %d", rr.Code)
	}
}

func TestMatchSuggest(t *testing.T) {
	h, conn := setupServer(t)
	ws, _, p := seedLedger(t, conn)

	rr := doJSON(t, h, http.MethodGet,
		fmt.Sprintf("/matches/suggest?workspace_id=%d&payment_id=%d", ws.ID, p.ID), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("suggest: got %d, body %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Items []struct {
			InvoiceID uint    `json:"invoice_id"`
			Score     float64 `json:"score"`
			Reason    string  `json:"reason"`
		} `json:"items"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Items) != 1 {
		t.Fatalf("expected 1 suggestion, got %d", len(resp.Items))
	}
	if resp.Items[0].Score != 1.0 {
		t.Fatalf("exact amount should score 1.0, got %v", resp.Items[0].Score)
	}
}

func webhookPayload(id, typ string, ws, inv uint, amount float64) map[string]any {
	return map[string]any{
		"id":   id,
		"type": typ,
		"data": map[string]any{
			"amount":      amount,
			"currency":    "USD",
			"occurred_at": time.Now().UTC().Format(time.RFC3339),
			"metadata":    map[string]any{"workspace_id": ws, "invoice_id": inv},
		},
	}
}

func TestWebhookDeliveryIsIdempotent(t *testing.T) {
	h, conn := setupServer(t)
	ws, inv, _ := seedLedger(t, conn)

	payload := webhookPayload("evt_123", "payment.succeeded", ws.ID, inv.ID, 1000)
	for i := 0; i < 2; i++ {
		rr := doJSON(t, h, http.MethodPost, "/webhooks/payments", payload)
		if rr.Code != http.StatusOK {
			t.Fatalf("delivery #%d: got %d, body %s", i+1, rr.Code, rr.Body.String())
		}
	}

	var n int64
	conn.Model(&models.Payment{}).Where("external_id = ?", "evt_123").Count(&n)
	if n != 1 {
		t.Fatalf("expected exactly 1 processor payment, got %d", n)
	}
	conn.Model(&models.Match{}).Count(&n)
	if n != 1 {
		t.Fatalf("expected exactly 1 auto match, got %d", n)
	}

	var reloaded models.Invoice
	if err := conn.First(&reloaded, inv.ID).Error; err != nil {
		t.Fatalf("reload invoice: %v", err)
	}
	if reloaded.Status != models.InvoiceStatusPaid {
		t.Fatalf("expected paid, got %s", reloaded.Status)
	}
}

func TestWebhookAcknowledgesDroppedAndUnknownEvents(t *testing.T) {
	h, conn := setupServer(t)
	ws, inv, _ := seedLedger(t, conn)

	// Unknown event family: acknowledged, never retried.
	rr := doJSON(t, h, http.MethodPost, "/webhooks/payments",
		webhookPayload("evt_x", "customer.created", ws.ID, inv.ID, 10))
	if rr.Code != http.StatusOK {
		t.Fatalf("unknown type: got %d", rr.Code)
	}

	// Unattributable event: dropped but still acknowledged, and counted.
	rr = doJSON(t, h, http.MethodPost, "/webhooks/payments",
		webhookPayload("evt_y", "payment.succeeded", 9999, 0, 10))
	if rr.Code != http.StatusOK {
		t.Fatalf("dropped event: got %d", rr.Code)
	}

	rr = doJSON(t, h, http.MethodGet, "/metrics", nil)
	var metrics map[string]int64
	if err := json.Unmarshal(rr.Body.Bytes(), &metrics); err != nil {
		t.Fatalf("decode metrics: %v", err)
	}
	if metrics["webhook_events_dropped"] != 1 {
		t.Fatalf("expected 1 dropped event, got %d", metrics["webhook_events_dropped"])
	}
}

func TestPaymentRefreshRecomputesInvoice(t *testing.T) {
	processorSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"succeeded"}`))
	}))
	defer processorSrv.Close()

	h, conn := setupServerWithProcessor(t, processorSrv.URL)
	ws := models.Workspace{Name: "Acme", BaseCurrency: "USD", ProcessorAccountID: "acct_1", ProcessorAPIKey: "sk_test"}
	if err := conn.Create(&ws).Error; err != nil {
		t.Fatalf("workspace: %v", err)
	}
	inv := models.Invoice{
		WorkspaceID: ws.ID,
		Type:        models.InvoiceTypeReceivable,
		Status:      models.InvoiceStatusApproved,
		Total:       1000,
		Currency:    "USD",
		IssueDate:   time.Now(),
		DueDate:     time.Now().AddDate(0, 1, 0),
	}
	if err := conn.Create(&inv).Error; err != nil {
		t.Fatalf("invoice: %v", err)
	}
	extID := "evt_pending_1"
	p := models.Payment{
		WorkspaceID: ws.ID,
		Source:      models.PaymentSourceProcessor,
		ExternalID:  &extID,
		Amount:      1000,
		Currency:    "USD",
		Direction:   models.PaymentDirectionReceived,
		Status:      models.PaymentStatusPending,
		ReceivedAt:  time.Now(),
	}
	if err := conn.Create(&p).Error; err != nil {
		t.Fatalf("payment: %v", err)
	}

	rr := doJSON(t, h, http.MethodPost, "/matches", map[string]any{
		"workspace_id": ws.ID, "invoice_id": inv.ID, "payment_id": p.ID, "score": 1.0,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("match: got %d, body %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, h, http.MethodPost,
		fmt.Sprintf("/payments/refresh?workspace_id=%d&id=%d", ws.ID, p.ID), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("refresh: got %d, body %s", rr.Code, rr.Body.String())
	}

	var reloadedPayment models.Payment
	if err := conn.First(&reloadedPayment, p.ID).Error; err != nil {
		t.Fatalf("reload payment: %v", err)
	}
	if reloadedPayment.Status != models.PaymentStatusCompleted {
		t.Fatalf("expected completed payment, got %s", reloadedPayment.Status)
	}
	// The matched invoice must be recomputed in the same operation, not
	// left behind on its pre-refresh status.
	var reloadedInvoice models.Invoice
	if err := conn.First(&reloadedInvoice, inv.ID).Error; err != nil {
		t.Fatalf("reload invoice: %v", err)
	}
	if reloadedInvoice.Status != models.InvoiceStatusPaid {
		t.Fatalf("expected paid invoice after refresh, got %s", reloadedInvoice.Status)
	}
}

func TestPaymentRefreshRejectsManualPayment(t *testing.T) {
	h, conn := setupServer(t)
	ws, _, p := seedLedger(t, conn)

	rr := doJSON(t, h, http.MethodPost,
		fmt.Sprintf("/payments/refresh?workspace_id=%d&id=%d", ws.ID, p.ID), nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got %d, body %s", rr.Code, rr.Body.String())
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h, _ := setupServer(t)
	rr := doJSON(t, h, http.MethodDelete, "/matches", nil)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("got %d", rr.Code)
	}
	if allow := rr.Header().Get("Allow"); allow != "POST" {
		t.Fatalf("Allow header: %q", allow)
	}
}

func TestInvoiceLifecycle(t *testing.T) {
	h, conn := setupServer(t)
	ws := models.Workspace{Name: "Acme", BaseCurrency: "USD"}
	if err := conn.Create(&ws).Error; err != nil {
		t.Fatalf("workspace: %v", err)
	}

	rr := doJSON(t, h, http.MethodPost, "/invoices", map[string]any{
		"workspace_id": ws.ID,
		"type":         "payable",
		"total":        250.0,
		"currency":     "USD",
		"due_date":     time.Now().AddDate(0, 1, 0).Format(time.RFC3339),
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create invoice: got %d, body %s", rr.Code, rr.Body.String())
	}
	var inv models.Invoice
	if err := json.Unmarshal(rr.Body.Bytes(), &inv); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if inv.Status != models.InvoiceStatusDraft {
		t.Fatalf("new invoices start as draft, got %s", inv.Status)
	}

	rr = doJSON(t, h, http.MethodPost,
		fmt.Sprintf("/invoices/approve?workspace_id=%d&id=%d", ws.ID, inv.ID), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("approve: got %d", rr.Code)
	}
	// Approving twice conflicts.
	rr = doJSON(t, h, http.MethodPost,
		fmt.Sprintf("/invoices/approve?workspace_id=%d&id=%d", ws.ID, inv.ID), nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("re-approve: got %d", rr.Code)
	}

	rr = doJSON(t, h, http.MethodPost, "/payments", map[string]any{
		"workspace_id": ws.ID,
		"amount":       250.0,
		"currency":     "USD",
		"direction":    "paid",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create payment: got %d, body %s", rr.Code, rr.Body.String())
	}
	var p models.Payment
	if err := json.Unmarshal(rr.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Status != models.PaymentStatusCompleted {
		t.Fatalf("manual payments default to completed, got %s", p.Status)
	}

	rr = doJSON(t, h, http.MethodPost, "/matches", map[string]any{
		"workspace_id": ws.ID, "invoice_id": inv.ID, "payment_id": p.ID, "score": 1.0,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("match: got %d, body %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, h, http.MethodGet, fmt.Sprintf("/invoices?workspace_id=%d", ws.ID), nil)
	var list struct {
		Items []struct {
			Status    string  `json:"status"`
			Paid      float64 `json:"paid"`
			Remaining float64 `json:"remaining"`
		} `json:"items"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Items) != 1 {
		t.Fatalf("expected 1 invoice, got %d", len(list.Items))
	}
	got := list.Items[0]
	if got.Status != models.InvoiceStatusPaid || got.Paid != 250 || got.Remaining != 0 {
		t.Fatalf("unexpected invoice view: %+v", got)
	}
}

func TestExtractionPromotion(t *testing.T) {
	h, conn := setupServer(t)
	ws := models.Workspace{Name: "Acme", BaseCurrency: "USD"}
	if err := conn.Create(&ws).Error; err != nil {
		t.Fatalf("workspace: %v", err)
	}

	rr := doJSON(t, h, http.MethodPost, "/extractions", map[string]any{
		"workspace_id": ws.ID,
		"vendor_name":  "Cloud Hosting Inc",
		"type":         "payable",
		"total":        99.0,
		"currency":     "USD",
		"confidence":   0.97,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create extraction: got %d, body %s", rr.Code, rr.Body.String())
	}
	var ex models.InvoiceExtraction
	if err := json.Unmarshal(rr.Body.Bytes(), &ex); err != nil {
		t.Fatalf("decode: %v", err)
	}

	promote := map[string]any{"workspace_id": ws.ID, "extraction_id": ex.ID}
	rr = doJSON(t, h, http.MethodPost, "/invoices/from-extraction", promote)
	if rr.Code != http.StatusCreated {
		t.Fatalf("promote: got %d, body %s", rr.Code, rr.Body.String())
	}
	var inv models.Invoice
	if err := json.Unmarshal(rr.Body.Bytes(), &inv); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if inv.Status != models.InvoiceStatusDraft || inv.Total != 99 {
		t.Fatalf("unexpected promoted invoice: %+v", inv)
	}

	// Promoting the same extraction again conflicts.
	rr = doJSON(t, h, http.MethodPost, "/invoices/from-extraction", promote)
	if rr.Code != http.StatusConflict {
		t.Fatalf("re-promote: got %d, body %s", rr.Code, rr.Body.String())
	}
}

func TestDashboardEndpoint(t *testing.T) {
	h, conn := setupServer(t)
	ws, _, _ := seedLedger(t, conn)

	rr := doJSON(t, h, http.MethodGet, fmt.Sprintf("/dashboard?workspace_id=%d", ws.ID), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("dashboard: got %d, body %s", rr.Code, rr.Body.String())
	}
	var kpis struct {
		Currency       string  `json:"currency"`
		ExpectedIn     float64 `json:"expected_in"`
		AmountReceived float64 `json:"amount_received"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &kpis); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if kpis.Currency != "USD" || kpis.ExpectedIn != 1000 || kpis.AmountReceived != 1000 {
		t.Fatalf("unexpected kpis: %+v", kpis)
	}
}

package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fiado/backend/internal/domain"
	"fiado/backend/internal/export"
	"fiado/backend/internal/metrics"
	"fiado/backend/internal/service"
	"fiado/backend/internal/store/memory"
)

const (
	testOwnerPassword   = "owner-pass"
	testCashierPassword = "cashier-pass"
)

// newTestAPI builds a full API over the memory store with an owner and a
// cashier account so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.New()
	m := metrics.New("fiado_http_test")
	svc := service.New(repo, nil, service.WithMetrics(m))
	auth := NewAuthManager(context.Background(), "test-secret-key", time.Hour, repo)
	if err := auth.EnsureOwner(context.Background(), "owner", testOwnerPassword); err != nil {
		t.Fatalf("ensure owner: %v", err)
	}
	if _, err := auth.CreateCashier(context.Background(), domain.CashierCreateRequest{Username: "cajero", Password: testCashierPassword}); err != nil {
		t.Fatalf("create cashier: %v", err)
	}
	return New(svc, auth, m, nil, "*")
}

func tokenFor(t *testing.T, api *API, username string, password string) string {
	t.Helper()
	resp, err := api.auth.Login(context.Background(), domain.LoginRequest{Username: username, Password: password})
	if err != nil {
		t.Fatalf("login %s: %v", username, err)
	}
	return resp.AccessToken
}

func do(t *testing.T, handler http.Handler, method string, path string, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dest); err != nil {
		t.Fatalf("decode body: %v (raw: %s)", err, rec.Body.String())
	}
}

func createProduct(t *testing.T, handler http.Handler, token string, req domain.ProductCreateRequest) domain.Product {
	t.Helper()
	rec := do(t, handler, http.MethodPost, "/api/v1/products", token, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create product: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var body struct {
		Product domain.Product `json:"product"`
	}
	decodeBody(t, rec, &body)
	return body.Product
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	rec := do(t, api.Handler(), http.MethodGet, "/healthz", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	decodeBody(t, rec, &body)
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := do(t, handler, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{Username: "owner", Password: testOwnerPassword})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	decodeBody(t, rec, &resp)
	if resp.AccessToken == "" || resp.Role != domain.RoleOwner {
		t.Fatalf("unexpected login response: %+v", resp)
	}

	rec = do(t, handler, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{Username: "owner", Password: "nope"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", rec.Code)
	}
}

func TestProtectedRouteRequiresToken(t *testing.T) {
	api := newTestAPI(t)
	rec := do(t, api.Handler(), http.MethodGet, "/api/v1/products", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCashierCannotManageCatalog(t *testing.T) {
	api := newTestAPI(t)
	cashier := tokenFor(t, api, "cajero", testCashierPassword)

	rec := do(t, api.Handler(), http.MethodPost, "/api/v1/products", cashier, domain.ProductCreateRequest{Name: "Water", PriceCents: 500})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	rec = do(t, api.Handler(), http.MethodGet, "/api/v1/reports/financial", cashier, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 on reports, got %d", rec.Code)
	}
}

func TestSaleFlowAndStockConflict(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	owner := tokenFor(t, api, "owner", testOwnerPassword)
	cashier := tokenFor(t, api, "cajero", testCashierPassword)
	water := createProduct(t, handler, owner, domain.ProductCreateRequest{Name: "Water", PriceCents: 500, Stock: 10, CriticalStock: 2})

	rec := do(t, handler, http.MethodPost, "/api/v1/sales", cashier, domain.SaleRequest{
		Cart:          []domain.CartLine{{ProductID: water.ID, Qty: 3}},
		PaymentMethod: domain.PaymentCash,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var created struct {
		Sale domain.Sale `json:"sale"`
	}
	decodeBody(t, rec, &created)
	if created.Sale.TotalCents != 1500 {
		t.Fatalf("expected total 1500, got %d", created.Sale.TotalCents)
	}

	rec = do(t, handler, http.MethodGet, "/api/v1/sales/"+created.Sale.ID, cashier, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for sale details, got %d", rec.Code)
	}

	rec = do(t, handler, http.MethodPost, "/api/v1/sales", cashier, domain.SaleRequest{
		Cart:          []domain.CartLine{{ProductID: water.ID, Qty: 8}},
		PaymentMethod: domain.PaymentCash,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for insufficient stock, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = do(t, handler, http.MethodGet, "/api/v1/products/"+water.ID, cashier, nil)
	var fetched struct {
		Product domain.Product `json:"product"`
	}
	decodeBody(t, rec, &fetched)
	if fetched.Product.Stock != 7 {
		t.Fatalf("expected stock 7, got %d", fetched.Product.Stock)
	}
}

func TestOnAccountSaleOverLimitReturns422(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	owner := tokenFor(t, api, "owner", testOwnerPassword)
	water := createProduct(t, handler, owner, domain.ProductCreateRequest{Name: "Water", PriceCents: 3000, Stock: 10})

	rec := do(t, handler, http.MethodPost, "/api/v1/clients", owner, domain.ClientCreateRequest{Name: "Jane", CreditLimitCents: 5000})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create client: expected 201, got %d", rec.Code)
	}
	var client struct {
		Client domain.Client `json:"client"`
	}
	decodeBody(t, rec, &client)

	rec = do(t, handler, http.MethodPost, "/api/v1/sales/on-account", owner, domain.OnAccountSaleRequest{
		ClientID: client.Client.ID,
		Cart:     []domain.CartLine{{ProductID: water.ID, Qty: 2}},
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var body map[string]any
	decodeBody(t, rec, &body)
	if body["attempted_cents"] != float64(6000) || body["limit_cents"] != float64(5000) {
		t.Fatalf("unexpected error body: %v", body)
	}
}

func TestValidationErrorsCarryDetails(t *testing.T) {
	api := newTestAPI(t)
	owner := tokenFor(t, api, "owner", testOwnerPassword)

	rec := do(t, api.Handler(), http.MethodPost, "/api/v1/products", owner, domain.ProductCreateRequest{PriceCents: -5})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body struct {
		Error   string `json:"error"`
		Details []struct {
			Field string `json:"field"`
		} `json:"details"`
	}
	decodeBody(t, rec, &body)
	if len(body.Details) < 2 {
		t.Fatalf("expected field details, got %+v", body)
	}
}

func TestUnknownFieldsAreRejected(t *testing.T) {
	api := newTestAPI(t)
	owner := tokenFor(t, api, "owner", testOwnerPassword)

	rec := do(t, api.Handler(), http.MethodPost, "/api/v1/expenses", owner, map[string]any{"description": "Luz", "amount_cents": 100, "tip": 1})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestMissingEntitiesReturn404(t *testing.T) {
	api := newTestAPI(t)
	owner := tokenFor(t, api, "owner", testOwnerPassword)
	handler := api.Handler()

	for _, path := range []string{"/api/v1/products/prod-missing", "/api/v1/sales/sale-missing", "/api/v1/clients/cli-missing", "/api/v1/shifts/active/stats"} {
		rec := do(t, handler, http.MethodGet, path, owner, nil)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, rec.Code)
		}
	}
}

func TestShiftLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	cashier := tokenFor(t, api, "cajero", testCashierPassword)

	rec := do(t, handler, http.MethodPost, "/api/v1/shifts/open", cashier, domain.ShiftOpenRequest{OpeningCashCents: 10000, CashierName: "Ana"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("open: expected 201, got %d", rec.Code)
	}
	rec = do(t, handler, http.MethodPost, "/api/v1/shifts/open", cashier, domain.ShiftOpenRequest{OpeningCashCents: 10000, CashierName: "Luis"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("second open: expected 409, got %d", rec.Code)
	}

	rec = do(t, handler, http.MethodPost, "/api/v1/shifts/close", cashier, domain.ShiftCloseRequest{CountedCashCents: 9000})
	if rec.Code != http.StatusOK {
		t.Fatalf("close: expected 200, got %d", rec.Code)
	}
	var pending domain.ShiftCloseResult
	decodeBody(t, rec, &pending)
	if pending.Closed || pending.DiscrepancyCents != -1000 {
		t.Fatalf("expected pending close with -1000, got %+v", pending)
	}

	rec = do(t, handler, http.MethodPost, "/api/v1/shifts/close", cashier, domain.ShiftCloseRequest{CountedCashCents: 9000, Confirm: true})
	var closed domain.ShiftCloseResult
	decodeBody(t, rec, &closed)
	if !closed.Closed {
		t.Fatalf("expected confirmed close, got %+v", closed)
	}

	rec = do(t, handler, http.MethodGet, "/api/v1/shifts/active", cashier, nil)
	var active map[string]any
	decodeBody(t, rec, &active)
	if active["shift"] != nil {
		t.Fatalf("expected no active shift, got %v", active["shift"])
	}
}

func TestFinancialReportExportsWorkbook(t *testing.T) {
	api := newTestAPI(t)
	owner := tokenFor(t, api, "owner", testOwnerPassword)

	rec := do(t, api.Handler(), http.MethodGet, "/api/v1/reports/financial?format=xlsx&start=2024-01-01&end=2024-01-31", owner, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != export.ContentType {
		t.Fatalf("expected xlsx content type, got %q", got)
	}
	if rec.Body.Len() == 0 {
		t.Fatalf("expected workbook bytes")
	}

	rec = do(t, api.Handler(), http.MethodGet, "/api/v1/reports/financial?start=yesterday", owner, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad start, got %d", rec.Code)
	}
}

func TestSettingsAreOwnerWritable(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	owner := tokenFor(t, api, "owner", testOwnerPassword)
	cashier := tokenFor(t, api, "cajero", testCashierPassword)

	rec := do(t, handler, http.MethodPut, "/api/v1/settings/business_name", cashier, map[string]string{"value": "X"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier, got %d", rec.Code)
	}
	rec = do(t, handler, http.MethodPut, "/api/v1/settings/business_name", owner, map[string]string{"value": "Don Pepe"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = do(t, handler, http.MethodGet, "/api/v1/settings", cashier, nil)
	var body struct {
		Settings []domain.ConfigEntry `json:"settings"`
	}
	decodeBody(t, rec, &body)
	if len(body.Settings) != 1 || body.Settings[0].Value != "Don Pepe" {
		t.Fatalf("unexpected settings: %+v", body.Settings)
	}
}

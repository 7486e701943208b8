package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"fiado/backend/internal/domain"
	apperrors "fiado/backend/internal/errors"
	"fiado/backend/internal/export"
	"fiado/backend/internal/metrics"
	"fiado/backend/internal/service"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	metrics       *metrics.Metrics
	logger        *zap.Logger
	allowedOrigin string
	loginLimiter  *attemptLimiter
}

func New(svc *service.Service, auth *AuthManager, m *metrics.Metrics, logger *zap.Logger, allowedOrigin string) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{
		service:       svc,
		auth:          auth,
		metrics:       m,
		logger:        logger,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
	}
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	l.entries[key] = append(kept, now)
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(a.withRequestID)
	r.Use(a.withSecurityHeaders)
	r.Use(a.withObservability)

	r.Get("/healthz", a.handleHealth)
	r.Handle("/metrics", a.metrics.Handler())
	r.Post("/api/v1/auth/login", a.handleLogin)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(a.requireAuth(domain.RoleCashier, domain.RoleOwner))

			r.Get("/products", a.handleListProducts)
			r.Get("/products/low-stock", a.handleLowStock)
			r.Get("/products/barcode/{code}", a.handleProductByBarcode)
			r.Get("/products/{id}", a.handleGetProduct)
			r.Get("/promotions/{id}/components", a.handlePromotionComponents)

			r.Post("/sales", a.handleRegisterSale)
			r.Post("/sales/on-account", a.handleOnAccountSale)
			r.Get("/sales/{id}", a.handleGetSale)

			r.Get("/clients", a.handleListClients)
			r.Post("/clients", a.handleCreateClient)
			r.Get("/clients/{id}", a.handleGetClient)
			r.Get("/clients/{id}/movements", a.handleListMovements)
			r.Post("/clients/{id}/movements", a.handleCreateMovement)

			r.Post("/shifts/open", a.handleShiftOpen)
			r.Get("/shifts/active", a.handleShiftActive)
			r.Get("/shifts/active/stats", a.handleShiftStats)
			r.Post("/shifts/close", a.handleShiftClose)

			r.Get("/expenses", a.handleListExpenses)
			r.Post("/expenses", a.handleCreateExpense)
			r.Get("/settings", a.handleListSettings)
		})

		r.Group(func(r chi.Router) {
			r.Use(a.requireAuth(domain.RoleOwner))

			r.Post("/products", a.handleCreateProduct)
			r.Patch("/products/{id}", a.handleUpdateProduct)
			r.Delete("/products/{id}", a.handleDeleteProduct)
			r.Post("/products/{id}/stock", a.handleAdjustStock)
			r.Post("/promotions", a.handleCreatePromotion)

			r.Patch("/clients/{id}", a.handleUpdateClient)
			r.Delete("/clients/{id}", a.handleDeleteClient)

			r.Get("/shifts", a.handleListShifts)

			r.Get("/reports/financial", a.handleFinancialReport)
			r.Get("/reports/top-products", a.handleTopProducts)
			r.Get("/reports/income-timeline", a.handleIncomeTimeline)
			r.Get("/reports/sales", a.handleSalesReport)
			r.Get("/reports/payments", a.handlePaymentsReport)

			r.Put("/settings/{key}", a.handleSetSetting)
			r.Get("/audit-logs", a.handleAuditLogs)
			r.Get("/users/cashiers", a.handleListCashiers)
			r.Post("/users/cashiers", a.handleCreateCashier)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, errors.New("route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
	})
	return r
}

func (a *API) requireAuth(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authorization := strings.TrimSpace(r.Header.Get("Authorization"))
			if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
				writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
				return
			}

			actor, err := a.auth.ParseToken(strings.TrimSpace(authorization[len("Bearer "):]))
			if err != nil {
				writeError(w, http.StatusUnauthorized, err)
				return
			}
			if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
				writeError(w, http.StatusForbidden, errors.New("forbidden role"))
				return
			}

			next.ServeHTTP(w, r.WithContext(service.WithActor(r.Context(), actor)))
		})
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r)
	})
}

func (a *API) withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,PUT,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withObservability records request metrics under the matched route pattern
// and writes one access log line per request.
func (a *API) withObservability(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedAt := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		elapsed := time.Since(startedAt)
		a.metrics.ObserveHTTP(r.Method, path, strconv.Itoa(status), elapsed)
		a.logger.Info("http request",
			zap.String("request_id", w.Header().Get("X-Request-ID")),
			zap.String("method", r.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("elapsed", elapsed),
		)
	})
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if !a.decode(w, r, &req) {
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := a.service.ListProducts(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (a *API) handleLowStock(w http.ResponseWriter, r *http.Request) {
	products, err := a.service.ListLowStock(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (a *API) handleProductByBarcode(w http.ResponseWriter, r *http.Request) {
	product, err := a.service.FindByBarcode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (a *API) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := a.service.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (a *API) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductCreateRequest
	if !a.decode(w, r, &req) {
		return
	}
	product, err := a.service.AddProduct(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"product": product})
}

func (a *API) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductUpdateRequest
	if !a.decode(w, r, &req) {
		return
	}
	product, err := a.service.UpdateProduct(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (a *API) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleAdjustStock(w http.ResponseWriter, r *http.Request) {
	var req domain.StockAdjustRequest
	if !a.decode(w, r, &req) {
		return
	}
	product, err := a.service.AdjustStock(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (a *API) handleCreatePromotion(w http.ResponseWriter, r *http.Request) {
	var req domain.PromotionCreateRequest
	if !a.decode(w, r, &req) {
		return
	}
	promotion, err := a.service.CreatePromotion(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, promotion)
}

func (a *API) handlePromotionComponents(w http.ResponseWriter, r *http.Request) {
	components, err := a.service.ListPromotionComponents(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"components": components})
}

func (a *API) handleRegisterSale(w http.ResponseWriter, r *http.Request) {
	var req domain.SaleRequest
	if !a.decode(w, r, &req) {
		return
	}
	sale, err := a.service.RegisterSale(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"sale": sale})
}

func (a *API) handleOnAccountSale(w http.ResponseWriter, r *http.Request) {
	var req domain.OnAccountSaleRequest
	if !a.decode(w, r, &req) {
		return
	}
	resp, err := a.service.CheckoutOnAccount(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleGetSale(w http.ResponseWriter, r *http.Request) {
	sale, err := a.service.GetSaleDetails(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sale": sale})
}

func (a *API) handleListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := a.service.ListClientsWithBalance(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"clients": clients})
}

func (a *API) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	var req domain.ClientCreateRequest
	if !a.decode(w, r, &req) {
		return
	}
	client, err := a.service.AddClient(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"client": client})
}

func (a *API) handleGetClient(w http.ResponseWriter, r *http.Request) {
	client, err := a.service.GetClient(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"client": client})
}

func (a *API) handleUpdateClient(w http.ResponseWriter, r *http.Request) {
	var req domain.ClientUpdateRequest
	if !a.decode(w, r, &req) {
		return
	}
	client, err := a.service.UpdateClient(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"client": client})
}

func (a *API) handleDeleteClient(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteClient(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleListMovements(w http.ResponseWriter, r *http.Request) {
	movements, err := a.service.ListClientMovements(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"movements": movements})
}

func (a *API) handleCreateMovement(w http.ResponseWriter, r *http.Request) {
	var req domain.MovementCreateRequest
	if !a.decode(w, r, &req) {
		return
	}
	movement, err := a.service.AddMovement(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"movement": movement})
}

func (a *API) handleShiftOpen(w http.ResponseWriter, r *http.Request) {
	var req domain.ShiftOpenRequest
	if !a.decode(w, r, &req) {
		return
	}
	shift, err := a.service.OpenShift(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"shift": shift})
}

func (a *API) handleShiftActive(w http.ResponseWriter, r *http.Request) {
	shift, ok, err := a.service.GetActiveShift(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"shift": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"shift": shift})
}

func (a *API) handleShiftStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.service.GetShiftStats(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) handleShiftClose(w http.ResponseWriter, r *http.Request) {
	var req domain.ShiftCloseRequest
	if !a.decode(w, r, &req) {
		return
	}
	result, err := a.service.CloseShift(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleListShifts(w http.ResponseWriter, r *http.Request) {
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 50, 200)
	shifts, err := a.service.ListShifts(r.Context(), limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"shifts": shifts})
}

func (a *API) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	start, end, ok := a.parseRange(w, r)
	if !ok {
		return
	}
	expenses, err := a.service.ListExpenses(r.Context(), start, end)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"expenses": expenses})
}

func (a *API) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req domain.ExpenseCreateRequest
	if !a.decode(w, r, &req) {
		return
	}
	expense, err := a.service.AddExpense(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"expense": expense})
}

func (a *API) handleFinancialReport(w http.ResponseWriter, r *http.Request) {
	start, end, ok := a.parseRange(w, r)
	if !ok {
		return
	}

	if strings.EqualFold(r.URL.Query().Get("format"), "xlsx") {
		buf, err := a.service.FinancialExport(r.Context(), start, end)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		w.Header().Set("Content-Type", export.ContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "reporte-financiero.xlsx"))
		w.WriteHeader(http.StatusOK)
		_, _ = buf.WriteTo(w)
		return
	}

	report, err := a.service.GetFinancialReport(r.Context(), start, end)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleTopProducts(w http.ResponseWriter, r *http.Request) {
	days := parsePositiveLimit(r.URL.Query().Get("days"), 30, 365)
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 10, 100)
	top, err := a.service.GetTopSellingProducts(r.Context(), days, limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": top})
}

func (a *API) handleIncomeTimeline(w http.ResponseWriter, r *http.Request) {
	timeline, err := a.service.GetUnifiedIncomeTimeline(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": timeline})
}

func (a *API) handleSalesReport(w http.ResponseWriter, r *http.Request) {
	start, end, ok := a.parseRange(w, r)
	if !ok {
		return
	}
	sales, err := a.service.ListSales(r.Context(), start, end)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sales": sales})
}

func (a *API) handlePaymentsReport(w http.ResponseWriter, r *http.Request) {
	start, end, ok := a.parseRange(w, r)
	if !ok {
		return
	}
	payments, err := a.service.ListPayments(r.Context(), start, end)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"payments": payments})
}

func (a *API) handleListSettings(w http.ResponseWriter, r *http.Request) {
	entries, err := a.service.ListConfig(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"settings": entries})
}

func (a *API) handleSetSetting(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value string `json:"value"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	key := chi.URLParam(r, "key")
	if err := a.service.SetConfig(r.Context(), key, req.Value); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.ConfigEntry{Key: key, Value: req.Value})
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)
	logs, err := a.service.ListAuditLogs(r.Context(), limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func (a *API) handleListCashiers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"cashiers": a.auth.ListCashiers(r.Context())})
}

func (a *API) handleCreateCashier(w http.ResponseWriter, r *http.Request) {
	var req domain.CashierCreateRequest
	if !a.decode(w, r, &req) {
		return
	}
	cashier, err := a.auth.CreateCashier(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"cashier": cashier})
}

// parseRange reads the optional start and end query parameters as RFC3339
// timestamps or plain dates. A plain end date covers that whole day.
func (a *API) parseRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	start, err := parseBound(r.URL.Query().Get("start"), false)
	if err != nil {
		writeFailure(w, apperrors.NewValidationError("invalid start", apperrors.ValidationDetail{Field: "start", Message: "must be RFC3339 or YYYY-MM-DD"}))
		return time.Time{}, time.Time{}, false
	}
	end, err := parseBound(r.URL.Query().Get("end"), true)
	if err != nil {
		writeFailure(w, apperrors.NewValidationError("invalid end", apperrors.ValidationDetail{Field: "end", Message: "must be RFC3339 or YYYY-MM-DD"}))
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

func parseBound(raw string, inclusiveDay bool) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	day, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, err
	}
	if inclusiveDay {
		day = day.AddDate(0, 0, 1)
	}
	return day, nil
}

func (a *API) decode(w http.ResponseWriter, r *http.Request, dest any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		writeFailure(w, apperrors.NewValidationError("invalid JSON body", apperrors.ValidationDetail{
			Field:   "body",
			Message: err.Error(),
		}))
		return false
	}
	return true
}

// fail maps a service error to its HTTP status and logs server-side failures.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	if statusFor(err) >= http.StatusInternalServerError {
		a.logger.Error("request failed",
			zap.String("request_id", w.Header().Get("X-Request-ID")),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeFailure(w, err)
}

func statusFor(err error) int {
	if _, ok := apperrors.IsValidationError(err); ok {
		return http.StatusBadRequest
	}
	if _, ok := apperrors.IsDuplicateNameError(err); ok {
		return http.StatusConflict
	}
	if _, ok := apperrors.IsInsufficientStockError(err); ok {
		return http.StatusConflict
	}
	if _, ok := apperrors.IsCreditLimitExceededError(err); ok {
		return http.StatusUnprocessableEntity
	}
	if _, ok := apperrors.IsShiftAlreadyOpenError(err); ok {
		return http.StatusConflict
	}
	if _, ok := apperrors.IsNotFoundError(err); ok {
		return http.StatusNotFound
	}
	if _, ok := apperrors.IsIntegrityError(err); ok {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeFailure(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		writeJSON(w, status, map[string]any{"error": "internal server error"})
		return
	}

	body := map[string]any{"error": err.Error()}
	if ve, ok := apperrors.IsValidationError(err); ok && len(ve.Details) > 0 {
		body["details"] = ve.Details
	}
	if ce, ok := apperrors.IsCreditLimitExceededError(err); ok {
		body["limit_cents"] = ce.Limit
		body["attempted_cents"] = ce.Attempted
	}
	writeJSON(w, status, body)
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{
		"error": err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

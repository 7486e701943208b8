package service

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"fiado/backend/internal/domain"
	"fiado/backend/internal/export"
	"fiado/backend/internal/store"
	"fiado/backend/internal/xid"
)

const (
	defaultTopWindowDays = 30
	defaultTopLimit      = 10
)

// GetFinancialReport summarizes [start, end). Zero bounds are open.
func (s *Service) GetFinancialReport(ctx context.Context, start time.Time, end time.Time) (domain.FinancialReport, error) {
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return domain.FinancialReport{}, invalid("end", "must not be before start")
	}
	start, end = utc(start), utc(end)

	key := fmt.Sprintf("fin:%d:%s:%s", s.generation.Load(), rangeKey(start), rangeKey(end))
	var report domain.FinancialReport
	if s.cached(ctx, key, &report) {
		return report, nil
	}

	totals, err := s.repo.LedgerTotals(ctx, start, end)
	if err != nil {
		return domain.FinancialReport{}, err
	}

	report = domain.FinancialReport{
		Start:                 start,
		End:                   end,
		GrossSalesCents:       totals.GrossSalesCents,
		ExpensesCents:         totals.ExpensesCents,
		CreditGeneratedCents:  totals.CreditGeneratedCents,
		PaymentsReceivedCents: totals.PaymentsReceivedCents,
	}
	report.CashSalesPortionCents = report.GrossSalesCents - report.CreditGeneratedCents
	report.CashInflowCents = report.CashSalesPortionCents + report.PaymentsReceivedCents
	report.NetCashFlowCents = report.CashInflowCents - report.ExpensesCents
	report.OperatingProfitCents = report.GrossSalesCents - report.ExpensesCents

	s.remember(ctx, key, report)
	return report, nil
}

// GetTopSellingProducts ranks products by units sold over the trailing window.
func (s *Service) GetTopSellingProducts(ctx context.Context, windowDays int, limit int) ([]domain.TopProduct, error) {
	if windowDays < 1 {
		windowDays = defaultTopWindowDays
	}
	if limit < 1 || limit > 100 {
		limit = defaultTopLimit
	}

	now := s.timestamp()
	key := fmt.Sprintf("top:%d:%d:%d:%d", s.generation.Load(), windowDays, limit, now.Truncate(time.Minute).Unix())
	var top []domain.TopProduct
	if s.cached(ctx, key, &top) {
		return top, nil
	}

	top, err := s.repo.TopSellingProducts(ctx, now.AddDate(0, 0, -windowDays), limit)
	if err != nil {
		return nil, err
	}
	if top == nil {
		top = []domain.TopProduct{}
	}

	s.remember(ctx, key, top)
	return top, nil
}

// GetUnifiedIncomeTimeline merges sales and account payments into one feed,
// oldest first.
func (s *Service) GetUnifiedIncomeTimeline(ctx context.Context) ([]domain.IncomeEntry, error) {
	sales, err := s.repo.ListSales(ctx, time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}
	payments, err := s.repo.ListPayments(ctx, time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}

	timeline := make([]domain.IncomeEntry, 0, len(sales)+len(payments))
	for _, sale := range sales {
		timeline = append(timeline, domain.IncomeEntry{
			Kind:          domain.IncomeSale,
			ID:            sale.ID,
			Timestamp:     sale.CreatedAt,
			AmountCents:   sale.TotalCents,
			PaymentMethod: sale.PaymentMethod,
			Description:   fmt.Sprintf("Venta %s", sale.ID),
		})
	}
	for _, payment := range payments {
		timeline = append(timeline, domain.IncomeEntry{
			Kind:        domain.IncomePayment,
			ID:          payment.ID,
			Timestamp:   payment.CreatedAt,
			AmountCents: payment.AmountCents,
			ClientName:  payment.ClientName,
			Description: payment.Description,
		})
	}

	sort.SliceStable(timeline, func(i, j int) bool {
		if !timeline[i].Timestamp.Equal(timeline[j].Timestamp) {
			return timeline[i].Timestamp.Before(timeline[j].Timestamp)
		}
		return timeline[i].ID < timeline[j].ID
	})
	return timeline, nil
}

// FinancialExport renders the report, top sellers and timeline as an XLSX workbook.
func (s *Service) FinancialExport(ctx context.Context, start time.Time, end time.Time) (*bytes.Buffer, error) {
	report, err := s.GetFinancialReport(ctx, start, end)
	if err != nil {
		return nil, err
	}
	top, err := s.GetTopSellingProducts(ctx, defaultTopWindowDays, defaultTopLimit)
	if err != nil {
		return nil, err
	}
	timeline, err := s.GetUnifiedIncomeTimeline(ctx)
	if err != nil {
		return nil, err
	}

	income := make([]domain.IncomeEntry, 0, len(timeline))
	for _, entry := range timeline {
		if store.InRange(entry.Timestamp, report.Start, report.End) {
			income = append(income, entry)
		}
	}
	return export.FinancialWorkbook(report, top, income)
}

func (s *Service) ListSales(ctx context.Context, start time.Time, end time.Time) ([]domain.Sale, error) {
	return s.repo.ListSales(ctx, utc(start), utc(end))
}

func (s *Service) ListPayments(ctx context.Context, start time.Time, end time.Time) ([]domain.PaymentEntry, error) {
	return s.repo.ListPayments(ctx, utc(start), utc(end))
}

func (s *Service) ListExpenses(ctx context.Context, start time.Time, end time.Time) ([]domain.Expense, error) {
	return s.repo.ListExpenses(ctx, utc(start), utc(end))
}

func (s *Service) AddExpense(ctx context.Context, req domain.ExpenseCreateRequest) (domain.Expense, error) {
	req.Description = strings.TrimSpace(req.Description)
	req.Category = defaultCategory(req.Category)
	if err := s.check(req); err != nil {
		return domain.Expense{}, err
	}

	expense := domain.Expense{
		ID:          xid.New("exp"),
		Description: req.Description,
		AmountCents: req.AmountCents,
		Category:    req.Category,
		CreatedAt:   s.timestamp(),
	}

	var created *domain.Expense
	err := s.mutate(func() error {
		var err error
		created, err = s.repo.CreateExpense(ctx, expense)
		return err
	})
	if err != nil {
		return domain.Expense{}, err
	}

	s.logAudit(ctx, "expense.create", "expense", created.ID, fmt.Sprintf("amount=%d,category=%s", created.AmountCents, created.Category))
	return *created, nil
}

// GetConfig returns the stored value for key or fallback when unset.
func (s *Service) GetConfig(ctx context.Context, key string, fallback string) (string, error) {
	value, ok, err := s.repo.GetConfig(ctx, strings.TrimSpace(key))
	if err != nil {
		return "", err
	}
	if !ok {
		return fallback, nil
	}
	return value, nil
}

func (s *Service) SetConfig(ctx context.Context, key string, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return invalid("key", "is required")
	}
	if len(key) > 80 {
		return invalid("key", "must be at most 80 characters")
	}

	err := s.mutate(func() error {
		if key == RefreshScheduleKey {
			value = strings.TrimSpace(value)
			if err := s.reschedule(value); err != nil {
				return err
			}
		}
		return s.repo.SetConfig(ctx, key, value)
	})
	if err != nil {
		return err
	}
	s.logAudit(ctx, "config.set", "config", key, "")
	return nil
}

// reschedule hands a new refresh schedule to the registered scheduler. The
// setting is stored only when the scheduler accepts it.
func (s *Service) reschedule(spec string) error {
	s.scheduleMu.Lock()
	update := s.onSchedule
	s.scheduleMu.Unlock()
	if update == nil {
		return nil
	}
	if err := update(spec); err != nil {
		return invalid("value", "is not a valid refresh schedule: "+err.Error())
	}
	s.logger.Info("report refresh rescheduled", zap.String("spec", spec))
	return nil
}

func (s *Service) ListConfig(ctx context.Context) ([]domain.ConfigEntry, error) {
	return s.repo.ListConfig(ctx)
}

// RefreshReports warms the cached reports for today and refreshes the stock
// and credit gauges. It only reads.
func (s *Service) RefreshReports(ctx context.Context) error {
	done := s.metrics.TrackRefresh()
	defer done()

	now := s.timestamp()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if _, err := s.GetFinancialReport(ctx, today, today.AddDate(0, 0, 1)); err != nil {
		return fmt.Errorf("refresh financial report: %w", err)
	}
	if _, err := s.GetTopSellingProducts(ctx, defaultTopWindowDays, defaultTopLimit); err != nil {
		return fmt.Errorf("refresh top products: %w", err)
	}

	low, err := s.ListLowStock(ctx)
	if err != nil {
		return fmt.Errorf("refresh low stock: %w", err)
	}
	s.metrics.SetLowStock(len(low))

	clients, err := s.repo.ListClientsWithBalance(ctx)
	if err != nil {
		return fmt.Errorf("refresh outstanding credit: %w", err)
	}
	var outstanding int64
	for _, c := range clients {
		if c.BalanceCents > 0 {
			outstanding += c.BalanceCents
		}
	}
	s.metrics.SetOutstandingCredit(outstanding)
	return nil
}

func (s *Service) cached(ctx context.Context, key string, dest any) bool {
	hit, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		s.logger.Warn("report cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return hit
}

func (s *Service) remember(ctx context.Context, key string, value any) {
	if err := s.cache.Set(ctx, key, value, s.cacheTTL); err != nil {
		s.logger.Warn("report cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func utc(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

func rangeKey(t time.Time) string {
	if t.IsZero() {
		return "open"
	}
	return t.Format(time.RFC3339Nano)
}

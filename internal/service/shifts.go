package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"fiado/backend/internal/domain"
	apperrors "fiado/backend/internal/errors"
	"fiado/backend/internal/xid"
)

func (s *Service) OpenShift(ctx context.Context, req domain.ShiftOpenRequest) (domain.Shift, error) {
	req.CashierName = strings.TrimSpace(req.CashierName)
	if err := s.check(req); err != nil {
		return domain.Shift{}, err
	}

	shift := domain.Shift{
		ID:               xid.New("shift"),
		CashierName:      req.CashierName,
		StartTime:        s.timestamp(),
		OpeningCashCents: req.OpeningCashCents,
	}

	var opened *domain.Shift
	err := s.mutate(func() error {
		var err error
		opened, err = s.repo.CreateShift(ctx, shift)
		return err
	})
	if err != nil {
		return domain.Shift{}, err
	}

	s.logAudit(ctx, "shift.open", "shift", opened.ID, fmt.Sprintf("cashier=%s,opening=%d", opened.CashierName, opened.OpeningCashCents))
	return *opened, nil
}

// GetActiveShift returns the open shift, if any.
func (s *Service) GetActiveShift(ctx context.Context) (domain.Shift, bool, error) {
	shift, err := s.repo.GetActiveShift(ctx)
	if err != nil {
		if _, ok := apperrors.IsNotFoundError(err); ok {
			return domain.Shift{}, false, nil
		}
		return domain.Shift{}, false, err
	}
	return *shift, true, nil
}

func (s *Service) GetShiftStats(ctx context.Context) (domain.ShiftStats, error) {
	shift, err := s.repo.GetActiveShift(ctx)
	if err != nil {
		return domain.ShiftStats{}, err
	}
	return s.shiftStats(ctx, *shift)
}

// shiftStats computes
// theoretical = opening + sales since start + payments since start - expenses since start.
func (s *Service) shiftStats(ctx context.Context, shift domain.Shift) (domain.ShiftStats, error) {
	totals, err := s.repo.LedgerTotals(ctx, shift.StartTime, shiftEnd(shift))
	if err != nil {
		return domain.ShiftStats{}, err
	}
	byPayment, err := s.repo.SalesByPaymentMethod(ctx, shift.StartTime, shiftEnd(shift))
	if err != nil {
		return domain.ShiftStats{}, err
	}

	stats := domain.ShiftStats{
		Shift:                 shift,
		SalesTotalCents:       totals.GrossSalesCents,
		PaymentsReceivedCents: totals.PaymentsReceivedCents,
		ExpensesCents:         totals.ExpensesCents,
		ByPayment:             byPayment,
	}
	for _, entry := range byPayment {
		stats.SalesCount += entry.Sales
	}
	stats.TheoreticalCashCents = shift.OpeningCashCents + totals.GrossSalesCents + totals.PaymentsReceivedCents - totals.ExpensesCents
	return stats, nil
}

// CloseShift is two-phase: a non-zero discrepancy is only reported unless the
// caller confirms. A matching count closes immediately.
func (s *Service) CloseShift(ctx context.Context, req domain.ShiftCloseRequest) (domain.ShiftCloseResult, error) {
	if err := s.check(req); err != nil {
		return domain.ShiftCloseResult{}, err
	}

	var result domain.ShiftCloseResult
	closed := false
	err := s.mutate(func() error {
		shift, err := s.repo.GetActiveShift(ctx)
		if err != nil {
			return err
		}
		stats, err := s.shiftStats(ctx, *shift)
		if err != nil {
			return err
		}

		result = domain.ShiftCloseResult{
			DiscrepancyCents:     req.CountedCashCents - stats.TheoreticalCashCents,
			TheoreticalCashCents: stats.TheoreticalCashCents,
			CountedCashCents:     req.CountedCashCents,
			Shift:                *shift,
		}
		if result.DiscrepancyCents != 0 && !req.Confirm {
			return nil
		}

		done, err := s.repo.CloseShift(ctx, shift.ID, req.CountedCashCents, stats.TheoreticalCashCents, s.timestamp())
		if err != nil {
			return err
		}
		result.Closed = true
		result.Shift = *done
		closed = true
		return nil
	})
	if err != nil {
		return domain.ShiftCloseResult{}, err
	}

	if closed {
		s.logger.Info("shift closed",
			zap.String("shift_id", result.Shift.ID),
			zap.Int64("counted_cents", result.CountedCashCents),
			zap.Int64("theoretical_cents", result.TheoreticalCashCents),
			zap.Int64("discrepancy_cents", result.DiscrepancyCents),
		)
		s.logAudit(ctx, "shift.close", "shift", result.Shift.ID, fmt.Sprintf("counted=%d,theoretical=%d,discrepancy=%d", result.CountedCashCents, result.TheoreticalCashCents, result.DiscrepancyCents))
	}
	return result, nil
}

func (s *Service) ListShifts(ctx context.Context, limit int) ([]domain.Shift, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	return s.repo.ListShifts(ctx, limit)
}

func shiftEnd(shift domain.Shift) (end time.Time) {
	if shift.EndTime != nil {
		return *shift.EndTime
	}
	return end
}

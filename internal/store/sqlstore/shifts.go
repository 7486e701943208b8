package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"fiado/backend/internal/domain"
	apperrors "fiado/backend/internal/errors"
	"fiado/backend/internal/xid"
)

const shiftColumns = `id, cashier_name, start_time, end_time, opening_cash_cents, closing_cash_cents, theoretical_cash_cents`

func scanShift(row rowScanner) (domain.Shift, error) {
	var (
		shift       domain.Shift
		endTime     sql.NullTime
		closing     sql.NullInt64
		theoretical sql.NullInt64
	)
	if err := row.Scan(&shift.ID, &shift.CashierName, &shift.StartTime, &endTime, &shift.OpeningCashCents, &closing, &theoretical); err != nil {
		return domain.Shift{}, err
	}
	shift.StartTime = shift.StartTime.UTC()
	shift.EndTime = timePtr(endTime)
	shift.ClosingCashCents = int64Ptr(closing)
	shift.TheoreticalCashCents = int64Ptr(theoretical)
	return shift, nil
}

func (s *Store) CreateShift(ctx context.Context, shift domain.Shift) (*domain.Shift, error) {
	if shift.ID == "" {
		shift.ID = xid.New("shift")
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var openID string
		err := tx.QueryRowContext(ctx, `SELECT id FROM shifts WHERE end_time IS NULL`).Scan(&openID)
		if err == nil {
			return apperrors.NewShiftAlreadyOpenError(openID)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		_, err = tx.ExecContext(ctx, s.rebind(`
			INSERT INTO shifts (id, cashier_name, start_time, opening_cash_cents) VALUES (?, ?, ?, ?)
		`), shift.ID, shift.CashierName, shift.StartTime.UTC(), shift.OpeningCashCents)
		if err != nil {
			if isUniqueViolation(err) {
				return apperrors.NewShiftAlreadyOpenError("")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	shift.StartTime = shift.StartTime.UTC()
	return &shift, nil
}

func (s *Store) GetActiveShift(ctx context.Context) (*domain.Shift, error) {
	shift, err := scanShift(s.db.QueryRowContext(ctx, `SELECT `+shiftColumns+` FROM shifts WHERE end_time IS NULL`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("open shift", "")
	}
	if err != nil {
		return nil, err
	}
	return &shift, nil
}

func (s *Store) CloseShift(ctx context.Context, id string, closingCashCents int64, theoreticalCashCents int64, closedAt time.Time) (*domain.Shift, error) {
	var closed domain.Shift
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, s.rebind(`
			UPDATE shifts SET end_time = ?, closing_cash_cents = ?, theoretical_cash_cents = ?
			WHERE id = ? AND end_time IS NULL
		`), closedAt.UTC(), closingCashCents, theoreticalCashCents, id)
		if err != nil {
			return err
		}
		if affected, _ := result.RowsAffected(); affected == 0 {
			return apperrors.NewNotFoundError("open shift", id)
		}

		closed, err = scanShift(tx.QueryRowContext(ctx, s.rebind(`SELECT `+shiftColumns+` FROM shifts WHERE id = ?`), id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return &closed, nil
}

func (s *Store) ListShifts(ctx context.Context, limit int) ([]domain.Shift, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT `+shiftColumns+` FROM shifts ORDER BY start_time DESC, id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Shift, 0, limit)
	for rows.Next() {
		shift, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, shift)
	}
	return out, rows.Err()
}

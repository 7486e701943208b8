package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"fiado/backend/internal/domain"
	apperrors "fiado/backend/internal/errors"
	"fiado/backend/internal/xid"
)

func (s *Store) LedgerTotals(ctx context.Context, from time.Time, to time.Time) (domain.LedgerTotals, error) {
	var totals domain.LedgerTotals

	where, args := rangeClause("created_at", from, to)
	if err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT CAST(COALESCE(SUM(total_cents), 0) AS BIGINT) FROM sales WHERE `+where,
	), args...).Scan(&totals.GrossSalesCents); err != nil {
		return totals, err
	}
	if err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT CAST(COALESCE(SUM(amount_cents), 0) AS BIGINT) FROM expenses WHERE `+where,
	), args...).Scan(&totals.ExpensesCents); err != nil {
		return totals, err
	}
	if err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT
			CAST(COALESCE(SUM(CASE WHEN type = 'DEBT' THEN amount_cents ELSE 0 END), 0) AS BIGINT),
			CAST(COALESCE(SUM(CASE WHEN type = 'PAYMENT' THEN amount_cents ELSE 0 END), 0) AS BIGINT)
		FROM account_movements WHERE `+where,
	), args...).Scan(&totals.CreditGeneratedCents, &totals.PaymentsReceivedCents); err != nil {
		return totals, err
	}
	return totals, nil
}

func (s *Store) GetConfig(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT entry_value FROM config_entries WHERE entry_key = ?`), key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *Store) SetConfig(ctx context.Context, key string, value string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO config_entries (entry_key, entry_value) VALUES (?, ?)
		ON CONFLICT (entry_key) DO UPDATE SET entry_value = excluded.entry_value
	`), key, value)
	return err
}

func (s *Store) ListConfig(ctx context.Context) ([]domain.ConfigEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT entry_key, entry_value FROM config_entries ORDER BY entry_key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ConfigEntry, 0, 8)
	for rows.Next() {
		var entry domain.ConfigEntry
		if err := rows.Scan(&entry.Key, &entry.Value); err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO audit_logs (id, actor, action, entity_type, entity_id, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), entry.ID, entry.Actor, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt.UTC())
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, actor, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.Actor, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO app_users (username, password, role, active, created_at) VALUES (?, ?, ?, ?, ?)
	`), username, user.Password, user.Role, user.Active, user.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewDuplicateNameError("user", username)
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT username, password, role, active, created_at FROM app_users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		out = append(out, user)
	}
	return out, rows.Err()
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	result, err := s.db.ExecContext(ctx, s.rebind(`UPDATE app_users SET password = ? WHERE username = ?`), password, username)
	if err != nil {
		return err
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return apperrors.NewNotFoundError("user", username)
	}
	return nil
}

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

func (s *Store) CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error) {
	if expense.ID == "" {
		expense.ID = xid.New("exp")
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO expenses (id, description, amount_cents, category, created_at) VALUES (?, ?, ?, ?, ?)
	`), expense.ID, expense.Description, expense.AmountCents, expense.Category, expense.CreatedAt.UTC())
	if err != nil {
		return nil, err
	}
	expense.CreatedAt = expense.CreatedAt.UTC()
	return &expense, nil
}

func (s *Store) ListExpenses(ctx context.Context, from time.Time, to time.Time) ([]domain.Expense, error) {
	where, args := rangeClause("created_at", from, to)
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, description, amount_cents, category, created_at FROM expenses WHERE `+where+` ORDER BY created_at, id
	`), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Expense, 0, 16)
	for rows.Next() {
		var e domain.Expense
		if err := rows.Scan(&e.ID, &e.Description, &e.AmountCents, &e.Category, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

const balanceExpr = `CAST(COALESCE(SUM(CASE WHEN m.type = 'DEBT' THEN m.amount_cents ELSE -m.amount_cents END), 0) AS BIGINT)`

func (s *Store) CreateClient(ctx context.Context, client domain.Client) (*domain.Client, error) {
	if client.ID == "" {
		client.ID = xid.New("cli")
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO clients (id, name, phone, alias, credit_limit_cents, created_at) VALUES (?, ?, ?, ?, ?, ?)
	`), client.ID, client.Name, client.Phone, client.Alias, client.CreditLimitCents, client.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperrors.NewDuplicateNameError("client", client.Name)
		}
		return nil, err
	}
	client.CreatedAt = client.CreatedAt.UTC()
	return &client, nil
}

func (s *Store) UpdateClient(ctx context.Context, client domain.Client) (*domain.Client, error) {
	result, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE clients SET name = ?, phone = ?, alias = ?, credit_limit_cents = ? WHERE id = ?
	`), client.Name, client.Phone, client.Alias, client.CreditLimitCents, client.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperrors.NewDuplicateNameError("client", client.Name)
		}
		return nil, err
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return nil, apperrors.NewNotFoundError("client", client.ID)
	}

	updated, err := s.GetClient(ctx, client.ID)
	if err != nil {
		return nil, err
	}
	return &updated.Client, nil
}

func (s *Store) DeleteClient(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM account_movements WHERE client_id = ?`), id); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM clients WHERE id = ?`), id)
		if err != nil {
			return err
		}
		if affected, _ := result.RowsAffected(); affected == 0 {
			return apperrors.NewNotFoundError("client", id)
		}
		return nil
	})
}

func (s *Store) GetClient(ctx context.Context, id string) (*domain.ClientBalance, error) {
	var cb domain.ClientBalance
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT c.id, c.name, c.phone, c.alias, c.credit_limit_cents, c.created_at, `+balanceExpr+`
		FROM clients c
		LEFT JOIN account_movements m ON m.client_id = c.id
		WHERE c.id = ?
		GROUP BY c.id, c.name, c.phone, c.alias, c.credit_limit_cents, c.created_at
	`), id).Scan(&cb.ID, &cb.Name, &cb.Phone, &cb.Alias, &cb.CreditLimitCents, &cb.CreatedAt, &cb.BalanceCents)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("client", id)
	}
	if err != nil {
		return nil, err
	}
	cb.CreatedAt = cb.CreatedAt.UTC()
	return &cb, nil
}

func (s *Store) ListClientsWithBalance(ctx context.Context) ([]domain.ClientBalance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.phone, c.alias, c.credit_limit_cents, c.created_at, `+balanceExpr+`
		FROM clients c
		LEFT JOIN account_movements m ON m.client_id = c.id
		GROUP BY c.id, c.name, c.phone, c.alias, c.credit_limit_cents, c.created_at
		ORDER BY c.name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ClientBalance, 0, 32)
	for rows.Next() {
		var cb domain.ClientBalance
		if err := rows.Scan(&cb.ID, &cb.Name, &cb.Phone, &cb.Alias, &cb.CreditLimitCents, &cb.CreatedAt, &cb.BalanceCents); err != nil {
			return nil, err
		}
		cb.CreatedAt = cb.CreatedAt.UTC()
		out = append(out, cb)
	}
	return out, rows.Err()
}

func (s *Store) CreateMovement(ctx context.Context, movement domain.AccountMovement) (*domain.AccountMovement, error) {
	if movement.ID == "" {
		movement.ID = xid.New("mov")
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, s.rebind(`SELECT 1 FROM clients WHERE id = ?`), movement.ClientID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NewNotFoundError("client", movement.ClientID)
		}
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, s.rebind(`
			INSERT INTO account_movements (id, client_id, created_at, type, amount_cents, description, sale_id)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`), movement.ID, movement.ClientID, movement.CreatedAt.UTC(), string(movement.Type), movement.AmountCents,
			movement.Description, nullIfEmpty(movement.SaleID))
		if err != nil {
			if isForeignKeyViolation(err) {
				return apperrors.NewIntegrityError("movement references unknown sale "+movement.SaleID, err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	movement.CreatedAt = movement.CreatedAt.UTC()
	return &movement, nil
}

func (s *Store) ListMovements(ctx context.Context, clientID string) ([]domain.AccountMovement, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT 1 FROM clients WHERE id = ?`), clientID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("client", clientID)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, client_id, created_at, type, amount_cents, description, COALESCE(sale_id, '')
		FROM account_movements
		WHERE client_id = ?
		ORDER BY created_at DESC, id DESC
	`), clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.AccountMovement, 0, 16)
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) ListPayments(ctx context.Context, from time.Time, to time.Time) ([]domain.PaymentEntry, error) {
	where, args := rangeClause("m.created_at", from, to)
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT m.id, m.client_id, m.created_at, m.type, m.amount_cents, m.description, COALESCE(m.sale_id, ''), c.name
		FROM account_movements m
		JOIN clients c ON c.id = m.client_id
		WHERE m.type = 'PAYMENT' AND `+where+`
		ORDER BY m.created_at, m.id
	`), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.PaymentEntry, 0, 16)
	for rows.Next() {
		var (
			entry domain.PaymentEntry
			kind  string
		)
		if err := rows.Scan(&entry.ID, &entry.ClientID, &entry.CreatedAt, &kind, &entry.AmountCents, &entry.Description, &entry.SaleID, &entry.ClientName); err != nil {
			return nil, err
		}
		entry.Type = domain.MovementType(kind)
		entry.CreatedAt = entry.CreatedAt.UTC()
		out = append(out, entry)
	}
	return out, rows.Err()
}

func scanMovement(row rowScanner) (domain.AccountMovement, error) {
	var (
		m    domain.AccountMovement
		kind string
	)
	if err := row.Scan(&m.ID, &m.ClientID, &m.CreatedAt, &kind, &m.AmountCents, &m.Description, &m.SaleID); err != nil {
		return domain.AccountMovement{}, err
	}
	m.Type = domain.MovementType(kind)
	m.CreatedAt = m.CreatedAt.UTC()
	return m, nil
}

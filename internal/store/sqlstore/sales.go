package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"fiado/backend/internal/domain"
	apperrors "fiado/backend/internal/errors"
	"fiado/backend/internal/store"
)

// CreateSale writes the sale and decrements stock in one transaction. Lines
// are processed in product id order so concurrent checkouts lock rows in the
// same sequence; any shortage rolls back everything written so far.
func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if len(sale.Lines) == 0 {
		return nil, apperrors.NewValidationError("sale has no lines")
	}

	var created domain.Sale
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, s.rebind(`
			INSERT INTO sales (id, created_at, subtotal_cents, discount_percent, total_cents, payment_method)
			VALUES (?, ?, ?, ?, ?, ?)
		`), sale.ID, sale.CreatedAt.UTC(), sale.SubtotalCents, sale.DiscountPercent, sale.TotalCents, string(sale.PaymentMethod))
		if err != nil {
			if isUniqueViolation(err) {
				return apperrors.NewIntegrityError("sale "+sale.ID+" already exists", err)
			}
			return err
		}

		lines := store.SortLines(sale.Lines)
		for i, line := range lines {
			if err := store.CheckLineQty(line); err != nil {
				return err
			}
			var (
				name     string
				stock    int
				isBundle bool
			)
			err := tx.QueryRowContext(ctx, s.rebind(`SELECT name, stock, is_bundle FROM products WHERE id = ?`+s.forUpdate()), line.ProductID).
				Scan(&name, &stock, &isBundle)
			if errors.Is(err, sql.ErrNoRows) {
				return apperrors.NewNotFoundError("product", line.ProductID)
			}
			if err != nil {
				return err
			}
			lines[i].SaleID = sale.ID
			lines[i].ProductName = name

			if _, err := tx.ExecContext(ctx, s.rebind(`
				INSERT INTO sale_lines (sale_id, product_id, qty, unit_price_cents, subtotal_cents)
				VALUES (?, ?, ?, ?, ?)
			`), sale.ID, line.ProductID, line.Qty, line.UnitPriceCents, line.SubtotalCents); err != nil {
				return err
			}

			if !isBundle {
				if err := s.decrementStock(ctx, tx, line.ProductID, name, stock, line.Qty); err != nil {
					return err
				}
				continue
			}

			components, err := s.bundleComponents(ctx, tx, line.ProductID)
			if err != nil {
				return err
			}
			if len(components) == 0 {
				return apperrors.NewInsufficientStockError(name, 0, line.Qty)
			}
			for _, c := range components {
				var (
					componentName  string
					componentStock int
				)
				err := tx.QueryRowContext(ctx, s.rebind(`SELECT name, stock FROM products WHERE id = ?`+s.forUpdate()), c.ComponentID).
					Scan(&componentName, &componentStock)
				if err != nil {
					return err
				}
				units, err := store.ComponentUnits(c.RequiredQty, line.Qty)
				if err != nil {
					return err
				}
				if err := s.decrementStock(ctx, tx, c.ComponentID, componentName, componentStock, units); err != nil {
					return err
				}
			}
		}

		created = sale
		created.CreatedAt = sale.CreatedAt.UTC()
		created.Lines = lines
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *Store) decrementStock(ctx context.Context, tx *sql.Tx, id string, name string, available int, qty int) error {
	if available < qty {
		return apperrors.NewInsufficientStockError(name, available, qty)
	}
	_, err := tx.ExecContext(ctx, s.rebind(`UPDATE products SET stock = stock - ? WHERE id = ?`), qty, id)
	return err
}

func (s *Store) bundleComponents(ctx context.Context, tx *sql.Tx, promotionID string) ([]domain.PromotionComponent, error) {
	rows, err := tx.QueryContext(ctx, s.rebind(`
		SELECT component_id, required_qty FROM promotion_components WHERE promotion_id = ? ORDER BY component_id
	`), promotionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.PromotionComponent, 0, 4)
	for rows.Next() {
		c := domain.PromotionComponent{PromotionID: promotionID}
		if err := rows.Scan(&c.ComponentID, &c.RequiredQty); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	var (
		sale   domain.Sale
		method string
	)
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, created_at, subtotal_cents, discount_percent, total_cents, payment_method FROM sales WHERE id = ?
	`), id).Scan(&sale.ID, &sale.CreatedAt, &sale.SubtotalCents, &sale.DiscountPercent, &sale.TotalCents, &method)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("sale", id)
	}
	if err != nil {
		return nil, err
	}
	sale.CreatedAt = sale.CreatedAt.UTC()
	sale.PaymentMethod = domain.PaymentMethod(method)

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT l.sale_id, l.product_id, p.name, l.qty, l.unit_price_cents, l.subtotal_cents
		FROM sale_lines l
		JOIN products p ON p.id = l.product_id
		WHERE l.sale_id = ?
		ORDER BY l.product_id
	`), id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sale.Lines = make([]domain.SaleLine, 0, 4)
	for rows.Next() {
		var line domain.SaleLine
		if err := rows.Scan(&line.SaleID, &line.ProductID, &line.ProductName, &line.Qty, &line.UnitPriceCents, &line.SubtotalCents); err != nil {
			return nil, err
		}
		sale.Lines = append(sale.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &sale, nil
}

func (s *Store) ListSales(ctx context.Context, from time.Time, to time.Time) ([]domain.Sale, error) {
	where, args := rangeClause("created_at", from, to)
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, created_at, subtotal_cents, discount_percent, total_cents, payment_method
		FROM sales WHERE `+where+`
		ORDER BY created_at, id
	`), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 32)
	for rows.Next() {
		var (
			sale   domain.Sale
			method string
		)
		if err := rows.Scan(&sale.ID, &sale.CreatedAt, &sale.SubtotalCents, &sale.DiscountPercent, &sale.TotalCents, &method); err != nil {
			return nil, err
		}
		sale.CreatedAt = sale.CreatedAt.UTC()
		sale.PaymentMethod = domain.PaymentMethod(method)
		sales = append(sales, sale)
	}
	return sales, rows.Err()
}

func (s *Store) SalesByPaymentMethod(ctx context.Context, from time.Time, to time.Time) ([]domain.PaymentBreakdown, error) {
	where, args := rangeClause("created_at", from, to)
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT payment_method, COUNT(*), CAST(COALESCE(SUM(total_cents), 0) AS BIGINT)
		FROM sales WHERE `+where+`
		GROUP BY payment_method
		ORDER BY payment_method
	`), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.PaymentBreakdown, 0, len(domain.PaymentMethods))
	for rows.Next() {
		var (
			entry  domain.PaymentBreakdown
			method string
		)
		if err := rows.Scan(&method, &entry.Sales, &entry.TotalCents); err != nil {
			return nil, err
		}
		entry.PaymentMethod = domain.PaymentMethod(method)
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (s *Store) TopSellingProducts(ctx context.Context, since time.Time, limit int) ([]domain.TopProduct, error) {
	where, args := rangeClause("s.created_at", since, time.Time{})
	if limit < 1 {
		limit = 10
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT l.product_id, p.name, CAST(SUM(l.qty) AS BIGINT) AS qty_sold, CAST(SUM(l.subtotal_cents) AS BIGINT)
		FROM sale_lines l
		JOIN sales s ON s.id = l.sale_id
		JOIN products p ON p.id = l.product_id
		WHERE `+where+`
		GROUP BY l.product_id, p.name
		ORDER BY qty_sold DESC, l.product_id
		LIMIT ?
	`), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.TopProduct, 0, limit)
	for rows.Next() {
		var top domain.TopProduct
		if err := rows.Scan(&top.ProductID, &top.Name, &top.QtySold, &top.RevenueCents); err != nil {
			return nil, err
		}
		out = append(out, top)
	}
	return out, rows.Err()
}

package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"fiado/backend/internal/domain"
	apperrors "fiado/backend/internal/errors"
	"fiado/backend/internal/store"
	"fiado/backend/internal/xid"
)

const productColumns = `id, name, price_cents, stock, critical_stock, COALESCE(barcode, ''), category, expires_at, is_bundle, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var (
		p         domain.Product
		expiresAt sql.NullTime
	)
	if err := row.Scan(&p.ID, &p.Name, &p.PriceCents, &p.Stock, &p.CriticalStock, &p.Barcode, &p.Category, &expiresAt, &p.IsBundle, &p.CreatedAt); err != nil {
		return domain.Product{}, err
	}
	p.ExpiresAt = timePtr(expiresAt)
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY category, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.projectBundles(ctx, s.db, products); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return s.getProduct(ctx, s.db, id)
}

func (s *Store) getProduct(ctx context.Context, q queryer, id string) (*domain.Product, error) {
	p, err := scanProduct(q.QueryRowContext(ctx, s.rebind(`SELECT `+productColumns+` FROM products WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("product", id)
	}
	if err != nil {
		return nil, err
	}
	products := []domain.Product{p}
	if err := s.projectBundles(ctx, q, products); err != nil {
		return nil, err
	}
	return &products[0], nil
}

func (s *Store) FindProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error) {
	var id string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT id FROM products WHERE barcode = ?`), barcode).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("product with barcode", barcode)
	}
	if err != nil {
		return nil, err
	}
	return s.GetProduct(ctx, id)
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO products (id, name, price_cents, stock, critical_stock, barcode, category, expires_at, is_bundle, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), product.ID, product.Name, product.PriceCents, product.Stock, product.CriticalStock,
		nullIfEmpty(product.Barcode), product.Category, nullTime(product.ExpiresAt), false, product.CreatedAt.UTC())
	if err != nil {
		return nil, productWriteError(err, product)
	}
	return s.GetProduct(ctx, product.ID)
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	result, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE products
		SET name = ?, price_cents = ?, stock = CASE WHEN is_bundle THEN 0 ELSE ? END,
			critical_stock = ?, barcode = ?, category = ?, expires_at = ?
		WHERE id = ?
	`), product.Name, product.PriceCents, product.Stock, product.CriticalStock,
		nullIfEmpty(product.Barcode), product.Category, nullTime(product.ExpiresAt), product.ID)
	if err != nil {
		return nil, productWriteError(err, product)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return nil, apperrors.NewNotFoundError("product", product.ID)
	}
	return s.GetProduct(ctx, product.ID)
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var name string
		err := tx.QueryRowContext(ctx, s.rebind(`SELECT name FROM products WHERE id = ?`+s.forUpdate()), id).Scan(&name)
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NewNotFoundError("product", id)
		}
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM promotion_components WHERE promotion_id = ?`), id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM products WHERE id = ?`), id); err != nil {
			if isForeignKeyViolation(err) {
				return apperrors.NewIntegrityError("product "+name+" is referenced by sales or promotions", err)
			}
			return err
		}
		return nil
	})
}

func (s *Store) AdjustStock(ctx context.Context, id string, delta int) (*domain.Product, error) {
	var adjusted *domain.Product
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var (
			name     string
			stock    int
			isBundle bool
		)
		err := tx.QueryRowContext(ctx, s.rebind(`SELECT name, stock, is_bundle FROM products WHERE id = ?`+s.forUpdate()), id).Scan(&name, &stock, &isBundle)
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NewNotFoundError("product", id)
		}
		if err != nil {
			return err
		}
		if isBundle {
			return apperrors.NewValidationError("bundle stock is derived from its components")
		}
		if stock+delta < 0 {
			return apperrors.NewInsufficientStockError(name, stock, -delta)
		}
		if err := store.CheckStockLevel(stock, delta); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.rebind(`UPDATE products SET stock = stock + ? WHERE id = ?`), delta, id); err != nil {
			return err
		}
		adjusted, err = s.getProduct(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return adjusted, nil
}

func (s *Store) CreatePromotion(ctx context.Context, promotion domain.Product, components []domain.PromotionComponent) (*domain.Product, error) {
	if promotion.ID == "" {
		promotion.ID = xid.New("prod")
	}

	var created *domain.Product
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, c := range components {
			var (
				name     string
				isBundle bool
			)
			err := tx.QueryRowContext(ctx, s.rebind(`SELECT name, is_bundle FROM products WHERE id = ?`), c.ComponentID).Scan(&name, &isBundle)
			if errors.Is(err, sql.ErrNoRows) {
				return apperrors.NewNotFoundError("component product", c.ComponentID)
			}
			if err != nil {
				return err
			}
			if isBundle {
				return apperrors.NewValidationError("promotions cannot contain other promotions",
					apperrors.ValidationDetail{Field: "components", Message: name + " is a promotion"})
			}
		}

		_, err := tx.ExecContext(ctx, s.rebind(`
			INSERT INTO products (id, name, price_cents, stock, critical_stock, barcode, category, expires_at, is_bundle, created_at)
			VALUES (?, ?, ?, 0, ?, ?, ?, NULL, ?, ?)
		`), promotion.ID, promotion.Name, promotion.PriceCents, promotion.CriticalStock,
			nullIfEmpty(promotion.Barcode), promotion.Category, true, promotion.CreatedAt.UTC())
		if err != nil {
			return productWriteError(err, promotion)
		}

		for _, c := range components {
			if _, err := tx.ExecContext(ctx, s.rebind(`
				INSERT INTO promotion_components (promotion_id, component_id, required_qty) VALUES (?, ?, ?)
			`), promotion.ID, c.ComponentID, c.RequiredQty); err != nil {
				if isUniqueViolation(err) {
					return apperrors.NewValidationError("component listed twice",
						apperrors.ValidationDetail{Field: "components", Message: c.ComponentID})
				}
				return err
			}
		}

		created, err = s.getProduct(ctx, tx, promotion.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Store) ListPromotionComponents(ctx context.Context, promotionID string) ([]domain.PromotionComponent, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT 1 FROM products WHERE id = ?`), promotionID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("product", promotionID)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT c.promotion_id, c.component_id, p.name, c.required_qty
		FROM promotion_components c
		JOIN products p ON p.id = c.component_id
		WHERE c.promotion_id = ?
		ORDER BY c.component_id
	`), promotionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.PromotionComponent, 0, 4)
	for rows.Next() {
		var c domain.PromotionComponent
		if err := rows.Scan(&c.PromotionID, &c.ComponentID, &c.ComponentName, &c.RequiredQty); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// projectBundles overwrites the stored stock of every bundle in products with
// the virtual stock its components can cover.
func (s *Store) projectBundles(ctx context.Context, q queryer, products []domain.Product) error {
	bundles := make(map[string]int)
	for i, p := range products {
		if p.IsBundle {
			bundles[p.ID] = i
		}
	}
	if len(bundles) == 0 {
		return nil
	}

	query := `
		SELECT c.promotion_id, c.required_qty, p.stock
		FROM promotion_components c
		JOIN products p ON p.id = c.component_id`
	var args []any
	if len(bundles) == 1 {
		for id := range bundles {
			query += ` WHERE c.promotion_id = ?`
			args = append(args, id)
		}
	}

	rows, err := q.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	stocks := make(map[string][]store.ComponentStock, len(bundles))
	for rows.Next() {
		var (
			promotionID string
			cs          store.ComponentStock
		)
		if err := rows.Scan(&promotionID, &cs.RequiredQty, &cs.Stock); err != nil {
			return err
		}
		stocks[promotionID] = append(stocks[promotionID], cs)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for id, idx := range bundles {
		products[idx].Stock = store.VirtualStock(stocks[id])
	}
	return nil
}

func productWriteError(err error, product domain.Product) error {
	if isUniqueViolation(err) {
		if violates(err, "barcode") {
			return apperrors.NewDuplicateNameError("barcode", product.Barcode)
		}
		return apperrors.NewDuplicateNameError("product", product.Name)
	}
	return err
}

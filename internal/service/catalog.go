package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"fiado/backend/internal/domain"
	apperrors "fiado/backend/internal/errors"
	"fiado/backend/internal/xid"
)

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	p, err := s.repo.GetProduct(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Product{}, err
	}
	return *p, nil
}

func (s *Service) FindByBarcode(ctx context.Context, barcode string) (domain.Product, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return domain.Product{}, invalid("barcode", "is required")
	}
	p, err := s.repo.FindProductByBarcode(ctx, barcode)
	if err != nil {
		return domain.Product{}, err
	}
	return *p, nil
}

// ListLowStock returns products at or below their critical stock. Bundles are
// judged by their virtual stock.
func (s *Service) ListLowStock(ctx context.Context) ([]domain.Product, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	low := make([]domain.Product, 0, 8)
	for _, p := range products {
		if p.LowStock() {
			low = append(low, p)
		}
	}
	return low, nil
}

func (s *Service) AddProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Barcode = strings.TrimSpace(req.Barcode)
	req.Category = defaultCategory(req.Category)
	if err := s.check(req); err != nil {
		return domain.Product{}, err
	}

	product := domain.Product{
		ID:            xid.New("prod"),
		Name:          req.Name,
		PriceCents:    req.PriceCents,
		Stock:         req.Stock,
		CriticalStock: req.CriticalStock,
		Barcode:       req.Barcode,
		Category:      req.Category,
		CreatedAt:     s.timestamp(),
	}
	if req.ExpiresAt != nil {
		expires := req.ExpiresAt.UTC()
		product.ExpiresAt = &expires
	}

	var created *domain.Product
	err := s.mutate(func() error {
		var err error
		created, err = s.repo.CreateProduct(ctx, product)
		return err
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product.create", "product", created.ID, fmt.Sprintf("name=%s,price=%d,stock=%d", created.Name, created.PriceCents, created.Stock))
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	if err := s.check(req); err != nil {
		return domain.Product{}, err
	}

	var saved *domain.Product
	err := s.mutate(func() error {
		existing, err := s.repo.GetProduct(ctx, strings.TrimSpace(id))
		if err != nil {
			return err
		}

		updated := *existing
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return invalid("name", "is required")
			}
			updated.Name = name
		}
		if req.PriceCents != nil {
			updated.PriceCents = *req.PriceCents
		}
		if req.Stock != nil {
			if existing.IsBundle {
				return invalid("stock", "of a promotion is derived from its components")
			}
			updated.Stock = *req.Stock
		}
		if req.CriticalStock != nil {
			updated.CriticalStock = *req.CriticalStock
		}
		if req.Barcode != nil {
			updated.Barcode = strings.TrimSpace(*req.Barcode)
		}
		if req.Category != nil {
			updated.Category = defaultCategory(*req.Category)
		}
		if req.ExpiresAt != nil {
			expires := req.ExpiresAt.UTC()
			updated.ExpiresAt = &expires
		}
		if updated.IsBundle {
			updated.Stock = 0
		}

		saved, err = s.repo.UpdateProduct(ctx, updated)
		return err
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product.update", "product", saved.ID, fmt.Sprintf("price=%d,stock=%d", saved.PriceCents, saved.Stock))
	return *saved, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if err := s.mutate(func() error { return s.repo.DeleteProduct(ctx, id) }); err != nil {
		return err
	}
	s.logAudit(ctx, "product.delete", "product", id, "")
	return nil
}

// AdjustStock applies a restock (positive delta) or correction (negative delta).
func (s *Service) AdjustStock(ctx context.Context, id string, req domain.StockAdjustRequest) (domain.Product, error) {
	if err := s.check(req); err != nil {
		return domain.Product{}, err
	}

	var adjusted *domain.Product
	err := s.mutate(func() error {
		var err error
		adjusted, err = s.repo.AdjustStock(ctx, strings.TrimSpace(id), req.Delta)
		return err
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product.stock_adjust", "product", adjusted.ID, fmt.Sprintf("delta=%d,stock=%d", req.Delta, adjusted.Stock))
	return *adjusted, nil
}

func (s *Service) CreatePromotion(ctx context.Context, req domain.PromotionCreateRequest) (domain.PromotionResponse, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Barcode = strings.TrimSpace(req.Barcode)
	req.Category = defaultCategory(req.Category)
	if err := s.check(req); err != nil {
		return domain.PromotionResponse{}, err
	}

	promotion := domain.Product{
		ID:            xid.New("prod"),
		Name:          req.Name,
		PriceCents:    req.PriceCents,
		CriticalStock: req.CriticalStock,
		Barcode:       req.Barcode,
		Category:      req.Category,
		IsBundle:      true,
		CreatedAt:     s.timestamp(),
	}
	components, err := mergeComponents(promotion.ID, req.Components)
	if err != nil {
		return domain.PromotionResponse{}, err
	}

	var created *domain.Product
	err = s.mutate(func() error {
		var err error
		created, err = s.repo.CreatePromotion(ctx, promotion, components)
		return err
	})
	if err != nil {
		return domain.PromotionResponse{}, err
	}

	listed, err := s.repo.ListPromotionComponents(ctx, created.ID)
	if err != nil {
		return domain.PromotionResponse{}, err
	}

	s.logAudit(ctx, "promotion.create", "product", created.ID, fmt.Sprintf("name=%s,components=%d", created.Name, len(listed)))
	return domain.PromotionResponse{Product: *created, Components: listed}, nil
}

func (s *Service) ListPromotionComponents(ctx context.Context, promotionID string) ([]domain.PromotionComponent, error) {
	return s.repo.ListPromotionComponents(ctx, strings.TrimSpace(promotionID))
}

// mergeComponents sums the required quantity of repeated component ids.
func mergeComponents(promotionID string, inputs []domain.PromotionComponentInput) ([]domain.PromotionComponent, error) {
	qty := make(map[string]int, len(inputs))
	for _, in := range inputs {
		id := strings.TrimSpace(in.ProductID)
		if in.RequiredQty < 1 || qty[id] > domain.MaxRequiredQty-in.RequiredQty {
			return nil, invalid("components", fmt.Sprintf("required_qty for %s must be between 1 and %d", id, domain.MaxRequiredQty))
		}
		qty[id] += in.RequiredQty
	}

	out := make([]domain.PromotionComponent, 0, len(qty))
	for id, required := range qty {
		out = append(out, domain.PromotionComponent{PromotionID: promotionID, ComponentID: id, RequiredQty: required})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ComponentID < out[j].ComponentID })
	return out, nil
}

func defaultCategory(category string) string {
	category = strings.TrimSpace(category)
	if category == "" {
		return domain.DefaultCategory
	}
	return category
}

// SeedCatalog adds the given products, skipping names that already exist.
// It returns how many were created.
func (s *Service) SeedCatalog(ctx context.Context, products []domain.ProductCreateRequest) (int, error) {
	created := 0
	for _, req := range products {
		if _, err := s.AddProduct(ctx, req); err != nil {
			if _, dup := apperrors.IsDuplicateNameError(err); dup {
				continue
			}
			return created, fmt.Errorf("seed %s: %w", req.Name, err)
		}
		created++
	}
	return created, nil
}

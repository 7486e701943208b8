package service

import (
	"context"
	"fmt"
	"math"
	"math/bits"
	"strings"

	"go.uber.org/zap"

	"fiado/backend/internal/domain"
	apperrors "fiado/backend/internal/errors"
	"fiado/backend/internal/xid"
)

// RegisterSale prices the cart, then posts the sale and every stock decrement
// as one store transaction. Any shortage leaves stock and sales untouched.
func (s *Service) RegisterSale(ctx context.Context, req domain.SaleRequest) (domain.Sale, error) {
	if err := s.check(req); err != nil {
		return domain.Sale{}, err
	}
	req.PaymentMethod = domain.PaymentMethod(strings.ToUpper(strings.TrimSpace(string(req.PaymentMethod))))
	if !req.PaymentMethod.Valid() {
		return domain.Sale{}, invalid("payment_method", "must be one of CASH, TRANSFER, DEBIT, CREDIT, ON_ACCOUNT")
	}

	var sale domain.Sale
	err := s.mutate(func() error {
		lines, subtotal, err := s.priceCart(ctx, req.Cart)
		if err != nil {
			return err
		}
		sale, err = s.postSale(ctx, lines, subtotal, req.DiscountPercent, req.PaymentMethod)
		return err
	})
	if err != nil {
		return domain.Sale{}, err
	}
	return sale, nil
}

// CheckoutOnAccount sells to a client on credit. The credit limit is checked
// before anything is written; the DEBT movement is posted only after the sale
// exists so it always references a real sale.
func (s *Service) CheckoutOnAccount(ctx context.Context, req domain.OnAccountSaleRequest) (domain.OnAccountSaleResponse, error) {
	if err := s.check(req); err != nil {
		return domain.OnAccountSaleResponse{}, err
	}

	var resp domain.OnAccountSaleResponse
	err := s.mutate(func() error {
		client, err := s.repo.GetClient(ctx, strings.TrimSpace(req.ClientID))
		if err != nil {
			return err
		}

		lines, subtotal, err := s.priceCart(ctx, req.Cart)
		if err != nil {
			return err
		}
		total := applyDiscount(subtotal, req.DiscountPercent)
		if err := creditCheck(client, total); err != nil {
			s.metrics.RecordSaleFailure("credit_limit")
			return err
		}

		sale, err := s.postSale(ctx, lines, subtotal, req.DiscountPercent, domain.PaymentOnAccount)
		if err != nil {
			return err
		}
		resp.Sale = sale
		resp.Balance = client.BalanceCents

		if sale.TotalCents == 0 {
			return nil
		}
		movement, err := s.repo.CreateMovement(ctx, domain.AccountMovement{
			ID:          xid.New("mov"),
			ClientID:    client.ID,
			CreatedAt:   sale.CreatedAt,
			Type:        domain.MovementDebt,
			AmountCents: sale.TotalCents,
			Description: "Venta " + sale.ID,
			SaleID:      sale.ID,
		})
		if err != nil {
			s.logger.Error("sale posted without its debt movement",
				zap.String("sale_id", sale.ID),
				zap.String("client_id", client.ID),
				zap.Error(err),
			)
			return fmt.Errorf("post debt for sale %s: %w", sale.ID, err)
		}
		s.metrics.RecordMovement(string(domain.MovementDebt))
		resp.Movement = *movement
		resp.Balance = client.BalanceCents + movement.AmountCents
		return nil
	})
	if err != nil {
		return domain.OnAccountSaleResponse{}, err
	}

	s.logAudit(ctx, "sale.on_account", "client", strings.TrimSpace(req.ClientID), fmt.Sprintf("sale=%s,total=%d", resp.Sale.ID, resp.Sale.TotalCents))
	return resp, nil
}

func (s *Service) GetSaleDetails(ctx context.Context, saleID string) (domain.Sale, error) {
	sale, err := s.repo.GetSale(ctx, strings.TrimSpace(saleID))
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

// postSale writes a priced sale. Callers hold writeMu.
func (s *Service) postSale(ctx context.Context, lines []domain.SaleLine, subtotal int64, discount float64, method domain.PaymentMethod) (domain.Sale, error) {
	sale := domain.Sale{
		ID:              xid.New("sale"),
		CreatedAt:       s.timestamp(),
		SubtotalCents:   subtotal,
		DiscountPercent: discount,
		TotalCents:      applyDiscount(subtotal, discount),
		PaymentMethod:   method,
		Lines:           lines,
	}

	created, err := s.repo.CreateSale(ctx, sale)
	if err != nil {
		s.metrics.RecordSaleFailure(failureReason(err))
		return domain.Sale{}, err
	}

	s.metrics.RecordSale(string(created.PaymentMethod), created.TotalCents)
	s.logger.Info("sale registered",
		zap.String("sale_id", created.ID),
		zap.String("payment_method", string(created.PaymentMethod)),
		zap.Int64("total_cents", created.TotalCents),
		zap.Int("lines", len(created.Lines)),
	)
	s.logAudit(ctx, "sale.register", "sale", created.ID, fmt.Sprintf("method=%s,total=%d", created.PaymentMethod, created.TotalCents))
	return *created, nil
}

// priceCart merges repeated products and resolves missing unit prices from
// the catalog. The first explicit price for a product wins.
func (s *Service) priceCart(ctx context.Context, cart []domain.CartLine) ([]domain.SaleLine, int64, error) {
	merged, err := normalizeCart(cart)
	if err != nil {
		return nil, 0, err
	}

	lines := make([]domain.SaleLine, 0, len(merged))
	var subtotal int64
	for _, item := range merged {
		product, err := s.repo.GetProduct(ctx, item.ProductID)
		if err != nil {
			return nil, 0, err
		}

		unitPrice := product.PriceCents
		if item.UnitPriceCents != nil {
			unitPrice = *item.UnitPriceCents
		}
		lineTotal, ok := mulCents(unitPrice, int64(item.Qty))
		if !ok {
			return nil, 0, invalid("cart", "line total for "+product.Name+" is out of range")
		}
		if subtotal, ok = addCents(subtotal, lineTotal); !ok {
			return nil, 0, invalid("cart", "sale subtotal is out of range")
		}
		lines = append(lines, domain.SaleLine{
			ProductID:      product.ID,
			ProductName:    product.Name,
			Qty:            item.Qty,
			UnitPriceCents: unitPrice,
			SubtotalCents:  lineTotal,
		})
	}
	return lines, subtotal, nil
}

func normalizeCart(cart []domain.CartLine) ([]domain.CartLine, error) {
	index := make(map[string]int, len(cart))
	merged := make([]domain.CartLine, 0, len(cart))
	for _, item := range cart {
		item.ProductID = strings.TrimSpace(item.ProductID)
		if item.Qty < 1 || item.Qty > domain.MaxLineQty {
			return nil, invalid("qty", fmt.Sprintf("must be between 1 and %d", domain.MaxLineQty))
		}
		if i, ok := index[item.ProductID]; ok {
			if merged[i].Qty > domain.MaxLineQty-item.Qty {
				return nil, invalid("qty", fmt.Sprintf("combined quantity for %s must be at most %d", item.ProductID, domain.MaxLineQty))
			}
			merged[i].Qty += item.Qty
			if merged[i].UnitPriceCents == nil {
				merged[i].UnitPriceCents = item.UnitPriceCents
			}
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, item)
	}
	return merged, nil
}

// mulCents multiplies non-negative amounts, reporting false on int64 overflow.
func mulCents(a int64, b int64) (int64, bool) {
	if a < 0 || b < 0 {
		return 0, false
	}
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	if hi != 0 || lo > math.MaxInt64 {
		return 0, false
	}
	return int64(lo), true
}

func addCents(a int64, b int64) (int64, bool) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, false
	}
	return sum, true
}

// applyDiscount rounds half away from zero to whole cents.
func applyDiscount(subtotal int64, discountPercent float64) int64 {
	if discountPercent <= 0 {
		return subtotal
	}
	return int64(math.Round(float64(subtotal) * (1 - discountPercent/100)))
}

func creditCheck(client *domain.ClientBalance, total int64) error {
	balanceAfter := client.BalanceCents + total
	if client.CreditLimitCents > 0 && balanceAfter > client.CreditLimitCents {
		return apperrors.NewCreditLimitExceededError(client.Name, client.CreditLimitCents, balanceAfter)
	}
	return nil
}

func failureReason(err error) string {
	if _, ok := apperrors.IsInsufficientStockError(err); ok {
		return "insufficient_stock"
	}
	if _, ok := apperrors.IsNotFoundError(err); ok {
		return "not_found"
	}
	if _, ok := apperrors.IsValidationError(err); ok {
		return "validation"
	}
	return "internal"
}

package store

import (
	"context"
	"sort"
	"strconv"
	"time"

	"fiado/backend/internal/domain"
	apperrors "fiado/backend/internal/errors"
)

// Repository is the persistence contract shared by the memory and SQL stores.
//
// Time ranges are half-open [from, to). A zero bound leaves that side open.
// Every mutation that touches more than one row runs in a single transaction.
type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	FindProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	AdjustStock(ctx context.Context, id string, delta int) (*domain.Product, error)
	CreatePromotion(ctx context.Context, promotion domain.Product, components []domain.PromotionComponent) (*domain.Product, error)
	ListPromotionComponents(ctx context.Context, promotionID string) ([]domain.PromotionComponent, error)

	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	ListSales(ctx context.Context, from time.Time, to time.Time) ([]domain.Sale, error)
	SalesByPaymentMethod(ctx context.Context, from time.Time, to time.Time) ([]domain.PaymentBreakdown, error)
	TopSellingProducts(ctx context.Context, since time.Time, limit int) ([]domain.TopProduct, error)

	CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error)
	ListExpenses(ctx context.Context, from time.Time, to time.Time) ([]domain.Expense, error)

	CreateClient(ctx context.Context, client domain.Client) (*domain.Client, error)
	UpdateClient(ctx context.Context, client domain.Client) (*domain.Client, error)
	DeleteClient(ctx context.Context, id string) error
	GetClient(ctx context.Context, id string) (*domain.ClientBalance, error)
	ListClientsWithBalance(ctx context.Context) ([]domain.ClientBalance, error)
	CreateMovement(ctx context.Context, movement domain.AccountMovement) (*domain.AccountMovement, error)
	ListMovements(ctx context.Context, clientID string) ([]domain.AccountMovement, error)
	ListPayments(ctx context.Context, from time.Time, to time.Time) ([]domain.PaymentEntry, error)

	CreateShift(ctx context.Context, shift domain.Shift) (*domain.Shift, error)
	GetActiveShift(ctx context.Context) (*domain.Shift, error)
	CloseShift(ctx context.Context, id string, closingCashCents int64, theoreticalCashCents int64, closedAt time.Time) (*domain.Shift, error)
	ListShifts(ctx context.Context, limit int) ([]domain.Shift, error)

	LedgerTotals(ctx context.Context, from time.Time, to time.Time) (domain.LedgerTotals, error)

	GetConfig(ctx context.Context, key string) (string, bool, error)
	SetConfig(ctx context.Context, key string, value string) error
	ListConfig(ctx context.Context) ([]domain.ConfigEntry, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

type ComponentStock struct {
	Stock       int
	RequiredQty int
}

// VirtualStock is the number of whole bundles the component stock can cover.
// A bundle without components has no sellable stock.
func VirtualStock(components []ComponentStock) int {
	if len(components) == 0 {
		return 0
	}
	best := -1
	for _, c := range components {
		if c.RequiredQty < 1 {
			return 0
		}
		units := c.Stock / c.RequiredQty
		if units < 0 {
			units = 0
		}
		if best < 0 || units < best {
			best = units
		}
	}
	return best
}

// SortLines orders sale lines by product id, the order stock is locked in.
func SortLines(lines []domain.SaleLine) []domain.SaleLine {
	sorted := make([]domain.SaleLine, len(lines))
	copy(sorted, lines)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ProductID < sorted[j].ProductID
	})
	return sorted
}

// InRange reports whether t falls inside the half-open range [from, to).
func InRange(t time.Time, from time.Time, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}

// CheckLineQty rejects sale line quantities outside [1, domain.MaxLineQty].
func CheckLineQty(line domain.SaleLine) error {
	if line.Qty < 1 || line.Qty > domain.MaxLineQty {
		return apperrors.NewValidationError("quantity out of range for product "+line.ProductID,
			apperrors.ValidationDetail{Field: "qty", Message: "must be between 1 and " + strconv.Itoa(domain.MaxLineQty)})
	}
	return nil
}

// ComponentUnits is the component stock consumed by qty bundles that each
// need requiredQty units.
func ComponentUnits(requiredQty int, qty int) (int, error) {
	if requiredQty < 1 || requiredQty > domain.MaxRequiredQty {
		return 0, apperrors.NewValidationError("component required quantity out of range",
			apperrors.ValidationDetail{Field: "required_qty", Message: "must be between 1 and " + strconv.Itoa(domain.MaxRequiredQty)})
	}
	if qty < 1 || qty > domain.MaxLineQty {
		return 0, apperrors.NewValidationError("bundle quantity out of range",
			apperrors.ValidationDetail{Field: "qty", Message: "must be between 1 and " + strconv.Itoa(domain.MaxLineQty)})
	}
	return requiredQty * qty, nil
}

// CheckStockLevel rejects an adjusted stock level above domain.MaxStock.
func CheckStockLevel(stock int, delta int) error {
	if delta > domain.MaxStock || stock > domain.MaxStock-delta {
		return apperrors.NewValidationError("stock would exceed the maximum",
			apperrors.ValidationDetail{Field: "delta", Message: "resulting stock must be at most " + strconv.Itoa(domain.MaxStock)})
	}
	return nil
}

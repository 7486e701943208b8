package memory

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fiado/backend/internal/domain"
	apperrors "fiado/backend/internal/errors"
)

func seedComboStore(t *testing.T) (*Store, domain.Product, domain.Product, domain.Product) {
	t.Helper()
	ctx := context.Background()
	s := New()

	water, err := s.CreateProduct(ctx, domain.Product{ID: "p-water", Name: "Water", PriceCents: 500, Stock: 10, CriticalStock: 2})
	require.NoError(t, err)
	bread, err := s.CreateProduct(ctx, domain.Product{ID: "p-bread", Name: "Bread", PriceCents: 300, Stock: 4})
	require.NoError(t, err)
	combo, err := s.CreatePromotion(ctx, domain.Product{ID: "p-combo", Name: "ComboX", PriceCents: 1100}, []domain.PromotionComponent{
		{ComponentID: water.ID, RequiredQty: 2},
		{ComponentID: bread.ID, RequiredQty: 1},
	})
	require.NoError(t, err)
	return s, *water, *bread, *combo
}

func TestCreatePromotionProjectsVirtualStock(t *testing.T) {
	_, _, _, combo := seedComboStore(t)

	assert.True(t, combo.IsBundle)
	assert.Equal(t, 4, combo.Stock)
}

func TestCreatePromotionRejectsNestedBundles(t *testing.T) {
	s, _, _, combo := seedComboStore(t)

	_, err := s.CreatePromotion(context.Background(), domain.Product{Name: "Mega"}, []domain.PromotionComponent{
		{ComponentID: combo.ID, RequiredQty: 1},
	})
	_, ok := apperrors.IsValidationError(err)
	assert.True(t, ok, "expected validation error, got %v", err)
}

func TestCreateSaleRollsBackEveryLineOnShortage(t *testing.T) {
	s, water, bread, _ := seedComboStore(t)
	ctx := context.Background()

	_, err := s.CreateSale(ctx, domain.Sale{
		ID:        "sale-1",
		CreatedAt: time.Now().UTC(),
		Lines: []domain.SaleLine{
			{ProductID: water.ID, Qty: 3, UnitPriceCents: 500, SubtotalCents: 1500},
			{ProductID: bread.ID, Qty: 5, UnitPriceCents: 300, SubtotalCents: 1500},
		},
	})

	se, ok := apperrors.IsInsufficientStockError(err)
	require.True(t, ok, "expected insufficient stock, got %v", err)
	assert.Equal(t, "Bread", se.Item)
	assert.Equal(t, 4, se.Available)
	assert.Equal(t, 5, se.Requested)

	got, err := s.GetProduct(ctx, water.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Stock)
	_, err = s.GetSale(ctx, "sale-1")
	_, notFound := apperrors.IsNotFoundError(err)
	assert.True(t, notFound)
}

func TestCreateSaleBundleAndComponentShareStock(t *testing.T) {
	s, water, _, combo := seedComboStore(t)
	ctx := context.Background()

	// 4 combos need 8 water, the extra 3 plain water exceed the remaining 2.
	_, err := s.CreateSale(ctx, domain.Sale{
		ID:        "sale-2",
		CreatedAt: time.Now().UTC(),
		Lines: []domain.SaleLine{
			{ProductID: combo.ID, Qty: 4},
			{ProductID: water.ID, Qty: 3},
		},
	})

	se, ok := apperrors.IsInsufficientStockError(err)
	require.True(t, ok, "expected insufficient stock, got %v", err)
	assert.Equal(t, "Water", se.Item)
}

func TestDeleteProductWithHistoryIsIntegrityError(t *testing.T) {
	s, water, _, _ := seedComboStore(t)
	ctx := context.Background()

	err := s.DeleteProduct(ctx, water.ID)
	_, ok := apperrors.IsIntegrityError(err)
	assert.True(t, ok, "component of a promotion must not be deleted")
}

func TestDeleteClientCascadesMovements(t *testing.T) {
	s := New()
	ctx := context.Background()

	client, err := s.CreateClient(ctx, domain.Client{Name: "Jane"})
	require.NoError(t, err)
	_, err = s.CreateMovement(ctx, domain.AccountMovement{ClientID: client.ID, Type: domain.MovementDebt, AmountCents: 700, CreatedAt: time.Now().UTC()})
	require.NoError(t, err)

	require.NoError(t, s.DeleteClient(ctx, client.ID))

	payments, err := s.LedgerTotals(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Zero(t, payments.CreditGeneratedCents)
}

func TestCreateMovementRejectsUnknownSale(t *testing.T) {
	s := New()
	ctx := context.Background()

	client, err := s.CreateClient(ctx, domain.Client{Name: "Jane"})
	require.NoError(t, err)

	_, err = s.CreateMovement(ctx, domain.AccountMovement{ClientID: client.ID, Type: domain.MovementDebt, AmountCents: 100, SaleID: "sale-missing"})
	_, ok := apperrors.IsIntegrityError(err)
	assert.True(t, ok)
}

func TestOnlyOneOpenShift(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.CreateShift(ctx, domain.Shift{ID: "shift-1", StartTime: time.Now().UTC()})
	require.NoError(t, err)
	_, err = s.CreateShift(ctx, domain.Shift{ID: "shift-2", StartTime: time.Now().UTC()})
	_, ok := apperrors.IsShiftAlreadyOpenError(err)
	assert.True(t, ok)

	_, err = s.CloseShift(ctx, "shift-1", 100, 100, time.Now().UTC())
	require.NoError(t, err)
	_, err = s.GetActiveShift(ctx)
	_, notFound := apperrors.IsNotFoundError(err)
	assert.True(t, notFound)
}

func TestNewSeededHasDemoCatalog(t *testing.T) {
	s := NewSeeded()

	products, err := s.ListProducts(context.Background())
	require.NoError(t, err)
	assert.Len(t, products, 20)

	found, err := s.FindProductByBarcode(context.Background(), "78010007")
	require.NoError(t, err)
	assert.Equal(t, "Leche Entera 1L", found.Name)
}

func TestCreateSaleRejectsQuantitiesOutsideBounds(t *testing.T) {
	s, water, bread, combo := seedComboStore(t)
	ctx := context.Background()

	cases := []struct {
		name string
		line domain.SaleLine
	}{
		{"bundle qty wrapping the component total", domain.SaleLine{ProductID: combo.ID, Qty: math.MaxInt/2 + 1}},
		{"bundle qty above the line maximum", domain.SaleLine{ProductID: combo.ID, Qty: domain.MaxLineQty + 1}},
		{"negative plain qty", domain.SaleLine{ProductID: water.ID, Qty: -2}},
		{"zero plain qty", domain.SaleLine{ProductID: bread.ID, Qty: 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.CreateSale(ctx, domain.Sale{ID: "sale-bad", CreatedAt: time.Now().UTC(), Lines: []domain.SaleLine{tc.line}})
			_, ok := apperrors.IsValidationError(err)
			require.True(t, ok, "expected validation error, got %v", err)

			gotWater, err := s.GetProduct(ctx, water.ID)
			require.NoError(t, err)
			gotBread, err := s.GetProduct(ctx, bread.ID)
			require.NoError(t, err)
			assert.Equal(t, 10, gotWater.Stock)
			assert.Equal(t, 4, gotBread.Stock)
		})
	}
}

func TestAdjustStockRejectsLevelsAboveMaximum(t *testing.T) {
	s, water, _, _ := seedComboStore(t)

	_, err := s.AdjustStock(context.Background(), water.ID, domain.MaxStock)
	_, ok := apperrors.IsValidationError(err)
	assert.True(t, ok, "expected validation error, got %v", err)

	got, err := s.GetProduct(context.Background(), water.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Stock)
}

package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"fiado/backend/internal/domain"
	apperrors "fiado/backend/internal/errors"
	"fiado/backend/internal/store"
	"fiado/backend/internal/xid"
)

type Store struct {
	mu          sync.RWMutex
	products    map[string]domain.Product
	components  map[string][]domain.PromotionComponent
	sales       map[string]domain.Sale
	salesOrder  []string
	expenses    []domain.Expense
	clients     map[string]domain.Client
	movements   []domain.AccountMovement
	shifts      []domain.Shift
	config      map[string]string
	auditLogs   []domain.AuditLog
	usersByName map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		products:    make(map[string]domain.Product),
		components:  make(map[string][]domain.PromotionComponent),
		sales:       make(map[string]domain.Sale),
		clients:     make(map[string]domain.Client),
		config:      make(map[string]string),
		usersByName: make(map[string]domain.UserAccount),
	}
}

// NewSeeded returns a store holding the demo catalog.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()
	for _, p := range store.DemoProducts() {
		id := xid.New("prod")
		s.products[id] = domain.Product{
			ID:            id,
			Name:          p.Name,
			PriceCents:    p.PriceCents,
			Stock:         p.Stock,
			CriticalStock: p.CriticalStock,
			Barcode:       p.Barcode,
			Category:      p.Category,
			CreatedAt:     now,
		}
	}
	s.config["business_name"] = "Mi Negocio"
	return s
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, s.project(p))
	}
	sort.Slice(products, func(i, j int) bool {
		if products[i].Category != products[j].Category {
			return products[i].Category < products[j].Category
		}
		return products[i].Name < products[j].Name
	})
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("product", id)
	}
	projected := s.project(p)
	return &projected, nil
}

func (s *Store) FindProductByBarcode(_ context.Context, barcode string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.products {
		if p.Barcode != "" && p.Barcode == barcode {
			projected := s.project(p)
			return &projected, nil
		}
	}
	return nil, apperrors.NewNotFoundError("product with barcode", barcode)
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkProductUnique(product); err != nil {
		return nil, err
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	s.products[product.ID] = product
	created := s.project(product)
	return &created, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[product.ID]
	if !ok {
		return nil, apperrors.NewNotFoundError("product", product.ID)
	}
	if err := s.checkProductUnique(product); err != nil {
		return nil, err
	}
	product.IsBundle = existing.IsBundle
	product.CreatedAt = existing.CreatedAt
	if product.IsBundle {
		product.Stock = 0
	}
	if product.Stock < 0 {
		return nil, apperrors.NewValidationError("stock cannot be negative")
	}
	s.products[product.ID] = product
	updated := s.project(product)
	return &updated, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return apperrors.NewNotFoundError("product", id)
	}
	for _, saleID := range s.salesOrder {
		for _, line := range s.sales[saleID].Lines {
			if line.ProductID == id {
				return apperrors.NewIntegrityError("product "+p.Name+" is referenced by sale history", nil)
			}
		}
	}
	for promoID, comps := range s.components {
		if promoID == id {
			continue
		}
		for _, c := range comps {
			if c.ComponentID == id {
				return apperrors.NewIntegrityError("product "+p.Name+" is a component of a promotion", nil)
			}
		}
	}
	delete(s.components, id)
	delete(s.products, id)
	return nil
}

func (s *Store) AdjustStock(_ context.Context, id string, delta int) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("product", id)
	}
	if p.IsBundle {
		return nil, apperrors.NewValidationError("bundle stock is derived from its components")
	}
	if p.Stock+delta < 0 {
		return nil, apperrors.NewInsufficientStockError(p.Name, p.Stock, -delta)
	}
	if err := store.CheckStockLevel(p.Stock, delta); err != nil {
		return nil, err
	}
	p.Stock += delta
	s.products[id] = p
	return &p, nil
}

func (s *Store) CreatePromotion(_ context.Context, promotion domain.Product, components []domain.PromotionComponent) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkProductUnique(promotion); err != nil {
		return nil, err
	}
	if promotion.ID == "" {
		promotion.ID = xid.New("prod")
	}
	promotion.IsBundle = true
	promotion.Stock = 0

	rows := make([]domain.PromotionComponent, 0, len(components))
	for _, c := range components {
		component, ok := s.products[c.ComponentID]
		if !ok {
			return nil, apperrors.NewNotFoundError("component product", c.ComponentID)
		}
		if component.IsBundle {
			return nil, apperrors.NewValidationError("promotions cannot contain other promotions",
				apperrors.ValidationDetail{Field: "components", Message: component.Name + " is a promotion"})
		}
		rows = append(rows, domain.PromotionComponent{
			PromotionID:   promotion.ID,
			ComponentID:   c.ComponentID,
			ComponentName: component.Name,
			RequiredQty:   c.RequiredQty,
		})
	}

	s.products[promotion.ID] = promotion
	s.components[promotion.ID] = rows
	created := s.project(promotion)
	return &created, nil
}

func (s *Store) ListPromotionComponents(_ context.Context, promotionID string) ([]domain.PromotionComponent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.products[promotionID]; !ok {
		return nil, apperrors.NewNotFoundError("product", promotionID)
	}
	comps := s.components[promotionID]
	out := make([]domain.PromotionComponent, 0, len(comps))
	for _, c := range comps {
		c.ComponentName = s.products[c.ComponentID].Name
		out = append(out, c)
	}
	return out, nil
}

// CreateSale validates every line against a working copy of stock and only
// publishes the sale and the decrements when all lines succeed.
func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	if len(sale.Lines) == 0 {
		return nil, apperrors.NewValidationError("sale has no lines")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sales[sale.ID]; exists {
		return nil, apperrors.NewIntegrityError("sale "+sale.ID+" already exists", nil)
	}

	working := make(map[string]int)
	stockOf := func(p domain.Product) int {
		if qty, ok := working[p.ID]; ok {
			return qty
		}
		return p.Stock
	}

	lines := store.SortLines(sale.Lines)
	for i, line := range lines {
		p, ok := s.products[line.ProductID]
		if !ok {
			return nil, apperrors.NewNotFoundError("product", line.ProductID)
		}
		if err := store.CheckLineQty(line); err != nil {
			return nil, err
		}
		lines[i].SaleID = sale.ID
		lines[i].ProductName = p.Name

		if !p.IsBundle {
			available := stockOf(p)
			if available < line.Qty {
				return nil, apperrors.NewInsufficientStockError(p.Name, available, line.Qty)
			}
			working[p.ID] = available - line.Qty
			continue
		}

		comps := s.components[p.ID]
		if len(comps) == 0 {
			return nil, apperrors.NewInsufficientStockError(p.Name, 0, line.Qty)
		}
		for _, c := range comps {
			component := s.products[c.ComponentID]
			deduct, err := store.ComponentUnits(c.RequiredQty, line.Qty)
			if err != nil {
				return nil, err
			}
			available := stockOf(component)
			if available < deduct {
				return nil, apperrors.NewInsufficientStockError(component.Name, available, deduct)
			}
			working[component.ID] = available - deduct
		}
	}

	for id, qty := range working {
		p := s.products[id]
		p.Stock = qty
		s.products[id] = p
	}
	sale.Lines = lines
	s.sales[sale.ID] = sale
	s.salesOrder = append(s.salesOrder, sale.ID)

	created := cloneSale(sale)
	return &created, nil
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.sales[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("sale", id)
	}
	found := cloneSale(sale)
	return &found, nil
}

func (s *Store) ListSales(_ context.Context, from time.Time, to time.Time) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, len(s.salesOrder))
	for _, id := range s.salesOrder {
		sale := s.sales[id]
		if !store.InRange(sale.CreatedAt, from, to) {
			continue
		}
		sale.Lines = nil
		sales = append(sales, sale)
	}
	sort.SliceStable(sales, func(i, j int) bool {
		return sales[i].CreatedAt.Before(sales[j].CreatedAt)
	})
	return sales, nil
}

func (s *Store) SalesByPaymentMethod(_ context.Context, from time.Time, to time.Time) ([]domain.PaymentBreakdown, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byMethod := make(map[domain.PaymentMethod]*domain.PaymentBreakdown)
	for _, id := range s.salesOrder {
		sale := s.sales[id]
		if !store.InRange(sale.CreatedAt, from, to) {
			continue
		}
		entry, ok := byMethod[sale.PaymentMethod]
		if !ok {
			entry = &domain.PaymentBreakdown{PaymentMethod: sale.PaymentMethod}
			byMethod[sale.PaymentMethod] = entry
		}
		entry.Sales++
		entry.TotalCents += sale.TotalCents
	}

	out := make([]domain.PaymentBreakdown, 0, len(byMethod))
	for _, entry := range byMethod {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaymentMethod < out[j].PaymentMethod })
	return out, nil
}

func (s *Store) TopSellingProducts(_ context.Context, since time.Time, limit int) ([]domain.TopProduct, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agg := make(map[string]*domain.TopProduct)
	for _, id := range s.salesOrder {
		sale := s.sales[id]
		if !store.InRange(sale.CreatedAt, since, time.Time{}) {
			continue
		}
		for _, line := range sale.Lines {
			entry, ok := agg[line.ProductID]
			if !ok {
				entry = &domain.TopProduct{ProductID: line.ProductID, Name: line.ProductName}
				if p, exists := s.products[line.ProductID]; exists {
					entry.Name = p.Name
				}
				agg[line.ProductID] = entry
			}
			entry.QtySold += line.Qty
			entry.RevenueCents += line.SubtotalCents
		}
	}

	out := make([]domain.TopProduct, 0, len(agg))
	for _, entry := range agg {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].QtySold != out[j].QtySold {
			return out[i].QtySold > out[j].QtySold
		}
		return out[i].ProductID < out[j].ProductID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CreateExpense(_ context.Context, expense domain.Expense) (*domain.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expenses = append(s.expenses, expense)
	return &expense, nil
}

func (s *Store) ListExpenses(_ context.Context, from time.Time, to time.Time) ([]domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Expense, 0, len(s.expenses))
	for _, e := range s.expenses {
		if store.InRange(e.CreatedAt, from, to) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) CreateClient(_ context.Context, client domain.Client) (*domain.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkClientUnique(client); err != nil {
		return nil, err
	}
	if client.ID == "" {
		client.ID = xid.New("cli")
	}
	s.clients[client.ID] = client
	return &client, nil
}

func (s *Store) UpdateClient(_ context.Context, client domain.Client) (*domain.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.clients[client.ID]
	if !ok {
		return nil, apperrors.NewNotFoundError("client", client.ID)
	}
	if err := s.checkClientUnique(client); err != nil {
		return nil, err
	}
	client.CreatedAt = existing.CreatedAt
	s.clients[client.ID] = client
	return &client, nil
}

func (s *Store) DeleteClient(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[id]; !ok {
		return apperrors.NewNotFoundError("client", id)
	}
	kept := s.movements[:0]
	for _, m := range s.movements {
		if m.ClientID != id {
			kept = append(kept, m)
		}
	}
	s.movements = kept
	delete(s.clients, id)
	return nil
}

func (s *Store) GetClient(_ context.Context, id string) (*domain.ClientBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	client, ok := s.clients[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("client", id)
	}
	return &domain.ClientBalance{Client: client, BalanceCents: s.balanceOf(id)}, nil
}

func (s *Store) ListClientsWithBalance(_ context.Context) ([]domain.ClientBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ClientBalance, 0, len(s.clients))
	for id, client := range s.clients {
		out = append(out, domain.ClientBalance{Client: client, BalanceCents: s.balanceOf(id)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) CreateMovement(_ context.Context, movement domain.AccountMovement) (*domain.AccountMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[movement.ClientID]; !ok {
		return nil, apperrors.NewNotFoundError("client", movement.ClientID)
	}
	if movement.SaleID != "" {
		if _, ok := s.sales[movement.SaleID]; !ok {
			return nil, apperrors.NewIntegrityError("movement references unknown sale "+movement.SaleID, nil)
		}
	}
	if movement.ID == "" {
		movement.ID = xid.New("mov")
	}
	s.movements = append(s.movements, movement)
	return &movement, nil
}

func (s *Store) ListMovements(_ context.Context, clientID string) ([]domain.AccountMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.clients[clientID]; !ok {
		return nil, apperrors.NewNotFoundError("client", clientID)
	}
	out := make([]domain.AccountMovement, 0, 16)
	for _, m := range s.movements {
		if m.ClientID == clientID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ListPayments(_ context.Context, from time.Time, to time.Time) ([]domain.PaymentEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.PaymentEntry, 0, 16)
	for _, m := range s.movements {
		if m.Type != domain.MovementPayment || !store.InRange(m.CreatedAt, from, to) {
			continue
		}
		out = append(out, domain.PaymentEntry{AccountMovement: m, ClientName: s.clients[m.ClientID].Name})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) CreateShift(_ context.Context, shift domain.Shift) (*domain.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.shifts {
		if existing.Open() {
			return nil, apperrors.NewShiftAlreadyOpenError(existing.ID)
		}
	}
	s.shifts = append(s.shifts, shift)
	return &shift, nil
}

func (s *Store) GetActiveShift(_ context.Context) (*domain.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, shift := range s.shifts {
		if shift.Open() {
			found := shift
			return &found, nil
		}
	}
	return nil, apperrors.NewNotFoundError("open shift", "")
}

func (s *Store) CloseShift(_ context.Context, id string, closingCashCents int64, theoreticalCashCents int64, closedAt time.Time) (*domain.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, shift := range s.shifts {
		if shift.ID != id {
			continue
		}
		if !shift.Open() {
			return nil, apperrors.NewNotFoundError("open shift", id)
		}
		closing := closingCashCents
		theoretical := theoreticalCashCents
		end := closedAt
		shift.EndTime = &end
		shift.ClosingCashCents = &closing
		shift.TheoreticalCashCents = &theoretical
		s.shifts[i] = shift
		return &shift, nil
	}
	return nil, apperrors.NewNotFoundError("shift", id)
}

func (s *Store) ListShifts(_ context.Context, limit int) ([]domain.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Shift, 0, len(s.shifts))
	for i := len(s.shifts) - 1; i >= 0; i-- {
		out = append(out, s.shifts[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) LedgerTotals(_ context.Context, from time.Time, to time.Time) (domain.LedgerTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var totals domain.LedgerTotals
	for _, id := range s.salesOrder {
		sale := s.sales[id]
		if store.InRange(sale.CreatedAt, from, to) {
			totals.GrossSalesCents += sale.TotalCents
		}
	}
	for _, e := range s.expenses {
		if store.InRange(e.CreatedAt, from, to) {
			totals.ExpensesCents += e.AmountCents
		}
	}
	for _, m := range s.movements {
		if !store.InRange(m.CreatedAt, from, to) {
			continue
		}
		switch m.Type {
		case domain.MovementDebt:
			totals.CreditGeneratedCents += m.AmountCents
		case domain.MovementPayment:
			totals.PaymentsReceivedCents += m.AmountCents
		}
	}
	return totals, nil
}

func (s *Store) GetConfig(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.config[key]
	return value, ok, nil
}

func (s *Store) SetConfig(_ context.Context, key string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.config[key] = value
	return nil
}

func (s *Store) ListConfig(_ context.Context) ([]domain.ConfigEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ConfigEntry, 0, len(s.config))
	for k, v := range s.config {
		out = append(out, domain.ConfigEntry{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.AuditLog, 0, len(s.auditLogs))
	for i := len(s.auditLogs) - 1; i >= 0; i-- {
		out = append(out, s.auditLogs[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if _, exists := s.usersByName[username]; exists {
		return apperrors.NewDuplicateNameError("user", username)
	}
	user.Username = username
	s.usersByName[username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.UserAccount, 0, len(s.usersByName))
	for _, u := range s.usersByName {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	user, ok := s.usersByName[username]
	if !ok {
		return apperrors.NewNotFoundError("user", username)
	}
	user.Password = password
	s.usersByName[username] = user
	return nil
}

// project replaces a bundle's stored stock with its virtual stock. Callers hold s.mu.
func (s *Store) project(p domain.Product) domain.Product {
	if !p.IsBundle {
		return p
	}
	comps := s.components[p.ID]
	stocks := make([]store.ComponentStock, 0, len(comps))
	for _, c := range comps {
		stocks = append(stocks, store.ComponentStock{Stock: s.products[c.ComponentID].Stock, RequiredQty: c.RequiredQty})
	}
	p.Stock = store.VirtualStock(stocks)
	return p
}

func (s *Store) checkProductUnique(product domain.Product) error {
	for id, existing := range s.products {
		if id == product.ID {
			continue
		}
		if existing.Name == product.Name {
			return apperrors.NewDuplicateNameError("product", product.Name)
		}
		if product.Barcode != "" && existing.Barcode == product.Barcode {
			return apperrors.NewDuplicateNameError("barcode", product.Barcode)
		}
	}
	return nil
}

func (s *Store) checkClientUnique(client domain.Client) error {
	for id, existing := range s.clients {
		if id != client.ID && existing.Name == client.Name {
			return apperrors.NewDuplicateNameError("client", client.Name)
		}
	}
	return nil
}

func (s *Store) balanceOf(clientID string) int64 {
	var balance int64
	for _, m := range s.movements {
		if m.ClientID != clientID {
			continue
		}
		switch m.Type {
		case domain.MovementDebt:
			balance += m.AmountCents
		case domain.MovementPayment:
			balance -= m.AmountCents
		}
	}
	return balance
}

func cloneSale(sale domain.Sale) domain.Sale {
	lines := make([]domain.SaleLine, len(sale.Lines))
	copy(lines, sale.Lines)
	sale.Lines = lines
	return sale
}

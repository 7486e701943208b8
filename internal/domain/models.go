package domain

import "time"

type PaymentMethod string

const (
	PaymentCash      PaymentMethod = "CASH"
	PaymentTransfer  PaymentMethod = "TRANSFER"
	PaymentDebit     PaymentMethod = "DEBIT"
	PaymentCredit    PaymentMethod = "CREDIT"
	PaymentOnAccount PaymentMethod = "ON_ACCOUNT"
)

var PaymentMethods = []PaymentMethod{PaymentCash, PaymentTransfer, PaymentDebit, PaymentCredit, PaymentOnAccount}

func (m PaymentMethod) Valid() bool {
	for _, known := range PaymentMethods {
		if m == known {
			return true
		}
	}
	return false
}

type MovementType string

const (
	MovementDebt    MovementType = "DEBT"
	MovementPayment MovementType = "PAYMENT"
)

func (t MovementType) Valid() bool {
	return t == MovementDebt || t == MovementPayment
}

const DefaultCategory = "General"

// Bounds on caller-supplied quantities and amounts. Keep the validate tags
// below in sync; they keep qty × price and requiredQty × qty inside int64.
const (
	MaxLineQty     = 100000
	MaxRequiredQty = 1000
	MaxStock       = 1000000000
	MaxAmountCents = 100000000000
)

// Product is a catalog entry. For bundles Stock holds the virtual stock
// computed from the components at read time.
type Product struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	PriceCents    int64      `json:"price_cents"`
	Stock         int        `json:"stock"`
	CriticalStock int        `json:"critical_stock"`
	Barcode       string     `json:"barcode,omitempty"`
	Category      string     `json:"category"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	IsBundle      bool       `json:"is_bundle"`
	CreatedAt     time.Time  `json:"created_at"`
}

func (p Product) LowStock() bool {
	return p.Stock <= p.CriticalStock
}

type PromotionComponent struct {
	PromotionID   string `json:"promotion_id"`
	ComponentID   string `json:"component_id"`
	ComponentName string `json:"component_name,omitempty"`
	RequiredQty   int    `json:"required_qty"`
}

type ProductCreateRequest struct {
	Name          string     `json:"name" validate:"required,max=120"`
	PriceCents    int64      `json:"price_cents" validate:"gte=0,lte=100000000000"`
	Stock         int        `json:"stock" validate:"gte=0,lte=1000000000"`
	CriticalStock int        `json:"critical_stock" validate:"gte=0,lte=1000000000"`
	Barcode       string     `json:"barcode" validate:"max=64"`
	Category      string     `json:"category" validate:"max=60"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

type ProductUpdateRequest struct {
	Name          *string    `json:"name,omitempty" validate:"omitempty,max=120"`
	PriceCents    *int64     `json:"price_cents,omitempty" validate:"omitempty,gte=0,lte=100000000000"`
	Stock         *int       `json:"stock,omitempty" validate:"omitempty,gte=0,lte=1000000000"`
	CriticalStock *int       `json:"critical_stock,omitempty" validate:"omitempty,gte=0,lte=1000000000"`
	Barcode       *string    `json:"barcode,omitempty" validate:"omitempty,max=64"`
	Category      *string    `json:"category,omitempty" validate:"omitempty,max=60"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

type StockAdjustRequest struct {
	Delta int `json:"delta" validate:"ne=0,gte=-1000000000,lte=1000000000"`
}

type PromotionComponentInput struct {
	ProductID   string `json:"product_id" validate:"required"`
	RequiredQty int    `json:"required_qty" validate:"gte=1,lte=1000"`
}

type PromotionCreateRequest struct {
	Name          string                    `json:"name" validate:"required,max=120"`
	PriceCents    int64                     `json:"price_cents" validate:"gte=0,lte=100000000000"`
	CriticalStock int                       `json:"critical_stock" validate:"gte=0,lte=1000000000"`
	Barcode       string                    `json:"barcode" validate:"max=64"`
	Category      string                    `json:"category" validate:"max=60"`
	Components    []PromotionComponentInput `json:"components" validate:"required,min=1,dive"`
}

type PromotionResponse struct {
	Product    Product              `json:"product"`
	Components []PromotionComponent `json:"components"`
}

type CartLine struct {
	ProductID string `json:"product_id" validate:"required"`
	Qty       int    `json:"qty" validate:"gte=1,lte=100000"`
	// UnitPriceCents overrides the catalog price when set.
	UnitPriceCents *int64 `json:"unit_price_cents,omitempty" validate:"omitempty,gte=0,lte=100000000000"`
}

type SaleRequest struct {
	Cart            []CartLine    `json:"cart" validate:"required,min=1,dive"`
	PaymentMethod   PaymentMethod `json:"payment_method"`
	DiscountPercent float64       `json:"discount_percent" validate:"gte=0,lte=100"`
}

type OnAccountSaleRequest struct {
	ClientID        string     `json:"client_id" validate:"required"`
	Cart            []CartLine `json:"cart" validate:"required,min=1,dive"`
	DiscountPercent float64    `json:"discount_percent" validate:"gte=0,lte=100"`
}

type Sale struct {
	ID              string        `json:"id"`
	CreatedAt       time.Time     `json:"created_at"`
	SubtotalCents   int64         `json:"subtotal_cents"`
	DiscountPercent float64       `json:"discount_percent"`
	TotalCents      int64         `json:"total_cents"`
	PaymentMethod   PaymentMethod `json:"payment_method"`
	Lines           []SaleLine    `json:"lines,omitempty"`
}

type SaleLine struct {
	SaleID         string `json:"sale_id"`
	ProductID      string `json:"product_id"`
	ProductName    string `json:"product_name,omitempty"`
	Qty            int    `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	SubtotalCents  int64  `json:"subtotal_cents"`
}

type OnAccountSaleResponse struct {
	Sale     Sale            `json:"sale"`
	Movement AccountMovement `json:"movement"`
	Balance  int64           `json:"balance_cents"`
}

type Expense struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	AmountCents int64     `json:"amount_cents"`
	Category    string    `json:"category"`
	CreatedAt   time.Time `json:"created_at"`
}

type ExpenseCreateRequest struct {
	Description string `json:"description" validate:"required,max=200"`
	AmountCents int64  `json:"amount_cents" validate:"gt=0,lte=100000000000"`
	Category    string `json:"category" validate:"max=60"`
}

type Client struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Phone            string    `json:"phone,omitempty"`
	Alias            string    `json:"alias,omitempty"`
	CreditLimitCents int64     `json:"credit_limit_cents"`
	CreatedAt        time.Time `json:"created_at"`
}

type ClientBalance struct {
	Client
	BalanceCents int64 `json:"balance_cents"`
}

type ClientCreateRequest struct {
	Name             string `json:"name" validate:"required,max=120"`
	Phone            string `json:"phone" validate:"max=40"`
	Alias            string `json:"alias" validate:"max=60"`
	CreditLimitCents int64  `json:"credit_limit_cents" validate:"gte=0,lte=100000000000"`
}

type ClientUpdateRequest struct {
	Name             *string `json:"name,omitempty" validate:"omitempty,max=120"`
	Phone            *string `json:"phone,omitempty" validate:"omitempty,max=40"`
	Alias            *string `json:"alias,omitempty" validate:"omitempty,max=60"`
	CreditLimitCents *int64  `json:"credit_limit_cents,omitempty" validate:"omitempty,gte=0,lte=100000000000"`
}

type AccountMovement struct {
	ID          string       `json:"id"`
	ClientID    string       `json:"client_id"`
	CreatedAt   time.Time    `json:"created_at"`
	Type        MovementType `json:"type"`
	AmountCents int64        `json:"amount_cents"`
	Description string       `json:"description"`
	SaleID      string       `json:"sale_id,omitempty"`
}

type MovementCreateRequest struct {
	Type        MovementType `json:"type"`
	AmountCents int64        `json:"amount_cents" validate:"gt=0,lte=100000000000"`
	Description string       `json:"description" validate:"max=200"`
	SaleID      string       `json:"sale_id,omitempty"`
}

// PaymentEntry is a PAYMENT movement joined with its client name.
type PaymentEntry struct {
	AccountMovement
	ClientName string `json:"client_name"`
}

type Shift struct {
	ID                   string     `json:"id"`
	CashierName          string     `json:"cashier_name"`
	StartTime            time.Time  `json:"start_time"`
	EndTime              *time.Time `json:"end_time,omitempty"`
	OpeningCashCents     int64      `json:"opening_cash_cents"`
	ClosingCashCents     *int64     `json:"closing_cash_cents,omitempty"`
	TheoreticalCashCents *int64     `json:"theoretical_cash_cents,omitempty"`
}

func (s Shift) Open() bool {
	return s.EndTime == nil
}

type ShiftOpenRequest struct {
	OpeningCashCents int64  `json:"opening_cash_cents" validate:"gte=0,lte=100000000000"`
	CashierName      string `json:"cashier_name" validate:"required,max=80"`
}

type ShiftCloseRequest struct {
	CountedCashCents int64 `json:"counted_cash_cents" validate:"gte=0,lte=100000000000"`
	Confirm          bool  `json:"confirm"`
}

type PaymentBreakdown struct {
	PaymentMethod PaymentMethod `json:"payment_method"`
	Sales         int           `json:"sales"`
	TotalCents    int64         `json:"total_cents"`
}

type ShiftStats struct {
	Shift                 Shift              `json:"shift"`
	SalesCount            int                `json:"sales_count"`
	SalesTotalCents       int64              `json:"sales_total_cents"`
	PaymentsReceivedCents int64              `json:"payments_received_cents"`
	ExpensesCents         int64              `json:"expenses_cents"`
	TheoreticalCashCents  int64              `json:"theoretical_cash_cents"`
	ByPayment             []PaymentBreakdown `json:"by_payment"`
}

type ShiftCloseResult struct {
	Closed               bool  `json:"closed"`
	DiscrepancyCents     int64 `json:"discrepancy_cents"`
	TheoreticalCashCents int64 `json:"theoretical_cash_cents"`
	CountedCashCents     int64 `json:"counted_cash_cents"`
	Shift                Shift `json:"shift"`
}

type FinancialReport struct {
	Start                 time.Time `json:"start"`
	End                   time.Time `json:"end"`
	GrossSalesCents       int64     `json:"gross_sales_cents"`
	ExpensesCents         int64     `json:"expenses_cents"`
	CreditGeneratedCents  int64     `json:"credit_generated_cents"`
	PaymentsReceivedCents int64     `json:"payments_received_cents"`
	CashSalesPortionCents int64     `json:"cash_sales_portion_cents"`
	CashInflowCents       int64     `json:"cash_inflow_cents"`
	NetCashFlowCents      int64     `json:"net_cash_flow_cents"`
	OperatingProfitCents  int64     `json:"operating_profit_cents"`
}

// LedgerTotals are the raw range sums a FinancialReport is derived from.
type LedgerTotals struct {
	GrossSalesCents       int64
	ExpensesCents         int64
	CreditGeneratedCents  int64
	PaymentsReceivedCents int64
}

type TopProduct struct {
	ProductID    string `json:"product_id"`
	Name         string `json:"name"`
	QtySold      int    `json:"qty_sold"`
	RevenueCents int64  `json:"revenue_cents"`
}

type IncomeKind string

const (
	IncomeSale    IncomeKind = "SALE"
	IncomePayment IncomeKind = "PAYMENT"
)

type IncomeEntry struct {
	Kind          IncomeKind    `json:"kind"`
	ID            string        `json:"id"`
	Timestamp     time.Time     `json:"timestamp"`
	AmountCents   int64         `json:"amount_cents"`
	PaymentMethod PaymentMethod `json:"payment_method,omitempty"`
	ClientName    string        `json:"client_name,omitempty"`
	Description   string        `json:"description,omitempty"`
}

type ConfigEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type AuditLog struct {
	ID         string    `json:"id"`
	Actor      string    `json:"actor"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Detail     string    `json:"detail"`
	CreatedAt  time.Time `json:"created_at"`
}

const (
	RoleOwner   = "owner"
	RoleCashier = "cashier"
)

type Actor struct {
	Username string
	Role     string
}

type UserAccount struct {
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DeductionType selects how a discount or tax value is applied to a sale:
// FLAT subtracts/adds the value as-is, PERCENTAGE applies it against the
// relevant base amount.
type DeductionType string

const (
	DeductionFlat       DeductionType = "FLAT"
	DeductionPercentage DeductionType = "PERCENTAGE"
)

// StockDirection is the direction of a single inventory adjustment.
type StockDirection string

const (
	StockAdd    StockDirection = "ADD"
	StockRemove StockDirection = "REMOVE"
)

const (
	RoleOwner = "owner"
	RoleStaff = "staff"
)

type Product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	SalePrice decimal.Decimal `json:"salePrice"`
	CostPrice decimal.Decimal `json:"costPrice"`
	Unit      string          `json:"unit,omitempty"`
	Notes     string          `json:"notes,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Money fields cross the API boundary as strings so malformed amounts can be
// rejected explicitly instead of silently coerced.
type ProductCreateRequest struct {
	Name      string `json:"name"`
	SalePrice string `json:"salePrice"`
	CostPrice string `json:"costPrice"`
	Unit      string `json:"unit"`
	Notes     string `json:"notes"`
}

type ProductUpdateRequest struct {
	Name      *string `json:"name"`
	SalePrice *string `json:"salePrice"`
	CostPrice *string `json:"costPrice"`
	Unit      *string `json:"unit"`
	Notes     *string `json:"notes"`
}

type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	City      string    `json:"city,omitempty"`
	State     string    `json:"state,omitempty"`
	ZipCode   int       `json:"zipCode,omitempty"`
	Country   string    `json:"country,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type CustomerCreateRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode int    `json:"zipCode"`
	Country string `json:"country"`
}

type CustomerUpdateRequest struct {
	Name    *string `json:"name"`
	Email   *string `json:"email"`
	Phone   *string `json:"phone"`
	City    *string `json:"city"`
	State   *string `json:"state"`
	ZipCode *int    `json:"zipCode"`
	Country *string `json:"country"`
}

type Expense struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Cost        decimal.Decimal `json:"cost"`
	Description string          `json:"description,omitempty"`
	Timestamp   int64           `json:"timestamp"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type ExpenseCreateRequest struct {
	Name        string `json:"name"`
	Cost        string `json:"cost"`
	Description string `json:"description"`
	Timestamp   int64  `json:"timestamp"`
}

type ExpenseUpdateRequest struct {
	Name        *string `json:"name"`
	Cost        *string `json:"cost"`
	Description *string `json:"description"`
	Timestamp   *int64  `json:"timestamp"`
}

type Inventory struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Items     []InventoryItem `json:"items,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// InventoryItem is the stock record for one product inside one inventory.
// At most one record exists per (inventory, product) pair.
type InventoryItem struct {
	ID          string    `json:"id"`
	InventoryID string    `json:"inventoryId"`
	ProductID   string    `json:"productId"`
	Amount      int       `json:"amount"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type InventoryCreateRequest struct {
	Name string `json:"name"`
}

type InventoryUpdateRequest struct {
	Name *string `json:"name"`
}

type StockAdjustmentLine struct {
	ProductID string         `json:"productId"`
	Quantity  int            `json:"quantity"`
	Direction StockDirection `json:"direction"`
}

type StockAdjustmentRequest struct {
	Items []StockAdjustmentLine `json:"items"`
}

type StockAdjustmentResponse struct {
	InventoryID string          `json:"inventoryId"`
	Items       []InventoryItem `json:"items"`
}

// SaleLineItem captures the product's sale and cost price at the moment the
// sale was recorded; later product edits never change past sales. Prices are
// nullable so historic rows written before a price existed still load.
type SaleLineItem struct {
	ID        string           `json:"id"`
	SaleID    string           `json:"saleId"`
	ProductID string           `json:"productId"`
	Quantity  int              `json:"quantity"`
	SalePrice *decimal.Decimal `json:"salePrice"`
	CostPrice *decimal.Decimal `json:"costPrice"`
	CreatedAt time.Time        `json:"createdAt"`
}

type Sale struct {
	ID            string           `json:"id"`
	Timestamp     int64            `json:"timestamp"`
	CustomerID    string           `json:"customerId,omitempty"`
	LineItems     []SaleLineItem   `json:"lineItems"`
	DiscountType  DeductionType    `json:"discountType,omitempty"`
	DiscountValue *decimal.Decimal `json:"discountValue,omitempty"`
	TaxType       DeductionType    `json:"taxType,omitempty"`
	TaxValue      *decimal.Decimal `json:"taxValue,omitempty"`
	Shipping      *decimal.Decimal `json:"shipping,omitempty"`
	Note          string           `json:"note,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
}

// SaleLineItemInput is the only shape callers may submit line items in.
// Prices are never accepted from the caller.
type SaleLineItemInput struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type SaleCreateRequest struct {
	Timestamp     int64               `json:"timestamp"`
	CustomerID    string              `json:"customerId"`
	Items         []SaleLineItemInput `json:"items"`
	DiscountType  string              `json:"discountType"`
	DiscountValue string              `json:"discountValue"`
	TaxType       string              `json:"taxType"`
	TaxValue      string              `json:"taxValue"`
	Shipping      string              `json:"shipping"`
	Note          string              `json:"note"`
}

// SaleUpdateRequest is a full replacement: the submitted item set becomes the
// sale's entire item set and previous line items (and their ids) are gone.
type SaleUpdateRequest struct {
	Timestamp     int64               `json:"timestamp"`
	CustomerID    string              `json:"customerId"`
	Items         []SaleLineItemInput `json:"items"`
	DiscountType  string              `json:"discountType"`
	DiscountValue string              `json:"discountValue"`
	TaxType       string              `json:"taxType"`
	TaxValue      string              `json:"taxValue"`
	Shipping      string              `json:"shipping"`
	Note          string              `json:"note"`
}

type SaleSummary struct {
	Subtotal          decimal.Decimal `json:"subtotal"`
	DiscountDeduction decimal.Decimal `json:"discountDeduction"`
	TaxDeduction      decimal.Decimal `json:"taxDeduction"`
	Shipping          decimal.Decimal `json:"shipping"`
	Total             decimal.Decimal `json:"total"`
	Profit            decimal.Decimal `json:"profit"`
}

type SaleResponse struct {
	Sale    Sale        `json:"sale"`
	Summary SaleSummary `json:"summary"`
}

type SaleListResponse struct {
	Sales []SaleResponse `json:"sales"`
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

type Actor struct {
	Username string
	Role     string
}

type StaffCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type StaffUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is the persisted form of a login; Password holds a bcrypt hash.
type UserAccount struct {
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type User struct {
	ID        uuid.UUID
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Product struct {
	ID          uuid.UUID
	Title       string
	Description string
	Category    string
	Price       decimal.Decimal
	SalePrice   *decimal.Decimal
	TotalStock  int
	Active      bool
	Variants    []Variant
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EffectivePrice is the sale price when one is set and lower than the base
// price, else the base price.
func (p *Product) EffectivePrice() decimal.Decimal {
	if p.SalePrice != nil && p.SalePrice.LessThan(p.Price) {
		return *p.SalePrice
	}
	return p.Price
}

type Variant struct {
	ID            uuid.UUID
	ProductID     uuid.UUID
	Name          string
	Price         decimal.Decimal
	SalePrice     *decimal.Decimal
	StockQuantity int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (v *Variant) EffectivePrice() decimal.Decimal {
	if v.SalePrice != nil && v.SalePrice.LessThan(v.Price) {
		return *v.SalePrice
	}
	return v.Price
}

// Cart is owned by exactly one user. Totals are never stored; they are
// derived from the items on every read. Version backs the optimistic
// concurrency check on mutations.
type Cart struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Version   int64
	Items     []CartItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CartItem captures UnitPrice at add/update time. It is never re-derived
// from the catalog afterward, so an in-flight cart keeps the price the
// buyer saw.
type CartItem struct {
	ID        uuid.UUID
	CartID    uuid.UUID
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Quantity  int
	UnitPrice decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

type PaymentStatus string

const (
	PaymentStatusCreated PaymentStatus = "created"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// Terminal reports whether no further transition may leave the status.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusPaid || s == PaymentStatusFailed
}

// Payment is the local record of a checkout attempt against the gateway.
// A paid payment is the order; there is no separate order entity.
type Payment struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	GatewayOrderID string
	PaymentID      string
	Signature      string
	Receipt        string
	AmountPaise    int64
	Currency       string
	Status         PaymentStatus
	FailureReason  string
	Items          []PaymentItem
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PaymentItem is a by-value snapshot of a cart line at intent-creation
// time; later cart edits cannot touch it.
type PaymentItem struct {
	ID        uuid.UUID
	PaymentID uuid.UUID
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Title     string
	Quantity  int
	UnitPrice decimal.Decimal
}

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// DerivedOrderStatus maps payment status to the display status shown on
// order listings.
func DerivedOrderStatus(s PaymentStatus) OrderStatus {
	switch s {
	case PaymentStatusPaid:
		return OrderStatusProcessing
	case PaymentStatusFailed:
		return OrderStatusCancelled
	default:
		return OrderStatusPending
	}
}

type PaymentCapturedMessage struct {
	PaymentID uuid.UUID `json:"payment_id"`
	UserID    uuid.UUID `json:"user_id"`
}

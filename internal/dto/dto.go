package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mohitsatyarthiii/kanjique-jewels-project-sub001/internal/model"
)

// --- Auth ---

type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Role      string    `json:"role"`
}

// --- Product ---

type VariantRequest struct {
	Name          string           `json:"name" binding:"required"`
	Price         decimal.Decimal  `json:"price" binding:"required"`
	SalePrice     *decimal.Decimal `json:"salePrice"`
	StockQuantity int              `json:"stockQuantity" binding:"min=0"`
}

type CreateProductRequest struct {
	Title       string           `json:"title" binding:"required"`
	Description string           `json:"description" binding:"required"`
	Category    string           `json:"category"`
	Price       decimal.Decimal  `json:"price" binding:"required"`
	SalePrice   *decimal.Decimal `json:"salePrice"`
	TotalStock  int              `json:"totalStock" binding:"min=0"`
	Variants    []VariantRequest `json:"variants"`
}

type UpdateProductRequest struct {
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	Category    *string          `json:"category"`
	Price       *decimal.Decimal `json:"price"`
	SalePrice   *decimal.Decimal `json:"salePrice"`
	TotalStock  *int             `json:"totalStock"`
	Active      *bool            `json:"active"`
	Variants    []VariantRequest `json:"variants"`
}

type ListProductsRequest struct {
	Page   int    `form:"page,default=1" binding:"min=1"`
	Limit  int    `form:"limit,default=20" binding:"min=1,max=100"`
	Search string `form:"search"`
	Sort   string `form:"sort,default=created_at" binding:"oneof=title price created_at"`
	Order  string `form:"order,default=desc" binding:"oneof=asc desc"`
}

type VariantResponse struct {
	ID            uuid.UUID        `json:"id"`
	Name          string           `json:"name"`
	Price         decimal.Decimal  `json:"price"`
	SalePrice     *decimal.Decimal `json:"salePrice,omitempty"`
	StockQuantity int              `json:"stockQuantity"`
}

type ProductResponse struct {
	ID          uuid.UUID         `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Category    string            `json:"category,omitempty"`
	Price       decimal.Decimal   `json:"price"`
	SalePrice   *decimal.Decimal  `json:"salePrice,omitempty"`
	TotalStock  int               `json:"totalStock"`
	Active      bool              `json:"active"`
	Variants    []VariantResponse `json:"variants,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

type ProductListResponse struct {
	Products []ProductResponse `json:"products"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	Limit    int               `json:"limit"`
}

// ProductSummary is the lightweight join target for cart lines and order
// snapshots.
type ProductSummary struct {
	ID        uuid.UUID        `json:"id"`
	Title     string           `json:"title"`
	Price     decimal.Decimal  `json:"price"`
	SalePrice *decimal.Decimal `json:"salePrice,omitempty"`
}

// --- Cart ---

type CartItemRequest struct {
	ProductID uuid.UUID  `json:"productId" binding:"required"`
	VariantID *uuid.UUID `json:"variantId"`
	Quantity  int        `json:"quantity" binding:"required,min=1"`
}

// UpdateCartItemRequest allows quantity 0, which removes the line.
type UpdateCartItemRequest struct {
	ProductID uuid.UUID  `json:"productId" binding:"required"`
	VariantID *uuid.UUID `json:"variantId"`
	Quantity  int        `json:"quantity" binding:"min=0"`
}

type CartItemResponse struct {
	ProductID uuid.UUID       `json:"productId"`
	VariantID *uuid.UUID      `json:"variantId,omitempty"`
	Product   ProductSummary  `json:"product"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

type CartResponse struct {
	ID           uuid.UUID          `json:"id"`
	Items        []CartItemResponse `json:"items"`
	TotalItems   int                `json:"totalItems"`
	TotalPrice   decimal.Decimal    `json:"totalPrice"`
	TotalSavings decimal.Decimal    `json:"totalSavings"`
}

// --- Checkout ---

// CreateOrderRequest is empty for a cart checkout; a buy-now checkout
// carries a single synthesized line and bypasses the cart.
type CreateOrderRequest struct {
	ProductID *uuid.UUID `json:"productId"`
	VariantID *uuid.UUID `json:"variantId"`
	Quantity  int        `json:"quantity"`
}

type VerifyPaymentRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id" binding:"required"`
	RazorpayPaymentID string `json:"razorpay_payment_id" binding:"required"`
	RazorpaySignature string `json:"razorpay_signature" binding:"required"`
}

type PaymentFailureRequest struct {
	RazorpayOrderID string `json:"razorpay_order_id" binding:"required"`
	Reason          string `json:"reason"`
}

type PaymentResponse struct {
	ID             uuid.UUID           `json:"id"`
	GatewayOrderID string              `json:"gatewayOrderId"`
	PaymentID      string              `json:"paymentId,omitempty"`
	Receipt        string              `json:"receipt"`
	Amount         int64               `json:"amount"`
	Currency       string              `json:"currency"`
	Status         model.PaymentStatus `json:"status"`
	CreatedAt      time.Time           `json:"created_at"`
}

// --- Orders (read side) ---

type OrderItemResponse struct {
	ProductID uuid.UUID       `json:"productId"`
	VariantID *uuid.UUID      `json:"variantId,omitempty"`
	Title     string          `json:"title"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

type OrderResponse struct {
	ID             uuid.UUID           `json:"id"`
	GatewayOrderID string              `json:"gatewayOrderId"`
	Status         model.OrderStatus   `json:"status"`
	PaymentStatus  model.PaymentStatus `json:"paymentStatus"`
	Amount         int64               `json:"amount"`
	Currency       string              `json:"currency"`
	Items          []OrderItemResponse `json:"items"`
	CreatedAt      time.Time           `json:"created_at"`
}

package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusPending   OrderStatus = "PENDING"
)

// IsValid reports whether s is a known status.
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusCancelled, OrderStatusPending:
		return true
	}
	return false
}

func (s OrderStatus) String() string {
	return string(s)
}

// Order is the immutable record of a completed purchase.
type Order struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	CustomerID string          `json:"customerId" db:"customer_id"`
	Total      decimal.Decimal `json:"total" db:"total"`
	Status     OrderStatus     `json:"status" db:"status"`
	CreatedAt  time.Time       `json:"createdAt" db:"created_at"`
}

// OrderLine is a snapshot of a cart line at the moment of purchase.
type OrderLine struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	OrderID     uuid.UUID       `json:"-" db:"order_id"`
	ProductID   string          `json:"productId" db:"product_id"`
	ProductName string          `json:"productName" db:"product_name"`
	UnitPrice   decimal.Decimal `json:"unitPrice" db:"unit_price"`
	Quantity    int             `json:"quantity" db:"quantity"`
	ImageURL    *string         `json:"imageUrl,omitempty" db:"image_url"`
}

// Subtotal returns unit price times quantity.
func (l OrderLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// OrderLineFromCart snapshots a cart line into an order line owned by orderID.
func OrderLineFromCart(orderID uuid.UUID, line CartLine) OrderLine {
	return OrderLine{
		ID:          uuid.New(),
		OrderID:     orderID,
		ProductID:   line.ProductID,
		ProductName: line.ProductName,
		UnitPrice:   line.UnitPrice,
		Quantity:    line.Quantity,
		ImageURL:    line.ImageURL,
	}
}

// OrderResponse represents the response payload for an order.
type OrderResponse struct {
	Order
	Lines []OrderLine `json:"lines"`
}

// StockAdjustment records a stock decrement owed by an order. It is written
// in the same transaction as the order and applied once afterwards.
type StockAdjustment struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	OrderID   uuid.UUID  `json:"orderId" db:"order_id"`
	ProductID string     `json:"productId" db:"product_id"`
	Quantity  int        `json:"quantity" db:"quantity"`
	Attempts  int        `json:"attempts" db:"attempts"`
	LastError *string    `json:"lastError,omitempty" db:"last_error"`
	AppliedAt *time.Time `json:"appliedAt,omitempty" db:"applied_at"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
}

// CheckoutResult is reported after a checkout that recorded an order.
type CheckoutResult struct {
	OrderID uuid.UUID       `json:"orderId"`
	Total   decimal.Decimal `json:"total"`
	Status  OrderStatus     `json:"status"`
	Lines   []OrderLine     `json:"lines"`
}

package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartLine is one product entry in a customer's cart. Name, price and image
// are copied from the product when the line is first created.
type CartLine struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	CustomerID  string          `json:"customerId" db:"customer_id"`
	ProductID   string          `json:"productId" db:"product_id"`
	ProductName string          `json:"productName" db:"product_name"`
	UnitPrice   decimal.Decimal `json:"unitPrice" db:"unit_price"`
	Quantity    int             `json:"quantity" db:"quantity"`
	ImageURL    *string         `json:"imageUrl,omitempty" db:"image_url"`
	AddedAt     time.Time       `json:"addedAt" db:"added_at"`
}

// Subtotal returns unit price times quantity.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// CartView is a consistent read of a cart: the lines and the total derived
// from exactly those lines.
type CartView struct {
	CustomerID string          `json:"customerId"`
	Lines      []CartLine      `json:"lines"`
	Total      decimal.Decimal `json:"total"`
	ItemCount  int             `json:"itemCount"`
}

// NewCartView builds a view over lines, recomputing the total.
func NewCartView(customerID string, lines []CartLine) CartView {
	if lines == nil {
		lines = []CartLine{}
	}
	return CartView{
		CustomerID: customerID,
		Lines:      lines,
		Total:      CartTotal(lines),
		ItemCount:  itemCount(lines),
	}
}

// IsEmpty reports whether the cart has no lines.
func (v CartView) IsEmpty() bool {
	return len(v.Lines) == 0
}

// CartTotal sums the subtotals of lines. An empty cart totals zero.
func CartTotal(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

func itemCount(lines []CartLine) int {
	n := 0
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}

// AddToCartRequest is the payload for adding a product to the cart.
type AddToCartRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// SetQuantityRequest is the payload for changing a cart line quantity.
type SetQuantityRequest struct {
	Quantity int `json:"quantity"`
}

package service

import (
	"context"

	"petshop-kart/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductService defines operations for product management.
type ProductService interface {
	// GetAll retrieves all products with pagination.
	GetAll(ctx context.Context, limit, offset int) ([]model.Product, error)

	// GetByID retrieves a single product by ID.
	GetByID(ctx context.Context, id string) (*model.Product, error)
}

// CartLedger maintains each customer's cart. Every mutation is persisted
// before it returns, and the total is always derived from the current lines.
type CartLedger interface {
	// AddItem adds quantity of a product, merging into the existing line for
	// the same product if there is one.
	AddItem(ctx context.Context, customerID, productID, productName string, unitPrice decimal.Decimal, quantity int) (*model.CartLine, error)

	// AddProduct adds a catalogue product, snapshotting its name, price and image.
	AddProduct(ctx context.Context, customerID, productID string, quantity int) (*model.CartLine, error)

	// SetQuantity updates a line; a quantity of zero or less removes it.
	SetQuantity(ctx context.Context, customerID string, lineID uuid.UUID, quantity int) error

	// Increment raises a line's quantity by one.
	Increment(ctx context.Context, customerID string, lineID uuid.UUID) error

	// Decrement lowers a line's quantity by one, removing the line at zero.
	Decrement(ctx context.Context, customerID string, lineID uuid.UUID) error

	// RemoveItem deletes a line. Removing an absent line is not an error.
	RemoveItem(ctx context.Context, customerID string, lineID uuid.UUID) error

	// Clear empties the customer's cart.
	Clear(ctx context.Context, customerID string) error

	// Items returns the lines in the order their products were first added.
	Items(ctx context.Context, customerID string) ([]model.CartLine, error)

	// Total returns the sum of unit price times quantity over the stored
	// lines, bypassing the cache.
	Total(ctx context.Context, customerID string) (decimal.Decimal, error)

	// View returns the lines and the total computed from the same read.
	View(ctx context.Context, customerID string) (model.CartView, error)

	// Snapshot is View read straight from the database. Checkout prices
	// and reserves from it.
	Snapshot(ctx context.Context, customerID string) (model.CartView, error)

	// Subscribe registers fn to receive the cart after each successful
	// mutation. The returned func removes the subscription.
	Subscribe(customerID string, fn func(model.CartView)) (unsubscribe func())
}

// CheckoutService turns a cart into an order.
type CheckoutService interface {
	Execute(ctx context.Context, customerID string) (*model.CheckoutResult, error)
}

// OrderService defines read operations over recorded orders.
type OrderService interface {
	// GetByID retrieves an order with its lines. Returns nil when absent.
	GetByID(ctx context.Context, id uuid.UUID) (*model.OrderResponse, error)

	// ListByCustomer returns the customer's orders, newest first.
	ListByCustomer(ctx context.Context, customerID string, limit, offset int) ([]model.Order, error)

	// ListAll returns every order, newest first.
	ListAll(ctx context.Context, limit, offset int) ([]model.Order, error)
}

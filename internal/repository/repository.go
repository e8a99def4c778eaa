package repository

import (
	"context"

	"petshop-kart/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ProductRepository defines the interface for product data access operations.
type ProductRepository interface {
	// GetAll retrieves all products with pagination support.
	GetAll(ctx context.Context, limit, offset int) ([]model.Product, error)

	// GetByID retrieves a single product by its ID. Returns nil when absent.
	GetByID(ctx context.Context, id string) (*model.Product, error)

	// GetByIDs retrieves multiple products by their IDs.
	GetByIDs(ctx context.Context, ids []string) ([]model.Product, error)

	// Upsert inserts a product or replaces its catalogue fields and stock.
	Upsert(ctx context.Context, product *model.Product) error

	// DecrementStock lowers stock by quantity within tx, only if enough stock remains.
	// Returns model.ErrStockConflict when no row qualified.
	DecrementStock(ctx context.Context, tx pgx.Tx, id string, quantity int) error
}

// CartRepository defines the interface for cart line data access operations.
type CartRepository interface {
	// AddOrIncrement inserts line, or adds line.Quantity to the existing line for
	// the same customer and product. Returns the stored line.
	AddOrIncrement(ctx context.Context, line *model.CartLine) (*model.CartLine, error)

	// GetLine retrieves a line in the customer's cart. Returns nil when absent.
	GetLine(ctx context.Context, customerID string, lineID uuid.UUID) (*model.CartLine, error)

	// UpdateQuantity sets the quantity of a line. Reports whether the line existed.
	UpdateQuantity(ctx context.Context, customerID string, lineID uuid.UUID, quantity int) (bool, error)

	// DeleteLine removes a line. Reports whether the line existed.
	DeleteLine(ctx context.Context, customerID string, lineID uuid.UUID) (bool, error)

	// DeleteByCustomer removes every line of the customer's cart.
	DeleteByCustomer(ctx context.Context, customerID string) (int64, error)

	// ListByCustomer returns the customer's lines in the order they were first added.
	ListByCustomer(ctx context.Context, customerID string) ([]model.CartLine, error)
}

// OrderRepository defines the interface for order data access operations.
type OrderRepository interface {
	// BeginTx starts a new database transaction.
	BeginTx(ctx context.Context) (pgx.Tx, error)

	// CreateOrder inserts a new order within the provided transaction.
	CreateOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error

	// CreateOrderLines inserts the order's lines within the provided transaction.
	CreateOrderLines(ctx context.Context, tx pgx.Tx, lines []model.OrderLine) error

	// GetByID retrieves an order by its ID along with its lines.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, []model.OrderLine, error)

	// ListByCustomer returns the customer's orders, newest first.
	ListByCustomer(ctx context.Context, customerID string, limit, offset int) ([]model.Order, error)

	// ListAll returns every order, newest first.
	ListAll(ctx context.Context, limit, offset int) ([]model.Order, error)
}

// AdjustmentRepository defines data access for stock adjustments owed by orders.
type AdjustmentRepository interface {
	// BeginTx starts a new database transaction.
	BeginTx(ctx context.Context) (pgx.Tx, error)

	// Create inserts adjustments within the provided transaction.
	Create(ctx context.Context, tx pgx.Tx, adjustments []model.StockAdjustment) error

	// MarkApplied claims a pending adjustment within tx. Reports false when it
	// was already applied.
	MarkApplied(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error)

	// RecordFailure increments the attempt counter and stores the last error.
	RecordFailure(ctx context.Context, id uuid.UUID, cause string) error

	// Pending returns unapplied adjustments ordered by attempts, then age.
	Pending(ctx context.Context, limit int) ([]model.StockAdjustment, error)

	// CountPending returns the number of unapplied adjustments.
	CountPending(ctx context.Context) (int, error)
}

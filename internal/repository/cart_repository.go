package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"petshop-kart/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const cartLineColumns = `id, customer_id, product_id, product_name, unit_price, quantity, image_url, added_at`

// cartRepository implements the CartRepository interface using PostgreSQL.
type cartRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewCartRepository creates a new PostgreSQL-backed cart repository.
func NewCartRepository(pool *pgxpool.Pool, logger zerolog.Logger) CartRepository {
	return &cartRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "cart").Logger(),
	}
}

// AddOrIncrement inserts line or adds its quantity to the customer's existing
// line for the same product. The snapshot fields of an existing line are kept.
func (r *cartRepository) AddOrIncrement(ctx context.Context, line *model.CartLine) (*model.CartLine, error) {
	if line.ID == uuid.Nil {
		line.ID = uuid.New()
	}
	if line.AddedAt.IsZero() {
		line.AddedAt = time.Now()
	}

	query := `
		INSERT INTO cart_lines (id, customer_id, product_id, product_name, unit_price, quantity, image_url, added_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (customer_id, product_id) DO UPDATE
		SET quantity = cart_lines.quantity + EXCLUDED.quantity
		RETURNING ` + cartLineColumns

	var stored model.CartLine
	err := scanCartLine(r.pool.QueryRow(ctx, query,
		line.ID, line.CustomerID, line.ProductID, line.ProductName,
		line.UnitPrice, line.Quantity, line.ImageURL, line.AddedAt,
	), &stored)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("customer_id", line.CustomerID).
			Str("product_id", line.ProductID).
			Msg("failed to add cart line")
		return nil, fmt.Errorf("failed to add cart line: %w", err)
	}

	return &stored, nil
}

// GetLine retrieves a line in the customer's cart.
func (r *cartRepository) GetLine(ctx context.Context, customerID string, lineID uuid.UUID) (*model.CartLine, error) {
	query := `SELECT ` + cartLineColumns + ` FROM cart_lines WHERE id = $1 AND customer_id = $2`

	var l model.CartLine
	err := scanCartLine(r.pool.QueryRow(ctx, query, lineID, customerID), &l)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("line_id", lineID.String()).Msg("failed to query cart line")
		return nil, fmt.Errorf("failed to query cart line: %w", err)
	}

	return &l, nil
}

// UpdateQuantity sets the quantity of a line.
func (r *cartRepository) UpdateQuantity(ctx context.Context, customerID string, lineID uuid.UUID, quantity int) (bool, error) {
	query := `UPDATE cart_lines SET quantity = $3 WHERE id = $1 AND customer_id = $2`

	tag, err := r.pool.Exec(ctx, query, lineID, customerID, quantity)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("line_id", lineID.String()).
			Int("quantity", quantity).
			Msg("failed to update cart line quantity")
		return false, fmt.Errorf("failed to update cart line: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// DeleteLine removes a line.
func (r *cartRepository) DeleteLine(ctx context.Context, customerID string, lineID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM cart_lines WHERE id = $1 AND customer_id = $2`, lineID, customerID)
	if err != nil {
		r.logger.Error().Err(err).Str("line_id", lineID.String()).Msg("failed to delete cart line")
		return false, fmt.Errorf("failed to delete cart line: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// DeleteByCustomer removes every line of the customer's cart. Deleting an
// empty cart is not an error.
func (r *cartRepository) DeleteByCustomer(ctx context.Context, customerID string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM cart_lines WHERE customer_id = $1`, customerID)
	if err != nil {
		r.logger.Error().Err(err).Str("customer_id", customerID).Msg("failed to clear cart")
		return 0, fmt.Errorf("failed to clear cart: %w", err)
	}

	r.logger.Debug().
		Str("customer_id", customerID).
		Int64("removed", tag.RowsAffected()).
		Msg("cart cleared")

	return tag.RowsAffected(), nil
}

// ListByCustomer returns the customer's lines in the order they were first added.
func (r *cartRepository) ListByCustomer(ctx context.Context, customerID string) ([]model.CartLine, error) {
	query := `SELECT ` + cartLineColumns + ` FROM cart_lines WHERE customer_id = $1 ORDER BY seq`

	rows, err := r.pool.Query(ctx, query, customerID)
	if err != nil {
		r.logger.Error().Err(err).Str("customer_id", customerID).Msg("failed to query cart lines")
		return nil, fmt.Errorf("failed to query cart lines: %w", err)
	}
	defer rows.Close()

	lines := []model.CartLine{}
	for rows.Next() {
		var l model.CartLine
		if err := scanCartLine(rows, &l); err != nil {
			r.logger.Error().Err(err).Msg("failed to scan cart line row")
			return nil, fmt.Errorf("failed to scan cart line: %w", err)
		}
		lines = append(lines, l)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating cart line rows")
		return nil, fmt.Errorf("error iterating cart lines: %w", err)
	}

	return lines, nil
}

func scanCartLine(row pgx.Row, l *model.CartLine) error {
	return row.Scan(&l.ID, &l.CustomerID, &l.ProductID, &l.ProductName, &l.UnitPrice, &l.Quantity, &l.ImageURL, &l.AddedAt)
}

package repository

import (
	"context"
	"fmt"

	"petshop-kart/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// adjustmentRepository implements the AdjustmentRepository interface using PostgreSQL.
type adjustmentRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewAdjustmentRepository creates a new PostgreSQL-backed stock adjustment repository.
func NewAdjustmentRepository(pool *pgxpool.Pool, logger zerolog.Logger) AdjustmentRepository {
	return &adjustmentRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "stock_adjustment").Logger(),
	}
}

// BeginTx starts a new database transaction.
func (r *adjustmentRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// Create inserts adjustments within the provided transaction.
func (r *adjustmentRepository) Create(ctx context.Context, tx pgx.Tx, adjustments []model.StockAdjustment) error {
	if len(adjustments) == 0 {
		return nil
	}

	query := `
		INSERT INTO stock_adjustments (id, order_id, product_id, quantity, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	batch := &pgx.Batch{}
	for _, a := range adjustments {
		batch.Queue(query, a.ID, a.OrderID, a.ProductID, a.Quantity, a.CreatedAt)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for i := range adjustments {
		if _, err := results.Exec(); err != nil {
			r.logger.Error().
				Err(err).
				Str("order_id", adjustments[i].OrderID.String()).
				Str("product_id", adjustments[i].ProductID).
				Msg("failed to create stock adjustment")
			return fmt.Errorf("failed to create stock adjustment: %w", err)
		}
	}

	return nil
}

// MarkApplied claims a pending adjustment. Only one transaction can flip
// applied_at, so an adjustment is never applied twice.
func (r *adjustmentRepository) MarkApplied(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error) {
	query := `
		UPDATE stock_adjustments
		SET applied_at = NOW(), attempts = attempts + 1, last_error = NULL
		WHERE id = $1 AND applied_at IS NULL
	`

	tag, err := tx.Exec(ctx, query, id)
	if err != nil {
		r.logger.Error().Err(err).Str("adjustment_id", id.String()).Msg("failed to mark adjustment applied")
		return false, fmt.Errorf("failed to mark adjustment applied: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// RecordFailure increments the attempt counter and stores the last error.
func (r *adjustmentRepository) RecordFailure(ctx context.Context, id uuid.UUID, cause string) error {
	query := `
		UPDATE stock_adjustments
		SET attempts = attempts + 1, last_error = $2
		WHERE id = $1 AND applied_at IS NULL
	`

	if _, err := r.pool.Exec(ctx, query, id, cause); err != nil {
		r.logger.Error().Err(err).Str("adjustment_id", id.String()).Msg("failed to record adjustment failure")
		return fmt.Errorf("failed to record adjustment failure: %w", err)
	}

	return nil
}

// Pending returns unapplied adjustments, fewest attempts first and then
// oldest first, so rows that keep failing cannot crowd newer ones out of a batch.
func (r *adjustmentRepository) Pending(ctx context.Context, limit int) ([]model.StockAdjustment, error) {
	query := `
		SELECT id, order_id, product_id, quantity, attempts, last_error, applied_at, created_at
		FROM stock_adjustments
		WHERE applied_at IS NULL
		ORDER BY attempts, created_at, id
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query pending adjustments")
		return nil, fmt.Errorf("failed to query pending adjustments: %w", err)
	}
	defer rows.Close()

	adjustments := []model.StockAdjustment{}
	for rows.Next() {
		var a model.StockAdjustment
		err := rows.Scan(&a.ID, &a.OrderID, &a.ProductID, &a.Quantity, &a.Attempts, &a.LastError, &a.AppliedAt, &a.CreatedAt)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan adjustment row")
			return nil, fmt.Errorf("failed to scan adjustment: %w", err)
		}
		adjustments = append(adjustments, a)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating adjustment rows")
		return nil, fmt.Errorf("error iterating adjustments: %w", err)
	}

	return adjustments, nil
}

// CountPending returns the number of unapplied adjustments.
func (r *adjustmentRepository) CountPending(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM stock_adjustments WHERE applied_at IS NULL`).Scan(&n); err != nil {
		r.logger.Error().Err(err).Msg("failed to count pending adjustments")
		return 0, fmt.Errorf("failed to count pending adjustments: %w", err)
	}
	return n, nil
}

package service

import (
	"context"
	"errors"
	"fmt"

	"petshop-kart/internal/model"
	"petshop-kart/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// StockSettler applies recorded stock adjustments. Each adjustment is claimed
// and applied in one transaction, so it takes effect at most once no matter
// how many callers race on it.
type StockSettler struct {
	adjustments repository.AdjustmentRepository
	products    repository.ProductRepository
	logger      zerolog.Logger
}

func NewStockSettler(adjustments repository.AdjustmentRepository, products repository.ProductRepository, logger zerolog.Logger) *StockSettler {
	return &StockSettler{
		adjustments: adjustments,
		products:    products,
		logger:      logger.With().Str("service", "settlement").Logger(),
	}
}

// Apply decrements stock for adj. It reports false without error when the
// adjustment had already been applied. A failed attempt is recorded on the
// adjustment and left pending.
func (s *StockSettler) Apply(ctx context.Context, adj model.StockAdjustment) (applied bool, err error) {
	defer func() {
		if err == nil {
			return
		}
		if recErr := s.adjustments.RecordFailure(ctx, adj.ID, err.Error()); recErr != nil {
			s.logger.Error().Err(recErr).Str("adjustment_id", adj.ID.String()).Msg("failed to record adjustment failure")
		}
	}()

	tx, err := s.adjustments.BeginTx(ctx)
	if err != nil {
		return false, err
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
		}
	}()

	claimed, err := s.adjustments.MarkApplied(ctx, tx, adj.ID)
	if err != nil {
		return false, err
	}
	if !claimed {
		s.logger.Debug().Str("adjustment_id", adj.ID.String()).Msg("adjustment already applied")
		return false, nil
	}

	if err = s.products.DecrementStock(ctx, tx, adj.ProductID, adj.Quantity); err != nil {
		return false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit stock adjustment: %w", err)
	}
	committed = true

	s.logger.Debug().
		Str("adjustment_id", adj.ID.String()).
		Str("order_id", adj.OrderID.String()).
		Str("product_id", adj.ProductID).
		Int("quantity", adj.Quantity).
		Msg("stock adjusted")

	return true, nil
}

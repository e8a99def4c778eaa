package service

import (
	"context"
	"fmt"

	"petshop-kart/internal/model"
	"petshop-kart/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// orderService implements OrderService.
type orderService struct {
	orderRepo repository.OrderRepository
	logger    zerolog.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(orderRepo repository.OrderRepository, logger zerolog.Logger) OrderService {
	return &orderService{
		orderRepo: orderRepo,
		logger:    logger.With().Str("service", "order").Logger(),
	}
}

// GetByID retrieves an order by its ID with all of its lines.
func (s *orderService) GetByID(ctx context.Context, id uuid.UUID) (*model.OrderResponse, error) {
	order, lines, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to get order")
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	if order == nil {
		s.logger.Debug().Str("order_id", id.String()).Msg("order not found")
		return nil, nil
	}

	if lines == nil {
		lines = []model.OrderLine{}
	}

	return &model.OrderResponse{
		Order: *order,
		Lines: lines,
	}, nil
}

// ListByCustomer returns the customer's orders, newest first.
func (s *orderService) ListByCustomer(ctx context.Context, customerID string, limit, offset int) ([]model.Order, error) {
	if customerID == "" {
		return nil, model.ErrMissingCustomer
	}
	limit, offset = normalisePage(limit, offset)

	orders, err := s.orderRepo.ListByCustomer(ctx, customerID, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).Str("customer_id", customerID).Msg("failed to list customer orders")
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// ListAll returns every order, newest first.
func (s *orderService) ListAll(ctx context.Context, limit, offset int) ([]model.Order, error) {
	limit, offset = normalisePage(limit, offset)

	orders, err := s.orderRepo.ListAll(ctx, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list orders")
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	s.logger.Debug().Int("count", len(orders)).Msg("listed orders")
	return orders, nil
}

// normalisePage clamps pagination to 1..100 with a default of 10.
func normalisePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"petshop-kart/internal/events"
	"petshop-kart/internal/metrics"
	"petshop-kart/internal/model"
	"petshop-kart/internal/notify"
	"petshop-kart/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// CheckoutStage is the step a checkout has reached.
type CheckoutStage int

const (
	StageIdle CheckoutStage = iota
	StageValidating
	StageReserving
	StagePersisting
	StageAdjusting
	StageClearing
	StageDone
)

var stageNames = [...]string{"idle", "validating", "reserving", "persisting", "adjusting", "clearing", "done"}

func (s CheckoutStage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// DefaultPublishTimeout bounds each event publish made during checkout.
const DefaultPublishTimeout = 2 * time.Second

// CheckoutDeps holds the collaborators of a checkout service. Sink, Publisher,
// Alerter and Metrics are optional. A zero PublishTimeout means
// DefaultPublishTimeout.
type CheckoutDeps struct {
	Ledger      CartLedger
	Products    repository.ProductRepository
	Orders      repository.OrderRepository
	Adjustments repository.AdjustmentRepository
	Settler     *StockSettler
	Sink        notify.Sink
	Publisher   events.Publisher
	Alerter     notify.Alerter
	Metrics     *metrics.CheckoutMetrics

	PublishTimeout time.Duration
}

// checkoutService implements CheckoutService.
type checkoutService struct {
	CheckoutDeps
	logger         zerolog.Logger
	now            func() time.Time
	publishTimeout time.Duration
}

// NewCheckoutService creates a new checkout service.
func NewCheckoutService(deps CheckoutDeps, logger zerolog.Logger) CheckoutService {
	if deps.Settler == nil {
		deps.Settler = NewStockSettler(deps.Adjustments, deps.Products, logger)
	}
	if deps.Sink == nil {
		deps.Sink = notify.Multi{}
	}
	if deps.Publisher == nil {
		deps.Publisher = events.Nop{}
	}
	if deps.Alerter == nil {
		deps.Alerter = notify.NewLogAlerter(logger)
	}
	publishTimeout := deps.PublishTimeout
	if publishTimeout <= 0 {
		publishTimeout = DefaultPublishTimeout
	}
	return &checkoutService{
		CheckoutDeps:   deps,
		logger:         logger.With().Str("service", "checkout").Logger(),
		now:            time.Now,
		publishTimeout: publishTimeout,
	}
}

// checkoutRun tracks the stages of one Execute call.
type checkoutRun struct {
	stage   CheckoutStage
	entered time.Time
	logger  zerolog.Logger
	metrics *metrics.CheckoutMetrics
}

func (r *checkoutRun) advance(next CheckoutStage) {
	now := time.Now()
	if r.stage != StageIdle {
		r.metrics.RecordStage(r.stage.String(), now.Sub(r.entered))
	}
	r.logger.Debug().Stringer("from", r.stage).Stringer("to", next).Msg("checkout stage")
	r.stage = next
	r.entered = now
}

// Execute converts the customer's cart into an order.
//
// Nothing is written until stock has been checked for every line. The order,
// its lines and the stock it owes are then committed together. Once that
// commit succeeds the order stands: stock is adjusted and the cart cleared
// even if ctx is cancelled, and adjustments that fail are left for
// reconciliation and reported as a *model.PartialSettlementError.
func (s *checkoutService) Execute(ctx context.Context, customerID string) (*model.CheckoutResult, error) {
	if customerID == "" {
		return nil, model.ErrMissingCustomer
	}

	logger := s.logger.With().Str("customer_id", customerID).Logger()
	run := &checkoutRun{logger: logger, metrics: s.Metrics}

	run.advance(StageValidating)
	view, err := s.Ledger.Snapshot(ctx, customerID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to read cart")
		return nil, s.fail(ctx, customerID, model.CheckoutFailure(err))
	}
	if view.IsEmpty() {
		logger.Info().Msg("checkout rejected, cart is empty")
		s.Metrics.RecordOutcome(metrics.OutcomeEmptyCart)
		s.notifyFailure(ctx, customerID, "Cart is empty")
		return nil, model.ErrEmptyCart
	}

	run.advance(StageReserving)
	if err := s.checkStock(ctx, view.Lines); err != nil {
		var stockErr *model.InsufficientStockError
		if errors.As(err, &stockErr) {
			logger.Info().
				Str("product_id", stockErr.ProductID).
				Int("requested", stockErr.Requested).
				Int("available", stockErr.Available).
				Msg("checkout rejected, insufficient stock")
			s.Metrics.RecordOutcome(metrics.OutcomeInsufficientStock)
			s.notifyFailure(ctx, customerID, fmt.Sprintf("Not enough stock for %s", stockErr.ProductName))
			return nil, err
		}
		return nil, s.fail(ctx, customerID, err)
	}

	order, lines, adjustments := s.buildOrder(view)
	orderLog := logger.With().Str("order_id", order.ID.String()).Logger()

	run.advance(StagePersisting)
	if err := s.persist(ctx, order, lines, adjustments); err != nil {
		orderLog.Error().Err(err).Msg("failed to record order")
		return nil, s.fail(ctx, customerID, model.CheckoutFailure(err))
	}

	// The order is committed. Finish the remaining steps regardless of the caller.
	ctx = context.WithoutCancel(ctx)

	run.advance(StageAdjusting)
	settleErr := s.settle(ctx, order, adjustments)

	run.advance(StageClearing)
	if err := s.Ledger.Clear(ctx, customerID); err != nil {
		orderLog.Warn().Err(err).Msg("order recorded but cart could not be cleared")
	}

	run.advance(StageDone)

	s.publish(ctx, events.Event{
		Type:       events.TypeOrderCompleted,
		OrderID:    order.ID.String(),
		CustomerID: customerID,
		Total:      order.Total,
		ProductIDs: productIDs(lines),
	})
	s.Sink.Notify(ctx, notify.Notification{
		CustomerID: customerID,
		Level:      notify.LevelSuccess,
		Message:    fmt.Sprintf("Purchase completed, total %s", order.Total.StringFixed(2)),
		OrderID:    order.ID.String(),
		At:         s.now(),
	})

	if settleErr != nil {
		s.Metrics.RecordOutcome(metrics.OutcomePartial)
		return nil, settleErr
	}

	s.Metrics.RecordOutcome(metrics.OutcomeSuccess)
	orderLog.Info().
		Str("total", order.Total.StringFixed(2)).
		Int("line_count", len(lines)).
		Msg("checkout completed")

	return &model.CheckoutResult{
		OrderID: order.ID,
		Total:   order.Total,
		Status:  order.Status,
		Lines:   lines,
	}, nil
}

// checkStock fails on the first line, in cart order, whose product cannot
// cover the requested quantity. Products are read in one query.
func (s *checkoutService) checkStock(ctx context.Context, lines []model.CartLine) error {
	ids := make([]string, len(lines))
	for i, line := range lines {
		ids[i] = line.ProductID
	}
	products, err := s.Products.GetByIDs(ctx, ids)
	if err != nil {
		s.logger.Error().Err(err).Strs("product_ids", ids).Msg("failed to read product stock")
		return model.CheckoutFailure(err)
	}
	stock := make(map[string]int, len(products))
	for _, p := range products {
		stock[p.ID] = p.Stock
	}

	for _, line := range lines {
		available, ok := stock[line.ProductID]
		if !ok {
			s.logger.Warn().Str("product_id", line.ProductID).Msg("cart references unknown product")
			return model.ErrProductNotFound
		}
		if available < line.Quantity {
			return &model.InsufficientStockError{
				ProductID:   line.ProductID,
				ProductName: line.ProductName,
				Requested:   line.Quantity,
				Available:   available,
			}
		}
	}
	return nil
}

func (s *checkoutService) buildOrder(view model.CartView) (*model.Order, []model.OrderLine, []model.StockAdjustment) {
	now := s.now()
	order := &model.Order{
		ID:         uuid.New(),
		CustomerID: view.CustomerID,
		Total:      view.Total,
		Status:     model.OrderStatusCompleted,
		CreatedAt:  now,
	}

	lines := make([]model.OrderLine, len(view.Lines))
	adjustments := make([]model.StockAdjustment, len(view.Lines))
	for i, cl := range view.Lines {
		lines[i] = model.OrderLineFromCart(order.ID, cl)
		adjustments[i] = model.StockAdjustment{
			ID:        uuid.New(),
			OrderID:   order.ID,
			ProductID: cl.ProductID,
			Quantity:  cl.Quantity,
			CreatedAt: now,
		}
	}
	return order, lines, adjustments
}

// persist writes the order, its lines and its stock adjustments in one transaction.
func (s *checkoutService) persist(ctx context.Context, order *model.Order, lines []model.OrderLine, adjustments []model.StockAdjustment) (err error) {
	tx, err := s.Orders.BeginTx(ctx)
	if err != nil {
		return err
	}

	// Ensure transaction is rolled back on error
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				s.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
			}
		}
	}()

	if err = s.Orders.CreateOrder(ctx, tx, order); err != nil {
		return err
	}
	if err = s.Orders.CreateOrderLines(ctx, tx, lines); err != nil {
		return err
	}
	if err = s.Adjustments.Create(ctx, tx, adjustments); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit order: %w", err)
	}
	return nil
}

// settle applies every adjustment of the order, continuing past failures.
func (s *checkoutService) settle(ctx context.Context, order *model.Order, adjustments []model.StockAdjustment) error {
	var (
		failed   []string
		firstErr error
	)
	for _, adj := range adjustments {
		if _, err := s.Settler.Apply(ctx, adj); err != nil {
			failed = append(failed, adj.ProductID)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if len(failed) == 0 {
		return nil
	}

	partial := &model.PartialSettlementError{OrderID: order.ID, ProductIDs: failed, Cause: firstErr}

	s.logger.Error().
		Err(firstErr).
		Str("order_id", order.ID.String()).
		Str("customer_id", order.CustomerID).
		Strs("product_ids", failed).
		Msg("order recorded but stock not fully adjusted")
	s.Metrics.RecordPartialSettlement()

	s.publish(ctx, events.Event{
		Type:       events.TypeSettlementPartial,
		OrderID:    order.ID.String(),
		CustomerID: order.CustomerID,
		Total:      order.Total,
		ProductIDs: failed,
		Reason:     firstErr.Error(),
	})

	body := fmt.Sprintf("Order %s was recorded but stock was not adjusted for: %s.\nCause: %v\nThe adjustments remain pending for reconciliation.",
		order.ID, strings.Join(failed, ", "), firstErr)
	if err := s.Alerter.Alert(ctx, "Partial stock settlement", body); err != nil {
		s.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to alert operators")
	}

	return partial
}

func (s *checkoutService) fail(ctx context.Context, customerID string, err error) error {
	s.Metrics.RecordOutcome(metrics.OutcomeFailed)
	s.notifyFailure(ctx, customerID, "Checkout failed, please try again")
	return err
}

func (s *checkoutService) notifyFailure(ctx context.Context, customerID, message string) {
	s.Sink.Notify(ctx, notify.Notification{
		CustomerID: customerID,
		Level:      notify.LevelFailure,
		Message:    message,
		At:         s.now(),
	})
}

// publish gives the broker at most publishTimeout. Events are best effort and
// must not hold up a committed checkout.
func (s *checkoutService) publish(ctx context.Context, event events.Event) {
	event.OccurredAt = s.now().UTC()
	ctx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()
	if err := s.Publisher.Publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("type", event.Type).Str("order_id", event.OrderID).Msg("failed to publish event")
	}
}

func productIDs(lines []model.OrderLine) []string {
	ids := make([]string, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}
	return ids
}

// Package reconcile retries stock adjustments that checkout could not apply.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"petshop-kart/internal/events"
	"petshop-kart/internal/metrics"
	"petshop-kart/internal/model"
	"petshop-kart/internal/notify"

	"github.com/rs/zerolog"
)

const (
	defaultInterval    = 30 * time.Second
	defaultBatchSize   = 100
	defaultMaxAttempts = 5

	publishTimeout = 2 * time.Second
)

// AdjustmentSource lists adjustments that have not been applied. Pending must
// return the least attempted adjustments first so that rows failing on every
// pass sink behind newer work.
type AdjustmentSource interface {
	Pending(ctx context.Context, limit int) ([]model.StockAdjustment, error)
	CountPending(ctx context.Context) (int, error)
}

// Settler applies one adjustment at most once.
type Settler interface {
	Apply(ctx context.Context, adj model.StockAdjustment) (bool, error)
}

// Option configures a Worker.
type Option func(*Worker)

func WithInterval(d time.Duration) Option {
	return func(w *Worker) { w.interval = d }
}

func WithBatchSize(n int) Option {
	return func(w *Worker) { w.batchSize = n }
}

// WithMaxAttempts sets the attempt count at which operators are alerted.
func WithMaxAttempts(n int) Option {
	return func(w *Worker) { w.maxAttempts = n }
}

func WithPublisher(p events.Publisher) Option {
	return func(w *Worker) { w.publisher = p }
}

func WithAlerter(a notify.Alerter) Option {
	return func(w *Worker) { w.alerter = a }
}

func WithMetrics(m *metrics.CheckoutMetrics) Option {
	return func(w *Worker) { w.metrics = m }
}

// Worker periodically applies pending stock adjustments. Adjustments that keep
// failing stay pending and are retried once fresher ones have had their turn.
type Worker struct {
	adjustments AdjustmentSource
	settler     Settler
	publisher   events.Publisher
	alerter     notify.Alerter
	metrics     *metrics.CheckoutMetrics
	logger      zerolog.Logger
	interval    time.Duration
	batchSize   int
	maxAttempts int
}

func NewWorker(adjustments AdjustmentSource, settler Settler, logger zerolog.Logger, opts ...Option) *Worker {
	w := &Worker{
		adjustments: adjustments,
		settler:     settler,
		publisher:   events.Nop{},
		logger:      logger.With().Str("component", "reconciler").Logger(),
		interval:    defaultInterval,
		batchSize:   defaultBatchSize,
		maxAttempts: defaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(w)
	}

	if w.interval <= 0 {
		w.interval = defaultInterval
	}
	if w.batchSize <= 0 {
		w.batchSize = defaultBatchSize
	}
	if w.maxAttempts <= 0 {
		w.maxAttempts = defaultMaxAttempts
	}
	if w.alerter == nil {
		w.alerter = notify.NewLogAlerter(logger)
	}
	return w
}

// Summary counts the results of one pass.
type Summary struct {
	Applied int
	Skipped int
	Failed  int
}

// Run processes pending adjustments every interval until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info().
		Dur("interval", w.interval).
		Int("batch_size", w.batchSize).
		Int("max_attempts", w.maxAttempts).
		Msg("stock reconciler started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.ProcessOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("stock reconciler stopped")
			return
		case <-ticker.C:
			w.ProcessOnce(ctx)
		}
	}
}

// ProcessOnce applies one batch of pending adjustments.
func (w *Worker) ProcessOnce(ctx context.Context) Summary {
	var summary Summary
	if ctx.Err() != nil {
		return summary
	}

	pending, err := w.adjustments.Pending(ctx, w.batchSize)
	if err != nil {
		w.logger.Warn().Err(err).Msg("failed to fetch pending stock adjustments")
		return summary
	}

	for _, adj := range pending {
		if ctx.Err() != nil {
			break
		}
		w.reconcile(ctx, adj, &summary)
	}

	w.refreshPending(ctx)

	if len(pending) > 0 {
		w.logger.Info().
			Int("applied", summary.Applied).
			Int("skipped", summary.Skipped).
			Int("failed", summary.Failed).
			Msg("stock reconciliation pass finished")
	}
	return summary
}

func (w *Worker) reconcile(ctx context.Context, adj model.StockAdjustment, summary *Summary) {
	logger := w.logger.With().
		Str("adjustment_id", adj.ID.String()).
		Str("order_id", adj.OrderID.String()).
		Str("product_id", adj.ProductID).
		Logger()

	applied, err := w.settler.Apply(ctx, adj)
	switch {
	case err != nil:
		summary.Failed++
		w.metrics.RecordReconciled(metrics.ResultFailed)

		attempts := adj.Attempts + 1
		logger.Warn().Err(err).Int("attempts", attempts).Msg("stock adjustment still failing")
		if attempts == w.maxAttempts {
			body := fmt.Sprintf("Stock adjustment %s for order %s (%d x %s) has failed %d times.\nLast error: %v",
				adj.ID, adj.OrderID, adj.Quantity, adj.ProductID, attempts, err)
			if alertErr := w.alerter.Alert(ctx, "Stock adjustment needs attention", body); alertErr != nil {
				logger.Error().Err(alertErr).Msg("failed to alert operators")
			}
		}
	case !applied:
		summary.Skipped++
		w.metrics.RecordReconciled(metrics.ResultSkipped)
	default:
		summary.Applied++
		w.metrics.RecordReconciled(metrics.ResultApplied)
		logger.Info().Int("quantity", adj.Quantity).Msg("stock adjustment reconciled")

		pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		if err := w.publisher.Publish(pubCtx, events.Event{
			Type:       events.TypeStockReconciled,
			OrderID:    adj.OrderID.String(),
			ProductIDs: []string{adj.ProductID},
			OccurredAt: time.Now().UTC(),
		}); err != nil {
			logger.Warn().Err(err).Msg("failed to publish reconciliation event")
		}
	}
}

func (w *Worker) refreshPending(ctx context.Context) {
	n, err := w.adjustments.CountPending(ctx)
	if err != nil {
		w.logger.Warn().Err(err).Msg("failed to count pending stock adjustments")
		return
	}
	w.metrics.SetPendingAdjustments(n)
}

package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"petshop-kart/internal/events"
	"petshop-kart/internal/metrics"
	"petshop-kart/internal/model"
	"petshop-kart/internal/notify"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type checkoutFixture struct {
	store     *memStore
	ledger    CartLedger
	checkout  CheckoutService
	sink      *recordingSink
	publisher *recordingPublisher
	alerter   *recordingAlerter
	registry  *prometheus.Registry
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()

	store := newMemStore(petCatalogue()...)
	f := &checkoutFixture{
		store:     store,
		ledger:    NewCartLedger(memCarts{store}, memProducts{store}, nil, zerolog.Nop()),
		sink:      &recordingSink{},
		publisher: &recordingPublisher{},
		alerter:   &recordingAlerter{},
		registry:  prometheus.NewRegistry(),
	}
	f.checkout = NewCheckoutService(CheckoutDeps{
		Ledger:      f.ledger,
		Products:    memProducts{store},
		Orders:      memOrders{store},
		Adjustments: memAdjustments{store},
		Sink:        f.sink,
		Publisher:   f.publisher,
		Alerter:     f.alerter,
		Metrics:     metrics.NewCheckoutMetrics(f.registry),
	}, zerolog.Nop())
	return f
}

func (f *checkoutFixture) add(t *testing.T, customerID, productID string, quantity int) {
	t.Helper()
	_, err := f.ledger.AddProduct(context.Background(), customerID, productID, quantity)
	require.NoError(t, err)
}

func (f *checkoutFixture) assertOutcome(t *testing.T, outcome string) {
	t.Helper()
	expected := `
# HELP petshop_checkout_outcomes_total Checkout attempts grouped by outcome.
# TYPE petshop_checkout_outcomes_total counter
petshop_checkout_outcomes_total{outcome="` + outcome + `"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(f.registry, strings.NewReader(expected), "petshop_checkout_outcomes_total"))
}

func TestCheckoutService_Execute_Success(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	f.add(t, "alice", "dog-bed", 2)
	f.add(t, "alice", "cat-toy", 1)

	result, err := f.checkout.Execute(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, price("25.00").Equal(result.Total))
	assert.Equal(t, model.OrderStatusCompleted, result.Status)
	require.Len(t, result.Lines, 2)
	assert.Equal(t, "dog-bed", result.Lines[0].ProductID)
	assert.Equal(t, "cat-toy", result.Lines[1].ProductID)

	assert.Equal(t, 3, f.store.stock("dog-bed"))
	assert.Equal(t, 4, f.store.stock("cat-toy"))
	assert.Equal(t, 1, f.store.callCount("GetByIDs"), "stock for every line is read in one query")

	items, err := f.ledger.Items(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, items)

	order, lines, err := memOrders{f.store}.GetByID(ctx, result.OrderID)
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Equal(t, "alice", order.CustomerID)
	assert.True(t, price("25.00").Equal(order.Total))
	assert.Len(t, lines, 2)

	pending, err := memAdjustments{f.store}.CountPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)

	last := f.sink.last()
	assert.Equal(t, notify.LevelSuccess, last.Level)
	assert.Equal(t, "Purchase completed, total 25.00", last.Message)
	assert.Equal(t, result.OrderID.String(), last.OrderID)

	assert.Equal(t, []string{events.TypeOrderCompleted}, f.publisher.types())
	assert.Empty(t, f.alerter.alerts)
	f.assertOutcome(t, metrics.OutcomeSuccess)
}

func TestCheckoutService_Execute_SnapshotsCartPrices(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	f.add(t, "alice", "dog-bed", 1)

	require.NoError(t, memProducts{f.store}.Upsert(ctx, &model.Product{ID: "dog-bed", Name: "Dog Bed", Price: price("99.00"), Stock: 5}))

	result, err := f.checkout.Execute(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, price("10.00").Equal(result.Total), "the order uses the price captured in the cart")
}

func TestCheckoutService_Execute_EmptyCart(t *testing.T) {
	f := newCheckoutFixture(t)

	result, err := f.checkout.Execute(context.Background(), "alice")
	assert.Nil(t, result)
	assert.ErrorIs(t, err, model.ErrEmptyCart)

	assert.Zero(t, f.store.callCount("GetByIDs", "BeginTx", "CreateOrder", "DecrementStock", "DeleteByCustomer"))
	assert.Equal(t, notify.Notification{CustomerID: "alice", Level: notify.LevelFailure, Message: "Cart is empty", At: f.sink.last().At}, f.sink.last())
	assert.Empty(t, f.publisher.types())
	f.assertOutcome(t, metrics.OutcomeEmptyCart)
}

func TestCheckoutService_Execute_InsufficientStock(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing is written", func(t *testing.T) {
		f := newCheckoutFixture(t)
		f.add(t, "alice", "dog-bed", 6)
		f.add(t, "alice", "cat-toy", 1)

		result, err := f.checkout.Execute(ctx, "alice")
		assert.Nil(t, result)
		require.ErrorIs(t, err, model.ErrInsufficientStock)

		var stockErr *model.InsufficientStockError
		require.ErrorAs(t, err, &stockErr)
		assert.Equal(t, "dog-bed", stockErr.ProductID)
		assert.Equal(t, "Dog Bed", stockErr.ProductName)
		assert.Equal(t, 6, stockErr.Requested)
		assert.Equal(t, 5, stockErr.Available)

		assert.Zero(t, f.store.callCount("BeginTx", "CreateOrder", "DecrementStock"))
		assert.Zero(t, f.store.orderCount())
		assert.Equal(t, 5, f.store.stock("dog-bed"))
		assert.Equal(t, 5, f.store.stock("cat-toy"))

		items, err := f.ledger.Items(ctx, "alice")
		require.NoError(t, err)
		assert.Len(t, items, 2, "the cart is left intact")

		assert.Equal(t, "Not enough stock for Dog Bed", f.sink.last().Message)
		assert.Equal(t, notify.LevelFailure, f.sink.last().Level)
		f.assertOutcome(t, metrics.OutcomeInsufficientStock)
	})

	t.Run("first short line in cart order is reported", func(t *testing.T) {
		f := newCheckoutFixture(t)
		f.add(t, "alice", "cat-toy", 1)
		f.add(t, "alice", "fish-food", 1)
		f.add(t, "alice", "dog-bed", 9)

		_, err := f.checkout.Execute(ctx, "alice")

		var stockErr *model.InsufficientStockError
		require.ErrorAs(t, err, &stockErr)
		assert.Equal(t, "fish-food", stockErr.ProductID)
		assert.Equal(t, 0, stockErr.Available)
	})

	t.Run("exact stock is enough", func(t *testing.T) {
		f := newCheckoutFixture(t)
		f.add(t, "alice", "dog-bed", 5)

		_, err := f.checkout.Execute(ctx, "alice")
		require.NoError(t, err)
		assert.Zero(t, f.store.stock("dog-bed"))
	})
}

func TestCheckoutService_Execute_UnknownProduct(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	_, err := f.ledger.AddItem(ctx, "alice", "discontinued-leash", "Leash", price("7.50"), 1)
	require.NoError(t, err)

	_, err = f.checkout.Execute(ctx, "alice")
	assert.ErrorIs(t, err, model.ErrProductNotFound)
	assert.Zero(t, f.store.callCount("BeginTx"))
	f.assertOutcome(t, metrics.OutcomeFailed)
}

func TestCheckoutService_Execute_StorageFailures(t *testing.T) {
	tests := []struct {
		name string
		op   string
	}{
		{name: "cart read", op: "ListByCustomer"},
		{name: "stock read", op: "GetByIDs"},
		{name: "begin", op: "BeginTx"},
		{name: "order insert", op: "CreateOrder"},
		{name: "order lines insert", op: "CreateOrderLines"},
		{name: "adjustments insert", op: "CreateAdjustments"},
		{name: "commit", op: "Commit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newCheckoutFixture(t)
			f.add(t, "alice", "dog-bed", 2)
			f.add(t, "alice", "cat-toy", 1)
			f.store.failOn(tt.op, errors.New("connection reset by peer"))

			result, err := f.checkout.Execute(ctx, "alice")
			assert.Nil(t, result)
			assert.ErrorIs(t, err, model.ErrCheckoutFailed)
			assert.Equal(t, model.ErrCodeCheckoutFailed, model.ErrorCode(err))

			assert.Zero(t, f.store.orderCount())
			assert.Equal(t, 5, f.store.stock("dog-bed"))
			assert.Equal(t, 5, f.store.stock("cat-toy"))
			assert.Zero(t, f.store.callCount("DecrementStock", "DeleteByCustomer"))

			pending, err := memAdjustments{f.store}.CountPending(ctx)
			require.NoError(t, err)
			assert.Zero(t, pending)

			assert.Equal(t, notify.LevelFailure, f.sink.last().Level)
			assert.Empty(t, f.publisher.types())
			f.assertOutcome(t, metrics.OutcomeFailed)
		})
	}
}

func TestCheckoutService_Execute_RollsBackOnWriteFailure(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(petCatalogue()...)
	ledger := NewCartLedger(memCarts{store}, memProducts{store}, nil, zerolog.Nop())
	_, err := ledger.AddProduct(ctx, "alice", "dog-bed", 1)
	require.NoError(t, err)

	mockOrders := new(MockOrderRepository)
	mockAdjustments := new(MockAdjustmentRepository)
	tx := new(MockTx)

	mockOrders.On("BeginTx", mock.Anything).Return(tx, nil)
	mockOrders.On("CreateOrder", mock.Anything, tx, mock.AnythingOfType("*model.Order")).Return(nil)
	mockOrders.On("CreateOrderLines", mock.Anything, tx, mock.AnythingOfType("[]model.OrderLine")).Return(errors.New("disk full"))
	tx.On("Rollback", mock.Anything).Return(nil)

	checkout := NewCheckoutService(CheckoutDeps{
		Ledger:      ledger,
		Products:    memProducts{store},
		Orders:      mockOrders,
		Adjustments: mockAdjustments,
	}, zerolog.Nop())

	_, err = checkout.Execute(ctx, "alice")
	assert.ErrorIs(t, err, model.ErrCheckoutFailed)
	assert.Contains(t, err.Error(), "disk full")

	assert.True(t, tx.rolledBack)
	assert.False(t, tx.committed)
	tx.AssertNotCalled(t, "Commit", mock.Anything)
	mockAdjustments.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	mockOrders.AssertExpectations(t)
}

func TestCheckoutService_Execute_PartialSettlement(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	f.add(t, "alice", "dog-bed", 2)
	f.add(t, "alice", "cat-toy", 1)
	f.store.failOn("DecrementStock:cat-toy", errors.New("deadlock detected"))

	result, err := f.checkout.Execute(ctx, "alice")
	assert.Nil(t, result)
	require.ErrorIs(t, err, model.ErrPartialSettlement)
	assert.Equal(t, model.ErrCodePartialSettlement, model.ErrorCode(err))

	var partial *model.PartialSettlementError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, []string{"cat-toy"}, partial.ProductIDs)
	assert.Contains(t, partial.Cause.Error(), "deadlock detected")

	// The order stands and the stock that could be adjusted was.
	order, lines, err := memOrders{f.store}.GetByID(ctx, partial.OrderID)
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Len(t, lines, 2)
	assert.Equal(t, 3, f.store.stock("dog-bed"))
	assert.Equal(t, 5, f.store.stock("cat-toy"))

	pending, err := memAdjustments{f.store}.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "cat-toy", pending[0].ProductID)
	assert.Equal(t, 1, pending[0].Attempts)
	require.NotNil(t, pending[0].LastError)
	assert.Contains(t, *pending[0].LastError, "deadlock detected")

	items, err := f.ledger.Items(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, items)

	assert.Equal(t, []string{events.TypeSettlementPartial, events.TypeOrderCompleted}, f.publisher.types())
	require.Len(t, f.alerter.alerts, 1)
	assert.Contains(t, f.alerter.alerts[0], partial.OrderID.String())
	assert.Equal(t, notify.LevelSuccess, f.sink.last().Level)
	f.assertOutcome(t, metrics.OutcomePartial)
}

func TestCheckoutService_Execute_ClearFailureKeepsOrder(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	f.add(t, "alice", "cat-toy", 2)
	f.store.failOn("DeleteByCustomer", errors.New("statement timeout"))

	result, err := f.checkout.Execute(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, price("10.00").Equal(result.Total))
	assert.Equal(t, 1, f.store.orderCount())
	assert.Equal(t, 3, f.store.stock("cat-toy"))
}

func TestCheckoutService_Execute_PublishFailureIsNotFatal(t *testing.T) {
	f := newCheckoutFixture(t)
	f.add(t, "alice", "cat-toy", 1)
	f.publisher.err = errors.New("leader not available")

	result, err := f.checkout.Execute(context.Background(), "alice")
	require.NoError(t, err)
	assert.NotNil(t, result)
	assert.Equal(t, notify.LevelSuccess, f.sink.last().Level)
}

func TestCheckoutService_Execute_StalledBrokerDoesNotHoldCheckout(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(petCatalogue()...)
	ledger := NewCartLedger(memCarts{store}, memProducts{store}, nil, zerolog.Nop())
	publisher := &stalledPublisher{}
	checkout := NewCheckoutService(CheckoutDeps{
		Ledger:         ledger,
		Products:       memProducts{store},
		Orders:         memOrders{store},
		Adjustments:    memAdjustments{store},
		Publisher:      publisher,
		PublishTimeout: 50 * time.Millisecond,
	}, zerolog.Nop())

	_, err := ledger.AddProduct(ctx, "alice", "dog-bed", 1)
	require.NoError(t, err)

	start := time.Now()
	result, err := checkout.Execute(ctx, "alice")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)

	assert.Equal(t, model.OrderStatusCompleted, result.Status)
	assert.Equal(t, 1, store.orderCount())
	assert.EqualValues(t, 1, publisher.calls.Load())
}

func TestCheckoutService_Execute_RepeatedCheckoutFindsEmptyCart(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	f.add(t, "alice", "dog-bed", 1)

	_, err := f.checkout.Execute(ctx, "alice")
	require.NoError(t, err)

	_, err = f.checkout.Execute(ctx, "alice")
	assert.ErrorIs(t, err, model.ErrEmptyCart)
	assert.Equal(t, 1, f.store.orderCount())
	assert.Equal(t, 4, f.store.stock("dog-bed"))
}

func TestCheckoutService_Execute_MissingCustomer(t *testing.T) {
	f := newCheckoutFixture(t)

	_, err := f.checkout.Execute(context.Background(), "")
	assert.ErrorIs(t, err, model.ErrMissingCustomer)
	assert.Zero(t, f.store.callCount("ListByCustomer"))
}

func TestCheckoutStage_String(t *testing.T) {
	tests := []struct {
		stage CheckoutStage
		want  string
	}{
		{StageIdle, "idle"},
		{StageValidating, "validating"},
		{StageReserving, "reserving"},
		{StagePersisting, "persisting"},
		{StageAdjusting, "adjusting"},
		{StageClearing, "clearing"},
		{StageDone, "done"},
		{CheckoutStage(42), "stage(42)"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.stage.String())
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"petshop-kart/internal/cache"
	"petshop-kart/internal/model"
	"petshop-kart/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

type subscription struct {
	id uint64
	fn func(model.CartView)
}

// cartLedger implements CartLedger.
type cartLedger struct {
	carts    repository.CartRepository
	products repository.ProductRepository
	cache    cache.CartCache
	loads    singleflight.Group
	logger   zerolog.Logger

	mu     sync.Mutex
	nextID uint64
	subs   map[string][]subscription
}

// NewCartLedger creates a cart ledger. A nil cache disables caching.
func NewCartLedger(
	carts repository.CartRepository,
	products repository.ProductRepository,
	cartCache cache.CartCache,
	logger zerolog.Logger,
) CartLedger {
	if cartCache == nil {
		cartCache = cache.NopCache{}
	}
	return &cartLedger{
		carts:    carts,
		products: products,
		cache:    cartCache,
		logger:   logger.With().Str("service", "cart").Logger(),
		subs:     make(map[string][]subscription),
	}
}

// AddItem adds quantity of a product to the customer's cart.
func (s *cartLedger) AddItem(ctx context.Context, customerID, productID, productName string, unitPrice decimal.Decimal, quantity int) (*model.CartLine, error) {
	return s.addLine(ctx, &model.CartLine{
		CustomerID:  customerID,
		ProductID:   productID,
		ProductName: productName,
		UnitPrice:   unitPrice,
		Quantity:    quantity,
	})
}

// AddProduct looks the product up and adds it with its current name, price and image.
func (s *cartLedger) AddProduct(ctx context.Context, customerID, productID string, quantity int) (*model.CartLine, error) {
	if err := validateCustomer(customerID); err != nil {
		return nil, err
	}
	if quantity < 1 {
		return nil, model.ErrInvalidQuantity
	}

	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		s.logger.Error().Err(err).Str("product_id", productID).Msg("failed to look up product")
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if product == nil {
		s.logger.Debug().Str("product_id", productID).Msg("product not found")
		return nil, model.ErrProductNotFound
	}

	return s.addLine(ctx, &model.CartLine{
		CustomerID:  customerID,
		ProductID:   product.ID,
		ProductName: product.Name,
		UnitPrice:   product.Price,
		Quantity:    quantity,
		ImageURL:    product.ImageURL,
	})
}

func (s *cartLedger) addLine(ctx context.Context, line *model.CartLine) (*model.CartLine, error) {
	if err := validateCustomer(line.CustomerID); err != nil {
		return nil, err
	}
	if line.Quantity < 1 {
		s.logger.Warn().
			Str("customer_id", line.CustomerID).
			Str("product_id", line.ProductID).
			Int("quantity", line.Quantity).
			Msg("invalid quantity")
		return nil, model.ErrInvalidQuantity
	}
	if line.ProductID == "" {
		return nil, model.ErrProductNotFound
	}

	stored, err := s.carts.AddOrIncrement(ctx, line)
	if err != nil {
		return nil, fmt.Errorf("failed to add item: %w", err)
	}

	s.logger.Debug().
		Str("customer_id", line.CustomerID).
		Str("product_id", line.ProductID).
		Int("quantity", stored.Quantity).
		Msg("item added to cart")

	s.mutated(ctx, line.CustomerID)
	return stored, nil
}

// SetQuantity updates a line, removing it when quantity is zero or less.
func (s *cartLedger) SetQuantity(ctx context.Context, customerID string, lineID uuid.UUID, quantity int) error {
	if err := validateCustomer(customerID); err != nil {
		return err
	}

	var (
		found bool
		err   error
	)
	if quantity <= 0 {
		found, err = s.carts.DeleteLine(ctx, customerID, lineID)
	} else {
		found, err = s.carts.UpdateQuantity(ctx, customerID, lineID, quantity)
	}
	if err != nil {
		return fmt.Errorf("failed to set quantity: %w", err)
	}
	if !found {
		s.logger.Debug().Str("customer_id", customerID).Str("line_id", lineID.String()).Msg("cart line not found")
		return model.ErrLineNotFound
	}

	s.mutated(ctx, customerID)
	return nil
}

// Increment raises a line's quantity by one.
func (s *cartLedger) Increment(ctx context.Context, customerID string, lineID uuid.UUID) error {
	return s.step(ctx, customerID, lineID, 1)
}

// Decrement lowers a line's quantity by one, removing it at zero.
func (s *cartLedger) Decrement(ctx context.Context, customerID string, lineID uuid.UUID) error {
	return s.step(ctx, customerID, lineID, -1)
}

func (s *cartLedger) step(ctx context.Context, customerID string, lineID uuid.UUID, delta int) error {
	if err := validateCustomer(customerID); err != nil {
		return err
	}

	line, err := s.carts.GetLine(ctx, customerID, lineID)
	if err != nil {
		return fmt.Errorf("failed to get cart line: %w", err)
	}
	if line == nil {
		return model.ErrLineNotFound
	}

	return s.SetQuantity(ctx, customerID, lineID, line.Quantity+delta)
}

// RemoveItem deletes a line if it is present.
func (s *cartLedger) RemoveItem(ctx context.Context, customerID string, lineID uuid.UUID) error {
	if err := validateCustomer(customerID); err != nil {
		return err
	}

	found, err := s.carts.DeleteLine(ctx, customerID, lineID)
	if err != nil {
		return fmt.Errorf("failed to remove item: %w", err)
	}
	if found {
		s.mutated(ctx, customerID)
	}
	return nil
}

// Clear removes every line of the customer's cart.
func (s *cartLedger) Clear(ctx context.Context, customerID string) error {
	if err := validateCustomer(customerID); err != nil {
		return err
	}

	removed, err := s.carts.DeleteByCustomer(ctx, customerID)
	if err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}

	s.logger.Debug().Str("customer_id", customerID).Int64("removed", removed).Msg("cart cleared")
	s.mutated(ctx, customerID)
	return nil
}

// Items returns the cart lines, reading through the cache. Concurrent reads
// for the same customer share one load, which does not inherit any one
// caller's cancellation.
func (s *cartLedger) Items(ctx context.Context, customerID string) ([]model.CartLine, error) {
	if err := validateCustomer(customerID); err != nil {
		return nil, err
	}

	ch := s.loads.DoChan(customerID, func() (any, error) {
		return s.load(context.WithoutCancel(ctx), customerID)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return slices.Clone(res.Val.([]model.CartLine)), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *cartLedger) load(ctx context.Context, customerID string) ([]model.CartLine, error) {
	lines, err := s.cache.Get(ctx, customerID)
	if err == nil {
		return lines, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn().Err(err).Str("customer_id", customerID).Msg("cart cache read failed")
	}

	// The version must be read before the database so that a mutation
	// landing in between makes the write below a no-op.
	version, verErr := s.cache.Version(ctx, customerID)

	lines, err = s.carts.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cart items: %w", err)
	}

	if verErr != nil {
		s.logger.Warn().Err(verErr).Str("customer_id", customerID).Msg("cart cache version read failed")
		return lines, nil
	}
	switch err := s.cache.Set(ctx, customerID, version, lines); {
	case errors.Is(err, cache.ErrStaleVersion):
		s.logger.Debug().Str("customer_id", customerID).Msg("cart changed during load, not caching")
	case err != nil:
		s.logger.Warn().Err(err).Str("customer_id", customerID).Msg("cart cache write failed")
	}
	return lines, nil
}

// Snapshot reads the cart straight from the database.
func (s *cartLedger) Snapshot(ctx context.Context, customerID string) (model.CartView, error) {
	if err := validateCustomer(customerID); err != nil {
		return model.CartView{}, err
	}

	lines, err := s.carts.ListByCustomer(ctx, customerID)
	if err != nil {
		return model.CartView{}, fmt.Errorf("failed to list cart items: %w", err)
	}
	return model.NewCartView(customerID, lines), nil
}

// Total recomputes the cart total from the stored lines.
func (s *cartLedger) Total(ctx context.Context, customerID string) (decimal.Decimal, error) {
	view, err := s.Snapshot(ctx, customerID)
	if err != nil {
		return decimal.Zero, err
	}
	return view.Total, nil
}

// View returns the cached lines with their total.
func (s *cartLedger) View(ctx context.Context, customerID string) (model.CartView, error) {
	lines, err := s.Items(ctx, customerID)
	if err != nil {
		return model.CartView{}, err
	}
	return model.NewCartView(customerID, lines), nil
}

// Subscribe registers fn for the customer's cart updates.
func (s *cartLedger) Subscribe(customerID string, fn func(model.CartView)) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs[customerID] = append(s.subs[customerID], subscription{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.subs[customerID] = slices.DeleteFunc(s.subs[customerID], func(sub subscription) bool {
				return sub.id == id
			})
			if len(s.subs[customerID]) == 0 {
				delete(s.subs, customerID)
			}
		})
	}
}

// mutated drops the cached cart and delivers the new view to subscribers.
func (s *cartLedger) mutated(ctx context.Context, customerID string) {
	if err := s.cache.Delete(ctx, customerID); err != nil {
		s.logger.Warn().Err(err).Str("customer_id", customerID).Msg("cart cache invalidation failed")
	}
	s.loads.Forget(customerID)

	s.mu.Lock()
	subs := slices.Clone(s.subs[customerID])
	s.mu.Unlock()
	if len(subs) == 0 {
		return
	}

	lines, err := s.carts.ListByCustomer(ctx, customerID)
	if err != nil {
		s.logger.Warn().Err(err).Str("customer_id", customerID).Msg("failed to read cart for subscribers")
		return
	}
	view := model.NewCartView(customerID, lines)
	for _, sub := range subs {
		sub.fn(view)
	}
}

func validateCustomer(customerID string) error {
	if customerID == "" {
		return model.ErrMissingCustomer
	}
	return nil
}

// Package cache holds read-through snapshots of customer carts.
package cache

import (
	"context"
	"errors"

	"petshop-kart/internal/model"
)

// CartCache stores the ordered lines of a customer's cart.
//
// Every mutation calls Delete, which also bumps a per-customer version. A
// reader takes Version before it reads the database and passes it to Set, so
// a snapshot read before a mutation can never be written back after it.
type CartCache interface {
	Get(ctx context.Context, customerID string) ([]model.CartLine, error)
	Version(ctx context.Context, customerID string) (int64, error)
	// Set stores lines unless the version has moved on, in which case it
	// returns ErrStaleVersion and leaves the cache untouched.
	Set(ctx context.Context, customerID string, version int64, lines []model.CartLine) error
	Delete(ctx context.Context, customerID string) error
}

var (
	ErrCacheMiss    = errors.New("cache miss")
	ErrStaleVersion = errors.New("cart changed since version was read")
)

// NopCache always misses.
type NopCache struct{}

func (NopCache) Get(context.Context, string) ([]model.CartLine, error) { return nil, ErrCacheMiss }

func (NopCache) Version(context.Context, string) (int64, error) { return 0, nil }

func (NopCache) Set(context.Context, string, int64, []model.CartLine) error { return nil }

func (NopCache) Delete(context.Context, string) error { return nil }

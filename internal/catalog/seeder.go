package catalog

import (
	"context"
	"fmt"

	"petshop-kart/internal/model"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ProductWriter is the part of the product store the seeder needs.
type ProductWriter interface {
	Upsert(ctx context.Context, product *model.Product) error
}

// Seeder loads seed files and writes their products to the catalogue.
type Seeder struct {
	loader   Loader
	products ProductWriter
	logger   zerolog.Logger
}

func NewSeeder(loader Loader, products ProductWriter, logger zerolog.Logger) *Seeder {
	return &Seeder{
		loader:   loader,
		products: products,
		logger:   logger.With().Str("component", "catalog-seeder").Logger(),
	}
}

// Seed loads every file concurrently, then upserts the products in file
// order so that a product listed twice takes its last definition. Nothing is
// written unless every file loads.
func (s *Seeder) Seed(ctx context.Context, paths []string) (int, error) {
	loaded := make([][]model.Product, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			products, err := s.loader.Load(gctx, path)
			if err != nil {
				return fmt.Errorf("failed to load catalogue file %s: %w", path, err)
			}
			loaded[i] = products
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Error().Err(err).Msg("catalogue seed aborted")
		return 0, err
	}

	written := 0
	for i, products := range loaded {
		for j := range products {
			if err := s.products.Upsert(ctx, &products[j]); err != nil {
				return written, fmt.Errorf("failed to upsert product %s from %s: %w", products[j].ID, paths[i], err)
			}
			written++
		}
	}

	s.logger.Info().Int("file_count", len(paths)).Int("products_written", written).Msg("catalogue seeded")
	return written, nil
}

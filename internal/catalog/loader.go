package catalog

import (
	"context"
	"fmt"
	"os"

	"petshop-kart/internal/model"

	"github.com/rs/zerolog"
)

// fileLoader reads seed files from the local file system.
type fileLoader struct {
	logger zerolog.Logger
}

func NewFileLoader(logger zerolog.Logger) Loader {
	return &fileLoader{
		logger: logger.With().Str("component", "catalog-loader").Logger(),
	}
}

func (l *fileLoader) Load(ctx context.Context, path string) ([]model.Product, error) {
	file, err := os.Open(path)
	if err != nil {
		l.logger.Error().Err(err).Str("file", path).Msg("failed to open catalogue file")
		return nil, fmt.Errorf("failed to open catalogue file %s: %w", path, err)
	}
	defer file.Close()

	products, err := decodeProducts(ctx, file)
	if err != nil {
		l.logger.Error().Err(err).Str("file", path).Msg("failed to read catalogue file")
		return nil, fmt.Errorf("failed to read catalogue file %s: %w", path, err)
	}

	l.logger.Info().Str("file", path).Int("products_loaded", len(products)).Msg("catalogue file loaded")
	return products, nil
}

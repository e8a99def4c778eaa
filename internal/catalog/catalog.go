// Package catalog loads product seed files into the catalogue.
//
// Seed files are gzipped JSON lines, one product per line:
//
//	{"id":"dog-bed","name":"Dog Bed","price":"10.00","category":"dogs","stock":5}
package catalog

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"petshop-kart/internal/model"
)

// Loader reads one seed file.
type Loader interface {
	Load(ctx context.Context, path string) ([]model.Product, error)
}

// decodeProducts reads gzipped JSON lines from r. Blank lines are skipped;
// any malformed or invalid record fails the whole file.
func decodeProducts(ctx context.Context, r io.Reader) ([]model.Product, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var (
		products []model.Product
		lineNo   int
	)
	for scanner.Scan() {
		lineNo++
		if lineNo%10_000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var p model.Product
		if err := json.Unmarshal([]byte(line), &p); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if err := validate(p); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		products = append(products, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func validate(p model.Product) error {
	switch {
	case p.ID == "":
		return fmt.Errorf("product id is required")
	case p.Name == "":
		return fmt.Errorf("product %s: name is required", p.ID)
	case p.Price.IsNegative():
		return fmt.Errorf("product %s: price cannot be negative", p.ID)
	case p.Stock < 0:
		return fmt.Errorf("product %s: stock cannot be negative", p.ID)
	}
	return nil
}

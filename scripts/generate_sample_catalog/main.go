package main

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"petshop-kart/internal/model"

	"github.com/shopspring/decimal"
)

// generateSampleCatalog writes the seed files loaded by CATALOG_FILES.
// catalog-dogs.jsonl.gz and catalog-cats.jsonl.gz both list "pet-bowl";
// the later file wins, so seeding both in that order prices it at 7.50.
func main() {
	dataDir := "data/catalog"

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		log.Fatalf("Failed to create directory: %v", err)
	}

	files := map[string][]model.Product{
		"catalog-dogs.jsonl.gz": {
			product("dog-bed", "Dog Bed", "dogs", "10.00", 5),
			product("dog-leash", "Reflective Leash", "dogs", "12.99", 20),
			product("chew-bone", "Chew Bone", "dogs", "4.50", 100),
			product("pet-bowl", "Steel Bowl", "accessories", "6.00", 40),
		},
		"catalog-cats.jsonl.gz": {
			product("cat-toy", "Feather Wand", "cats", "5.00", 5),
			product("scratch-post", "Scratching Post", "cats", "24.00", 3),
			product("pet-bowl", "Steel Bowl", "accessories", "7.50", 40),
		},
		"catalog-fish.jsonl.gz": {
			product("fish-food", "Tropical Flakes", "fish", "3.25", 0),
			product("aquarium-net", "Aquarium Net", "fish", "2.10", 15),
		},
	}

	for filename, products := range files {
		filePath := filepath.Join(dataDir, filename)

		if err := createCatalogFile(filePath, products); err != nil {
			log.Fatalf("Failed to create %s: %v", filename, err)
		}

		fmt.Printf("Created %s with %d products\n", filePath, len(products))
	}

	fmt.Println("\nSample catalogue files created successfully!")
	fmt.Println("\nSeed them with:")
	fmt.Printf("  CATALOG_FILES=%s,%s,%s\n",
		filepath.Join(dataDir, "catalog-dogs.jsonl.gz"),
		filepath.Join(dataDir, "catalog-cats.jsonl.gz"),
		filepath.Join(dataDir, "catalog-fish.jsonl.gz"))
	fmt.Println("\nfish-food is out of stock, so checking it out fails with INSUFFICIENT_STOCK.")
}

func product(id, name, category, price string, stock int) model.Product {
	return model.Product{
		ID:       id,
		Name:     name,
		Category: category,
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
	}
}

func createCatalogFile(filePath string, products []model.Product) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	gzipWriter := gzip.NewWriter(file)
	defer gzipWriter.Close()

	enc := json.NewEncoder(gzipWriter)
	for _, p := range products {
		if err := enc.Encode(p); err != nil {
			return fmt.Errorf("failed to write product %s: %w", p.ID, err)
		}
	}

	return nil
}

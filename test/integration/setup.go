package integration

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"petshop-kart/internal/catalog"
	"petshop-kart/internal/database"
	"petshop-kart/internal/model"
	"petshop-kart/internal/repository"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestDB represents a test database instance.
type TestDB struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
	ConnStr   string
}

// SetupTestDB creates a migrated PostgreSQL test container and connection pool.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	if err := database.Migrate(connStr, zerolog.Nop()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		t.Fatalf("failed to parse connection string: %v", err)
	}
	poolConfig.MaxConns = 20
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		t.Fatalf("failed to create connection pool: %v", err)
	}

	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("failed to ping database: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	return &TestDB{
		Container: postgresContainer,
		Pool:      pool,
		ConnStr:   connStr,
	}
}

// testCatalogue is the product set seeded before each test.
func testCatalogue() []model.Product {
	return []model.Product{
		{ID: "dog-bed", Name: "Dog Bed", Price: decimal.RequireFromString("10.00"), Category: "dogs", Stock: 5},
		{ID: "cat-toy", Name: "Cat Toy", Price: decimal.RequireFromString("5.00"), Category: "cats", Stock: 5},
		{ID: "fish-food", Name: "Fish Food", Price: decimal.RequireFromString("3.25"), Category: "fish", Stock: 0},
		{ID: "last-leash", Name: "Last Leash", Price: decimal.RequireFromString("12.99"), Category: "dogs", Stock: 1},
	}
}

// SeedProducts writes testCatalogue to a seed file and loads it through the
// catalogue seeder, the same path the server takes at startup.
func SeedProducts(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "catalog.jsonl.gz")
	writeSeedFile(t, path, testCatalogue())

	logger := zerolog.Nop()
	seeder := catalog.NewSeeder(catalog.NewFileLoader(logger), repository.NewProductRepository(pool, logger), logger)
	n, err := seeder.Seed(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("failed to seed products: %v", err)
	}
	if n != len(testCatalogue()) {
		t.Fatalf("seeded %d products, want %d", n, len(testCatalogue()))
	}
}

func writeSeedFile(t *testing.T, path string, products []model.Product) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create seed file: %v", err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	enc := json.NewEncoder(gz)
	for _, p := range products {
		if err := enc.Encode(p); err != nil {
			t.Fatalf("failed to encode product: %v", err)
		}
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("failed to close seed file: %v", err)
	}
}

// CleanupDB cleans all data from test tables.
func CleanupDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	ctx := context.Background()

	tables := []string{"stock_adjustments", "order_lines", "orders", "cart_lines", "products"}
	for _, table := range tables {
		_, err := pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s", table))
		if err != nil {
			t.Logf("failed to clean table %s: %v", table, err)
		}
	}
}

// StockOf returns the current stock of a product.
func StockOf(t *testing.T, pool *pgxpool.Pool, productID string) int {
	t.Helper()

	var stock int
	if err := pool.QueryRow(context.Background(), "SELECT stock FROM products WHERE id = $1", productID).Scan(&stock); err != nil {
		t.Fatalf("failed to read stock of %s: %v", productID, err)
	}
	return stock
}

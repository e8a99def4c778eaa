package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"petshop-kart/internal/config"

	"github.com/jackc/pgx/v5"
)

// check_db connects with the same DB_* variables as the server and reports
// the catalogue size and any stock adjustments still waiting to be applied.
func main() {
	cfg := config.DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvAsInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", "postgres"),
		Database: getEnv("DB_NAME", "petshop"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, cfg.ConnectionString())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close(ctx)

	var dbName string
	if err := conn.QueryRow(ctx, "SELECT current_database()").Scan(&dbName); err != nil {
		fmt.Fprintf(os.Stderr, "QueryRow failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Successfully connected to database: %s\n", dbName)

	counts := []struct {
		label string
		query string
	}{
		{"products", "SELECT COUNT(*) FROM products"},
		{"cart lines", "SELECT COUNT(*) FROM cart_lines"},
		{"orders", "SELECT COUNT(*) FROM orders"},
		{"pending stock adjustments", "SELECT COUNT(*) FROM stock_adjustments WHERE applied_at IS NULL"},
	}
	for _, c := range counts {
		var n int
		if err := conn.QueryRow(ctx, c.query).Scan(&n); err != nil {
			fmt.Fprintf(os.Stderr, "Counting %s failed (are migrations applied?): %v\n", c.label, err)
			os.Exit(1)
		}
		fmt.Printf("  %-26s %d\n", c.label+":", n)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultValue
}

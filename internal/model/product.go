package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a pet store product in the catalogue.
type Product struct {
	ID        string          `json:"id" db:"id"`
	Name      string          `json:"name" db:"name"`
	Price     decimal.Decimal `json:"price" db:"price"`
	Category  string          `json:"category" db:"category"`
	Stock     int             `json:"stock" db:"stock"`
	ImageURL  *string         `json:"imageUrl,omitempty" db:"image_url"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
}

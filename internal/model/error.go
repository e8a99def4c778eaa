package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	ProductID     string `json:"productId,omitempty"`
	ProductName   string `json:"productName,omitempty"`
	OrderID       string `json:"orderId,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// Standard error codes for API responses
const (
	ErrCodeInvalidJSON        = "INVALID_JSON"
	ErrCodeMissingField       = "MISSING_FIELD"
	ErrCodeMissingCustomer    = "MISSING_CUSTOMER"
	ErrCodeProductNotFound    = "PRODUCT_NOT_FOUND"
	ErrCodeOrderNotFound      = "ORDER_NOT_FOUND"
	ErrCodeInvalidQuantity    = "INVALID_QUANTITY"
	ErrCodeLineNotFound       = "LINE_NOT_FOUND"
	ErrCodeEmptyCart          = "EMPTY_CART"
	ErrCodeInsufficientStock  = "INSUFFICIENT_STOCK"
	ErrCodeStockConflict      = "STOCK_CONFLICT"
	ErrCodeCheckoutFailed     = "CHECKOUT_FAILED"
	ErrCodePartialSettlement  = "PARTIAL_SETTLEMENT"
	ErrCodeUnauthorised       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeInvalidOrderID     = "INVALID_ORDER_ID"
	ErrCodeInvalidLineID      = "INVALID_LINE_ID"
	ErrCodeInvalidPagination  = "INVALID_PAGINATION"
)

// Domain errors for business logic
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrProductNotFound   = NewDomainError(ErrCodeProductNotFound, "One or more products not found")
	ErrInvalidQuantity   = NewDomainError(ErrCodeInvalidQuantity, "Quantity must be greater than zero")
	ErrMissingCustomer   = NewDomainError(ErrCodeMissingCustomer, "A customer is required for cart operations")
	ErrLineNotFound      = NewDomainError(ErrCodeLineNotFound, "Cart line not found")
	ErrEmptyCart         = NewDomainError(ErrCodeEmptyCart, "The cart is empty")
	ErrInsufficientStock = NewDomainError(ErrCodeInsufficientStock, "Insufficient stock")
	ErrStockConflict     = NewDomainError(ErrCodeStockConflict, "Stock changed before it could be decremented")
	ErrCheckoutFailed    = NewDomainError(ErrCodeCheckoutFailed, "Checkout failed, the cart was left intact")
	ErrPartialSettlement = NewDomainError(ErrCodePartialSettlement, "Order recorded but stock was not fully adjusted")
)

// InsufficientStockError identifies the first cart line whose product cannot
// cover the requested quantity.
type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s (%s): requested %d, available %d",
		e.ProductName, e.ProductID, e.Requested, e.Available)
}

// Is matches ErrInsufficientStock.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// PartialSettlementError is returned when an order was persisted but one or
// more of its stock adjustments could not be applied. The order stands; the
// pending adjustments are left for reconciliation.
type PartialSettlementError struct {
	OrderID    uuid.UUID
	ProductIDs []string
	Cause      error
}

func (e *PartialSettlementError) Error() string {
	return fmt.Sprintf("order %s recorded but stock not adjusted for [%s]: %v",
		e.OrderID, strings.Join(e.ProductIDs, ", "), e.Cause)
}

// Is matches ErrPartialSettlement.
func (e *PartialSettlementError) Is(target error) bool {
	return target == ErrPartialSettlement
}

func (e *PartialSettlementError) Unwrap() error {
	return e.Cause
}

// CheckoutFailure wraps a storage failure that aborted checkout before any
// order was recorded.
func CheckoutFailure(cause error) error {
	return fmt.Errorf("%w: %w", ErrCheckoutFailed, cause)
}

// ErrorCode returns the domain code carried by err, or ErrCodeInternalError.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrPartialSettlement):
		return ErrCodePartialSettlement
	case errors.Is(err, ErrInsufficientStock):
		return ErrCodeInsufficientStock
	case errors.Is(err, ErrCheckoutFailed):
		return ErrCodeCheckoutFailed
	}
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ErrCodeInternalError
}

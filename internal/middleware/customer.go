package middleware

import (
	"context"
	"net/http"
	"strings"

	"petshop-kart/internal/model"
)

// CustomerHeader carries the id of the customer a request acts for.
const CustomerHeader = "X-Customer-ID"

type customerKey struct{}

// WithCustomerID returns a copy of ctx carrying customerID.
func WithCustomerID(ctx context.Context, customerID string) context.Context {
	return context.WithValue(ctx, customerKey{}, customerID)
}

// CustomerID returns the customer resolved by Customer, or "".
func CustomerID(ctx context.Context) string {
	id, _ := ctx.Value(customerKey{}).(string)
	return id
}

// Customer resolves the customer from the X-Customer-ID header and rejects
// requests without one.
func Customer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(CustomerHeader))
		if id == "" {
			writeError(w, http.StatusUnauthorized, model.ErrCodeMissingCustomer, model.ErrMissingCustomer.Message)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithCustomerID(r.Context(), id)))
	})
}

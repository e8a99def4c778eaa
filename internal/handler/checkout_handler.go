package handler

import (
	"net/http"

	"petshop-kart/internal/middleware"
	"petshop-kart/internal/service"

	"github.com/rs/zerolog"
)

// CheckoutHandler turns the requesting customer's cart into an order.
type CheckoutHandler struct {
	service service.CheckoutService
	logger  zerolog.Logger
}

func NewCheckoutHandler(service service.CheckoutService, logger zerolog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service: service,
		logger:  logger.With().Str("handler", "checkout").Logger(),
	}
}

// Checkout handles POST /api/checkout.
//
// 201 carries the order. 202 means the order was recorded but some stock is
// still being adjusted; the response names the order and must not be retried.
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Execute(r.Context(), middleware.CustomerID(r.Context()))
	if err != nil {
		writeDomainError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

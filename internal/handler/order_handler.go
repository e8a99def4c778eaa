package handler

import (
	"net/http"

	"petshop-kart/internal/middleware"
	"petshop-kart/internal/model"
	"petshop-kart/internal/service"

	"github.com/rs/zerolog"
)

// OrderHandler serves order history.
type OrderHandler struct {
	service service.OrderService
	logger  zerolog.Logger
}

func NewOrderHandler(service service.OrderService, logger zerolog.Logger) *OrderHandler {
	return &OrderHandler{
		service: service,
		logger:  logger.With().Str("handler", "order").Logger(),
	}
}

// List handles GET /api/orders, the requesting customer's orders newest first.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePagination(r)
	if err != nil {
		writeBadRequest(w, r, model.ErrCodeInvalidPagination, err.Error(), h.logger)
		return
	}

	orders, err := h.service.ListByCustomer(r.Context(), middleware.CustomerID(r.Context()), limit, offset)
	if err != nil {
		writeDomainError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, orders)
}

// GetByID handles GET /api/orders/{id}. Orders of other customers are reported as absent.
func (h *OrderHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuidParam(r, "id")
	if err != nil {
		writeBadRequest(w, r, model.ErrCodeInvalidOrderID, "Invalid order ID format", h.logger)
		return
	}

	order, err := h.service.GetByID(r.Context(), orderID)
	if err != nil {
		writeDomainError(w, r, err, h.logger)
		return
	}
	if order == nil || order.CustomerID != middleware.CustomerID(r.Context()) {
		writeError(w, r, http.StatusNotFound, model.ErrorResponse{
			Error:   model.ErrCodeOrderNotFound,
			Message: "Order not found",
		}, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// ListAll handles GET /api/admin/orders.
func (h *OrderHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePagination(r)
	if err != nil {
		writeBadRequest(w, r, model.ErrCodeInvalidPagination, err.Error(), h.logger)
		return
	}

	orders, err := h.service.ListAll(r.Context(), limit, offset)
	if err != nil {
		writeDomainError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, orders)
}

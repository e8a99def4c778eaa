package handler

import (
	"net/http"

	"petshop-kart/internal/model"
	"petshop-kart/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// ProductHandler serves the catalogue.
type ProductHandler struct {
	service service.ProductService
	logger  zerolog.Logger
}

func NewProductHandler(service service.ProductService, logger zerolog.Logger) *ProductHandler {
	return &ProductHandler{
		service: service,
		logger:  logger.With().Str("handler", "product").Logger(),
	}
}

// GetAll handles GET /api/products.
func (h *ProductHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePagination(r)
	if err != nil {
		writeBadRequest(w, r, model.ErrCodeInvalidPagination, err.Error(), h.logger)
		return
	}

	products, err := h.service.GetAll(r.Context(), limit, offset)
	if err != nil {
		writeDomainError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, products)
}

// GetByID handles GET /api/products/{id}.
func (h *ProductHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	product, err := h.service.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err, h.logger)
		return
	}
	if product == nil {
		writeError(w, r, http.StatusNotFound, model.ErrorResponse{
			Error:   model.ErrCodeProductNotFound,
			Message: "Product not found",
		}, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, product)
}

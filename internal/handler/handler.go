package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"petshop-kart/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// The status is already sent; an encoding failure here means the client went away.
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a model.ErrorResponse tagged with the request id.
func writeError(w http.ResponseWriter, r *http.Request, status int, resp model.ErrorResponse, logger zerolog.Logger) {
	resp.CorrelationID = middleware.GetReqID(r.Context())

	event := logger.Debug()
	if status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Str("error", resp.Error).Int("status", status).Str("path", r.URL.Path).Msg(resp.Message)

	writeJSON(w, status, resp)
}

func writeBadRequest(w http.ResponseWriter, r *http.Request, code, message string, logger zerolog.Logger) {
	writeError(w, r, http.StatusBadRequest, model.ErrorResponse{Error: code, Message: message}, logger)
}

// writeDomainError maps err to its HTTP status.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error, logger zerolog.Logger) {
	resp := model.ErrorResponse{Error: model.ErrorCode(err)}
	var (
		partial  *model.PartialSettlementError
		stockErr *model.InsufficientStockError
		domain   *model.DomainError
		status   int
	)

	switch {
	case errors.As(err, &partial):
		status = http.StatusAccepted
		resp.Message = model.ErrPartialSettlement.Message
		resp.OrderID = partial.OrderID.String()
	case errors.As(err, &stockErr):
		status = http.StatusConflict
		resp.Message = fmt.Sprintf("Not enough stock for %s", stockErr.ProductName)
		resp.ProductID = stockErr.ProductID
		resp.ProductName = stockErr.ProductName
	case errors.Is(err, model.ErrCheckoutFailed):
		status = http.StatusServiceUnavailable
		resp.Message = model.ErrCheckoutFailed.Message
	case errors.As(err, &domain):
		status = domainStatus(domain)
		resp.Message = domain.Message
	default:
		logger.Error().Err(err).Str("path", r.URL.Path).Msg("unhandled error")
		status = http.StatusInternalServerError
		resp.Message = "An unexpected error occurred"
	}

	writeError(w, r, status, resp, logger)
}

func domainStatus(err *model.DomainError) int {
	switch err.Code {
	case model.ErrCodeInvalidQuantity, model.ErrCodeInvalidJSON, model.ErrCodeMissingField:
		return http.StatusBadRequest
	case model.ErrCodeMissingCustomer:
		return http.StatusUnauthorized
	case model.ErrCodeLineNotFound, model.ErrCodeProductNotFound, model.ErrCodeOrderNotFound:
		return http.StatusNotFound
	case model.ErrCodeEmptyCart:
		return http.StatusUnprocessableEntity
	case model.ErrCodeStockConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// decodeJSON decodes the request body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// parsePagination reads limit and offset; bounds are applied by the services.
func parsePagination(r *http.Request) (limit, offset int, err error) {
	limit, offset = 10, 0
	if s := r.URL.Query().Get("limit"); s != "" {
		if limit, err = strconv.Atoi(s); err != nil {
			return 0, 0, fmt.Errorf("invalid limit parameter")
		}
	}
	if s := r.URL.Query().Get("offset"); s != "" {
		if offset, err = strconv.Atoi(s); err != nil {
			return 0, 0, fmt.Errorf("invalid offset parameter")
		}
	}
	return limit, offset, nil
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, name))
}

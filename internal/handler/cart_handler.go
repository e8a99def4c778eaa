package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"petshop-kart/internal/middleware"
	"petshop-kart/internal/model"
	"petshop-kart/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const keepAliveInterval = 25 * time.Second

// CartHandler exposes the requesting customer's cart.
type CartHandler struct {
	ledger    service.CartLedger
	logger    zerolog.Logger
	keepAlive time.Duration

	closing   chan struct{}
	closeOnce sync.Once
}

func NewCartHandler(ledger service.CartLedger, logger zerolog.Logger) *CartHandler {
	return &CartHandler{
		ledger:    ledger,
		logger:    logger.With().Str("handler", "cart").Logger(),
		keepAlive: keepAliveInterval,
		closing:   make(chan struct{}),
	}
}

// CloseStreams ends every open event stream. Register it with
// http.Server.RegisterOnShutdown so streams do not hold up a graceful shutdown.
func (h *CartHandler) CloseStreams() {
	h.closeOnce.Do(func() { close(h.closing) })
}

// Get handles GET /api/cart.
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.writeView(w, r, http.StatusOK)
}

// AddItem handles POST /api/cart/items.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req model.AddToCartRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, r, model.ErrCodeInvalidJSON, "Invalid request body", h.logger)
		return
	}
	if req.ProductID == "" {
		writeBadRequest(w, r, model.ErrCodeMissingField, "productId is required", h.logger)
		return
	}

	if _, err := h.ledger.AddProduct(r.Context(), middleware.CustomerID(r.Context()), req.ProductID, req.Quantity); err != nil {
		writeDomainError(w, r, err, h.logger)
		return
	}

	h.writeView(w, r, http.StatusCreated)
}

// SetQuantity handles PUT /api/cart/items/{lineId}.
func (h *CartHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	lineID, ok := h.lineID(w, r)
	if !ok {
		return
	}

	var req model.SetQuantityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, r, model.ErrCodeInvalidJSON, "Invalid request body", h.logger)
		return
	}

	h.mutate(w, r, func(customerID string) error {
		return h.ledger.SetQuantity(r.Context(), customerID, lineID, req.Quantity)
	})
}

// Increment handles POST /api/cart/items/{lineId}/increment.
func (h *CartHandler) Increment(w http.ResponseWriter, r *http.Request) {
	if lineID, ok := h.lineID(w, r); ok {
		h.mutate(w, r, func(customerID string) error {
			return h.ledger.Increment(r.Context(), customerID, lineID)
		})
	}
}

// Decrement handles POST /api/cart/items/{lineId}/decrement.
func (h *CartHandler) Decrement(w http.ResponseWriter, r *http.Request) {
	if lineID, ok := h.lineID(w, r); ok {
		h.mutate(w, r, func(customerID string) error {
			return h.ledger.Decrement(r.Context(), customerID, lineID)
		})
	}
}

// RemoveItem handles DELETE /api/cart/items/{lineId}.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	if lineID, ok := h.lineID(w, r); ok {
		h.mutate(w, r, func(customerID string) error {
			return h.ledger.RemoveItem(r.Context(), customerID, lineID)
		})
	}
}

// Clear handles DELETE /api/cart.
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(customerID string) error {
		return h.ledger.Clear(r.Context(), customerID)
	})
}

// Events handles GET /api/cart/events, streaming the cart as server-sent
// events: the current cart first, then the cart after each change. Changes
// that arrive faster than the client reads are coalesced into the latest.
func (h *CartHandler) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, model.ErrorResponse{
			Error:   model.ErrCodeInternalError,
			Message: "Streaming is not supported",
		}, h.logger)
		return
	}

	ctx := r.Context()
	customerID := middleware.CustomerID(ctx)

	var (
		mu      sync.Mutex
		latest  model.CartView
		changed = make(chan struct{}, 1)
	)
	unsubscribe := h.ledger.Subscribe(customerID, func(v model.CartView) {
		mu.Lock()
		latest = v
		mu.Unlock()
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	view, err := h.ledger.View(ctx, customerID)
	if err != nil {
		writeDomainError(w, r, err, h.logger)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, view); err != nil {
		return
	}
	flusher.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug().Str("customer_id", customerID).Msg("cart stream closed")
			return
		case <-h.closing:
			return
		case <-changed:
			mu.Lock()
			v := latest
			mu.Unlock()
			if err := writeEvent(w, v); err != nil {
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
		}
		flusher.Flush()
	}
}

func writeEvent(w http.ResponseWriter, view model.CartView) error {
	data, err := json.Marshal(view)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: cart\ndata: %s\n\n", data)
	return err
}

func (h *CartHandler) lineID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuidParam(r, "lineId")
	if err != nil {
		writeBadRequest(w, r, model.ErrCodeInvalidLineID, "Invalid cart line ID format", h.logger)
		return uuid.Nil, false
	}
	return id, true
}

// mutate applies op for the requesting customer and responds with the cart.
func (h *CartHandler) mutate(w http.ResponseWriter, r *http.Request, op func(customerID string) error) {
	if err := op(middleware.CustomerID(r.Context())); err != nil {
		writeDomainError(w, r, err, h.logger)
		return
	}
	h.writeView(w, r, http.StatusOK)
}

func (h *CartHandler) writeView(w http.ResponseWriter, r *http.Request, status int) {
	view, err := h.ledger.View(r.Context(), middleware.CustomerID(r.Context()))
	if err != nil {
		writeDomainError(w, r, err, h.logger)
		return
	}
	writeJSON(w, status, view)
}

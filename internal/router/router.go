package router

import (
	"encoding/json"
	"net/http"

	"petshop-kart/internal/handler"
	"petshop-kart/internal/metrics"
	"petshop-kart/internal/middleware"
	"petshop-kart/internal/model"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Handlers groups the HTTP handlers mounted by New.
type Handlers struct {
	Products *handler.ProductHandler
	Cart     *handler.CartHandler
	Checkout *handler.CheckoutHandler
	Orders   *handler.OrderHandler
}

// Options configures the router.
type Options struct {
	APIKey      string
	HTTPMetrics *metrics.HTTPMetrics
	Gatherer    prometheus.Gatherer
}

// New creates a new HTTP router with all routes and middleware configured.
func New(h Handlers, opts Options, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	// Outermost first: RequestID -> Recovery -> Logging -> Metrics -> CORS -> APIKeyAuth
	r.Use(chimw.RequestID)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logging(logger))
	if opts.HTTPMetrics != nil {
		r.Use(middleware.Metrics(opts.HTTPMetrics))
	}
	r.Use(middleware.CORS)
	r.Use(middleware.APIKeyAuth(opts.APIKey, logger))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, model.ErrorResponse{Error: model.ErrCodeNotFound, Message: "Resource not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, model.ErrorResponse{
			Error:   model.ErrCodeMethodNotAllowed,
			Message: "Method not allowed",
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	})
	if opts.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(opts.Gatherer))
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.Products.GetAll)
			r.Get("/{id}", h.Products.GetByID)
		})

		r.Get("/admin/orders", h.Orders.ListAll)

		// Everything below acts on the customer named by X-Customer-ID.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Customer)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.Cart.Get)
				r.Delete("/", h.Cart.Clear)
				r.Get("/events", h.Cart.Events)
				r.Post("/items", h.Cart.AddItem)
				r.Put("/items/{lineId}", h.Cart.SetQuantity)
				r.Delete("/items/{lineId}", h.Cart.RemoveItem)
				r.Post("/items/{lineId}/increment", h.Cart.Increment)
				r.Post("/items/{lineId}/decrement", h.Cart.Decrement)
			})

			r.Post("/checkout", h.Checkout.Checkout)

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", h.Orders.List)
				r.Get("/{id}", h.Orders.GetByID)
			})
		})
	})

	return r
}

func writeError(w http.ResponseWriter, status int, resp model.ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

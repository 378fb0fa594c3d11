package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires the checkout and order routes behind the standard
// middleware stack. metrics may be nil.
func NewRouter(checkoutHandler *CheckoutHandler, orderHandler *OrderHandler, metrics http.Handler) *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("OK"))
	})
	if metrics != nil {
		router.Method(http.MethodGet, "/metrics", metrics)
	}

	checkoutHandler.RegisterRoutes(router)
	orderHandler.RegisterRoutes(router)

	return router
}

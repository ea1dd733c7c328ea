// Package httpx is the HTTP edge: a chi router exposing the seven public
// order operations plus health and metrics endpoints.
package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(ExtractRequestMetadata)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/orders", handler.PlaceOrder)
		r.Get("/orders", handler.GetOrders)
		r.Get("/orders/{id}", handler.GetOrderByID)
		r.Get("/orders/{id}/status", handler.GetOrderStatus)
		r.Post("/orders/{id}/restore", handler.RestoreOrder)
		r.Get("/admin/revenue-stats", handler.GetRevenueStats)
		r.Get("/admin/sagas/{id}", handler.GetSagaState)
		r.Post("/bookings", handler.BookSession)
	})
	return r
}

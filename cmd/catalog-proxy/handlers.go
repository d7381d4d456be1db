package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Sternrassler/square-catalog-cache/pkg/catalog"
	"github.com/Sternrassler/square-catalog-cache/pkg/kv"
	"github.com/Sternrassler/square-catalog-cache/pkg/metrics"
	"github.com/Sternrassler/square-catalog-cache/pkg/square"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// productSource yields the serialized product snapshot.
type productSource interface {
	Products(ctx context.Context) ([]byte, error)
}

type server struct {
	products productSource
	store    kv.Store
	logger   zerolog.Logger
}

func newRouter(s *server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)

	r.Get("/health", healthHandler)
	r.Get("/ready", s.readyHandler)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// The storefront calls the products endpoint with any method.
	r.HandleFunc("/products", s.productsHandler)
	r.HandleFunc("/", s.productsHandler)

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func (s *server) readyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Readiness check failed")
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func (s *server) productsHandler(w http.ResponseWriter, r *http.Request) {
	body, err := s.products.Products(r.Context())
	if err != nil {
		status := statusFor(err)
		s.logger.Error().
			Err(err).
			Int("status", status).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("Product request failed")
		writeError(w, status, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to write response")
	}
}

// statusFor maps failures to HTTP statuses: store 503, Square 502, other 500.
func statusFor(err error) int {
	var perr *square.ProviderError
	switch {
	case errors.Is(err, kv.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, catalog.ErrPaymentLinkCreationFailed), errors.As(err, &perr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

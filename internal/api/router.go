/**
 * @description
 * This file sets up the HTTP router for the payment-service. It defines the
 * API endpoints, associates them with their handlers, and applies middleware
 * for logging, panic recovery, CORS, and authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS middleware.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/suipay/payment-service/internal/auth"
)

// Routes creates and returns the router for the payment service.
func Routes(h *Handlers, tokens *auth.TokenService) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Public endpoints: both login paths and order lookup.
	r.Post("/auth/login", h.WalletLoginHandler)
	r.Post("/auth/zklogin/verify", h.ZkLoginHandler)
	r.Get("/orders/{id}", h.GetOrderHandler)

	// Group routes that require authentication.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(tokens))

		r.Post("/orders", h.CreateOrderHandler)
		r.Get("/employees", h.ListEmployeesHandler)
		r.Post("/employees", h.AddEmployeeHandler)
		r.Get("/merchant/summary", h.MerchantSummaryHandler)
		r.Post("/merchant/rebalance", h.RecordRebalanceHandler)
	})

	return r
}

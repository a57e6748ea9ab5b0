/**
 * @description
 * This file sets up the HTTP router for the authorizer. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies
 * any necessary middleware, such as for operator authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// AuthorizationRoutes creates and returns the router for the authorizer
// service. An empty jwksURL leaves the operator endpoints unauthenticated,
// which is only acceptable in local development.
func AuthorizationRoutes(h *AuthorizationHandlers, jwksURL string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// The card network calls this endpoint; it authenticates at the edge.
	r.Post("/authorize", h.AuthorizeHandler)

	// Read-only account views.
	r.Get("/balances/{account}", h.GetBalanceHandler)
	r.Get("/accounts/{account}/transactions", h.ListTransactionsHandler)

	// Operator endpoints for merchant registry management.
	r.Group(func(r chi.Router) {
		if jwksURL != "" {
			r.Use(OperatorAuthMiddleware(jwksURL))
		}
		r.Post("/merchants", h.CreateMerchantHandler)
	})

	return r
}

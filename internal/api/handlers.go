/**
 * @description
 * This file contains the HTTP handlers for the authorizer's API endpoints.
 * Handlers are responsible for parsing incoming requests, calling the
 * appropriate methods on the application service, and writing the HTTP
 * response. They act as the bridge between the web layer and the business
 * logic layer.
 *
 * The authorization endpoint has an unusual contract: it always answers HTTP
 * 200 with a single response code in the body, because the card network
 * treats transport-level failures as timeouts and retries. Every handler
 * failure therefore collapses to the "07" code rather than an HTTP error.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - github.com/go-chi/chi/v5: For URL parameter extraction.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/issuingbank/authorizer-service/internal/app"
	"github.com/issuingbank/authorizer-service/internal/domain"
	"github.com/issuingbank/authorizer-service/internal/store"
)

// AuthorizeRateLimiter counts authorization attempts against a per-account
// window. Implemented by app.RedisAuthorizeRateLimiter.
type AuthorizeRateLimiter interface {
	ConsumeRateLimit(ctx context.Context, account string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// AuthorizationHandlers holds the application service that handlers will use.
type AuthorizationHandlers struct {
	service            *app.Service
	rateLimiter        AuthorizeRateLimiter
	rateLimitPerMinute int
}

// NewAuthorizationHandlers creates a new instance of AuthorizationHandlers.
func NewAuthorizationHandlers(service *app.Service) *AuthorizationHandlers {
	return &AuthorizationHandlers{service: service}
}

// SetRateLimiter enables per-account rate limiting on the authorization
// endpoint. A nil limiter or non-positive limit leaves it disabled.
func (h *AuthorizationHandlers) SetRateLimiter(limiter AuthorizeRateLimiter, limitPerMinute int) {
	h.rateLimiter = limiter
	h.rateLimitPerMinute = limitPerMinute
}

type createMerchantRequest struct {
	MerchantName string `json:"merchant_name"`
	MCC          string `json:"mcc"`
}

// AuthorizeHandler handles point-of-sale authorization attempts. The response
// is always HTTP 200 with one of the codes "00", "51" or "07"; the
// Idempotency-Key header is mandatory and must be a UUID.
func (h *AuthorizationHandlers) AuthorizeHandler(w http.ResponseWriter, r *http.Request) {
	// The network contract leaves no channel for a 5xx, so even a panic in
	// the pipeline must come back as a "07" decision.
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("level=error component=api msg=\"panic during authorization\" err=%v", rec)
			h.writeJSON(w, http.StatusOK, domain.AuthorizationResponse{Code: domain.CodeUnexpectedError})
		}
	}()

	idempotencyKey, err := uuid.Parse(r.Header.Get("Idempotency-Key"))
	if err != nil {
		log.Printf("level=warn component=api msg=\"missing or invalid idempotency key\" err=%v", err)
		h.writeJSON(w, http.StatusOK, domain.AuthorizationResponse{Code: domain.CodeUnexpectedError})
		return
	}

	var req domain.AuthorizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api msg=\"malformed authorization body\" err=%v", err)
		h.writeJSON(w, http.StatusOK, domain.AuthorizationResponse{Code: domain.CodeUnexpectedError})
		return
	}

	if retryAfter, limited := h.consumeRateLimit(r, req.Account); limited {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		h.writeError(w, http.StatusTooManyRequests, "Too many authorization attempts for this account")
		return
	}

	resp := h.service.Authorize(r.Context(), idempotencyKey, req)
	h.writeJSON(w, http.StatusOK, resp)
}

// consumeRateLimit counts the attempt against the account's window. Limiter
// failures fail open: a Redis outage must not take authorizations down.
func (h *AuthorizationHandlers) consumeRateLimit(r *http.Request, account string) (retryAfter int, limited bool) {
	if h.rateLimiter == nil || h.rateLimitPerMinute <= 0 {
		return 0, false
	}
	count, retryAfter, err := h.rateLimiter.ConsumeRateLimit(r.Context(), account, h.rateLimitPerMinute, time.Minute)
	if err != nil {
		log.Printf("level=warn component=api msg=\"rate limiter unavailable; allowing request\" err=%v", err)
		return 0, false
	}
	if count > h.rateLimitPerMinute {
		return retryAfter, true
	}
	return 0, false
}

// CreateMerchantHandler registers a merchant registry override.
func (h *AuthorizationHandlers) CreateMerchantHandler(w http.ResponseWriter, r *http.Request) {
	var req createMerchantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	merchant, err := h.service.RegisterMerchant(r.Context(), req.MerchantName, req.MCC)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrBlankMerchant), errors.Is(err, domain.ErrBlankMCC):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrMerchantExists):
			h.writeError(w, http.StatusConflict, "Merchant is already registered")
		default:
			log.Printf("level=error component=api msg=\"merchant registration failed\" err=%v", err)
			h.writeError(w, http.StatusInternalServerError, "Unable to register merchant")
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, merchant)
}

// GetBalanceHandler returns the current balance snapshot for an account.
func (h *AuthorizationHandlers) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")

	balance, err := h.service.GetBalance(r.Context(), account)
	if err != nil {
		if errors.Is(err, store.ErrBalanceNotFound) {
			h.writeError(w, http.StatusNotFound, "Account not found")
			return
		}
		log.Printf("level=error component=api msg=\"balance lookup failed\" account=%s err=%v", account, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to fetch balance")
		return
	}

	h.writeJSON(w, http.StatusOK, balance)
}

// ListTransactionsHandler returns an account's committed transactions, newest
// first.
func (h *AuthorizationHandlers) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")

	transactions, err := h.service.ListTransactions(r.Context(), account)
	if err != nil {
		log.Printf("level=error component=api msg=\"transaction list failed\" account=%s err=%v", account, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to fetch transactions")
		return
	}
	if transactions == nil {
		transactions = []domain.Transaction{}
	}

	h.writeJSON(w, http.StatusOK, transactions)
}

// writeJSON is a helper for writing JSON responses.
func (h *AuthorizationHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *AuthorizationHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

/**
 * @description
 * This file contains the core business logic for the authorizer. The `Service`
 * struct orchestrates a point-of-sale authorization end to end, coordinating
 * between the database repository and the message broker.
 *
 * Key features:
 * - Resolves the effective MCC via the merchant registry before routing.
 * - Locks the account's balance row for the full duration of the attempt.
 * - Applies the category-with-cash-fallback debit policy.
 * - Commits balance, transaction and audit history atomically.
 * - Publishes a decision event to RabbitMQ for every outcome.
 *
 * Every failure is reported to the caller as one of the three response codes;
 * the network protocol has no richer error channel. The distinct causes are
 * logged here so operators can still tell them apart.
 *
 * @dependencies
 * - context, errors, log, time: Standard Go libraries.
 * - github.com/google/uuid: For idempotency key handling.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/rabbitmq: For decision event publishing.
 */

package app

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/issuingbank/authorizer-service/internal/domain"
	"github.com/issuingbank/authorizer-service/internal/store"
	"github.com/issuingbank/authorizer-service/pkg/rabbitmq"
)

// Service provides the core business logic for authorizations.
type Service struct {
	repo          store.Repository
	eventProducer rabbitmq.Publisher
	eventExchange string
}

// NewService creates a new authorizer service instance.
func NewService(repo store.Repository, producer rabbitmq.Publisher, eventExchange string) *Service {
	return &Service{
		repo:          repo,
		eventProducer: producer,
		eventExchange: eventExchange,
	}
}

// Authorize processes one point-of-sale debit attempt and always returns a
// response code: approved ("00"), insufficient balance ("51") or unexpected
// error ("07"). The idempotency key makes retried submissions of the same
// attempt at-most-once; a duplicate key can never debit twice.
func (s *Service) Authorize(ctx context.Context, idempotencyKey uuid.UUID, req domain.AuthorizationRequest) domain.AuthorizationResponse {
	// A validation failure is decided locally: no lock, no lookup, no event.
	if err := req.Validate(); err != nil {
		log.Printf("Authorize: Invalid request for account %q: %v", req.Account, err)
		return domain.AuthorizationResponse{Code: domain.CodeUnexpectedError}
	}

	resolvedMCC, err := s.resolveMCC(ctx, req)
	if err != nil {
		log.Printf("Authorize: Merchant lookup failed for %q: %v", req.Merchant, err)
		s.publishDecision(ctx, rabbitmq.RoutingKeyDeclinedError, req, "", idempotencyKey, domain.CodeUnexpectedError)
		return domain.AuthorizationResponse{Code: domain.CodeUnexpectedError}
	}
	balanceType := BalanceTypeForMCC(resolvedMCC)

	lock, err := s.repo.LockBalance(ctx, req.Account)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrBalanceNotFound):
			log.Printf("Authorize: No balance for account %s", req.Account)
		case errors.Is(err, store.ErrLockTimeout):
			log.Printf("Authorize: Lock wait timed out for account %s", req.Account)
		default:
			log.Printf("Authorize: Failed to lock balance for account %s: %v", req.Account, err)
		}
		s.publishDecision(ctx, rabbitmq.RoutingKeyDeclinedError, req, resolvedMCC, idempotencyKey, domain.CodeUnexpectedError)
		return domain.AuthorizationResponse{Code: domain.CodeUnexpectedError}
	}
	defer lock.Release(ctx)

	outcome, ok := attemptDebitWithFallback(lock.Balance(), balanceType, *req.TotalAmount)
	if !ok {
		log.Printf("Authorize: Insufficient balance for account %s (bucket %s, amount %s)", req.Account, balanceType, req.TotalAmount)
		s.publishDecision(ctx, rabbitmq.RoutingKeyDeclinedInsufficient, req, resolvedMCC, idempotencyKey, domain.CodeInsufficientBalance)
		return domain.AuthorizationResponse{Code: domain.CodeInsufficientBalance}
	}

	txn := &domain.Transaction{
		Account:        req.Account,
		RequestedMCC:   req.MCC,
		ResolvedMCC:    resolvedMCC,
		Merchant:       req.Merchant,
		Amount:         *req.TotalAmount,
		Type:           domain.TransactionDebit,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      time.Now().UTC(),
	}
	history := outcome.History

	if err := lock.Commit(ctx, outcome.NewBalance, txn, &history); err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateIdempotencyKey):
			if original, findErr := s.repo.FindTransactionByIdempotencyKey(ctx, idempotencyKey); findErr == nil && original != nil {
				log.Printf("Authorize: Duplicate idempotency key %s for account %s (already committed as txn %d)", idempotencyKey, req.Account, original.ID)
			} else {
				log.Printf("Authorize: Duplicate idempotency key %s for account %s", idempotencyKey, req.Account)
			}
		case errors.Is(err, store.ErrVersionConflict):
			log.Printf("Authorize: Stale balance version for account %s", req.Account)
		default:
			log.Printf("Authorize: Commit failed for account %s: %v", req.Account, err)
		}
		s.publishDecision(ctx, rabbitmq.RoutingKeyDeclinedError, req, resolvedMCC, idempotencyKey, domain.CodeUnexpectedError)
		return domain.AuthorizationResponse{Code: domain.CodeUnexpectedError}
	}

	log.Printf("Authorize: Approved %s for account %s from %s bucket (txn %d)", txn.Amount, req.Account, outcome.DebitedFrom, txn.ID)
	s.publishDecision(ctx, rabbitmq.RoutingKeyApproved, req, resolvedMCC, idempotencyKey, domain.CodeApproved)
	return domain.AuthorizationResponse{Code: domain.CodeApproved}
}

// resolveMCC returns the effective MCC for the attempt: the registry override
// when the normalized merchant name is known, otherwise the submitted code.
func (s *Service) resolveMCC(ctx context.Context, req domain.AuthorizationRequest) (string, error) {
	normalized := domain.NormalizeMerchantName(req.Merchant)
	merchant, err := s.repo.FindMerchantByNormalizedName(ctx, normalized)
	if err != nil {
		if errors.Is(err, store.ErrMerchantNotFound) {
			return req.MCC, nil
		}
		return "", err
	}
	log.Printf("Authorize: Merchant override %q -> MCC %s (submitted %s)", normalized, merchant.CorrectedMCC, req.MCC)
	return merchant.CorrectedMCC, nil
}

func (s *Service) publishDecision(ctx context.Context, routingKey string, req domain.AuthorizationRequest, resolvedMCC string, idempotencyKey uuid.UUID, code string) {
	if s.eventProducer == nil {
		return
	}
	event := rabbitmq.AuthorizationDecisionEvent{
		Account:        req.Account,
		Amount:         req.TotalAmount,
		RequestedMCC:   req.MCC,
		ResolvedMCC:    resolvedMCC,
		Merchant:       req.Merchant,
		IdempotencyKey: idempotencyKey,
		Code:           code,
		Timestamp:      time.Now().UTC(),
	}
	// Decisions are already durable in Postgres; a broker hiccup must not fail
	// the authorization.
	if err := s.eventProducer.Publish(ctx, s.eventExchange, routingKey, event); err != nil {
		log.Printf("WARN: Failed to publish decision event for account %s: %v", req.Account, err)
	}
}

// RegisterMerchant adds a registry override mapping a merchant's normalized
// name to the MCC that should be used instead of the one the point of sale
// submits.
func (s *Service) RegisterMerchant(ctx context.Context, originalName, correctedMCC string) (*domain.Merchant, error) {
	normalized := domain.NormalizeMerchantName(originalName)
	if normalized == "" {
		return nil, domain.ErrBlankMerchant
	}
	if strings.TrimSpace(correctedMCC) == "" {
		return nil, domain.ErrBlankMCC
	}

	merchant := &domain.Merchant{
		OriginalMerchantName:   originalName,
		NormalizedMerchantName: normalized,
		CorrectedMCC:           strings.TrimSpace(correctedMCC),
		CreatedAt:              time.Now().UTC(),
	}
	created, err := s.repo.CreateMerchant(ctx, merchant)
	if err != nil {
		return nil, err
	}
	log.Printf("RegisterMerchant: Registered %q -> MCC %s", normalized, created.CorrectedMCC)
	return created, nil
}

// GetBalance returns the current balance snapshot for an account.
func (s *Service) GetBalance(ctx context.Context, account string) (*domain.Balance, error) {
	return s.repo.FindBalanceByAccount(ctx, account)
}

// ListTransactions returns the committed transactions for an account, newest
// first.
func (s *Service) ListTransactions(ctx context.Context, account string) ([]domain.Transaction, error) {
	return s.repo.FindTransactionsByAccount(ctx, account)
}

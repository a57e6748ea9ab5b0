/**
 * @description
 * This file defines the `Repository` interface, the contract for all data
 * access the authorizer needs. Defining an interface decouples the
 * authorization pipeline from PostgreSQL and lets the service be tested
 * against hand-written stubs.
 *
 * The central piece is LockBalance/BalanceLock: fetching a balance for
 * mutation is an exclusive, bounded-wait acquisition that stays held until
 * the caller either commits the full authorization unit (new balance +
 * transaction + audit entry, all-or-nothing) or releases it.
 */

package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/issuingbank/authorizer-service/internal/domain"
)

var (
	ErrBalanceNotFound         = errors.New("balance not found")
	ErrLockTimeout             = errors.New("balance lock wait timed out")
	ErrDuplicateIdempotencyKey = errors.New("idempotency key already used")
	ErrVersionConflict         = errors.New("balance version conflict")
	ErrMerchantExists          = errors.New("merchant already exists")
	ErrMerchantNotFound        = errors.New("merchant not found")
)

// BalanceLock is an exclusively held balance row. The row lock blocks every
// other authorization on the same account until Commit or Release ends the
// unit of work.
type BalanceLock interface {
	// Balance returns the snapshot read under the lock.
	Balance() domain.Balance

	// Commit atomically persists the updated balance, the transaction record
	// and the audit entry, then releases the lock. A duplicate idempotency
	// key or a stale balance version rolls the whole unit back.
	Commit(ctx context.Context, newBalance domain.Balance, txn *domain.Transaction, history *domain.BalanceHistory) error

	// Release rolls back the unit of work. Safe to call after Commit, so it
	// can be deferred unconditionally.
	Release(ctx context.Context)
}

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Balance methods
	LockBalance(ctx context.Context, account string) (BalanceLock, error)
	FindBalanceByAccount(ctx context.Context, account string) (*domain.Balance, error)
	CreateBalance(ctx context.Context, balance *domain.Balance) (*domain.Balance, error)

	// Merchant registry methods
	CreateMerchant(ctx context.Context, merchant *domain.Merchant) (*domain.Merchant, error)
	FindMerchantByNormalizedName(ctx context.Context, normalizedName string) (*domain.Merchant, error)

	// Transaction history methods
	FindTransactionsByAccount(ctx context.Context, account string) ([]domain.Transaction, error)
	FindTransactionByIdempotencyKey(ctx context.Context, key uuid.UUID) (*domain.Transaction, error)
}

/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. The authorization unit of work is a single database
 * transaction: LockBalance opens it and takes a `FOR UPDATE` row lock with a
 * bounded wait, and pgxBalanceLock.Commit performs the versioned balance
 * update plus the transaction and audit inserts before committing. Any
 * failure inside the unit rolls everything back, so a duplicate idempotency
 * key can never leave a half-applied debit behind.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/issuingbank/authorizer-service/internal/domain"
)

const defaultLockTimeout = 250 * time.Millisecond

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db          *pgxpool.Pool
	lockTimeout time.Duration
}

// NewPostgresRepository creates a new instance of PostgresRepository. The
// lockTimeout bounds how long a balance fetch may wait on another
// authorization's row lock; non-positive values fall back to the default.
func NewPostgresRepository(db *pgxpool.Pool, lockTimeout time.Duration) *PostgresRepository {
	if lockTimeout <= 0 {
		lockTimeout = defaultLockTimeout
	}
	return &PostgresRepository{db: db, lockTimeout: lockTimeout}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isLockNotAvailable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "55P03"
}

const balanceColumns = `id, account, food_balance, meal_balance, cash_balance, version, created_at, updated_at`

func scanBalance(row pgx.Row) (*domain.Balance, error) {
	var b domain.Balance
	err := row.Scan(&b.ID, &b.Account, &b.Food, &b.Meal, &b.Cash, &b.Version, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// LockBalance begins the authorization unit of work: it opens a transaction,
// bounds the lock wait, and reads the account's balance row FOR UPDATE. The
// returned lock must be committed or released by the caller.
func (r *PostgresRepository) LockBalance(ctx context.Context, account string) (BalanceLock, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin authorization tx: %w", err)
	}

	// SET LOCAL scopes the timeout to this transaction only.
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())); err != nil {
		tx.Rollback(ctx)
		return nil, fmt.Errorf("set lock timeout: %w", err)
	}

	query := `SELECT ` + balanceColumns + ` FROM balances WHERE account = $1 FOR UPDATE`
	balance, err := scanBalance(tx.QueryRow(ctx, query, account))
	if err != nil {
		tx.Rollback(ctx)
		if err == pgx.ErrNoRows {
			return nil, ErrBalanceNotFound
		}
		if isLockNotAvailable(err) {
			return nil, ErrLockTimeout
		}
		return nil, fmt.Errorf("lock balance row: %w", err)
	}

	return &pgxBalanceLock{tx: tx, balance: *balance}, nil
}

type pgxBalanceLock struct {
	tx       pgx.Tx
	balance  domain.Balance
	finished bool
}

func (l *pgxBalanceLock) Balance() domain.Balance {
	return l.balance
}

// Commit applies the triple write {balance, transaction, history} and commits
// the surrounding transaction. The balance update is guarded by the version
// counter read under the lock; a row changed since the fetch is rejected, not
// overwritten.
func (l *pgxBalanceLock) Commit(ctx context.Context, newBalance domain.Balance, txn *domain.Transaction, history *domain.BalanceHistory) error {
	if l.finished {
		return errors.New("balance lock already finished")
	}
	defer l.tx.Rollback(ctx)

	updateQuery := `
		UPDATE balances
		SET food_balance = $1, meal_balance = $2, cash_balance = $3, version = version + 1, updated_at = NOW()
		WHERE id = $4 AND version = $5
	`
	tag, err := l.tx.Exec(ctx, updateQuery,
		newBalance.Food,
		newBalance.Meal,
		newBalance.Cash,
		l.balance.ID,
		l.balance.Version,
	)
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}

	insertTxnQuery := `
		INSERT INTO transactions (account, requested_mcc, resolved_mcc, merchant, amount, type, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err = l.tx.QueryRow(ctx, insertTxnQuery,
		txn.Account,
		txn.RequestedMCC,
		txn.ResolvedMCC,
		txn.Merchant,
		txn.Amount,
		int(txn.Type),
		txn.IdempotencyKey,
		txn.CreatedAt,
	).Scan(&txn.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("insert transaction: %w", err)
	}

	history.TransactionID = txn.ID
	insertHistoryQuery := `
		INSERT INTO balance_history (
			account, transaction_id,
			previous_food_balance, previous_meal_balance, previous_cash_balance,
			new_food_balance, new_meal_balance, new_cash_balance,
			created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	err = l.tx.QueryRow(ctx, insertHistoryQuery,
		history.Account,
		history.TransactionID,
		history.PreviousFoodBalance,
		history.PreviousMealBalance,
		history.PreviousCashBalance,
		history.NewFoodBalance,
		history.NewMealBalance,
		history.NewCashBalance,
		history.CreatedAt,
	).Scan(&history.ID)
	if err != nil {
		return fmt.Errorf("insert balance history: %w", err)
	}

	if err := l.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit authorization tx: %w", err)
	}
	l.finished = true
	return nil
}

// Release rolls the unit of work back. After a successful Commit it is a no-op.
func (l *pgxBalanceLock) Release(ctx context.Context) {
	if l.finished {
		return
	}
	l.finished = true
	if err := l.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		log.Printf("level=warn component=store msg=\"balance lock rollback failed\" err=%v", err)
	}
}

// FindBalanceByAccount reads a balance without locking it. Used by the read
// API only; mutation always goes through LockBalance.
func (r *PostgresRepository) FindBalanceByAccount(ctx context.Context, account string) (*domain.Balance, error) {
	query := `SELECT ` + balanceColumns + ` FROM balances WHERE account = $1`
	balance, err := scanBalance(r.db.QueryRow(ctx, query, account))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrBalanceNotFound
		}
		return nil, err
	}
	return balance, nil
}

// CreateBalance inserts a new balance row. Account provisioning happens
// outside the authorization core; this backs the seeder and tooling.
func (r *PostgresRepository) CreateBalance(ctx context.Context, balance *domain.Balance) (*domain.Balance, error) {
	query := `
		INSERT INTO balances (account, food_balance, meal_balance, cash_balance, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, NOW(), NOW())
		RETURNING ` + balanceColumns
	created, err := scanBalance(r.db.QueryRow(ctx, query, balance.Account, balance.Food, balance.Meal, balance.Cash))
	if err != nil {
		return nil, err
	}
	return created, nil
}

// CreateMerchant inserts a merchant registry entry. The normalized name is
// unique; registering the same merchant twice is rejected.
func (r *PostgresRepository) CreateMerchant(ctx context.Context, merchant *domain.Merchant) (*domain.Merchant, error) {
	query := `
		INSERT INTO merchants (original_merchant_name, normalized_merchant_name, corrected_mcc, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := r.db.QueryRow(ctx, query,
		merchant.OriginalMerchantName,
		merchant.NormalizedMerchantName,
		merchant.CorrectedMCC,
		merchant.CreatedAt,
	).Scan(&merchant.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrMerchantExists
		}
		return nil, err
	}
	return merchant, nil
}

// FindMerchantByNormalizedName looks up a registry override by exact
// normalized-name match.
func (r *PostgresRepository) FindMerchantByNormalizedName(ctx context.Context, normalizedName string) (*domain.Merchant, error) {
	var m domain.Merchant
	query := `
		SELECT id, original_merchant_name, normalized_merchant_name, corrected_mcc, created_at
		FROM merchants
		WHERE normalized_merchant_name = $1
	`
	err := r.db.QueryRow(ctx, query, normalizedName).Scan(
		&m.ID, &m.OriginalMerchantName, &m.NormalizedMerchantName, &m.CorrectedMCC, &m.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrMerchantNotFound
		}
		return nil, err
	}
	return &m, nil
}

// FindTransactionsByAccount retrieves all committed transactions for an account.
func (r *PostgresRepository) FindTransactionsByAccount(ctx context.Context, account string) ([]domain.Transaction, error) {
	query := `
		SELECT id, account, requested_mcc, resolved_mcc, merchant, amount, type, idempotency_key, created_at
		FROM transactions
		WHERE account = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, account)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []domain.Transaction
	for rows.Next() {
		var txn domain.Transaction
		var txnType int
		err := rows.Scan(
			&txn.ID, &txn.Account, &txn.RequestedMCC, &txn.ResolvedMCC,
			&txn.Merchant, &txn.Amount, &txnType, &txn.IdempotencyKey, &txn.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		txn.Type = domain.TransactionType(txnType)
		transactions = append(transactions, txn)
	}

	return transactions, rows.Err()
}

// FindTransactionByIdempotencyKey retrieves the transaction committed under a
// key, if any. Duplicate submitters use this to recover the original outcome.
func (r *PostgresRepository) FindTransactionByIdempotencyKey(ctx context.Context, key uuid.UUID) (*domain.Transaction, error) {
	var txn domain.Transaction
	var txnType int
	query := `
		SELECT id, account, requested_mcc, resolved_mcc, merchant, amount, type, idempotency_key, created_at
		FROM transactions
		WHERE idempotency_key = $1
	`
	err := r.db.QueryRow(ctx, query, key).Scan(
		&txn.ID, &txn.Account, &txn.RequestedMCC, &txn.ResolvedMCC,
		&txn.Merchant, &txn.Amount, &txnType, &txn.IdempotencyKey, &txn.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	txn.Type = domain.TransactionType(txnType)
	return &txn, nil
}

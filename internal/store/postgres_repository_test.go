package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505", ConstraintName: "transactions_idempotency_key_key"}

	if !isUniqueViolation(unique) {
		t.Fatal("expected 23505 to be a unique violation")
	}
	if !isUniqueViolation(fmt.Errorf("insert transaction: %w", unique)) {
		t.Fatal("expected wrapped 23505 to be a unique violation")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Fatal("did not expect a foreign-key violation to match")
	}
	if isUniqueViolation(errors.New("plain error")) {
		t.Fatal("did not expect a non-pg error to match")
	}
}

func TestIsLockNotAvailable(t *testing.T) {
	lockErr := &pgconn.PgError{Code: "55P03"}

	if !isLockNotAvailable(lockErr) {
		t.Fatal("expected 55P03 to be a lock timeout")
	}
	if !isLockNotAvailable(fmt.Errorf("lock balance row: %w", lockErr)) {
		t.Fatal("expected wrapped 55P03 to be a lock timeout")
	}
	if isLockNotAvailable(&pgconn.PgError{Code: "40001"}) {
		t.Fatal("did not expect a serialization failure to match")
	}
}

func TestNewPostgresRepositoryCoercesLockTimeout(t *testing.T) {
	repo := NewPostgresRepository(nil, 0)
	if repo.lockTimeout != defaultLockTimeout {
		t.Fatalf("expected default lock timeout, got %s", repo.lockTimeout)
	}

	repo = NewPostgresRepository(nil, -1)
	if repo.lockTimeout != defaultLockTimeout {
		t.Fatalf("expected default lock timeout for negative input, got %s", repo.lockTimeout)
	}
}

package app

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/issuingbank/authorizer-service/internal/domain"
	"github.com/issuingbank/authorizer-service/internal/store"
)

// serialLockRepository emulates the exclusive row lock with a mutex held from
// LockBalance until Commit or Release, so concurrent authorizations serialize
// the way they do against Postgres.
type serialLockRepository struct {
	mu      sync.Mutex
	balance domain.Balance
	commits int
	keys    map[uuid.UUID]bool
}

func (r *serialLockRepository) LockBalance(ctx context.Context, account string) (store.BalanceLock, error) {
	r.mu.Lock()
	return &serialLock{repo: r, snapshot: r.balance}, nil
}

type serialLock struct {
	repo     *serialLockRepository
	snapshot domain.Balance
	finished bool
}

func (l *serialLock) Balance() domain.Balance { return l.snapshot }

func (l *serialLock) Commit(ctx context.Context, newBalance domain.Balance, txn *domain.Transaction, history *domain.BalanceHistory) error {
	if l.repo.keys[txn.IdempotencyKey] {
		return store.ErrDuplicateIdempotencyKey
	}
	l.repo.keys[txn.IdempotencyKey] = true
	l.repo.balance = newBalance
	l.repo.commits++
	l.finished = true
	l.repo.mu.Unlock()
	return nil
}

func (l *serialLock) Release(ctx context.Context) {
	if l.finished {
		return
	}
	l.finished = true
	l.repo.mu.Unlock()
}

func (r *serialLockRepository) FindBalanceByAccount(ctx context.Context, account string) (*domain.Balance, error) {
	return &r.balance, nil
}

func (r *serialLockRepository) CreateBalance(ctx context.Context, balance *domain.Balance) (*domain.Balance, error) {
	return balance, nil
}

func (r *serialLockRepository) CreateMerchant(ctx context.Context, merchant *domain.Merchant) (*domain.Merchant, error) {
	return merchant, nil
}

func (r *serialLockRepository) FindMerchantByNormalizedName(ctx context.Context, normalizedName string) (*domain.Merchant, error) {
	return nil, store.ErrMerchantNotFound
}

func (r *serialLockRepository) FindTransactionsByAccount(ctx context.Context, account string) ([]domain.Transaction, error) {
	return nil, nil
}

func (r *serialLockRepository) FindTransactionByIdempotencyKey(ctx context.Context, key uuid.UUID) (*domain.Transaction, error) {
	return nil, nil
}

func TestConcurrentAuthorizationsNeverOverdraw(t *testing.T) {
	repo := &serialLockRepository{
		balance: balanceOf(t, "0", "0", "200"),
		keys:    map[uuid.UUID]bool{},
	}
	svc := NewService(repo, nil, "card.events")

	const attempts = 8
	req := authRequest(t, "1", "50", "9999", "LOJA QUALQUER")
	results := make(chan string, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := svc.Authorize(context.Background(), uuid.New(), req)
			results <- resp.Code
		}()
	}
	wg.Wait()
	close(results)

	approved, declined := 0, 0
	for code := range results {
		switch code {
		case domain.CodeApproved:
			approved++
		case domain.CodeInsufficientBalance:
			declined++
		default:
			t.Fatalf("unexpected code %s", code)
		}
	}

	if approved != 4 || declined != 4 {
		t.Fatalf("expected 4 approvals and 4 declines, got %d/%d", approved, declined)
	}
	if repo.commits != 4 {
		t.Fatalf("expected 4 commits, got %d", repo.commits)
	}
	if !repo.balance.Cash.IsZero() {
		t.Fatalf("expected cash 0, got %s", repo.balance.Cash)
	}
}

func TestDuplicateIdempotencyKeyCommitsOnce(t *testing.T) {
	repo := &serialLockRepository{
		balance: balanceOf(t, "0", "0", "200"),
		keys:    map[uuid.UUID]bool{},
	}
	svc := NewService(repo, nil, "card.events")
	key := uuid.New()
	req := authRequest(t, "1", "50", "9999", "LOJA QUALQUER")

	first := svc.Authorize(context.Background(), key, req)
	second := svc.Authorize(context.Background(), key, req)

	if first.Code != domain.CodeApproved {
		t.Fatalf("expected first attempt approved, got %s", first.Code)
	}
	if second.Code != domain.CodeUnexpectedError {
		t.Fatalf("expected duplicate attempt to fail with 07, got %s", second.Code)
	}
	if repo.commits != 1 {
		t.Fatalf("expected exactly one commit, got %d", repo.commits)
	}
	if !repo.balance.Cash.Equal(dec(t, "150")) {
		t.Fatalf("expected cash 150, got %s", repo.balance.Cash)
	}
}

package app

import (
	"testing"

	"github.com/issuingbank/authorizer-service/internal/domain"
	"github.com/shopspring/decimal"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal literal %q: %v", s, err)
	}
	return d
}

func balanceOf(t *testing.T, food, meal, cash string) domain.Balance {
	t.Helper()
	return domain.Balance{
		Account: "1",
		Food:    dec(t, food),
		Meal:    dec(t, meal),
		Cash:    dec(t, cash),
	}
}

func TestAttemptDebitSufficient(t *testing.T) {
	current := balanceOf(t, "200", "150", "100")

	outcome, ok := attemptDebit(current, domain.BalanceFood, dec(t, "50.25"))
	if !ok {
		t.Fatal("expected debit to succeed")
	}
	if outcome.DebitedFrom != domain.BalanceFood {
		t.Fatalf("expected food bucket, got %s", outcome.DebitedFrom)
	}
	if !outcome.NewBalance.Food.Equal(dec(t, "149.75")) {
		t.Fatalf("expected food 149.75, got %s", outcome.NewBalance.Food)
	}
	if !outcome.NewBalance.Meal.Equal(current.Meal) || !outcome.NewBalance.Cash.Equal(current.Cash) {
		t.Fatal("other buckets must not change")
	}
	if !outcome.History.PreviousFoodBalance.Equal(current.Food) || !outcome.History.NewFoodBalance.Equal(dec(t, "149.75")) {
		t.Fatal("history snapshot does not match the debit")
	}
}

func TestAttemptDebitInsufficient(t *testing.T) {
	current := balanceOf(t, "10", "150", "100")

	if _, ok := attemptDebit(current, domain.BalanceFood, dec(t, "10.01")); ok {
		t.Fatal("expected debit to fail")
	}
	if !current.Food.Equal(dec(t, "10")) {
		t.Fatal("failed attempt must not change the snapshot")
	}
}

func TestAttemptDebitExactBalance(t *testing.T) {
	current := balanceOf(t, "10", "0", "0")

	outcome, ok := attemptDebit(current, domain.BalanceFood, dec(t, "10"))
	if !ok {
		t.Fatal("expected debit of the full bucket to succeed")
	}
	if !outcome.NewBalance.Food.IsZero() {
		t.Fatalf("expected food 0, got %s", outcome.NewBalance.Food)
	}
}

func TestFallbackUsesCashWhenPrimaryIsShort(t *testing.T) {
	current := balanceOf(t, "10", "0", "200")

	outcome, ok := attemptDebitWithFallback(current, domain.BalanceFood, dec(t, "100"))
	if !ok {
		t.Fatal("expected fallback to cash to succeed")
	}
	if outcome.DebitedFrom != domain.BalanceCash {
		t.Fatalf("expected cash bucket, got %s", outcome.DebitedFrom)
	}
	if !outcome.NewBalance.Cash.Equal(dec(t, "100")) {
		t.Fatalf("expected cash 100, got %s", outcome.NewBalance.Cash)
	}
	if !outcome.NewBalance.Food.Equal(dec(t, "10")) {
		t.Fatal("primary bucket must be untouched after fallback")
	}
}

func TestFallbackPrefersPrimaryWhenSufficient(t *testing.T) {
	current := balanceOf(t, "200", "0", "200")

	outcome, ok := attemptDebitWithFallback(current, domain.BalanceFood, dec(t, "100"))
	if !ok {
		t.Fatal("expected primary debit to succeed")
	}
	if outcome.DebitedFrom != domain.BalanceFood {
		t.Fatalf("expected food bucket, got %s", outcome.DebitedFrom)
	}
}

func TestFallbackFailsWhenBothBucketsAreShort(t *testing.T) {
	current := balanceOf(t, "10", "0", "50")

	if _, ok := attemptDebitWithFallback(current, domain.BalanceFood, dec(t, "100")); ok {
		t.Fatal("expected fallback to fail when cash is also short")
	}
}

func TestFallbackDoesNotRetryCashAgainstItself(t *testing.T) {
	current := balanceOf(t, "500", "500", "50")

	if _, ok := attemptDebitWithFallback(current, domain.BalanceCash, dec(t, "100")); ok {
		t.Fatal("a short cash primary must not be retried")
	}
}

/**
 * @description
 * This file defines the account balance model for the authorizer. An account
 * holds three earmarked sub-balances (food, meal, cash); every debit picks one
 * of them. The Balance type is a value: Debit returns a modified copy and the
 * caller decides whether to persist it, so the authorization pipeline can
 * compute a post-debit state without touching shared state.
 *
 * @notes
 * - Amounts use decimal.Decimal: the balance columns are arbitrary-precision
 *   NUMERIC and card amounts must not accumulate float error.
 * - The version counter backs optimistic conflict detection at commit time.
 *   The row lock taken on fetch is the primary race guard; the version check
 *   only rejects a commit whose snapshot went stale anyway.
 */

package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// BalanceType identifies one of the three sub-balances an account holds.
type BalanceType int

const (
	BalanceFood BalanceType = iota
	BalanceMeal
	BalanceCash
)

// String returns the lowercase bucket name used in logs and events.
func (t BalanceType) String() string {
	switch t {
	case BalanceFood:
		return "food"
	case BalanceMeal:
		return "meal"
	case BalanceCash:
		return "cash"
	default:
		return fmt.Sprintf("balance_type(%d)", int(t))
	}
}

// Balance is the durable, versioned record of an account's three sub-balances.
// It maps to one row of the `balances` table.
type Balance struct {
	ID        int64           `json:"-"`
	Account   string          `json:"account"`
	Food      decimal.Decimal `json:"food_balance"`
	Meal      decimal.Decimal `json:"meal_balance"`
	Cash      decimal.Decimal `json:"cash_balance"`
	Version   int32           `json:"-"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Amount returns the current value of one bucket.
func (b Balance) Amount(t BalanceType) decimal.Decimal {
	switch t {
	case BalanceFood:
		return b.Food
	case BalanceMeal:
		return b.Meal
	case BalanceCash:
		return b.Cash
	default:
		panic(fmt.Sprintf("unknown balance type %d", int(t)))
	}
}

// HasSufficient reports whether the bucket can cover amount. A non-positive
// amount is never sufficient: a zero or negative debit is never authorized.
func (b Balance) HasSufficient(t BalanceType, amount decimal.Decimal) bool {
	if amount.Sign() <= 0 {
		return false
	}
	return b.Amount(t).GreaterThanOrEqual(amount)
}

// Debit returns a copy of the balance with the named bucket reduced by amount.
// Callers must check HasSufficient first; driving a bucket negative is a
// contract violation and panics rather than producing a recoverable error.
func (b Balance) Debit(t BalanceType, amount decimal.Decimal) Balance {
	if amount.Sign() <= 0 {
		panic(fmt.Sprintf("debit amount must be positive, got %s", amount))
	}
	next := b
	next.setAmount(t, b.Amount(t).Sub(amount))
	return next
}

func (b *Balance) setAmount(t BalanceType, value decimal.Decimal) {
	if value.Sign() < 0 {
		panic(fmt.Sprintf("balance bucket %s set to negative value %s", t, value))
	}
	switch t {
	case BalanceFood:
		b.Food = value
	case BalanceMeal:
		b.Meal = value
	case BalanceCash:
		b.Cash = value
	default:
		panic(fmt.Sprintf("unknown balance type %d", int(t)))
	}
}

// BalanceHistory is the immutable audit entry written alongside every
// committed debit: the before/after values of all three buckets, linked 1:1
// to the transaction that caused the change.
type BalanceHistory struct {
	ID                  int64           `json:"-"`
	Account             string          `json:"account"`
	TransactionID       int64           `json:"transaction_id"`
	PreviousFoodBalance decimal.Decimal `json:"previous_food_balance"`
	PreviousMealBalance decimal.Decimal `json:"previous_meal_balance"`
	PreviousCashBalance decimal.Decimal `json:"previous_cash_balance"`
	NewFoodBalance      decimal.Decimal `json:"new_food_balance"`
	NewMealBalance      decimal.Decimal `json:"new_meal_balance"`
	NewCashBalance      decimal.Decimal `json:"new_cash_balance"`
	CreatedAt           time.Time       `json:"created_at"`
}

// NewBalanceHistory captures the before/after snapshot for a debit. The
// TransactionID is filled in by the store once the transaction row exists.
func NewBalanceHistory(previous, next Balance, account string) BalanceHistory {
	return BalanceHistory{
		Account:             account,
		PreviousFoodBalance: previous.Food,
		PreviousMealBalance: previous.Meal,
		PreviousCashBalance: previous.Cash,
		NewFoodBalance:      next.Food,
		NewMealBalance:      next.Meal,
		NewCashBalance:      next.Cash,
		CreatedAt:           time.Now().UTC(),
	}
}

/**
 * @description
 * This file holds the pure debit engine: given a balance snapshot and a debit
 * to apply, it computes the outcome without touching the database. The
 * orchestrator feeds it the snapshot read under the row lock and persists
 * whatever it returns, so all category and fallback policy lives here where it
 * can be tested without infrastructure.
 */

package app

import (
	"github.com/issuingbank/authorizer-service/internal/domain"
	"github.com/shopspring/decimal"
)

// DebitOutcome is the computed result of a successful debit attempt: the
// post-debit balance, the bucket that actually paid, and the audit snapshot.
type DebitOutcome struct {
	NewBalance  domain.Balance
	DebitedFrom domain.BalanceType
	History     domain.BalanceHistory
}

// attemptDebit tries to take amount from a single bucket. It reports false
// without side effects when the bucket cannot cover the amount.
func attemptDebit(current domain.Balance, source domain.BalanceType, amount decimal.Decimal) (DebitOutcome, bool) {
	if !current.HasSufficient(source, amount) {
		return DebitOutcome{}, false
	}
	next := current.Debit(source, amount)
	return DebitOutcome{
		NewBalance:  next,
		DebitedFrom: source,
		History:     domain.NewBalanceHistory(current, next, current.Account),
	}, true
}

// attemptDebitWithFallback applies the category-with-cash-fallback policy: the
// primary bucket is tried first, and if it cannot cover the amount, cash is
// tried exactly once. When the primary bucket already is cash there is no
// second attempt.
func attemptDebitWithFallback(current domain.Balance, primary domain.BalanceType, amount decimal.Decimal) (DebitOutcome, bool) {
	if outcome, ok := attemptDebit(current, primary, amount); ok {
		return outcome, true
	}
	if primary == domain.BalanceCash {
		return DebitOutcome{}, false
	}
	return attemptDebit(current, domain.BalanceCash, amount)
}

/**
 * @description
 * This file defines the transaction ledger record and the authorization
 * request/response DTOs. A Transaction is written exactly once per approved
 * debit and never mutated; its idempotency key carries the at-most-once
 * guarantee through a database uniqueness constraint.
 */

package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType distinguishes credits from debits. The integer values are
// what the `type` column stores.
type TransactionType int

const (
	TransactionCredit TransactionType = 1
	TransactionDebit  TransactionType = 2
)

// Transaction is one immutable row of the `transactions` table.
type Transaction struct {
	ID             int64           `json:"id"`
	Account        string          `json:"account"`
	RequestedMCC   string          `json:"requested_mcc"`
	ResolvedMCC    string          `json:"resolved_mcc"`
	Merchant       string          `json:"merchant"`
	Amount         decimal.Decimal `json:"amount"`
	Type           TransactionType `json:"type"`
	IdempotencyKey uuid.UUID       `json:"idempotency_key"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Authorization response codes returned to the point-of-sale network.
const (
	CodeApproved            = "00"
	CodeInsufficientBalance = "51"
	CodeUnexpectedError     = "07"
)

// AuthorizationRequest is the DTO for an inbound authorization attempt.
// TotalAmount is a pointer so an absent amount is distinguishable from zero;
// neither is ever authorized.
type AuthorizationRequest struct {
	Account     string           `json:"account"`
	TotalAmount *decimal.Decimal `json:"totalAmount"`
	MCC         string           `json:"mcc"`
	Merchant    string           `json:"merchant"`
}

var (
	ErrBlankAccount      = errors.New("account must not be blank")
	ErrBlankMCC          = errors.New("mcc must not be blank")
	ErrBlankMerchant     = errors.New("merchant must not be blank")
	ErrNonPositiveAmount = errors.New("total amount must be positive")
)

// Validate checks the synchronous preconditions of an authorization attempt.
// No I/O happens here; a violation fails the request before anything else runs.
func (r AuthorizationRequest) Validate() error {
	if strings.TrimSpace(r.Account) == "" {
		return ErrBlankAccount
	}
	if strings.TrimSpace(r.MCC) == "" {
		return ErrBlankMCC
	}
	if strings.TrimSpace(r.Merchant) == "" {
		return ErrBlankMerchant
	}
	if r.TotalAmount == nil || r.TotalAmount.Sign() <= 0 {
		return ErrNonPositiveAmount
	}
	return nil
}

// AuthorizationResponse is the single-field body returned for every
// authorization attempt, approved or not.
type AuthorizationResponse struct {
	Code string `json:"code"`
}

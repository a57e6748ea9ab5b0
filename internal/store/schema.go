/**
 * @description
 * This file owns the database schema and the optional demo seed. Migrate runs
 * idempotent DDL at startup; the uniqueness constraints here are load-bearing
 * for the authorizer's guarantees (one transaction per idempotency key, one
 * registry entry per normalized merchant name).
 */

package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/issuingbank/authorizer-service/internal/domain"
	"github.com/shopspring/decimal"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS balances (
		id BIGSERIAL PRIMARY KEY,
		account TEXT NOT NULL UNIQUE,
		food_balance NUMERIC(19, 4) NOT NULL CHECK (food_balance >= 0),
		meal_balance NUMERIC(19, 4) NOT NULL CHECK (meal_balance >= 0),
		cash_balance NUMERIC(19, 4) NOT NULL CHECK (cash_balance >= 0),
		version INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id BIGSERIAL PRIMARY KEY,
		account TEXT NOT NULL,
		requested_mcc TEXT NOT NULL,
		resolved_mcc TEXT NOT NULL,
		merchant TEXT NOT NULL,
		amount NUMERIC(19, 4) NOT NULL,
		type INTEGER NOT NULL,
		idempotency_key UUID NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_account ON transactions (account, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS balance_history (
		id BIGSERIAL PRIMARY KEY,
		account TEXT NOT NULL,
		transaction_id BIGINT NOT NULL UNIQUE REFERENCES transactions (id),
		previous_food_balance NUMERIC(19, 4) NOT NULL,
		previous_meal_balance NUMERIC(19, 4) NOT NULL,
		previous_cash_balance NUMERIC(19, 4) NOT NULL,
		new_food_balance NUMERIC(19, 4) NOT NULL,
		new_meal_balance NUMERIC(19, 4) NOT NULL,
		new_cash_balance NUMERIC(19, 4) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS merchants (
		id BIGSERIAL PRIMARY KEY,
		original_merchant_name TEXT NOT NULL,
		normalized_merchant_name TEXT NOT NULL UNIQUE,
		corrected_mcc VARCHAR(4) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// Migrate applies the schema. Every statement is idempotent, so this runs on
// every boot.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement: %w", err)
		}
	}
	return nil
}

// Seed inserts the demo balance and the known merchant overrides, but only
// into empty tables. Gated by config so production boots never write it.
func (r *PostgresRepository) Seed(ctx context.Context) error {
	var merchantCount int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM merchants`).Scan(&merchantCount); err != nil {
		return fmt.Errorf("count merchants: %w", err)
	}
	if merchantCount == 0 {
		seedMerchants := []struct {
			name string
			mcc  string
		}{
			{"UBER TRIP                   SAO PAULO BR", "1520"},
			{"UBER EATS                   SAO PAULO BR", "5811"},
		}
		for _, m := range seedMerchants {
			merchant := &domain.Merchant{
				OriginalMerchantName:   m.name,
				NormalizedMerchantName: domain.NormalizeMerchantName(m.name),
				CorrectedMCC:           m.mcc,
				CreatedAt:              time.Now().UTC(),
			}
			if _, err := r.CreateMerchant(ctx, merchant); err != nil {
				return fmt.Errorf("seed merchant %q: %w", m.name, err)
			}
		}
		log.Printf("level=info component=store msg=\"seeded merchant registry\" count=%d", len(seedMerchants))
	}

	var balanceCount int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM balances`).Scan(&balanceCount); err != nil {
		return fmt.Errorf("count balances: %w", err)
	}
	if balanceCount == 0 {
		opening := decimal.NewFromInt(200)
		balance := &domain.Balance{Account: "1", Food: opening, Meal: opening, Cash: opening}
		if _, err := r.CreateBalance(ctx, balance); err != nil {
			return fmt.Errorf("seed balance: %w", err)
		}
		log.Printf("level=info component=store msg=\"seeded demo balance\" account=%s", balance.Account)
	}

	return nil
}

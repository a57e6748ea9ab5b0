/**
 * @description
 * This file defines the merchant registry entry and the merchant-name
 * normalization rule. Terminals submit noisy merchant descriptors (padding,
 * punctuation, mixed case); the registry is keyed by the normalized form so
 * an override registered once matches every spelling a terminal produces.
 */

package domain

import (
	"regexp"
	"strings"
	"time"
)

// Merchant maps a normalized merchant name to a corrected MCC. When a
// merchant is registered here, its corrected code takes precedence over
// whatever MCC the terminal submitted.
type Merchant struct {
	ID                     int64     `json:"id"`
	OriginalMerchantName   string    `json:"original_merchant_name"`
	NormalizedMerchantName string    `json:"normalized_merchant_name"`
	CorrectedMCC           string    `json:"corrected_mcc"`
	CreatedAt              time.Time `json:"created_at"`
}

var (
	nonAlphanumericPattern = regexp.MustCompile(`[^A-Z0-9\s]`)
	whitespaceRunPattern   = regexp.MustCompile(`\s+`)
)

// NormalizeMerchantName uppercases the name, strips everything outside
// letters, digits and whitespace, collapses whitespace runs to a single
// space and trims the ends. An empty input normalizes to "", which matches
// no registry entry. Normalizing an already-normalized name is a no-op.
func NormalizeMerchantName(name string) string {
	normalized := strings.ToUpper(name)
	normalized = nonAlphanumericPattern.ReplaceAllString(normalized, "")
	normalized = whitespaceRunPattern.ReplaceAllString(normalized, " ")
	return strings.TrimSpace(normalized)
}

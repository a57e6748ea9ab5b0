package app

import (
	"context"
	"testing"
	"time"
)

func TestNewRedisAuthorizeRateLimiterNormalizesPrefix(t *testing.T) {
	cases := []struct {
		name   string
		prefix string
		want   string
	}{
		{"default when blank", "", "authorizer:rate_limit"},
		{"default when whitespace", "   ", "authorizer:rate_limit"},
		{"trailing colon stripped", "custom:prefix:", "custom:prefix"},
		{"kept as given", "custom:prefix", "custom:prefix"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			limiter := NewRedisAuthorizeRateLimiter(nil, tc.prefix)
			if limiter.prefix != tc.want {
				t.Fatalf("expected prefix %q, got %q", tc.want, limiter.prefix)
			}
		})
	}
}

func TestConsumeRateLimitDisabledGuards(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name    string
		limiter *RedisAuthorizeRateLimiter
		account string
		limit   int
		window  time.Duration
	}{
		{"nil limiter", nil, "1", 10, time.Minute},
		{"nil client", NewRedisAuthorizeRateLimiter(nil, ""), "1", 10, time.Minute},
		{"non-positive limit", NewRedisAuthorizeRateLimiter(nil, ""), "1", 0, time.Minute},
		{"non-positive window", NewRedisAuthorizeRateLimiter(nil, ""), "1", 10, 0},
		{"blank account", NewRedisAuthorizeRateLimiter(nil, ""), "  ", 10, time.Minute},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			count, retryAfter, err := tc.limiter.ConsumeRateLimit(ctx, tc.account, tc.limit, tc.window)
			if err != nil {
				t.Fatalf("disabled limiter must not error, got %v", err)
			}
			if count != 0 || retryAfter != 0 {
				t.Fatalf("disabled limiter must report zero usage, got count=%d retry_after=%d", count, retryAfter)
			}
		})
	}
}

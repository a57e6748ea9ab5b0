package app

import (
	"testing"

	"github.com/issuingbank/authorizer-service/internal/domain"
)

func TestBalanceTypeForMCC(t *testing.T) {
	cases := []struct {
		mcc  string
		want domain.BalanceType
	}{
		{"5411", domain.BalanceFood},
		{"5412", domain.BalanceFood},
		{"5811", domain.BalanceMeal},
		{"5812", domain.BalanceMeal},
		{"1520", domain.BalanceCash},
		{"9999", domain.BalanceCash},
		{"", domain.BalanceCash},
		{"541", domain.BalanceCash},
		{"54110", domain.BalanceCash},
	}

	for _, tc := range cases {
		if got := BalanceTypeForMCC(tc.mcc); got != tc.want {
			t.Errorf("BalanceTypeForMCC(%q) = %s, want %s", tc.mcc, got, tc.want)
		}
	}
}

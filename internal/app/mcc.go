/**
 * @description
 * This file maps merchant category codes onto the sub-balance a debit draws
 * from. The table is the category routing policy of the whole authorizer:
 * grocery MCCs spend food, restaurant MCCs spend meal, and everything else
 * falls through to cash.
 */

package app

import "github.com/issuingbank/authorizer-service/internal/domain"

var mccBalanceTypes = map[string]domain.BalanceType{
	"5411": domain.BalanceFood,
	"5412": domain.BalanceFood,
	"5811": domain.BalanceMeal,
	"5812": domain.BalanceMeal,
}

// BalanceTypeForMCC returns the sub-balance a given MCC debits. Unknown,
// malformed or empty codes route to cash; the caller does not need to
// pre-validate the code.
func BalanceTypeForMCC(mcc string) domain.BalanceType {
	if t, ok := mccBalanceTypes[mcc]; ok {
		return t
	}
	return domain.BalanceCash
}

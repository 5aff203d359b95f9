package domain

import "math"

// TokenBalance is the utility token ledger of this instance.
type TokenBalance struct {
	UtilityTokenBalance uint64
}

// Credit adds amount, saturating at the maximum balance.
func (t *TokenBalance) Credit(amount uint64) {
	if math.MaxUint64-t.UtilityTokenBalance < amount {
		t.UtilityTokenBalance = math.MaxUint64
		return
	}
	t.UtilityTokenBalance += amount
}

// Debit subtracts amount and reports false, leaving the balance untouched,
// when funds are insufficient.
func (t *TokenBalance) Debit(amount uint64) bool {
	if t.UtilityTokenBalance < amount {
		return false
	}
	t.UtilityTokenBalance -= amount
	return true
}

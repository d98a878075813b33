package amm

// WithdrawAmounts returns the reserves paid out for burning lpAmount shares.
// There is no minimum-return bound on this path.
func WithdrawAmounts(lpSupply, vaultX, vaultY, lpAmount uint64) (returnX, returnY uint64, err error) {
	if lpAmount == 0 {
		return 0, 0, ErrLPAmountZero
	}
	if lpAmount > lpSupply {
		return 0, 0, ErrInvalidAmount
	}
	return ReservesForShares(lpSupply, vaultX, vaultY, lpAmount)
}

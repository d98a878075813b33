package amm

// InitialMint returns the share amount for the first deposit into an empty
// pool: floor(sqrt(x*y)).
func InitialMint(x, y uint64) (uint64, error) {
	return isqrtProduct(x, y)
}

// ProportionalMint sizes a deposit into a funded pool. The side that implies
// fewer shares sets lpOut, and both required amounts are then derived from
// lpOut so neither exceeds its maximum and the pool ratio is unchanged.
func ProportionalMint(lpSupply, vaultX, vaultY, maxX, maxY uint64) (requiredX, requiredY, lpOut uint64, err error) {
	if lpSupply > 0 && (vaultX == 0 || vaultY == 0) {
		return 0, 0, 0, ErrInconsistentReserves
	}

	lpX, err := MulDiv(maxX, lpSupply, vaultX)
	if err != nil {
		return 0, 0, 0, err
	}
	lpY, err := MulDiv(maxY, lpSupply, vaultY)
	if err != nil {
		return 0, 0, 0, err
	}
	lpOut = min64(lpX, lpY)

	requiredX, requiredY, err = ReservesForShares(lpSupply, vaultX, vaultY, lpOut)
	if err != nil {
		return 0, 0, 0, err
	}
	return requiredX, requiredY, lpOut, nil
}

// ReservesForShares returns the pro-rata reserve amounts backing lpAmount
// shares. Deposits use it to size the debit, withdrawals to size the payout.
func ReservesForShares(lpSupply, vaultX, vaultY, lpAmount uint64) (x, y uint64, err error) {
	if lpSupply == 0 {
		return 0, 0, ErrDivisionByZero
	}
	x, err = MulDiv(vaultX, lpAmount, lpSupply)
	if err != nil {
		return 0, 0, err
	}
	y, err = MulDiv(vaultY, lpAmount, lpSupply)
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

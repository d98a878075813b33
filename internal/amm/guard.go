package amm

import "github.com/holiman/uint256"

// CheckUnlocked rejects any operation on a locked pool.
func CheckUnlocked(pool PoolState) error {
	if pool.Locked {
		return ErrPoolLocked
	}
	return nil
}

// CheckNonZero rejects a zero quantity with the supplied error kind.
func CheckNonZero(amount uint64, kind error) error {
	if amount == 0 {
		return kind
	}
	return nil
}

// CheckMaxBound rejects a computed debit above the caller's maximum.
func CheckMaxBound(required, limit uint64) error {
	if required > limit {
		return ErrSlippageExceeded
	}
	return nil
}

// CheckMinBound rejects a computed output below the caller's minimum.
func CheckMinBound(out, limit uint64) error {
	if out < limit {
		return ErrSlippageExceeded
	}
	return nil
}

// CheckReserves enforces lp_supply == 0 iff both vaults are empty.
func CheckReserves(lpSupply uint64, reserves Reserves) error {
	empty := reserves.X == 0 && reserves.Y == 0
	if lpSupply == 0 && !empty {
		return ErrInconsistentReserves
	}
	if lpSupply > 0 && (reserves.X == 0 || reserves.Y == 0) {
		return ErrInconsistentReserves
	}
	return nil
}

// CheckSwapReserves rejects swaps against a pool with an empty side.
func CheckSwapReserves(reserves Reserves) error {
	if reserves.X == 0 || reserves.Y == 0 {
		return ErrEmptyReserves
	}
	return nil
}

// CheckOutputRetained rejects a swap that would hand out the whole output vault.
func CheckOutputRetained(amountOut, vaultOut uint64) error {
	if amountOut >= vaultOut {
		return ErrReserveDrained
	}
	return nil
}

// CheckProductPreserved verifies a swap did not shrink k by more than the
// floor rounding of the output reserve: newIn*(newOut+1) must exceed k.
func CheckProductPreserved(before, after Reserves, inIsX bool) error {
	newIn, newOut := after.X, after.Y
	if !inIsX {
		newIn, newOut = after.Y, after.X
	}
	k := productOf(before.X, before.Y)
	if !productOf(newIn, newOut).Lt(k) {
		return nil
	}
	bumped := new(uint256.Int).AddUint64(uint256.NewInt(newOut), 1)
	bumped.Mul(bumped, uint256.NewInt(newIn))
	if bumped.Gt(k) {
		return nil
	}
	return ErrProductDecreased
}

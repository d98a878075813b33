package amm

import "github.com/holiman/uint256"

// SwapOutput applies the constant-product formula with a flat basis-point fee.
// The fee is taken from amountIn, stays in the input vault and is reported
// separately so the caller can accrue it.
func SwapOutput(vaultIn, vaultOut, amountIn uint64, feeBP uint16) (amountOut, feeAmount uint64, err error) {
	if uint64(feeBP) >= BasisPoints {
		return 0, 0, ErrInvalidFee
	}

	feeAmount, err = MulDiv(amountIn, uint64(feeBP), BasisPoints)
	if err != nil {
		return 0, 0, err
	}
	amountAfterFee, err := checkedSub(amountIn, feeAmount)
	if err != nil {
		return 0, 0, err
	}

	k, err := mulWide(vaultIn, vaultOut)
	if err != nil {
		return 0, 0, err
	}
	newVaultIn, err := checkedAdd(vaultIn, amountAfterFee)
	if err != nil {
		return 0, 0, err
	}
	newVaultOut, err := divNarrow(k, newVaultIn)
	if err != nil {
		return 0, 0, err
	}

	amountOut, err = checkedSub(vaultOut, newVaultOut)
	if err != nil {
		return 0, 0, err
	}
	return amountOut, feeAmount, nil
}

// productOf returns x*y as a wide integer; it cannot overflow 256 bits.
func productOf(x, y uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(x), uint256.NewInt(y))
}

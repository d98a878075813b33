package amm

import "github.com/holiman/uint256"

// BasisPoints is the fee denominator.
const BasisPoints = 10_000

// maxIntermediateBits bounds products of two u64 operands.
const maxIntermediateBits = 128

// MulDiv returns floor(a*b/c) computed over a wide intermediate.
func MulDiv(a, b, c uint64) (uint64, error) {
	if c == 0 {
		return 0, ErrDivisionByZero
	}
	product, err := mulWide(a, b)
	if err != nil {
		return 0, err
	}
	return divNarrow(product, c)
}

// mulWide returns a*b, rejecting anything past the 128-bit intermediate range.
func mulWide(a, b uint64) (*uint256.Int, error) {
	product := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	if product.BitLen() > maxIntermediateBits {
		return nil, ErrOverflow
	}
	return product, nil
}

// divNarrow divides a wide numerator and narrows to u64 only after the range check.
func divNarrow(numerator *uint256.Int, c uint64) (uint64, error) {
	if c == 0 {
		return 0, ErrDivisionByZero
	}
	quotient := new(uint256.Int).Div(numerator, uint256.NewInt(c))
	if !quotient.IsUint64() {
		return 0, ErrOverflow
	}
	return quotient.Uint64(), nil
}

func checkedAdd(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, ErrOverflow
	}
	return sum, nil
}

func checkedSub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrOverflow
	}
	return a - b, nil
}

// isqrtProduct returns floor(sqrt(x*y)).
func isqrtProduct(x, y uint64) (uint64, error) {
	product, err := mulWide(x, y)
	if err != nil {
		return 0, err
	}
	root := new(uint256.Int).Sqrt(product)
	if !root.IsUint64() {
		return 0, ErrOverflow
	}
	return root.Uint64(), nil
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

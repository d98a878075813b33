package amm

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSwapOutputZeroFeeMatchesConstantProduct(t *testing.T) {
	cases := []struct {
		vx, vy, in uint64
	}{
		{1000, 2000, 100},
		{1_000_000, 1_000_000, 1},
		{3, 3, 1},
		{5_000_000_000_000, 100_000_000_000_000, 50_000_000_000},
		{1 << 62, 1 << 62, 1 << 40},
	}
	for _, tc := range cases {
		out, fee, err := SwapOutput(tc.vx, tc.vy, tc.in, 0)
		require.NoError(t, err)
		require.Zero(t, fee)

		k := new(big.Int).Mul(new(big.Int).SetUint64(tc.vx), new(big.Int).SetUint64(tc.vy))
		newX := new(big.Int).Add(new(big.Int).SetUint64(tc.vx), new(big.Int).SetUint64(tc.in))
		want := new(big.Int).Sub(new(big.Int).SetUint64(tc.vy), new(big.Int).Div(k, newX))
		require.Equal(t, want.Uint64(), out)
	}
}

func TestSwapOutputWithFee(t *testing.T) {
	out, fee, err := SwapOutput(1_000_000, 1_000_000, 10_000, 30)
	require.NoError(t, err)
	require.Equal(t, uint64(30), fee)
	require.Equal(t, uint64(9872), out)

	out, fee, err = SwapOutput(5_000_000, 20_000_000, 250_000, 25)
	require.NoError(t, err)
	require.Equal(t, uint64(625), fee)
	require.Equal(t, uint64(950114), out)
}

func TestSwapOutputProductGrowsWithFee(t *testing.T) {
	cases := []struct {
		vIn, vOut, in uint64
		fee           uint16
	}{
		{1_000_000, 1_000_000, 10_000, 30},
		{5_000_000, 20_000_000, 250_000, 25},
		{1_000_000_000_000, 3_000_000_000_000, 1_000_000_000, 100},
		{777_777, 123_456, 50_000, 300},
	}
	for _, tc := range cases {
		out, _, err := SwapOutput(tc.vIn, tc.vOut, tc.in, tc.fee)
		require.NoError(t, err)
		before := productOf(tc.vIn, tc.vOut)
		after := productOf(tc.vIn+tc.in, tc.vOut-out)
		require.False(t, after.Lt(before), "k shrank for %+v", tc)
	}
}

func TestSwapOutputZeroAmount(t *testing.T) {
	out, fee, err := SwapOutput(1000, 2000, 0, 30)
	require.NoError(t, err)
	require.Zero(t, out)
	require.Zero(t, fee)
}

func TestSwapOutputRejects(t *testing.T) {
	_, _, err := SwapOutput(0, 0, 0, 0)
	require.ErrorIs(t, err, ErrDivisionByZero)

	_, _, err = SwapOutput(1000, 1000, 10, BasisPoints)
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, _, err = SwapOutput(^uint64(0), 10, 10, 0)
	require.ErrorIs(t, err, ErrOverflow)
}

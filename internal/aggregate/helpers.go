package aggregate

import (
	"math/big"
	"time"
)

const ratioScale = 18

func formatTokenAmount(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	if decimals == 0 {
		return value.String()
	}
	sign := value.Sign()
	abs := new(big.Int).Abs(value)
	denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	rat := new(big.Rat).SetFrac(abs, denom)
	text := rat.FloatString(int(decimals))
	if sign < 0 {
		return "-" + text
	}
	return text
}

func computeFeeRates(feeX, feeY, reserveX, reserveY *big.Int) (*string, *string) {
	var rateX, rateY *string
	if rate := computeRate(feeX, reserveX); rate != nil {
		text := rate.FloatString(ratioScale)
		rateX = &text
	}
	if rate := computeRate(feeY, reserveY); rate != nil {
		text := rate.FloatString(ratioScale)
		rateY = &text
	}
	return rateX, rateY
}

func computeRate(fee, reserve *big.Int) *big.Rat {
	if fee == nil || fee.Sign() == 0 || reserve == nil || reserve.Sign() == 0 {
		return nil
	}
	return new(big.Rat).SetFrac(fee, reserve)
}

// computeAPR annualizes the window's fee yield. At the closing price both
// reserves carry equal value, so the pool-wide yield is the mean of the two
// per-asset fee rates.
func computeAPR(feeX, feeY, reserveX, reserveY *big.Int, windowSeconds uint64) *string {
	if windowSeconds == 0 || reserveX == nil || reserveX.Sign() == 0 || reserveY == nil || reserveY.Sign() == 0 {
		return nil
	}
	yield := new(big.Rat)
	if rate := computeRate(feeX, reserveX); rate != nil {
		yield.Add(yield, rate)
	}
	if rate := computeRate(feeY, reserveY); rate != nil {
		yield.Add(yield, rate)
	}
	yield.Quo(yield, big.NewRat(2, 1))

	yearSeconds := big.NewRat(int64(365*24*time.Hour/time.Second), 1)
	window := big.NewRat(int64(windowSeconds), 1)
	apr := new(big.Rat).Mul(yield, yearSeconds)
	apr.Quo(apr, window)
	val := apr.FloatString(ratioScale)
	return &val
}

package amm

// DepositResult is the outcome of a deposit: the debits owed by the
// depositor, the shares to mint, and the pool record after the deposit.
type DepositResult struct {
	DebitX  uint64
	DebitY  uint64
	MintLP  uint64
	Initial bool
	Before  Reserves
	After   Reserves
	Pool    PoolState
}

// SwapResult is the outcome of a swap. FeeDelta is accrued on the input
// asset's counter and remains in the input vault.
type SwapResult struct {
	AssetInIsX bool
	AmountIn   uint64
	AmountOut  uint64
	FeeDelta   uint64
	Before     Reserves
	After      Reserves
	Pool       PoolState
}

// WithdrawResult is the outcome of burning shares.
type WithdrawResult struct {
	BurnLP  uint64
	ReturnX uint64
	ReturnY uint64
	Before  Reserves
	After   Reserves
	Pool    PoolState
}

// Deposit sizes a liquidity deposit of at most maxX / maxY against the
// reserve snapshot. The first deposit into an empty pool takes both maxima in
// full and mints floor(sqrt(maxX*maxY)) shares.
func Deposit(pool PoolState, reserves Reserves, maxX, maxY uint64) (DepositResult, error) {
	if err := CheckUnlocked(pool); err != nil {
		return DepositResult{}, err
	}
	if err := CheckNonZero(maxX, ErrInvalidAmount); err != nil {
		return DepositResult{}, err
	}
	if err := CheckNonZero(maxY, ErrInvalidAmount); err != nil {
		return DepositResult{}, err
	}
	if err := CheckReserves(pool.LPSupply, reserves); err != nil {
		return DepositResult{}, err
	}

	var (
		debitX, debitY, mint uint64
		err                  error
	)
	initial := pool.LPSupply == 0
	if initial {
		mint, err = InitialMint(maxX, maxY)
		debitX, debitY = maxX, maxY
	} else {
		debitX, debitY, mint, err = ProportionalMint(pool.LPSupply, reserves.X, reserves.Y, maxX, maxY)
	}
	if err != nil {
		return DepositResult{}, err
	}
	if err := CheckNonZero(mint, ErrLPAmountZero); err != nil {
		return DepositResult{}, err
	}
	if err := CheckMaxBound(debitX, maxX); err != nil {
		return DepositResult{}, err
	}
	if err := CheckMaxBound(debitY, maxY); err != nil {
		return DepositResult{}, err
	}

	after := Reserves{}
	if after.X, err = checkedAdd(reserves.X, debitX); err != nil {
		return DepositResult{}, err
	}
	if after.Y, err = checkedAdd(reserves.Y, debitY); err != nil {
		return DepositResult{}, err
	}

	next := pool
	if next.LPSupply, err = checkedAdd(pool.LPSupply, mint); err != nil {
		return DepositResult{}, err
	}

	return DepositResult{
		DebitX:  debitX,
		DebitY:  debitY,
		MintLP:  mint,
		Initial: initial,
		Before:  reserves,
		After:   after,
		Pool:    next,
	}, nil
}

// Swap trades amountIn of the input asset (X when assetIsX) for the other
// asset and fails with ErrSlippageExceeded when the output is below
// amountOutMin.
func Swap(pool PoolState, reserves Reserves, amountIn, amountOutMin uint64, assetIsX bool) (SwapResult, error) {
	if err := CheckUnlocked(pool); err != nil {
		return SwapResult{}, err
	}
	if err := CheckNonZero(amountIn, ErrInvalidAmount); err != nil {
		return SwapResult{}, err
	}
	if err := CheckSwapReserves(reserves); err != nil {
		return SwapResult{}, err
	}
	if err := CheckReserves(pool.LPSupply, reserves); err != nil {
		return SwapResult{}, err
	}

	vaultIn, vaultOut := reserves.X, reserves.Y
	if !assetIsX {
		vaultIn, vaultOut = reserves.Y, reserves.X
	}

	amountOut, fee, err := SwapOutput(vaultIn, vaultOut, amountIn, pool.FeeBP)
	if err != nil {
		return SwapResult{}, err
	}
	if err := CheckMinBound(amountOut, amountOutMin); err != nil {
		return SwapResult{}, err
	}
	if err := CheckOutputRetained(amountOut, vaultOut); err != nil {
		return SwapResult{}, err
	}

	newIn, err := checkedAdd(vaultIn, amountIn)
	if err != nil {
		return SwapResult{}, err
	}
	newOut, err := checkedSub(vaultOut, amountOut)
	if err != nil {
		return SwapResult{}, err
	}
	after := Reserves{X: newIn, Y: newOut}
	if !assetIsX {
		after = Reserves{X: newOut, Y: newIn}
	}
	if err := CheckProductPreserved(reserves, after, assetIsX); err != nil {
		return SwapResult{}, err
	}

	next := pool
	if assetIsX {
		next.FeeCollectedX, err = checkedAdd(pool.FeeCollectedX, fee)
	} else {
		next.FeeCollectedY, err = checkedAdd(pool.FeeCollectedY, fee)
	}
	if err != nil {
		return SwapResult{}, err
	}

	return SwapResult{
		AssetInIsX: assetIsX,
		AmountIn:   amountIn,
		AmountOut:  amountOut,
		FeeDelta:   fee,
		Before:     reserves,
		After:      after,
		Pool:       next,
	}, nil
}

// Withdraw burns lpAmount shares for their pro-rata share of both reserves.
func Withdraw(pool PoolState, reserves Reserves, lpAmount uint64) (WithdrawResult, error) {
	if err := CheckUnlocked(pool); err != nil {
		return WithdrawResult{}, err
	}
	if err := CheckNonZero(lpAmount, ErrLPAmountZero); err != nil {
		return WithdrawResult{}, err
	}
	if err := CheckReserves(pool.LPSupply, reserves); err != nil {
		return WithdrawResult{}, err
	}

	returnX, returnY, err := WithdrawAmounts(pool.LPSupply, reserves.X, reserves.Y, lpAmount)
	if err != nil {
		return WithdrawResult{}, err
	}

	after := Reserves{}
	if after.X, err = checkedSub(reserves.X, returnX); err != nil {
		return WithdrawResult{}, err
	}
	if after.Y, err = checkedSub(reserves.Y, returnY); err != nil {
		return WithdrawResult{}, err
	}

	next := pool
	if next.LPSupply, err = checkedSub(pool.LPSupply, lpAmount); err != nil {
		return WithdrawResult{}, err
	}

	return WithdrawResult{
		BurnLP:  lpAmount,
		ReturnX: returnX,
		ReturnY: returnY,
		Before:  reserves,
		After:   after,
		Pool:    next,
	}, nil
}

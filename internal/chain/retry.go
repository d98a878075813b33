package chain

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
)

// JSON-RPC error codes that no retry can fix.
const (
	codeExecutionReverted = 3
	codeMethodNotFound    = -32601
	codeInvalidParams     = -32602
)

// retryable reports whether a failed read is worth repeating. Caller
// cancellation and deterministic node answers (a reverted eth_call, an
// unknown method, bad params) are final.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		switch rpcErr.ErrorCode() {
		case codeExecutionReverted, codeMethodNotFound, codeInvalidParams:
			return false
		}
	}
	return true
}

// withRetry runs fn until it succeeds, returns a final error, or maxRetries
// extra attempts are spent. The wait doubles after every attempt.
func withRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func(context.Context) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	wait := baseDelay
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			wait *= 2
		}

		if err = fn(ctx); err == nil || !retryable(err) {
			return err
		}
	}
	return err
}

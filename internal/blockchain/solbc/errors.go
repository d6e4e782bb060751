// internal/blockchain/solbc/errors.go
package solbc

import (
	"context"
	"errors"
	"strings"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrInvalidResponse = errors.New("invalid RPC response")
)

// Node side conditions that usually clear up on another attempt.
var retryableCodes = map[int]bool{
	-32004: true, // block not available
	-32005: true, // node is behind
	-32007: true, // slot skipped
	-32014: true, // block status not yet available
	-32016: true, // minimum context slot not reached
	429:    true,
}

// IsAccountNotFoundError reports whether err means the account does not exist.
func IsAccountNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAccountNotFound) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "could not find account") || strings.Contains(msg, "not found")
}

// classify maps well known RPC failures onto sentinel errors.
func classify(err error) error {
	if IsAccountNotFoundError(err) && !errors.Is(err, ErrAccountNotFound) {
		return errors.Join(ErrAccountNotFound, err)
	}
	return err
}

// IsRetryable reports whether another attempt could succeed. JSON-RPC errors
// are terminal unless the node flagged a transient condition; transport
// errors are retried.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled),
		errors.Is(err, ErrAccountNotFound),
		errors.Is(err, ErrInvalidResponse):
		return false
	case errors.Is(err, context.DeadlineExceeded):
		return true
	}
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		return retryableCodes[rpcErr.Code]
	}
	return true
}

// internal/arbitrage/errors.go
package arbitrage

import (
	"errors"
	"fmt"
)

// ErrorCode is a stable numeric failure reason. Values follow the Anchor custom
// error numbering so they line up with the on-chain program's codes.
type ErrorCode uint32

const (
	ErrRouteTooShort ErrorCode = 6000 + iota
	ErrRouteTooLong
	ErrInvalidMinProfit
	ErrSwapFailed
	ErrInsufficientProfit
	ErrSlippageExceeded
	ErrDivisionByZeroBalance
	ErrInvalidSlippage
	ErrInvalidStep
	ErrUnsupportedVenue
	ErrBalanceUnavailable
	ErrDuplicateRequest
)

var codeNames = map[ErrorCode]string{
	ErrRouteTooShort:         "RouteTooShort",
	ErrRouteTooLong:          "RouteTooLong",
	ErrInvalidMinProfit:      "InvalidMinProfit",
	ErrSwapFailed:            "SwapFailed",
	ErrInsufficientProfit:    "InsufficientProfit",
	ErrSlippageExceeded:      "SlippageExceeded",
	ErrDivisionByZeroBalance: "DivisionByZeroBalance",
	ErrInvalidSlippage:       "InvalidSlippage",
	ErrInvalidStep:           "InvalidStep",
	ErrUnsupportedVenue:      "UnsupportedVenue",
	ErrBalanceUnavailable:    "BalanceUnavailable",
	ErrDuplicateRequest:      "DuplicateRequest",
}

var codeMessages = map[ErrorCode]string{
	ErrRouteTooShort:         "route must have at least 3 steps",
	ErrRouteTooLong:          "route cannot exceed 6 steps",
	ErrInvalidMinProfit:      "invalid minimum profit specified",
	ErrSwapFailed:            "swap execution failed",
	ErrInsufficientProfit:    "insufficient profit achieved",
	ErrSlippageExceeded:      "slippage exceeded maximum",
	ErrDivisionByZeroBalance: "starting balance is zero",
	ErrInvalidSlippage:       "max slippage must not exceed 10000 bps",
	ErrInvalidStep:           "swap step input and output assets must differ",
	ErrUnsupportedVenue:      "no adapter registered for venue",
	ErrBalanceUnavailable:    "tracked balance could not be read",
	ErrDuplicateRequest:      "request was already submitted",
}

// Name returns the symbolic name of the code, e.g. "SwapFailed".
func (c ErrorCode) Name() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return fmt.Sprintf("ErrorCode(%d)", uint32(c))
}

func (c ErrorCode) Error() string {
	if m, ok := codeMessages[c]; ok {
		return m
	}
	return c.Name()
}

// IsValidation reports whether the code is raised before any balance is read.
func (c ErrorCode) IsValidation() bool {
	switch c {
	case ErrRouteTooShort, ErrRouteTooLong, ErrInvalidMinProfit,
		ErrInvalidSlippage, ErrInvalidStep, ErrUnsupportedVenue:
		return true
	}
	return false
}

// NoStep marks an Error that is not tied to a particular route step.
const NoStep = -1

// Error is the tagged failure returned by the executor. It always carries a
// code; Step, Venue and Cause are set when known.
type Error struct {
	Code  ErrorCode
	Step  int
	Venue Venue
	Cause error
}

func newError(code ErrorCode, cause error) *Error {
	return &Error{Code: code, Step: NoStep, Cause: cause}
}

func stepError(code ErrorCode, index int, venue Venue, cause error) *Error {
	return &Error{Code: code, Step: index, Venue: venue, Cause: cause}
}

func (e *Error) Error() string {
	msg := e.Code.Error()
	if e.Step != NoStep {
		msg = fmt.Sprintf("step %d (%s): %s", e.Step+1, e.Venue, msg)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is makes errors.Is(err, ErrSwapFailed) work for wrapped executor errors.
func (e *Error) Is(target error) bool {
	code, ok := target.(ErrorCode)
	return ok && code == e.Code
}

// CodeOf extracts the error code from err, if it carries one.
func CodeOf(err error) (ErrorCode, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	var code ErrorCode
	if errors.As(err, &code) {
		return code, true
	}
	return 0, false
}

// NewError builds a tagged error for callers outside the executor, such as the
// submission service.
func NewError(code ErrorCode, cause error) error {
	return newError(code, cause)
}

// internal/arbitrage/math.go
package arbitrage

import (
	"math"

	"github.com/holiman/uint256"
)

// minOutputDivisor folds the rate scale and the bps scale into one divisor.
const minOutputDivisor = RateScale * BpsDenominator

// MinOutput returns floor(amount * rate * (10000 - slippageBps) / 10_000_000).
// The product is formed in full before dividing; intermediates are 256-bit so
// nothing wraps, and the result saturates at MaxUint64.
func MinOutput(amount, rate uint64, slippageBps uint16) uint64 {
	if slippageBps >= BpsDenominator {
		return 0
	}
	z := new(uint256.Int).Mul(uint256.NewInt(amount), uint256.NewInt(rate))
	z.Mul(z, uint256.NewInt(BpsDenominator-uint64(slippageBps)))
	z.Div(z, uint256.NewInt(minOutputDivisor))
	return saturate(z)
}

// ExpectedOutput returns floor(amount * rate / 1000).
func ExpectedOutput(amount, rate uint64) uint64 {
	z := new(uint256.Int).Mul(uint256.NewInt(amount), uint256.NewInt(rate))
	z.Div(z, uint256.NewInt(RateScale))
	return saturate(z)
}

// RealizedSlippageBps is the smallest slippage tolerance under which
// MinOutput(amount, rate, tolerance) <= output. It is measured against the
// unrounded amount*rate product, so an output that meets
// MinOutput(amount, rate, max) never measures above max.
func RealizedSlippageBps(amount, rate, output uint64) uint16 {
	product := new(uint256.Int).Mul(uint256.NewInt(amount), uint256.NewInt(rate))
	if product.IsZero() {
		return 0
	}
	// MinOutput(.., s) <= output  <=>  s > 10000 - (output+1)*10^7 / product.
	z := new(uint256.Int).AddUint64(uint256.NewInt(output), 1)
	z.Mul(z, uint256.NewInt(minOutputDivisor))
	q, rem := new(uint256.Int).DivMod(z, product, new(uint256.Int))
	if !rem.IsZero() {
		q.AddUint64(q, 1)
	}
	if !q.IsUint64() || q.Uint64() > BpsDenominator {
		return 0
	}
	return uint16(BpsDenominator - q.Uint64() + 1)
}

// ProfitBps returns profit * 10000 / start, saturating at MaxUint64.
// start must be non-zero.
func ProfitBps(profit, start uint64) uint64 {
	z := new(uint256.Int).Mul(uint256.NewInt(profit), uint256.NewInt(BpsDenominator))
	z.Div(z, uint256.NewInt(start))
	return saturate(z)
}

// SaturatingSub returns a - b, or 0 when b > a.
func SaturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

func saturate(z *uint256.Int) uint64 {
	if !z.IsUint64() {
		return math.MaxUint64
	}
	return z.Uint64()
}

package report

import (
	"errors"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"

	"github.com/rovshanmuradov/graph-arbitrage/internal/arbitrage"
)

func TestAmount(t *testing.T) {
	tests := []struct {
		decimals int32
		raw      uint64
		want     string
	}{
		{6, 101_505_000, "101.505000"},
		{6, 0, "0.000000"},
		{9, 1, "0.000000001"},
		{0, 42, "42"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NewRenderer(tt.decimals).Amount(tt.raw))
	}
}

func TestResult(t *testing.T) {
	r := NewRenderer(6)
	req := &arbitrage.ExecutionRequest{ID: "r-1", MinProfitBps: 10}
	res := &arbitrage.ExecutionResult{
		RequestID:   "r-1",
		StartAmount: 100_000_000,
		FinalAmount: 101_505_000,
		Profit:      1_505_000,
		ProfitBps:   150,
		Steps: []arbitrage.StepReport{
			{Index: 0, Venue: arbitrage.VenueOrca, InputAmount: 100_000_000, MinOutput: 100_000_000, OutputAmount: 101_000_000, SlippageBps: 3},
		},
	}

	out := r.Result(req, res)
	assert.Contains(t, out, "r-1")
	assert.Contains(t, out, "1.505000 (1.50%, 150 bps)")
	assert.Contains(t, out, "orca")
	assert.Contains(t, out, "101.000000")
}

func TestFailure(t *testing.T) {
	r := NewRenderer(6)
	err := arbitrage.NewError(arbitrage.ErrInsufficientProfit, errors.New("profit 5 bps below minimum 10"))

	out := r.Failure(&arbitrage.ExecutionRequest{ID: "r-2"}, err)
	assert.Contains(t, out, "InsufficientProfit (6004)")
	assert.Contains(t, out, "r-2")
	assert.NotContains(t, out, "Step")
}

func TestValidationFlagsOpenRoutes(t *testing.T) {
	r := NewRenderer(6)
	usdc := solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	sol := solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
	route := arbitrage.Route{
		{InputMint: usdc, OutputMint: sol, Venue: arbitrage.VenueJupiter, ExpectedRate: 1000},
		{InputMint: sol, OutputMint: usdc, Venue: arbitrage.VenueOrca, ExpectedRate: 1000},
	}

	out := r.Validation(&arbitrage.ExecutionRequest{ID: "v-1", Route: route})
	assert.Contains(t, out, "v-1")
	assert.Contains(t, out, "yes")

	out = r.Validation(&arbitrage.ExecutionRequest{ID: "v-2", Route: route[:1]})
	assert.Contains(t, out, "route ends in a different asset")
}

func TestTableWidths(t *testing.T) {
	tbl := NewTable(DefaultStyles(), Column{Header: "a"}, Column{Header: "bb", Width: 2})
	tbl.AddRow("long cell", "truncated")

	lines := strings.Split(tbl.View(), "\n")
	assert.Len(t, lines, 3)
	assert.Contains(t, lines[2], "long cell")
	assert.NotContains(t, lines[2], "truncated")
}

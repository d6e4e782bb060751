// internal/arbitrage/types.go
package arbitrage

import (
	"context"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

const (
	MinRouteSteps = 3
	MaxRouteSteps = 6

	// BpsDenominator is 100% expressed in basis points.
	BpsDenominator = 10_000
	// RateScale is the fixed-point scale of SwapStep.ExpectedRate.
	RateScale = 1_000
)

// Venue selects the exchange a step is routed through.
type Venue string

const (
	VenueJupiter Venue = "jupiter"
	VenueRaydium Venue = "raydium"
	VenueOrca    Venue = "orca"
)

// Venues lists every venue known to the executor.
var Venues = []Venue{VenueJupiter, VenueRaydium, VenueOrca}

// ParseVenue normalizes a venue name.
func ParseVenue(name string) (Venue, error) {
	v := Venue(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Venues {
		if v == known {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown venue %q", name)
}

func (v Venue) String() string {
	return string(v)
}

// SwapStep is one hop of a route.
type SwapStep struct {
	InputMint  solana.PublicKey
	OutputMint solana.PublicKey
	Venue      Venue
	// ProgramID is the external program the adapter invokes; the executor never
	// looks at it.
	ProgramID solana.PublicKey
	// ExpectedRate is output-per-input scaled by RateScale (1050 = 1.05x).
	ExpectedRate uint64
	// RouteData is venue specific and passed through unparsed.
	RouteData []byte
}

// Route is an ordered sequence of swap steps.
type Route []SwapStep

// IsCycle reports whether the route ends in the asset it starts with.
// The executor does not require it; it only measures the tracked balance.
func (r Route) IsCycle() bool {
	if len(r) == 0 {
		return false
	}
	return r[0].InputMint.Equals(r[len(r)-1].OutputMint)
}

// String renders the route as "A -> B -> C".
func (r Route) String() string {
	if len(r) == 0 {
		return ""
	}
	parts := make([]string, 0, len(r)+1)
	parts = append(parts, shortKey(r[0].InputMint))
	for _, step := range r {
		parts = append(parts, shortKey(step.OutputMint))
	}
	return strings.Join(parts, " -> ")
}

func shortKey(k solana.PublicKey) string {
	s := k.String()
	if len(s) <= 8 {
		return s
	}
	return s[:4] + ".." + s[len(s)-4:]
}

// ExecutionRequest is consumed once by Executor.Execute.
type ExecutionRequest struct {
	// ID, Owner and TrackedAccount are audit metadata only.
	ID             string
	Owner          solana.PublicKey
	TrackedAccount solana.PublicKey

	Route          Route
	MinProfitBps   uint16
	MaxSlippageBps uint16
}

// SwapOutcome is what an adapter reports for a single step.
type SwapOutcome struct {
	Success      bool
	OutputAmount uint64
	SlippageBps  uint16
}

// StepReport is the audit view of one executed step.
type StepReport struct {
	Index        int
	Venue        Venue
	InputMint    solana.PublicKey
	OutputMint   solana.PublicKey
	InputAmount  uint64
	MinOutput    uint64
	OutputAmount uint64
	SlippageBps  uint16
}

// ExecutionResult is produced only when the whole route succeeded.
type ExecutionResult struct {
	RequestID     string
	Owner         solana.PublicKey
	StartAmount   uint64
	FinalAmount   uint64
	Profit        uint64
	ProfitBps     uint64
	StepsExecuted uint8
	Steps         []StepReport
}

// BalanceReader reads the authoritative balance of the tracked account.
type BalanceReader interface {
	Balance(ctx context.Context) (uint64, error)
}

// BalanceReaderFunc adapts a function to BalanceReader.
type BalanceReaderFunc func(ctx context.Context) (uint64, error)

func (f BalanceReaderFunc) Balance(ctx context.Context) (uint64, error) {
	return f(ctx)
}

// ExchangeAdapter converts an input amount into an output amount on one venue.
// A swap is never partially applied: either the whole input is converted and
// Success is true, or nothing moved.
type ExchangeAdapter interface {
	Venue() Venue
	Swap(ctx context.Context, inputAmount, minOutput uint64, step SwapStep) (SwapOutcome, error)
}

// AuditSink receives the record of a successful execution.
type AuditSink interface {
	RecordExecution(ctx context.Context, req *ExecutionRequest, res *ExecutionResult) error
}

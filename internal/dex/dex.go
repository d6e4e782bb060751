// =============================
// File: internal/dex/dex.go
// =============================
package dex

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/graph-arbitrage/internal/arbitrage"
)

// Invoker performs a synchronous call into an external venue program. On chain
// this is a cross-program invocation; off chain it is whatever substrate hosts
// the atomic unit the route runs in.
type Invoker interface {
	Invoke(ctx context.Context, ix solana.Instruction) error
}

// InvokerFunc adapts a function to Invoker.
type InvokerFunc func(ctx context.Context, ix solana.Instruction) error

func (f InvokerFunc) Invoke(ctx context.Context, ix solana.Instruction) error {
	return f(ctx, ix)
}

// TokenBalances reads SPL token account balances.
type TokenBalances interface {
	TokenBalance(ctx context.Context, account solana.PublicKey) (uint64, error)
}

// Well-known mainnet program IDs.
var (
	JupiterProgramID = solana.MustPublicKeyFromBase58("JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4")
	RaydiumProgramID = solana.MustPublicKeyFromBase58("675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8")
	OrcaProgramID    = solana.MustPublicKeyFromBase58("whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc")
)

// Programs maps venues to the program a step defaults to.
type Programs map[arbitrage.Venue]solana.PublicKey

// DefaultPrograms returns the mainnet program of every venue.
func DefaultPrograms() Programs {
	return Programs{
		arbitrage.VenueJupiter: JupiterProgramID,
		arbitrage.VenueRaydium: RaydiumProgramID,
		arbitrage.VenueOrca:    OrcaProgramID,
	}
}

// ParsePrograms builds Programs from venue name -> base58 program ID, starting
// from the defaults.
func ParsePrograms(raw map[string]string) (Programs, error) {
	p := DefaultPrograms()
	for name, id := range raw {
		venue, err := arbitrage.ParseVenue(name)
		if err != nil {
			return nil, err
		}
		key, err := solana.PublicKeyFromBase58(id)
		if err != nil {
			return nil, fmt.Errorf("invalid program id for %s: %w", venue, err)
		}
		p[venue] = key
	}
	return p, nil
}

// VenueOf resolves the venue a program ID belongs to.
func (p Programs) VenueOf(programID solana.PublicKey) (arbitrage.Venue, bool) {
	for venue, id := range p {
		if id.Equals(programID) {
			return venue, true
		}
	}
	return "", false
}

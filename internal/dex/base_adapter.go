package dex

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/graph-arbitrage/internal/arbitrage"
	"github.com/rovshanmuradov/graph-arbitrage/internal/wallet"
)

// swapAccounts are the accounts every venue instruction starts with.
type swapAccounts struct {
	Source     solana.PublicKey
	Dest       solana.PublicKey
	InputMint  solana.PublicKey
	OutputMint solana.PublicKey
	Owner      solana.PublicKey
}

func (a swapAccounts) metas() []*solana.AccountMeta {
	return []*solana.AccountMeta{
		{PublicKey: a.Source, IsSigner: false, IsWritable: true},
		{PublicKey: a.Dest, IsSigner: false, IsWritable: true},
		{PublicKey: a.InputMint, IsSigner: false, IsWritable: false},
		{PublicKey: a.OutputMint, IsSigner: false, IsWritable: false},
		{PublicKey: a.Owner, IsSigner: true, IsWritable: false},
	}
}

// instructionBuilder encodes one venue's swap instruction.
type instructionBuilder func(accts swapAccounts, input, minOutput uint64, step arbitrage.SwapStep) (solana.Instruction, error)

// baseAdapter holds the logic shared by all venue adapters: derive the owner's
// token accounts, invoke the venue and measure what actually arrived.
type baseAdapter struct {
	venue    arbitrage.Venue
	name     string
	owner    *wallet.Wallet
	invoker  Invoker
	balances TokenBalances
	logger   *zap.Logger
	build    instructionBuilder
}

func (b *baseAdapter) Venue() arbitrage.Venue {
	return b.venue
}

// Swap converts input on the venue. The output is the balance delta of the
// owner's destination account, never the venue's own claim.
func (b *baseAdapter) Swap(ctx context.Context, input, minOutput uint64, step arbitrage.SwapStep) (arbitrage.SwapOutcome, error) {
	if step.Venue != b.venue {
		return arbitrage.SwapOutcome{}, fmt.Errorf("%s adapter cannot route a %s step", b.name, step.Venue)
	}

	accts, err := b.accounts(step)
	if err != nil {
		return arbitrage.SwapOutcome{}, err
	}

	ix, err := b.build(accts, input, minOutput, step)
	if err != nil {
		return arbitrage.SwapOutcome{}, fmt.Errorf("failed to build %s instruction: %w", b.name, err)
	}

	before, err := b.balances.TokenBalance(ctx, accts.Dest)
	if err != nil {
		return arbitrage.SwapOutcome{}, fmt.Errorf("failed to read destination balance: %w", err)
	}

	b.logger.Debug("Invoking venue program",
		zap.String("program_id", step.ProgramID.String()),
		zap.Uint64("input_amount", input),
		zap.Uint64("min_output", minOutput),
		zap.Int("route_data_len", len(step.RouteData)))

	if err := b.invoker.Invoke(ctx, ix); err != nil {
		return arbitrage.SwapOutcome{}, fmt.Errorf("%s swap failed: %w", b.name, err)
	}

	after, err := b.balances.TokenBalance(ctx, accts.Dest)
	if err != nil {
		return arbitrage.SwapOutcome{}, fmt.Errorf("failed to read destination balance: %w", err)
	}

	output := arbitrage.SaturatingSub(after, before)
	return arbitrage.SwapOutcome{
		Success:      output >= minOutput,
		OutputAmount: output,
		SlippageBps:  arbitrage.RealizedSlippageBps(input, step.ExpectedRate, output),
	}, nil
}

func (b *baseAdapter) accounts(step arbitrage.SwapStep) (swapAccounts, error) {
	src, err := b.owner.GetATA(step.InputMint)
	if err != nil {
		return swapAccounts{}, err
	}
	dst, err := b.owner.GetATA(step.OutputMint)
	if err != nil {
		return swapAccounts{}, err
	}
	return swapAccounts{
		Source:     src,
		Dest:       dst,
		InputMint:  step.InputMint,
		OutputMint: step.OutputMint,
		Owner:      b.owner.PublicKey,
	}, nil
}

// splitKeys decodes a concatenation of 32-byte public keys.
func splitKeys(data []byte) ([]solana.PublicKey, error) {
	if len(data)%solana.PublicKeyLength != 0 {
		return nil, fmt.Errorf("route data length %d is not a multiple of %d", len(data), solana.PublicKeyLength)
	}
	keys := make([]solana.PublicKey, 0, len(data)/solana.PublicKeyLength)
	for off := 0; off < len(data); off += solana.PublicKeyLength {
		keys = append(keys, solana.PublicKeyFromBytes(data[off:off+solana.PublicKeyLength]))
	}
	return keys, nil
}

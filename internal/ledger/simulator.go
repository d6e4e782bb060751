// internal/ledger/simulator.go
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/graph-arbitrage/internal/arbitrage"
	"github.com/rovshanmuradov/graph-arbitrage/internal/dex"
)

// ErrNoTransaction is returned when a venue is invoked outside an atomic unit.
var ErrNoTransaction = errors.New("no ledger transaction bound to context")

// SlippageToleranceExceeded mirrors the custom program error venues raise when
// the fill is below the instruction's minimum output.
const SlippageToleranceExceeded = 0x1771

// Quote is the simulated price of a pair: output per input scaled by 1000,
// minus a venue fee.
type Quote struct {
	Rate   uint64
	FeeBps uint16
}

// Fill returns the output for amount.
func (q Quote) Fill(amount uint64) uint64 {
	return arbitrage.MinOutput(amount, q.Rate, q.FeeBps)
}

type pair struct {
	in, out solana.PublicKey
}

// RateBook holds simulated quotes per directed pair.
type RateBook struct {
	mu     sync.RWMutex
	quotes map[pair]Quote
}

// NewRateBook creates an empty book.
func NewRateBook() *RateBook {
	return &RateBook{quotes: make(map[pair]Quote)}
}

// Set stores the quote for in -> out.
func (b *RateBook) Set(in, out solana.PublicKey, q Quote) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.quotes[pair{in, out}] = q
}

// Get returns the quote for in -> out.
func (b *RateBook) Get(in, out solana.PublicKey) (Quote, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	q, ok := b.quotes[pair{in, out}]
	return q, ok
}

// Simulator executes venue swap instructions against the ledger transaction
// bound to the context. It implements dex.Invoker.
type Simulator struct {
	programs dex.Programs
	rates    *RateBook
	logger   *zap.Logger
}

// NewSimulator creates a simulator that recognises programs.
func NewSimulator(programs dex.Programs, rates *RateBook, logger *zap.Logger) *Simulator {
	return &Simulator{
		programs: programs,
		rates:    rates,
		logger:   logger.Named("simulator"),
	}
}

// Invoke decodes ix, fills it at the book rate and moves funds between the
// owner's token accounts. A fill below the minimum output fails the whole
// instruction without moving anything.
func (s *Simulator) Invoke(ctx context.Context, ix solana.Instruction) error {
	tx, ok := TxFromContext(ctx)
	if !ok {
		return ErrNoTransaction
	}

	venue, ok := s.programs.VenueOf(ix.ProgramID())
	if !ok {
		return fmt.Errorf("program %s is not a known venue", ix.ProgramID())
	}
	sw, err := dex.DecodeSwapInstruction(venue, ix)
	if err != nil {
		return err
	}
	if err := checkOwnedAccount(sw.Owner, sw.InputMint, sw.Source); err != nil {
		return err
	}
	if err := checkOwnedAccount(sw.Owner, sw.OutputMint, sw.Dest); err != nil {
		return err
	}

	quote, ok := s.rates.Get(sw.InputMint, sw.OutputMint)
	if !ok {
		return fmt.Errorf("no liquidity for %s -> %s", sw.InputMint, sw.OutputMint)
	}
	out := quote.Fill(sw.AmountIn)
	if out < sw.MinOutput {
		return fmt.Errorf("custom program error: 0x%x (slippage tolerance exceeded: out %d < min %d)",
			SlippageToleranceExceeded, out, sw.MinOutput)
	}

	if err := tx.Debit(sw.Source, sw.AmountIn); err != nil {
		return err
	}
	if err := tx.Credit(sw.Dest, out); err != nil {
		return err
	}

	s.logger.Debug("Simulated swap",
		zap.String("venue", string(venue)),
		zap.Uint64("amount_in", sw.AmountIn),
		zap.Uint64("amount_out", out))
	return nil
}

func checkOwnedAccount(owner, mint, account solana.PublicKey) error {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return err
	}
	if !ata.Equals(account) {
		return fmt.Errorf("account %s is not the %s token account of %s", account, mint, owner)
	}
	return nil
}

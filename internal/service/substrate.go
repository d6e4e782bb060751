// internal/service/substrate.go
package service

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/graph-arbitrage/internal/arbitrage"
	"github.com/rovshanmuradov/graph-arbitrage/internal/ledger"
)

// Unit is one all-or-nothing unit of work on the hosting substrate. Effects
// made through Context become visible only on Commit.
type Unit interface {
	Context() context.Context
	Commit() error
	Rollback() error
}

// Substrate hosts executions: it opens units and reads tracked balances.
type Substrate interface {
	Begin(ctx context.Context) (Unit, error)
	BalanceReader(account solana.PublicKey) arbitrage.BalanceReader
}

// LedgerSubstrate runs executions on an in-process ledger.
type LedgerSubstrate struct {
	Ledger *ledger.Ledger
}

func (s LedgerSubstrate) Begin(ctx context.Context) (Unit, error) {
	tx := s.Ledger.Begin()
	return &ledgerUnit{ctx: ledger.WithTx(ctx, tx), tx: tx}, nil
}

func (s LedgerSubstrate) BalanceReader(account solana.PublicKey) arbitrage.BalanceReader {
	return ledger.AccountReader{Ledger: s.Ledger, Account: account}
}

type ledgerUnit struct {
	ctx context.Context
	tx  *ledger.Tx
}

func (u *ledgerUnit) Context() context.Context { return u.ctx }
func (u *ledgerUnit) Commit() error            { return u.tx.Commit() }
func (u *ledgerUnit) Rollback() error          { return u.tx.Rollback() }

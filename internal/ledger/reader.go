package ledger

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// Balances reads token balances through the transaction bound to ctx, or the
// committed state when there is none.
type Balances struct {
	Ledger *Ledger
}

// TokenBalance implements dex.TokenBalances.
func (b Balances) TokenBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	if tx, ok := TxFromContext(ctx); ok {
		return tx.Balance(account)
	}
	return b.Ledger.BalanceOf(account), nil
}

// AccountReader reads the balance of one tracked account. It implements
// arbitrage.BalanceReader.
type AccountReader struct {
	Ledger  *Ledger
	Account solana.PublicKey
}

func (r AccountReader) Balance(ctx context.Context) (uint64, error) {
	return Balances{Ledger: r.Ledger}.TokenBalance(ctx, r.Account)
}

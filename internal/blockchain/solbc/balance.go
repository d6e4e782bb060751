// internal/blockchain/solbc/balance.go
package solbc

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// TokenAccountReader reads the live balance of one SPL token account. It
// implements arbitrage.BalanceReader.
type TokenAccountReader struct {
	Client  *Client
	Account solana.PublicKey
}

func (r TokenAccountReader) Balance(ctx context.Context) (uint64, error) {
	amount, err := r.Client.GetTokenAccountBalance(ctx, r.Account)
	if err != nil {
		return 0, err
	}
	return amount.Amount, nil
}

// TokenBalances reads any SPL token account. It implements dex.TokenBalances.
type TokenBalances struct {
	Client *Client
}

func (b TokenBalances) TokenBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	return TokenAccountReader{Client: b.Client, Account: account}.Balance(ctx)
}

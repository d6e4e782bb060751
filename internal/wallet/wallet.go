// ==================================
// File: internal/wallet/wallet.go
// ==================================
package wallet

import (
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// Wallet is the owner of the token accounts a route moves funds between.
// PrivateKey is empty for watch-only wallets.
type Wallet struct {
	PrivateKey solana.PrivateKey
	PublicKey  solana.PublicKey

	ataCache sync.Map // mint -> associated token account
}

// NewWallet creates a wallet from a base58-encoded 64 byte private key.
func NewWallet(privateKeyBase58 string) (*Wallet, error) {
	privateKeyBytes, err := base58.Decode(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}
	if len(privateKeyBytes) != 64 {
		return nil, fmt.Errorf("invalid private key length: expected 64 bytes, got %d", len(privateKeyBytes))
	}
	privateKey := solana.PrivateKey(privateKeyBytes)
	return &Wallet{
		PrivateKey: privateKey,
		PublicKey:  privateKey.PublicKey(),
	}, nil
}

// NewWatchWallet creates a wallet that can derive accounts but not sign.
func NewWatchWallet(owner solana.PublicKey) *Wallet {
	return &Wallet{PublicKey: owner}
}

// Generate creates a wallet with a fresh random key.
func Generate() (*Wallet, error) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return &Wallet{PrivateKey: key, PublicKey: key.PublicKey()}, nil
}

// CanSign reports whether the wallet holds a private key.
func (w *Wallet) CanSign() bool {
	return len(w.PrivateKey) > 0
}

// GetATA returns the associated token account of the wallet for mint.
func (w *Wallet) GetATA(mint solana.PublicKey) (solana.PublicKey, error) {
	if ata, ok := w.ataCache.Load(mint); ok {
		return ata.(solana.PublicKey), nil
	}
	ata, _, err := solana.FindAssociatedTokenAddress(w.PublicKey, mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive ATA for mint %s: %w", mint, err)
	}
	w.ataCache.Store(mint, ata)
	return ata, nil
}

// String returns the wallet public key.
func (w *Wallet) String() string {
	return w.PublicKey.String()
}

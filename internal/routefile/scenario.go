// internal/routefile/scenario.go
package routefile

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/graph-arbitrage/internal/dex"
	"github.com/rovshanmuradov/graph-arbitrage/internal/ledger"
	"github.com/rovshanmuradov/graph-arbitrage/internal/wallet"
)

// Scenario is a request plus the simulated world it runs against.
type Scenario struct {
	// OwnerKey is a base58 private key. Without it the owner is watch-only, or
	// freshly generated when the request names no owner either.
	OwnerKey string    `yaml:"owner_key,omitempty"`
	Request  Request   `yaml:"request"`
	Balances []Balance `yaml:"balances"`
	Rates    []Rate    `yaml:"rates"`
}

// Balance seeds one account: either the owner's ATA for Mint or Account.
type Balance struct {
	Mint    string `yaml:"mint,omitempty"`
	Account string `yaml:"account,omitempty"`
	Amount  uint64 `yaml:"amount"`
}

// Rate is one simulator quote. Rate is output per input scaled by 1000.
type Rate struct {
	InputMint  string `yaml:"input_mint"`
	OutputMint string `yaml:"output_mint"`
	Rate       uint64 `yaml:"rate"`
	FeeBps     uint16 `yaml:"fee_bps,omitempty"`
}

// ParseScenario parses a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	if err := decodeStrict(data, &s); err != nil {
		return nil, err
	}
	if len(s.Request.Route) == 0 {
		return nil, errors.New("scenario has no route steps")
	}
	return &s, nil
}

// LoadScenario reads a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(data)
}

// Wallet resolves the scenario owner.
func (s *Scenario) Wallet() (*wallet.Wallet, error) {
	switch {
	case s.OwnerKey != "":
		w, err := wallet.NewWallet(s.OwnerKey)
		if err != nil {
			return nil, err
		}
		if s.Request.Owner != "" && s.Request.Owner != w.PublicKey.String() {
			return nil, fmt.Errorf("owner_key does not match request owner %s", s.Request.Owner)
		}
		return w, nil
	case s.Request.Owner != "":
		owner, err := solana.PublicKeyFromBase58(s.Request.Owner)
		if err != nil {
			return nil, fmt.Errorf("invalid owner: %w", err)
		}
		return wallet.NewWatchWallet(owner), nil
	default:
		return wallet.Generate()
	}
}

// Seed deposits the scenario balances into l and loads its quotes into rates.
func (s *Scenario) Seed(l *ledger.Ledger, rates *ledger.RateBook, owner *wallet.Wallet) error {
	for i, b := range s.Balances {
		account, err := b.account(owner)
		if err != nil {
			return fmt.Errorf("balance %d: %w", i+1, err)
		}
		if err := l.Deposit(account, b.Amount); err != nil {
			return fmt.Errorf("balance %d: %w", i+1, err)
		}
	}
	for i, r := range s.Rates {
		in, err := solana.PublicKeyFromBase58(r.InputMint)
		if err != nil {
			return fmt.Errorf("rate %d: invalid input_mint: %w", i+1, err)
		}
		out, err := solana.PublicKeyFromBase58(r.OutputMint)
		if err != nil {
			return fmt.Errorf("rate %d: invalid output_mint: %w", i+1, err)
		}
		rates.Set(in, out, ledger.Quote{Rate: r.Rate, FeeBps: r.FeeBps})
	}
	return nil
}

// Refresh replaces every seeded amount with the balance src reports for the
// same account, so a simulation starts from live holdings.
func (s *Scenario) Refresh(ctx context.Context, owner *wallet.Wallet, src dex.TokenBalances) error {
	for i := range s.Balances {
		account, err := s.Balances[i].account(owner)
		if err != nil {
			return fmt.Errorf("balance %d: %w", i+1, err)
		}
		amount, err := src.TokenBalance(ctx, account)
		if err != nil {
			return fmt.Errorf("balance %d: failed to read %s: %w", i+1, account, err)
		}
		s.Balances[i].Amount = amount
	}
	return nil
}

func (b Balance) account(owner *wallet.Wallet) (solana.PublicKey, error) {
	switch {
	case b.Account != "":
		return solana.PublicKeyFromBase58(b.Account)
	case b.Mint != "":
		mint, err := solana.PublicKeyFromBase58(b.Mint)
		if err != nil {
			return solana.PublicKey{}, fmt.Errorf("invalid mint: %w", err)
		}
		return owner.GetATA(mint)
	default:
		return solana.PublicKey{}, errors.New("mint or account is required")
	}
}

// internal/ledger/ledger.go
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrOverflow          = errors.New("balance overflow")
	ErrTxDone            = errors.New("transaction already committed or rolled back")
	ErrConflict          = errors.New("transaction conflict")
)

type entry struct {
	amount  uint64
	version uint64
}

// Ledger is an in-memory token account store with all-or-nothing
// transactions. It stands in for the custody substrate a route executes on.
type Ledger struct {
	mu       sync.RWMutex
	accounts map[solana.PublicKey]*entry
	logger   *zap.Logger
}

// New creates an empty ledger.
func New(logger *zap.Logger) *Ledger {
	return &Ledger{
		accounts: make(map[solana.PublicKey]*entry),
		logger:   logger.Named("ledger"),
	}
}

// Deposit credits account outside any transaction. Used for seeding.
func (l *Ledger) Deposit(account solana.PublicKey, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.accounts[account]
	if e == nil {
		e = &entry{}
		l.accounts[account] = e
	}
	if e.amount > math.MaxUint64-amount {
		return ErrOverflow
	}
	e.amount += amount
	e.version++
	return nil
}

// BalanceOf returns the committed balance of account.
func (l *Ledger) BalanceOf(account solana.PublicKey) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if e := l.accounts[account]; e != nil {
		return e.amount
	}
	return 0
}

// Snapshot copies every committed balance.
func (l *Ledger) Snapshot() map[solana.PublicKey]uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[solana.PublicKey]uint64, len(l.accounts))
	for k, e := range l.accounts {
		out[k] = e.amount
	}
	return out
}

func (l *Ledger) read(account solana.PublicKey) (uint64, uint64) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if e := l.accounts[account]; e != nil {
		return e.amount, e.version
	}
	return 0, 0
}

// Begin opens a transaction. Writes stay private to it until Commit.
func (l *Ledger) Begin() *Tx {
	return &Tx{
		ledger:  l,
		reads:   make(map[solana.PublicKey]uint64),
		pending: make(map[solana.PublicKey]uint64),
	}
}

// Atomically runs fn inside a transaction bound to ctx. Any error or panic
// rolls every write back; otherwise the writes commit together.
func (l *Ledger) Atomically(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	tx := l.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(WithTx(ctx, tx)); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Tx is a ledger transaction. It is not safe for concurrent use; a route
// executes its steps sequentially.
type Tx struct {
	ledger  *Ledger
	reads   map[solana.PublicKey]uint64 // account -> version seen
	pending map[solana.PublicKey]uint64
	done    bool
}

// Balance returns the balance of account as seen by this transaction.
func (tx *Tx) Balance(account solana.PublicKey) (uint64, error) {
	if tx.done {
		return 0, ErrTxDone
	}
	return tx.balance(account), nil
}

func (tx *Tx) balance(account solana.PublicKey) uint64 {
	if v, ok := tx.pending[account]; ok {
		return v
	}
	amount, version := tx.ledger.read(account)
	if _, seen := tx.reads[account]; !seen {
		tx.reads[account] = version
	}
	return amount
}

// Credit adds amount to account.
func (tx *Tx) Credit(account solana.PublicKey, amount uint64) error {
	if tx.done {
		return ErrTxDone
	}
	cur := tx.balance(account)
	if cur > math.MaxUint64-amount {
		return fmt.Errorf("credit %s: %w", account, ErrOverflow)
	}
	tx.pending[account] = cur + amount
	return nil
}

// Debit removes amount from account.
func (tx *Tx) Debit(account solana.PublicKey, amount uint64) error {
	if tx.done {
		return ErrTxDone
	}
	cur := tx.balance(account)
	if cur < amount {
		return fmt.Errorf("debit %d from %s holding %d: %w", amount, account, cur, ErrInsufficientFunds)
	}
	tx.pending[account] = cur - amount
	return nil
}

// Transfer moves amount between two accounts.
func (tx *Tx) Transfer(from, to solana.PublicKey, amount uint64) error {
	if err := tx.Debit(from, amount); err != nil {
		return err
	}
	return tx.Credit(to, amount)
}

// Commit applies every write. It fails with ErrConflict when an account this
// transaction read was changed by someone else in the meantime.
func (tx *Tx) Commit() error {
	if tx.done {
		return ErrTxDone
	}
	tx.done = true

	l := tx.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	for account, seen := range tx.reads {
		var current uint64
		if e := l.accounts[account]; e != nil {
			current = e.version
		}
		if current != seen {
			return fmt.Errorf("account %s: %w", account, ErrConflict)
		}
	}
	for account, amount := range tx.pending {
		e := l.accounts[account]
		if e == nil {
			e = &entry{}
			l.accounts[account] = e
		}
		e.amount = amount
		e.version++
	}
	l.logger.Debug("Transaction committed", zap.Int("writes", len(tx.pending)))
	return nil
}

// Rollback discards every write. Rolling back twice is harmless.
func (tx *Tx) Rollback() error {
	if tx.done {
		return nil
	}
	tx.done = true
	tx.ledger.logger.Debug("Transaction rolled back", zap.Int("discarded_writes", len(tx.pending)))
	tx.pending = nil
	return nil
}

type txKey struct{}

// WithTx binds tx to ctx.
func WithTx(ctx context.Context, tx *Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext returns the transaction bound to ctx, if any.
func TxFromContext(ctx context.Context) (*Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*Tx)
	return tx, ok && tx != nil
}

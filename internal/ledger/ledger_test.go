package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/graph-arbitrage/internal/arbitrage"
	"github.com/rovshanmuradov/graph-arbitrage/internal/dex"
	"github.com/rovshanmuradov/graph-arbitrage/internal/wallet"
)

var (
	mintUSDC = solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	mintSOL  = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
	mintUSDT = solana.MustPublicKeyFromBase58("Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB")
)

func TestTxCommitAndRollback(t *testing.T) {
	l := New(zap.NewNop())
	a, b := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()
	require.NoError(t, l.Deposit(a, 100))

	tx := l.Begin()
	require.NoError(t, tx.Transfer(a, b, 40))
	bal, err := tx.Balance(b)
	require.NoError(t, err)
	assert.Equal(t, uint64(40), bal)
	assert.Equal(t, uint64(0), l.BalanceOf(b), "uncommitted writes stay private")
	require.NoError(t, tx.Commit())

	assert.Equal(t, uint64(60), l.BalanceOf(a))
	assert.Equal(t, uint64(40), l.BalanceOf(b))

	tx = l.Begin()
	require.NoError(t, tx.Debit(a, 60))
	require.NoError(t, tx.Rollback())
	require.NoError(t, tx.Rollback())
	assert.Equal(t, uint64(60), l.BalanceOf(a))

	assert.ErrorIs(t, tx.Commit(), ErrTxDone)
	assert.ErrorIs(t, tx.Credit(a, 1), ErrTxDone)
}

func TestTxRejectsOverdraftAndOverflow(t *testing.T) {
	l := New(zap.NewNop())
	a := solana.NewWallet().PublicKey()
	require.NoError(t, l.Deposit(a, ^uint64(0)-1))

	tx := l.Begin()
	assert.ErrorIs(t, tx.Credit(a, 2), ErrOverflow)
	assert.ErrorIs(t, tx.Debit(solana.NewWallet().PublicKey(), 1), ErrInsufficientFunds)
	assert.ErrorIs(t, l.Deposit(a, 5), ErrOverflow)
}

func TestCommitDetectsConflict(t *testing.T) {
	l := New(zap.NewNop())
	a := solana.NewWallet().PublicKey()
	require.NoError(t, l.Deposit(a, 10))

	tx := l.Begin()
	require.NoError(t, tx.Debit(a, 5))
	require.NoError(t, l.Deposit(a, 1))

	assert.ErrorIs(t, tx.Commit(), ErrConflict)
	assert.Equal(t, uint64(11), l.BalanceOf(a))
}

func TestAtomically(t *testing.T) {
	l := New(zap.NewNop())
	a, b := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()
	require.NoError(t, l.Deposit(a, 100))
	before := l.Snapshot()

	boom := errors.New("boom")
	err := l.Atomically(context.Background(), func(ctx context.Context) error {
		tx, ok := TxFromContext(ctx)
		require.True(t, ok)
		require.NoError(t, tx.Transfer(a, b, 70))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, before, l.Snapshot())

	assert.Panics(t, func() {
		_ = l.Atomically(context.Background(), func(ctx context.Context) error {
			tx, _ := TxFromContext(ctx)
			_ = tx.Transfer(a, b, 70)
			panic("adapter bug")
		})
	})
	assert.Equal(t, before, l.Snapshot())

	err = l.Atomically(context.Background(), func(ctx context.Context) error {
		tx, _ := TxFromContext(ctx)
		return tx.Transfer(a, b, 70)
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(70), l.BalanceOf(b))
}

func TestBalancesReader(t *testing.T) {
	l := New(zap.NewNop())
	a := solana.NewWallet().PublicKey()
	require.NoError(t, l.Deposit(a, 5))

	reader := AccountReader{Ledger: l, Account: a}
	bal, err := reader.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(5), bal)

	tx := l.Begin()
	require.NoError(t, tx.Credit(a, 10))
	bal, err = reader.Balance(WithTx(context.Background(), tx))
	require.NoError(t, err)
	assert.Equal(t, uint64(15), bal)
}

// fixture wires a funded owner, the three venue adapters over a simulator and
// an executor, the same way the service does.
type fixture struct {
	ledger   *Ledger
	rates    *RateBook
	owner    *wallet.Wallet
	tracked  solana.PublicKey
	executor *arbitrage.Executor
}

func newFixture(t *testing.T, start uint64) *fixture {
	t.Helper()
	log := zap.NewNop()
	owner, err := wallet.Generate()
	require.NoError(t, err)
	tracked, err := owner.GetATA(mintUSDC)
	require.NoError(t, err)

	l := New(log)
	require.NoError(t, l.Deposit(tracked, start))

	rates := NewRateBook()
	programs := dex.DefaultPrograms()
	adapters, err := dex.NewAdapterSet(dex.Deps{
		Owner:    owner,
		Invoker:  NewSimulator(programs, rates, log),
		Balances: Balances{Ledger: l},
		Logger:   log,
	})
	require.NoError(t, err)
	exec, err := arbitrage.NewExecutor(adapters, log)
	require.NoError(t, err)

	return &fixture{ledger: l, rates: rates, owner: owner, tracked: tracked, executor: exec}
}

func (f *fixture) request(minProfitBps uint16) *arbitrage.ExecutionRequest {
	programs := dex.DefaultPrograms()
	step := func(in, out solana.PublicKey, venue arbitrage.Venue, rate uint64) arbitrage.SwapStep {
		return arbitrage.SwapStep{InputMint: in, OutputMint: out, Venue: venue, ProgramID: programs[venue], ExpectedRate: rate}
	}
	return &arbitrage.ExecutionRequest{
		ID:             "req-1",
		Owner:          f.owner.PublicKey,
		TrackedAccount: f.tracked,
		Route: arbitrage.Route{
			step(mintUSDC, mintSOL, arbitrage.VenueJupiter, 1010),
			step(mintSOL, mintUSDT, arbitrage.VenueRaydium, 1000),
			step(mintUSDT, mintUSDC, arbitrage.VenueOrca, 1005),
		},
		MinProfitBps:   minProfitBps,
		MaxSlippageBps: 50,
	}
}

func (f *fixture) run(req *arbitrage.ExecutionRequest) (*arbitrage.ExecutionResult, error) {
	var res *arbitrage.ExecutionResult
	err := f.ledger.Atomically(context.Background(), func(ctx context.Context) error {
		var err error
		res, err = f.executor.Execute(ctx, req, AccountReader{Ledger: f.ledger, Account: f.tracked})
		return err
	})
	return res, err
}

func (f *fixture) quote(rates ...uint64) {
	f.rates.Set(mintUSDC, mintSOL, Quote{Rate: rates[0]})
	f.rates.Set(mintSOL, mintUSDT, Quote{Rate: rates[1]})
	f.rates.Set(mintUSDT, mintUSDC, Quote{Rate: rates[2]})
}

func TestSimulatedRouteCommits(t *testing.T) {
	f := newFixture(t, 100_000)
	f.quote(1010, 1000, 1005)

	res, err := f.run(f.request(100))
	require.NoError(t, err)

	assert.Equal(t, uint64(100_000), res.StartAmount)
	assert.Equal(t, uint64(101_505), res.FinalAmount)
	assert.Equal(t, uint64(150), res.ProfitBps)
	assert.Equal(t, uint8(3), res.StepsExecuted)
	assert.Equal(t, uint64(101_505), f.ledger.BalanceOf(f.tracked))

	sol, _ := f.owner.GetATA(mintSOL)
	assert.Equal(t, uint64(0), f.ledger.BalanceOf(sol), "intermediate holdings fully converted")
}

func TestFailedStepRollsBackEveryEarlierStep(t *testing.T) {
	f := newFixture(t, 100_000)
	f.quote(1010, 1000, 900)
	before := f.ledger.Snapshot()

	_, err := f.run(f.request(100))
	require.Error(t, err)

	var aerr *arbitrage.Error
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, arbitrage.ErrSwapFailed, aerr.Code)
	assert.Equal(t, 2, aerr.Step)
	assert.ErrorContains(t, err, "slippage tolerance exceeded")
	assert.Equal(t, before, f.ledger.Snapshot())
}

func TestInsufficientProfitRollsBack(t *testing.T) {
	f := newFixture(t, 100_000)
	f.quote(1010, 1000, 1005)
	before := f.ledger.Snapshot()

	_, err := f.run(f.request(200))
	code, ok := arbitrage.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, arbitrage.ErrInsufficientProfit, code)
	assert.Equal(t, before, f.ledger.Snapshot())
}

func TestMissingLiquidityFailsStep(t *testing.T) {
	f := newFixture(t, 100_000)
	f.rates.Set(mintUSDC, mintSOL, Quote{Rate: 1010})

	_, err := f.run(f.request(100))
	assert.ErrorContains(t, err, "no liquidity")
	assert.Equal(t, uint64(100_000), f.ledger.BalanceOf(f.tracked))
}

func TestSimulatorRequiresTransaction(t *testing.T) {
	sim := NewSimulator(dex.DefaultPrograms(), NewRateBook(), zap.NewNop())
	ix := solana.NewInstruction(dex.JupiterProgramID, nil, nil)
	assert.ErrorIs(t, sim.Invoke(context.Background(), ix), ErrNoTransaction)

	l := New(zap.NewNop())
	ctx := WithTx(context.Background(), l.Begin())
	ix = solana.NewInstruction(solana.NewWallet().PublicKey(), nil, nil)
	assert.ErrorContains(t, sim.Invoke(ctx, ix), "not a known venue")
}

func TestQuoteFill(t *testing.T) {
	assert.Equal(t, uint64(1_050_000), Quote{Rate: 1050}.Fill(1_000_000))
	assert.Equal(t, uint64(1_046_850), Quote{Rate: 1050, FeeBps: 30}.Fill(1_000_000))
}

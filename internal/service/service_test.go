package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/graph-arbitrage/internal/arbitrage"
	"github.com/rovshanmuradov/graph-arbitrage/internal/audit"
	"github.com/rovshanmuradov/graph-arbitrage/internal/dex"
	"github.com/rovshanmuradov/graph-arbitrage/internal/ledger"
	"github.com/rovshanmuradov/graph-arbitrage/internal/metrics"
	"github.com/rovshanmuradov/graph-arbitrage/internal/wallet"
)

var (
	mintUSDC = solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	mintSOL  = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
	mintUSDT = solana.MustPublicKeyFromBase58("Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB")
)

type recordingSink struct {
	mu      sync.Mutex
	records []audit.Record
}

func (r *recordingSink) Record(_ context.Context, rec audit.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func (r *recordingSink) kinds() []audit.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]audit.Kind, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec.Kind)
	}
	return out
}

type unitCounter struct {
	mu         sync.Mutex
	results    map[string]int
	duplicates int
}

func (u *unitCounter) ObserveUnit(result string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.results == nil {
		u.results = map[string]int{}
	}
	u.results[result]++
}

func (u *unitCounter) ObserveDuplicate() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.duplicates++
}

type env struct {
	ledger *ledger.Ledger
	rates  *ledger.RateBook
	sink   *recordingSink
	units  *unitCounter
	log    *zap.Logger
	invoke dex.Invoker
}

func newEnv(t *testing.T) *env {
	t.Helper()
	log := zap.NewNop()
	l := ledger.New(log)
	rates := ledger.NewRateBook()
	rates.Set(mintUSDC, mintSOL, ledger.Quote{Rate: 1010})
	rates.Set(mintSOL, mintUSDT, ledger.Quote{Rate: 1000})
	rates.Set(mintUSDT, mintUSDC, ledger.Quote{Rate: 1005})

	return &env{
		ledger: l,
		rates:  rates,
		sink:   &recordingSink{},
		units:  &unitCounter{},
		log:    log,
		invoke: ledger.NewSimulator(dex.DefaultPrograms(), rates, log),
	}
}

// serviceFor builds a service whose adapters sign for owner.
func (e *env) serviceFor(t *testing.T, owner *wallet.Wallet, cfg Config) *Service {
	t.Helper()
	adapters, err := dex.NewAdapterSet(dex.Deps{
		Owner:    owner,
		Invoker:  e.invoke,
		Balances: ledger.Balances{Ledger: e.ledger},
		Logger:   e.log,
	})
	require.NoError(t, err)

	collector := metrics.NewCollector(false)
	svc, err := New(adapters, LedgerSubstrate{Ledger: e.ledger}, cfg, e.log,
		WithSink(audit.NewRecorder(e.sink)),
		WithObserver(collector),
		WithUnitObserver(e.units))
	require.NoError(t, err)
	return svc
}

func (e *env) fund(t *testing.T, amount uint64) (*wallet.Wallet, solana.PublicKey) {
	t.Helper()
	owner, err := wallet.Generate()
	require.NoError(t, err)
	tracked, err := owner.GetATA(mintUSDC)
	require.NoError(t, err)
	require.NoError(t, e.ledger.Deposit(tracked, amount))
	return owner, tracked
}

func request(id string, owner *wallet.Wallet, tracked solana.PublicKey) *arbitrage.ExecutionRequest {
	programs := dex.DefaultPrograms()
	step := func(in, out solana.PublicKey, venue arbitrage.Venue, rate uint64) arbitrage.SwapStep {
		return arbitrage.SwapStep{InputMint: in, OutputMint: out, Venue: venue, ProgramID: programs[venue], ExpectedRate: rate}
	}
	return &arbitrage.ExecutionRequest{
		ID:             id,
		Owner:          owner.PublicKey,
		TrackedAccount: tracked,
		Route: arbitrage.Route{
			step(mintUSDC, mintSOL, arbitrage.VenueJupiter, 1010),
			step(mintSOL, mintUSDT, arbitrage.VenueRaydium, 1000),
			step(mintUSDT, mintUSDC, arbitrage.VenueOrca, 1005),
		},
		MinProfitBps:   100,
		MaxSlippageBps: 50,
	}
}

func TestSubmitCommitsAndAuditsOnce(t *testing.T) {
	e := newEnv(t)
	owner, tracked := e.fund(t, 100_000)
	svc := e.serviceFor(t, owner, Config{})

	res, err := svc.Submit(context.Background(), request("r1", owner, tracked))
	require.NoError(t, err)
	assert.Equal(t, uint64(101_505), res.FinalAmount)
	assert.Equal(t, uint64(150), res.ProfitBps)
	assert.Equal(t, uint64(101_505), e.ledger.BalanceOf(tracked))

	assert.Equal(t, []audit.Kind{audit.KindExecuted}, e.sink.kinds())
	assert.Equal(t, 1, e.units.results[UnitCommitted])
}

func TestFailedRouteLeavesSnapshotIdentical(t *testing.T) {
	e := newEnv(t)
	owner, tracked := e.fund(t, 100_000)
	svc := e.serviceFor(t, owner, Config{})
	before := e.ledger.Snapshot()

	e.rates.Set(mintUSDT, mintUSDC, ledger.Quote{Rate: 900})
	_, err := svc.Submit(context.Background(), request("r1", owner, tracked))

	var aerr *arbitrage.Error
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, arbitrage.ErrSwapFailed, aerr.Code)
	assert.Equal(t, 2, aerr.Step)
	assert.Equal(t, before, e.ledger.Snapshot())

	assert.Equal(t, []audit.Kind{audit.KindFailed}, e.sink.kinds(), "no executed record for a rolled back unit")
	assert.Equal(t, 1, e.units.results[UnitRolledBack])
}

func TestInsufficientProfitAuditsNothingExecuted(t *testing.T) {
	e := newEnv(t)
	owner, tracked := e.fund(t, 100_000)
	svc := e.serviceFor(t, owner, Config{})
	before := e.ledger.Snapshot()

	req := request("r1", owner, tracked)
	req.MinProfitBps = 200
	_, err := svc.Submit(context.Background(), req)
	assert.ErrorIs(t, err, arbitrage.ErrInsufficientProfit)
	assert.Equal(t, before, e.ledger.Snapshot())
	assert.NotContains(t, e.sink.kinds(), audit.KindExecuted)
}

func TestReplayIsRejectedUntilFailureClearsIt(t *testing.T) {
	e := newEnv(t)
	owner, tracked := e.fund(t, 100_000)
	svc := e.serviceFor(t, owner, Config{})
	ctx := context.Background()

	// A failed attempt does not burn the fingerprint.
	e.rates.Set(mintSOL, mintUSDT, ledger.Quote{Rate: 500})
	_, err := svc.Submit(ctx, request("r1", owner, tracked))
	require.Error(t, err)

	e.rates.Set(mintSOL, mintUSDT, ledger.Quote{Rate: 1000})
	_, err = svc.Submit(ctx, request("r1", owner, tracked))
	require.NoError(t, err)

	_, err = svc.Submit(ctx, request("r1", owner, tracked))
	assert.ErrorIs(t, err, arbitrage.ErrDuplicateRequest)
	assert.Equal(t, 1, e.units.duplicates)

	_, err = svc.Submit(ctx, request("r2", owner, tracked))
	assert.NoError(t, err, "a different request is not a replay")
}

func TestRequestsWithoutIDAreNotReplays(t *testing.T) {
	e := newEnv(t)
	owner, tracked := e.fund(t, 100_000)
	svc := e.serviceFor(t, owner, Config{})
	ctx := context.Background()

	first, err := svc.Submit(ctx, request("", owner, tracked))
	require.NoError(t, err)
	second, err := svc.Submit(ctx, request("", owner, tracked))
	require.NoError(t, err)

	assert.Greater(t, second.StartAmount, first.StartAmount, "second run starts from the settled balance")
	assert.Zero(t, e.units.duplicates)
}

func TestValidationErrorsPassThrough(t *testing.T) {
	e := newEnv(t)
	owner, tracked := e.fund(t, 100_000)
	svc := e.serviceFor(t, owner, Config{})

	req := request("r1", owner, tracked)
	req.Route = req.Route[:2]
	assert.ErrorIs(t, svc.Validate(req), arbitrage.ErrRouteTooShort)
	_, err := svc.Submit(context.Background(), req)
	assert.ErrorIs(t, err, arbitrage.ErrRouteTooShort)

	_, err = svc.Submit(context.Background(), nil)
	assert.ErrorIs(t, err, arbitrage.ErrInvalidStep)
}

func TestSubmitBatchKeepsOrder(t *testing.T) {
	e := newEnv(t)
	owner, tracked := e.fund(t, 100_000)
	svc := e.serviceFor(t, owner, Config{MaxConcurrency: 2})

	short := request("bad", owner, tracked)
	short.Route = short.Route[:1]
	outcomes := svc.SubmitBatch(context.Background(), []*arbitrage.ExecutionRequest{
		request("a", owner, tracked),
		short,
	})

	require.Len(t, outcomes, 2)
	assert.NoError(t, outcomes[0].Err)
	assert.Equal(t, uint64(150), outcomes[0].Result.ProfitBps)
	assert.ErrorIs(t, outcomes[1].Err, arbitrage.ErrRouteTooShort)
	assert.Nil(t, outcomes[1].Result)
}

func TestCommitConflictIsReported(t *testing.T) {
	e := newEnv(t)
	owner, tracked := e.fund(t, 100_000)
	svc := e.serviceFor(t, owner, Config{})

	// Another writer touches the tracked account after the route read it.
	svc.substrate = conflictingSubstrate{LedgerSubstrate{Ledger: e.ledger}, tracked}

	_, err := svc.Submit(context.Background(), request("r1", owner, tracked))
	assert.ErrorIs(t, err, ledger.ErrConflict)
	assert.Equal(t, 1, e.units.results[UnitCommitFailed])
	assert.Equal(t, uint64(100_001), e.ledger.BalanceOf(tracked))
	assert.NotContains(t, e.sink.kinds(), audit.KindExecuted)
}

type conflictingSubstrate struct {
	LedgerSubstrate
	account solana.PublicKey
}

func (s conflictingSubstrate) Begin(ctx context.Context) (Unit, error) {
	u, err := s.LedgerSubstrate.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return conflictingUnit{Unit: u, ledger: s.Ledger, account: s.account}, nil
}

type conflictingUnit struct {
	Unit
	ledger  *ledger.Ledger
	account solana.PublicKey
}

func (u conflictingUnit) Commit() error {
	if err := u.ledger.Deposit(u.account, 1); err != nil {
		return err
	}
	return u.Unit.Commit()
}

func TestPanicRollsBack(t *testing.T) {
	e := newEnv(t)
	owner, tracked := e.fund(t, 100_000)
	panicky := dex.InvokerFunc(func(context.Context, solana.Instruction) error { panic("adapter bug") })
	adapters, err := dex.NewAdapterSet(dex.Deps{
		Owner:    owner,
		Invoker:  panicky,
		Balances: ledger.Balances{Ledger: e.ledger},
		Logger:   e.log,
	})
	require.NoError(t, err)
	svc, err := New(adapters, LedgerSubstrate{Ledger: e.ledger}, Config{}, e.log, WithUnitObserver(e.units))
	require.NoError(t, err)

	assert.PanicsWithValue(t, "adapter bug", func() {
		_, _ = svc.Submit(context.Background(), request("r1", owner, tracked))
	})
	assert.Equal(t, 1, e.units.results[UnitRolledBack])
	assert.Equal(t, uint64(100_000), e.ledger.BalanceOf(tracked))
}

func TestCancelIsRecorded(t *testing.T) {
	e := newEnv(t)
	owner, _ := e.fund(t, 1)
	svc := e.serviceFor(t, owner, Config{})

	require.NoError(t, svc.Cancel(context.Background(), "operator"))
	assert.Equal(t, []audit.Kind{audit.KindCancelled}, e.sink.kinds())
}

func TestFingerprint(t *testing.T) {
	owner, err := wallet.Generate()
	require.NoError(t, err)
	a := request("x", owner, solana.PublicKey{})
	b := request("x", owner, solana.PublicKey{})
	assert.Equal(t, Fingerprint(a), Fingerprint(b))

	b.Route[1].ExpectedRate++
	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))

	b = request("x", owner, solana.PublicKey{})
	b.MaxSlippageBps = 51
	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))
}

func TestDeferredSinkOutsideUnit(t *testing.T) {
	sink := &recordingSink{}
	d := deferredSink{target: audit.NewRecorder(sink)}
	owner, err := wallet.Generate()
	require.NoError(t, err)

	req := request("x", owner, solana.PublicKey{})
	require.NoError(t, d.RecordExecution(context.Background(), req, &arbitrage.ExecutionResult{RequestID: "x"}))
	require.NoError(t, d.recordFailure(context.Background(), req, errors.New("boom")))
	assert.Equal(t, []audit.Kind{audit.KindExecuted, audit.KindFailed}, sink.kinds())

	var empty deferredSink
	assert.NoError(t, empty.RecordExecution(context.Background(), req, nil))
	assert.NoError(t, empty.RecordCancel(context.Background(), "x"))
}

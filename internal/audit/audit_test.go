package audit

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/graph-arbitrage/internal/arbitrage"
	"github.com/rovshanmuradov/graph-arbitrage/internal/events"
	"github.com/rovshanmuradov/graph-arbitrage/internal/storage"
	"github.com/rovshanmuradov/graph-arbitrage/internal/storage/models"
)

var (
	mintUSDC = solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	mintSOL  = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
)

func sample() (*arbitrage.ExecutionRequest, *arbitrage.ExecutionResult) {
	owner := solana.NewWallet().PublicKey()
	req := &arbitrage.ExecutionRequest{
		ID:    "req-1",
		Owner: owner,
		Route: arbitrage.Route{
			{InputMint: mintUSDC, OutputMint: mintSOL, Venue: arbitrage.VenueJupiter},
			{InputMint: mintSOL, OutputMint: mintUSDC, Venue: arbitrage.VenueOrca},
		},
	}
	res := &arbitrage.ExecutionResult{
		RequestID:     "req-1",
		Owner:         owner,
		StartAmount:   100_000,
		FinalAmount:   101_500,
		Profit:        1_500,
		ProfitBps:     150,
		StepsExecuted: 2,
		Steps: []arbitrage.StepReport{
			{Index: 0, Venue: arbitrage.VenueJupiter, InputMint: mintUSDC, OutputMint: mintSOL, InputAmount: 100_000, OutputAmount: 101_000},
			{Index: 1, Venue: arbitrage.VenueOrca, InputMint: mintSOL, OutputMint: mintUSDC, InputAmount: 101_000, OutputAmount: 101_500},
		},
	}
	return req, res
}

func TestFailedRecordCarriesCodeAndStep(t *testing.T) {
	req, _ := sample()
	err := arbitrage.NewError(arbitrage.ErrInsufficientProfit, errors.New("realized 20 bps"))
	rec := Failed(req, err, time.Now())

	assert.Equal(t, KindFailed, rec.Kind)
	assert.Equal(t, arbitrage.ErrInsufficientProfit, rec.ErrorCode)
	assert.Equal(t, arbitrage.NoStep, rec.FailedStep)
	assert.Contains(t, rec.Error, "realized 20 bps")

	rec = Failed(nil, errors.New("plain"), time.Now())
	assert.Zero(t, rec.ErrorCode)
	assert.Equal(t, "plain", rec.Error)
}

func TestRecorderAndMulti(t *testing.T) {
	var got []Record
	collect := SinkFunc(func(_ context.Context, rec Record) error {
		got = append(got, rec)
		return nil
	})
	boom := errors.New("disk full")
	failing := SinkFunc(func(context.Context, Record) error { return boom })

	rec := NewRecorder(Multi{collect, nil, failing, collect})
	req, res := sample()

	err := rec.RecordExecution(context.Background(), req, res)
	assert.ErrorIs(t, err, boom)
	require.Len(t, got, 2, "every sink is tried")
	assert.Equal(t, KindExecuted, got[0].Kind)
	assert.Equal(t, uint64(150), got[0].ProfitBps)
	assert.Equal(t, "EPjF..Dt1v -> So11..1112 -> EPjF..Dt1v", got[0].Route)

	var _ arbitrage.AuditSink = rec
	var _ arbitrage.CancelRecorder = rec
}

func TestHistoryWritesCSVAndStats(t *testing.T) {
	h, err := NewHistory(t.TempDir(), 2, time.Hour, zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()
	req, res := sample()
	now := time.Now()

	require.NoError(t, h.Record(ctx, Executed(req, res, now)))
	res.ProfitBps = 250
	res.Profit = 2_500
	require.NoError(t, h.Record(ctx, Executed(req, res, now)))
	require.NoError(t, h.Record(ctx, Failed(req, arbitrage.NewError(arbitrage.ErrSwapFailed, nil), now)))
	require.NoError(t, h.Record(ctx, Cancelled("operator", now)))

	assert.Len(t, h.Recent(0), 2, "memory is bounded")
	last, ok := h.Find("req-1")
	require.True(t, ok)
	assert.Equal(t, KindFailed, last.Kind)

	stats := h.Stats()
	assert.Equal(t, 2, stats.Executed)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Cancelled)
	assert.Equal(t, uint64(4_000), stats.TotalProfit)
	assert.Equal(t, "66.67", stats.SuccessRate.StringFixed(2))
	assert.Equal(t, "2.00", stats.AvgProfitPct.StringFixed(2))
	assert.Equal(t, "2.50", stats.BestProfit.StringFixed(2))

	require.NoError(t, h.Close())

	f, err := os.Open(h.Path())
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, "1.50", rows[1][8])
	assert.Equal(t, "SwapFailed", rows[3][10])
	assert.Equal(t, "operator", rows[4][12])
}

func TestJSONLSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	sink, err := NewJSONLSink(path, time.Hour, zap.NewNop())
	require.NoError(t, err)

	req, res := sample()
	require.NoError(t, sink.Record(context.Background(), Executed(req, res, time.Now())))
	require.NoError(t, sink.Record(context.Background(),
		Failed(req, &arbitrage.Error{Code: arbitrage.ErrSwapFailed, Step: 0, Venue: arbitrage.VenueJupiter}, time.Now())))
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &doc))
	assert.Equal(t, "executed", doc["kind"])
	assert.Len(t, doc["steps"], 2)
	_, hasStep := doc["failed_step"]
	assert.False(t, hasStep)

	require.NoError(t, json.Unmarshal([]byte(lines[1]), &doc))
	assert.Equal(t, "SwapFailed", doc["code"])
	assert.Equal(t, float64(0), doc["failed_step"])
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) SaveExecution(ctx context.Context, exec *models.Execution) error {
	return m.Called(ctx, exec).Error(0)
}

func (m *mockStore) GetExecution(ctx context.Context, id string) (*models.Execution, error) {
	args := m.Called(ctx, id)
	exec, _ := args.Get(0).(*models.Execution)
	return exec, args.Error(1)
}

func (m *mockStore) ListExecutions(ctx context.Context, f storage.ListFilter) ([]*models.Execution, error) {
	args := m.Called(ctx, f)
	execs, _ := args.Get(0).([]*models.Execution)
	return execs, args.Error(1)
}

func (m *mockStore) Stats(ctx context.Context, owner string) (*storage.Stats, error) {
	args := m.Called(ctx, owner)
	stats, _ := args.Get(0).(*storage.Stats)
	return stats, args.Error(1)
}

func (m *mockStore) RunMigrations() error { return m.Called().Error(0) }
func (m *mockStore) Close() error         { return m.Called().Error(0) }

func TestStoreSinkMapsRecords(t *testing.T) {
	store := new(mockStore)
	store.On("SaveExecution", mock.Anything, mock.MatchedBy(func(e *models.Execution) bool {
		return e.Status == models.StatusSucceeded && len(e.Steps) == 2 && e.Steps[1].Venue == "orca" && e.FailedStep == -1
	})).Return(nil).Once()
	store.On("SaveExecution", mock.Anything, mock.MatchedBy(func(e *models.Execution) bool {
		return e.Status == models.StatusFailed && e.ErrorName == "SlippageExceeded" && e.ErrorCode == 6005 && e.FailedStep == 1
	})).Return(errors.New("db down")).Once()

	sink := NewStoreSink(store)
	req, res := sample()
	require.NoError(t, sink.Record(context.Background(), Executed(req, res, time.Now())))

	err := sink.Record(context.Background(), Failed(req,
		&arbitrage.Error{Code: arbitrage.ErrSlippageExceeded, Step: 1, Venue: arbitrage.VenueOrca}, time.Now()))
	assert.ErrorContains(t, err, "db down")
	store.AssertExpectations(t)
}

func TestBusSinkPublishesExecutionThenSteps(t *testing.T) {
	bus := events.NewBus(zap.NewNop(), 16)
	received := make(chan events.Event, 16)
	bus.SubscribeFunc(events.AllEvents, func(_ context.Context, e events.Event) error {
		received <- e
		return nil
	})

	sink := NewBusSink(bus)
	req, res := sample()
	require.NoError(t, sink.Record(context.Background(), Executed(req, res, time.Now())))
	require.NoError(t, sink.Record(context.Background(), Cancelled("operator", time.Now())))
	require.NoError(t, bus.Shutdown(context.Background()))
	close(received)

	var types []events.EventType
	for e := range received {
		types = append(types, e.Type())
	}
	assert.Equal(t, []events.EventType{
		events.ExecutionSucceeded, events.StepExecuted, events.StepExecuted, events.ExecutionCancelled,
	}, types)
}

func TestBpsToPercent(t *testing.T) {
	assert.Equal(t, "1.5", BpsToPercent(150).String())
	assert.Equal(t, "0.01", BpsToPercent(1).String())
}

package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/graph-arbitrage/internal/arbitrage"
)

func TestCollectorObservesExecutions(t *testing.T) {
	c := NewCollector(false)
	var _ arbitrage.Observer = c

	c.ObserveExecution(&arbitrage.ExecutionResult{ProfitBps: 150}, nil, 2*time.Millisecond)
	c.ObserveExecution(nil, arbitrage.NewError(arbitrage.ErrInsufficientProfit, nil), time.Millisecond)
	c.ObserveExecution(nil, arbitrage.NewError(arbitrage.ErrInsufficientProfit, nil), time.Millisecond)
	c.ObserveExecution(nil, errors.New("commit conflict"), time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.executions.WithLabelValues("succeeded")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.executions.WithLabelValues("InsufficientProfit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.executions.WithLabelValues("error")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.profitBps))
}

func TestCollectorObservesStepsAndUnits(t *testing.T) {
	c := NewCollector(false)

	c.ObserveStep(arbitrage.VenueOrca, time.Millisecond, true)
	c.ObserveStep(arbitrage.VenueOrca, time.Millisecond, false)
	c.ObserveCancel()
	c.ObserveUnit("committed")
	c.ObserveUnit("rolled_back")
	c.ObserveDuplicate()
	c.StreamClientConnected()
	c.StreamClientConnected()
	c.StreamClientDisconnected()
	c.RecordRPCLatency("getTokenAccountBalance", 3*time.Millisecond, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.steps.WithLabelValues("orca", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.cancels))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.units.WithLabelValues("rolled_back")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.duplicates))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.streamClients))
}

func TestHandlerExposesPrivateRegistry(t *testing.T) {
	c := NewCollector(true)
	c.ObserveCancel()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "graph_arb_cancels_total 1")
	assert.Contains(t, string(body), "go_goroutines")

	// Two collectors never clash.
	assert.NotPanics(t, func() { NewCollector(true) })
}

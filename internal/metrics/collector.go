// internal/metrics/collector.go
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rovshanmuradov/graph-arbitrage/internal/arbitrage"
)

const namespace = "graph_arb"

// Collector owns every metric on a private registry so tests and multiple
// instances never collide on the global one. It implements
// arbitrage.Observer.
type Collector struct {
	registry *prometheus.Registry

	executions        *prometheus.CounterVec
	executionDuration prometheus.Histogram
	profitBps         prometheus.Histogram
	steps             *prometheus.CounterVec
	stepDuration      *prometheus.HistogramVec
	cancels           prometheus.Counter
	units             *prometheus.CounterVec
	duplicates        prometheus.Counter
	rpcLatency        *prometheus.HistogramVec
	streamClients     prometheus.Gauge
}

// NewCollector creates and registers all metrics. withRuntime adds the Go
// runtime and process collectors.
func NewCollector(withRuntime bool) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "Route executions by outcome (succeeded or the error name).",
		}, []string{"outcome"}),
		executionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "execution_duration_seconds",
			Help:      "Wall time of a route execution.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		profitBps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "profit_bps",
			Help:      "Realized profit of succeeded executions in basis points.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Swap steps by venue and status.",
		}, []string{"venue", "status"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Adapter swap latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		}, []string{"venue"}),
		cancels: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cancels_total",
			Help:      "Explicit cancel calls.",
		}),
		units: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "units_total",
			Help:      "Atomic units by result (committed, rolled_back, commit_failed).",
		}, []string{"result"}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicate_requests_total",
			Help:      "Requests rejected by the replay guard.",
		}),
		rpcLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_latency_seconds",
			Help:      "RPC request latency in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
		}, []string{"method", "status"}),
		streamClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_clients",
			Help:      "Connected event stream clients.",
		}),
	}

	c.registry.MustRegister(
		c.executions, c.executionDuration, c.profitBps, c.steps, c.stepDuration,
		c.cancels, c.units, c.duplicates, c.rpcLatency, c.streamClients,
	)
	if withRuntime {
		c.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return c
}

// Registry exposes the private registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) ObserveStep(venue arbitrage.Venue, d time.Duration, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	c.steps.WithLabelValues(venue.String(), status).Inc()
	c.stepDuration.WithLabelValues(venue.String()).Observe(d.Seconds())
}

func (c *Collector) ObserveExecution(res *arbitrage.ExecutionResult, err error, d time.Duration) {
	c.executionDuration.Observe(d.Seconds())
	if err != nil {
		c.executions.WithLabelValues(Outcome(err)).Inc()
		return
	}
	c.executions.WithLabelValues("succeeded").Inc()
	if res != nil {
		c.profitBps.Observe(float64(res.ProfitBps))
	}
}

func (c *Collector) ObserveCancel() {
	c.cancels.Inc()
}

// ObserveUnit counts how an atomic unit ended.
func (c *Collector) ObserveUnit(result string) {
	c.units.WithLabelValues(result).Inc()
}

func (c *Collector) ObserveDuplicate() {
	c.duplicates.Inc()
}

// RecordRPCLatency records one RPC round trip.
func (c *Collector) RecordRPCLatency(method string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.rpcLatency.WithLabelValues(method, status).Observe(d.Seconds())
}

// StreamClientConnected and StreamClientDisconnected track websocket clients.
func (c *Collector) StreamClientConnected()    { c.streamClients.Inc() }
func (c *Collector) StreamClientDisconnected() { c.streamClients.Dec() }

// Outcome labels an execution error by its code name.
func Outcome(err error) string {
	if code, ok := arbitrage.CodeOf(err); ok {
		return code.Name()
	}
	return "error"
}

// internal/service/service.go
package service

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/graph-arbitrage/internal/arbitrage"
)

// Unit results reported to UnitObserver.
const (
	UnitCommitted    = "committed"
	UnitRolledBack   = "rolled_back"
	UnitCommitFailed = "commit_failed"
)

// UnitObserver receives unit and replay telemetry. metrics.Collector
// implements it.
type UnitObserver interface {
	ObserveUnit(result string)
	ObserveDuplicate()
}

// Config tunes the service.
type Config struct {
	// MaxConcurrency bounds SubmitBatch.
	MaxConcurrency int
	// ReplayWindow is how many accepted request fingerprints are remembered.
	ReplayWindow int
}

// Outcome is the per-request result of SubmitBatch.
type Outcome struct {
	Result *arbitrage.ExecutionResult
	Err    error
}

type options struct {
	sink     arbitrage.AuditSink
	observer arbitrage.Observer
	units    UnitObserver
}

// Option configures a Service.
type Option func(*options)

// WithSink sets the audit sink. It sees an execution only after its unit
// committed.
func WithSink(sink arbitrage.AuditSink) Option {
	return func(o *options) { o.sink = sink }
}

// WithObserver forwards executor telemetry.
func WithObserver(obs arbitrage.Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithUnitObserver reports unit outcomes and rejected replays.
func WithUnitObserver(obs UnitObserver) Option {
	return func(o *options) { o.units = obs }
}

// Service runs every execution inside a unit of its substrate, so a failed
// route leaves no effect behind.
type Service struct {
	executor  *arbitrage.Executor
	substrate Substrate
	sink      deferredSink
	units     UnitObserver
	replay    *lru.Cache
	cfg       Config
	logger    *zap.Logger
}

// New creates a service executing through adapters on substrate.
func New(adapters *arbitrage.AdapterSet, substrate Substrate, cfg Config, logger *zap.Logger, opts ...Option) (*Service, error) {
	if substrate == nil {
		return nil, fmt.Errorf("substrate cannot be nil")
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 1
	}
	if cfg.ReplayWindow <= 0 {
		cfg.ReplayWindow = 1024
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	sink := deferredSink{target: o.sink}
	execOpts := []arbitrage.Option{arbitrage.WithAuditSink(sink)}
	if o.observer != nil {
		execOpts = append(execOpts, arbitrage.WithObserver(o.observer))
	}
	executor, err := arbitrage.NewExecutor(adapters, logger, execOpts...)
	if err != nil {
		return nil, err
	}

	replay, err := lru.New(cfg.ReplayWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to create replay cache: %w", err)
	}

	return &Service{
		executor:  executor,
		substrate: substrate,
		sink:      sink,
		units:     o.units,
		replay:    replay,
		cfg:       cfg,
		logger:    logger.Named("service"),
	}, nil
}

// Validate checks req without executing it.
func (s *Service) Validate(req *arbitrage.ExecutionRequest) error {
	return s.executor.Validate(req)
}

// Submit executes req inside one unit. On any error the unit is rolled back
// and the request may be submitted again. A committed request that carries an
// ID is remembered and a replay of it fails with DuplicateRequest; requests
// without an ID are never treated as replays.
func (s *Service) Submit(ctx context.Context, req *arbitrage.ExecutionRequest) (*arbitrage.ExecutionResult, error) {
	var key uint64
	guarded := req != nil && req.ID != ""
	if guarded {
		key = Fingerprint(req)
		if seen, _ := s.replay.ContainsOrAdd(key, struct{}{}); seen {
			if s.units != nil {
				s.units.ObserveDuplicate()
			}
			s.logger.Warn("Duplicate request rejected", zap.String("request_id", req.ID))
			return nil, arbitrage.NewError(arbitrage.ErrDuplicateRequest, fmt.Errorf("request %q", req.ID))
		}
	}

	res, err := s.run(ctx, req)
	if err != nil {
		if guarded {
			s.replay.Remove(key)
		}
		if ferr := s.sink.recordFailure(ctx, req, err); ferr != nil {
			s.logger.Error("Failed to record failure", zap.Error(ferr))
		}
		return nil, err
	}
	return res, nil
}

func (s *Service) run(ctx context.Context, req *arbitrage.ExecutionRequest) (res *arbitrage.ExecutionResult, err error) {
	unit, err := s.substrate.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin unit: %w", err)
	}

	settled := false
	defer func() {
		if r := recover(); r != nil {
			if !settled {
				s.rollback(unit)
			}
			panic(r)
		}
	}()

	p := &pending{}
	unitCtx := withPending(unit.Context(), p)

	var balance arbitrage.BalanceReader
	if req != nil {
		balance = s.substrate.BalanceReader(req.TrackedAccount)
	}
	res, err = s.executor.Execute(unitCtx, req, balance)
	if err != nil {
		settled = true
		s.rollback(unit)
		return nil, err
	}

	settled = true
	if err := unit.Commit(); err != nil {
		s.observeUnit(UnitCommitFailed)
		_ = unit.Rollback()
		s.logger.Error("Commit failed", zap.String("request_id", req.ID), zap.Error(err))
		return nil, fmt.Errorf("failed to commit execution: %w", err)
	}
	s.observeUnit(UnitCommitted)

	if err := s.sink.flush(ctx, p); err != nil {
		s.logger.Error("Failed to record execution", zap.String("request_id", req.ID), zap.Error(err))
	}
	return res, nil
}

func (s *Service) rollback(unit Unit) {
	if err := unit.Rollback(); err != nil {
		s.logger.Error("Rollback failed", zap.Error(err))
	}
	s.observeUnit(UnitRolledBack)
}

func (s *Service) observeUnit(result string) {
	if s.units != nil {
		s.units.ObserveUnit(result)
	}
}

// SubmitBatch submits reqs with at most MaxConcurrency in flight. Outcomes are
// returned in request order; one failure does not stop the others.
func (s *Service) SubmitBatch(ctx context.Context, reqs []*arbitrage.ExecutionRequest) []Outcome {
	out := make([]Outcome, len(reqs))
	var g errgroup.Group
	g.SetLimit(s.cfg.MaxConcurrency)
	for i, req := range reqs {
		g.Go(func() error {
			res, err := s.Submit(ctx, req)
			out[i] = Outcome{Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Cancel records an explicit abort.
func (s *Service) Cancel(ctx context.Context, reason string) error {
	return s.executor.Cancel(ctx, reason)
}

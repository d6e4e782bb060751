package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/graph-arbitrage/internal/audit"
	"github.com/rovshanmuradov/graph-arbitrage/internal/config"
	"github.com/rovshanmuradov/graph-arbitrage/internal/dex"
	"github.com/rovshanmuradov/graph-arbitrage/internal/events"
	"github.com/rovshanmuradov/graph-arbitrage/internal/ledger"
	"github.com/rovshanmuradov/graph-arbitrage/internal/metrics"
	"github.com/rovshanmuradov/graph-arbitrage/internal/routefile"
	"github.com/rovshanmuradov/graph-arbitrage/internal/service"
	"github.com/rovshanmuradov/graph-arbitrage/internal/storage"
	"github.com/rovshanmuradov/graph-arbitrage/internal/storage/gormstore"
	"github.com/rovshanmuradov/graph-arbitrage/internal/wallet"
)

// world is a scenario loaded into the in-memory ledger and simulator.
type world struct {
	scenario *routefile.Scenario
	owner    *wallet.Wallet
	ledger   *ledger.Ledger
	rates    *ledger.RateBook
	programs dex.Programs
}

// loadWorld reads the scenario at path. A non-nil live source replaces the
// scenario's seeded amounts with real balances.
func loadWorld(ctx context.Context, path string, cfg *config.Config, log *zap.Logger, live dex.TokenBalances) (*world, error) {
	s, err := routefile.LoadScenario(path)
	if err != nil {
		return nil, err
	}
	// The configured wallet stands in when the scenario names no owner.
	if s.OwnerKey == "" && s.Request.Owner == "" {
		s.OwnerKey = cfg.Wallet.PrivateKey
		s.Request.Owner = cfg.Wallet.Address
	}
	owner, err := s.Wallet()
	if err != nil {
		return nil, err
	}
	if live != nil {
		if err := s.Refresh(ctx, owner, live); err != nil {
			return nil, err
		}
	}
	programs, err := dex.ParsePrograms(cfg.Executor.Programs)
	if err != nil {
		return nil, err
	}

	w := &world{
		scenario: s,
		owner:    owner,
		ledger:   ledger.New(log),
		rates:    ledger.NewRateBook(),
		programs: programs,
	}
	if err := s.Seed(w.ledger, w.rates, owner); err != nil {
		return nil, fmt.Errorf("failed to seed scenario: %w", err)
	}
	log.Info("Scenario loaded",
		zap.String("file", path),
		zap.String("owner", owner.String()),
		zap.Int("balances", len(s.Balances)),
		zap.Int("rates", len(s.Rates)))
	return w, nil
}

func (w *world) defaults(cfg *config.Config) routefile.Defaults {
	return routefile.Defaults{
		Programs:       w.programs,
		MinProfitBps:   cfg.Executor.DefaultMinProfitBps,
		MaxSlippageBps: cfg.Executor.DefaultMaxSlippageBps,
		Owner:          w.owner.PublicKey,
	}
}

func (w *world) service(cfg *config.Config, log *zap.Logger, opts ...service.Option) (*service.Service, error) {
	venues, err := cfg.Executor.ParsedVenues()
	if err != nil {
		return nil, err
	}
	adapters, err := dex.NewAdapterSet(dex.Deps{
		Owner:    w.owner,
		Invoker:  ledger.NewSimulator(w.programs, w.rates, log),
		Balances: ledger.Balances{Ledger: w.ledger},
		Logger:   log,
	}, venues...)
	if err != nil {
		return nil, err
	}
	return service.New(adapters, service.LedgerSubstrate{Ledger: w.ledger}, service.Config{
		MaxConcurrency: cfg.Service.MaxConcurrency,
		ReplayWindow:   cfg.Service.ReplayWindow,
	}, log, opts...)
}

// auditStack owns every configured audit sink.
type auditStack struct {
	sinks   audit.Multi
	history *audit.History
	journal *audit.JSONLSink
	store   storage.Store
	closers []func() error
}

type auditOptions struct {
	history bool
	store   bool
	bus     *events.Bus
}

func openAudit(cfg *config.Config, opts auditOptions, log *zap.Logger) (*auditStack, error) {
	a := &auditStack{sinks: audit.Multi{audit.NewLogSink(log)}}

	if opts.history && cfg.Audit.Dir != "" {
		h, err := audit.NewHistory(cfg.Audit.Dir, cfg.Audit.MaxRecent, cfg.Audit.FlushInterval, log)
		if err != nil {
			return nil, err
		}
		a.history = h
		a.sinks = append(a.sinks, h)
		a.closers = append(a.closers, h.Close)
	}
	if cfg.Audit.Journal != "" {
		j, err := audit.NewJSONLSink(cfg.Audit.Journal, cfg.Audit.FlushInterval, log)
		if err != nil {
			_ = a.close()
			return nil, err
		}
		a.journal = j
		a.sinks = append(a.sinks, j)
		a.closers = append(a.closers, j.Close)
	}
	if opts.store && cfg.Storage.DSN != "" {
		store, err := gormstore.New(cfg.Storage, log)
		if err != nil {
			_ = a.close()
			return nil, err
		}
		if err := store.RunMigrations(); err != nil {
			_ = store.Close()
			_ = a.close()
			return nil, err
		}
		a.store = store
		a.sinks = append(a.sinks, audit.NewStoreSink(store))
		a.closers = append(a.closers, store.Close)
	}
	if opts.bus != nil {
		a.sinks = append(a.sinks, audit.NewBusSink(opts.bus))
	}
	return a, nil
}

func (a *auditStack) recorder() *audit.Recorder {
	return audit.NewRecorder(a.sinks)
}

func (a *auditStack) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// serviceOptions wires the audit recorder and, when given, the metrics.
func serviceOptions(a *auditStack, m *metrics.Collector) []service.Option {
	opts := []service.Option{service.WithSink(a.recorder())}
	if m != nil {
		opts = append(opts, service.WithObserver(m), service.WithUnitObserver(m))
	}
	return opts
}

func (a *auditStack) shutdown(log *zap.Logger) {
	if err := a.close(); err != nil {
		log.Warn("Failed to close audit sinks", zap.Error(err))
	}
}

package main

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/graph-arbitrage/internal/api"
	"github.com/rovshanmuradov/graph-arbitrage/internal/blockchain/solbc"
	"github.com/rovshanmuradov/graph-arbitrage/internal/config"
	"github.com/rovshanmuradov/graph-arbitrage/internal/events"
	"github.com/rovshanmuradov/graph-arbitrage/internal/metrics"
)

var (
	serveScenario string
	checkRPC      bool
	shutdownWait  time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the execution API over a simulated scenario world",
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := loadRuntime()
		if err != nil {
			return err
		}
		defer rt.close()
		cfg := rt.cfg
		log := rt.log.WithComponent("serve")

		collector := metrics.NewCollector(true)
		bus := events.NewBus(log, cfg.Events.BufferSize)

		audits, err := openAudit(cfg, auditOptions{history: true, store: true, bus: bus}, log)
		if err != nil {
			return err
		}
		defer audits.shutdown(log)

		w, err := loadWorld(cmd.Context(), serveScenario, cfg, log, nil)
		if err != nil {
			return err
		}
		svc, err := w.service(cfg, log, serviceOptions(audits, collector)...)
		if err != nil {
			return err
		}

		deps := api.Deps{
			Executor: svc,
			Defaults: w.defaults(cfg),
			Bus:      bus,
			Stream:   collector,
			Metrics:  collector.Handler(),
			Logger:   log,
		}
		// A nil interface keeps the API on the CSV history when no database
		// is configured.
		if audits.store != nil {
			deps.Store = audits.store
		}
		if audits.history != nil {
			deps.History = audits.history
		}
		if checkRPC {
			client := rpcClient(cfg, log, collector)
			deps.Health = client.GetHealth
		}

		server, err := api.NewServer(api.Config{
			Listen:       cfg.API.Listen,
			Mode:         cfg.API.Mode,
			ReadTimeout:  cfg.API.ReadTimeout,
			WriteTimeout: cfg.API.WriteTimeout,
		}, deps)
		if err != nil {
			return err
		}
		server.Start()

		<-cmd.Context().Done()
		log.Info("Shutting down")

		ctx, cancel := context.WithTimeout(context.Background(), shutdownWait)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Warn("API shutdown incomplete", zap.Error(err))
		}
		if err := bus.Shutdown(ctx); err != nil {
			log.Warn("Event bus shutdown incomplete", zap.Error(err))
		}
		return nil
	},
}

func rpcClient(cfg *config.Config, log *zap.Logger, collector *metrics.Collector) *solbc.Client {
	opts := []solbc.Option{}
	if collector != nil {
		opts = append(opts, solbc.WithLatencyRecorder(collector))
	}
	return solbc.NewClient(solbc.Config{
		Endpoint:   cfg.RPCList[0],
		RateLimit:  cfg.RPCRateLimit,
		Burst:      cfg.RPCBurst,
		Retries:    cfg.Retries,
		Timeout:    cfg.RPCTimeout,
		Commitment: rpc.CommitmentType(cfg.Commitment),
	}, log, opts...)
}

func init() {
	serveCmd.Flags().StringVarP(&serveScenario, "file", "f", "configs/scenario.example.yaml", "scenario seeding the simulated ledger")
	serveCmd.Flags().BoolVar(&checkRPC, "check-rpc", false, "report the first RPC endpoint in /healthz")
	serveCmd.Flags().DurationVar(&shutdownWait, "shutdown-timeout", 10*time.Second, "grace period for in-flight requests")
	rootCmd.AddCommand(serveCmd)
}

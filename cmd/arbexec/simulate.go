package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/graph-arbitrage/internal/blockchain/solbc"
	"github.com/rovshanmuradov/graph-arbitrage/internal/dex"
	"github.com/rovshanmuradov/graph-arbitrage/internal/report"
)

var (
	scenarioFile string
	decimals     int32
	liveBalances bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Execute a scenario route against the in-memory ledger",
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := loadRuntime()
		if err != nil {
			return err
		}
		defer rt.close()
		defer rt.log.TrackPerformance("simulate")()
		log := rt.log.WithOperation("simulate")

		var live dex.TokenBalances
		if liveBalances {
			live = solbc.TokenBalances{Client: rpcClient(rt.cfg, log, nil)}
		}
		w, err := loadWorld(cmd.Context(), scenarioFile, rt.cfg, log, live)
		if err != nil {
			return err
		}
		audits, err := openAudit(rt.cfg, auditOptions{store: true}, log)
		if err != nil {
			return err
		}
		defer audits.shutdown(log)

		svc, err := w.service(rt.cfg, log, serviceOptions(audits, nil)...)
		if err != nil {
			return err
		}
		req, err := w.scenario.Request.Build(w.defaults(rt.cfg))
		if err != nil {
			return err
		}

		r := report.NewRenderer(decimals)
		res, err := svc.Submit(cmd.Context(), req)
		if err != nil {
			fmt.Fprintln(cmd.OutOrStdout(), r.Failure(req, err))
			return errors.New("route was not executed")
		}
		fmt.Fprintln(cmd.OutOrStdout(), r.Result(req, res))
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a route file without executing it",
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := loadRuntime()
		if err != nil {
			return err
		}
		defer rt.close()
		log := rt.log.WithOperation("validate")

		w, err := loadWorld(cmd.Context(), scenarioFile, rt.cfg, log, nil)
		if err != nil {
			return err
		}
		svc, err := w.service(rt.cfg, log)
		if err != nil {
			return err
		}
		req, err := w.scenario.Request.Build(w.defaults(rt.cfg))
		if err != nil {
			return err
		}

		r := report.NewRenderer(decimals)
		if err := svc.Validate(req); err != nil {
			fmt.Fprintln(cmd.OutOrStdout(), r.Failure(req, err))
			return errors.New("route is invalid")
		}
		log.Debug("Route validated", zap.String("request_id", req.ID))
		fmt.Fprintln(cmd.OutOrStdout(), r.Validation(req))
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{simulateCmd, validateCmd} {
		cmd.Flags().StringVarP(&scenarioFile, "file", "f", "configs/scenario.example.yaml", "scenario file")
		cmd.Flags().Int32Var(&decimals, "decimals", 6, "decimals used to display amounts")
		rootCmd.AddCommand(cmd)
	}
	simulateCmd.Flags().BoolVar(&liveBalances, "live-balances", false, "seed scenario balances from the configured RPC node")
}

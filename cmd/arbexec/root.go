package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/graph-arbitrage/internal/config"
	"github.com/rovshanmuradov/graph-arbitrage/internal/logger"
)

var (
	cfgFile  string
	envFiles []string
	debug    bool
)

var rootCmd = &cobra.Command{
	Use:   "arbexec",
	Short: "Atomic multi-hop arbitrage route executor",
	Long: `arbexec executes cyclic swap routes across Jupiter, Raydium and Orca as a
single all-or-nothing unit, rejecting any route that does not clear the
requested minimum profit.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (yaml, json or toml)")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "dotenv files loaded before the config")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// runtime is what every command starts from.
type runtime struct {
	cfg *config.Config
	log *logger.Logger
}

func loadRuntime() (*runtime, error) {
	if err := config.LoadDotEnv(envFiles...); err != nil {
		return nil, err
	}
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	if debug {
		cfg.DebugLogging = true
	}

	logCfg := cfg.Log
	logCfg.Development = logCfg.Development || cfg.DebugLogging
	log, err := logger.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}
	log.Debug("Configuration loaded",
		zap.String("file", cfgFile),
		zap.Strings("venues", cfg.Executor.Venues))
	return &runtime{cfg: cfg, log: log}, nil
}

func (r *runtime) close() {
	_ = r.log.Sync()
}

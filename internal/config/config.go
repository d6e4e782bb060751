// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/rovshanmuradov/graph-arbitrage/internal/arbitrage"
	"github.com/rovshanmuradov/graph-arbitrage/internal/logger"
	"github.com/rovshanmuradov/graph-arbitrage/internal/storage/gormstore"
)

// EnvPrefix prefixes every environment override, e.g. GRAPH_ARB_API_LISTEN.
const EnvPrefix = "GRAPH_ARB"

type Config struct {
	RPCList      []string      `mapstructure:"rpc_list"`
	RPCRateLimit float64       `mapstructure:"rpc_rate_limit"`
	RPCBurst     int           `mapstructure:"rpc_burst"`
	RPCTimeout   time.Duration `mapstructure:"rpc_timeout"`
	Retries      int           `mapstructure:"retries"`
	Commitment   string        `mapstructure:"commitment"`
	DebugLogging bool          `mapstructure:"debug_logging"`

	Log      logger.Config    `mapstructure:"log"`
	Wallet   WalletConfig     `mapstructure:"wallet"`
	Executor ExecutorConfig   `mapstructure:"executor"`
	Service  ServiceConfig    `mapstructure:"service"`
	Audit    AuditConfig      `mapstructure:"audit"`
	Storage  gormstore.Config `mapstructure:"storage"`
	Events   EventsConfig     `mapstructure:"events"`
	API      APIConfig        `mapstructure:"api"`
}

type WalletConfig struct {
	// PrivateKey is base58; usually supplied through GRAPH_ARB_WALLET_PRIVATE_KEY.
	PrivateKey string `mapstructure:"private_key"`
	// Address is used for watch-only operation when no key is given.
	Address string `mapstructure:"address"`
}

type ExecutorConfig struct {
	Venues                []string          `mapstructure:"venues"`
	Programs              map[string]string `mapstructure:"programs"`
	DefaultMinProfitBps   uint16            `mapstructure:"default_min_profit_bps"`
	DefaultMaxSlippageBps uint16            `mapstructure:"default_max_slippage_bps"`
}

type ServiceConfig struct {
	MaxConcurrency int `mapstructure:"max_concurrency"`
	ReplayWindow   int `mapstructure:"replay_window"`
}

type AuditConfig struct {
	// Dir receives the CSV execution history; empty disables it.
	Dir           string        `mapstructure:"dir"`
	Journal       string        `mapstructure:"journal"`
	MaxRecent     int           `mapstructure:"max_recent"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

type EventsConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}

type APIConfig struct {
	Listen       string        `mapstructure:"listen"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

const (
	DefaultRPCRateLimit   = 10.0
	DefaultRPCBurst       = 5
	DefaultRetries        = 3
	DefaultMinProfitBps   = 10
	DefaultMaxSlippageBps = 50
	DefaultMaxConcurrency = 4
	DefaultReplayWindow   = 4096
)

func defaults() map[string]interface{} {
	lc := logger.DefaultConfig()
	return map[string]interface{}{
		"rpc_list":       []string{"https://api.mainnet-beta.solana.com"},
		"rpc_rate_limit": DefaultRPCRateLimit,
		"rpc_burst":      DefaultRPCBurst,
		"rpc_timeout":    "10s",
		"retries":        DefaultRetries,
		"commitment":     "confirmed",
		"debug_logging":  false,

		"log.file":         lc.LogFile,
		"log.max_size_mb":  lc.MaxSize,
		"log.max_age_days": lc.MaxAge,
		"log.max_backups":  lc.MaxBackups,
		"log.compress":     lc.Compress,
		"log.development":  false,
		"log.pretty":       false,

		"wallet.private_key": "",
		"wallet.address":     "",

		"executor.venues":                   []string{"jupiter", "raydium", "orca"},
		"executor.programs":                 map[string]string{},
		"executor.default_min_profit_bps":   DefaultMinProfitBps,
		"executor.default_max_slippage_bps": DefaultMaxSlippageBps,

		"service.max_concurrency": DefaultMaxConcurrency,
		"service.replay_window":   DefaultReplayWindow,

		"audit.dir":            "logs/executions",
		"audit.journal":        "",
		"audit.max_recent":     200,
		"audit.flush_interval": "5s",

		"storage.driver":         "postgres",
		"storage.dsn":            "",
		"storage.max_idle_conns": 10,
		"storage.max_open_conns": 50,
		"storage.slow_threshold": "200ms",

		"events.buffer_size": 1024,

		"api.listen":        ":8080",
		"api.mode":          "release",
		"api.read_timeout":  "10s",
		"api.write_timeout": "30s",
	}
}

// LoadDotEnv loads .env style files into the process environment. Missing
// files are skipped; variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// LoadConfig reads path (yaml, json or toml by extension) on top of the
// defaults and applies GRAPH_ARB_* environment overrides. An empty path uses
// defaults and environment only.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// Comma separated lists are not split by viper.
	if env := os.Getenv(EnvPrefix + "_RPC_LIST"); env != "" {
		cfg.RPCList = splitList(env)
	}
	if env := os.Getenv(EnvPrefix + "_EXECUTOR_VENUES"); env != "" {
		cfg.Executor.Venues = splitList(env)
	}

	return &cfg, Validate(&cfg)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if clean := strings.TrimSpace(part); clean != "" {
			out = append(out, clean)
		}
	}
	return out
}

// Validate checks the whole configuration.
func Validate(cfg *Config) error {
	if len(cfg.RPCList) == 0 {
		return errors.New("rpc_list is empty")
	}
	for _, rpcURL := range cfg.RPCList {
		if err := validateURLWithCache(rpcURL, "http"); err != nil {
			return fmt.Errorf("invalid RPC URL %q: %w", rpcURL, err)
		}
	}
	if err := validateNumericParams(cfg); err != nil {
		return err
	}
	if err := validateExecutor(&cfg.Executor); err != nil {
		return err
	}
	if cfg.Storage.DSN != "" {
		if _, err := cfg.Storage.Dialector(); err != nil {
			return err
		}
	}
	switch cfg.API.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("invalid api.mode %q", cfg.API.Mode)
	}
	return nil
}

func validateNumericParams(cfg *Config) error {
	if cfg.RPCRateLimit <= 0 {
		return errors.New("invalid rpc_rate_limit")
	}
	if cfg.RPCBurst <= 0 {
		return errors.New("invalid rpc_burst")
	}
	if cfg.Retries < 0 {
		return errors.New("invalid retries count")
	}
	if cfg.Service.MaxConcurrency <= 0 {
		return errors.New("invalid service.max_concurrency")
	}
	if cfg.Service.ReplayWindow <= 0 {
		return errors.New("invalid service.replay_window")
	}
	if cfg.Events.BufferSize <= 0 {
		return errors.New("invalid events.buffer_size")
	}
	if cfg.Audit.FlushInterval <= 0 {
		return errors.New("invalid audit.flush_interval")
	}
	return nil
}

func validateExecutor(cfg *ExecutorConfig) error {
	if cfg.DefaultMinProfitBps == 0 {
		return errors.New("executor.default_min_profit_bps must be positive")
	}
	if cfg.DefaultMaxSlippageBps > arbitrage.BpsDenominator {
		return errors.New("executor.default_max_slippage_bps exceeds 10000")
	}
	if len(cfg.Venues) == 0 {
		return errors.New("executor.venues is empty")
	}
	for _, name := range cfg.Venues {
		if _, err := arbitrage.ParseVenue(name); err != nil {
			return err
		}
	}
	return nil
}

// ParsedVenues returns the configured venues.
func (c ExecutorConfig) ParsedVenues() ([]arbitrage.Venue, error) {
	out := make([]arbitrage.Venue, 0, len(c.Venues))
	for _, name := range c.Venues {
		v, err := arbitrage.ParseVenue(name)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

var urlCache sync.Map

func validateURLWithCache(rawURL string, protocol string) error {
	if _, ok := urlCache.Load(rawURL); ok {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	urlCache.Store(rawURL, parsed)
	return nil
}

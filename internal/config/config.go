// Package config loads trader configuration from YAML, environment variables
// and a .env file, in increasing order of precedence. CLI flags are applied
// on top by the command.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TRADER_"

// Solana configures the chain endpoints.
type Solana struct {
	RPCURL     string `yaml:"rpc_url"`
	WSURL      string `yaml:"ws_url"`
	Commitment string `yaml:"commitment"`
}

// Jupiter configures the quote/build and price endpoints.
type Jupiter struct {
	BaseURL   string  `yaml:"base_url"`
	PriceURL  string  `yaml:"price_url"`
	RateLimit float64 `yaml:"rate_limit"` // requests per second
	Burst     int     `yaml:"burst"`
}

// Trading holds the session defaults.
type Trading struct {
	Amount       float64       `yaml:"amount"`
	AmountMode   string        `yaml:"amount_mode"` // percent | fiat
	Slippage     float64       `yaml:"slippage"`    // percent
	PaceInterval time.Duration `yaml:"pace_interval"`
	PriceBuffer  float64       `yaml:"price_buffer"`
	CallTimeout  time.Duration `yaml:"call_timeout"`
	Confirm      bool          `yaml:"confirm"` // watch signatures over WebSocket
}

// Storage configures the optional trade log sinks. Empty values disable a sink.
type Storage struct {
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
	RedisURL      string `yaml:"redis_url"`
	RedisStream   string `yaml:"redis_stream"`
}

// App captures process-wide settings.
type App struct {
	StatusAddr string `yaml:"status_addr"` // serves /health, /metrics and /status
	LogLevel   string `yaml:"log_level"`
	LogPretty  bool   `yaml:"log_pretty"`
	LockFile   string `yaml:"lock_file"`
	BridgeURL  string `yaml:"bridge_url"`
}

// Config collects every configuration leaf.
type Config struct {
	Solana  Solana  `yaml:"solana"`
	Jupiter Jupiter `yaml:"jupiter"`
	Trading Trading `yaml:"trading"`
	Storage Storage `yaml:"storage"`
	App     App     `yaml:"app"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Solana: Solana{
			RPCURL:     "https://api.mainnet-beta.solana.com",
			WSURL:      "wss://api.mainnet-beta.solana.com",
			Commitment: "confirmed",
		},
		Jupiter: Jupiter{
			BaseURL:   "https://lite-api.jup.ag",
			PriceURL:  "https://lite-api.jup.ag/price/v3",
			RateLimit: 10,
			Burst:     1,
		},
		Trading: Trading{
			Amount:       10,
			AmountMode:   "percent",
			Slippage:     1,
			PaceInterval: 3 * time.Second,
			PriceBuffer:  1.05,
			CallTimeout:  5 * time.Second,
		},
		Storage: Storage{
			RedisStream: "trader:entries",
		},
		App: App{
			StatusAddr: ":9090",
			LogLevel:   "info",
			LockFile:   "trader.lock",
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (optional), the
// .env file at envFile (optional, missing is fine) and the process environment.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	}

	if envFile != "" {
		// godotenv.Load never overrides variables already set.
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays TRADER_* variables read through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"RPC_URL":        &c.Solana.RPCURL,
		"WS_URL":         &c.Solana.WSURL,
		"COMMITMENT":     &c.Solana.Commitment,
		"JUPITER_URL":    &c.Jupiter.BaseURL,
		"PRICE_URL":      &c.Jupiter.PriceURL,
		"AMOUNT_MODE":    &c.Trading.AmountMode,
		"POSTGRES_DSN":   &c.Storage.PostgresDSN,
		"CLICKHOUSE_DSN": &c.Storage.ClickhouseDSN,
		"REDIS_URL":      &c.Storage.RedisURL,
		"REDIS_STREAM":   &c.Storage.RedisStream,
		"STATUS_ADDR":    &c.App.StatusAddr,
		"LOG_LEVEL":      &c.App.LogLevel,
		"LOCK_FILE":      &c.App.LockFile,
		"BRIDGE_URL":     &c.App.BridgeURL,
	}
	for name, dst := range strs {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}

	floats := map[string]*float64{
		"AMOUNT":       &c.Trading.Amount,
		"SLIPPAGE":     &c.Trading.Slippage,
		"PRICE_BUFFER": &c.Trading.PriceBuffer,
		"RATE_LIMIT":   &c.Jupiter.RateLimit,
	}
	for name, dst := range floats {
		if v, ok := lookup(EnvPrefix + name); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
			}
			*dst = f
		}
	}

	durations := map[string]*time.Duration{
		"PACE_INTERVAL": &c.Trading.PaceInterval,
		"CALL_TIMEOUT":  &c.Trading.CallTimeout,
	}
	for name, dst := range durations {
		if v, ok := lookup(EnvPrefix + name); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
			}
			*dst = d
		}
	}

	bools := map[string]*bool{
		"CONFIRM":    &c.Trading.Confirm,
		"LOG_PRETTY": &c.App.LogPretty,
	}
	for name, dst := range bools {
		if v, ok := lookup(EnvPrefix + name); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
			}
			*dst = b
		}
	}

	if v, ok := lookup(EnvPrefix + "BURST"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%sBURST: %w", EnvPrefix, err)
		}
		c.Jupiter.Burst = n
	}
	return nil
}

// Validate checks required fields and ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Solana.RPCURL == "" {
		errs = append(errs, errors.New("solana.rpc_url is required"))
	}
	if c.Trading.Confirm && c.Solana.WSURL == "" {
		errs = append(errs, errors.New("solana.ws_url is required when confirm is enabled"))
	}
	if c.Jupiter.BaseURL == "" {
		errs = append(errs, errors.New("jupiter.base_url is required"))
	}
	switch c.Trading.AmountMode {
	case "percent":
		if c.Trading.Amount <= 0 || c.Trading.Amount > 100 {
			errs = append(errs, fmt.Errorf("trading.amount must be in (0, 100] in percent mode, got %v", c.Trading.Amount))
		}
	case "fiat":
		if c.Trading.Amount <= 0 {
			errs = append(errs, fmt.Errorf("trading.amount must be positive, got %v", c.Trading.Amount))
		}
		if c.Jupiter.PriceURL == "" {
			errs = append(errs, errors.New("jupiter.price_url is required in fiat mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("trading.amount_mode must be percent or fiat, got %q", c.Trading.AmountMode))
	}
	if c.Trading.Slippage < 0 || c.Trading.Slippage > 100 {
		errs = append(errs, fmt.Errorf("trading.slippage must be in [0, 100], got %v", c.Trading.Slippage))
	}
	if c.Trading.PaceInterval < 0 {
		errs = append(errs, errors.New("trading.pace_interval must not be negative"))
	}
	if c.Trading.PriceBuffer < 1 {
		errs = append(errs, fmt.Errorf("trading.price_buffer must be >= 1, got %v", c.Trading.PriceBuffer))
	}
	if c.Trading.CallTimeout <= 0 {
		errs = append(errs, errors.New("trading.call_timeout must be positive"))
	}
	if c.Jupiter.RateLimit < 0 {
		errs = append(errs, errors.New("jupiter.rate_limit must not be negative"))
	}
	return errors.Join(errs...)
}

// Package config defines the top-level configuration for the grid bot and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by GRIDBOT_* environment
// variables.
type Config struct {
	Bybit     BybitConfig     `toml:"bybit"`
	Accounts  []AccountConfig `toml:"accounts"`
	Symbols   []SymbolConfig  `toml:"symbols"`
	Grid      GridConfig      `toml:"grid"`
	Averaging AveragingConfig `toml:"averaging"`
	Zones     ZonesConfig     `toml:"zones"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Archive   ArchiveConfig   `toml:"archive"`
	Server    ServerConfig    `toml:"server"`
	Webhook   WebhookConfig   `toml:"webhook"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// BybitConfig holds Bybit API endpoints.
type BybitConfig struct {
	BaseURL string `toml:"base_url"`
	WsURL   string `toml:"ws_url"`
}

// AccountConfig holds one trading account's API credentials.
type AccountConfig struct {
	ID        string `toml:"id"`
	APIKey    string `toml:"api_key"`
	APISecret string `toml:"api_secret"`
}

// SymbolConfig holds the per-symbol strategy parameters: the grid ladder and
// the risk-zone boundaries.
type SymbolConfig struct {
	Name          string    `toml:"name"`
	GridLevels    []float64 `toml:"grid_levels"`
	OversoldMax   float64   `toml:"oversold_max"`
	OverboughtMin float64   `toml:"overbought_min"`
}

// GridConfig holds the grid placement and loop parameters.
type GridConfig struct {
	// ActivationThreshold is the minimum price deviation from a level, as a
	// fraction of the level price (0.01 == 1%), before the level arms.
	ActivationThreshold  float64  `toml:"activation_threshold"`
	MaxPositionsPerLevel int      `toml:"max_positions_per_level"`
	ProfitCloseMode      string   `toml:"profit_close_mode"`
	LoopInterval         duration `toml:"loop_interval"`
	ErrorRetryInterval   duration `toml:"error_retry_interval"`
	CancelSettleDelay    duration `toml:"cancel_settle_delay"`
}

// AveragingConfig holds the loss-averaging parameters.
type AveragingConfig struct {
	PriceDropPercent float64 `toml:"price_drop_percent"`
	Multiplier       float64 `toml:"multiplier"`
	AlertROIStep     float64 `toml:"alert_roi_step"`
}

// ZoneConfig holds one risk zone's sizing parameters.
type ZoneConfig struct {
	Leverage    float64 `toml:"leverage"`
	VolumeQuote float64 `toml:"volume_quote"`
}

// ZonesConfig maps each risk zone to its sizing parameters.
type ZonesConfig struct {
	Oversold   ZoneConfig `toml:"oversold"`
	Neutral    ZoneConfig `toml:"neutral"`
	Overbought ZoneConfig `toml:"overbought"`
}

// PostgresConfig holds PostgreSQL connection parameters for the fill
// journal.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters for the price cache.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for fill archives.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig holds the fill archiving schedule.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	RetentionDays int      `toml:"retention_days"`
	Interval      duration `toml:"interval"`
	Prefix        string   `toml:"prefix"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// WebhookConfig holds the inbound fill-webhook parameters. The webhook is
// enabled when the secret is set.
type WebhookConfig struct {
	Secret string `toml:"secret"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration wraps time.Duration so TOML values like "5s" decode directly.
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Bybit: BybitConfig{
			BaseURL: "https://api.bybit.com",
			WsURL:   "wss://stream.bybit.com/v5/public/linear",
		},
		Grid: GridConfig{
			ActivationThreshold:  0.01,
			MaxPositionsPerLevel: 1,
			ProfitCloseMode:      "breakeven",
			LoopInterval:         duration{5 * time.Second},
			ErrorRetryInterval:   duration{time.Second},
			CancelSettleDelay:    duration{500 * time.Millisecond},
		},
		Averaging: AveragingConfig{
			PriceDropPercent: 2.0,
			Multiplier:       2.0,
			AlertROIStep:     1.0,
		},
		Zones: ZonesConfig{
			Oversold:   ZoneConfig{Leverage: 2, VolumeQuote: 200},
			Neutral:    ZoneConfig{Leverage: 1, VolumeQuote: 100},
			Overbought: ZoneConfig{Leverage: 1, VolumeQuote: 50},
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "gridbot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "gridbot-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			RetentionDays: 90,
			Interval:      duration{24 * time.Hour},
			Prefix:        "fills",
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Notify: NotifyConfig{
			Events: []string{"position_opened", "position_closed", "position_averaged", "averaging_failed", "error"},
		},
		Mode:     "trade",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"trade":   true,
	"monitor": true,
	"server":  true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validCloseModes enumerates the accepted values for Grid.ProfitCloseMode.
var validCloseModes = map[string]bool{
	"level":     true,
	"breakeven": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, monitor, server, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Bybit.BaseURL == "" {
		errs = append(errs, "bybit: base_url must not be empty")
	}

	needsTrading := c.Mode == "trade" || c.Mode == "full"
	if needsTrading {
		if len(c.Accounts) == 0 {
			errs = append(errs, "accounts: at least one account is required for mode "+c.Mode)
		}
		if len(c.Symbols) == 0 {
			errs = append(errs, "symbols: at least one symbol is required for mode "+c.Mode)
		}
	}
	seen := make(map[string]bool, len(c.Accounts))
	for i, a := range c.Accounts {
		if a.ID == "" {
			errs = append(errs, fmt.Sprintf("accounts[%d]: id must not be empty", i))
			continue
		}
		if seen[a.ID] {
			errs = append(errs, fmt.Sprintf("accounts[%d]: duplicate id %q", i, a.ID))
		}
		seen[a.ID] = true
		if needsTrading && (a.APIKey == "" || a.APISecret == "") {
			errs = append(errs, fmt.Sprintf("accounts[%d]: api_key and api_secret are required for mode %s", i, c.Mode))
		}
	}
	for i, s := range c.Symbols {
		if s.Name == "" {
			errs = append(errs, fmt.Sprintf("symbols[%d]: name must not be empty", i))
		}
		if len(s.GridLevels) == 0 {
			errs = append(errs, fmt.Sprintf("symbols[%d]: grid_levels must not be empty", i))
		}
		for _, p := range s.GridLevels {
			if p <= 0 {
				errs = append(errs, fmt.Sprintf("symbols[%d]: grid level prices must be positive, got %v", i, p))
				break
			}
		}
		if s.OversoldMax >= s.OverboughtMin {
			errs = append(errs, fmt.Sprintf("symbols[%d]: oversold_max must be below overbought_min", i))
		}
	}

	if c.Grid.ActivationThreshold < 0 {
		errs = append(errs, "grid: activation_threshold must not be negative")
	}
	if c.Grid.MaxPositionsPerLevel < 1 {
		errs = append(errs, "grid: max_positions_per_level must be >= 1")
	}
	if !validCloseModes[strings.ToLower(c.Grid.ProfitCloseMode)] {
		errs = append(errs, fmt.Sprintf("grid: unknown profit_close_mode %q (valid: level, breakeven)", c.Grid.ProfitCloseMode))
	}
	if c.Grid.LoopInterval.Duration <= 0 {
		errs = append(errs, "grid: loop_interval must be positive")
	}

	if c.Averaging.Multiplier < 1 {
		errs = append(errs, "averaging: multiplier must be >= 1")
	}
	if c.Averaging.PriceDropPercent < 0 || c.Averaging.PriceDropPercent >= 100 {
		errs = append(errs, "averaging: price_drop_percent must be in [0, 100)")
	}

	for zone, zc := range map[string]ZoneConfig{
		"oversold":   c.Zones.Oversold,
		"neutral":    c.Zones.Neutral,
		"overbought": c.Zones.Overbought,
	} {
		if zc.Leverage <= 0 {
			errs = append(errs, fmt.Sprintf("zones.%s: leverage must be > 0", zone))
		}
		if zc.VolumeQuote <= 0 {
			errs = append(errs, fmt.Sprintf("zones.%s: volume_quote must be > 0", zone))
		}
	}

	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must be in [0, pool_max_conns]")
		}
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	if c.Archive.Enabled {
		if !c.Postgres.Enabled {
			errs = append(errs, "archive: requires postgres to be enabled")
		}
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archiving")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archiving")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
	}

	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

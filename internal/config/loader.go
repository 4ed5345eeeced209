package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies GRIDBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known GRIDBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file. Per-account credentials follow the pattern
// GRIDBOT_ACCOUNT_<ID>_API_KEY / _API_SECRET, with the account id
// uppercased and dashes mapped to underscores.
func applyEnvOverrides(cfg *Config) {
	// ── Bybit ──
	setStr(&cfg.Bybit.BaseURL, "GRIDBOT_BYBIT_BASE_URL")
	setStr(&cfg.Bybit.WsURL, "GRIDBOT_BYBIT_WS_URL")

	// ── Accounts ──
	for i := range cfg.Accounts {
		key := envKeyForAccount(cfg.Accounts[i].ID)
		setStr(&cfg.Accounts[i].APIKey, "GRIDBOT_ACCOUNT_"+key+"_API_KEY")
		setStr(&cfg.Accounts[i].APISecret, "GRIDBOT_ACCOUNT_"+key+"_API_SECRET")
	}

	// ── Grid ──
	setFloat64(&cfg.Grid.ActivationThreshold, "GRIDBOT_GRID_ACTIVATION_THRESHOLD")
	setInt(&cfg.Grid.MaxPositionsPerLevel, "GRIDBOT_GRID_MAX_POSITIONS_PER_LEVEL")
	setStr(&cfg.Grid.ProfitCloseMode, "GRIDBOT_GRID_PROFIT_CLOSE_MODE")
	setDuration(&cfg.Grid.LoopInterval, "GRIDBOT_GRID_LOOP_INTERVAL")
	setDuration(&cfg.Grid.ErrorRetryInterval, "GRIDBOT_GRID_ERROR_RETRY_INTERVAL")
	setDuration(&cfg.Grid.CancelSettleDelay, "GRIDBOT_GRID_CANCEL_SETTLE_DELAY")

	// ── Averaging ──
	setFloat64(&cfg.Averaging.PriceDropPercent, "GRIDBOT_AVERAGING_PRICE_DROP_PERCENT")
	setFloat64(&cfg.Averaging.Multiplier, "GRIDBOT_AVERAGING_MULTIPLIER")
	setFloat64(&cfg.Averaging.AlertROIStep, "GRIDBOT_AVERAGING_ALERT_ROI_STEP")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "GRIDBOT_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "GRIDBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "GRIDBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "GRIDBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "GRIDBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "GRIDBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "GRIDBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "GRIDBOT_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "GRIDBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "GRIDBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "GRIDBOT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "GRIDBOT_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "GRIDBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "GRIDBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "GRIDBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "GRIDBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "GRIDBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "GRIDBOT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "GRIDBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "GRIDBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "GRIDBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "GRIDBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "GRIDBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "GRIDBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "GRIDBOT_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "GRIDBOT_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "GRIDBOT_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "GRIDBOT_ARCHIVE_INTERVAL")
	setStr(&cfg.Archive.Prefix, "GRIDBOT_ARCHIVE_PREFIX")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "GRIDBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "GRIDBOT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "GRIDBOT_SERVER_CORS_ORIGINS")

	// ── Webhook ──
	setStr(&cfg.Webhook.Secret, "GRIDBOT_WEBHOOK_SECRET")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "GRIDBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "GRIDBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "GRIDBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "GRIDBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "GRIDBOT_MODE")
	setStr(&cfg.LogLevel, "GRIDBOT_LOG_LEVEL")
}

// envKeyForAccount maps an account id to its environment variable fragment.
func envKeyForAccount(id string) string {
	key := strings.ToUpper(id)
	key = strings.ReplaceAll(key, "-", "_")
	return strings.ReplaceAll(key, ".", "_")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}

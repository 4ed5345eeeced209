package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Accounts = []AccountConfig{
		{ID: "acc-1", APIKey: "key", APISecret: "secret"},
	}
	cfg.Symbols = []SymbolConfig{
		{Name: "BTCUSDT", GridLevels: []float64{100, 110}, OversoldMax: 95, OverboughtMin: 105},
	}
	return cfg
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "bogus"
	cfg.Grid.ProfitCloseMode = "sometimes"
	cfg.Averaging.Multiplier = 0.5

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "profit_close_mode")
	assert.Contains(t, err.Error(), "multiplier")
	assert.Contains(t, err.Error(), "at least one account")
}

func TestValidateRejectsInvertedZoneBounds(t *testing.T) {
	cfg := validConfig()
	cfg.Symbols[0].OversoldMax = 110
	cfg.Symbols[0].OverboughtMin = 105

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oversold_max must be below overbought_min")
}

func TestValidateRejectsDuplicateAccounts(t *testing.T) {
	cfg := validConfig()
	cfg.Accounts = append(cfg.Accounts, cfg.Accounts[0])

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate id")
}

func TestValidateArchiveNeedsPostgres(t *testing.T) {
	cfg := validConfig()
	cfg.Archive.Enabled = true
	cfg.Postgres.Enabled = false

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires postgres")
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "monitor"

[grid]
loop_interval = "10s"
activation_threshold = 0.02

[[accounts]]
id = "acc-1"
api_key = "k"
api_secret = "s"

[[symbols]]
name = "BTCUSDT"
grid_levels = [100.0, 110.0]
oversold_max = 95.0
overbought_min = 105.0
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "monitor", cfg.Mode)
	assert.Equal(t, 10*time.Second, cfg.Grid.LoopInterval.Duration)
	assert.InDelta(t, 0.02, cfg.Grid.ActivationThreshold, 1e-9)
	// Untouched sections keep their defaults.
	assert.Equal(t, "https://api.bybit.com", cfg.Bybit.BaseURL)
	assert.Equal(t, "breakeven", cfg.Grid.ProfitCloseMode)

	require.Len(t, cfg.Accounts, 1)
	require.Len(t, cfg.Symbols, 1)
	require.NoError(t, cfg.Validate())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GRIDBOT_MODE", "server")
	t.Setenv("GRIDBOT_GRID_LOOP_INTERVAL", "2s")
	t.Setenv("GRIDBOT_ACCOUNT_ACC_1_API_KEY", "env-key")
	t.Setenv("GRIDBOT_ACCOUNT_ACC_1_API_SECRET", "env-secret")

	cfg := Defaults()
	cfg.Accounts = []AccountConfig{{ID: "acc-1"}}
	applyEnvOverrides(&cfg)

	assert.Equal(t, "server", cfg.Mode)
	assert.Equal(t, 2*time.Second, cfg.Grid.LoopInterval.Duration)
	assert.Equal(t, "env-key", cfg.Accounts[0].APIKey)
	assert.Equal(t, "env-secret", cfg.Accounts[0].APISecret)
}

func TestRedactedConfigHidesSecrets(t *testing.T) {
	cfg := validConfig()
	cfg.Postgres.Password = "pg-pass"
	cfg.Webhook.Secret = "hook-secret"
	cfg.Notify.TelegramToken = "tg-token"

	red := RedactedConfig(&cfg)

	assert.Equal(t, "***", red.Accounts[0].APIKey)
	assert.Equal(t, "***", red.Accounts[0].APISecret)
	assert.Equal(t, "***", red.Postgres.Password)
	assert.Equal(t, "***", red.Webhook.Secret)
	assert.Equal(t, "***", red.Notify.TelegramToken)

	// The original stays untouched.
	assert.Equal(t, "key", cfg.Accounts[0].APIKey)
	assert.Equal(t, "hook-secret", cfg.Webhook.Secret)

	// Empty secrets stay empty rather than becoming placeholders.
	assert.Empty(t, red.Notify.DiscordWebhookURL)
}

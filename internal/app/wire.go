package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/avetrov/gridbot/internal/blob/s3"
	"github.com/avetrov/gridbot/internal/cache/redis"
	"github.com/avetrov/gridbot/internal/config"
	"github.com/avetrov/gridbot/internal/domain"
	"github.com/avetrov/gridbot/internal/engine"
	"github.com/avetrov/gridbot/internal/notify"
	"github.com/avetrov/gridbot/internal/platform/bybit"
	"github.com/avetrov/gridbot/internal/store/postgres"
)

// Dependencies bundles everything the application modes need to operate. It
// is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Exchange *bybit.Client
	Engine   *engine.GridEngine
	Notifier *notify.Notifier

	// Optional; nil when the backing service is disabled.
	FillStore  domain.FillStore
	PriceCache domain.PriceCache
	Archiver   *s3blob.Archiver
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Bybit exchange client ---
	creds := make(map[string]bybit.Credentials, len(cfg.Accounts))
	for _, acc := range cfg.Accounts {
		creds[acc.ID] = bybit.Credentials{
			APIKey:    acc.APIKey,
			APISecret: acc.APISecret,
		}
	}
	deps.Exchange = bybit.NewClient(cfg.Bybit.BaseURL, creds)

	// --- PostgreSQL fill journal ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		deps.FillStore = postgres.NewFillStore(pgClient.Pool())
	}

	// --- Redis price cache ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.PriceCache = redis.NewPriceCache(redisClient, time.Minute)
	}

	// --- S3 fill archives ---
	if cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		deps.Archiver = s3blob.NewArchiver(
			s3blob.NewWriter(s3Client),
			deps.FillStore,
			cfg.Archive.Prefix,
			logger,
		)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.New(senders, cfg.Notify.Events, logger)

	// --- Engine ---
	deps.Engine = engine.New(engineConfig(cfg), logger)
	deps.Engine.SetExchange(deps.Exchange)
	deps.Engine.SetNotifier(deps.Notifier)
	if deps.FillStore != nil {
		deps.Engine.SetFillStore(deps.FillStore)
	}
	if deps.PriceCache != nil {
		deps.Engine.SetPriceCache(deps.PriceCache)
	}

	return deps, cleanup, nil
}

// engineConfig translates the file-level configuration into the immutable
// engine configuration.
func engineConfig(cfg *config.Config) engine.Config {
	accountIDs := make([]string, 0, len(cfg.Accounts))
	for _, acc := range cfg.Accounts {
		accountIDs = append(accountIDs, acc.ID)
	}

	symbols := make([]engine.SymbolConfig, 0, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		symbols = append(symbols, engine.SymbolConfig{
			Name:          s.Name,
			GridLevels:    s.GridLevels,
			OversoldMax:   s.OversoldMax,
			OverboughtMin: s.OverboughtMin,
		})
	}

	return engine.Config{
		AccountIDs:                accountIDs,
		Symbols:                   symbols,
		ActivationThreshold:       cfg.Grid.ActivationThreshold,
		MaxPositionsPerLevel:      cfg.Grid.MaxPositionsPerLevel,
		ProfitCloseMode:           engine.CloseMode(cfg.Grid.ProfitCloseMode),
		AveragingPriceDropPercent: cfg.Averaging.PriceDropPercent,
		AveragingMultiplier:       cfg.Averaging.Multiplier,
		AveragingAlertROIStep:     cfg.Averaging.AlertROIStep,
		Zones: map[domain.RiskZone]engine.ZoneParams{
			domain.ZoneOversold:   {Leverage: cfg.Zones.Oversold.Leverage, VolumeQuote: cfg.Zones.Oversold.VolumeQuote},
			domain.ZoneNeutral:    {Leverage: cfg.Zones.Neutral.Leverage, VolumeQuote: cfg.Zones.Neutral.VolumeQuote},
			domain.ZoneOverbought: {Leverage: cfg.Zones.Overbought.Leverage, VolumeQuote: cfg.Zones.Overbought.VolumeQuote},
		},
		LoopInterval:       cfg.Grid.LoopInterval.Duration,
		ErrorRetryInterval: cfg.Grid.ErrorRetryInterval.Duration,
		CancelSettleDelay:  cfg.Grid.CancelSettleDelay.Duration,
	}
}

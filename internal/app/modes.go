package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/avetrov/gridbot/internal/feed"
	"github.com/avetrov/gridbot/internal/server"
	"github.com/avetrov/gridbot/internal/server/handler"
)

// TradeMode runs the grid engine with the live ticker feed, plus the HTTP
// server and fill archiver when enabled.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode")

	if err := deps.Engine.Initialize(ctx); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.Engine.Run(ctx)
	})

	a.startTickerFeed(ctx, g, deps)

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps)
	}
	a.startArchiver(ctx, g, deps)

	return g.Wait()
}

// MonitorMode tracks prices and serves status without placing any orders.
// The engine is initialized so levels, balances, and activation progress are
// visible, but its trading loop never starts.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	if err := deps.Engine.Initialize(ctx); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	a.startTickerFeed(ctx, g, deps)

	g.Go(func() error {
		ticker := time.NewTicker(a.cfg.Grid.LoopInterval.Duration)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				snap := deps.Engine.Snapshot()
				for symbol, price := range snap.Prices {
					a.logger.InfoContext(ctx, "monitor price",
						slog.String("symbol", symbol),
						slog.Float64("price", price),
					)
				}
			}
		}
	})

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps)
	}

	return g.Wait()
}

// ServerMode serves the HTTP API only. The engine stays idle; the status
// endpoint reports it as not running.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// FullMode is trade mode with the HTTP server always on.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	if err := deps.Engine.Initialize(ctx); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.Engine.Run(ctx)
	})

	a.startTickerFeed(ctx, g, deps)
	a.startHTTPServer(ctx, g, deps)
	a.startArchiver(ctx, g, deps)

	return g.Wait()
}

// startTickerFeed streams live prices from the public WebSocket into the
// engine. The engine also polls prices itself, so a feed outage degrades
// latency rather than correctness.
func (a *App) startTickerFeed(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if a.cfg.Bybit.WsURL == "" {
		return
	}

	symbols := make([]string, 0, len(a.cfg.Symbols))
	for _, s := range a.cfg.Symbols {
		symbols = append(symbols, s.Name)
	}

	tickerFeed := feed.NewBybitTickerFeed(
		a.cfg.Bybit.WsURL,
		symbols,
		func(ctx context.Context, symbol string, price float64) {
			deps.Engine.UpdatePrice(ctx, symbol, price)
		},
		a.logger,
	)
	g.Go(func() error {
		defer tickerFeed.Close()
		return tickerFeed.Run(ctx)
	})
}

func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	srv := server.NewServer(
		server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
		},
		server.Handlers{
			Health:  handler.NewHealthHandler(),
			Status:  handler.NewStatusHandler(a.cfg.Mode, deps.Engine),
			Webhook: handler.NewWebhookHandler(a.cfg.Webhook.Secret, deps.Engine, a.logger),
		},
		a.logger,
	)

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// startArchiver periodically moves fills older than the retention window
// from the journal into object storage.
func (a *App) startArchiver(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Archiver == nil {
		return
	}

	retention := time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour
	interval := a.cfg.Archive.Interval.Duration

	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				before := time.Now().UTC().Add(-retention)
				count, err := deps.Archiver.Archive(ctx, before)
				if err != nil {
					a.logger.WarnContext(ctx, "fill archive run failed",
						slog.String("error", err.Error()),
					)
					continue
				}
				if count > 0 {
					a.logger.InfoContext(ctx, "fills archived",
						slog.Int64("count", count),
						slog.Time("before", before),
					)
				}
			}
		}
	})
}

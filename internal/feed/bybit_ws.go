// Package feed streams live market data into the engine.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// PriceHandler is called for each ticker update.
type PriceHandler func(ctx context.Context, symbol string, price float64)

const (
	wsPingInterval  = 20 * time.Second
	wsReadTimeout   = 60 * time.Second
	wsReconnectWait = 2 * time.Second
)

// BybitTickerFeed connects to the Bybit public linear WebSocket, subscribes
// to the tickers topic for the given symbols, and invokes the handler on
// every price update. It reconnects on disconnect. The feed is a latency
// optimisation on top of the engine's own price polling, not a correctness
// requirement.
type BybitTickerFeed struct {
	wsURL     string
	symbols   []string
	onPrice   PriceHandler
	logger    *slog.Logger
	closeOnce sync.Once
	done      chan struct{}
}

// NewBybitTickerFeed creates a feed for the given symbols.
func NewBybitTickerFeed(wsURL string, symbols []string, onPrice PriceHandler, logger *slog.Logger) *BybitTickerFeed {
	return &BybitTickerFeed{
		wsURL:   wsURL,
		symbols: symbols,
		onPrice: onPrice,
		logger:  logger.With(slog.String("component", "bybit_ws_feed")),
		done:    make(chan struct{}),
	}
}

// Run connects and streams until ctx is cancelled or Close is called,
// reconnecting with a short backoff on disconnect.
func (f *BybitTickerFeed) Run(ctx context.Context) error {
	if len(f.symbols) == 0 {
		f.logger.Info("no symbols to subscribe, exiting")
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		default:
		}

		err := f.runConnection(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Warn("bybit ws disconnected, reconnecting", slog.String("error", err.Error()))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		case <-time.After(wsReconnectWait):
		}
	}
}

// Close stops the feed.
func (f *BybitTickerFeed) Close() {
	f.closeOnce.Do(func() { close(f.done) })
}

// wsMessage covers the envelope of every message the public stream sends.
type wsMessage struct {
	Topic string `json:"topic"`
	Op    string `json:"op"`
	Data  struct {
		Symbol    string `json:"symbol"`
		LastPrice string `json:"lastPrice"`
	} `json:"data"`
}

func (f *BybitTickerFeed) runConnection(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, f.wsURL, nil)
	cancel()
	if err != nil {
		return fmt.Errorf("feed: dial %s: %w", f.wsURL, err)
	}
	defer conn.Close()

	args := make([]string, 0, len(f.symbols))
	for _, s := range f.symbols {
		args = append(args, "tickers."+s)
	}
	sub := map[string]any{"op": "subscribe", "args": args}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("feed: subscribe: %w", err)
	}
	f.logger.Info("bybit ws subscribed", slog.Int("symbols", len(f.symbols)))

	// The public stream expects an application-level ping to keep the
	// connection alive.
	pingDone := make(chan struct{})
	defer close(pingDone)
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pingDone:
				return
			case <-ticker.C:
				_ = conn.WriteJSON(map[string]string{"op": "ping"})
			}
		}
	}()

	// Unblock the read loop on shutdown.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	go func() {
		select {
		case <-f.done:
			_ = conn.Close()
		case <-pingDone:
		}
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-f.done:
				return nil
			default:
			}
			return fmt.Errorf("feed: read: %w", err)
		}

		var msg wsMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			f.logger.Debug("unparseable ws message", slog.String("error", err.Error()))
			continue
		}
		if msg.Data.Symbol == "" || msg.Data.LastPrice == "" {
			// Subscription acks, pongs, and delta frames without a price.
			continue
		}
		price, err := strconv.ParseFloat(msg.Data.LastPrice, 64)
		if err != nil {
			f.logger.Debug("unparseable ticker price",
				slog.String("symbol", msg.Data.Symbol),
				slog.String("last_price", msg.Data.LastPrice),
			)
			continue
		}
		if f.onPrice != nil {
			f.onPrice(ctx, msg.Data.Symbol, price)
		}
	}
}

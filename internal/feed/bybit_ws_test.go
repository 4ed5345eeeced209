package feed

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tickerUpdate struct {
	symbol string
	price  float64
}

func TestFeedSubscribesAndDeliversPrices(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var gotSub struct {
		Op   string   `json:"op"`
		Args []string `json:"args"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &gotSub))

		// Subscription ack, then a snapshot and a delta, then a frame
		// without a price that must be skipped.
		msgs := []string{
			`{"op":"subscribe","success":true}`,
			`{"topic":"tickers.BTCUSDT","type":"snapshot","data":{"symbol":"BTCUSDT","lastPrice":"64250.5"}}`,
			`{"topic":"tickers.BTCUSDT","type":"delta","data":{"symbol":"BTCUSDT","lastPrice":"64300"}}`,
			`{"topic":"tickers.BTCUSDT","type":"delta","data":{"symbol":"BTCUSDT"}}`,
		}
		for _, m := range msgs {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(m)))
		}

		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	var mu sync.Mutex
	var updates []tickerUpdate
	got := make(chan struct{}, 4)
	onPrice := func(ctx context.Context, symbol string, price float64) {
		mu.Lock()
		updates = append(updates, tickerUpdate{symbol: symbol, price: price})
		mu.Unlock()
		got <- struct{}{}
	}

	f := NewBybitTickerFeed(wsURL, []string{"BTCUSDT"}, onPrice, slog.New(slog.NewTextHandler(io.Discard, nil)))

	done := make(chan error, 1)
	go func() { done <- f.Run(context.Background()) }()

	for i := 0; i < 2; i++ {
		select {
		case <-got:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for ticker updates")
		}
	}

	f.Close()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("feed did not stop after Close")
	}

	assert.Equal(t, "subscribe", gotSub.Op)
	assert.Equal(t, []string{"tickers.BTCUSDT"}, gotSub.Args)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, updates, 2)
	assert.Equal(t, tickerUpdate{symbol: "BTCUSDT", price: 64250.5}, updates[0])
	assert.Equal(t, tickerUpdate{symbol: "BTCUSDT", price: 64300}, updates[1])
}

func TestFeedNoSymbolsReturnsImmediately(t *testing.T) {
	f := NewBybitTickerFeed("ws://unused", nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, f.Run(context.Background()))
}

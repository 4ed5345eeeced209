package bybit

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avetrov/gridbot/internal/domain"
)

func TestSignMatchesKnownVector(t *testing.T) {
	// HMAC-SHA256("secret", "1700000000000" + "key" + "5000" + "symbol=BTCUSDT")
	got := sign("secret", "1700000000000", "key", "5000", "symbol=BTCUSDT")
	assert.Equal(t, "5daf860b89f39c4a19f66539e8ba820518cb2017946d49001b6ff312cbe73b95", got)
}

func TestSignDiffersPerPayload(t *testing.T) {
	a := sign("secret", "1", "key", "5000", "a=1")
	b := sign("secret", "1", "key", "5000", "a=2")
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 64, "lowercase hex of a 32-byte digest")
}

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, map[string]Credentials{
		"acc-1": {APIKey: "key", APISecret: "secret"},
	})
}

func TestGetAccountBalanceParsesUnifiedWallet(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v5/account/wallet-balance", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("X-BAPI-API-KEY"))
		assert.NotEmpty(t, r.Header.Get("X-BAPI-SIGN"))
		assert.NotEmpty(t, r.Header.Get("X-BAPI-TIMESTAMP"))
		io.WriteString(w, `{"retCode":0,"retMsg":"OK","result":{"list":[{"totalAvailableBalance":"1234.56","coin":[{"coin":"USDT","walletBalance":"1234.56"}]}]}}`)
	})

	got, err := c.GetAccountBalance(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.InDelta(t, 1234.56, got, 1e-9)
}

func TestGetAccountBalanceUnknownAccount(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `{"retCode":0,"retMsg":"OK","result":{"list":[]}}`)
	})

	_, err := c.GetAccountBalance(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no credentials")
}

func TestGetCurrentPrice(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v5/market/tickers", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Empty(t, r.Header.Get("X-BAPI-SIGN"), "tickers are public")
		io.WriteString(w, `{"retCode":0,"retMsg":"OK","result":{"category":"linear","list":[{"symbol":"BTCUSDT","lastPrice":"64250.5"}]}}`)
	})

	got, err := c.GetCurrentPrice(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.InDelta(t, 64250.5, got, 1e-9)
}

func TestGetCurrentPriceUnknownSymbol(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `{"retCode":0,"retMsg":"OK","result":{"list":[]}}`)
	})

	_, err := c.GetCurrentPrice(context.Background(), "NOPEUSDT")
	require.ErrorIs(t, err, domain.ErrUnknownSymbol)
}

func TestPlaceLimitOrderSignsBody(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v5/order/create", r.URL.Path)

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		ts := r.Header.Get("X-BAPI-TIMESTAMP")
		want := sign("secret", ts, "key", defaultRecvWindow, string(body))
		assert.Equal(t, want, r.Header.Get("X-BAPI-SIGN"))

		assert.Contains(t, string(body), `"qty":"0.500"`)
		assert.Contains(t, string(body), `"side":"Buy"`)
		assert.Contains(t, string(body), `"timeInForce":"GTC"`)

		io.WriteString(w, `{"retCode":0,"retMsg":"OK","result":{"orderId":"abc-123"}}`)
	})

	id, err := c.PlaceLimitOrder(context.Background(), "acc-1", "BTCUSDT", domain.OrderSideBuy, 0.5, 64000)
	require.NoError(t, err)
	assert.Equal(t, "abc-123", id)
}

func TestCancelOrderGoneIsNotAnError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `{"retCode":110001,"retMsg":"order not exists or too late to cancel"}`)
	})

	ok, err := c.CancelOrder(context.Background(), "acc-1", "BTCUSDT", "gone")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckOrderStatusFallsBackToHistory(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v5/order/realtime":
			io.WriteString(w, `{"retCode":0,"retMsg":"OK","result":{"list":[]}}`)
		case "/v5/order/history":
			io.WriteString(w, `{"retCode":0,"retMsg":"OK","result":{"list":[{"orderId":"abc","orderStatus":"Filled"}]}}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	status, err := c.CheckOrderStatus(context.Background(), "acc-1", "BTCUSDT", "abc")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusFilled, status)
}

func TestSetLeverageNotModifiedIsSuccess(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `{"retCode":110043,"retMsg":"leverage not modified"}`)
	})

	require.NoError(t, c.SetLeverage(context.Background(), "acc-1", "BTCUSDT", 3))
}

func TestCanPlaceOrderRejectsExistingPosition(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `{"retCode":0,"retMsg":"OK","result":{"list":[{"symbol":"BTCUSDT","side":"Buy","size":"0.5"}]}}`)
	})

	ok, err := c.CanPlaceOrder(context.Background(), "acc-1", "BTCUSDT", nil)
	require.NoError(t, err)
	assert.False(t, ok)

	// Orders serving an existing position are always allowed.
	ok, err = c.CanPlaceOrder(context.Background(), "acc-1", "BTCUSDT", &domain.Position{})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMapOrderStatus(t *testing.T) {
	assert.Equal(t, domain.OrderStatusFilled, mapOrderStatus("Filled"))
	assert.Equal(t, domain.OrderStatusCancelled, mapOrderStatus("Cancelled"))
	assert.Equal(t, domain.OrderStatusCancelled, mapOrderStatus("Rejected"))
	assert.Equal(t, domain.OrderStatusPending, mapOrderStatus("New"))
	assert.Equal(t, domain.OrderStatusPending, mapOrderStatus("PartiallyFilled"))
}

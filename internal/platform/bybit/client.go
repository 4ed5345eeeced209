package bybit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/avetrov/gridbot/internal/domain"
)

const (
	defaultRecvWindow = "5000"
	categoryLinear    = "linear"
)

// Credentials is one account's API key pair.
type Credentials struct {
	APIKey    string
	APISecret string
}

// Client is the REST client for the Bybit v5 API. It serves the whole
// account pool: every call takes the account id and signs with that
// account's key pair.
type Client struct {
	baseURL    string
	creds      map[string]Credentials
	httpClient *http.Client
}

var _ domain.Exchange = (*Client)(nil)

// NewClient creates a Bybit REST client for the given accounts.
//
// baseURL is the API root, e.g. "https://api.bybit.com".
func NewClient(baseURL string, creds map[string]Credentials) *Client {
	return &Client{
		baseURL: baseURL,
		creds:   creds,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetAccountBalance returns the account's available USDT balance on the
// unified trading account.
func (c *Client) GetAccountBalance(ctx context.Context, accountID string) (float64, error) {
	params := url.Values{}
	params.Set("accountType", "UNIFIED")
	params.Set("coin", "USDT")

	var resp walletBalanceResponse
	if err := c.doSigned(ctx, accountID, http.MethodGet, "/v5/account/wallet-balance", params, nil, &resp); err != nil {
		return 0, fmt.Errorf("bybit: wallet balance for %s: %w", accountID, err)
	}
	if len(resp.Result.List) == 0 {
		return 0, nil
	}

	acct := resp.Result.List[0]
	if acct.TotalAvailableBalance != "" {
		return parsePrice(acct.TotalAvailableBalance)
	}
	for _, coin := range acct.Coin {
		if coin.Coin == "USDT" {
			return parsePrice(coin.WalletBalance)
		}
	}
	return 0, nil
}

// GetCurrentPrice returns the last traded price of a linear perpetual
// symbol. Tickers are public; no signing needed.
func (c *Client) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{}
	params.Set("category", categoryLinear)
	params.Set("symbol", symbol)

	var resp tickersResponse
	if err := c.doPublic(ctx, "/v5/market/tickers", params, &resp); err != nil {
		return 0, fmt.Errorf("bybit: tickers for %s: %w", symbol, err)
	}
	if len(resp.Result.List) == 0 {
		return 0, fmt.Errorf("bybit: tickers for %s: %w", symbol, domain.ErrUnknownSymbol)
	}
	return parsePrice(resp.Result.List[0].LastPrice)
}

// PlaceLimitOrder places a GTC limit order and returns the exchange order
// id. A fresh link id ties the order back to us across reconnects.
func (c *Client) PlaceLimitOrder(ctx context.Context, accountID, symbol string, side domain.OrderSide, qty, price float64) (string, error) {
	req := createOrderRequest{
		Category:    categoryLinear,
		Symbol:      symbol,
		Side:        string(side),
		OrderType:   string(domain.OrderKindLimit),
		Qty:         formatQty(qty),
		Price:       formatPrice(price),
		TimeInForce: "GTC",
		OrderLinkID: uuid.NewString(),
	}

	var resp createOrderResponse
	if err := c.doSigned(ctx, accountID, http.MethodPost, "/v5/order/create", nil, req, &resp); err != nil {
		return "", fmt.Errorf("bybit: create order %s %s: %w", symbol, side, err)
	}
	return resp.Result.OrderID, nil
}

// CancelOrder cancels a resting order. An order that is already filled or
// gone reports false without an error, so the caller can treat the cancel
// as settled either way.
func (c *Client) CancelOrder(ctx context.Context, accountID, symbol, orderID string) (bool, error) {
	req := cancelOrderRequest{
		Category: categoryLinear,
		Symbol:   symbol,
		OrderID:  orderID,
	}

	var resp cancelOrderResponse
	err := c.doSigned(ctx, accountID, http.MethodPost, "/v5/order/cancel", nil, req, &resp)
	if err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) {
			// Order not found or already in a terminal state.
			return false, nil
		}
		return false, fmt.Errorf("bybit: cancel order %s: %w", orderID, err)
	}
	return true, nil
}

// CheckOrderStatus resolves the order's lifecycle state, consulting the
// realtime book first and falling back to order history for terminal
// orders Bybit has already evicted from it.
func (c *Client) CheckOrderStatus(ctx context.Context, accountID, symbol, orderID string) (domain.OrderStatus, error) {
	params := url.Values{}
	params.Set("category", categoryLinear)
	params.Set("symbol", symbol)
	params.Set("orderId", orderID)

	for _, path := range []string{"/v5/order/realtime", "/v5/order/history"} {
		var resp orderListResponse
		if err := c.doSigned(ctx, accountID, http.MethodGet, path, params, nil, &resp); err != nil {
			return "", fmt.Errorf("bybit: order status %s: %w", orderID, err)
		}
		for _, o := range resp.Result.List {
			if o.OrderID == orderID {
				return mapOrderStatus(o.OrderStatus), nil
			}
		}
	}
	return "", fmt.Errorf("bybit: order status %s: %w", orderID, domain.ErrNotFound)
}

// CanPlaceOrder reports whether the account may take a new order on the
// symbol. For a fresh entry the account must hold no position on the
// symbol; for orders serving an existing position it always may.
func (c *Client) CanPlaceOrder(ctx context.Context, accountID, symbol string, position *domain.Position) (bool, error) {
	if position != nil {
		return true, nil
	}

	params := url.Values{}
	params.Set("category", categoryLinear)
	params.Set("symbol", symbol)

	var resp positionListResponse
	if err := c.doSigned(ctx, accountID, http.MethodGet, "/v5/position/list", params, nil, &resp); err != nil {
		return false, fmt.Errorf("bybit: position list for %s: %w", accountID, err)
	}
	for _, p := range resp.Result.List {
		size, err := parsePrice(p.Size)
		if err == nil && size > 0 {
			return false, nil
		}
	}
	return true, nil
}

// SetLeverage configures the symbol's leverage on both sides. Asking for
// the leverage already in effect is not an error.
func (c *Client) SetLeverage(ctx context.Context, accountID, symbol string, leverage float64) error {
	lev := strconv.FormatFloat(leverage, 'f', -1, 64)
	req := setLeverageRequest{
		Category:     categoryLinear,
		Symbol:       symbol,
		BuyLeverage:  lev,
		SellLeverage: lev,
	}

	err := c.doSigned(ctx, accountID, http.MethodPost, "/v5/position/set-leverage", nil, req, &struct{ response }{})
	if err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.code == retCodeLeverageNotModified {
			return nil
		}
		return fmt.Errorf("bybit: set leverage for %s: %w", symbol, err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// apiError is a non-zero retCode from the Bybit API.
type apiError struct {
	code int
	msg  string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.code, e.msg)
}

// doPublic sends an unsigned GET against a public market-data endpoint.
func (c *Client) doPublic(ctx context.Context, path string, params url.Values, out interface{ envelope() response }) error {
	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	return c.send(req, out)
}

// doSigned builds, signs, sends, and decodes an authenticated request for
// the given account.
func (c *Client) doSigned(ctx context.Context, accountID, method, path string, params url.Values, reqBody any, out interface{ envelope() response }) error {
	creds, ok := c.creds[accountID]
	if !ok {
		return fmt.Errorf("no credentials for account %s", accountID)
	}

	query := ""
	if len(params) > 0 {
		query = params.Encode()
	}

	var bodyBytes []byte
	if reqBody != nil {
		var err error
		bodyBytes, err = json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
	}

	fullURL := c.baseURL + path
	if query != "" {
		fullURL += "?" + query
	}

	var bodyReader io.Reader
	if bodyBytes != nil {
		bodyReader = bytes.NewReader(bodyBytes)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	payload := query
	if method == http.MethodPost {
		payload = string(bodyBytes)
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	req.Header.Set("X-BAPI-API-KEY", creds.APIKey)
	req.Header.Set("X-BAPI-TIMESTAMP", ts)
	req.Header.Set("X-BAPI-RECV-WINDOW", defaultRecvWindow)
	req.Header.Set("X-BAPI-SIGN", sign(creds.APISecret, ts, creds.APIKey, defaultRecvWindow, payload))

	return c.send(req, out)
}

// send executes the request, decodes the envelope, and surfaces non-zero
// retCodes as apiError values.
func (c *Client) send(req *http.Request, out interface{ envelope() response }) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("http status %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if env := out.envelope(); env.RetCode != 0 {
		return &apiError{code: env.RetCode, msg: env.RetMsg}
	}
	return nil
}

// mapOrderStatus translates Bybit's order states onto the engine's
// three-state lifecycle.
func mapOrderStatus(s string) domain.OrderStatus {
	switch s {
	case "Filled":
		return domain.OrderStatusFilled
	case "Cancelled", "Rejected", "Deactivated", "PartiallyFilledCanceled":
		return domain.OrderStatusCancelled
	default:
		// New, PartiallyFilled, Untriggered, Created.
		return domain.OrderStatusPending
	}
}

func parsePrice(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse number %q: %w", s, err)
	}
	return v, nil
}

func formatQty(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

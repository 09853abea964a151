package alpaca

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/wonny/newsquant/internal/contracts"
	"github.com/wonny/newsquant/pkg/config"
)

// Mode implements contracts.Broker
func (c *Client) Mode() string {
	return c.mode
}

// Connect opens a session after checking the endpoint and the account
func (c *Client) Connect(ctx context.Context) error {
	if c.mode != config.PaperTradingMode {
		return fmt.Errorf("%w: %s", ErrLiveEndpoint, c.cfg.BaseURL)
	}

	var acct account
	if err := c.getJSON(ctx, c.cfg.BaseURL, "/v2/account", nil, &acct); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if acct.TradingBlocked || acct.AccountBlocked || !strings.EqualFold(acct.Status, "ACTIVE") {
		return fmt.Errorf("%w: status=%s", ErrAccountBlocked, acct.Status)
	}

	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	c.logger.WithField("account_status", acct.Status).Debug("Alpaca session connected")
	return nil
}

// Disconnect closes the session; REST calls hold no connection state
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
}

// Quote returns the latest trade price
func (c *Client) Quote(ctx context.Context, ticker string) (float64, error) {
	if err := c.requireSession(); err != nil {
		return 0, err
	}

	var lt latestTrade
	path := "/v2/stocks/" + url.PathEscape(ticker) + "/trades/latest"
	if err := c.getJSON(ctx, c.cfg.DataURL, path, url.Values{"feed": {c.cfg.Feed}}, &lt); err != nil {
		return 0, fmt.Errorf("quote %s: %w", ticker, err)
	}
	return lt.Trade.Price, nil
}

// SubmitMarketBuy places a day market order for a fractional quantity
func (c *Client) SubmitMarketBuy(ctx context.Context, ticker string, qty float64) (string, error) {
	if err := c.requireSession(); err != nil {
		return "", err
	}
	if c.mode != config.PaperTradingMode {
		return "", ErrLiveEndpoint
	}

	req := orderRequest{
		Symbol:      ticker,
		Qty:         FormatQty(qty),
		Side:        "buy",
		Type:        "market",
		TimeInForce: "day",
	}

	var o order
	if err := c.orders.PostJSON(ctx, c.tradingURL("/v2/orders"), req, &o); err != nil {
		return "", fmt.Errorf("submit order %s: %w", ticker, err)
	}
	if o.ID == "" {
		return "", fmt.Errorf("submit order %s: empty order id", ticker)
	}

	c.logger.WithFields(map[string]interface{}{
		"ticker":   ticker,
		"qty":      req.Qty,
		"order_id": o.ID,
		"status":   o.Status,
	}).Info("Order submitted")
	return o.ID, nil
}

// OrderStatus reads back the status of an order
func (c *Client) OrderStatus(ctx context.Context, orderID string) (string, error) {
	if err := c.requireSession(); err != nil {
		return "", err
	}

	var o order
	if err := c.getJSON(ctx, c.cfg.BaseURL, "/v2/orders/"+url.PathEscape(orderID), nil, &o); err != nil {
		return "", fmt.Errorf("order status %s (http %d): %w", orderID, statusCode(err), err)
	}
	return o.Status, nil
}

// FormatQty renders qty with the 9 decimal places fractional orders accept
func FormatQty(qty float64) string {
	truncated := math.Floor(qty*1e9) / 1e9
	return strconv.FormatFloat(truncated, 'f', -1, 64)
}

// Account implements contracts.AccountReader
func (c *Client) Account(ctx context.Context) (*contracts.AccountSnapshot, error) {
	var acct account
	if err := c.getJSON(ctx, c.cfg.BaseURL, "/v2/account", nil, &acct); err != nil {
		return nil, fmt.Errorf("account: %w", err)
	}
	return &contracts.AccountSnapshot{
		NetLiquidation: parseAmount(acct.Equity),
		TotalCash:      parseAmount(acct.Cash),
		BuyingPower:    parseAmount(acct.BuyingPower),
		InitMarginReq:  parseAmount(acct.InitialMargin),
		MaintMarginReq: parseAmount(acct.MaintenanceMargin),
	}, nil
}

// Positions implements contracts.AccountReader
func (c *Client) Positions(ctx context.Context) ([]contracts.PositionSnapshot, error) {
	var raw []position
	if err := c.getJSON(ctx, c.cfg.BaseURL, "/v2/positions", nil, &raw); err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}

	out := make([]contracts.PositionSnapshot, 0, len(raw))
	for _, p := range raw {
		qty := parseAmount(p.Qty)
		if p.Symbol == "" || qty == nil {
			continue
		}
		out = append(out, contracts.PositionSnapshot{
			Ticker:        p.Symbol,
			Position:      *qty,
			AvgCost:       parseAmount(p.AvgEntryPrice),
			MarketPrice:   parseAmount(p.CurrentPrice),
			MarketValue:   parseAmount(p.MarketValue),
			UnrealizedPnL: parseAmount(p.UnrealizedPL),
		})
	}
	return out, nil
}

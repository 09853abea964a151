package alpaca

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/wonny/newsquant/pkg/config"
	"github.com/wonny/newsquant/pkg/httputil"
	"github.com/wonny/newsquant/pkg/logger"
	"github.com/wonny/newsquant/pkg/redis"
)

const (
	headerKeyID  = "APCA-API-KEY-ID"
	headerSecret = "APCA-API-SECRET-KEY"

	// requests per second kept under the 200/min account budget
	pacePerSecond = 3
	paceBurst     = 5
)

var (
	// ErrNotConnected is returned by session calls made before Connect
	ErrNotConnected = errors.New("alpaca session not connected")

	// ErrLiveEndpoint is returned when the trading endpoint is not a paper endpoint
	ErrLiveEndpoint = errors.New("alpaca trading endpoint is not a paper endpoint")

	// ErrAccountBlocked is returned when the account cannot trade
	ErrAccountBlocked = errors.New("alpaca account cannot trade")
)

// Client handles communication with the Alpaca REST APIs
// ⭐ SSOT: Alpaca API 호출은 이 클라이언트에서만
type Client struct {
	cfg    config.BrokerConfig
	logger *logger.Logger

	// reads retry on 5xx/429; order submission never retries
	reads  *httputil.Client
	orders *httputil.Client

	mode string

	mu        sync.Mutex
	connected bool
}

// NewClient creates a new Alpaca client
func NewClient(cfg config.BrokerConfig, timeout time.Duration, log *logger.Logger) *Client {
	log = log.WithComponent("alpaca")
	build := func() *httputil.Client {
		return httputil.New(log, timeout).
			WithHeader(headerKeyID, cfg.KeyID).
			WithHeader(headerSecret, cfg.SecretKey).
			WithPacing(pacePerSecond, paceBurst)
	}

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.DataURL = strings.TrimRight(cfg.DataURL, "/")
	if cfg.Feed == "" {
		cfg.Feed = "iex"
	}

	return &Client{
		cfg:    cfg,
		logger: log,
		reads:  build(),
		orders: build().DisableRetry(),
		mode:   ModeForEndpoint(cfg.BaseURL),
	}
}

// WithRateLimiter shares the broker request budget across processes
func (c *Client) WithRateLimiter(limiter *redis.RateLimiter) *Client {
	c.reads.WithRateLimiter(limiter, redis.BrokerRateLimit)
	c.orders.WithRateLimiter(limiter, redis.BrokerRateLimit)
	return c
}

// WithMode overrides the mode derived from the endpoint host
func (c *Client) WithMode(mode string) *Client {
	c.mode = mode
	return c
}

// ModeForEndpoint returns "paper" only for Alpaca's paper trading host
func ModeForEndpoint(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "unknown"
	}
	if strings.HasPrefix(strings.ToLower(u.Hostname()), "paper-api.") {
		return config.PaperTradingMode
	}
	return "live"
}

func (c *Client) getJSON(ctx context.Context, base, path string, query url.Values, out any) error {
	endpoint := base + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	if err := c.reads.GetJSON(ctx, endpoint, out); err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	return nil
}

func (c *Client) isConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Client) requireSession() error {
	if !c.isConnected() {
		return ErrNotConnected
	}
	return nil
}

func (c *Client) tradingURL(path string) string {
	return c.cfg.BaseURL + path
}

// statusCode extracts the HTTP status of a failed call, 0 otherwise
func statusCode(err error) int {
	var se *httputil.StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

package deepseek

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/wonny/newsquant/internal/analyzer"
	"github.com/wonny/newsquant/internal/contracts"
	"github.com/wonny/newsquant/pkg/config"
	"github.com/wonny/newsquant/pkg/httputil"
	"github.com/wonny/newsquant/pkg/logger"
	"github.com/wonny/newsquant/pkg/redis"
)

// ErrMisconfigured is returned when the API key, endpoint or model is missing
var ErrMisconfigured = errors.New("deepseek client misconfigured")

const systemPrompt = `You are a financial news analyst. You receive a JSON array of US market headlines.
Return ONLY a JSON array with exactly one object per headline, in the same order.
Each object has:
  "ticker": the primary US-listed ticker the headline is about, or null,
  "sentiment": a number from -1 (very bearish) to 1 (very bullish),
  "summary": a summary of at most 60 characters,
  "risk_tags": an array of short lowercase risk labels (may be empty).
No prose, no code fences.`

// Client implements contracts.AnalysisClient over an OpenAI-compatible chat API
// ⭐ SSOT: 분석 API 호출은 이 클라이언트에서만
type Client struct {
	http    *httputil.Client
	cfg     config.AnalysisConfig
	logger  *logger.Logger
	limiter *redis.RateLimiter
}

var _ contracts.AnalysisClient = (*Client)(nil)

// NewClient creates a new analysis client. Retries are left to the analyzer.
func NewClient(cfg config.AnalysisConfig, log *logger.Logger) *Client {
	log = log.WithComponent("deepseek")
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		http: httputil.New(log, cfg.Timeout).
			DisableRetry().
			WithHeader("Authorization", "Bearer "+cfg.APIKey),
		cfg:    cfg,
		logger: log,
	}
}

// WithRateLimiter shares the per-minute request budget across processes
func (c *Client) WithRateLimiter(limiter *redis.RateLimiter) *Client {
	if c.cfg.RateLimit > 0 {
		c.http.WithRateLimiter(limiter, redis.AnalysisRateLimit(c.cfg.RateLimit))
	}
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// AnalyzeBatch sends titles as one chat completion and returns the raw elements
func (c *Client) AnalyzeBatch(ctx context.Context, titles []string) ([]map[string]any, error) {
	if c.cfg.APIKey == "" || c.cfg.BaseURL == "" || c.cfg.Model == "" {
		return nil, ErrMisconfigured
	}

	payload, err := json.Marshal(titles)
	if err != nil {
		return nil, fmt.Errorf("marshal titles: %w", err)
	}

	req := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: string(payload)},
		},
	}

	var resp chatResponse
	if err := c.http.PostJSON(ctx, c.cfg.BaseURL+"/chat/completions", req, &resp); err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", analyzer.ErrMalformedResponse)
	}

	c.logger.WithFields(map[string]interface{}{
		"titles":            len(titles),
		"prompt_tokens":     resp.Usage.PromptTokens,
		"completion_tokens": resp.Usage.CompletionTokens,
	}).Debug("Chat completion received")

	return ParseContent(resp.Choices[0].Message.Content)
}

// ParseContent decodes the model output into loosely typed elements.
// Code fences are stripped and an object wrapping a single array is unwrapped.
// Anything after the JSON value makes the output malformed.
// Non-object elements come back as nil so batch validation can reject them.
func ParseContent(content string) ([]map[string]any, error) {
	content = stripFences(content)

	dec := json.NewDecoder(bytes.NewReader([]byte(content)))
	dec.UseNumber()

	var decoded any
	if err := dec.Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", analyzer.ErrMalformedResponse, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing content after JSON value", analyzer.ErrMalformedResponse)
	}

	if obj, ok := decoded.(map[string]any); ok {
		decoded = singleArray(obj)
	}

	arr, ok := decoded.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected a JSON array", analyzer.ErrMalformedResponse)
	}

	out := make([]map[string]any, len(arr))
	for i, elem := range arr {
		if m, ok := elem.(map[string]any); ok {
			out[i] = m
		}
	}
	return out, nil
}

func singleArray(obj map[string]any) any {
	var found any
	for _, v := range obj {
		if arr, ok := v.([]any); ok {
			if found != nil {
				return obj
			}
			found = arr
		}
	}
	if found == nil {
		return obj
	}
	return found
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wonny/newsquant/internal/contracts"
	"github.com/wonny/newsquant/pkg/httputil"
	"github.com/wonny/newsquant/pkg/logger"
)

// DefaultRedditBaseURL is the public listing host
const DefaultRedditBaseURL = "https://www.reddit.com"

// RedditCollector reads the newest posts of one subreddit
type RedditCollector struct {
	baseURL   string
	subreddit string
	limit     int
	client    *httputil.Client
	userAgent string
	logger    *logger.Logger
	now       func() time.Time
}

// NewRedditCollector creates a collector for r/<subreddit>
func NewRedditCollector(baseURL, subreddit string, limit int, client *httputil.Client, userAgent string, log *logger.Logger) *RedditCollector {
	if baseURL == "" {
		baseURL = DefaultRedditBaseURL
	}
	if limit <= 0 {
		limit = 50
	}
	return &RedditCollector{
		baseURL:   strings.TrimRight(baseURL, "/"),
		subreddit: subreddit,
		limit:     limit,
		client:    client,
		userAgent: userAgent,
		logger:    log.WithComponent("collector").WithField("source", "reddit_"+subreddit),
		now:       time.Now,
	}
}

// Name returns "reddit_<subreddit>"
func (c *RedditCollector) Name() string {
	return "reddit_" + c.subreddit
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data struct {
				Title     string `json:"title"`
				Permalink string `json:"permalink"`
				URL       string `json:"url"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// Collect fetches /r/<sub>/new.json. Failures are logged and yield an empty slice.
func (c *RedditCollector) Collect(ctx context.Context) []contracts.RawItem {
	endpoint := fmt.Sprintf("%s/r/%s/new.json?%s", c.baseURL, url.PathEscape(c.subreddit),
		url.Values{"limit": {fmt.Sprint(c.limit)}}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		c.logger.WithError(err).Warn("Reddit request build failed")
		return []contracts.RawItem{}
	}
	req.Header.Set("User-Agent", c.userAgent)

	var listing redditListing
	if err := c.client.DoJSON(req, &listing); err != nil {
		c.logger.WithError(err).Warn("Reddit fetch failed")
		return []contracts.RawItem{}
	}

	fetchedAt := c.now().UTC()
	items := make([]contracts.RawItem, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		title := strings.TrimSpace(child.Data.Title)
		if title == "" {
			continue
		}
		link := child.Data.URL
		if child.Data.Permalink != "" {
			link = DefaultRedditBaseURL + child.Data.Permalink
		}
		items = append(items, contracts.RawItem{
			Source:    c.Name(),
			Title:     title,
			URL:       link,
			FetchedAt: fetchedAt,
		})
	}

	c.logger.WithField("count", len(items)).Debug("Reddit collected")
	return items
}

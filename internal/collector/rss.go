package collector

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/wonny/newsquant/internal/contracts"
	"github.com/wonny/newsquant/pkg/httputil"
	"github.com/wonny/newsquant/pkg/logger"
)

// RSSCollector reads one RSS 2.0 or Atom feed
type RSSCollector struct {
	feed      Feed
	client    *httputil.Client
	userAgent string
	logger    *logger.Logger
	now       func() time.Time
}

// NewRSSCollector creates a collector for one feed
func NewRSSCollector(feed Feed, client *httputil.Client, userAgent string, log *logger.Logger) *RSSCollector {
	return &RSSCollector{
		feed:      feed,
		client:    client,
		userAgent: userAgent,
		logger:    log.WithComponent("collector").WithField("source", feed.Name),
		now:       time.Now,
	}
}

// Name returns the feed name
func (c *RSSCollector) Name() string {
	return c.feed.Name
}

// Collect fetches the feed. Failures are logged and yield an empty slice.
func (c *RSSCollector) Collect(ctx context.Context) []contracts.RawItem {
	doc, err := c.fetch(ctx)
	if err != nil {
		c.logger.WithError(err).Warn("RSS fetch failed")
		return []contracts.RawItem{}
	}

	items := ParseFeed(doc, c.feed.Name, c.now().UTC())
	c.logger.WithField("count", len(items)).Debug("RSS collected")
	return items
}

func (c *RSSCollector) fetch(ctx context.Context) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.feed.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return doc, nil
}

// ParseFeed extracts titled entries from an RSS <item> or Atom <entry> list
func ParseFeed(doc *goquery.Document, source string, fetchedAt time.Time) []contracts.RawItem {
	items := make([]contracts.RawItem, 0)

	doc.Find("item, entry").Each(func(_ int, s *goquery.Selection) {
		title := cleanText(s.ChildrenFiltered("title").First().Text())
		if title == "" {
			return
		}
		items = append(items, contracts.RawItem{
			Source:    source,
			Title:     title,
			URL:       entryLink(s),
			FetchedAt: fetchedAt,
		})
	})

	return items
}

// entryLink reads <link>. The HTML parser treats <link> as a void element, so
// an RSS link's URL ends up in the text node right after it.
func entryLink(s *goquery.Selection) string {
	link := s.ChildrenFiltered("link").First()
	if link.Length() == 0 {
		return cleanText(s.ChildrenFiltered("guid").First().Text())
	}
	if href, ok := link.Attr("href"); ok {
		return strings.TrimSpace(href)
	}
	if text := cleanText(link.Text()); text != "" {
		return text
	}
	if next := link.Nodes[0].NextSibling; next != nil && next.Type == html.TextNode {
		return cleanText(next.Data)
	}
	return ""
}

// cleanText strips CDATA wrappers left by the HTML tokenizer and trims whitespace
func cleanText(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "<![CDATA[")
	s = strings.TrimSuffix(s, "]]>")
	return strings.TrimSpace(s)
}

package brief

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/wonny/newsquant/internal/contracts"
	"github.com/wonny/newsquant/pkg/logger"
)

// AlertStore persists keyword hits
type AlertStore interface {
	InsertAlerts(ctx context.Context, alerts []contracts.NewsAlert) error
}

// MatchKeywords returns one alert per (item, keyword) whose keyword occurs in the title, case-insensitively
func MatchKeywords(items []contracts.RawItem, keywords []string, now time.Time) []contracts.NewsAlert {
	normalized := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			normalized = append(normalized, k)
		}
	}

	alerts := make([]contracts.NewsAlert, 0)
	for _, item := range items {
		title := strings.ToLower(item.Title)
		for _, k := range normalized {
			if strings.Contains(title, k) {
				alerts = append(alerts, contracts.NewsAlert{
					Keyword:   k,
					Source:    item.Source,
					Title:     item.Title,
					URL:       item.URL,
					CreatedAt: now.UTC(),
				})
			}
		}
	}
	return alerts
}

// Alerter records keyword hits over newly ingested items and appends them to the daily news file
type Alerter struct {
	store    AlertStore
	keywords []string
	newsDir  string
	logger   *logger.Logger
}

// NewAlerter creates a new alerter. An empty newsDir disables the markdown file.
func NewAlerter(store AlertStore, keywords []string, newsDir string, log *logger.Logger) *Alerter {
	return &Alerter{
		store:    store,
		keywords: keywords,
		newsDir:  newsDir,
		logger:   log.WithComponent("alerts"),
	}
}

// Process matches, stores and writes hits; it returns the number of hits
func (a *Alerter) Process(ctx context.Context, items []contracts.RawItem, now time.Time) (int, error) {
	hits := MatchKeywords(items, a.keywords, now)
	if len(hits) == 0 {
		return 0, nil
	}

	if err := a.store.InsertAlerts(ctx, hits); err != nil {
		return 0, fmt.Errorf("store alerts: %w", err)
	}

	if a.newsDir != "" {
		path, err := AppendNewsMarkdown(a.newsDir, now, hits)
		if err != nil {
			return len(hits), err
		}
		a.logger.WithFields(map[string]interface{}{
			"hits": len(hits),
			"path": path,
		}).Info("News alerts written")
	}
	return len(hits), nil
}

// AppendNewsMarkdown appends a timestamped section grouped by keyword to <dir>/<day>-news.md
func AppendNewsMarkdown(dir string, now time.Time, hits []contracts.NewsAlert) (string, error) {
	if len(hits) == 0 {
		return "", nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create news dir: %w", err)
	}

	now = now.UTC()
	path := filepath.Join(dir, now.Format("2006-01-02")+"-news.md")

	sorted := append([]contracts.NewsAlert(nil), hits...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Keyword != b.Keyword {
			return a.Keyword < b.Keyword
		}
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return a.Title < b.Title
	})

	var sb strings.Builder
	fmt.Fprintf(&sb, "\n## %s\n", now.Format(time.RFC3339))
	current := ""
	for _, h := range sorted {
		if h.Keyword != current {
			current = h.Keyword
			fmt.Fprintf(&sb, "\n### keyword: %s\n", current)
		}
		sb.WriteString(alertLine(h, false))
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("open news file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(sb.String()); err != nil {
		return "", fmt.Errorf("write news file: %w", err)
	}
	return path, nil
}

func alertLine(a contracts.NewsAlert, withTime bool) string {
	title := strings.TrimSpace(strings.ReplaceAll(a.Title, "\n", " "))
	line := "- " + title
	if a.URL != "" {
		line = fmt.Sprintf("- [%s](%s)", title, a.URL)
	}
	line += " - " + a.Source
	if withTime {
		line += " (" + a.CreatedAt.Format(time.RFC3339) + ")"
	}
	return line + "\n"
}

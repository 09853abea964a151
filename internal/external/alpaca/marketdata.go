package alpaca

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/wonny/newsquant/internal/contracts"
	"github.com/wonny/newsquant/internal/marketcal"
)

// maxBarPages bounds pagination of one bars request
const maxBarPages = 20

// DailyCloses implements contracts.PriceSource with split-adjusted daily bars
func (c *Client) DailyCloses(ctx context.Context, ticker string, from, to time.Time) (map[string]float64, error) {
	closes := make(map[string]float64)
	query := url.Values{
		"timeframe":  {"1Day"},
		"start":      {from.Format("2006-01-02")},
		"end":        {to.Format("2006-01-02")},
		"adjustment": {"split"},
		"feed":       {c.cfg.Feed},
		"limit":      {"10000"},
	}
	path := "/v2/stocks/" + url.PathEscape(ticker) + "/bars"

	for page := 0; page < maxBarPages; page++ {
		var resp barsPage
		if err := c.getJSON(ctx, c.cfg.DataURL, path, query, &resp); err != nil {
			return nil, fmt.Errorf("bars %s: %w", ticker, err)
		}
		for _, b := range resp.Bars {
			closes[contracts.SessionKey(marketcal.SessionDate(b.Timestamp))] = b.Close
		}
		if resp.NextPageToken == "" {
			break
		}
		query.Set("page_token", resp.NextPageToken)
	}

	c.logger.WithFields(map[string]interface{}{
		"ticker": ticker,
		"count":  len(closes),
	}).Debug("Fetched daily bars")
	return closes, nil
}

// Sessions implements contracts.MarketCalendar from /v2/calendar
func (c *Client) Sessions(ctx context.Context, from, to time.Time) ([]time.Time, error) {
	var days []calendarDay
	query := url.Values{
		"start": {from.Format("2006-01-02")},
		"end":   {to.Format("2006-01-02")},
	}
	if err := c.getJSON(ctx, c.cfg.BaseURL, "/v2/calendar", query, &days); err != nil {
		return nil, fmt.Errorf("calendar: %w", err)
	}

	out := make([]time.Time, 0, len(days))
	for _, d := range days {
		t, err := time.Parse("2006-01-02", d.Date)
		if err != nil {
			return nil, fmt.Errorf("calendar date %q: %w", d.Date, err)
		}
		out = append(out, marketcal.Date(t.Year(), t.Month(), t.Day()))
	}
	return out, nil
}

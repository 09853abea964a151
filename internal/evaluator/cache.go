package evaluator

import (
	"context"
	"time"

	"github.com/wonny/newsquant/internal/contracts"
	"github.com/wonny/newsquant/pkg/logger"
	"github.com/wonny/newsquant/pkg/redis"
)

// CachedPrices serves settled daily closes from redis before asking the source.
// Ranges that reach today or later are never cached.
type CachedPrices struct {
	source contracts.PriceSource
	cache  *redis.Cache
	logger *logger.Logger
	now    func() time.Time
}

// NewCachedPrices wraps source with a redis cache
func NewCachedPrices(source contracts.PriceSource, cache *redis.Cache, log *logger.Logger) *CachedPrices {
	return &CachedPrices{
		source: source,
		cache:  cache,
		logger: log.WithComponent("price-cache"),
		now:    time.Now,
	}
}

// DailyCloses implements contracts.PriceSource
func (c *CachedPrices) DailyCloses(ctx context.Context, ticker string, from, to time.Time) (map[string]float64, error) {
	settled := to.Before(c.now().UTC().Truncate(24 * time.Hour))
	key := redis.BarsKey(ticker, from, to)

	if settled {
		var cached map[string]float64
		hit, err := c.cache.Get(ctx, key, &cached)
		if err != nil {
			c.logger.WithError(err).Warn("Price cache read failed")
		}
		if hit && len(cached) > 0 {
			return cached, nil
		}
	}

	closes, err := c.source.DailyCloses(ctx, ticker, from, to)
	if err != nil {
		return nil, err
	}

	if settled && len(closes) > 0 {
		if err := c.cache.Set(ctx, key, closes, redis.TTLHistorical); err != nil {
			c.logger.WithError(err).Warn("Price cache write failed")
		}
	}
	return closes, nil
}

// CachedCalendar serves settled session ranges from redis
type CachedCalendar struct {
	source contracts.MarketCalendar
	cache  *redis.Cache
	logger *logger.Logger
}

// NewCachedCalendar wraps source with a redis cache
func NewCachedCalendar(source contracts.MarketCalendar, cache *redis.Cache, log *logger.Logger) *CachedCalendar {
	return &CachedCalendar{source: source, cache: cache, logger: log.WithComponent("calendar-cache")}
}

// Sessions implements contracts.MarketCalendar
func (c *CachedCalendar) Sessions(ctx context.Context, from, to time.Time) ([]time.Time, error) {
	key := redis.CalendarKey(from, to)

	var cached []time.Time
	hit, err := c.cache.Get(ctx, key, &cached)
	if err != nil {
		c.logger.WithError(err).Warn("Calendar cache read failed")
	}
	if hit && len(cached) > 0 {
		return cached, nil
	}

	sessions, err := c.source.Sessions(ctx, from, to)
	if err != nil {
		return nil, err
	}
	if len(sessions) > 0 {
		if err := c.cache.Set(ctx, key, sessions, redis.TTLDaily); err != nil {
			c.logger.WithError(err).Warn("Calendar cache write failed")
		}
	}
	return sessions, nil
}

/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package cbr

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/acronis/go-cbrcache/log"
	"github.com/acronis/go-cbrcache/storage"
)

// CurrencyCodesCacheKey is the cache key of the currency codes list.
const CurrencyCodesCacheKey = "currency_codes"

// Cache is what Client memoizes provider responses in. *lrucache.Cache implements it.
type Cache interface {
	Get(ctx context.Context, key string) (storage.Value, bool, error)
	Put(ctx context.Context, key string, value storage.Value) error
}

// RateCacheKey returns the cache key of the rate of the currency on the date.
func RateCacheKey(code string, date time.Time) string {
	return "rate:" + code + ":" + date.Format(time.DateOnly)
}

// Client returns currency codes and rates, going to the provider only on cache misses.
// Concurrent misses for the same key share one provider request.
// It is safe for concurrent use.
type Client struct {
	provider Provider
	cache    Cache
	logger   log.FieldLogger
	flight   singleflight.Group
}

// NewClient creates a Client. Both provider and cache must not be nil; logger may be nil.
func NewClient(provider Provider, cache Cache, logger log.FieldLogger) *Client {
	if logger == nil {
		logger = log.NewDisabledLogger()
	}
	return &Client{provider: provider, cache: cache, logger: logger}
}

// GetCurrencyCodes returns ISO codes of the currencies known to the provider.
func (c *Client) GetCurrencyCodes(ctx context.Context) ([]string, error) {
	if value, found := c.cacheGet(ctx, CurrencyCodesCacheKey); found {
		if codes, ok := storage.AsStrings(value); ok && len(codes) != 0 {
			return codes, nil
		}
		c.logger.Warn("unexpected cached currency codes, refetching",
			log.String("key", CurrencyCodesCacheKey), log.String("type", fmt.Sprintf("%T", value)))
	}

	res, err := c.shared(ctx, CurrencyCodesCacheKey, func(ctx context.Context) (interface{}, error) {
		doc, err := c.provider.CurrencyCodesDocument(ctx)
		if err != nil {
			return nil, unavailable(ErrNetwork, err)
		}
		codes, err := parseCurrencyCodes(doc)
		if err != nil {
			return nil, unavailable(ErrParse, err)
		}
		c.cachePut(ctx, CurrencyCodesCacheKey, codes)
		return codes, nil
	})
	if err != nil {
		c.logger.Warn("failed to get currency codes", log.Error(err))
		return nil, err
	}
	return append([]string(nil), res.([]string)...), nil
}

// GetCurrencyRateRelativeRUB returns how many rubles the currency with the ISO code is worth on the date.
// If the provider has no rate for it, the returned error wraps ErrRateNotFound and nothing is cached,
// so the next call asks the provider again.
func (c *Client) GetCurrencyRateRelativeRUB(ctx context.Context, code string, date time.Time) (decimal.Decimal, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return decimal.Decimal{}, unavailable(ErrRateNotFound, fmt.Errorf("empty currency code"))
	}
	key := RateCacheKey(code, date)

	if value, found := c.cacheGet(ctx, key); found {
		if text, ok := storage.AsString(value); ok {
			if rate, err := parseRate(text); err == nil {
				return rate, nil
			}
		}
		c.logger.Warn("unexpected cached rate, refetching", log.String("key", key))
	}

	res, err := c.shared(ctx, key, func(ctx context.Context) (interface{}, error) {
		doc, err := c.provider.DailyRatesDocument(ctx, date)
		if err != nil {
			return nil, unavailable(ErrNetwork, err)
		}
		text, found, err := findRate(doc, code)
		if err != nil {
			return nil, unavailable(ErrParse, err)
		}
		if !found {
			return nil, unavailable(ErrRateNotFound, fmt.Errorf("%s on %s", code, date.Format(time.DateOnly)))
		}
		c.cachePut(ctx, key, text)
		return text, nil
	})
	if err != nil {
		c.logger.Warn("failed to get currency rate", log.String("code", code),
			log.String("date", date.Format(time.DateOnly)), log.Error(err))
		return decimal.Decimal{}, err
	}
	rate, err := parseRate(res.(string))
	if err != nil {
		return decimal.Decimal{}, unavailable(ErrParse, err)
	}
	return rate, nil
}

// shared runs fetch once for all concurrent callers of the same key.
// The fetch is detached from the cancellation of the caller that started it (the provider
// http.Client timeout still bounds it), and every caller stops waiting on its own ctx only.
func (c *Client) shared(
	ctx context.Context, key string, fetch func(ctx context.Context) (interface{}, error),
) (interface{}, error) {
	resCh := c.flight.DoChan(key, func() (interface{}, error) {
		return fetch(context.WithoutCancel(ctx))
	})
	select {
	case res := <-resCh:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, unavailable(ErrNetwork, ctx.Err())
	}
}

// cacheGet treats cache failures as misses: the provider is still there to answer.
func (c *Client) cacheGet(ctx context.Context, key string) (storage.Value, bool) {
	value, found, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache read failed", log.String("key", key), log.Error(err))
		return nil, false
	}
	return value, found
}

func (c *Client) cachePut(ctx context.Context, key string, value storage.Value) {
	if err := c.cache.Put(ctx, key, value); err != nil {
		c.logger.Warn("cache write failed", log.String("key", key), log.Error(err))
	}
}

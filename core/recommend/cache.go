package recommend

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/patrickhamzaokello/ColabFavourites/logger"
)

// ResultCache stores serialized query results with a per-entry TTL.
// Implementations must be safe for concurrent use.
type ResultCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// cached memoizes compute under key. Keys are scoped by snapshot generation
// so a publish invalidates every earlier entry. Errors are never cached and
// a failing cache only costs the lookup.
func cached[T any](ctx context.Context, e *Engine, generation uint64, key string, compute func() (T, error)) (T, error) {
	if e.cache == nil || e.opts.CacheTTL <= 0 {
		return compute()
	}
	full := fmt.Sprintf("g%d:%s", generation, key)

	raw, ok, err := e.cache.Get(ctx, full)
	switch {
	case err != nil:
		cacheLookups.WithLabelValues("error").Inc()
		logger.Warn("Result cache read failed", logger.String("key", full), logger.ErrorField(err))
	case ok:
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			cacheLookups.WithLabelValues("hit").Inc()
			return v, nil
		}
		logger.Warn("Discarding undecodable cache entry", logger.String("key", full))
	default:
		cacheLookups.WithLabelValues("miss").Inc()
	}

	v, err := compute()
	if err != nil {
		return v, err
	}
	if raw, err := json.Marshal(v); err == nil {
		if err := e.cache.Set(ctx, full, raw, e.opts.CacheTTL); err != nil {
			logger.Warn("Result cache write failed", logger.String("key", full), logger.ErrorField(err))
		}
	}
	return v, nil
}

package geo

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const countryCacheTTL = 24 * time.Hour

// CachedResolver memoizes country lookups in Redis. IP-to-country mappings
// move slowly, so a day of caching saves most external calls. Unknown
// results are not cached; they usually mean a transient lookup failure.
type CachedResolver struct {
	inner Resolver
	rdb   *redis.Client
}

func NewCachedResolver(inner Resolver, rdb *redis.Client) *CachedResolver {
	return &CachedResolver{inner: inner, rdb: rdb}
}

func (r *CachedResolver) Country(ctx context.Context, ip string) string {
	if isLocal(ip) {
		return CountryLocal
	}

	key := "geo:" + ip
	if country, err := r.rdb.Get(ctx, key).Result(); err == nil && country != "" {
		return country
	} else if err != nil && err != redis.Nil {
		slog.Warn("geo cache read failed", "ip", ip, "err", err)
	}

	country := r.inner.Country(ctx, ip)
	if country != CountryUnknown {
		if err := r.rdb.Set(ctx, key, country, countryCacheTTL).Err(); err != nil {
			slog.Warn("geo cache write failed", "ip", ip, "err", err)
		}
	}
	return country
}

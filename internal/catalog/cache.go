package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const cacheVersionKey = "catalog:overview:version"

// OverviewCache caches branch stock overviews in Redis. Writes to branch
// data bump a global version so stale entries are never read again and
// simply expire.
type OverviewCache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewOverviewCache instantiates the cache helper. A nil client disables
// caching but keeps request de-duplication.
func NewOverviewCache(client *redis.Client, ttl time.Duration) *OverviewCache {
	return &OverviewCache{client: client, ttl: ttl}
}

// Version returns the current cache version, initialising when missing.
func (c *OverviewCache) Version(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, cacheVersionKey).Int64()
	}
	return ver, err
}

// Bump invalidates every cached overview.
func (c *OverviewCache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, cacheVersionKey).Err()
}

func (c *OverviewCache) key(ctx context.Context, filter OverviewFilter) (string, error) {
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	branch := filter.BranchID
	if branch == "" {
		branch = "all"
	}
	// Filter values are escaped so a ':' inside one cannot shift the others.
	parts := []string{
		"catalog", "overview",
		url.QueryEscape(branch),
		url.QueryEscape(strings.ToLower(filter.Category)),
		url.QueryEscape(strings.ToLower(filter.Search)),
	}
	return fmt.Sprintf("%s:%d", strings.Join(parts, ":"), ver), nil
}

// Fetch returns the cached overview or builds it with loader. Concurrent
// callers for the same key share one loader call.
func (c *OverviewCache) Fetch(ctx context.Context, filter OverviewFilter, loader func(context.Context) ([]ResolvedItem, error)) ([]ResolvedItem, error) {
	if c == nil {
		return loader(ctx)
	}
	key, err := c.key(ctx, filter)
	if err != nil {
		return nil, err
	}
	if c.client != nil {
		payload, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			var cached []ResolvedItem
			if err := json.Unmarshal(payload, &cached); err == nil {
				return cached, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			return nil, err
		}
	}
	ch := c.group.DoChan(key, func() (interface{}, error) {
		items, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		if c.client != nil {
			raw, err := json.Marshal(items)
			if err != nil {
				return nil, err
			}
			if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
				return nil, err
			}
		}
		return items, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]ResolvedItem), nil
	}
}

// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package filereader

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/cardinalhq/shardstream/internal/logctx"
	"github.com/cardinalhq/shardstream/pkg/container"
)

// ShardInfo is the sample count of one shard.
type ShardInfo struct {
	Path    string
	Samples int
}

// Inspect opens every shard in turn and returns its sample count. All fields
// of a shard must have the same length. Results follow the order of shards.
func Inspect(ctx context.Context, store container.Store, shards []string, fields []string) ([]ShardInfo, error) {
	return inspect(ctx, store, shards, fields, nil)
}

func inspect(ctx context.Context, store container.Store, shards []string, fields []string, cache *CatalogCache) ([]ShardInfo, error) {
	if len(fields) == 0 {
		return nil, configError("no fields requested")
	}

	infos := make([]ShardInfo, 0, len(shards))
	for _, shard := range shards {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var (
			n   int
			err error
		)
		if cache != nil {
			n, err = cache.samples(ctx, store, shard, fields)
		} else {
			n, err = inspectShard(ctx, store, shard, fields)
		}
		if err != nil {
			return nil, err
		}
		infos = append(infos, ShardInfo{Path: shard, Samples: n})
	}
	return infos, nil
}

func inspectShard(ctx context.Context, store container.Store, shard string, fields []string) (int, error) {
	h, err := store.Open(ctx, shard)
	if err != nil {
		return 0, &ShardError{Kind: ErrIO, Shard: shard, Cause: err}
	}
	defer func() { _ = h.Close() }()

	samples, first := -1, ""
	for _, field := range fields {
		n, err := h.Len(ctx, field)
		if err != nil {
			if errors.Is(err, container.ErrNotFound) {
				return 0, &ShardError{Kind: ErrFieldNotFound, Shard: shard, Field: field, Cause: err}
			}
			return 0, &ShardError{Kind: ErrIO, Shard: shard, Field: field, Cause: err}
		}
		if samples < 0 {
			samples, first = n, field
			continue
		}
		if n != samples {
			return 0, &ShardError{
				Kind:  ErrShapeMismatch,
				Shard: shard,
				Field: field,
				Cause: lengthMismatch(field, n, first, samples),
			}
		}
	}

	logctx.FromContext(ctx).Debug("Inspected shard",
		slog.String("shard", shard),
		slog.Int("samples", samples),
		slog.Int("fields", len(fields)))
	return samples, nil
}

// CatalogCache remembers shard sample counts for a fixed time, keyed by store,
// shard path and field list. Stores are told apart by identity, so one cache
// can serve several stores that use the same paths. Stores whose dynamic
// value is not comparable bypass the cache. It is safe for concurrent use.
type CatalogCache struct {
	cache *ttlcache.Cache[string, int]

	mu     sync.Mutex
	stores map[container.Store]uint64
}

// NewCatalogCache returns a cache whose entries expire after ttl.
func NewCatalogCache(ttl time.Duration) *CatalogCache {
	return &CatalogCache{
		cache: ttlcache.New(
			ttlcache.WithTTL[string, int](ttl),
			ttlcache.WithDisableTouchOnHit[string, int](),
		),
		stores: make(map[container.Store]uint64),
	}
}

// Len returns the number of cached entries, including expired ones that
// have not been evicted yet.
func (c *CatalogCache) Len() int {
	return c.cache.Len()
}

// Invalidate drops every entry.
func (c *CatalogCache) Invalidate() {
	c.cache.DeleteAll()
}

// storeID returns a number unique to store within this cache.
func (c *CatalogCache) storeID(store container.Store) (uint64, bool) {
	if !reflect.ValueOf(store).Comparable() {
		return 0, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.stores[store]
	if !ok {
		id = uint64(len(c.stores) + 1)
		c.stores[store] = id
	}
	return id, true
}

func catalogKey(storeID uint64, shard string, fields []string) string {
	return strconv.FormatUint(storeID, 10) + "\x00" + shard + "\x00" + strings.Join(fields, "\x00")
}

func (c *CatalogCache) samples(ctx context.Context, store container.Store, shard string, fields []string) (int, error) {
	id, ok := c.storeID(store)
	if !ok {
		return inspectShard(ctx, store, shard, fields)
	}

	var loadErr error
	loader := ttlcache.LoaderFunc[string, int](
		func(cache *ttlcache.Cache[string, int], key string) *ttlcache.Item[string, int] {
			n, err := inspectShard(ctx, store, shard, fields)
			if err != nil {
				loadErr = err
				return nil
			}
			return cache.Set(key, n, ttlcache.DefaultTTL)
		},
	)
	item := c.cache.Get(catalogKey(id, shard, fields), ttlcache.WithLoader[string, int](loader))
	if item == nil {
		if loadErr == nil {
			loadErr = &ShardError{Kind: ErrIO, Shard: shard, Cause: errors.New("catalog cache returned no entry")}
		}
		return 0, loadErr
	}
	return item.Value(), nil
}

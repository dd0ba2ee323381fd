package api

import (
	"context"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/latidos/ledger-engine/ledger"
)

// =============================================================================
// PROJECTION CACHE - Statements and account details
// =============================================================================
// Read projections are cached by key and dropped when a committed change
// touches their customer or account. Concurrent misses on one key share a
// single load. A load that started before an invalidation is not stored.

type ProjectionCache struct {
	entries *lru.Cache[string, any]
	group   singleflight.Group

	mu  sync.Mutex
	gen uint64
}

// NewProjectionCache returns a cache holding up to size projections.
// A size of zero disables caching.
func NewProjectionCache(size int) (*ProjectionCache, error) {
	if size <= 0 {
		return &ProjectionCache{}, nil
	}
	entries, err := lru.New[string, any](size)
	if err != nil {
		return nil, err
	}
	return &ProjectionCache{entries: entries}, nil
}

func statementKey(tenant ledger.TenantID, customer ledger.CustomerID, r ledger.DateRange) string {
	return "customer|" + string(tenant) + "|" + string(customer) + "|" + rangeKey(r)
}

func accountKey(tenant ledger.TenantID, account ledger.AccountID, r ledger.DateRange) string {
	return "account|" + string(tenant) + "|" + string(account) + "|" + rangeKey(r)
}

func rangeKey(r ledger.DateRange) string {
	var from, to string
	if !r.From.IsZero() {
		from = r.From.UTC().Format("20060102T150405.000000000")
	}
	if !r.To.IsZero() {
		to = r.To.UTC().Format("20060102T150405.000000000")
	}
	return from + "~" + to
}

func (c *ProjectionCache) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// Notify drops every projection of the customers and accounts in ch.
func (c *ProjectionCache) Notify(_ context.Context, ch ledger.Change) {
	if c.entries == nil {
		return
	}
	c.mu.Lock()
	c.gen++
	c.mu.Unlock()

	var prefixes []string
	for _, id := range ch.Customers {
		prefixes = append(prefixes, "customer|"+string(ch.TenantID)+"|"+string(id)+"|")
	}
	for _, id := range ch.Accounts {
		prefixes = append(prefixes, "account|"+string(ch.TenantID)+"|"+string(id)+"|")
	}
	for _, key := range c.entries.Keys() {
		for _, p := range prefixes {
			if strings.HasPrefix(key, p) {
				c.entries.Remove(key)
				break
			}
		}
	}
}

// Purge drops everything (database reset, scenario load).
func (c *ProjectionCache) Purge() {
	if c.entries == nil {
		return
	}
	c.mu.Lock()
	c.gen++
	c.mu.Unlock()
	c.entries.Purge()
}

// Len is the number of cached projections.
func (c *ProjectionCache) Len() int {
	if c.entries == nil {
		return 0
	}
	return c.entries.Len()
}

func cached[T any](c *ProjectionCache, key string, load func() (T, error)) (T, error) {
	if c.entries == nil {
		return load()
	}
	if v, ok := c.entries.Get(key); ok {
		return v.(T), nil
	}

	gen := c.generation()
	v, err, _ := c.group.Do(key, func() (any, error) {
		v, err := load()
		if err != nil {
			return nil, err
		}
		if c.generation() == gen {
			c.entries.Add(key, v)
		}
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

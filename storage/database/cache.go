// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.

package database

import (
	"github.com/VictoriaMetrics/fastcache"
	lru "github.com/hashicorp/golang-lru"
	"github.com/rcrowley/go-metrics"
)

// AccountCache front-ends TableAccounts lookups: hot account records
// live in an LRU keyed by account. A fastcache byte-arena is also held
// for cold/bulk-read blobs through GetCold/PutCold; the ledger uses only
// the hot tier and nothing in this module fills the cold one.
type AccountCache struct {
	hot  *lru.Cache
	cold *fastcache.Cache

	hits   metrics.Meter
	misses metrics.Meter
}

// NewAccountCache builds a cache sized for hotSize account records kept
// in the LRU and coldBytes of fastcache-backed arena space for bulk
// reads.
func NewAccountCache(hotSize, coldBytes int) (*AccountCache, error) {
	hot, err := lru.New(hotSize)
	if err != nil {
		return nil, err
	}
	return &AccountCache{
		hot:    hot,
		cold:   fastcache.New(coldBytes),
		hits:   metrics.NewMeter(),
		misses: metrics.NewMeter(),
	}, nil
}

func (c *AccountCache) GetHot(key []byte) ([]byte, bool) {
	v, ok := c.hot.Get(string(key))
	if !ok {
		c.misses.Mark(1)
		return nil, false
	}
	c.hits.Mark(1)
	return v.([]byte), true
}

func (c *AccountCache) PutHot(key, value []byte) {
	c.hot.Add(string(key), value)
}

func (c *AccountCache) GetCold(key []byte) ([]byte, bool) {
	v, ok := c.cold.HasGet(nil, key)
	if !ok {
		c.misses.Mark(1)
		return nil, false
	}
	c.hits.Mark(1)
	return v, true
}

func (c *AccountCache) PutCold(key, value []byte) {
	c.cold.Set(key, value)
}

// Invalidate drops key from the hot tier. Called whenever a commit or
// rollback touches the account so a stale record can't be served from
// cache after the transaction that changed it returns.
func (c *AccountCache) Invalidate(key []byte) {
	c.hot.Remove(string(key))
}

// HitRate reports the cache's lifetime hit ratio, for diagnostics
// reporting alongside the store's other counters.
func (c *AccountCache) HitRate() float64 {
	hits, misses := c.hits.Count(), c.misses.Count()
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

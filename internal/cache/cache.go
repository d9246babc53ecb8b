/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
Package cache provides trace caching for raedu.

Trace Cache Overview:
=====================

Evaluating an expression is deterministic for a given database, canonical
expression text and preview limit, so the resulting trace can be reused.
Classroom use is read-heavy: many students submit the same expressions
against the same few datasets.

Features:
=========

  - LRU eviction when cache is full
  - TTL-based expiration
  - Invalidation of every trace of a database when it is re-imported
  - Thread-safe operations

Usage Example:
==============

	tc := cache.New(cache.Config{MaxEntries: 256, TTL: 10 * time.Minute, Enabled: true})
	defer tc.Close()

	key := cache.Key{Database: "school", Expression: node.String(), PreviewLimit: 10}
	if trace, ok := tc.Get(key); ok {
		return trace
	}
	trace, err := ra.Run(node, store)
	tc.Set(key, trace)
*/
package cache

import (
	"container/list"
	"fmt"
	"sync"
	"time"

	"raedu/internal/ra"
)

// Config holds the configuration for the trace cache.
type Config struct {
	// MaxEntries is the maximum number of cached traces.
	// When exceeded, the least recently used entries are evicted.
	MaxEntries int

	// TTL is the time-to-live for cached entries.
	TTL time.Duration

	// Enabled controls whether caching is active.
	Enabled bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxEntries: 256,
		TTL:        10 * time.Minute,
		Enabled:    true,
	}
}

// Key identifies a trace. Expression should be the canonical rendering
// of the parsed expression so that spelling variants share an entry.
type Key struct {
	Database     string
	Expression   string
	PreviewLimit int
	Collation    string
}

func (k Key) String() string {
	return fmt.Sprintf("%s\x00%s\x00%d\x00%s", k.Database, k.Expression, k.PreviewLimit, k.Collation)
}

type entry struct {
	key       string
	database  string
	value     *ra.Trace
	expiresAt time.Time
	element   *list.Element
}

// TraceCache caches traces with LRU eviction and TTL expiration.
type TraceCache struct {
	config Config

	mu    sync.RWMutex
	cache map[string]*entry
	lru   *list.List

	// byDatabase maps a database to the keys of its cached traces.
	byDatabase map[string]map[string]struct{}

	hits   int64
	misses int64

	now  func() time.Time
	stop chan struct{}
	once sync.Once
}

// New creates a new TraceCache and starts its expiry sweeper.
func New(config Config) *TraceCache {
	if config.MaxEntries <= 0 {
		config.MaxEntries = DefaultConfig().MaxEntries
	}
	if config.TTL <= 0 {
		config.TTL = DefaultConfig().TTL
	}

	tc := &TraceCache{
		config:     config,
		cache:      make(map[string]*entry),
		lru:        list.New(),
		byDatabase: make(map[string]map[string]struct{}),
		now:        time.Now,
		stop:       make(chan struct{}),
	}
	go tc.cleanupExpired()
	return tc
}

// Close stops the expiry sweeper.
func (tc *TraceCache) Close() {
	tc.once.Do(func() { close(tc.stop) })
}

// Get retrieves a cached trace.
func (tc *TraceCache) Get(k Key) (*ra.Trace, bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if !tc.config.Enabled {
		return nil, false
	}

	e, ok := tc.cache[k.String()]
	if !ok {
		tc.misses++
		return nil, false
	}
	if tc.now().After(e.expiresAt) {
		tc.removeEntry(e)
		tc.misses++
		return nil, false
	}

	tc.lru.MoveToFront(e.element)
	tc.hits++
	return e.value, true
}

// Set caches a trace. Cached traces are shared between callers and must
// not be modified.
func (tc *TraceCache) Set(k Key, trace *ra.Trace) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if !tc.config.Enabled {
		return
	}

	key := k.String()
	if e, ok := tc.cache[key]; ok {
		e.value = trace
		e.expiresAt = tc.now().Add(tc.config.TTL)
		tc.lru.MoveToFront(e.element)
		return
	}

	for len(tc.cache) >= tc.config.MaxEntries {
		tc.evictOldest()
	}

	e := &entry{
		key:       key,
		database:  k.Database,
		value:     trace,
		expiresAt: tc.now().Add(tc.config.TTL),
	}
	e.element = tc.lru.PushFront(e)
	tc.cache[key] = e

	if tc.byDatabase[k.Database] == nil {
		tc.byDatabase[k.Database] = make(map[string]struct{})
	}
	tc.byDatabase[k.Database][key] = struct{}{}
}

// Invalidate removes every cached trace of database.
func (tc *TraceCache) Invalidate(database string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	for key := range tc.byDatabase[database] {
		if e, ok := tc.cache[key]; ok {
			tc.removeEntry(e)
		}
	}
	delete(tc.byDatabase, database)
}

// InvalidateAll clears the entire cache.
func (tc *TraceCache) InvalidateAll() {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	tc.cache = make(map[string]*entry)
	tc.lru = list.New()
	tc.byDatabase = make(map[string]map[string]struct{})
}

// removeEntry removes an entry from the cache (must hold lock).
func (tc *TraceCache) removeEntry(e *entry) {
	delete(tc.cache, e.key)
	tc.lru.Remove(e.element)
	if keys, ok := tc.byDatabase[e.database]; ok {
		delete(keys, e.key)
		if len(keys) == 0 {
			delete(tc.byDatabase, e.database)
		}
	}
}

// evictOldest removes the least recently used entry (must hold lock).
func (tc *TraceCache) evictOldest() {
	elem := tc.lru.Back()
	if elem == nil {
		return
	}
	tc.removeEntry(elem.Value.(*entry))
}

// cleanupExpired periodically removes expired entries until Close.
func (tc *TraceCache) cleanupExpired() {
	ticker := time.NewTicker(tc.config.TTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-tc.stop:
			return
		case <-ticker.C:
			tc.mu.Lock()
			now := tc.now()
			for _, e := range tc.cache {
				if now.After(e.expiresAt) {
					tc.removeEntry(e)
				}
			}
			tc.mu.Unlock()
		}
	}
}

// Stats holds cache statistics.
type Stats struct {
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	HitRate    float64 `json:"hit_rate"`
}

// Stats returns current cache statistics.
func (tc *TraceCache) Stats() Stats {
	tc.mu.RLock()
	defer tc.mu.RUnlock()

	total := tc.hits + tc.misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(tc.hits) / float64(total)
	}
	return Stats{
		Hits:       tc.hits,
		Misses:     tc.misses,
		Entries:    len(tc.cache),
		MaxEntries: tc.config.MaxEntries,
		HitRate:    hitRate,
	}
}

// SetEnabled enables or disables the cache.
func (tc *TraceCache) SetEnabled(enabled bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.config.Enabled = enabled
}

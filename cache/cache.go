// Package cache provides a capacity-bounded key/value store for query results, with TTL expiry,
// least-recently-used eviction, tag-based invalidation and stampede-safe concurrent population:
// at most one computation runs per key, however many callers request it concurrently.
package cache

import (
	"container/list"
	"context"
	"errors"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrClosed is returned by store operations after Close. Callers holding a closed store should
// fall back to computing results directly.
var ErrClosed = errors.New("cache store is closed")

type Options struct {
	// Capacity is the maximum number of entries before the least-recently-used one is evicted.
	Capacity int
	// SweepInterval is how often expired entries are proactively removed. 0 disables the
	// background sweep, leaving expiry checks to reads only.
	SweepInterval time.Duration
}

const DefaultCapacity = 1000

// Store is a thread-safe LRU+TTL cache from fingerprint keys to values of type V.
// It must be constructed with NewStore and released with Close.
type Store[V any] struct {
	lock     sync.Mutex
	capacity int
	lruList  *list.List // Front is most recently used
	entries  map[string]*list.Element
	tagIndex map[string]map[string]struct{}
	closed   bool

	flightGroup singleflight.Group

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64

	stopSweep chan struct{}
	sweepDone chan struct{}
}

type entry[V any] struct {
	key            string
	value          V
	tags           []string
	createdAt      time.Time
	expiresAt      time.Time
	lastAccessedAt time.Time
	hitCount       uint64
}

func NewStore[V any](options Options) *Store[V] {
	if options.Capacity <= 0 {
		options.Capacity = DefaultCapacity
	}

	store := &Store[V]{
		capacity: options.Capacity,
		lruList:  list.New(),
		entries:  make(map[string]*list.Element, options.Capacity),
		tagIndex: make(map[string]map[string]struct{}),
	}

	if options.SweepInterval > 0 {
		store.stopSweep = make(chan struct{})
		store.sweepDone = make(chan struct{})
		go store.sweepLoop(options.SweepInterval)
	}

	return store
}

// GetOrCompute returns the cached value for the given key, or invokes compute to produce it,
// storing the result with the given TTL and invalidation tags. Concurrent calls for the same
// key share a single compute invocation: every caller receives the same value, or the same
// error if the computation fails (in which case nothing is cached). The context is passed to
// compute; cancelling it fails the computation for every attached caller.
func (store *Store[V]) GetOrCompute(
	ctx context.Context,
	key string,
	ttl time.Duration,
	tags []string,
	compute func(ctx context.Context) (V, error),
) (V, error) {
	if value, found, err := store.get(key); err != nil {
		var zero V
		return zero, err
	} else if found {
		store.hits.Add(1)
		return value, nil
	}
	store.misses.Add(1)

	result, err, _ := store.flightGroup.Do(key, func() (any, error) {
		// A previous flight for this key may have populated the entry between our miss and
		// joining the flight
		if value, found, err := store.get(key); err != nil {
			return nil, err
		} else if found {
			return value, nil
		}

		value, err := compute(ctx)
		if err != nil {
			return nil, err
		}

		store.put(key, value, ttl, tags)
		return value, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}

	return result.(V), nil
}

// get returns the entry for the given key if it is present and not expired, updating its access
// metadata. Expired entries are removed on sight.
func (store *Store[V]) get(key string) (value V, found bool, err error) {
	store.lock.Lock()
	defer store.lock.Unlock()

	var zero V

	if store.closed {
		return zero, false, ErrClosed
	}

	element, ok := store.entries[key]
	if !ok {
		return zero, false, nil
	}

	cached := element.Value.(*entry[V])
	now := time.Now()

	if now.After(cached.expiresAt) {
		store.removeElement(element)
		return zero, false, nil
	}

	cached.lastAccessedAt = now
	cached.hitCount++
	store.lruList.MoveToFront(element)
	return cached.value, true, nil
}

func (store *Store[V]) put(key string, value V, ttl time.Duration, tags []string) {
	store.lock.Lock()
	defer store.lock.Unlock()

	// Results computed for a closed store are returned to waiters but not retained
	if store.closed {
		return
	}

	if element, ok := store.entries[key]; ok {
		store.removeElement(element)
	}

	for len(store.entries) >= store.capacity {
		store.evictLeastRecentlyUsed()
	}

	now := time.Now()
	element := store.lruList.PushFront(&entry[V]{
		key:            key,
		value:          value,
		tags:           tags,
		createdAt:      now,
		expiresAt:      now.Add(ttl),
		lastAccessedAt: now,
	})
	store.entries[key] = element

	for _, tag := range tags {
		keys, ok := store.tagIndex[tag]
		if !ok {
			keys = make(map[string]struct{})
			store.tagIndex[tag] = keys
		}
		keys[key] = struct{}{}
	}
}

// evictLeastRecentlyUsed removes the entry with the oldest last access time. Entries tied on
// last access are broken by lowest hit count, then oldest creation time. Must be called with
// the lock held.
func (store *Store[V]) evictLeastRecentlyUsed() {
	oldest := store.lruList.Back()
	if oldest == nil {
		return
	}

	// The back of the LRU list has the oldest last access, but timestamps can collide; walk
	// back through tied entries to apply the hit count and creation time tie-breaks
	candidate := oldest
	candidateEntry := candidate.Value.(*entry[V])
	for element := oldest.Prev(); element != nil; element = element.Prev() {
		tied := element.Value.(*entry[V])
		if !tied.lastAccessedAt.Equal(candidateEntry.lastAccessedAt) {
			break
		}

		if tied.hitCount < candidateEntry.hitCount ||
			(tied.hitCount == candidateEntry.hitCount &&
				tied.createdAt.Before(candidateEntry.createdAt)) {
			candidate = element
			candidateEntry = tied
		}
	}

	store.removeElement(candidate)
	store.evictions.Add(1)
}

// removeElement removes an entry from the LRU list, entry table and tag index. Must be called
// with the lock held.
func (store *Store[V]) removeElement(element *list.Element) {
	cached := element.Value.(*entry[V])

	store.lruList.Remove(element)
	delete(store.entries, cached.key)

	for _, tag := range cached.tags {
		if keys, ok := store.tagIndex[tag]; ok {
			delete(keys, cached.key)
			if len(keys) == 0 {
				delete(store.tagIndex, tag)
			}
		}
	}
}

// Invalidate removes all entries carrying the given tag, returning the number of entries
// removed. If the argument contains glob wildcards ('*', '?' or '['), it is matched against
// every tag name instead, removing entries under each matching tag.
func (store *Store[V]) Invalidate(tagOrPattern string) int {
	store.lock.Lock()
	defer store.lock.Unlock()

	if store.closed {
		return 0
	}

	tags := []string{tagOrPattern}
	if strings.ContainsAny(tagOrPattern, "*?[") {
		tags = tags[:0]
		for tag := range store.tagIndex {
			if matched, err := path.Match(tagOrPattern, tag); err == nil && matched {
				tags = append(tags, tag)
			}
		}
	}

	removed := 0
	for _, tag := range tags {
		for key := range store.tagIndex[tag] {
			if element, ok := store.entries[key]; ok {
				store.removeElement(element)
				removed++
			}
		}
	}

	return removed
}

func (store *Store[V]) sweepLoop(interval time.Duration) {
	defer close(store.sweepDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			store.removeExpired()
		case <-store.stopSweep:
			return
		}
	}
}

// removeExpired proactively removes expired entries, to bound memory even for keys that are
// never read again. The lock is released between entries so that the sweep never blocks
// readers for longer than a single removal.
func (store *Store[V]) removeExpired() {
	store.lock.Lock()
	if store.closed {
		store.lock.Unlock()
		return
	}
	keys := make([]string, 0, len(store.entries))
	for key := range store.entries {
		keys = append(keys, key)
	}
	store.lock.Unlock()

	for _, key := range keys {
		store.lock.Lock()
		if !store.closed {
			if element, ok := store.entries[key]; ok {
				if time.Now().After(element.Value.(*entry[V]).expiresAt) {
					store.removeElement(element)
				}
			}
		}
		store.lock.Unlock()
	}
}

// Close stops the background sweep and drops all entries. In-flight computations are allowed
// to finish and their results are returned to attached waiters, but nothing more is cached.
func (store *Store[V]) Close() {
	store.lock.Lock()
	if store.closed {
		store.lock.Unlock()
		return
	}
	store.closed = true
	store.lruList.Init()
	store.entries = make(map[string]*list.Element)
	store.tagIndex = make(map[string]map[string]struct{})
	store.lock.Unlock()

	if store.stopSweep != nil {
		close(store.stopSweep)
		<-store.sweepDone
	}
}

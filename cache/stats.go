package cache

// Stats is a snapshot of the store's hit/miss counters and current size.
type Stats struct {
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	Evictions uint64  `json:"evictions"`
	Size      int     `json:"size"`
	HitRate   float64 `json:"hitRate"`
}

func (store *Store[V]) Stats() Stats {
	store.lock.Lock()
	size := len(store.entries)
	store.lock.Unlock()

	stats := Stats{
		Hits:      store.hits.Load(),
		Misses:    store.misses.Load(),
		Evictions: store.evictions.Load(),
		Size:      size,
	}

	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}

	return stats
}

package adaptor

// Stats holds handle cache counters.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	OpenFiles int
	MaxOpen   int
}

// Stats returns a snapshot of the handle cache counters.
func (a *MultiDiskAdaptor) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Stats{
		Hits:      a.cache.hits.Load(),
		Misses:    a.cache.misses.Load(),
		Evictions: a.cache.evictions.Load(),
		OpenFiles: a.cache.len(),
		MaxOpen:   a.cache.maxOpenFiles,
	}
}

// ResetStats zeroes the hit, miss and eviction counters.
func (a *MultiDiskAdaptor) ResetStats() {
	a.cache.hits.Store(0)
	a.cache.misses.Store(0)
	a.cache.evictions.Store(0)
}

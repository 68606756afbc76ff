package adaptor

import (
	"sync/atomic"

	"github.com/MikhailWahib/multidisk/internal/logger"
	"github.com/MikhailWahib/multidisk/internal/randomizer"
)

// handleCache bounds the number of open entries. It keeps no recency
// information: when full, a uniformly chosen open entry is closed to make
// room.
type handleCache struct {
	entries      []*diskWriterEntry
	maxOpenFiles int
	rand         randomizer.Randomizer

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

func newHandleCache(maxOpenFiles int, r randomizer.Randomizer) *handleCache {
	return &handleCache{
		maxOpenFiles: clampMaxOpenFiles(maxOpenFiles),
		rand:         r,
	}
}

func clampMaxOpenFiles(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// ensureOpen opens e with open unless it is already open. A failed open
// leaves the cache untouched. The victim is drawn only from entries cached
// before this call, so e itself is never evicted here.
func (c *handleCache) ensureOpen(e *diskWriterEntry, open openFunc, topDir string) error {
	if e.open {
		c.hits.Add(1)
		return nil
	}
	c.misses.Add(1)
	logger.Debug("cache miss", "path", e.fileEntry.Path, "offset", e.fileEntry.Offset)

	if err := open(e, topDir); err != nil {
		return err
	}

	if n := len(c.entries); n >= c.maxOpenFiles {
		idx := c.rand.RandomNumber(n)
		c.evict(c.entries[idx])
		c.entries[idx] = e
	} else {
		c.entries = append(c.entries, e)
	}
	return nil
}

func (c *handleCache) evict(victim *diskWriterEntry) {
	c.evictions.Add(1)
	logger.Debug("evicting open file", "path", victim.fileEntry.Path)
	if err := victim.closeFile(); err != nil {
		logger.Warn("failed to close evicted file", "path", victim.fileEntry.Path, "error", err)
	}
}

// setMaxOpenFiles changes the capacity and evicts random entries until the
// cache fits.
func (c *handleCache) setMaxOpenFiles(n int) {
	c.maxOpenFiles = clampMaxOpenFiles(n)
	for len(c.entries) > c.maxOpenFiles {
		last := len(c.entries) - 1
		idx := c.rand.RandomNumber(len(c.entries))
		c.evict(c.entries[idx])
		c.entries[idx] = c.entries[last]
		c.entries[last] = nil
		c.entries = c.entries[:last]
	}
}

// release closes e and drops it from the cache. It is a no-op when e is
// not open.
func (c *handleCache) release(e *diskWriterEntry) error {
	if !e.open {
		return nil
	}
	for i, cached := range c.entries {
		if cached != e {
			continue
		}
		last := len(c.entries) - 1
		c.entries[i] = c.entries[last]
		c.entries[last] = nil
		c.entries = c.entries[:last]
		break
	}
	return e.closeFile()
}

// closeAll closes every entry in all, cached or not, and empties the cache.
// It returns the first close error.
func (c *handleCache) closeAll(all []*diskWriterEntry) error {
	var firstErr error
	for _, e := range all {
		if err := e.closeFile(); err != nil {
			logger.Warn("failed to close file", "path", e.fileEntry.Path, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	clear(c.entries)
	c.entries = c.entries[:0]
	return firstErr
}

func (c *handleCache) len() int {
	return len(c.entries)
}

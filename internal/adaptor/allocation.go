package adaptor

// FileAllocationIterator preallocates disk space one chunk at a time so the
// caller can interleave allocation with other work and report progress.
type FileAllocationIterator interface {
	// AllocateChunk allocates the next chunk. It is a no-op once Finished.
	AllocateChunk() error
	Finished() bool
	// CurrentLength is the number of bytes allocated so far.
	CurrentLength() int64
	// TotalLength is the number of bytes the iterator will allocate.
	TotalLength() int64
}

// multiFileAllocationIterator walks the requested files in offset order.
// Each file is created at its final length on its first chunk.
type multiFileAllocationIterator struct {
	a          *MultiDiskAdaptor
	generation uint64
	entries    []*diskWriterEntry
	idx        int
	offset     int64
	current    int64
	total      int64
}

// AllocationIterator returns an iterator over the requested files of the
// current entry set. Rebuilding the entries invalidates it.
func (a *MultiDiskAdaptor) AllocationIterator() FileAllocationIterator {
	a.mu.Lock()
	defer a.mu.Unlock()

	it := &multiFileAllocationIterator{a: a, generation: a.generation}
	for _, e := range a.entries {
		if !e.fileEntry.Requested {
			continue
		}
		it.entries = append(it.entries, e)
		it.total += e.fileEntry.Length
	}
	return it
}

func (it *multiFileAllocationIterator) AllocateChunk() error {
	a := it.a
	a.mu.Lock()
	defer a.mu.Unlock()

	if it.idx >= len(it.entries) {
		return nil
	}
	if it.generation != a.generation {
		return ErrStaleIterator
	}

	e := it.entries[it.idx]
	open := (*diskWriterEntry).openFile
	if it.offset == 0 {
		// An open handle would be a cache hit and skip the truncate.
		if err := a.cache.release(e); err != nil {
			return err
		}
		open = (*diskWriterEntry).initAndOpenFile
	}
	if err := a.cache.ensureOpen(e, open, a.cachedTopDirPath); err != nil {
		return err
	}

	n := min(a.allocChunkSize, e.fileEntry.Length-it.offset)
	if err := e.diskWriter.Allocate(it.offset, n); err != nil {
		return err
	}
	it.offset += n
	it.current += n
	if it.offset == e.fileEntry.Length {
		it.idx++
		it.offset = 0
	}
	return nil
}

func (it *multiFileAllocationIterator) Finished() bool {
	it.a.mu.Lock()
	defer it.a.mu.Unlock()
	return it.idx >= len(it.entries)
}

func (it *multiFileAllocationIterator) CurrentLength() int64 {
	it.a.mu.Lock()
	defer it.a.mu.Unlock()
	return it.current
}

func (it *multiFileAllocationIterator) TotalLength() int64 {
	return it.total
}

// Package adaptor presents a set of files laid out back to back in one
// virtual byte space as a single randomly addressable store.
//
// A MultiDiskAdaptor routes each read or write to the file(s) covering the
// requested range, splitting at file boundaries, and keeps at most
// MaxOpenFiles native handles open at a time. All methods are safe for
// concurrent use; calls are serialized on one mutex.
package adaptor

import (
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/MikhailWahib/multidisk/internal/config"
	"github.com/MikhailWahib/multidisk/internal/diskwriter"
	"github.com/MikhailWahib/multidisk/internal/fileentry"
	"github.com/MikhailWahib/multidisk/internal/logger"
	"github.com/MikhailWahib/multidisk/internal/randomizer"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// MultiDiskAdaptor multiplexes byte-range I/O over many files.
type MultiDiskAdaptor struct {
	mu sync.Mutex

	fs          afero.Fs
	factory     diskwriter.Factory
	fileEntries []*fileentry.FileEntry

	storeDir         string
	topDir           string
	cachedTopDirPath string
	directIOAllowed  bool
	dirPerm          os.FileMode
	filePerm         os.FileMode
	allocChunkSize   int64

	entries    []*diskWriterEntry
	generation uint64
	cache      *handleCache
}

// Option customizes a MultiDiskAdaptor.
type Option func(*MultiDiskAdaptor)

// WithFs sets the filesystem files live on. The default is the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(a *MultiDiskAdaptor) { a.fs = fs }
}

// WithFactory sets the writer factory used for requested files.
func WithFactory(f diskwriter.Factory) Option {
	return func(a *MultiDiskAdaptor) { a.factory = f }
}

// WithRandomizer sets the source of eviction indexes.
func WithRandomizer(r randomizer.Randomizer) Option {
	return func(a *MultiDiskAdaptor) { a.cache.rand = r }
}

// New creates an adaptor over fileEntries, which must be sorted by offset
// and tile the virtual space without gaps. Files live under
// cfg.StoreDir/topDir. No entries are built until one of the open methods
// (or Exists) is called.
func New(fileEntries []*fileentry.FileEntry, topDir string, cfg *config.Config, opts ...Option) *MultiDiskAdaptor {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	c := *cfg
	c.FillDefaults()
	cfg = &c

	a := &MultiDiskAdaptor{
		fs:              afero.NewOsFs(),
		fileEntries:     fileEntries,
		storeDir:        cfg.StoreDir,
		topDir:          topDir,
		directIOAllowed: cfg.DirectIOAllowed,
		dirPerm:         cfg.DirPerm,
		filePerm:        cfg.FilePerm,
		allocChunkSize:  cfg.AllocationChunkSize,
		cache:           newHandleCache(cfg.MaxOpenFiles, randomizer.Default()),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.factory == nil {
		a.factory = diskwriter.DefaultFactory{Fs: a.fs, Perm: a.filePerm}
	}
	return a
}

// TopDirPath returns the directory the files are resolved against.
func (a *MultiDiskAdaptor) TopDirPath() string {
	return filepath.Join(a.storeDir, a.topDir)
}

// build replaces the entry set with fresh, closed entries. Entries left
// open by a previous build are closed first.
func (a *MultiDiskAdaptor) build() {
	if len(a.entries) > 0 {
		_ = a.cache.closeAll(a.entries)
	}
	a.entries = make([]*diskWriterEntry, 0, len(a.fileEntries))
	for _, fe := range a.fileEntries {
		var dw diskwriter.DiskWriter
		if fe.Requested {
			dw = a.factory.NewDiskWriter()
		} else {
			dw = diskwriter.NewDefaultDiskWriter(a.fs, a.filePerm)
		}
		dw.SetDirectIOAllowed(a.directIOAllowed)
		a.entries = append(a.entries, newDiskWriterEntry(fe, dw))
	}
	a.generation++
	logger.Debug("built disk writer entries", "count", len(a.entries), "top_dir", a.TopDirPath())
}

func (a *MultiDiskAdaptor) mkdir(topDirPath string) error {
	if err := a.fs.MkdirAll(topDirPath, a.dirPerm); err != nil {
		return errors.Wrapf(err, "create directory %s", topDirPath)
	}
	for _, fe := range a.fileEntries {
		if err := fe.SetupDir(a.fs, topDirPath, a.dirPerm); err != nil {
			return err
		}
	}
	return nil
}

func (a *MultiDiskAdaptor) prepareAndCreate() error {
	a.cachedTopDirPath = a.TopDirPath()
	if err := a.mkdir(a.cachedTopDirPath); err != nil {
		return err
	}
	a.build()
	return nil
}

// PrepareAndCreate creates the directory tree and builds the entries.
// Files are opened lazily on first access.
func (a *MultiDiskAdaptor) PrepareAndCreate() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.prepareAndCreate()
}

// PrepareAndInitialize creates the directory tree, builds the entries and
// creates every file at its final length. With more files than
// MaxOpenFiles, earlier files are evicted along the way.
func (a *MultiDiskAdaptor) PrepareAndInitialize() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.prepareAndCreate(); err != nil {
		return err
	}
	for _, e := range a.entries {
		if err := a.cache.ensureOpen(e, (*diskWriterEntry).initAndOpenFile, a.cachedTopDirPath); err != nil {
			return err
		}
	}
	return nil
}

// Resume builds the entries over an existing directory tree without
// creating directories or opening files.
func (a *MultiDiskAdaptor) Resume() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.cachedTopDirPath = a.TopDirPath()
	a.build()
}

// CloseAll closes every open file. It is safe to call repeatedly.
func (a *MultiDiskAdaptor) CloseAll() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cache.closeAll(a.entries)
}

// OnComplete releases all handles and rebuilds fresh entries, dropping any
// per-file state such as direct I/O.
func (a *MultiDiskAdaptor) OnComplete() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.cache.closeAll(a.entries); err != nil {
		return err
	}
	return a.prepareAndCreate()
}

// locate returns the index of the entry containing offset.
func (a *MultiDiskAdaptor) locate(offset int64) (int, error) {
	i := sort.Search(len(a.entries), func(i int) bool {
		return a.entries[i].fileEntry.Offset > offset
	}) - 1
	if i < 0 || !a.entries[i].fileEntry.Contains(offset) {
		return 0, &OffsetOutOfRangeError{Offset: offset}
	}
	return i, nil
}

// chunkLength is the part of rem that fits in fe from fileOffset on.
func chunkLength(fe *fileentry.FileEntry, fileOffset, rem int64) int64 {
	if fe.Length < fileOffset+rem {
		return fe.Length - fileOffset
	}
	return rem
}

// Write writes p at the virtual offset, spanning as many files as needed.
// Chunks written before a failure stay written. Writing past the last file
// fails with an *OffsetOutOfRangeError for the first uncovered offset.
func (a *MultiDiskAdaptor) Write(p []byte, offset int64) error {
	_, err := a.WriteAt(p, offset)
	return err
}

// WriteAt is Write that also reports how many bytes were committed before
// an error stopped it.
func (a *MultiDiskAdaptor) WriteAt(p []byte, offset int64) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	first, err := a.locate(offset)
	if err != nil {
		return 0, err
	}

	rem := int64(len(p))
	fileOffset := offset - a.entries[first].fileEntry.Offset
	for _, e := range a.entries[first:] {
		n := chunkLength(e.fileEntry, fileOffset, rem)
		done := int64(len(p)) - rem
		if err := a.cache.ensureOpen(e, (*diskWriterEntry).openFile, a.cachedTopDirPath); err != nil {
			return int(done), err
		}
		if err := e.diskWriter.WriteData(p[done:done+n], fileOffset); err != nil {
			return int(done), err
		}
		rem -= n
		fileOffset = 0
		if rem == 0 {
			return len(p), nil
		}
	}
	return len(p) - int(rem), &OffsetOutOfRangeError{Offset: offset + int64(len(p)) - rem}
}

// Read fills p from the virtual offset and returns the number of bytes the
// files actually held. A count below len(p) means the request ran past the
// last file or a file was shorter than its entry.
func (a *MultiDiskAdaptor) Read(p []byte, offset int64) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	first, err := a.locate(offset)
	if err != nil {
		return 0, err
	}

	rem := int64(len(p))
	total := 0
	fileOffset := offset - a.entries[first].fileEntry.Offset
	for _, e := range a.entries[first:] {
		n := chunkLength(e.fileEntry, fileOffset, rem)
		if err := a.cache.ensureOpen(e, (*diskWriterEntry).openFile, a.cachedTopDirPath); err != nil {
			return total, err
		}
		done := int64(len(p)) - rem
		read, err := e.diskWriter.ReadData(p[done:done+n], fileOffset)
		total += read
		if err != nil {
			return total, err
		}
		rem -= n
		fileOffset = 0
		if rem == 0 {
			break
		}
	}
	return total, nil
}

// Exists reports whether any of the files is present on disk. It builds the
// entries first if that has not happened yet.
func (a *MultiDiskAdaptor) Exists() (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.entries) == 0 {
		a.build()
	}
	// The cached path is only set once files are opened.
	topDirPath := a.TopDirPath()
	for _, e := range a.entries {
		ok, err := e.fileExists(a.fs, topDirPath)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Size sums the on-disk sizes of all files. Files never opened count as 0.
func (a *MultiDiskAdaptor) Size() (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var size int64
	for _, e := range a.entries {
		n, err := e.size()
		if err != nil {
			return 0, err
		}
		size += n
	}
	return size, nil
}

// TotalLength returns the length of the virtual space.
func (a *MultiDiskAdaptor) TotalLength() int64 {
	return fileentry.TotalLength(a.fileEntries)
}

// SetMaxOpenFiles changes the open file limit. If more files are open than
// the new limit allows, random ones are closed immediately.
func (a *MultiDiskAdaptor) SetMaxOpenFiles(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cache.setMaxOpenFiles(n)
}

// SetDirectIO switches direct I/O on or off for every file. Open files
// change at once; closed files pick it up when next opened.
func (a *MultiDiskAdaptor) SetDirectIO(enabled bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var firstErr error
	for _, e := range a.entries {
		if err := e.setDirectIO(enabled); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// EntryInfo is a snapshot of one file's state.
type EntryInfo struct {
	Path      string
	Offset    int64
	Length    int64
	Requested bool
	Open      bool
	DirectIO  bool
}

// Entries returns the state of every built entry in offset order.
func (a *MultiDiskAdaptor) Entries() []EntryInfo {
	a.mu.Lock()
	defer a.mu.Unlock()

	infos := make([]EntryInfo, 0, len(a.entries))
	for _, e := range a.entries {
		infos = append(infos, EntryInfo{
			Path:      e.fileEntry.Path,
			Offset:    e.fileEntry.Offset,
			Length:    e.fileEntry.Length,
			Requested: e.fileEntry.Requested,
			Open:      e.open,
			DirectIO:  e.directIO,
		})
	}
	return infos
}

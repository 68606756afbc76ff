// Package multidisk presents many files as one randomly addressable byte
// store.
//
// The files of a session (for example the files of a multi-file download)
// are laid out back to back in a single virtual address space. Reads and
// writes against that space are routed to the right files and split at file
// boundaries. Only a bounded number of files are kept open at once; when the
// limit is reached a randomly chosen open file is closed.
//
// Example usage:
//
//	files := multidisk.FromSpecs([]multidisk.Spec{
//		{Path: "disc1/track01.flac", Length: 31_457_280},
//		{Path: "disc1/track02.flac", Length: 28_311_552},
//	})
//	d, err := multidisk.Open(files, "album", nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer d.Close()
//
//	if _, err := d.WriteAt(block, 31_457_000); err != nil {
//		log.Printf("write failed: %v", err)
//	}
package multidisk

import (
	"io"

	"github.com/MikhailWahib/multidisk/internal/adaptor"
	"github.com/MikhailWahib/multidisk/internal/config"
	"github.com/MikhailWahib/multidisk/internal/fileentry"
	"github.com/spf13/afero"
)

// Config is an alias for config.Config, re-exported for user convenience.
type Config = config.Config

// DefaultConfig returns a Config struct populated with default values. Re-exported for user convenience.
var DefaultConfig = config.DefaultConfig

// FileEntry describes one file's placement in the virtual space.
type FileEntry = fileentry.FileEntry

// Spec describes a file by path and length; offsets follow from order.
type Spec = fileentry.Spec

// Stats holds open file cache counters.
type Stats = adaptor.Stats

// FileAllocationIterator preallocates files chunk by chunk.
type FileAllocationIterator = adaptor.FileAllocationIterator

var (
	// FromSpecs lays files out back to back starting at offset 0.
	FromSpecs = fileentry.FromSpecs
	// LoadManifest reads a JSON array of Spec.
	LoadManifest = fileentry.LoadManifest
)

// ErrOffsetOutOfRange is matched by errors for offsets no file covers.
var ErrOffsetOutOfRange = adaptor.ErrOffsetOutOfRange

// Disk is a virtual disk over a set of files. It is safe for concurrent use.
type Disk struct {
	adaptor *adaptor.MultiDiskAdaptor
}

var (
	_ io.ReaderAt = (*Disk)(nil)
	_ io.WriterAt = (*Disk)(nil)
	_ io.Closer   = (*Disk)(nil)
)

// Open validates files and prepares a Disk rooted at cfg.StoreDir/topDir.
//
// Directories are created; files are created lazily on first access. Use
// Initialize to create every file at its final size up front.
func Open(files []*FileEntry, topDir string, cfg *Config) (*Disk, error) {
	return open(files, topDir, cfg, afero.NewOsFs())
}

// OpenFs is like Open but stores files on fs.
func OpenFs(fs afero.Fs, files []*FileEntry, topDir string, cfg *Config) (*Disk, error) {
	return open(files, topDir, cfg, fs)
}

func open(files []*FileEntry, topDir string, cfg *Config, fs afero.Fs) (*Disk, error) {
	if err := fileentry.Validate(files); err != nil {
		return nil, err
	}
	a := adaptor.New(files, topDir, cfg, adaptor.WithFs(fs))
	if err := a.PrepareAndCreate(); err != nil {
		return nil, err
	}
	return &Disk{adaptor: a}, nil
}

// Resume validates files and opens a Disk over an existing directory tree
// without creating anything.
func Resume(fs afero.Fs, files []*FileEntry, topDir string, cfg *Config) (*Disk, error) {
	if err := fileentry.Validate(files); err != nil {
		return nil, err
	}
	a := adaptor.New(files, topDir, cfg, adaptor.WithFs(fs))
	a.Resume()
	return &Disk{adaptor: a}, nil
}

// Initialize creates every file at its final length, truncating existing
// files whose size differs.
func (d *Disk) Initialize() error {
	return d.adaptor.PrepareAndInitialize()
}

// WriteAt writes p at the virtual offset off. On error n counts the bytes
// that were written before it.
func (d *Disk) WriteAt(p []byte, off int64) (int, error) {
	return d.adaptor.WriteAt(p, off)
}

// ReadAt reads len(p) bytes from the virtual offset off. It returns io.EOF
// when fewer bytes are available, including at or past the end of the disk.
// Negative offsets fail with ErrOffsetOutOfRange.
func (d *Disk) ReadAt(p []byte, off int64) (int, error) {
	if off >= 0 && off >= d.Length() {
		return 0, io.EOF
	}
	n, err := d.adaptor.Read(p, off)
	if err != nil {
		return n, err
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Exists reports whether any file of the disk is already on disk.
func (d *Disk) Exists() (bool, error) {
	return d.adaptor.Exists()
}

// Size returns the sum of the on-disk sizes of the files.
func (d *Disk) Size() (int64, error) {
	return d.adaptor.Size()
}

// Length returns the size of the virtual space.
func (d *Disk) Length() int64 {
	return d.adaptor.TotalLength()
}

// SetMaxOpenFiles changes the open file limit, closing files if needed.
func (d *Disk) SetMaxOpenFiles(n int) {
	d.adaptor.SetMaxOpenFiles(n)
}

// SetDirectIO switches direct I/O on or off for all files. It only has an
// effect when Config.DirectIOAllowed is set.
func (d *Disk) SetDirectIO(enabled bool) error {
	return d.adaptor.SetDirectIO(enabled)
}

// AllocationIterator returns an iterator preallocating the requested files.
func (d *Disk) AllocationIterator() FileAllocationIterator {
	return d.adaptor.AllocationIterator()
}

// Complete closes all files and resets per-file state after a transfer
// finished.
func (d *Disk) Complete() error {
	return d.adaptor.OnComplete()
}

// Stats returns open file cache counters.
func (d *Disk) Stats() Stats {
	return d.adaptor.Stats()
}

// Close closes all open files. The Disk stays usable; files are reopened
// on the next access.
func (d *Disk) Close() error {
	return d.adaptor.CloseAll()
}

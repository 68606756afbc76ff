// Package diskwriter provides the per-file I/O backend used by the
// multi-file adaptor. Each DiskWriter owns at most one open file.
package diskwriter

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// ErrNotOpen is returned by I/O on a DiskWriter whose file is closed.
var ErrNotOpen = errors.New("disk writer: file is not open")

// DiskWriter abstracts a single randomly addressable file.
type DiskWriter interface {
	// InitAndOpenFile creates the file if needed and truncates it to
	// totalLength when its current size differs.
	InitAndOpenFile(path string, totalLength int64) error
	// OpenFile opens the file, creating it when absent. The size is left as is.
	OpenFile(path string) error
	// OpenExistingFile opens a file that must already exist.
	OpenExistingFile(path string) error
	// CloseFile closes the file. Closing a closed writer is a no-op.
	CloseFile() error
	// WriteData writes all of p at offset.
	WriteData(p []byte, offset int64) error
	// ReadData reads into p from offset. Reaching end of file is not an
	// error; the returned count is then smaller than len(p).
	ReadData(p []byte, offset int64) (int, error)
	// Size returns the on-disk size of the file, or 0 if it was never opened.
	Size() (int64, error)
	// Allocate reserves disk blocks for [offset, offset+length).
	Allocate(offset, length int64) error
	EnableDirectIO() error
	DisableDirectIO() error
	SetDirectIOAllowed(allowed bool)
}

// Factory produces DiskWriters for requested files.
type Factory interface {
	NewDiskWriter() DiskWriter
}

// DefaultFactory creates direct I/O capable writers on Fs.
type DefaultFactory struct {
	Fs   afero.Fs
	Perm os.FileMode
}

// NewDiskWriter implements Factory.
func (f DefaultFactory) NewDiskWriter() DiskWriter {
	return &fileWriter{fs: f.Fs, perm: f.Perm, directIOCapable: true}
}

// NewDefaultDiskWriter returns the baseline writer. It never switches to
// direct I/O.
func NewDefaultDiskWriter(fs afero.Fs, perm os.FileMode) DiskWriter {
	return &fileWriter{fs: fs, perm: perm}
}

type fileWriter struct {
	fs   afero.Fs
	perm os.FileMode

	path string
	file afero.File

	directIOCapable bool
	directIOAllowed bool
	// direct is set while the open descriptor carries O_DIRECT.
	direct bool
}

func (w *fileWriter) open(path string, flags int) error {
	if err := w.CloseFile(); err != nil {
		return err
	}
	f, err := w.fs.OpenFile(path, flags, w.perm)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	w.file = f
	w.path = path
	return nil
}

func (w *fileWriter) InitAndOpenFile(path string, totalLength int64) error {
	if err := w.open(path, os.O_RDWR|os.O_CREATE); err != nil {
		return err
	}
	fi, err := w.file.Stat()
	if err != nil {
		_ = w.CloseFile()
		return errors.Wrapf(err, "stat %s", path)
	}
	if fi.Size() != totalLength {
		if err := w.file.Truncate(totalLength); err != nil {
			_ = w.CloseFile()
			return errors.Wrapf(err, "truncate %s to %d", path, totalLength)
		}
	}
	return nil
}

func (w *fileWriter) OpenFile(path string) error {
	return w.open(path, os.O_RDWR|os.O_CREATE)
}

func (w *fileWriter) OpenExistingFile(path string) error {
	return w.open(path, os.O_RDWR)
}

func (w *fileWriter) CloseFile() error {
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	w.direct = false
	if err != nil {
		return errors.Wrapf(err, "close %s", w.path)
	}
	return nil
}

func (w *fileWriter) WriteData(p []byte, offset int64) error {
	if w.file == nil {
		return ErrNotOpen
	}
	if len(p) == 0 {
		return nil
	}
	if w.direct {
		if err := writeAligned(w.file.(*os.File), p, offset); err != nil {
			return errors.Wrapf(err, "write %s at %d", w.path, offset)
		}
		return nil
	}
	n, err := w.file.WriteAt(p, offset)
	if err != nil {
		return errors.Wrapf(err, "write %s at %d", w.path, offset)
	}
	if n < len(p) {
		return errors.Wrapf(io.ErrShortWrite, "write %s at %d", w.path, offset)
	}
	return nil
}

func (w *fileWriter) ReadData(p []byte, offset int64) (int, error) {
	if w.file == nil {
		return 0, ErrNotOpen
	}
	if w.direct {
		n, err := readAligned(w.file.(*os.File), p, offset)
		if err != nil {
			return n, errors.Wrapf(err, "read %s at %d", w.path, offset)
		}
		return n, nil
	}
	n, err := w.file.ReadAt(p, offset)
	if err != nil && err != io.EOF {
		return n, errors.Wrapf(err, "read %s at %d", w.path, offset)
	}
	return n, nil
}

func (w *fileWriter) Size() (int64, error) {
	if w.file == nil {
		if w.path == "" {
			return 0, nil
		}
		fi, err := w.fs.Stat(w.path)
		if err != nil {
			return 0, errors.Wrapf(err, "stat %s", w.path)
		}
		return fi.Size(), nil
	}
	fi, err := w.file.Stat()
	if err != nil {
		return 0, errors.Wrapf(err, "stat %s", w.path)
	}
	return fi.Size(), nil
}

func (w *fileWriter) Allocate(offset, length int64) error {
	if w.file == nil {
		return ErrNotOpen
	}
	if length <= 0 {
		return nil
	}
	if f, ok := w.file.(*os.File); ok {
		err := fallocate(f, offset, length)
		if err == nil {
			return nil
		}
		if !errors.Is(err, errAllocateUnsupported) {
			return errors.Wrapf(err, "allocate %s [%d, %d)", w.path, offset, offset+length)
		}
	}
	// Extending the size keeps existing bytes intact; the blocks stay sparse.
	fi, err := w.file.Stat()
	if err != nil {
		return errors.Wrapf(err, "stat %s", w.path)
	}
	if end := offset + length; fi.Size() < end {
		if err := w.file.Truncate(end); err != nil {
			return errors.Wrapf(err, "extend %s to %d", w.path, end)
		}
	}
	return nil
}

func (w *fileWriter) EnableDirectIO() error {
	return w.applyDirectIO(true)
}

func (w *fileWriter) DisableDirectIO() error {
	return w.applyDirectIO(false)
}

func (w *fileWriter) applyDirectIO(enabled bool) error {
	if !w.directIOCapable || w.file == nil {
		return nil
	}
	if enabled && !w.directIOAllowed {
		return nil
	}
	f, ok := w.file.(*os.File)
	if !ok {
		return nil
	}
	if err := setDirectIO(f, enabled); err != nil {
		return errors.Wrapf(err, "set direct I/O on %s", w.path)
	}
	w.direct = enabled && directIOSupported
	return nil
}

func (w *fileWriter) SetDirectIOAllowed(allowed bool) {
	w.directIOAllowed = allowed
}

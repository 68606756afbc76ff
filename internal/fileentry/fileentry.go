// Package fileentry describes where each file of a session sits in the
// shared virtual byte space.
package fileentry

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

var (
	ErrInvalidLength = errors.New("file length must be positive")
	ErrInvalidOffset = errors.New("first file must start at offset 0")
	ErrNotContiguous = errors.New("files do not tile the virtual space")
	ErrInvalidPath   = errors.New("file path must be relative and local")
)

// FileEntry is one file's placement in the virtual space. The adaptor only
// reads it.
type FileEntry struct {
	Path      string // relative to the session top directory
	Offset    int64  // absolute start in the virtual space
	Length    int64
	Requested bool // false for files skipped by selective download
}

// End returns the first virtual offset past this file.
func (e *FileEntry) End() int64 {
	return e.Offset + e.Length
}

// Contains reports whether offset falls inside this file.
func (e *FileEntry) Contains(offset int64) bool {
	return e.Offset <= offset && offset < e.End()
}

// FilePath joins the entry's path onto topDir.
func (e *FileEntry) FilePath(topDir string) string {
	return filepath.Join(topDir, filepath.FromSlash(e.Path))
}

// SetupDir creates the parent directories of the entry below topDir.
func (e *FileEntry) SetupDir(fs afero.Fs, topDir string, perm os.FileMode) error {
	dir := filepath.Dir(e.FilePath(topDir))
	if err := fs.MkdirAll(dir, perm); err != nil {
		return errors.Wrapf(err, "create directory %s", dir)
	}
	return nil
}

// Validate checks that entries are sorted, non-overlapping and contiguous
// from offset 0, with positive lengths and local paths.
func Validate(entries []*FileEntry) error {
	var next int64
	for i, e := range entries {
		if e.Length <= 0 {
			return errors.Wrapf(ErrInvalidLength, "entry %d (%s)", i, e.Path)
		}
		if !filepath.IsLocal(filepath.FromSlash(e.Path)) {
			return errors.Wrapf(ErrInvalidPath, "entry %d (%q)", i, e.Path)
		}
		if i == 0 && e.Offset != 0 {
			return errors.Wrapf(ErrInvalidOffset, "entry 0 starts at %d", e.Offset)
		}
		if e.Offset != next {
			return errors.Wrapf(ErrNotContiguous, "entry %d starts at %d, want %d", i, e.Offset, next)
		}
		next = e.End()
	}
	return nil
}

// TotalLength returns the size of the virtual space tiled by entries.
func TotalLength(entries []*FileEntry) int64 {
	if len(entries) == 0 {
		return 0
	}
	return entries[len(entries)-1].End()
}

// Spec is the manifest form of a file: offsets are implied by order.
type Spec struct {
	Path      string `json:"path"`
	Length    int64  `json:"length"`
	Requested *bool  `json:"requested,omitempty"`
}

// FromSpecs lays specs out back to back starting at offset 0. Files are
// requested unless a spec says otherwise.
func FromSpecs(specs []Spec) []*FileEntry {
	entries := make([]*FileEntry, 0, len(specs))
	var offset int64
	for _, s := range specs {
		requested := true
		if s.Requested != nil {
			requested = *s.Requested
		}
		entries = append(entries, &FileEntry{
			Path:      s.Path,
			Offset:    offset,
			Length:    s.Length,
			Requested: requested,
		})
		offset += s.Length
	}
	return entries
}

// LoadManifest reads a JSON array of Spec from path and returns validated
// entries.
func LoadManifest(fs afero.Fs, path string) ([]*FileEntry, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open manifest")
	}
	defer f.Close()

	var specs []Spec
	if err := json.NewDecoder(f).Decode(&specs); err != nil {
		return nil, errors.Wrap(err, "decode manifest")
	}

	entries := FromSpecs(specs)
	if err := Validate(entries); err != nil {
		return nil, err
	}
	return entries, nil
}

package adaptor

import (
	"github.com/MikhailWahib/multidisk/internal/diskwriter"
	"github.com/MikhailWahib/multidisk/internal/fileentry"
	"github.com/spf13/afero"
)

// diskWriterEntry pairs a file's placement with its backend handle. The open
// flag is only flipped through the handle cache.
type diskWriterEntry struct {
	fileEntry  *fileentry.FileEntry
	diskWriter diskwriter.DiskWriter
	open       bool
	directIO   bool
}

// openFunc is one of the three ways an entry can be opened.
type openFunc func(e *diskWriterEntry, topDir string) error

func newDiskWriterEntry(fe *fileentry.FileEntry, dw diskwriter.DiskWriter) *diskWriterEntry {
	return &diskWriterEntry{fileEntry: fe, diskWriter: dw}
}

func (e *diskWriterEntry) filePath(topDir string) string {
	return e.fileEntry.FilePath(topDir)
}

// initAndOpenFile creates the file, truncating it to the entry length.
func (e *diskWriterEntry) initAndOpenFile(topDir string) error {
	return e.afterOpen(e.diskWriter.InitAndOpenFile(e.filePath(topDir), e.fileEntry.Length))
}

// openFile opens the file as is, creating it when missing.
func (e *diskWriterEntry) openFile(topDir string) error {
	return e.afterOpen(e.diskWriter.OpenFile(e.filePath(topDir)))
}

func (e *diskWriterEntry) openExistingFile(topDir string) error {
	return e.afterOpen(e.diskWriter.OpenExistingFile(e.filePath(topDir)))
}

func (e *diskWriterEntry) afterOpen(err error) error {
	if err != nil {
		return err
	}
	if e.directIO {
		if err := e.diskWriter.EnableDirectIO(); err != nil {
			_ = e.diskWriter.CloseFile()
			return err
		}
	}
	e.open = true
	return nil
}

func (e *diskWriterEntry) closeFile() error {
	if !e.open {
		return nil
	}
	e.open = false
	return e.diskWriter.CloseFile()
}

func (e *diskWriterEntry) fileExists(fs afero.Fs, topDir string) (bool, error) {
	return afero.Exists(fs, e.filePath(topDir))
}

func (e *diskWriterEntry) size() (int64, error) {
	return e.diskWriter.Size()
}

// setDirectIO records the preference and applies it right away when the
// file is open.
func (e *diskWriterEntry) setDirectIO(enabled bool) error {
	e.directIO = enabled
	if !e.open {
		return nil
	}
	if enabled {
		return e.diskWriter.EnableDirectIO()
	}
	return e.diskWriter.DisableDirectIO()
}

// Package mockdw provides an in-memory DiskWriter for testing.
package mockdw

import (
	"sync"

	"github.com/MikhailWahib/multidisk/internal/diskwriter"
)

// OpenMode records which open method was used.
type OpenMode int

const (
	NotOpened OpenMode = iota
	InitAndOpen
	Open
	OpenExisting
)

// MockDiskWriter implements diskwriter.DiskWriter over a byte slice.
// Errors set on the exported fields are returned by the matching calls.
type MockDiskWriter struct {
	Path     string
	Data     []byte
	IsOpen   bool
	Mode     OpenMode
	DirectIO bool
	Allowed  bool

	Opens  int
	Closes int

	OpenErr  error
	WriteErr error
	ReadErr  error
	CloseErr error
}

var _ diskwriter.DiskWriter = (*MockDiskWriter)(nil)

func (m *MockDiskWriter) open(path string, mode OpenMode) error {
	if m.OpenErr != nil {
		return m.OpenErr
	}
	m.Path = path
	m.IsOpen = true
	m.Mode = mode
	m.Opens++
	return nil
}

// InitAndOpenFile resizes Data to totalLength.
func (m *MockDiskWriter) InitAndOpenFile(path string, totalLength int64) error {
	if err := m.open(path, InitAndOpen); err != nil {
		return err
	}
	data := make([]byte, totalLength)
	copy(data, m.Data)
	m.Data = data
	return nil
}

func (m *MockDiskWriter) OpenFile(path string) error {
	return m.open(path, Open)
}

func (m *MockDiskWriter) OpenExistingFile(path string) error {
	return m.open(path, OpenExisting)
}

func (m *MockDiskWriter) CloseFile() error {
	if !m.IsOpen {
		return nil
	}
	m.IsOpen = false
	m.DirectIO = false
	m.Closes++
	return m.CloseErr
}

// WriteData extends Data when writing past its end.
func (m *MockDiskWriter) WriteData(p []byte, offset int64) error {
	if !m.IsOpen {
		return diskwriter.ErrNotOpen
	}
	if m.WriteErr != nil {
		return m.WriteErr
	}
	requiredLen := int(offset) + len(p)
	if requiredLen > len(m.Data) {
		newData := make([]byte, requiredLen)
		copy(newData, m.Data)
		m.Data = newData
	}
	copy(m.Data[offset:], p)
	return nil
}

func (m *MockDiskWriter) ReadData(p []byte, offset int64) (int, error) {
	if !m.IsOpen {
		return 0, diskwriter.ErrNotOpen
	}
	if m.ReadErr != nil {
		return 0, m.ReadErr
	}
	if offset >= int64(len(m.Data)) {
		return 0, nil
	}
	return copy(p, m.Data[offset:]), nil
}

func (m *MockDiskWriter) Size() (int64, error) {
	return int64(len(m.Data)), nil
}

func (m *MockDiskWriter) Allocate(offset, length int64) error {
	if !m.IsOpen {
		return diskwriter.ErrNotOpen
	}
	if end := int(offset + length); end > len(m.Data) {
		data := make([]byte, end)
		copy(data, m.Data)
		m.Data = data
	}
	return nil
}

func (m *MockDiskWriter) EnableDirectIO() error {
	if m.IsOpen && m.Allowed {
		m.DirectIO = true
	}
	return nil
}

func (m *MockDiskWriter) DisableDirectIO() error {
	m.DirectIO = false
	return nil
}

func (m *MockDiskWriter) SetDirectIOAllowed(allowed bool) {
	m.Allowed = allowed
}

// Factory hands out MockDiskWriters and remembers them in creation order.
type Factory struct {
	mu      sync.Mutex
	Writers []*MockDiskWriter
}

// NewDiskWriter implements diskwriter.Factory.
func (f *Factory) NewDiskWriter() diskwriter.DiskWriter {
	f.mu.Lock()
	defer f.mu.Unlock()
	w := &MockDiskWriter{}
	f.Writers = append(f.Writers, w)
	return w
}

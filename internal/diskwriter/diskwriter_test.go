package diskwriter_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/MikhailWahib/multidisk/internal/diskwriter"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskWriter_InitAndOpenTruncates(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/f.bin", []byte("0123456789"), 0644))

	w := diskwriter.NewDefaultDiskWriter(fs, 0644)
	require.NoError(t, w.InitAndOpenFile("/f.bin", 4))
	defer w.CloseFile()

	size, err := w.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(4), size)

	buf := make([]byte, 4)
	n, err := w.ReadData(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "0123", string(buf))
}

func TestDiskWriter_InitAndOpenCreatesAtLength(t *testing.T) {
	fs := afero.NewMemMapFs()
	w := diskwriter.DefaultFactory{Fs: fs, Perm: 0644}.NewDiskWriter()

	require.NoError(t, w.InitAndOpenFile("/new.bin", 16))
	size, err := w.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(16), size)
	require.NoError(t, w.CloseFile())
}

func TestDiskWriter_OpenDoesNotTruncate(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/f.bin", []byte("hello"), 0644))

	w := diskwriter.NewDefaultDiskWriter(fs, 0644)
	require.NoError(t, w.OpenFile("/f.bin"))

	size, err := w.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)

	// Opening a missing file with OpenFile creates it
	w2 := diskwriter.NewDefaultDiskWriter(fs, 0644)
	require.NoError(t, w2.OpenFile("/created.bin"))
	ok, err := afero.Exists(fs, "/created.bin")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDiskWriter_OpenExistingMissing(t *testing.T) {
	fs := afero.NewMemMapFs()
	w := diskwriter.NewDefaultDiskWriter(fs, 0644)

	err := w.OpenExistingFile("/missing.bin")
	require.Error(t, err)
	assert.True(t, os.IsNotExist(errors.Cause(err)), "got %v", err)
}

func TestDiskWriter_ReadWriteAndShortRead(t *testing.T) {
	fs := afero.NewMemMapFs()
	w := diskwriter.NewDefaultDiskWriter(fs, 0644)
	require.NoError(t, w.InitAndOpenFile("/f.bin", 8))

	require.NoError(t, w.WriteData([]byte("abc"), 6))

	buf := make([]byte, 4)
	n, err := w.ReadData(buf, 6)
	require.NoError(t, err, "end of file must not surface as an error")
	assert.Equal(t, 3, n)
	assert.Equal(t, "abc", string(buf[:n]))
}

func TestDiskWriter_CloseIdempotent(t *testing.T) {
	fs := afero.NewMemMapFs()
	w := diskwriter.NewDefaultDiskWriter(fs, 0644)

	require.NoError(t, w.CloseFile(), "closing a never opened writer")
	require.NoError(t, w.OpenFile("/f.bin"))
	require.NoError(t, w.CloseFile())
	require.NoError(t, w.CloseFile())

	err := w.WriteData([]byte("x"), 0)
	assert.True(t, errors.Is(err, diskwriter.ErrNotOpen))
	_, err = w.ReadData(make([]byte, 1), 0)
	assert.True(t, errors.Is(err, diskwriter.ErrNotOpen))
}

func TestDiskWriter_SizeBeforeOpen(t *testing.T) {
	w := diskwriter.NewDefaultDiskWriter(afero.NewMemMapFs(), 0644)
	size, err := w.Size()
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestDiskWriter_AllocateOnDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "alloc.bin")
	w := diskwriter.DefaultFactory{Fs: afero.NewOsFs(), Perm: 0644}.NewDiskWriter()

	require.NoError(t, w.InitAndOpenFile(path, 0))
	require.NoError(t, w.WriteData([]byte("keep"), 0))
	require.NoError(t, w.Allocate(0, 4096))
	require.NoError(t, w.CloseFile())

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(4096), fi.Size())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "keep", string(data[:4]), "allocation must not clobber data")
}

func TestDiskWriter_AllocateInMemory(t *testing.T) {
	fs := afero.NewMemMapFs()
	w := diskwriter.NewDefaultDiskWriter(fs, 0644)
	require.NoError(t, w.InitAndOpenFile("/f.bin", 2))

	require.NoError(t, w.Allocate(0, 10))
	size, err := w.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(10), size)
}

func TestDiskWriter_DirectIOToggleOnDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dio.bin")
	w := diskwriter.DefaultFactory{Fs: afero.NewOsFs(), Perm: 0644}.NewDiskWriter()

	// Not allowed: enabling is silently ignored
	require.NoError(t, w.InitAndOpenFile(path, 4096))
	require.NoError(t, w.EnableDirectIO())
	require.NoError(t, w.WriteData([]byte("x"), 1), "unaligned write works without O_DIRECT")
	require.NoError(t, w.DisableDirectIO())
	require.NoError(t, w.CloseFile())

	// Direct I/O requests on a closed writer are no-ops
	w.SetDirectIOAllowed(true)
	require.NoError(t, w.EnableDirectIO())
	require.NoError(t, w.DisableDirectIO())
}

func TestDiskWriter_DirectIOUnalignedRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dio.bin")
	w := diskwriter.DefaultFactory{Fs: afero.NewOsFs(), Perm: 0644}.NewDiskWriter()
	w.SetDirectIOAllowed(true)

	require.NoError(t, w.InitAndOpenFile(path, 10000))
	require.NoError(t, w.WriteData([]byte("before"), 4090))
	if err := w.EnableDirectIO(); err != nil {
		t.Skipf("filesystem rejects O_DIRECT: %v", err)
	}

	// Unaligned offsets, lengths and a write straddling a block boundary
	require.NoError(t, w.WriteData([]byte("abc"), 1))
	require.NoError(t, w.WriteData([]byte("0123456789"), 4093))

	buf := make([]byte, 3)
	n, err := w.ReadData(buf, 1)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(buf[:n]))

	buf = make([]byte, 13)
	n, err = w.ReadData(buf, 4090)
	require.NoError(t, err)
	assert.Equal(t, "bef0123456789", string(buf[:n]), "bytes next to the write survive")

	// Writing near the end keeps the file length
	require.NoError(t, w.WriteData([]byte("end"), 9997))
	size, err := w.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(10000), size)

	// Growing writes stop at the data, not the block
	require.NoError(t, w.WriteData([]byte("tail"), 10000))
	size, err = w.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(10004), size)

	// Short read at end of file
	buf = make([]byte, 10)
	n, err = w.ReadData(buf, 9999)
	require.NoError(t, err)
	assert.Equal(t, "dtail", string(buf[:n]))

	require.NoError(t, w.DisableDirectIO())
	require.NoError(t, w.CloseFile())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data[1:4]))
	assert.Equal(t, "bef0123456789", string(data[4090:4103]))
	assert.Equal(t, "endtail", string(data[9997:]))
}

var errTruncate = errors.New("truncate refused")

// truncateFailFs hands out files whose Truncate always fails and counts
// how many of them were closed.
type truncateFailFs struct {
	afero.Fs
	closes *int
}

func (fs truncateFailFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	f, err := fs.Fs.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return &truncateFailFile{File: f, closes: fs.closes}, nil
}

type truncateFailFile struct {
	afero.File
	closes *int
}

func (f *truncateFailFile) Truncate(int64) error {
	return errTruncate
}

func (f *truncateFailFile) Close() error {
	*f.closes++
	return f.File.Close()
}

func TestDiskWriter_InitAndOpenClosesOnFailure(t *testing.T) {
	closes := 0
	fs := truncateFailFs{Fs: afero.NewMemMapFs(), closes: &closes}
	w := diskwriter.NewDefaultDiskWriter(fs, 0644)

	err := w.InitAndOpenFile("/f.bin", 10)
	require.ErrorIs(t, err, errTruncate)
	assert.Equal(t, 1, closes, "the half opened file is closed")

	_, err = w.ReadData(make([]byte, 1), 0)
	assert.ErrorIs(t, err, diskwriter.ErrNotOpen)

	// Matching size needs no truncate
	require.NoError(t, afero.WriteFile(fs.Fs, "/g.bin", make([]byte, 10), 0644))
	require.NoError(t, w.InitAndOpenFile("/g.bin", 10))
	require.NoError(t, w.CloseFile())
	assert.Equal(t, 2, closes)
}

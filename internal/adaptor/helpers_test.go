package adaptor

import (
	"fmt"
	"testing"

	"github.com/MikhailWahib/multidisk/internal/config"
	"github.com/MikhailWahib/multidisk/internal/diskwriter/mockdw"
	"github.com/MikhailWahib/multidisk/internal/fileentry"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// stubRandomizer returns queued indexes (0 once the queue is empty) and
// records every n it was asked about.
type stubRandomizer struct {
	next  []int
	calls []int
}

func (s *stubRandomizer) RandomNumber(n int) int {
	s.calls = append(s.calls, n)
	if len(s.next) == 0 {
		return 0
	}
	v := s.next[0]
	s.next = s.next[1:]
	return v % n
}

func specs(lengths ...int64) []fileentry.Spec {
	out := make([]fileentry.Spec, 0, len(lengths))
	for i, l := range lengths {
		out = append(out, fileentry.Spec{Path: fmt.Sprintf("dir%d/file%d", i%2, i), Length: l})
	}
	return out
}

func testConfig(maxOpen int) *config.Config {
	return &config.Config{StoreDir: "/store", MaxOpenFiles: maxOpen, AllocationChunkSize: 4}
}

// newMemAdaptor builds a prepared adaptor over an in-memory filesystem with
// real disk writers.
func newMemAdaptor(t *testing.T, maxOpen int, lengths ...int64) (*MultiDiskAdaptor, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	a := New(fileentry.FromSpecs(specs(lengths...)), "top", testConfig(maxOpen), WithFs(fs))
	require.NoError(t, a.PrepareAndCreate())
	return a, fs
}

// newMockAdaptor builds a prepared adaptor whose requested files use mock
// writers.
func newMockAdaptor(t *testing.T, cfg *config.Config, r *stubRandomizer, files []*fileentry.FileEntry) (*MultiDiskAdaptor, *mockdw.Factory) {
	t.Helper()
	factory := &mockdw.Factory{}
	opts := []Option{WithFs(afero.NewMemMapFs()), WithFactory(factory)}
	if r != nil {
		opts = append(opts, WithRandomizer(r))
	}
	a := New(files, "top", cfg, opts...)
	require.NoError(t, a.PrepareAndCreate())
	return a, factory
}

// requireCacheConsistent checks that the cache and the entry open flags
// agree and that the cache is within its bound.
func requireCacheConsistent(t *testing.T, a *MultiDiskAdaptor) {
	t.Helper()
	cached := make(map[*diskWriterEntry]bool)
	for _, e := range a.cache.entries {
		require.False(t, cached[e], "entry cached twice: %s", e.fileEntry.Path)
		cached[e] = true
		require.True(t, e.open, "cached entry is closed: %s", e.fileEntry.Path)
	}
	for _, e := range a.entries {
		require.Equal(t, e.open, cached[e], "open flag and cache disagree for %s", e.fileEntry.Path)
	}
	require.LessOrEqual(t, len(a.cache.entries), a.cache.maxOpenFiles)
}

func openPaths(a *MultiDiskAdaptor) []string {
	var paths []string
	for _, info := range a.Entries() {
		if info.Open {
			paths = append(paths, info.Path)
		}
	}
	return paths
}

package revprops

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/apache/subversion-sub028/pkg/fsfs/item"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	files map[string][]byte
}

func newMemStore() *memStore { return &memStore{files: map[string][]byte{}} }

func (m *memStore) ReadFile(path string) ([]byte, error) {
	data, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("no such file: %s", path)
	}
	return data, nil
}

func (m *memStore) WriteFileAtomic(path string, data []byte) error {
	m.files[path] = append([]byte(nil), data...)
	return nil
}

func (m *memStore) Remove(path string) error {
	delete(m.files, path)
	return nil
}

type fakePaths struct {
	maxFilesPerDir int64
}

func (p fakePaths) RevpropPath(rev int64) string { return fmt.Sprintf("revprops/%d/%d", p.Shard(rev), rev) }
func (p fakePaths) RevpropPackDir(shard int64) string {
	return fmt.Sprintf("revprops/%d.pack", shard)
}
func (p fakePaths) RevpropManifestPath(shard int64) string {
	return fmt.Sprintf("revprops/%d.pack/manifest", shard)
}
func (p fakePaths) RevpropPackFilePath(shard int64, firstRev int64, sequence int) string {
	return fmt.Sprintf("revprops/%d.pack/%d.%d", shard, firstRev, sequence)
}
func (p fakePaths) Shard(rev int64) int64 { return rev / p.maxFilesPerDir }

func TestUnpackedRoundTrip(t *testing.T) {
	store := newMemStore()
	paths := fakePaths{maxFilesPerDir: 1000}
	props := item.PropList{"svn:log": []byte("hello"), "svn:author": []byte("jrandom")}

	require.NoError(t, WriteUnpacked(store, paths, 42, props))

	got, err := ReadUnpacked(store, paths, 42)
	require.NoError(t, err)
	require.Equal(t, props, got)
}

func TestManifestRoundTrip(t *testing.T) {
	m := Manifest{Entries: []ManifestEntry{
		{PackFile: "revprops/0.pack/0.0", Offset: 10},
		{PackFile: "revprops/0.pack/0.0", Offset: 50},
	}}
	data := m.WriteManifest()
	got, err := ParseManifest(data)
	require.NoError(t, err)
	require.Equal(t, m, got)
}

func TestParseEmptyManifest(t *testing.T) {
	m, err := ParseManifest(nil)
	require.NoError(t, err)
	require.Empty(t, m.Entries)
}

func TestPackSingleFileWhenSmall(t *testing.T) {
	propLists := []item.PropList{
		{"svn:log": []byte("one")},
		{"svn:log": []byte("two")},
		{"svn:log": []byte("three")},
	}
	manifest, files, err := Pack(0, propLists, 1<<20, func(seq int) string {
		return fmt.Sprintf("revprops/0.pack/%d.%d", 0, seq)
	})
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Len(t, manifest.Entries, 3)

	for i, props := range propLists {
		entry := manifest.Entries[i]
		data := files[entry.PackFile]
		got, err := item.ReadPropList(bytes.NewReader(data[entry.Offset:]))
		require.NoError(t, err)
		require.Equal(t, props, got)
	}
}

func TestPackSplitsAtThreshold(t *testing.T) {
	big := make([]byte, 100)
	propLists := []item.PropList{
		{"svn:log": big},
		{"svn:log": big},
		{"svn:log": big},
		{"svn:log": big},
	}
	manifest, files, err := Pack(0, propLists, 150, func(seq int) string {
		return fmt.Sprintf("revprops/0.pack/%d.%d", 0, seq)
	})
	require.NoError(t, err)
	require.True(t, len(files) > 1)
	require.Len(t, manifest.Entries, 4)

	for i, props := range propLists {
		entry := manifest.Entries[i]
		data := files[entry.PackFile]
		got, err := item.ReadPropList(bytes.NewReader(data[entry.Offset:]))
		require.NoError(t, err)
		require.Equal(t, props, got)
	}
}

func TestReadPackedResolvesViaManifest(t *testing.T) {
	store := newMemStore()
	paths := fakePaths{maxFilesPerDir: 1000}

	propLists := []item.PropList{
		{"svn:log": []byte("rev0")},
		{"svn:log": []byte("rev1")},
	}
	manifest, files, err := Pack(0, propLists, 1<<20, func(seq int) string {
		return paths.RevpropPackFilePath(0, 0, seq)
	})
	require.NoError(t, err)
	for path, data := range files {
		store.files[path] = data
	}
	store.files[paths.RevpropManifestPath(0)] = manifest.WriteManifest()

	got, err := ReadPacked(store, paths, 1, 0)
	require.NoError(t, err)
	require.Equal(t, propLists[1], got)
}

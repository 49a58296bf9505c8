// Package revprops implements fsfs's per-revision property store: one
// small file per revision while a shard is unpacked, or a packed
// manifest-plus-chunks layout once the shard has been sealed by the
// pack engine, grounded on spec.md §4.6 and original_source's
// subversion/libsvn_fs_fs/revprops.c.
package revprops

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/apache/subversion-sub028/pkg/fsfs/fsfserr"
	"github.com/apache/subversion-sub028/pkg/fsfs/item"
)

// Store is the filesystem surface revprops needs: plain read/write of
// named files plus an atomic rename for the write-new-then-rename
// pattern spec.md §4.6 requires. Kept minimal and swappable so tests
// can use an in-memory fake instead of touching a real directory.
type Store interface {
	ReadFile(path string) ([]byte, error)
	WriteFileAtomic(path string, data []byte) error
	Remove(path string) error
}

// Paths is the subset of layout.Layout revprops needs, named as an
// interface so this package does not import layout directly (it only
// needs path strings, not path construction).
type Paths interface {
	RevpropPath(rev int64) string
	RevpropPackDir(shard int64) string
	RevpropManifestPath(shard int64) string
	RevpropPackFilePath(shard int64, firstRev int64, sequence int) string
	Shard(rev int64) int64
}

// ManifestEntry locates one revision's serialized property list
// within a packed shard: which pack file holds it, and the byte
// offset it starts at within that file.
type ManifestEntry struct {
	PackFile string
	Offset   int64
}

// Manifest is the parsed form of a packed shard's manifest file, one
// entry per revision in shard order: Entries[i] locates revision
// shardFirstRev+i.
type Manifest struct {
	Entries []ManifestEntry
}

// WriteManifest serializes m as one "packfile offset\n" line per
// entry, in shard revision order.
func (m Manifest) WriteManifest() []byte {
	var buf bytes.Buffer
	for _, e := range m.Entries {
		fmt.Fprintf(&buf, "%s %d\n", e.PackFile, e.Offset)
	}
	return buf.Bytes()
}

// ParseManifest parses the manifest format written by WriteManifest.
func ParseManifest(data []byte) (Manifest, error) {
	var m Manifest
	trimmed := strings.TrimRight(string(data), "\n")
	if trimmed == "" {
		return m, nil
	}
	for _, line := range strings.Split(trimmed, "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return Manifest{}, fsfserr.MalformedIndex("revprops: bad manifest line " + line)
		}
		off, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return Manifest{}, fsfserr.MalformedIndex("revprops: bad manifest offset in " + line)
		}
		m.Entries = append(m.Entries, ManifestEntry{PackFile: fields[0], Offset: off})
	}
	return m, nil
}

// packHeader precedes the concatenated property lists in one pack
// file: the file's first revision, how many revisions it holds, and
// each one's serialized size, so a reader can compute byte offsets
// without a separate index.
type packHeader struct {
	FirstRevision int64
	Sizes         []int64
}

func (h packHeader) encode() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%d %d\n", h.FirstRevision, len(h.Sizes))
	for _, s := range h.Sizes {
		fmt.Fprintf(&buf, "%d\n", s)
	}
	return buf.Bytes()
}

// ReadUnpacked reads and parses the property list of revision rev
// from its own per-revision file.
func ReadUnpacked(store Store, paths Paths, rev int64) (item.PropList, error) {
	data, err := store.ReadFile(paths.RevpropPath(rev))
	if err != nil {
		return nil, err
	}
	return item.ReadPropList(bytes.NewReader(data))
}

// WriteUnpacked serializes props and writes them to revision rev's
// per-revision file via an atomic rename, matching spec.md §4.6's
// "write a new file to a temporary name, fsync, rename over the old".
func WriteUnpacked(store Store, paths Paths, rev int64, props item.PropList) error {
	var buf bytes.Buffer
	if _, err := props.WriteTo(&buf); err != nil {
		return err
	}
	return store.WriteFileAtomic(paths.RevpropPath(rev), buf.Bytes())
}

// ReadPacked reads revision rev's property list out of its shard's
// pack file, using the shard manifest to find the right file and
// offset. firstRevOfShard is the shard's first revision (rev -
// rev%maxFilesPerDir), needed because the manifest itself only
// records offsets relative to shard position, not absolute revision
// numbers.
func ReadPacked(store Store, paths Paths, rev int64, firstRevOfShard int64) (item.PropList, error) {
	shard := paths.Shard(rev)
	manifestData, err := store.ReadFile(paths.RevpropManifestPath(shard))
	if err != nil {
		return nil, err
	}
	manifest, err := ParseManifest(manifestData)
	if err != nil {
		return nil, err
	}

	idx := rev - firstRevOfShard
	if idx < 0 || idx >= int64(len(manifest.Entries)) {
		return nil, fsfserr.NoSuchRevision(rev)
	}
	entry := manifest.Entries[idx]

	data, err := store.ReadFile(entry.PackFile)
	if err != nil {
		return nil, err
	}
	return item.ReadPropList(bytes.NewReader(data[entry.Offset:]))
}

// packChunk is a not-yet-sealed pack file in progress: the accumulated
// serialized property lists that will share one packHeader.
type packChunk struct {
	firstRevision int64
	serialized    [][]byte
}

func (c *packChunk) sizes() []int64 {
	sizes := make([]int64, len(c.serialized))
	for i, s := range c.serialized {
		sizes[i] = int64(len(s))
	}
	return sizes
}

func (c *packChunk) projectedSize(next []byte) int64 {
	sizes := append(c.sizes(), int64(len(next)))
	headerLen := int64(len(packHeader{FirstRevision: c.firstRevision, Sizes: sizes}.encode()))
	var dataLen int64
	for _, s := range sizes {
		dataLen += s
	}
	return headerLen + dataLen
}

// encode renders the chunk's final bytes: header followed by the
// concatenated serialized property lists.
func (c *packChunk) encode() []byte {
	var buf bytes.Buffer
	buf.Write(packHeader{FirstRevision: c.firstRevision, Sizes: c.sizes()}.encode())
	for _, s := range c.serialized {
		buf.Write(s)
	}
	return buf.Bytes()
}

// offsets returns the byte offset of each revision's property list
// within the chunk's encoded bytes.
func (c *packChunk) offsets() []int64 {
	headerLen := int64(len(packHeader{FirstRevision: c.firstRevision, Sizes: c.sizes()}.encode()))
	offs := make([]int64, len(c.serialized))
	running := headerLen
	for i, s := range c.serialized {
		offs[i] = running
		running += int64(len(s))
	}
	return offs
}

// Pack builds one or more pack files covering consecutive revisions
// starting at firstRev, splitting into a new pack file whenever
// adding the next revision's property list would push the current
// pack file's encoded size past packSize, matching spec.md §4.6's
// pack-size threshold. namer turns a sequence number into the path
// the caller will write that pack file to (typically
// layout.Layout.RevpropPackFilePath bound to the shard and firstRev).
//
// It returns the completed manifest (one entry per revision, in
// order) and the encoded bytes of each pack file keyed by the path
// namer produced.
func Pack(firstRev int64, propLists []item.PropList, packSize int64, namer func(seq int) string) (Manifest, map[string][]byte, error) {
	serializedAll := make([][]byte, len(propLists))
	for i, props := range propLists {
		var buf bytes.Buffer
		if _, err := props.WriteTo(&buf); err != nil {
			return Manifest{}, nil, err
		}
		serializedAll[i] = buf.Bytes()
	}

	files := map[string][]byte{}
	var manifest Manifest

	seq := 0
	chunk := &packChunk{firstRevision: firstRev}

	flush := func() {
		path := namer(seq)
		for _, off := range chunk.offsets() {
			manifest.Entries = append(manifest.Entries, ManifestEntry{PackFile: path, Offset: off})
		}
		files[path] = chunk.encode()
	}

	for i, serialized := range serializedAll {
		if len(chunk.serialized) > 0 && chunk.projectedSize(serialized) > packSize {
			flush()
			seq++
			chunk = &packChunk{firstRevision: firstRev + int64(i)}
		}
		chunk.serialized = append(chunk.serialized, serialized)
	}
	flush()

	return manifest, files, nil
}

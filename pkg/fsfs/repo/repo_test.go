package repo

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/apache/subversion-sub028/pkg/fsfs/checksum"
	"github.com/apache/subversion-sub028/pkg/fsfs/config"
	"github.com/apache/subversion-sub028/pkg/fsfs/item"
	"github.com/apache/subversion-sub028/pkg/fsfs/p2l"
	"github.com/apache/subversion-sub028/pkg/fsfs/pagecache"
	"github.com/apache/subversion-sub028/pkg/fsfs/protoindex"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default(dir)
	r, err := Create(context.Background(), cfg, "11111111-1111-1111-1111-111111111111")
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestCreateProducesRevisionZero(t *testing.T) {
	r := newTestRepo(t)

	rev, err := r.CurrentRevision()
	require.NoError(t, err)
	require.Equal(t, int64(0), rev)

	minUnpacked, err := r.MinUnpackedRev()
	require.NoError(t, err)
	require.Equal(t, int64(0), minUnpacked)

	raw, err := r.ReadItem(0, 2)
	require.NoError(t, err)
	nr, err := item.ReadNodeRevision(bufio.NewReader(bytes.NewReader(raw)))
	require.NoError(t, err)
	require.Equal(t, "/", nr.CreatedPath)
	require.Equal(t, item.KindDir, nr.Kind)
}

func TestReadItemDetectsCorruption(t *testing.T) {
	r := newTestRepo(t)

	path := r.layout.RevFilePath(0)
	data, err := r.readFileCached(path)
	require.NoError(t, err)

	tampered := append([]byte(nil), data...)
	tampered[0] ^= 0xFF
	r.cache.SetPage(pagecache.PageKey{FileID: path, PageIndex: 0}, tampered)
	r.cache.Wait()

	_, err = r.ReadItem(0, 2)
	require.Error(t, err)
}

func TestFinalizeRevisionRejectsOutOfOrderRevision(t *testing.T) {
	r := newTestRepo(t)

	var protoL2P bytes.Buffer
	l2pw := protoindex.NewL2PWriter(&protoL2P)
	require.NoError(t, l2pw.NewRevision(5))
	require.NoError(t, l2pw.AddEntry(1, 0))

	var protoP2L bytes.Buffer
	p2lw := protoindex.NewP2LWriter(&protoP2L)
	require.NoError(t, p2lw.AddEntry(p2l.Entry{Offset: 0, Size: 1, Type: item.TypeChangedPaths, Revision: 5, ItemNumber: 1}))

	err := r.FinalizeRevision(context.Background(), 5, []byte("x"), protoL2P.Bytes(), protoP2L.Bytes())
	require.Error(t, err)
}

func TestWriteAndReadRevprops(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	props := item.PropList{"svn:log": []byte("initial import")}
	require.NoError(t, r.WriteRevprops(ctx, 0, props))

	got, err := r.ReadRevprops(0)
	require.NoError(t, err)
	require.Equal(t, []byte("initial import"), got["svn:log"])
}

// commitTrivialRevision commits a revision containing only an empty
// changed-paths record and a root node-revision, the same shape
// Create uses for revision 0, so tests can fill out a shard without
// a real transaction/commit layer.
func commitTrivialRevision(t *testing.T, r *Repository, rev int64) {
	t.Helper()

	var changedPathsBuf bytes.Buffer
	_, err := item.WriteChangedPaths(&changedPathsBuf, nil)
	require.NoError(t, err)
	changedPaths := changedPathsBuf.Bytes()

	root := item.NodeRevision{
		ID:          item.NodeID{Node: "0", Copy: "0", TxnOrRev: strconv.FormatInt(rev, 10)},
		Kind:        item.KindDir,
		CopyFromRev: -1,
		CreatedRev:  rev,
		CreatedPath: "/",
	}
	var rootBuf bytes.Buffer
	_, err = item.WriteNodeRevision(&rootBuf, root)
	require.NoError(t, err)

	protoRev := append(append([]byte{}, changedPaths...), rootBuf.Bytes()...)

	var protoL2P bytes.Buffer
	l2pw := protoindex.NewL2PWriter(&protoL2P)
	require.NoError(t, l2pw.NewRevision(rev))
	require.NoError(t, l2pw.AddEntry(1, 0))
	require.NoError(t, l2pw.AddEntry(2, int64(len(changedPaths))))

	var protoP2L bytes.Buffer
	p2lw := protoindex.NewP2LWriter(&protoP2L)
	require.NoError(t, p2lw.AddEntry(p2l.Entry{Offset: 0, Size: int64(len(changedPaths)), Type: item.TypeChangedPaths, Revision: rev, ItemNumber: 1, Checksum: checksum.FNV1a32(changedPaths)}))
	require.NoError(t, p2lw.AddEntry(p2l.Entry{Offset: int64(len(changedPaths)), Size: int64(rootBuf.Len()), Type: item.TypeNodeRev, Revision: rev, ItemNumber: 2, Checksum: checksum.FNV1a32(rootBuf.Bytes())}))

	require.NoError(t, r.FinalizeRevision(context.Background(), rev, protoRev, protoL2P.Bytes(), protoP2L.Bytes()))
}

func TestPackFoldsRevpropShard(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default(dir)
	cfg.MaxFilesPerDir = 2
	r, err := Create(context.Background(), cfg, "33333333-3333-3333-3333-333333333333")
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	commitTrivialRevision(t, r, 1)

	ctx := context.Background()
	require.NoError(t, r.WriteRevprops(ctx, 0, item.PropList{"svn:log": []byte("r0")}))
	require.NoError(t, r.WriteRevprops(ctx, 1, item.PropList{"svn:log": []byte("r1")}))

	require.NoError(t, r.Pack(ctx, 0))

	minUnpacked, err := r.MinUnpackedRev()
	require.NoError(t, err)
	require.Equal(t, int64(2), minUnpacked)

	_, err = os.Stat(r.layout.RevpropPath(0))
	require.NoError(t, err, "revision 0's unpacked revprop file must be preserved")
	_, err = os.Stat(r.layout.RevpropPath(1))
	require.True(t, errors.Is(err, os.ErrNotExist), "revision 1's unpacked revprop file must be removed after packing")

	got0, err := r.ReadRevprops(0)
	require.NoError(t, err)
	require.Equal(t, []byte("r0"), got0["svn:log"])

	got1, err := r.ReadRevprops(1)
	require.NoError(t, err)
	require.Equal(t, []byte("r1"), got1["svn:log"])

	require.NoError(t, r.WriteRevprops(ctx, 1, item.PropList{"svn:log": []byte("r1-updated")}))
	got1, err = r.ReadRevprops(1)
	require.NoError(t, err)
	require.Equal(t, []byte("r1-updated"), got1["svn:log"])

	got0, err = r.ReadRevprops(0)
	require.NoError(t, err)
	require.Equal(t, []byte("r0"), got0["svn:log"])
}

func TestRewriteIndexesPreservesReadability(t *testing.T) {
	r := newTestRepo(t)

	_, p2lIdx, err := r.Indexes(0)
	require.NoError(t, err)

	var entries []p2l.Entry
	for _, block := range p2lIdx.Blocks {
		entries = append(entries, block...)
	}
	require.NoError(t, r.RewriteIndexes(context.Background(), 0, entries))

	raw, err := r.ReadItem(0, 2)
	require.NoError(t, err)
	nr, err := item.ReadNodeRevision(bufio.NewReader(bytes.NewReader(raw)))
	require.NoError(t, err)
	require.Equal(t, "/", nr.CreatedPath)

	report, err := r.Verify(context.Background(), 0, 0, true)
	require.NoError(t, err)
	require.True(t, report.Clean(), "%v", report.Findings)
}

func TestVerifyCleanOnFreshRepo(t *testing.T) {
	r := newTestRepo(t)
	report, err := r.Verify(context.Background(), 0, 0, true)
	require.NoError(t, err)
	require.True(t, report.Clean(), "%v", report.Findings)
}

func TestLocalFSWriteFileAtomicRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := localFS{}
	path := filepath.Join(dir, "nested", "file")
	require.NoError(t, store.WriteFileAtomic(path, []byte("hello")))

	data, err := store.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))

	require.NoError(t, store.Remove(path))
	require.NoError(t, store.Remove(path)) // removing twice is not an error
}

func TestChecksumHelperAgreesWithRepository(t *testing.T) {
	r := newTestRepo(t)
	raw, err := r.ReadItem(0, 2)
	require.NoError(t, err)
	_, p2lIdx, err := r.Indexes(0)
	require.NoError(t, err)

	var recorded []uint32
	for _, block := range p2lIdx.Blocks {
		for _, e := range block {
			if e.Revision == 0 && e.ItemNumber == 2 {
				recorded = append(recorded, e.Checksum)
			}
		}
	}
	require.Equal(t, []uint32{checksum.FNV1a32(raw)}, recorded)
}

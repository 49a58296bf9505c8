package item

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNodeRevisionRoundTrip(t *testing.T) {
	nr := NodeRevision{
		ID:           NodeID{Node: "3", Copy: "1", TxnOrRev: "10"},
		Kind:         KindFile,
		Predecessor:  NodeID{Node: "3", Copy: "1", TxnOrRev: "9"},
		PredCount:    2,
		DataRep:      Ref{Revision: 10, ItemNumber: 3},
		PropRep:      Ref{Revision: 10, ItemNumber: 4},
		CopyFromRev:  -1,
		CreatedRev:   10,
		CreatedPath:  "/hello",
		MD5:          "deadbeef",
		SHA1:         "cafebabe",
	}

	var buf bytes.Buffer
	n, err := WriteNodeRevision(&buf, nr)
	require.NoError(t, err)
	require.Equal(t, buf.Len(), n)

	got, err := ReadNodeRevision(bufio.NewReader(&buf))
	require.NoError(t, err)
	require.Equal(t, nr, got)
}

func TestNodeRevisionWithCopyFrom(t *testing.T) {
	nr := NodeRevision{
		ID:           NodeID{Node: "5", Copy: "2", TxnOrRev: "20"},
		Kind:         KindDir,
		CopyFromRev:  7,
		CopyFromPath: "/src",
		CreatedRev:   20,
		CreatedPath:  "/dst",
	}
	var buf bytes.Buffer
	_, err := WriteNodeRevision(&buf, nr)
	require.NoError(t, err)
	got, err := ReadNodeRevision(bufio.NewReader(&buf))
	require.NoError(t, err)
	require.Equal(t, nr, got)
}

func TestRepresentationHeaderRoundTrip(t *testing.T) {
	plain := Representation{Kind: RepPlain, Size: 6, ExpandedSize: 6, Hash: "abc123"}
	var buf bytes.Buffer
	_, err := plain.WriteHeader(&buf)
	require.NoError(t, err)
	got, err := ReadRepresentationHeader(bufio.NewReader(&buf))
	require.NoError(t, err)
	require.Equal(t, plain, got)

	delta := Representation{Kind: RepDelta, Base: Ref{Revision: 4, ItemNumber: 9}, Size: 30, ExpandedSize: 120, Hash: "ffee"}
	buf.Reset()
	_, err = delta.WriteHeader(&buf)
	require.NoError(t, err)
	got, err = ReadRepresentationHeader(bufio.NewReader(&buf))
	require.NoError(t, err)
	require.Equal(t, delta, got)
}

func TestChangedPathsRoundTrip(t *testing.T) {
	entries := []ChangedPathEntry{
		{Path: "/hello", NodeID: NodeID{Node: "3", Copy: "1", TxnOrRev: "10"}, Change: ChangeAdd, TextMod: true, PropMod: false, CopyFromRev: -1},
		{Path: "/a/b", NodeID: NodeID{Node: "4", Copy: "1", TxnOrRev: "10"}, Change: ChangeReplace, TextMod: true, PropMod: true, CopyFromRev: 2, CopyFromPath: "/a/c"},
	}
	var buf bytes.Buffer
	_, err := WriteChangedPaths(&buf, entries)
	require.NoError(t, err)

	got, err := ReadChangedPaths(bufio.NewReader(&buf))
	require.NoError(t, err)
	require.Equal(t, entries, got)
}

func TestChangedPathsEmpty(t *testing.T) {
	got, err := ReadChangedPaths(bufio.NewReader(bytes.NewReader(nil)))
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestDirEntriesRoundTripAndSort(t *testing.T) {
	entries := []DirEntry{
		{Name: "zeta", Kind: KindFile, ID: NodeID{Node: "1", Copy: "1", TxnOrRev: "1"}},
		{Name: "alpha", Kind: KindDir, ID: NodeID{Node: "2", Copy: "1", TxnOrRev: "1"}},
	}
	var buf bytes.Buffer
	_, err := WriteDirEntries(&buf, entries)
	require.NoError(t, err)

	got, err := ReadDirEntries(bufio.NewReader(&buf))
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "alpha", got[0].Name)
	require.Equal(t, "zeta", got[1].Name)
}

func TestPropListRoundTrip(t *testing.T) {
	props := PropList{
		"svn:author": []byte("alice"),
		"binary":     {0x00, 0x01, 0xff, '\n'},
	}
	var buf bytes.Buffer
	_, err := props.WriteTo(&buf)
	require.NoError(t, err)

	got, err := ReadPropList(bufio.NewReader(&buf))
	require.NoError(t, err)
	require.Equal(t, props, got)
}

func TestPropListMissingEnd(t *testing.T) {
	_, err := ReadPropList(bufio.NewReader(bytes.NewReader([]byte("K 3\nfoo\nV 1\nx\n"))))
	require.Error(t, err)
}

func TestCanonicalTypeNames(t *testing.T) {
	require.Equal(t, "file-rep", TypeFileRep.String())
	tp, err := ParseType("node-rev")
	require.NoError(t, err)
	require.Equal(t, TypeNodeRev, tp)
}

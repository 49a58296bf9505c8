package protoindex

import (
	"bytes"
	"testing"

	"github.com/apache/subversion-sub028/pkg/fsfs/item"
	"github.com/apache/subversion-sub028/pkg/fsfs/p2l"
	"github.com/stretchr/testify/require"
)

func TestFinalizeL2PSortsOutOfOrderEntries(t *testing.T) {
	var buf bytes.Buffer
	w := NewL2PWriter(&buf)

	require.NoError(t, w.NewRevision(10))
	require.NoError(t, w.AddEntry(3, 340))
	require.NoError(t, w.AddEntry(1, 0))
	require.NoError(t, w.AddEntry(2, 120))

	require.NoError(t, w.NewRevision(11))
	require.NoError(t, w.AddEntry(1, 500))

	ix, err := FinalizeL2P(buf.Bytes(), 1024)
	require.NoError(t, err)

	off, err := ix.Lookup(10, 1)
	require.NoError(t, err)
	require.Equal(t, int64(0), off)

	off, err = ix.Lookup(10, 3)
	require.NoError(t, err)
	require.Equal(t, int64(340), off)

	off, err = ix.Lookup(11, 1)
	require.NoError(t, err)
	require.Equal(t, int64(500), off)
}

func TestFinalizeL2PRejectsEntryBeforeMarker(t *testing.T) {
	var buf bytes.Buffer
	w := NewL2PWriter(&buf)
	require.NoError(t, w.AddEntry(1, 0))

	_, err := FinalizeL2P(buf.Bytes(), 1024)
	require.Error(t, err)
}

func TestFinalizeP2LRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewP2LWriter(&buf)

	entries := []p2l.Entry{
		{Offset: 0, Size: 100, Type: item.TypeNodeRev, Revision: 5, ItemNumber: 2, Checksum: 1},
		{Offset: 100, Size: 50, Type: item.TypeFileRep, Revision: 5, ItemNumber: 3, Checksum: 2},
	}
	for _, e := range entries {
		require.NoError(t, w.AddEntry(e))
	}

	ix, err := FinalizeP2L(buf.Bytes(), 1024, 5)
	require.NoError(t, err)

	got := ix.Lookup(0, 150)
	require.Len(t, got, 2)
}

package p2l

import (
	"bytes"
	"testing"

	"github.com/apache/subversion-sub028/pkg/fsfs/item"
	"github.com/stretchr/testify/require"
)

func TestIndexRoundTripAndLookup(t *testing.T) {
	ix := NewIndex(1024, 5)
	ix.AddEntry(Entry{Offset: 0, Size: 100, Type: item.TypeNodeRev, Revision: 5, ItemNumber: 2, Checksum: 0xdeadbeef})
	ix.AddEntry(Entry{Offset: 100, Size: 50, Type: item.TypeFileRep, Revision: 5, ItemNumber: 3, Checksum: 0x1})
	ix.AddEntry(Entry{Offset: 1024, Size: 200, Type: item.TypeDirRep, Revision: 6, ItemNumber: 4, Checksum: 0x2})

	var buf bytes.Buffer
	_, err := ix.WriteTo(&buf)
	require.NoError(t, err)

	got, err := ReadIndex(buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, ix.BlockSize, got.BlockSize)
	require.Equal(t, ix.BaseRevision, got.BaseRevision)

	entries := got.Lookup(0, 150)
	require.Len(t, entries, 2)

	entries = got.Lookup(1024, 1224)
	require.Len(t, entries, 1)
	require.Equal(t, uint64(4), entries[0].ItemNumber)
	require.Equal(t, int64(6), entries[0].Revision)
}

func TestIndexRejectsZeroBlockSize(t *testing.T) {
	_, err := ReadIndex([]byte{0})
	require.Error(t, err)
}

func TestBoundaryWaste(t *testing.T) {
	require.Equal(t, int64(1310), BoundaryWaste(65536, 50, 512))
	require.Equal(t, int64(512), BoundaryWaste(1000, 50, 512))
}

func TestPlaceItemFitsInBlock(t *testing.T) {
	start, pad := PlaceItem(1024, 512, 900, 100)
	require.Equal(t, int64(900), start)
	require.Equal(t, int64(0), pad)
}

func TestPlaceItemPadsToBoundary(t *testing.T) {
	// offset 900, block ends at 1024, remaining=124 < boundaryWaste=512
	start, pad := PlaceItem(1024, 512, 900, 300)
	require.Equal(t, int64(1024), start)
	require.Equal(t, int64(124), pad)
}

func TestPlaceItemStraddlesWhenWasteTooLarge(t *testing.T) {
	// remaining=124 >= boundaryWaste=50, so item straddles rather than pads
	start, pad := PlaceItem(1024, 50, 900, 300)
	require.Equal(t, int64(900), start)
	require.Equal(t, int64(0), pad)
}

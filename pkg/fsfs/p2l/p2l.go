// Package p2l implements the blocked physical-to-logical index: a
// structure describing, for every byte region of a revision file or
// packed shard, which item occupies it, grounded on spec.md §4.4 and
// original_source's subversion/libsvn_fs_fs/index.c (p2l_entry_t).
package p2l

import (
	"io"

	"github.com/apache/subversion-sub028/pkg/fsfs/fsfserr"
	"github.com/apache/subversion-sub028/pkg/fsfs/item"
	"github.com/apache/subversion-sub028/pkg/fsfs/vlq"
)

// DefaultBlockSize is the typical P2L block size named in spec.md
// §4.4.
const DefaultBlockSize = 64 * 1024

// Entry describes one item (or one padding gap) occupying a
// contiguous byte range of the file.
type Entry struct {
	Offset     int64
	Size       int64
	Type       item.Type
	Revision   int64
	ItemNumber uint64
	Checksum   uint32 // FNV-1a-32 over the item's stored bytes; 0 for TypeUnused padding
}

// End returns the byte offset just past the entry.
func (e Entry) End() int64 { return e.Offset + e.Size }

// Index is the fully decoded in-memory form of a P2L index: one
// entry list per fixed-size block, as described in spec.md §4.4.
type Index struct {
	BlockSize int64
	// Blocks[i] holds the entries whose starting offset falls in
	// block i, i.e. offset in [i*BlockSize, (i+1)*BlockSize).
	Blocks [][]Entry
	// BaseRevision is subtracted from an entry's absolute revision
	// number to produce the revision-delta field in the wire
	// encoding, matching spec.md §4.4's "revision-delta" naming; for
	// an unpacked revision file this equals the file's own revision.
	BaseRevision int64
}

// NewIndex returns an empty index with the given block size and
// revision-delta base.
func NewIndex(blockSize int64, baseRevision int64) *Index {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &Index{BlockSize: blockSize, BaseRevision: baseRevision}
}

func (ix *Index) blockOf(offset int64) int64 { return offset / ix.BlockSize }

// AddEntry records e in the block containing its starting offset,
// growing the block list as needed. Entries within a block must be
// appended in increasing offset order, matching how the proto-P2L
// stream accumulates them during commit (spec.md §4.5).
func (ix *Index) AddEntry(e Entry) {
	b := ix.blockOf(e.Offset)
	for int64(len(ix.Blocks)) <= b {
		ix.Blocks = append(ix.Blocks, nil)
	}
	ix.Blocks[b] = append(ix.Blocks[b], e)
}

// Lookup returns every entry whose [offset, offset+size) range
// overlaps [start, end).
func (ix *Index) Lookup(start, end int64) []Entry {
	var out []Entry
	firstBlock := ix.blockOf(start)
	lastBlock := ix.blockOf(end - 1)
	if end <= start {
		lastBlock = firstBlock
	}
	for b := firstBlock; b <= lastBlock && b < int64(len(ix.Blocks)); b++ {
		if b < 0 {
			continue
		}
		for _, e := range ix.Blocks[b] {
			if e.Offset < end && e.End() > start {
				out = append(out, e)
			}
		}
	}
	return out
}

// WriteTo serializes the index as a VLQ header (block-size,
// base-revision, block-count) followed by, per block, an entry count
// and each entry's (offset-delta-from-block-base, size, type,
// revision-delta, item-number, checksum), matching the field order
// named in spec.md §4.4.
func (ix *Index) WriteTo(w io.Writer) (int64, error) {
	var buf []byte
	buf = vlq.AppendUint(buf, uint64(ix.BlockSize))
	buf = vlq.AppendInt(buf, ix.BaseRevision)
	buf = vlq.AppendUint(buf, uint64(len(ix.Blocks)))

	for b, entries := range ix.Blocks {
		blockBase := int64(b) * ix.BlockSize
		buf = vlq.AppendUint(buf, uint64(len(entries)))
		for _, e := range entries {
			buf = vlq.AppendUint(buf, uint64(e.Offset-blockBase))
			buf = vlq.AppendUint(buf, uint64(e.Size))
			buf = vlq.AppendUint(buf, uint64(e.Type))
			buf = vlq.AppendInt(buf, e.Revision-ix.BaseRevision)
			buf = vlq.AppendUint(buf, e.ItemNumber)
			buf = vlq.AppendUint(buf, uint64(e.Checksum))
		}
	}

	n, err := w.Write(buf)
	return int64(n), err
}

// ReadIndex parses a P2L index previously written by WriteTo.
func ReadIndex(data []byte) (*Index, error) {
	r := vlq.NewReader(data)

	blockSize, err := r.Uint()
	if err != nil {
		return nil, err
	}
	if blockSize == 0 {
		return nil, fsfserr.MalformedIndex("p2l: zero block size in header")
	}
	baseRev, err := r.Int()
	if err != nil {
		return nil, err
	}
	blockCount, err := r.Uint()
	if err != nil {
		return nil, err
	}

	ix := &Index{BlockSize: int64(blockSize), BaseRevision: baseRev}
	ix.Blocks = make([][]Entry, blockCount)
	for b := uint64(0); b < blockCount; b++ {
		count, err := r.Uint()
		if err != nil {
			return nil, err
		}
		blockBase := int64(b) * ix.BlockSize
		entries := make([]Entry, 0, count)
		for i := uint64(0); i < count; i++ {
			offDelta, err := r.Uint()
			if err != nil {
				return nil, err
			}
			size, err := r.Uint()
			if err != nil {
				return nil, err
			}
			typ, err := r.Uint()
			if err != nil {
				return nil, err
			}
			revDelta, err := r.Int()
			if err != nil {
				return nil, err
			}
			itemNum, err := r.Uint()
			if err != nil {
				return nil, err
			}
			sum, err := r.Uint()
			if err != nil {
				return nil, err
			}
			entries = append(entries, Entry{
				Offset:     blockBase + int64(offDelta),
				Size:       int64(size),
				Type:       item.Type(typ),
				Revision:   baseRev + revDelta,
				ItemNumber: itemNum,
				Checksum:   uint32(sum),
			})
		}
		ix.Blocks[b] = entries
	}
	return ix, nil
}

// BoundaryWaste reports the padding budget for the block-boundary
// policy described in spec.md §4.4: pad rather than let an item
// straddle a boundary when the wasted space is under this many bytes.
func BoundaryWaste(blockSize int64, divisor int, floor int) int64 {
	waste := blockSize / int64(divisor)
	if waste < int64(floor) {
		return int64(floor)
	}
	return waste
}

// PlaceItem decides where the next item of the given size should
// start, given the current write offset, implementing the
// block-boundary padding policy of spec.md §4.4. It returns the
// chosen start offset and, when padding is needed, the length of the
// TypeUnused entry to emit before it.
func PlaceItem(blockSize int64, boundaryWaste int64, currentOffset int64, itemSize int64) (start int64, padLen int64) {
	blockEnd := (currentOffset/blockSize + 1) * blockSize
	remaining := blockEnd - currentOffset
	if itemSize <= remaining {
		return currentOffset, 0
	}
	if remaining < boundaryWaste {
		return blockEnd, remaining
	}
	return currentOffset, 0
}

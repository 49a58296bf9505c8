// Package protoindex implements the append-only staging files a
// commit writes alongside a transaction's proto-revision file: the
// proto-L2P and proto-P2L streams described in spec.md §4.5, which
// finalization later sorts and folds into the paged L2P and blocked
// P2L structures of pkg/fsfs/l2p and pkg/fsfs/p2l.
package protoindex

import (
	"io"

	"github.com/apache/subversion-sub028/pkg/fsfs/fsfserr"
	"github.com/apache/subversion-sub028/pkg/fsfs/item"
	"github.com/apache/subversion-sub028/pkg/fsfs/l2p"
	"github.com/apache/subversion-sub028/pkg/fsfs/p2l"
	"github.com/apache/subversion-sub028/pkg/fsfs/vlq"
)

// l2pTag distinguishes a new-revision marker from an ordinary
// (offset, item-number) tuple in the proto-L2P stream.
type l2pTag byte

const (
	l2pTagEntry l2pTag = iota
	l2pTagNewRevision
)

// L2PWriter appends to a proto-L2P staging stream. Tuples for a
// single revision may be appended in any order; AddEntry does not
// sort, matching spec.md §4.5's "finalization sorts them by
// item-number".
type L2PWriter struct {
	w io.Writer
}

// NewL2PWriter wraps w for proto-L2P appends.
func NewL2PWriter(w io.Writer) *L2PWriter { return &L2PWriter{w: w} }

// NewRevision writes the in-band marker that begins revision rev.
// The first call starts the commit's first revision; later calls
// begin successive revisions within a packed-shard finalization.
func (pw *L2PWriter) NewRevision(rev int64) error {
	var buf []byte
	buf = append(buf, byte(l2pTagNewRevision))
	buf = vlq.AppendInt(buf, rev)
	_, err := pw.w.Write(buf)
	if err != nil {
		return fsfserr.IOError{Op: "protoindex.L2PWriter.NewRevision", Err: err}
	}
	return nil
}

// AddEntry records that item itemNumber of the current revision
// starts at offset.
func (pw *L2PWriter) AddEntry(itemNumber uint64, offset int64) error {
	var buf []byte
	buf = append(buf, byte(l2pTagEntry))
	buf = vlq.AppendUint(buf, itemNumber)
	buf = vlq.AppendInt(buf, offset)
	_, err := pw.w.Write(buf)
	if err != nil {
		return fsfserr.IOError{Op: "protoindex.L2PWriter.AddEntry", Err: err}
	}
	return nil
}

// FinalizeL2P reads a complete proto-L2P stream and builds the paged
// L2P index it describes, sorting each revision's entries by
// item-number as spec.md §4.5 requires. entriesPerPage controls the
// page size of the resulting index.
func FinalizeL2P(data []byte, entriesPerPage int) (*l2p.Index, error) {
	r := vlq.NewReader(data)

	var firstRevision int64
	haveFirst := false
	offsetsByNumber := map[uint64]int64{}
	var maxItemNumber uint64

	flush := func() []int64 {
		if maxItemNumber == 0 {
			return nil
		}
		offs := make([]int64, maxItemNumber)
		for n, off := range offsetsByNumber {
			offs[n-1] = off
		}
		return offs
	}

	var pending bool
	var ix *l2p.Index

	for r.Len() > 0 {
		tagByte, err := r.Bytes(1)
		if err != nil {
			return nil, err
		}
		switch l2pTag(tagByte[0]) {
		case l2pTagNewRevision:
			rev, err := r.Int()
			if err != nil {
				return nil, err
			}
			if pending {
				ix.AddRevision(flush())
			}
			if !haveFirst {
				firstRevision = rev
				haveFirst = true
				ix = l2p.NewIndex(firstRevision, entriesPerPage)
			}
			offsetsByNumber = map[uint64]int64{}
			maxItemNumber = 0
			pending = true
		case l2pTagEntry:
			if !pending {
				return nil, fsfserr.MalformedIndex("protoindex: item entry before new-revision marker")
			}
			itemNumber, err := r.Uint()
			if err != nil {
				return nil, err
			}
			offset, err := r.Int()
			if err != nil {
				return nil, err
			}
			offsetsByNumber[itemNumber] = offset
			if itemNumber > maxItemNumber {
				maxItemNumber = itemNumber
			}
		default:
			return nil, fsfserr.MalformedIndex("protoindex: unknown proto-l2p tag")
		}
	}
	if pending {
		ix.AddRevision(flush())
	}
	if ix == nil {
		return nil, fsfserr.MalformedIndex("protoindex: empty proto-l2p stream")
	}
	return ix, nil
}

// P2LWriter appends to a proto-P2L staging stream: a sequence of full
// P2L entries in file-offset order, per spec.md §4.5.
type P2LWriter struct {
	w io.Writer
}

// NewP2LWriter wraps w for proto-P2L appends.
func NewP2LWriter(w io.Writer) *P2LWriter { return &P2LWriter{w: w} }

// AddEntry appends one P2L entry to the stream.
func (pw *P2LWriter) AddEntry(e p2l.Entry) error {
	var buf []byte
	buf = vlq.AppendInt(buf, e.Offset)
	buf = vlq.AppendUint(buf, uint64(e.Size))
	buf = vlq.AppendUint(buf, uint64(e.Type))
	buf = vlq.AppendInt(buf, e.Revision)
	buf = vlq.AppendUint(buf, e.ItemNumber)
	buf = vlq.AppendUint(buf, uint64(e.Checksum))
	_, err := pw.w.Write(buf)
	if err != nil {
		return fsfserr.IOError{Op: "protoindex.P2LWriter.AddEntry", Err: err}
	}
	return nil
}

// FinalizeP2L reads a complete proto-P2L stream and builds the
// blocked P2L index it describes.
func FinalizeP2L(data []byte, blockSize int64, baseRevision int64) (*p2l.Index, error) {
	r := vlq.NewReader(data)
	ix := p2l.NewIndex(blockSize, baseRevision)
	for r.Len() > 0 {
		offset, err := r.Int()
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
		revision, err := r.Int()
		if err != nil {
			return nil, err
		}
		itemNumber, err := r.Uint()
		if err != nil {
			return nil, err
		}
		sum, err := r.Uint()
		if err != nil {
			return nil, err
		}
		ix.AddEntry(p2l.Entry{
			Offset:     offset,
			Size:       int64(size),
			Type:       item.Type(typ),
			Revision:   revision,
			ItemNumber: itemNumber,
			Checksum:   uint32(sum),
		})
	}
	return ix, nil
}

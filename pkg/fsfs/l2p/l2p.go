// Package l2p implements the paged logical-to-physical index: a
// structure mapping (revision, item-number) pairs to the byte offset
// of that item within a revision file or packed shard, grounded on
// the layout described in spec.md §4.3 and original_source's
// subversion/libsvn_fs_fs/index.c (l2p_header_t and friends).
package l2p

import (
	"io"

	"github.com/apache/subversion-sub028/pkg/fsfs/fsfserr"
	"github.com/apache/subversion-sub028/pkg/fsfs/vlq"
)

// DefaultEntriesPerPage bounds how many offset entries one page holds
// before the writer starts a new page, chosen so a page's encoded
// size stays near the configured page-size target for typical item
// sizes.
const DefaultEntriesPerPage = 1024

// Revision holds the decoded offsets for every item number of one
// revision, indexed by item-number starting at 1 (item-number 0 is
// never assigned).
type Revision struct {
	// Offsets[i] is the byte offset of item-number i+1. A page
	// boundary splits this slice only in the on-disk encoding; the
	// decoded in-memory form is a flat per-revision slice.
	Offsets []int64
}

// Index is the fully decoded in-memory form of an L2P index: the
// per-revision directory described in spec.md §4.3, already expanded
// out of its paged encoding.
type Index struct {
	FirstRevision  int64
	EntriesPerPage int
	Revisions      []Revision // Revisions[i] holds revision FirstRevision+i
}

// NewIndex returns an empty index covering no revisions yet, ready to
// have revisions appended via AddRevision during finalization.
func NewIndex(firstRevision int64, entriesPerPage int) *Index {
	if entriesPerPage <= 0 {
		entriesPerPage = DefaultEntriesPerPage
	}
	return &Index{FirstRevision: firstRevision, EntriesPerPage: entriesPerPage}
}

// AddRevision appends a revision's offset table, keyed by item-number
// starting at 1, to the index. offsets must already be sorted by
// item-number (finalization's job per spec.md §4.5).
func (ix *Index) AddRevision(offsets []int64) {
	ix.Revisions = append(ix.Revisions, Revision{Offsets: append([]int64(nil), offsets...)})
}

// Lookup resolves (revision, itemNumber) to a byte offset.
// itemNumber is 1-based; 0 is never a valid item number.
func (ix *Index) Lookup(revision int64, itemNumber uint64) (int64, error) {
	idx := revision - ix.FirstRevision
	if idx < 0 || idx >= int64(len(ix.Revisions)) {
		return 0, fsfserr.NoSuchRevision(revision)
	}
	rev := ix.Revisions[idx]
	if itemNumber == 0 || itemNumber > uint64(len(rev.Offsets)) {
		return 0, fsfserr.NoSuchItem{Revision: revision, ItemNumber: itemNumber}
	}
	return rev.Offsets[itemNumber-1], nil
}

// WriteTo serializes the index as: header (first-revision,
// revision-count, entries-per-page), then per revision a VLQ entry
// count followed by its offsets VLQ-delta-encoded against the page's
// base offset (the first offset in each page of EntriesPerPage
// entries), matching spec.md §4.3's "variable-length integers
// relative to the page's base offset".
func (ix *Index) WriteTo(w io.Writer) (int64, error) {
	var buf []byte
	buf = vlq.AppendInt(buf, ix.FirstRevision)
	buf = vlq.AppendUint(buf, uint64(len(ix.Revisions)))
	buf = vlq.AppendUint(buf, uint64(ix.EntriesPerPage))

	for _, rev := range ix.Revisions {
		buf = vlq.AppendUint(buf, uint64(len(rev.Offsets)))
		for i, off := range rev.Offsets {
			if i%ix.EntriesPerPage == 0 {
				buf = vlq.AppendInt(buf, off)
			} else {
				base := rev.Offsets[(i/ix.EntriesPerPage)*ix.EntriesPerPage]
				buf = vlq.AppendInt(buf, off-base)
			}
		}
	}

	n, err := w.Write(buf)
	return int64(n), err
}

// ReadIndex parses an L2P index previously written by WriteTo.
func ReadIndex(data []byte) (*Index, error) {
	r := vlq.NewReader(data)

	firstRev, err := r.Int()
	if err != nil {
		return nil, err
	}
	revCount, err := r.Uint()
	if err != nil {
		return nil, err
	}
	entriesPerPage, err := r.Uint()
	if err != nil {
		return nil, err
	}
	if entriesPerPage == 0 {
		return nil, fsfserr.MalformedIndex("l2p: zero entries-per-page in header")
	}

	ix := &Index{FirstRevision: firstRev, EntriesPerPage: int(entriesPerPage)}
	for rv := uint64(0); rv < revCount; rv++ {
		count, err := r.Uint()
		if err != nil {
			return nil, err
		}
		offsets := make([]int64, count)
		var base int64
		for i := uint64(0); i < count; i++ {
			if int(i)%ix.EntriesPerPage == 0 {
				base, err = r.Int()
				if err != nil {
					return nil, err
				}
				offsets[i] = base
				continue
			}
			delta, err := r.Int()
			if err != nil {
				return nil, err
			}
			offsets[i] = base + delta
		}
		ix.Revisions = append(ix.Revisions, Revision{Offsets: offsets})
	}
	return ix, nil
}

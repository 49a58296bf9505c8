// Package verify implements the offline consistency checker described
// in spec.md §4.10: cross-checking the L2P and P2L indexes of a
// revision range against each other and, optionally, against the
// stored item bytes' FNV-1a-32 checksums. It accumulates findings
// rather than aborting on the first mismatch, grounded on spec.md §7's
// "verifier accumulates findings" propagation policy and modeled on
// original_source's subversion/libsvn_fs_fs/verify.c.
package verify

import (
	"fmt"

	"github.com/apache/subversion-sub028/pkg/fsfs/checksum"
	"github.com/apache/subversion-sub028/pkg/fsfs/item"
	"github.com/apache/subversion-sub028/pkg/fsfs/l2p"
	"github.com/apache/subversion-sub028/pkg/fsfs/p2l"
)

// Finding describes one discovered inconsistency.
type Finding struct {
	Revision   int64
	ItemNumber uint64
	Kind       string
	Detail     string
}

func (f Finding) String() string {
	return fmt.Sprintf("revision %d, item %d: %s: %s", f.Revision, f.ItemNumber, f.Kind, f.Detail)
}

// Report collects every Finding from one verify pass.
type Report struct {
	Findings []Finding
}

func (r *Report) add(rev int64, itemNumber uint64, kind, detail string) {
	r.Findings = append(r.Findings, Finding{Revision: rev, ItemNumber: itemNumber, Kind: kind, Detail: detail})
}

// Clean reports whether the pass found nothing wrong.
func (r *Report) Clean() bool { return len(r.Findings) == 0 }

// ItemReader supplies the stored bytes of one item, for the optional
// checksum re-verification pass (spec.md §4.10 step 3).
type ItemReader interface {
	ReadItem(offset int64, size int64) ([]byte, error)
}

// CancelFunc is polled between items and between index blocks, per
// spec.md §5's "long operations accept a cancellation predicate".
// A verify pass stops (without error) the moment it returns true,
// leaving the report holding whatever findings it had already
// accumulated.
type CancelFunc func() bool

// CrossCheckL2PAgainstP2L implements spec.md §4.10 step 1: for every
// (revision, item-number) the L2P index names, look up the P2L entry
// at that offset and confirm it records the same revision and
// item-number (universal invariant 1 of spec.md §8).
func CrossCheckL2PAgainstP2L(l2pIdx *l2p.Index, p2lIdx *p2l.Index, cancel CancelFunc) *Report {
	report := &Report{}
	for i, rev := range l2pIdx.Revisions {
		revision := l2pIdx.FirstRevision + int64(i)
		for idx, offset := range rev.Offsets {
			if cancel != nil && cancel() {
				return report
			}
			itemNumber := uint64(idx + 1)
			// Scanned from the offset's own block rather than through
			// Lookup, whose overlap test never returns a zero-size item
			// (an empty changed-paths record, for instance).
			var entries []p2l.Entry
			if b := offset / p2lIdx.BlockSize; b >= 0 && b < int64(len(p2lIdx.Blocks)) {
				entries = p2lIdx.Blocks[b]
			}
			matched := false
			for _, e := range entries {
				if e.Offset == offset && e.Revision == revision && e.ItemNumber == itemNumber {
					matched = true
					break
				}
			}
			if !matched {
				report.add(revision, itemNumber, "l2p-p2l-mismatch", fmt.Sprintf("no p2l entry at offset %d matches (rev=%d, item=%d)", offset, revision, itemNumber))
			}
		}
	}
	return report
}

// CrossCheckP2LAgainstL2P implements spec.md §4.10 step 2: for every
// non-unused P2L entry, look up L2P(entry.Revision, entry.ItemNumber)
// and confirm its offset matches the entry's (universal invariant 2).
func CrossCheckP2LAgainstL2P(p2lIdx *p2l.Index, l2pIdx *l2p.Index, cancel CancelFunc) *Report {
	report := &Report{}
	for _, block := range p2lIdx.Blocks {
		for _, e := range block {
			if cancel != nil && cancel() {
				return report
			}
			if e.Type == item.TypeUnused {
				continue
			}
			off, err := l2pIdx.Lookup(e.Revision, e.ItemNumber)
			if err != nil {
				report.add(e.Revision, e.ItemNumber, "p2l-l2p-mismatch", "item not found in l2p: "+err.Error())
				continue
			}
			if off != e.Offset {
				report.add(e.Revision, e.ItemNumber, "p2l-l2p-mismatch", fmt.Sprintf("l2p offset %d != p2l offset %d", off, e.Offset))
			}
		}
	}
	return report
}

// VerifyChecksums implements spec.md §4.10 step 3: re-read every
// non-unused item's bytes and confirm their FNV-1a-32 matches the
// P2L entry's recorded checksum (universal invariant 3), and that
// every unused (padding) entry's recorded checksum is zero and its
// bytes are all zero (universal invariant 4).
func VerifyChecksums(p2lIdx *p2l.Index, reader ItemReader, cancel CancelFunc) *Report {
	report := &Report{}
	for _, block := range p2lIdx.Blocks {
		for _, e := range block {
			if cancel != nil && cancel() {
				return report
			}
			data, err := reader.ReadItem(e.Offset, e.Size)
			if err != nil {
				report.add(e.Revision, e.ItemNumber, "io-error", err.Error())
				continue
			}
			if e.Type == item.TypeUnused {
				if e.Checksum != 0 {
					report.add(e.Revision, e.ItemNumber, "unused-checksum-nonzero", "padding entry has nonzero checksum")
				}
				if !allZero(data) {
					report.add(e.Revision, e.ItemNumber, "unused-not-zero", "padding bytes are not all zero")
				}
				continue
			}
			got := checksum.FNV1a32(data)
			if got != e.Checksum {
				report.add(e.Revision, e.ItemNumber, "checksum-mismatch", fmt.Sprintf("computed %s, recorded %s", checksum.Hex(got), checksum.Hex(e.Checksum)))
			}
		}
	}
	return report
}

func allZero(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	return true
}

// Merge combines findings from multiple passes into one report, the
// way an administrative tool running all three verify steps in
// sequence accumulates a single result to present to the operator.
func Merge(reports ...*Report) *Report {
	merged := &Report{}
	for _, r := range reports {
		if r == nil {
			continue
		}
		merged.Findings = append(merged.Findings, r.Findings...)
	}
	return merged
}

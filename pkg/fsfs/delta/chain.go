// Package delta walks a representation's delta-base chain down to a
// plain representation and materializes the fully expanded bytes, the
// way svn_fs_fs__get_contents does by repeatedly opening the base
// representation named in each delta header.
package delta

import (
	"bytes"

	"github.com/apache/subversion-sub028/pkg/fsfs/fsfserr"
	"github.com/apache/subversion-sub028/pkg/fsfs/item"
	"github.com/apache/subversion-sub028/pkg/fsfs/svndiff"
)

// DefaultMaxChainLength bounds how many delta hops Reconstruct will
// follow before giving up, capping reconstruction cost as required by
// spec.md §4.1.
const DefaultMaxChainLength = 1024

// Source supplies a representation's header and stored bytes given
// the item reference that locates it. The stored bytes are the raw
// plain bytes for a plain representation, or the raw svndiff window
// stream for a delta representation.
type Source interface {
	FetchRepresentation(ref item.Ref) (item.Representation, []byte, error)
}

// Reconstruct expands rep (whose own header and raw bytes have
// already been read by the caller) into its fully materialized
// content, following delta bases through src as needed.
func Reconstruct(src Source, rep item.Representation, raw []byte, maxChainLength int) ([]byte, error) {
	if maxChainLength <= 0 {
		maxChainLength = DefaultMaxChainLength
	}

	type link struct {
		rep item.Representation
		raw []byte
	}
	chain := []link{{rep, raw}}

	cur := rep
	for cur.Kind == item.RepDelta {
		if len(chain) > maxChainLength {
			return nil, fsfserr.MalformedIndex("delta: chain exceeds maximum length")
		}
		baseRep, baseRaw, err := src.FetchRepresentation(cur.Base)
		if err != nil {
			return nil, err
		}
		chain = append(chain, link{baseRep, baseRaw})
		cur = baseRep
	}

	// chain[len-1] is the plain base; walk back up applying deltas.
	content := chain[len(chain)-1].raw
	for i := len(chain) - 2; i >= 0; i-- {
		windows, err := decodeWindows(chain[i].raw)
		if err != nil {
			return nil, err
		}
		content, err = svndiff.DecodeStream(windows, content)
		if err != nil {
			return nil, err
		}
	}
	return content, nil
}

func decodeWindows(raw []byte) ([]svndiff.Window, error) {
	r := bytes.NewReader(raw)
	var windows []svndiff.Window
	for r.Len() > 0 {
		w, err := svndiff.ReadWindow(r)
		if err != nil {
			return nil, err
		}
		windows = append(windows, w)
	}
	return windows, nil
}

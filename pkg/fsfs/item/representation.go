package item

import (
	"bufio"
	"fmt"
	"io"

	"github.com/apache/subversion-sub028/pkg/fsfs/fsfserr"
)

// RepKind distinguishes a plain (literal) representation from a delta
// representation encoded against a base.
type RepKind int

const (
	RepPlain RepKind = iota
	RepDelta
)

func (k RepKind) String() string {
	if k == RepDelta {
		return "delta"
	}
	return "plain"
}

// Representation describes one bytes-of-a-file-or-directory-entries
// unit: either literal bytes (plain) or a delta window stream against
// an earlier representation (delta), tagged with its uncompressed
// size, fully expanded size, and content hash.
type Representation struct {
	Kind RepKind

	// Base locates the representation this one deltas against.
	// Meaningful only when Kind == RepDelta.
	Base Ref

	// Size is the number of bytes of this representation's own
	// stored form (the plain bytes, or the svndiff-encoded window
	// stream for a delta).
	Size uint64

	// ExpandedSize is the fully reconstructed (plain) byte count
	// after following the delta chain to its base.
	ExpandedSize uint64

	// Hash is the content hash (hex-encoded) of the fully expanded
	// representation.
	Hash string
}

// WriteHeader writes the representation's header line:
// "<type> <uncompressed-size> <expanded-size> <hash> [<base-rev> <base-item>]\n".
// The caller writes the representation's own bytes (plain data or a
// delta window stream) immediately afterward.
func (r Representation) WriteHeader(w io.Writer) (int, error) {
	if r.Kind == RepDelta {
		return fmt.Fprintf(w, "%s %d %d %s %d %d\n", r.Kind, r.Size, r.ExpandedSize, r.Hash, r.Base.Revision, r.Base.ItemNumber)
	}
	return fmt.Fprintf(w, "%s %d %d %s\n", r.Kind, r.Size, r.ExpandedSize, r.Hash)
}

// ReadRepresentationHeader parses a representation header line
// produced by WriteHeader.
func ReadRepresentationHeader(r *bufio.Reader) (Representation, error) {
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return Representation{}, fsfserr.MalformedIndex("representation: unexpected eof")
	}
	if len(line) > 0 && line[len(line)-1] == '\n' {
		line = line[:len(line)-1]
	}

	var kindStr, hash string
	var size, expanded uint64
	var baseRev int64
	var baseItem uint64
	n, scanErr := fmt.Sscanf(line, "%s %d %d %s %d %d", &kindStr, &size, &expanded, &hash, &baseRev, &baseItem)
	if scanErr != nil && n < 4 {
		return Representation{}, fsfserr.MalformedIndex("representation: malformed header " + line)
	}

	var kind RepKind
	switch kindStr {
	case "plain":
		kind = RepPlain
	case "delta":
		kind = RepDelta
		if n < 6 {
			return Representation{}, fsfserr.MalformedIndex("representation: delta header missing base pointer")
		}
	default:
		return Representation{}, fsfserr.MalformedIndex("representation: unknown kind " + kindStr)
	}

	rep := Representation{Kind: kind, Size: size, ExpandedSize: expanded, Hash: hash}
	if kind == RepDelta {
		rep.Base = Ref{Revision: baseRev, ItemNumber: baseItem}
	}
	return rep, nil
}

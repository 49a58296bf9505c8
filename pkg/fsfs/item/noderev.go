package item

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/apache/subversion-sub028/pkg/fsfs/fsfserr"
)

// NodeRevision describes one versioned node at one point in history.
type NodeRevision struct {
	ID          NodeID
	Kind        Kind
	Predecessor NodeID
	PredCount   int

	// DataRep and PropRep locate this node-revision's data and
	// property representations as item references, or the zero Ref
	// if absent (e.g. an empty directory has no PropRep).
	DataRep Ref
	PropRep Ref

	// CopyFromRev/CopyFromPath are set when this node-revision was
	// created as the target of a copy; CopyFromRev < 0 otherwise.
	CopyFromRev  int64
	CopyFromPath string

	CreatedRev  int64
	CreatedPath string

	MD5  string
	SHA1 string
}

// WriteNodeRevision serializes nr as a sequence of "key: value" lines
// terminated by a blank line, and returns the number of bytes
// written. The caller is responsible for recording the returned
// length in the P2L entry for this item.
func WriteNodeRevision(w io.Writer, nr NodeRevision) (int, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "id: %s\n", nr.ID)
	fmt.Fprintf(&b, "kind: %s\n", nr.Kind)
	if !nr.Predecessor.IsNone() {
		fmt.Fprintf(&b, "predecessor: %s\n", nr.Predecessor)
		fmt.Fprintf(&b, "predecessor-count: %d\n", nr.PredCount)
	}
	if !nr.DataRep.IsNone() {
		fmt.Fprintf(&b, "data-rep: %d,%d\n", nr.DataRep.Revision, nr.DataRep.ItemNumber)
	}
	if !nr.PropRep.IsNone() {
		fmt.Fprintf(&b, "prop-rep: %d,%d\n", nr.PropRep.Revision, nr.PropRep.ItemNumber)
	}
	if nr.CopyFromRev >= 0 {
		fmt.Fprintf(&b, "copyfrom-rev: %d\n", nr.CopyFromRev)
		fmt.Fprintf(&b, "copyfrom-path: %s\n", nr.CopyFromPath)
	}
	fmt.Fprintf(&b, "created-rev: %d\n", nr.CreatedRev)
	fmt.Fprintf(&b, "created-path: %s\n", nr.CreatedPath)
	if nr.MD5 != "" {
		fmt.Fprintf(&b, "md5: %s\n", nr.MD5)
	}
	if nr.SHA1 != "" {
		fmt.Fprintf(&b, "sha1: %s\n", nr.SHA1)
	}
	b.WriteByte('\n')

	return io.WriteString(w, b.String())
}

// ReadNodeRevision parses a node-revision record written by
// WriteNodeRevision.
func ReadNodeRevision(r *bufio.Reader) (NodeRevision, error) {
	nr := NodeRevision{CopyFromRev: -1}
	for {
		line, err := readLine(r)
		if err != nil {
			return NodeRevision{}, fsfserr.MalformedIndex("node-revision: truncated record")
		}
		if line == "" {
			return nr, nil
		}
		key, value, ok := strings.Cut(line, ": ")
		if !ok {
			return NodeRevision{}, fsfserr.MalformedIndex("node-revision: malformed line " + line)
		}
		switch key {
		case "id":
			nr.ID = parseNodeID(value)
		case "kind":
			k, err := ParseKind(value)
			if err != nil {
				return NodeRevision{}, fsfserr.MalformedIndex(err.Error())
			}
			nr.Kind = k
		case "predecessor":
			nr.Predecessor = parseNodeID(value)
		case "predecessor-count":
			nr.PredCount, _ = strconv.Atoi(value)
		case "data-rep":
			ref, err := parseRef(value)
			if err != nil {
				return NodeRevision{}, err
			}
			nr.DataRep = ref
		case "prop-rep":
			ref, err := parseRef(value)
			if err != nil {
				return NodeRevision{}, err
			}
			nr.PropRep = ref
		case "copyfrom-rev":
			nr.CopyFromRev, _ = strconv.ParseInt(value, 10, 64)
		case "copyfrom-path":
			nr.CopyFromPath = value
		case "created-rev":
			nr.CreatedRev, _ = strconv.ParseInt(value, 10, 64)
		case "created-path":
			nr.CreatedPath = value
		case "md5":
			nr.MD5 = value
		case "sha1":
			nr.SHA1 = value
		default:
			// Forward-compatible: unknown keys are ignored so a
			// newer writer's extra fields don't break older readers.
		}
	}
}

func parseRef(s string) (Ref, error) {
	revStr, itemStr, ok := strings.Cut(s, ",")
	if !ok {
		return Ref{}, fsfserr.MalformedIndex("node-revision: malformed ref " + s)
	}
	rev, err := strconv.ParseInt(revStr, 10, 64)
	if err != nil {
		return Ref{}, fsfserr.MalformedIndex("node-revision: malformed ref " + s)
	}
	item, err := strconv.ParseUint(itemStr, 10, 64)
	if err != nil {
		return Ref{}, fsfserr.MalformedIndex("node-revision: malformed ref " + s)
	}
	return Ref{Revision: rev, ItemNumber: item}, nil
}

func parseNodeID(s string) NodeID {
	parts := strings.SplitN(s, ".", 3)
	if len(parts) != 3 {
		return NodeID{}
	}
	return NodeID{Node: parts[0], Copy: parts[1], TxnOrRev: parts[2]}
}

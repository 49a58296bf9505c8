package item

import (
	"bufio"
	"bytes"
	"io"
	"sort"

	"github.com/apache/subversion-sub028/pkg/fsfs/fsfserr"
)

// DirEntry is one name -> node tuple in a directory's entry list.
type DirEntry struct {
	Name string
	Kind Kind
	ID   NodeID
}

// WriteDirEntries serializes entries, sorted by name using ordinary
// byte-wise comparison, as a sequence of "name\x00kind\x00nodeid\n"
// tuples, and returns the number of bytes written. The representation
// this produces is what a directory's data-rep item stores.
func WriteDirEntries(w io.Writer, entries []DirEntry) (int, error) {
	sorted := make([]DirEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var buf bytes.Buffer
	for _, e := range sorted {
		buf.WriteString(e.Name)
		buf.WriteByte(0)
		buf.WriteString(e.Kind.String())
		buf.WriteByte(0)
		buf.WriteString(e.ID.String())
		buf.WriteByte('\n')
	}
	return w.Write(buf.Bytes())
}

// ReadDirEntries parses the tuple stream produced by WriteDirEntries.
// r must be bounded to exactly the directory representation's bytes
// (its P2L entry size); EOF at a tuple boundary ends the list.
func ReadDirEntries(r *bufio.Reader) ([]DirEntry, error) {
	var entries []DirEntry
	for {
		name, err := r.ReadString(0)
		if err != nil {
			if err == io.EOF && name == "" {
				return entries, nil
			}
			return nil, fsfserr.MalformedIndex("dir-entries: truncated name")
		}
		name = name[:len(name)-1] // drop NUL

		kindStr, err := r.ReadString(0)
		if err != nil {
			return nil, fsfserr.MalformedIndex("dir-entries: truncated kind")
		}
		kindStr = kindStr[:len(kindStr)-1]
		kind, err := ParseKind(kindStr)
		if err != nil {
			return nil, fsfserr.MalformedIndex(err.Error())
		}

		idStr, err := r.ReadString('\n')
		if err != nil {
			return nil, fsfserr.MalformedIndex("dir-entries: truncated node id")
		}
		idStr = idStr[:len(idStr)-1]

		entries = append(entries, DirEntry{Name: name, Kind: kind, ID: parseNodeID(idStr)})
	}
}

package item

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/apache/subversion-sub028/pkg/fsfs/fsfserr"
)

// ChangedPathEntry records one path affected by a revision.
type ChangedPathEntry struct {
	Path         string
	NodeID       NodeID
	Change       ChangeKind
	TextMod      bool
	PropMod      bool
	CopyFromRev  int64 // -1 if this change was not the result of a copy
	CopyFromPath string
}

// WriteChangedPaths serializes entries (item-number 1 of every
// revision) as "key: value" records separated by blank lines, and
// returns the number of bytes written.
func WriteChangedPaths(w io.Writer, entries []ChangedPathEntry) (int, error) {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "path: %s\n", e.Path)
		fmt.Fprintf(&b, "node-id: %s\n", e.NodeID)
		fmt.Fprintf(&b, "change: %s\n", e.Change)
		fmt.Fprintf(&b, "text-mod: %t\n", e.TextMod)
		fmt.Fprintf(&b, "prop-mod: %t\n", e.PropMod)
		if e.CopyFromRev >= 0 {
			fmt.Fprintf(&b, "copyfrom-rev: %d\n", e.CopyFromRev)
			fmt.Fprintf(&b, "copyfrom-path: %s\n", e.CopyFromPath)
		}
		b.WriteByte('\n')
	}
	return io.WriteString(w, b.String())
}

// ReadChangedPaths parses a changed-paths record written by
// WriteChangedPaths.
func ReadChangedPaths(r *bufio.Reader) ([]ChangedPathEntry, error) {
	var entries []ChangedPathEntry
	cur := ChangedPathEntry{CopyFromRev: -1}
	have := false
	for {
		line, err := readLine(r)
		if err != nil {
			if errors.Is(err, io.EOF) && !have {
				return entries, nil
			}
			return nil, fsfserr.MalformedIndex("changed-paths: truncated record")
		}
		if line == "" {
			if !have {
				return entries, nil
			}
			entries = append(entries, cur)
			cur = ChangedPathEntry{CopyFromRev: -1}
			have = false
			continue
		}
		have = true
		key, value, ok := strings.Cut(line, ": ")
		if !ok {
			return nil, fsfserr.MalformedIndex("changed-paths: malformed line " + line)
		}
		switch key {
		case "path":
			cur.Path = value
		case "node-id":
			cur.NodeID = parseNodeID(value)
		case "change":
			k, err := ParseChangeKind(value)
			if err != nil {
				return nil, fsfserr.MalformedIndex(err.Error())
			}
			cur.Change = k
		case "text-mod":
			cur.TextMod = value == "true"
		case "prop-mod":
			cur.PropMod = value == "true"
		case "copyfrom-rev":
			cur.CopyFromRev, _ = strconv.ParseInt(value, 10, 64)
		case "copyfrom-path":
			cur.CopyFromPath = value
		}
	}
}

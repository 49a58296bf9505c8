// Package revfile implements the binary container for a single
// revision (or packed shard) of items: an append-only item region
// followed by the L2P and P2L indexes and a trailing footer that
// locates them, grounded on the layout documented in spec.md §4.2 and
// original_source's subversion/libsvn_fs_fs/rev_file.c.
package revfile

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/apache/subversion-sub028/pkg/fsfs/checksum"
	"github.com/apache/subversion-sub028/pkg/fsfs/fsfserr"
)

// Footer is the trailing line of a logical-addressing revision file:
// "<l2p-offset> <p2l-offset> <checksum>\n". The checksum covers the
// footer's own prefix (the two offsets and the separating spaces),
// not the file contents, matching spec.md §4.2's description of it as
// a corruption check on the footer itself.
type Footer struct {
	L2POffset int64
	P2LOffset int64
}

// prefix renders the footer's two offsets and the space between them,
// the part of the line its FNV-1a-32 checksum covers.
func (f Footer) prefix() string {
	return strconv.FormatInt(f.L2POffset, 10) + " " + strconv.FormatInt(f.P2LOffset, 10)
}

// WriteTo appends the footer line to w, returning the number of bytes
// written.
func (f Footer) WriteTo(w io.Writer) (int64, error) {
	prefix := f.prefix()
	sum := checksum.FNV1a32([]byte(prefix))
	line := prefix + " " + checksum.Hex(sum) + "\n"
	n, err := io.WriteString(w, line)
	return int64(n), err
}

// ReadFooter parses the last line of a logical-addressing revision
// file. line must not include the trailing newline.
func ReadFooter(line string) (Footer, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return Footer{}, fsfserr.MalformedIndex(fmt.Sprintf("revfile: footer has %d fields, want 3", len(fields)))
	}
	l2p, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return Footer{}, fsfserr.MalformedIndex("revfile: bad l2p-offset in footer")
	}
	p2l, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return Footer{}, fsfserr.MalformedIndex("revfile: bad p2l-offset in footer")
	}
	wantSum, err := checksum.ParseHex(fields[2])
	if err != nil {
		return Footer{}, fsfserr.MalformedIndex("revfile: bad checksum in footer")
	}
	f := Footer{L2POffset: l2p, P2LOffset: p2l}
	if got := checksum.FNV1a32([]byte(f.prefix())); got != wantSum {
		return Footer{}, fsfserr.MalformedIndex("revfile: footer checksum mismatch")
	}
	return f, nil
}

// LegacyFooter is the trailing line of a physical-addressing revision
// file (format < 7): "<root-node-offset> <changed-paths-offset>\n",
// with no indexes and no checksum. Kept so fsfs can read revisions
// written by older format versions, per spec.md §4.2's "dual
// addressing mode".
type LegacyFooter struct {
	RootNodeOffset     int64
	ChangedPathsOffset int64
}

// ReadLegacyFooter parses a pre-logical-addressing footer line.
func ReadLegacyFooter(line string) (LegacyFooter, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return LegacyFooter{}, fsfserr.MalformedIndex(fmt.Sprintf("revfile: legacy footer has %d fields, want 2", len(fields)))
	}
	root, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return LegacyFooter{}, fsfserr.MalformedIndex("revfile: bad root-node offset in legacy footer")
	}
	cp, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return LegacyFooter{}, fsfserr.MalformedIndex("revfile: bad changed-paths offset in legacy footer")
	}
	return LegacyFooter{RootNodeOffset: root, ChangedPathsOffset: cp}, nil
}

// WriteTo appends the legacy footer line to w.
func (f LegacyFooter) WriteTo(w io.Writer) (int64, error) {
	line := strconv.FormatInt(f.RootNodeOffset, 10) + " " + strconv.FormatInt(f.ChangedPathsOffset, 10) + "\n"
	n, err := io.WriteString(w, line)
	return int64(n), err
}

// ReadLastLine scans r (the whole revision file) and returns its
// final line without the trailing newline, the way a reader locates
// the footer by seeking from the end of the file in the real
// implementation. This pure-io.Reader variant is provided for callers
// that do not have random access (tests, streamed verification); a
// file-backed reader should instead seek backward from EOF.
func ReadLastLine(r io.Reader) (string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var last string
	seen := false
	for sc.Scan() {
		last = sc.Text()
		seen = true
	}
	if err := sc.Err(); err != nil {
		return "", fsfserr.IOError{Op: "revfile.ReadLastLine", Err: err}
	}
	if !seen {
		return "", fsfserr.MalformedIndex("revfile: empty file, no footer")
	}
	return last, nil
}

// Writer accumulates a revision file's item region, tracking the
// byte offset each appended item lands at so those offsets can be
// recorded in the proto-L2P/proto-P2L streams as items are written,
// mirroring how svn_fs_fs__begin_rep_write reports an item's starting
// offset to its caller while the stream is still open.
type Writer struct {
	w      io.Writer
	offset int64
}

// NewWriter returns a Writer appending to w, whose current length
// (before any writes through this Writer) is startOffset.
func NewWriter(w io.Writer, startOffset int64) *Writer {
	return &Writer{w: w, offset: startOffset}
}

// Offset returns the byte offset the next Write call will start at.
func (w *Writer) Offset() int64 { return w.offset }

// Write appends p to the item region and returns the offset at which
// it was written.
func (w *Writer) Write(p []byte) (offset int64, err error) {
	offset = w.offset
	n, err := w.w.Write(p)
	w.offset += int64(n)
	if err != nil {
		return offset, fsfserr.IOError{Op: "revfile.Writer.Write", Err: err}
	}
	return offset, nil
}

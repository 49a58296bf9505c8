package item

import (
	"bufio"
	"fmt"
	"io"
	"sort"

	"github.com/apache/subversion-sub028/pkg/fsfs/fsfserr"
)

// PropList is a property-name to property-value mapping, as used for
// revision properties and file/directory properties. Property names
// are strings; values are opaque byte strings so binary properties
// round-trip exactly.
type PropList map[string][]byte

// WriteTo serializes p using the K/V/END hash-dump format: each
// property is a "K <namelen>\n<name>\nV <valuelen>\n<value>\n" triple,
// keys emitted in sorted order for determinism, terminated by "END\n".
func (p PropList) WriteTo(w io.Writer) (int64, error) {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)

	var total int64
	write := func(b []byte) error {
		n, err := w.Write(b)
		total += int64(n)
		return err
	}
	for _, name := range names {
		val := p[name]
		if err := write([]byte(fmt.Sprintf("K %d\n%s\n", len(name), name))); err != nil {
			return total, err
		}
		if err := write([]byte(fmt.Sprintf("V %d\n", len(val)))); err != nil {
			return total, err
		}
		if err := write(val); err != nil {
			return total, err
		}
		if err := write([]byte("\n")); err != nil {
			return total, err
		}
	}
	if err := write([]byte("END\n")); err != nil {
		return total, err
	}
	return total, nil
}

// ReadPropList parses the K/V/END hash-dump format produced by
// WriteTo.
func ReadPropList(r io.Reader) (PropList, error) {
	br := bufio.NewReader(r)
	props := PropList{}
	for {
		line, err := readLine(br)
		if err != nil {
			return nil, fsfserr.MalformedIndex("proplist: missing END marker")
		}
		if line == "END" {
			return props, nil
		}
		var klen int
		if _, err := fmt.Sscanf(line, "K %d", &klen); err != nil {
			return nil, fsfserr.MalformedIndex("proplist: expected K line, got " + line)
		}
		name := make([]byte, klen)
		if _, err := io.ReadFull(br, name); err != nil {
			return nil, fsfserr.MalformedIndex("proplist: short key")
		}
		if _, err := readLine(br); err != nil { // trailing newline after name
			return nil, fsfserr.MalformedIndex("proplist: missing newline after key")
		}
		vline, err := readLine(br)
		if err != nil {
			return nil, fsfserr.MalformedIndex("proplist: missing V line")
		}
		var vlen int
		if _, err := fmt.Sscanf(vline, "V %d", &vlen); err != nil {
			return nil, fsfserr.MalformedIndex("proplist: expected V line, got " + vline)
		}
		val := make([]byte, vlen)
		if _, err := io.ReadFull(br, val); err != nil {
			return nil, fsfserr.MalformedIndex("proplist: short value")
		}
		if _, err := readLine(br); err != nil { // trailing newline after value
			return nil, fsfserr.MalformedIndex("proplist: missing newline after value")
		}
		props[string(name)] = val
	}
}

// readLine reads one line, stripping its trailing newline. It returns
// io.EOF, unwrapped, exactly when the stream is exhausted with no
// further content to read; callers that always expect an explicit
// terminator before end-of-stream treat that as corruption, while
// callers of an unterminated list (e.g. changed-paths, which is
// bounded by its P2L size rather than an END marker) treat it as the
// natural end of the list.
func readLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadString('\n')
	if err != nil && len(line) == 0 {
		return "", io.EOF
	}
	if len(line) > 0 && line[len(line)-1] == '\n' {
		line = line[:len(line)-1]
	}
	return line, nil
}

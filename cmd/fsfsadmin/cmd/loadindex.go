package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/apache/subversion-sub028/pkg/fsfs/item"
	"github.com/apache/subversion-sub028/pkg/fsfs/p2l"
)

var loadIndexRevision int64

var loadIndexCmd = &cobra.Command{
	Use:   "load-index",
	Short: "Rebuild a revision's indexes from a dump-index table read on stdin",
	Long: "Reads the space-separated table produced by dump-index from stdin " +
		"and rewrites the named revision's L2P/P2L indexes to match it. " +
		"Checksums are recomputed from the revision file's own bytes, not " +
		"taken from the input, so a hand-edited checksum column has no effect.",
	RunE: runLoadIndex,
}

func init() {
	loadIndexCmd.Flags().Int64Var(&loadIndexRevision, "revision", -1, "revision whose indexes are being rebuilt (required)")
	_ = loadIndexCmd.MarkFlagRequired("revision")
}

func runLoadIndex(c *cobra.Command, args []string) error {
	entries, err := parseIndexTable(c.InOrStdin())
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	ctx := newContext()
	r, err := openRepository(ctx)
	if err != nil {
		return err
	}
	defer r.Close()

	return r.RewriteIndexes(ctx, loadIndexRevision, entries)
}

func parseIndexTable(in io.Reader) ([]p2l.Entry, error) {
	sc := bufio.NewScanner(in)
	var entries []p2l.Entry
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.Contains(line, "tart") {
			continue
		}
		entry, err := parseIndexLine(line)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "cmd: reading index table")
	}
	return entries, nil
}

func parseIndexLine(line string) (p2l.Entry, error) {
	fields := strings.Fields(line)
	if len(fields) < 6 {
		return p2l.Entry{}, fmt.Errorf("cmd: index line has %d columns, want at least 6: %q", len(fields), line)
	}
	offset, err := strconv.ParseInt(fields[0], 16, 64)
	if err != nil {
		return p2l.Entry{}, fmt.Errorf("cmd: bad offset column %q", fields[0])
	}
	size, err := strconv.ParseInt(fields[1], 16, 64)
	if err != nil {
		return p2l.Entry{}, fmt.Errorf("cmd: bad length column %q", fields[1])
	}
	typ, err := parseItemTypeColumn(fields[2])
	if err != nil {
		return p2l.Entry{}, err
	}
	revision, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return p2l.Entry{}, fmt.Errorf("cmd: bad revision column %q", fields[3])
	}
	itemNumber, err := strconv.ParseUint(fields[4], 10, 64)
	if err != nil {
		return p2l.Entry{}, fmt.Errorf("cmd: bad item column %q", fields[4])
	}
	return p2l.Entry{
		Offset:     offset,
		Size:       size,
		Type:       typ,
		Revision:   revision,
		ItemNumber: itemNumber,
	}, nil
}

// parseItemTypeColumn inverts itemTypeColumn.
func parseItemTypeColumn(s string) (item.Type, error) {
	switch s {
	case "none":
		return item.TypeUnused, nil
	case "frep":
		return item.TypeFileRep, nil
	case "drep":
		return item.TypeDirRep, nil
	case "fprop":
		return item.TypeFileProps, nil
	case "dprop":
		return item.TypeDirProps, nil
	case "node":
		return item.TypeNodeRev, nil
	case "chgs":
		return item.TypeChangedPaths, nil
	case "rep":
		return item.TypeGenericRep, nil
	default:
		return 0, fmt.Errorf("cmd: unknown item type column %q", s)
	}
}

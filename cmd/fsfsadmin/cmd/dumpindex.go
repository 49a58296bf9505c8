package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/apache/subversion-sub028/pkg/fsfs/checksum"
	"github.com/apache/subversion-sub028/pkg/fsfs/item"
)

var dumpIndexRevision int64

var dumpIndexCmd = &cobra.Command{
	Use:   "dump-index",
	Short: "Print the P2L index entries covering a revision, one row per item",
	RunE:  runDumpIndex,
}

func init() {
	dumpIndexCmd.Flags().Int64Var(&dumpIndexRevision, "revision", -1, "revision to dump (required)")
	_ = dumpIndexCmd.MarkFlagRequired("revision")
}

func runDumpIndex(c *cobra.Command, args []string) error {
	ctx := newContext()
	r, err := openRepository(ctx)
	if err != nil {
		return err
	}
	defer r.Close()

	_, p2lIdx, err := r.Indexes(dumpIndexRevision)
	if err != nil {
		return err
	}

	fmt.Fprintln(c.OutOrStdout(), "       Start       Length Type   Revision     Item Checksum")
	for _, block := range p2lIdx.Blocks {
		for _, e := range block {
			fmt.Fprintf(c.OutOrStdout(), "%12x %12x %-6s %9d %8d %s\n",
				e.Offset, e.Size, itemTypeColumn(e.Type), e.Revision, e.ItemNumber, checksum.Hex(e.Checksum))
		}
	}
	return nil
}

// itemTypeColumn renders an item.Type the way dump-index's fixed-width
// column expects, padding item.Type.String()'s hyphenated names back
// to the original tool's bare words.
func itemTypeColumn(t item.Type) string {
	switch t {
	case item.TypeUnused:
		return "none"
	case item.TypeFileRep:
		return "frep"
	case item.TypeDirRep:
		return "drep"
	case item.TypeFileProps:
		return "fprop"
	case item.TypeDirProps:
		return "dprop"
	case item.TypeNodeRev:
		return "node"
	case item.TypeChangedPaths:
		return "chgs"
	case item.TypeGenericRep:
		return "rep"
	default:
		return t.String()
	}
}

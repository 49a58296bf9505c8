package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var packShard int64

var packCmd = &cobra.Command{
	Use:   "pack",
	Short: "Fold a sealed shard's revision files into one pack file",
	RunE:  runPack,
}

func init() {
	packCmd.Flags().Int64Var(&packShard, "shard", -1, "shard number to pack (required)")
	_ = packCmd.MarkFlagRequired("shard")
}

func runPack(c *cobra.Command, args []string) error {
	ctx := newContext()
	r, err := openRepository(ctx)
	if err != nil {
		return err
	}
	defer r.Close()

	if err := r.Pack(ctx, packShard); err != nil {
		return err
	}
	fmt.Fprintf(c.OutOrStdout(), "packed shard %d\n", packShard)
	return nil
}

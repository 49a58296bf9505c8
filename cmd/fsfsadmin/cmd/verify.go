package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	verifyFromRevision int64
	verifyToRevision   int64
	verifyChecksums    bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Cross-check the L2P and P2L indexes over a revision range",
	RunE:  runVerify,
}

func init() {
	verifyCmd.Flags().Int64Var(&verifyFromRevision, "from", 0, "first revision to verify")
	verifyCmd.Flags().Int64Var(&verifyToRevision, "to", -1, "last revision to verify (required)")
	verifyCmd.Flags().BoolVar(&verifyChecksums, "checksums", true, "also re-verify every item's stored checksum")
	_ = verifyCmd.MarkFlagRequired("to")
}

func runVerify(c *cobra.Command, args []string) error {
	ctx := newContext()
	r, err := openRepository(ctx)
	if err != nil {
		return err
	}
	defer r.Close()

	report, err := r.Verify(ctx, verifyFromRevision, verifyToRevision, verifyChecksums)
	if err != nil {
		return err
	}

	if report.Clean() {
		fmt.Fprintln(c.OutOrStdout(), "no problems found")
		return nil
	}

	for _, f := range report.Findings {
		fmt.Fprintln(c.OutOrStdout(), f.String())
	}
	return fmt.Errorf("verify: %d problem(s) found", len(report.Findings))
}

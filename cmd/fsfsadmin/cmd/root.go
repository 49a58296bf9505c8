// Package cmd implements fsfsadmin's subcommands on top of
// github.com/spf13/cobra, grounded on the top-level command
// registration style of cs3org-reva/cmd/reva (one file per
// subcommand, each defining a package-level *cobra.Command that this
// file's init adds to the root).
package cmd

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/apache/subversion-sub028/pkg/fsfs/config"
	"github.com/apache/subversion-sub028/pkg/fsfs/fsfslog"
	"github.com/apache/subversion-sub028/pkg/fsfs/repo"
)

var (
	repoPath string
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:           "fsfsadmin",
	Short:         "Inspect and repair an fsfs repository",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&repoPath, "repo", "", "path to the repository root (required)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	_ = rootCmd.MarkPersistentFlagRequired("repo")

	rootCmd.AddCommand(dumpIndexCmd)
	rootCmd.AddCommand(loadIndexCmd)
	rootCmd.AddCommand(packCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(revpropCmd)
}

// Execute runs the fsfsadmin command tree.
func Execute() error {
	return rootCmd.Execute()
}

// newContext returns a context carrying a console logger at the level
// the --verbose flag requests.
func newContext() context.Context {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	logger := zerolog.New(writer).Level(level).With().Timestamp().Logger()
	return fsfslog.WithLogger(context.Background(), logger)
}

// openRepository opens the repository at --repo using on-disk
// defaults overridden by whatever format the repository itself
// records.
func openRepository(ctx context.Context) (*repo.Repository, error) {
	cfg := config.Default(repoPath)
	return repo.Open(ctx, cfg)
}

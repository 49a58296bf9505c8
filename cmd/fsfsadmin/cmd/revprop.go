package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/apache/subversion-sub028/pkg/fsfs/item"
	"github.com/apache/subversion-sub028/pkg/fsfs/repo"
)

var revpropRevision int64

var revpropCmd = &cobra.Command{
	Use:   "revprop",
	Short: "Read or write a revision's properties",
}

var revpropGetCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Print one revision property's value",
	Args:  cobra.ExactArgs(1),
	RunE:  runRevpropGet,
}

var revpropSetCmd = &cobra.Command{
	Use:   "set <name> [value]",
	Short: "Set one revision property, reading the value from stdin if omitted",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runRevpropSet,
}

func init() {
	revpropCmd.PersistentFlags().Int64Var(&revpropRevision, "revision", -1, "revision whose properties are read or written (required)")
	_ = revpropCmd.MarkPersistentFlagRequired("revision")

	revpropCmd.AddCommand(revpropGetCmd)
	revpropCmd.AddCommand(revpropSetCmd)
}

func runRevpropGet(c *cobra.Command, args []string) error {
	ctx := newContext()
	r, err := openRepository(ctx)
	if err != nil {
		return err
	}
	defer r.Close()

	props, err := readRevpropsOrEmpty(r, revpropRevision)
	if err != nil {
		return err
	}
	val, ok := props[args[0]]
	if !ok {
		return fmt.Errorf("cmd: revision %d has no property %q", revpropRevision, args[0])
	}
	_, err = c.OutOrStdout().Write(val)
	return err
}

func runRevpropSet(c *cobra.Command, args []string) error {
	name := args[0]
	var value []byte
	if len(args) == 2 {
		value = []byte(args[1])
	} else {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("cmd: reading property value from stdin: %w", err)
		}
		value = data
	}

	ctx := newContext()
	r, err := openRepository(ctx)
	if err != nil {
		return err
	}
	defer r.Close()

	props, err := readRevpropsOrEmpty(r, revpropRevision)
	if err != nil {
		return err
	}
	props[name] = value

	return r.WriteRevprops(ctx, revpropRevision, props)
}

// readRevpropsOrEmpty treats a revision that has never had a
// properties file written for it (e.g. a revision committed before
// this tool's commit path ever touches revprops) as having an empty
// property list, rather than an error, since setting the first
// property on such a revision is the common case for this subcommand.
func readRevpropsOrEmpty(r *repo.Repository, rev int64) (item.PropList, error) {
	props, err := r.ReadRevprops(rev)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return item.PropList{}, nil
		}
		return nil, err
	}
	if props == nil {
		props = item.PropList{}
	}
	return props, nil
}

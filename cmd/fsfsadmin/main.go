// Command fsfsadmin is the offline administrative tool for an fsfs
// repository: inspecting and repairing its indexes, folding a sealed
// shard into a pack file, running the consistency checker, and reading
// or writing revision properties. Grounded on cs3org-reva/cmd/reva's
// role as the out-of-process operator tool for a reva deployment, and
// on the svnfsfs/svnadmin command set named in original_source.
package main

import (
	"fmt"
	"os"

	"github.com/apache/subversion-sub028/cmd/fsfsadmin/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

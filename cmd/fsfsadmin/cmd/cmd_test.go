package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/apache/subversion-sub028/pkg/fsfs/config"
	"github.com/apache/subversion-sub028/pkg/fsfs/repo"
)

func newTestRepoPath(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default(dir)
	r, err := repo.Create(context.Background(), cfg, "22222222-2222-2222-2222-222222222222")
	require.NoError(t, err)
	require.NoError(t, r.Close())
	return dir
}

func newCapturedCommand() (*cobra.Command, *bytes.Buffer) {
	var out bytes.Buffer
	c := &cobra.Command{}
	c.SetOut(&out)
	return c, &out
}

func TestDumpIndexListsCreatedItems(t *testing.T) {
	repoPath = newTestRepoPath(t)
	dumpIndexRevision = 0

	c, out := newCapturedCommand()
	require.NoError(t, runDumpIndex(c, nil))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3) // header + changed-paths + root node-rev
	require.Contains(t, lines[1], "chgs")
	require.Contains(t, lines[2], "node")
}

func TestLoadIndexRoundTripsDumpOutput(t *testing.T) {
	repoPath = newTestRepoPath(t)
	dumpIndexRevision = 0
	loadIndexRevision = 0

	dumpCmd, dumpOut := newCapturedCommand()
	require.NoError(t, runDumpIndex(dumpCmd, nil))

	loadCmd, _ := newCapturedCommand()
	loadCmd.SetIn(strings.NewReader(dumpOut.String()))
	require.NoError(t, runLoadIndex(loadCmd, nil))

	verifyCmd, verifyOut := newCapturedCommand()
	verifyFromRevision, verifyToRevision, verifyChecksums = 0, 0, true
	require.NoError(t, runVerify(verifyCmd, nil))
	require.Contains(t, verifyOut.String(), "no problems found")
}

func TestRevpropSetThenGet(t *testing.T) {
	repoPath = newTestRepoPath(t)
	revpropRevision = 0

	setCmd, _ := newCapturedCommand()
	require.NoError(t, runRevpropSet(setCmd, []string{"svn:log", "initial import"}))

	getCmd, out := newCapturedCommand()
	require.NoError(t, runRevpropGet(getCmd, []string{"svn:log"}))
	require.Equal(t, "initial import", out.String())
}

func TestRevpropGetMissingPropertyFails(t *testing.T) {
	repoPath = newTestRepoPath(t)
	revpropRevision = 0

	getCmd, _ := newCapturedCommand()
	err := runRevpropGet(getCmd, []string{"svn:does-not-exist"})
	require.Error(t, err)
}

func TestParseIndexLineRejectsShortRows(t *testing.T) {
	_, err := parseIndexLine("0 a")
	require.Error(t, err)
}

func TestItemTypeColumnRoundTrips(t *testing.T) {
	for _, name := range []string{"none", "frep", "drep", "fprop", "dprop", "node", "chgs", "rep"} {
		typ, err := parseItemTypeColumn(name)
		require.NoError(t, err)
		require.Equal(t, name, itemTypeColumn(typ))
	}
}

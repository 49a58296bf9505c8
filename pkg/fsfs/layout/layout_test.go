package layout

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRevFilePath(t *testing.T) {
	l := New("/repo", 1000)
	require.Equal(t, "/repo/db/revs/0/1", l.RevFilePath(1))
	require.Equal(t, "/repo/db/revs/4/4321", l.RevFilePath(4321))
	require.Equal(t, int64(4), l.Shard(4321))
}

func TestPackPaths(t *testing.T) {
	l := New("/repo", 1000)
	require.Equal(t, "/repo/db/revs/0.pack/pack", l.PackFilePath(0))
	require.Equal(t, "/repo/db/revprops/0.pack/manifest", l.RevpropManifestPath(0))
	require.Equal(t, "/repo/db/revprops/0.pack/5.1", l.RevpropPackFilePath(0, 5, 1))
}

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":            "/",
		"/":           "/",
		"foo":         "/foo",
		"/foo/":       "/foo",
		"/foo//bar":   "/foo/bar",
		"/foo/./bar":  "/foo/bar",
		"/foo/../bar": "/bar",
	}
	for in, want := range cases {
		require.Equal(t, want, CanonicalPath(in), "input %q", in)
	}
}

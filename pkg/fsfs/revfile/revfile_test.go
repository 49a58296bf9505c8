package revfile

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFooterRoundTrip(t *testing.T) {
	f := Footer{L2POffset: 1234, P2LOffset: 5678}
	var buf bytes.Buffer
	n, err := f.WriteTo(&buf)
	require.NoError(t, err)
	require.Equal(t, int64(buf.Len()), n)
	require.True(t, strings.HasSuffix(buf.String(), "\n"))

	line := strings.TrimSuffix(buf.String(), "\n")
	got, err := ReadFooter(line)
	require.NoError(t, err)
	require.Equal(t, f, got)
}

func TestFooterRejectsBadChecksum(t *testing.T) {
	f := Footer{L2POffset: 1, P2LOffset: 2}
	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)
	line := strings.TrimSuffix(buf.String(), "\n")
	tampered := strings.Replace(line, "2", "9", 1)
	_, err = ReadFooter(tampered)
	require.Error(t, err)
}

func TestFooterRejectsWrongFieldCount(t *testing.T) {
	_, err := ReadFooter("1 2")
	require.Error(t, err)
}

func TestLegacyFooterRoundTrip(t *testing.T) {
	f := LegacyFooter{RootNodeOffset: 100, ChangedPathsOffset: 42}
	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)
	line := strings.TrimSuffix(buf.String(), "\n")
	got, err := ReadLegacyFooter(line)
	require.NoError(t, err)
	require.Equal(t, f, got)
}

func TestReadLastLine(t *testing.T) {
	r := strings.NewReader("item one\nitem two\n100 200 ab12cd34\n")
	last, err := ReadLastLine(r)
	require.NoError(t, err)
	require.Equal(t, "100 200 ab12cd34", last)
}

func TestReadLastLineEmpty(t *testing.T) {
	_, err := ReadLastLine(strings.NewReader(""))
	require.Error(t, err)
}

func TestWriterTracksOffsets(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, 0)
	require.Equal(t, int64(0), w.Offset())

	off1, err := w.Write([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, int64(0), off1)
	require.Equal(t, int64(5), w.Offset())

	off2, err := w.Write([]byte("world!"))
	require.NoError(t, err)
	require.Equal(t, int64(5), off2)
	require.Equal(t, int64(11), w.Offset())

	require.Equal(t, "helloworld!", buf.String())
}

func TestWriterStartOffset(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, 1000)
	off, err := w.Write([]byte("x"))
	require.NoError(t, err)
	require.Equal(t, int64(1000), off)
}

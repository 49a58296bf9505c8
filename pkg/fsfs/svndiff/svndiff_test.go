package svndiff

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeWindowRoundTrip(t *testing.T) {
	source := []byte("the quick brown fox jumps over the lazy dog")
	target := []byte("the quick brown fox jumps over the lazy cat, said the fox")

	w := EncodeWindow(source, target)
	require.Equal(t, uint64(len(target)), w.TargetLength)

	got, err := Apply(w, source, nil)
	require.NoError(t, err)
	require.Equal(t, target, got)
}

func TestEncodeEmptyTarget(t *testing.T) {
	w := EncodeWindow([]byte("source"), nil)
	got, err := Apply(w, []byte("source"), nil)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestEncodeNoSource(t *testing.T) {
	target := []byte("brand new bytes with no base")
	w := EncodeWindow(nil, target)
	got, err := Apply(w, nil, nil)
	require.NoError(t, err)
	require.Equal(t, target, got)
}

func TestWindowWireRoundTrip(t *testing.T) {
	source := []byte("aaaaaaaaaabbbbbbbbbb")
	target := []byte("aaaaaaaaaaccccccccccbbbbbbbbbb")
	w := EncodeWindow(source, target)

	var buf bytes.Buffer
	_, err := w.WriteTo(&buf)
	require.NoError(t, err)

	got, err := ReadWindow(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Equal(t, w, got)

	out, err := Apply(got, source, nil)
	require.NoError(t, err)
	require.Equal(t, target, out)
}

func TestEncodeStreamDecodeStream(t *testing.T) {
	source := bytes.Repeat([]byte("0123456789"), 50)
	target := append(append([]byte{}, source...), []byte("extra-tail-data-not-in-source")...)

	windows := EncodeStream(source, target, 64)
	require.True(t, len(windows) > 1)

	got, err := DecodeStream(windows, source)
	require.NoError(t, err)
	require.Equal(t, target, got)
}

func TestApplyRejectsOutOfRangeSourceCopy(t *testing.T) {
	w := Window{
		SourceViewLength: 4,
		TargetLength:     4,
		Ops:              []Op{{Kind: OpCopySource, Offset: 2, Length: 4}},
	}
	_, err := Apply(w, []byte("abcd"), nil)
	require.Error(t, err)
}

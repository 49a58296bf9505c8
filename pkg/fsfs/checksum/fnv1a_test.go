package checksum

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFNV1a32KnownVectors(t *testing.T) {
	// Well-known FNV-1a 32-bit test vectors.
	require.Equal(t, uint32(0x811c9dc5), FNV1a32(nil))
	require.Equal(t, uint32(0xe40c292c), FNV1a32([]byte("a")))
	require.Equal(t, uint32(0xbf9cf968), FNV1a32([]byte("foobar")))
}

func TestHexRoundTrip(t *testing.T) {
	sum := FNV1a32([]byte("Hello\n"))
	s := Hex(sum)
	require.Len(t, s, 8)
	got, err := ParseHex(s)
	require.NoError(t, err)
	require.Equal(t, sum, got)
}

func TestIsZero(t *testing.T) {
	require.True(t, IsZero(0))
	require.False(t, IsZero(1))
}

package pagecache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPageRoundTrip(t *testing.T) {
	c, err := New(1 << 20)
	require.NoError(t, err)
	defer c.Close()

	key := PageKey{FileID: "db/revs/0/5", PageIndex: 3}
	_, ok := c.GetPage(key)
	require.False(t, ok)

	c.SetPage(key, []byte("decoded page bytes"))
	c.Wait()

	got, ok := c.GetPage(key)
	require.True(t, ok)
	require.Equal(t, "decoded page bytes", string(got))
}

func TestDeletePageEvictsEntry(t *testing.T) {
	c, err := New(1 << 20)
	require.NoError(t, err)
	defer c.Close()

	key := PageKey{FileID: "db/revs/0/5", PageIndex: 3}
	c.SetPage(key, []byte("decoded page bytes"))
	c.Wait()

	_, ok := c.GetPage(key)
	require.True(t, ok)

	c.DeletePage(key)
	c.Wait()

	_, ok = c.GetPage(key)
	require.False(t, ok)
}

func TestRevpropGenerationScoping(t *testing.T) {
	c, err := New(1 << 20)
	require.NoError(t, err)
	defer c.Close()

	oldKey := RevpropKey{Revision: 7, Generation: 2}
	newKey := RevpropKey{Revision: 7, Generation: 4}

	c.SetRevprops(oldKey, []byte("stale"))
	c.Wait()

	_, ok := c.GetRevprops(newKey)
	require.False(t, ok)

	got, ok := c.GetRevprops(oldKey)
	require.True(t, ok)
	require.Equal(t, "stale", string(got))
}

package wlock

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "write-lock")
	l := New(path)
	require.NoError(t, l.Acquire(time.Second))
	require.NoError(t, l.Release())
}

func TestAcquireTimesOutWhenHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "write-lock")
	holder := New(path)
	require.NoError(t, holder.Acquire(time.Second))
	defer holder.Release()

	other := New(path)
	err := other.Acquire(50 * time.Millisecond)
	require.Error(t, err)
}

func TestWithLockRunsAndReleases(t *testing.T) {
	path := filepath.Join(t.TempDir(), "write-lock")
	var ran bool
	err := WithLock(path, time.Second, func() error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	require.True(t, ran)

	l := New(path)
	require.NoError(t, l.Acquire(time.Second))
	require.NoError(t, l.Release())
}

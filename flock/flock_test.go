package flock_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/efscore/efs/flock"
)

func TestLockUncontended(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "lock")
	lock := flock.New(lockPath)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, lock.Lock(ctx))
		require.NoError(t, lock.Unlock())
	}
}

func TestLockContendedFailsImmediately(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "lock")
	holder := flock.New(lockPath)
	ctx := context.Background()
	require.NoError(t, holder.Lock(ctx))

	contender := flock.New(lockPath)
	require.Error(t, contender.Lock(ctx))

	require.NoError(t, holder.Unlock())
	require.NoError(t, contender.Lock(ctx))
	require.NoError(t, contender.Unlock())
}

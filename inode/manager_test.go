package inode_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/efscore/efs/crypto"
	"github.com/efscore/efs/errors"
	"github.com/efscore/efs/inode"
	"github.com/efscore/efs/kvstore"
	"github.com/efscore/efs/kvstore/memkv"
)

func newTestManager(t *testing.T) (*kvstore.Store, *inode.Manager) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	store, err := kvstore.Open(memkv.New(), "", key, nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	m, err := inode.Open(store, inode.NewDeviceTable())
	require.NoError(t, err)
	return store, m
}

func TestAllocateInoMonotonic(t *testing.T) {
	_, m := newTestManager(t)
	a := m.AllocateIno()
	b := m.AllocateIno()
	assert.Less(t, a, b)
}

func TestDeallocateInoReusedBeforeIncrement(t *testing.T) {
	_, m := newTestManager(t)
	a := m.AllocateIno()
	m.DeallocateIno(a)
	b := m.AllocateIno()
	assert.Equal(t, a, b)
}

func TestDirCreateRootIsSelfParented(t *testing.T) {
	store, m := newTestManager(t)
	root := m.AllocateIno()
	err := store.Transact([]uint64{root}, func(tx *kvstore.Txn) error {
		return m.DirCreate(tx, root, inode.Params{Mode: 0o755}, nil)
	})
	require.NoError(t, err)

	err = store.Transact([]uint64{root}, func(tx *kvstore.Txn) error {
		dot, ok, err := m.DirGetEntry(tx, root, ".")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, root, dot)
		dotdot, ok, err := m.DirGetEntry(tx, root, "..")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, root, dotdot)
		r, ok, err := m.Get(tx, root)
		require.NoError(t, err)
		require.True(t, ok)
		assert.EqualValues(t, 2, r.Nlink)
		return nil
	})
	require.NoError(t, err)
}

// TestDirectoryLinkCounts mirrors spec scenario S4: mkdir /a; mkdir
// /a/b; stat(/a).nlink == 3, stat(/a/b).nlink == 2.
func TestDirectoryLinkCounts(t *testing.T) {
	store, m := newTestManager(t)
	root := m.AllocateIno()
	a := m.AllocateIno()
	b := m.AllocateIno()

	err := store.Transact([]uint64{root, a, b}, func(tx *kvstore.Txn) error {
		if err := m.DirCreate(tx, root, inode.Params{Mode: 0o755}, nil); err != nil {
			return err
		}
		if err := m.DirCreate(tx, a, inode.Params{Mode: 0o755}, &root); err != nil {
			return err
		}
		if err := m.DirSetEntry(tx, root, "a", a); err != nil {
			return err
		}
		if err := m.DirCreate(tx, b, inode.Params{Mode: 0o755}, &a); err != nil {
			return err
		}
		return m.DirSetEntry(tx, a, "b", b)
	})
	require.NoError(t, err)

	err = store.Transact([]uint64{a, b}, func(tx *kvstore.Txn) error {
		ra, ok, err := m.Get(tx, a)
		require.NoError(t, err)
		require.True(t, ok)
		assert.EqualValues(t, 3, ra.Nlink)

		rb, ok, err := m.Get(tx, b)
		require.NoError(t, err)
		require.True(t, ok)
		assert.EqualValues(t, 2, rb.Nlink)
		return nil
	})
	require.NoError(t, err)
}

func TestDirSetEntryAlreadyExists(t *testing.T) {
	store, m := newTestManager(t)
	root := m.AllocateIno()
	f := m.AllocateIno()
	err := store.Transact([]uint64{root, f}, func(tx *kvstore.Txn) error {
		require.NoError(t, m.DirCreate(tx, root, inode.Params{Mode: 0o755}, nil))
		require.NoError(t, m.FileCreate(tx, f, inode.Params{Mode: 0o644}, 4096, nil))
		return m.DirSetEntry(tx, root, "f", f)
	})
	require.NoError(t, err)

	err = store.Transact([]uint64{root}, func(tx *kvstore.Txn) error {
		return m.DirSetEntry(tx, root, "f", f)
	})
	assert.True(t, errors.Is(errors.AlreadyExists, err))
}

// TestFileWriteReadRoundTrip mirrors spec scenario S2: writeFile with
// blockSize=5, content "Test Buffer"; fileGetLastBlock returns
// (index=2, bytes="r").
func TestFileWriteReadRoundTrip(t *testing.T) {
	store, m := newTestManager(t)
	f := m.AllocateIno()
	err := store.Transact([]uint64{f}, func(tx *kvstore.Txn) error {
		return m.FileCreate(tx, f, inode.Params{Mode: 0o644}, 5, []byte("Test Buffer"))
	})
	require.NoError(t, err)

	err = store.Transact([]uint64{f}, func(tx *kvstore.Txn) error {
		blocks, err := m.FileGetBlocks(tx, f, 0, math.MaxUint64)
		require.NoError(t, err)
		var buf []byte
		for _, b := range blocks {
			buf = append(buf, b.Data...)
		}
		assert.Equal(t, "Test Buffer", string(buf))

		last, ok, err := m.FileGetLastBlock(tx, f)
		require.NoError(t, err)
		require.True(t, ok)
		assert.EqualValues(t, 2, last.Index)
		assert.Equal(t, "r", string(last.Data))
		return nil
	})
	require.NoError(t, err)
}

func TestFileWriteBlocksPartialOverwrite(t *testing.T) {
	store, m := newTestManager(t)
	f := m.AllocateIno()
	err := store.Transact([]uint64{f}, func(tx *kvstore.Txn) error {
		return m.FileCreate(tx, f, inode.Params{Mode: 0o644}, 8, []byte("Test Buffer for File Descriptor"))
	})
	require.NoError(t, err)

	err = store.Transact([]uint64{f}, func(tx *kvstore.Txn) error {
		return m.FileWriteBlocks(tx, f, []byte("Nice"), 8, 0)
	})
	require.NoError(t, err)

	err = store.Transact([]uint64{f}, func(tx *kvstore.Txn) error {
		blocks, err := m.FileGetBlocks(tx, f, 0, math.MaxUint64)
		require.NoError(t, err)
		var buf []byte
		for _, b := range blocks {
			buf = append(buf, b.Data...)
		}
		assert.Equal(t, "Nice Buffer for File Descriptor", string(buf))
		return nil
	})
	require.NoError(t, err)
}

func TestFileWriteBlocksSparseExtend(t *testing.T) {
	store, m := newTestManager(t)
	f := m.AllocateIno()
	err := store.Transact([]uint64{f}, func(tx *kvstore.Txn) error {
		return m.FileCreate(tx, f, inode.Params{Mode: 0o644}, 4, nil)
	})
	require.NoError(t, err)

	err = store.Transact([]uint64{f}, func(tx *kvstore.Txn) error {
		return m.FileWriteBlocks(tx, f, []byte("X"), 4, 10)
	})
	require.NoError(t, err)

	err = store.Transact([]uint64{f}, func(tx *kvstore.Txn) error {
		r, ok, err := m.Get(tx, f)
		require.NoError(t, err)
		require.True(t, ok)
		assert.EqualValues(t, 11, r.Size)

		blocks, err := m.FileGetBlocks(tx, f, 0, math.MaxUint64)
		require.NoError(t, err)
		var buf []byte
		for _, b := range blocks {
			buf = append(buf, b.Data...)
		}
		want := make([]byte, 11)
		want[10] = 'X'
		assert.Equal(t, want, buf)
		return nil
	})
	require.NoError(t, err)
}

// TestUnlinkWhileOpenDefersDestruction mirrors spec scenario S3: an
// inode with zero nlink but a positive in-memory refcount survives
// until the refcount also drops and a later transaction collects it.
func TestUnlinkWhileOpenDefersDestruction(t *testing.T) {
	store, m := newTestManager(t)
	root := m.AllocateIno()
	f := m.AllocateIno()
	err := store.Transact([]uint64{root, f}, func(tx *kvstore.Txn) error {
		require.NoError(t, m.DirCreate(tx, root, inode.Params{Mode: 0o755}, nil))
		require.NoError(t, m.FileCreate(tx, f, inode.Params{Mode: 0o644}, 4096, []byte("Test Buffer for File Descriptor")))
		return m.DirSetEntry(tx, root, "f", f)
	})
	require.NoError(t, err)

	m.Ref(f) // simulate an open FD

	err = store.Transact([]uint64{root, f}, func(tx *kvstore.Txn) error {
		return m.DirUnsetEntry(tx, root, "f")
	})
	require.NoError(t, err)

	// still present: refcount is nonzero.
	err = store.Transact([]uint64{f}, func(tx *kvstore.Txn) error {
		_, ok, err := m.Get(tx, f)
		require.NoError(t, err)
		assert.True(t, ok)
		blocks, err := m.FileGetBlocks(tx, f, 0, math.MaxUint64)
		require.NoError(t, err)
		assert.NotEmpty(t, blocks)
		return nil
	})
	require.NoError(t, err)

	m.Unref(f) // simulate close(fd)

	err = store.Transact([]uint64{f}, func(tx *kvstore.Txn) error {
		return m.MaybeCollect(tx, f)
	})
	require.NoError(t, err)

	err = store.Transact([]uint64{f}, func(tx *kvstore.Txn) error {
		_, ok, err := m.Get(tx, f)
		require.NoError(t, err)
		assert.False(t, ok)
		blocks, err := m.FileGetBlocks(tx, f, 0, math.MaxUint64)
		require.NoError(t, err)
		assert.Empty(t, blocks)
		return nil
	})
	require.NoError(t, err)
}

func TestSymlinkCreateAndRead(t *testing.T) {
	store, m := newTestManager(t)
	s := m.AllocateIno()
	err := store.Transact([]uint64{s}, func(tx *kvstore.Txn) error {
		return m.SymlinkCreate(tx, s, inode.Params{Mode: 0o777}, "a link")
	})
	require.NoError(t, err)

	err = store.Transact([]uint64{s}, func(tx *kvstore.Txn) error {
		target, err := m.ReadSymlink(tx, s)
		require.NoError(t, err)
		assert.Equal(t, "a link", target)
		return nil
	})
	require.NoError(t, err)
}

func TestStatSetPropBumpsCtimeOnModeChange(t *testing.T) {
	store, m := newTestManager(t)
	f := m.AllocateIno()
	err := store.Transact([]uint64{f}, func(tx *kvstore.Txn) error {
		return m.FileCreate(tx, f, inode.Params{Mode: 0o644}, 4096, nil)
	})
	require.NoError(t, err)

	past := time.Unix(1000, 0)
	err = store.Transact([]uint64{f}, func(tx *kvstore.Txn) error {
		if err := m.StatSetProp(tx, f, inode.PropCtime, past); err != nil {
			return err
		}
		return m.StatSetProp(tx, f, inode.PropMode, uint32(0o600))
	})
	require.NoError(t, err)

	err = store.Transact([]uint64{f}, func(tx *kvstore.Txn) error {
		r, ok, err := m.Get(tx, f)
		require.NoError(t, err)
		require.True(t, ok)
		assert.EqualValues(t, 0o600, r.Mode)
		assert.True(t, r.Ctime.After(past))
		return nil
	})
	require.NoError(t, err)
}

func TestDeviceTableBuiltins(t *testing.T) {
	dt := inode.NewDeviceTable()
	null, ok := dt.Lookup(inode.RdevNull)
	require.True(t, ok)
	buf := make([]byte, 4)
	n, err := null.Write([]byte("data"), 0)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	n, err = null.Read(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	zero, ok := dt.Lookup(inode.RdevZero)
	require.True(t, ok)
	buf = []byte{1, 2, 3}
	n, err = zero.Read(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []byte{0, 0, 0}, buf)
}

package efs_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/efscore/efs/crypto"
	"github.com/efscore/efs/efs"
	"github.com/efscore/efs/errors"
	"github.com/efscore/efs/kvstore/memkv"
)

func newTestFS(t *testing.T) *efs.FileSystem {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	fs, err := efs.Open(memkv.New(), "", efs.Config{DBKey: key})
	require.NoError(t, err)
	t.Cleanup(func() { fs.Close() })
	return fs
}

var root = efs.Caller{Uid: 0, Gid: 0}

func TestOpenFormatsSelfParentedRoot(t *testing.T) {
	fs := newTestFS(t)
	entries, err := fs.Readdir("/", root)
	require.NoError(t, err)
	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name] = true
	}
	require.True(t, names["."])
	require.True(t, names[".."])
}

// TestCreateWriteReadFile covers S2: create a file, write through it,
// read back, and check its recorded size.
func TestCreateWriteReadFile(t *testing.T) {
	fs := newTestFS(t)
	fd, err := fs.Open("/greeting", efs.OCreat|efs.OWronly, 0o644, root)
	require.NoError(t, err)
	n, err := fs.Write(fd, []byte("hello, world"), nil)
	require.NoError(t, err)
	require.Equal(t, 12, n)
	require.NoError(t, fs.CloseFD(fd))

	data, err := fs.ReadFile("/greeting", root)
	require.NoError(t, err)
	require.Equal(t, "hello, world", string(data))

	rec, err := fs.Stat("/greeting", root)
	require.NoError(t, err)
	require.EqualValues(t, 12, rec.Size)
}

// TestUnlinkWhileOpenDefersDestruction covers S3: a file unlinked
// while an fd remains open leaves the namespace at once but stays
// readable through that fd until it is closed.
func TestUnlinkWhileOpenDefersDestruction(t *testing.T) {
	fs := newTestFS(t)
	require.NoError(t, fs.WriteFile("/doomed", []byte("still here"), 0o644, root))

	fd, err := fs.Open("/doomed", efs.ORdonly, 0, root)
	require.NoError(t, err)

	require.NoError(t, fs.Unlink("/doomed", root))

	_, err = fs.Stat("/doomed", root)
	require.Error(t, err)
	require.Equal(t, errors.NotFound, errors.KindOf(err))

	buf := make([]byte, 32)
	n, err := fs.Read(fd, buf, nil)
	require.NoError(t, err)
	require.Equal(t, "still here", string(buf[:n]))

	require.NoError(t, fs.CloseFD(fd))
}

// TestDirectoryLinkCounts covers S4: mkdir bumps the parent's link
// count via the child's "..", and rmdir reverses it.
func TestDirectoryLinkCounts(t *testing.T) {
	fs := newTestFS(t)
	rootBefore, err := fs.Stat("/", root)
	require.NoError(t, err)

	require.NoError(t, fs.Mkdir("/sub", 0o755, root))
	rootAfter, err := fs.Stat("/", root)
	require.NoError(t, err)
	require.Equal(t, rootBefore.Nlink+1, rootAfter.Nlink)

	require.NoError(t, fs.Rmdir("/sub", root))
	rootFinal, err := fs.Stat("/", root)
	require.NoError(t, err)
	require.Equal(t, rootBefore.Nlink, rootFinal.Nlink)
}

// TestSymlinkCreateReadAndLoop covers S5: a symlink can be created and
// read back, and a chain of symlinks pointing at each other is
// rejected as a loop rather than hanging.
func TestSymlinkCreateReadAndLoop(t *testing.T) {
	fs := newTestFS(t)
	require.NoError(t, fs.WriteFile("/target", []byte("payload"), 0o644, root))
	require.NoError(t, fs.Symlink("/target", "/link", root))

	target, err := fs.Readlink("/link", root)
	require.NoError(t, err)
	require.Equal(t, "/target", target)

	data, err := fs.ReadFile("/link", root)
	require.NoError(t, err)
	require.Equal(t, "payload", string(data))

	require.NoError(t, fs.Symlink("/loop-b", "/loop-a", root))
	require.NoError(t, fs.Symlink("/loop-a", "/loop-b", root))
	_, err = fs.Open("/loop-a", efs.ORdonly, 0, root)
	require.Error(t, err)
	require.Equal(t, errors.SymlinkLoop, errors.KindOf(err))
}

// TestRenameOverExistingFile covers S6: renaming onto an existing
// file destroys the old target within the same transaction.
func TestRenameOverExistingFile(t *testing.T) {
	fs := newTestFS(t)
	require.NoError(t, fs.WriteFile("/a", []byte("aaa"), 0o644, root))
	require.NoError(t, fs.WriteFile("/b", []byte("bbb"), 0o644, root))

	require.NoError(t, fs.Rename("/a", "/b", root))

	_, err := fs.Stat("/a", root)
	require.Error(t, err)
	require.Equal(t, errors.NotFound, errors.KindOf(err))

	data, err := fs.ReadFile("/b", root)
	require.NoError(t, err)
	require.Equal(t, "aaa", string(data))
}

func TestRenameOverNonEmptyDirectoryFails(t *testing.T) {
	fs := newTestFS(t)
	require.NoError(t, fs.Mkdir("/srcdir", 0o755, root))
	require.NoError(t, fs.Mkdir("/dstdir", 0o755, root))
	require.NoError(t, fs.WriteFile("/dstdir/child", []byte("x"), 0o644, root))

	err := fs.Rename("/srcdir", "/dstdir", root)
	require.Error(t, err)
	require.Equal(t, errors.NotEmpty, errors.KindOf(err))
}

func TestMkdirRejectsDuplicateName(t *testing.T) {
	fs := newTestFS(t)
	require.NoError(t, fs.Mkdir("/dup", 0o755, root))
	err := fs.Mkdir("/dup", 0o755, root)
	require.Error(t, err)
	require.Equal(t, errors.AlreadyExists, errors.KindOf(err))
}

func TestTruncateGrowsWithZeroFill(t *testing.T) {
	fs := newTestFS(t)
	require.NoError(t, fs.WriteFile("/grow", []byte("abc"), 0o644, root))
	require.NoError(t, fs.Truncate("/grow", 6, root))
	data, err := fs.ReadFile("/grow", root)
	require.NoError(t, err)
	require.Equal(t, []byte{'a', 'b', 'c', 0, 0, 0}, data)
}

func TestTruncateShrinks(t *testing.T) {
	fs := newTestFS(t)
	require.NoError(t, fs.WriteFile("/shrink", []byte("abcdef"), 0o644, root))
	require.NoError(t, fs.Truncate("/shrink", 3, root))
	data, err := fs.ReadFile("/shrink", root)
	require.NoError(t, err)
	require.Equal(t, "abc", string(data))
}

func TestChmodRequiresOwnerOrRoot(t *testing.T) {
	fs := newTestFS(t)
	owner := efs.Caller{Uid: 100, Gid: 100}
	intruder := efs.Caller{Uid: 200, Gid: 200}
	require.NoError(t, fs.WriteFile("/owned", []byte("x"), 0o644, owner))

	err := fs.Chmod("/owned", 0o600, intruder)
	require.Error(t, err)
	require.Equal(t, errors.PermissionDenied, errors.KindOf(err))

	require.NoError(t, fs.Chmod("/owned", 0o600, owner))
	rec, err := fs.Stat("/owned", root)
	require.NoError(t, err)
	require.EqualValues(t, 0o600, rec.Mode)
}

func TestChownRequiresRoot(t *testing.T) {
	fs := newTestFS(t)
	owner := efs.Caller{Uid: 100, Gid: 100}
	require.NoError(t, fs.WriteFile("/owned2", []byte("x"), 0o644, owner))

	err := fs.Chown("/owned2", 7, 7, owner)
	require.Error(t, err)
	require.Equal(t, errors.PermissionDenied, errors.KindOf(err))

	require.NoError(t, fs.Chown("/owned2", 7, 7, root))
	rec, err := fs.Stat("/owned2", root)
	require.NoError(t, err)
	require.EqualValues(t, 7, rec.Uid)
	require.EqualValues(t, 7, rec.Gid)
}

func TestCopyFileDuplicatesContents(t *testing.T) {
	fs := newTestFS(t)
	require.NoError(t, fs.WriteFile("/src", []byte("copy me"), 0o644, root))
	require.NoError(t, fs.CopyFile("/src", "/dst", 0o644, root))
	data, err := fs.ReadFile("/dst", root)
	require.NoError(t, err)
	require.Equal(t, "copy me", string(data))
}

func TestLinkRejectsDirectories(t *testing.T) {
	fs := newTestFS(t)
	require.NoError(t, fs.Mkdir("/adir", 0o755, root))
	err := fs.Link("/adir", "/alink", root)
	require.Error(t, err)
	require.Equal(t, errors.PermissionDenied, errors.KindOf(err))
}

func TestStatfsReportsConfiguredCapacity(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	fs, err := efs.Open(memkv.New(), "", efs.Config{DBKey: key, BlockSize: 1024, CapacityBytes: 1024 * 100})
	require.NoError(t, err)
	t.Cleanup(func() { fs.Close() })

	result, err := fs.Statfs()
	require.NoError(t, err)
	require.EqualValues(t, 1024, result.BlockSize)
	require.EqualValues(t, 100, result.TotalBlocks)
	require.EqualValues(t, 100, result.FreeBlocks)
}

func TestFlushFsyncRejectStaleFd(t *testing.T) {
	fs := newTestFS(t)
	require.Equal(t, errors.BadFileDescriptor, errors.KindOf(fs.Flush(999)))
	require.Equal(t, errors.BadFileDescriptor, errors.KindOf(fs.Fsync(999)))
	require.Equal(t, errors.BadFileDescriptor, errors.KindOf(fs.Fsyncdir(999)))
}

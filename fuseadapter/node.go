// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package fuseadapter

import (
	"context"
	"path"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/efscore/efs/efs"
	"github.com/efscore/efs/inode"
)

// node is the state every inode kind (dirInode, regInode, symlinkInode)
// embeds: the fsys/caller this mount operates as, and this node's
// absolute path within it.
type node struct {
	fs.Inode
	fsys   *efs.FileSystem
	caller efs.Caller
	path   string
	cache  *attrCache
}

func childPath(dir string, name string) string {
	return path.Join(dir, name)
}

// kindMode returns the S_IF* bits for rec.Kind.
func kindMode(kind inode.Kind) uint32 {
	switch kind {
	case inode.Directory:
		return syscall.S_IFDIR
	case inode.Symlink:
		return syscall.S_IFLNK
	case inode.CharacterDev:
		return syscall.S_IFCHR
	default:
		return syscall.S_IFREG
	}
}

func stableAttr(ino uint64, rec *inode.Record) fs.StableAttr {
	return fs.StableAttr{Mode: kindMode(rec.Kind), Ino: ino}
}

func setAttrFromRecord(a *fuse.Attr, ino uint64, rec *inode.Record) {
	a.Ino = ino
	a.Mode = kindMode(rec.Kind) | (rec.Mode & 0o7777)
	a.Uid = rec.Uid
	a.Gid = rec.Gid
	a.Nlink = rec.Nlink
	a.Size = rec.Size
	if rec.Blksize > 0 {
		a.Blocks = (rec.Size + uint64(rec.Blksize) - 1) / uint64(rec.Blksize)
	}
	a.Rdev = uint32(rec.Rdev)
	atime, mtime, ctime := rec.Atime, rec.Mtime, rec.Ctime
	a.SetTimes(&atime, &mtime, &ctime)
}

func setEntryOut(out *fuse.EntryOut, ino uint64, rec *inode.Record) {
	out.NodeId = ino
	setAttrFromRecord(&out.Attr, ino, rec)
}

// newChildInode builds the right InodeEmbedder for a freshly stat'd
// child and attaches it under parent, sharing cache with every other
// node under the same mount.
func newChildInode(ctx context.Context, parent *fs.Inode, fsys *efs.FileSystem, caller efs.Caller, childPath string, ino uint64, rec *inode.Record, cache *attrCache) *fs.Inode {
	var embed fs.InodeEmbedder
	n := node{fsys: fsys, caller: caller, path: childPath, cache: cache}
	switch rec.Kind {
	case inode.Directory:
		embed = &dirInode{node: n}
	case inode.Symlink:
		embed = &symlinkInode{node: n}
	default:
		embed = &regInode{node: n}
	}
	return parent.NewInode(ctx, embed, stableAttr(ino, rec))
}

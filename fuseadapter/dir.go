// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package fuseadapter

import (
	"context"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/efscore/efs/efs"
)

type dirInode struct {
	node
}

// maxNameLen mirrors pathwalk's own per-component bound (spec §4.E).
const maxNameLen = 255

var (
	_ fs.InodeEmbedder = (*dirInode)(nil)

	_ fs.NodeCreater   = (*dirInode)(nil)
	_ fs.NodeGetattrer = (*dirInode)(nil)
	_ fs.NodeLinker    = (*dirInode)(nil)
	_ fs.NodeLookuper  = (*dirInode)(nil)
	_ fs.NodeMkdirer   = (*dirInode)(nil)
	_ fs.NodeReaddirer = (*dirInode)(nil)
	_ fs.NodeRenamer   = (*dirInode)(nil)
	_ fs.NodeRmdirer   = (*dirInode)(nil)
	_ fs.NodeSetattrer = (*dirInode)(nil)
	_ fs.NodeStatfser  = (*dirInode)(nil)
	_ fs.NodeSymlinker = (*dirInode)(nil)
	_ fs.NodeUnlinker  = (*dirInode)(nil)
)

func (n *dirInode) Statfs(ctx context.Context, out *fuse.StatfsOut) syscall.Errno {
	result, err := n.fsys.Statfs()
	if err != nil {
		return errToErrno(err)
	}
	out.Blocks = result.TotalBlocks
	out.Bfree = result.FreeBlocks
	out.Bavail = result.FreeBlocks
	out.Files = result.TotalInodes
	out.Ffree = result.FreeInodes
	out.Bsize = result.BlockSize
	out.Frsize = result.BlockSize
	out.NameLen = maxNameLen
	return fs.OK
}

func (n *dirInode) lookupChild(ctx context.Context, name string) (*fs.Inode, *fuse.Attr, syscall.Errno) {
	cp := childPath(n.path, name)
	ino, rec, ok := n.cache.get(cp)
	if !ok {
		var err error
		ino, err = n.fsys.Ino(cp, n.caller, false)
		if err != nil {
			return nil, nil, errToErrno(err)
		}
		rec, err = n.fsys.Lstat(cp, n.caller)
		if err != nil {
			return nil, nil, errToErrno(err)
		}
		n.cache.put(cp, ino, rec)
	}
	childInode := newChildInode(ctx, &n.Inode, n.fsys, n.caller, cp, ino, rec, n.cache)
	attr := &fuse.Attr{}
	setAttrFromRecord(attr, ino, rec)
	return childInode, attr, fs.OK
}

func (n *dirInode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	childInode, attr, errno := n.lookupChild(ctx, name)
	if errno != fs.OK {
		return nil, errno
	}
	out.Attr = *attr
	return childInode, fs.OK
}

func (n *dirInode) Getattr(ctx context.Context, _ fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	ino, rec, ok := n.cache.get(n.path)
	if !ok {
		var err error
		rec, err = n.fsys.Lstat(n.path, n.caller)
		if err != nil {
			return errToErrno(err)
		}
		ino, err = n.fsys.Ino(n.path, n.caller, false)
		if err != nil {
			return errToErrno(err)
		}
		n.cache.put(n.path, ino, rec)
	}
	setAttrFromRecord(&out.Attr, ino, rec)
	return fs.OK
}

func (n *dirInode) Setattr(ctx context.Context, _ fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	if mode, ok := in.GetMode(); ok {
		if err := n.fsys.Chmod(n.path, mode, n.caller); err != nil {
			return errToErrno(err)
		}
	}
	return n.Getattr(ctx, nil, out)
}

func (n *dirInode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	entries, err := n.fsys.Readdir(n.path, n.caller)
	if err != nil {
		return nil, errToErrno(err)
	}
	return newDirStream(entries), fs.OK
}

func (n *dirInode) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	cp := childPath(n.path, name)
	fd, err := n.fsys.Open(cp, translateOpenFlags(flags)|efs.OCreat, mode, n.caller)
	if err != nil {
		return nil, nil, 0, errToErrno(err)
	}
	childInode, attr, errno := n.lookupChild(ctx, name)
	if errno != fs.OK {
		n.fsys.CloseFD(fd)
		return nil, nil, 0, errno
	}
	out.Attr = *attr
	return childInode, &fileHandle{fsys: n.fsys, fd: fd}, 0, fs.OK
}

func (n *dirInode) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	if err := n.fsys.Mkdir(childPath(n.path, name), mode, n.caller); err != nil {
		return nil, errToErrno(err)
	}
	childInode, attr, errno := n.lookupChild(ctx, name)
	if errno != fs.OK {
		return nil, errno
	}
	out.Attr = *attr
	return childInode, fs.OK
}

func (n *dirInode) Rmdir(ctx context.Context, name string) syscall.Errno {
	return errToErrno(n.fsys.Rmdir(childPath(n.path, name), n.caller))
}

func (n *dirInode) Unlink(ctx context.Context, name string) syscall.Errno {
	return errToErrno(n.fsys.Unlink(childPath(n.path, name), n.caller))
}

func (n *dirInode) Symlink(ctx context.Context, target, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	if err := n.fsys.Symlink(target, childPath(n.path, name), n.caller); err != nil {
		return nil, errToErrno(err)
	}
	childInode, attr, errno := n.lookupChild(ctx, name)
	if errno != fs.OK {
		return nil, errno
	}
	out.Attr = *attr
	return childInode, fs.OK
}

func (n *dirInode) Link(ctx context.Context, target fs.InodeEmbedder, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	targetNode, ok := target.(interface{ efsPath() string })
	if !ok {
		return nil, syscall.EXDEV
	}
	if err := n.fsys.Link(targetNode.efsPath(), childPath(n.path, name), n.caller); err != nil {
		return nil, errToErrno(err)
	}
	childInode, attr, errno := n.lookupChild(ctx, name)
	if errno != fs.OK {
		return nil, errno
	}
	out.Attr = *attr
	return childInode, fs.OK
}

func (n *dirInode) Rename(ctx context.Context, name string, newParent fs.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	destDir, ok := newParent.(interface{ efsPath() string })
	if !ok {
		return syscall.EXDEV
	}
	oldPath := childPath(n.path, name)
	newPath := childPath(destDir.efsPath(), newName)
	return errToErrno(n.fsys.Rename(oldPath, newPath, n.caller))
}

func (n *node) efsPath() string { return n.path }

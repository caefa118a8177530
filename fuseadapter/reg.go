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

type regInode struct {
	node
}

var (
	_ fs.InodeEmbedder = (*regInode)(nil)

	_ fs.NodeGetattrer = (*regInode)(nil)
	_ fs.NodeOpener    = (*regInode)(nil)
	_ fs.NodeSetattrer = (*regInode)(nil)
)

func (n *regInode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	fd, err := n.fsys.Open(n.path, translateOpenFlags(flags), 0, n.caller)
	if err != nil {
		return nil, 0, errToErrno(err)
	}
	return &fileHandle{fsys: n.fsys, fd: fd}, 0, fs.OK
}

func (n *regInode) Getattr(ctx context.Context, _ fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	rec, err := n.fsys.Stat(n.path, n.caller)
	if err != nil {
		return errToErrno(err)
	}
	ino, err := n.fsys.Ino(n.path, n.caller, true)
	if err != nil {
		return errToErrno(err)
	}
	setAttrFromRecord(&out.Attr, ino, rec)
	return fs.OK
}

func (n *regInode) Setattr(ctx context.Context, fh fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	if size, ok := in.GetSize(); ok {
		if err := n.fsys.Truncate(n.path, size, n.caller); err != nil {
			return errToErrno(err)
		}
	}
	if mode, ok := in.GetMode(); ok {
		if err := n.fsys.Chmod(n.path, mode, n.caller); err != nil {
			return errToErrno(err)
		}
	}
	return n.Getattr(ctx, fh, out)
}

// fileHandle wraps an efs file descriptor, translating the go-fuse
// FileHandle interfaces onto it.
type fileHandle struct {
	fsys *efs.FileSystem
	fd   int
}

var (
	_ fs.FileReader    = (*fileHandle)(nil)
	_ fs.FileWriter    = (*fileHandle)(nil)
	_ fs.FileFlusher   = (*fileHandle)(nil)
	_ fs.FileFsyncer   = (*fileHandle)(nil)
	_ fs.FileReleaser  = (*fileHandle)(nil)
)

func (h *fileHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	pos := uint64(off)
	n, err := h.fsys.Read(h.fd, dest, &pos)
	if err != nil {
		return nil, errToErrno(err)
	}
	return fuse.ReadResultData(dest[:n]), fs.OK
}

func (h *fileHandle) Write(ctx context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	pos := uint64(off)
	n, err := h.fsys.Write(h.fd, data, &pos)
	if err != nil {
		return 0, errToErrno(err)
	}
	return uint32(n), fs.OK
}

func (h *fileHandle) Flush(ctx context.Context) syscall.Errno {
	return errToErrno(h.fsys.Flush(h.fd))
}

func (h *fileHandle) Fsync(ctx context.Context, flags uint32) syscall.Errno {
	return errToErrno(h.fsys.Fsync(h.fd))
}

func (h *fileHandle) Release(ctx context.Context) syscall.Errno {
	return errToErrno(h.fsys.CloseFD(h.fd))
}

// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package fuseadapter

import (
	"context"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

type symlinkInode struct {
	node
}

var (
	_ fs.InodeEmbedder = (*symlinkInode)(nil)

	_ fs.NodeGetattrer  = (*symlinkInode)(nil)
	_ fs.NodeReadlinker = (*symlinkInode)(nil)
)

func (n *symlinkInode) Readlink(ctx context.Context) ([]byte, syscall.Errno) {
	target, err := n.fsys.Readlink(n.path, n.caller)
	if err != nil {
		return nil, errToErrno(err)
	}
	return []byte(target), fs.OK
}

func (n *symlinkInode) Getattr(ctx context.Context, _ fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	rec, err := n.fsys.Lstat(n.path, n.caller)
	if err != nil {
		return errToErrno(err)
	}
	ino, err := n.fsys.Ino(n.path, n.caller, false)
	if err != nil {
		return errToErrno(err)
	}
	setAttrFromRecord(&out.Attr, ino, rec)
	return fs.OK
}

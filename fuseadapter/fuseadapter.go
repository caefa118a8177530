// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package fuseadapter implements github.com/hanwen/go-fuse/v2/fs on top
// of an *efs.FileSystem, kept deliberately outside efs's own dependency
// graph: efs never imports this package, so the core stays usable from
// any caller that doesn't want a kernel mount (cmd/efsctl, tests).
//
// Every fuseadapter node is addressed by its absolute path rather than
// by a raw inode number, matching efs's own path-addressed facade.
// Kernel-facing identity (the FUSE inode number reported in StableAttr
// and fuse.Attr.Ino) is the real efs inode number underneath the path,
// recovered via FileSystem.Ino, so two hard-linked paths present as the
// same FUSE inode.
//
// The mount runs as a single caller identity (NewRoot's caller
// argument); go-fuse's high-level Node* interfaces don't thread
// the requesting uid/gid through most operations, so per-request
// impersonation isn't attempted here.
package fuseadapter

import (
	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/efscore/efs/efs"
)

// NewRoot creates a FUSE inode tree rooted at fsys's "/", servicing
// every request as caller.
func NewRoot(fsys *efs.FileSystem, caller efs.Caller) fs.InodeEmbedder {
	return &dirInode{node: node{fsys: fsys, caller: caller, path: "/", cache: newAttrCache()}}
}

// ConfigureMountOptions sets the mount options this adapter expects.
func ConfigureMountOptions(opts *fuse.MountOptions) {
	opts.FsName = "efs"
	opts.DisableXAttrs = true
}

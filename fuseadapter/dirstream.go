// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package fuseadapter

import (
	"syscall"

	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/efscore/efs/inode"
)

// dirStream adapts the fully materialized entry slice efs.Readdir
// returns to go-fuse's pull-based fs.DirStream. Unlike the teacher's
// fsnodefuse, which streams lazily off an fsnode.Iterator, efs.Readdir
// has already paid the cost of listing the directory under its own
// transaction by the time Readdir returns, so there is nothing left to
// do here but walk a slice.
type dirStream struct {
	entries []inode.DirEntry
	pos     int
}

func newDirStream(entries []inode.DirEntry) *dirStream {
	return &dirStream{entries: entries}
}

func (d *dirStream) HasNext() bool {
	return d.pos < len(d.entries)
}

func (d *dirStream) Next() (fuse.DirEntry, syscall.Errno) {
	e := d.entries[d.pos]
	d.pos++
	// Mode is left zero: the kernel falls back to a Lookup for the
	// entry's type, which dirInode.Lookup answers from a real Lstat.
	return fuse.DirEntry{Name: e.Name, Ino: e.Ino}, 0
}

func (d *dirStream) Close() {}

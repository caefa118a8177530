// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package inode

import (
	"time"

	"github.com/efscore/efs/errors"
	"github.com/efscore/efs/kvstore"
)

func newRecord(kind Kind, p Params, nlink uint32, blksize uint32, size uint64) *Record {
	now := time.Now()
	return &Record{
		Kind:      kind,
		Mode:      p.Mode,
		Uid:       p.Uid,
		Gid:       p.Gid,
		Atime:     now,
		Mtime:     now,
		Ctime:     now,
		Birthtime: now,
		Nlink:     nlink,
		Blksize:   blksize,
		Size:      size,
		Rdev:      p.Rdev,
	}
}

// FileCreate writes a new file inode record at ino. If initialData is
// non-empty it is stored as blocks of blksize under B/<ino>/*, and
// Size is set accordingly; otherwise the file starts empty.
func (m *Manager) FileCreate(tx *kvstore.Txn, ino uint64, p Params, blksize uint32, initialData []byte) error {
	if blksize == 0 {
		blksize = 4096
	}
	r := newRecord(File, p, 1, blksize, uint64(len(initialData)))
	m.put(tx, ino, r)
	m.bumpWatermark(tx, ino)
	if len(initialData) > 0 {
		writeBlocksRaw(tx, ino, 0, initialData, blksize)
	}
	return nil
}

// DirCreate writes a new directory inode record at ino, plus the two
// synthetic entries "." -> ino and ".." -> parentIno (or ino itself,
// for a self-parented root). A self-parented root's nlink starts at 2
// (its own "." and ".."); any other directory starts at 1 (its own
// "."). The second link, for its entry in the parent's listing, is
// added by the caller's subsequent DirSetEntry, which also bumps the
// parent's own nlink for the new child's "..".
func (m *Manager) DirCreate(tx *kvstore.Txn, ino uint64, p Params, parentIno *uint64) error {
	parent := ino
	nlink := uint32(1)
	if parentIno != nil {
		parent = *parentIno
	} else {
		nlink = 2
	}
	r := newRecord(Directory, p, nlink, 0, 0)
	m.put(tx, ino, r)
	m.bumpWatermark(tx, ino)
	tx.Put(direntKey(ino, "."), encodeIno(ino))
	tx.Put(direntKey(ino, ".."), encodeIno(parent))
	return nil
}

// SymlinkCreate writes a new symlink inode record at ino and its
// target string under L/<ino>.
func (m *Manager) SymlinkCreate(tx *kvstore.Txn, ino uint64, p Params, target string) error {
	r := newRecord(Symlink, p, 1, 0, uint64(len(target)))
	m.put(tx, ino, r)
	m.bumpWatermark(tx, ino)
	tx.Put(symlinkKey(ino), []byte(target))
	return nil
}

// ReadSymlink returns ino's link target.
func (m *Manager) ReadSymlink(tx *kvstore.Txn, ino uint64) (string, error) {
	v, ok, err := tx.Get(symlinkKey(ino))
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errors.E(errors.NotFound, "inode.ReadSymlink")
	}
	return string(v), nil
}

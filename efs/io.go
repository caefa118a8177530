// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package efs

import (
	"math"

	"github.com/efscore/efs/errors"
	"github.com/efscore/efs/inode"
	"github.com/efscore/efs/kvstore"
	"github.com/efscore/efs/pathwalk"
)

// Read reads into buf from fd, one transaction per call (spec §4.D's
// per-FD read contract: position nil uses and advances fd's cursor).
func (fs *FileSystem) Read(fd int, buf []byte, position *uint64) (int, error) {
	f, ok := fs.fds.Get(fd)
	if !ok {
		return 0, errors.E(errors.BadFileDescriptor, "efs.Read")
	}
	var n int
	err := fs.store.Transact([]uint64{f.Ino}, func(tx *kvstore.Txn) error {
		var rerr error
		n, rerr = fs.fds.Read(tx, fd, buf, position)
		return rerr
	})
	return n, err
}

// Write writes buf to fd.
func (fs *FileSystem) Write(fd int, buf []byte, position *uint64) (int, error) {
	f, ok := fs.fds.Get(fd)
	if !ok {
		return 0, errors.E(errors.BadFileDescriptor, "efs.Write")
	}
	var n int
	err := fs.store.Transact([]uint64{f.Ino}, func(tx *kvstore.Txn) error {
		var werr error
		n, werr = fs.fds.Write(tx, fd, buf, position)
		return werr
	})
	return n, err
}

// ReadFile opens path read-only, reads its entire contents, and
// closes it.
func (fs *FileSystem) ReadFile(path string, caller Caller) ([]byte, error) {
	fd, err := fs.Open(path, ORdonly, 0, caller)
	if err != nil {
		return nil, err
	}
	defer fs.CloseFD(fd)

	var out []byte
	buf := make([]byte, fs.blockSize)
	for {
		n, rerr := fs.Read(fd, buf, nil)
		if rerr != nil {
			return nil, rerr
		}
		if n == 0 {
			break
		}
		out = append(out, buf[:n]...)
	}
	return out, nil
}

// WriteFile opens path with O_CREAT|O_TRUNC, writes data, and closes
// it, all inside a single transaction (spec §4.F).
func (fs *FileSystem) WriteFile(path string, data []byte, mode uint32, caller Caller) error {
	newIno := fs.manager.AllocateIno()
	usedNew := false
	err := fs.store.Transact([]uint64{rootIno, newIno}, func(tx *kvstore.Txn) error {
		parent, base, werr := pathwalk.WalkParent(tx, fs.manager, rootIno, path)
		if werr != nil {
			return werr
		}
		if eerr := tx.EnsureLocked(parent); eerr != nil {
			return eerr
		}
		parentRec, ok, gerr := fs.manager.Get(tx, parent)
		if gerr != nil {
			return gerr
		}
		if !ok {
			return errors.E(errors.NotFound, "efs.WriteFile")
		}
		if perr := pathwalk.Check(parentRec, caller.Uid, caller.Gid, pathwalk.Exec); perr != nil {
			return perr
		}

		childIno, found, gerr := fs.manager.DirGetEntry(tx, parent, base)
		if gerr != nil {
			return gerr
		}
		if found {
			if eerr := tx.EnsureLocked(childIno); eerr != nil {
				return eerr
			}
			childRec, ok, gerr := fs.manager.Get(tx, childIno)
			if gerr != nil {
				return gerr
			}
			if !ok {
				return errors.E(errors.NotFound, "efs.WriteFile")
			}
			if childRec.Kind != inode.File {
				return errors.E(errors.IsADirectory, "efs.WriteFile")
			}
			if perr := pathwalk.Check(childRec, caller.Uid, caller.Gid, pathwalk.Write); perr != nil {
				return perr
			}
			return fs.manager.FileSetBlocks(tx, childIno, data, childRec.Blksize)
		}

		if perr := pathwalk.Check(parentRec, caller.Uid, caller.Gid, pathwalk.Write); perr != nil {
			return perr
		}
		params := inode.Params{Mode: applyUmask(mode, fs.umask), Uid: caller.Uid, Gid: caller.Gid}
		if cerr := fs.manager.FileCreate(tx, newIno, params, fs.blockSize, data); cerr != nil {
			return cerr
		}
		if serr := fs.manager.DirSetEntry(tx, parent, base, newIno); serr != nil {
			return serr
		}
		usedNew = true
		return nil
	})
	if !usedNew {
		fs.manager.DeallocateIno(newIno)
	}
	return err
}

// CopyFile copies srcPath's contents to dstPath by reading the whole
// file into memory with ReadFile and writing it with WriteFile
// (SPEC_FULL.md supplement, the efsctl cp building block).
func (fs *FileSystem) CopyFile(srcPath, dstPath string, mode uint32, caller Caller) error {
	data, err := fs.ReadFile(srcPath, caller)
	if err != nil {
		return err
	}
	return fs.WriteFile(dstPath, data, mode, caller)
}

// truncateTo resizes ino to size, zero-filling a grow via
// fileWriteBlocks' existing gap-fill path and re-slicing blocks for a
// shrink.
func (fs *FileSystem) truncateTo(tx *kvstore.Txn, ino uint64, rec *inode.Record, size uint64) error {
	if size == rec.Size {
		return nil
	}
	if size > rec.Size {
		return fs.manager.FileWriteBlocks(tx, ino, nil, rec.Blksize, size)
	}
	blocks, err := fs.manager.FileGetBlocks(tx, ino, 0, math.MaxUint64)
	if err != nil {
		return err
	}
	var buf []byte
	for _, b := range blocks {
		buf = append(buf, b.Data...)
	}
	if uint64(len(buf)) < size {
		buf = append(buf, make([]byte, size-uint64(len(buf)))...)
	}
	return fs.manager.FileSetBlocks(tx, ino, buf[:size], rec.Blksize)
}

// Truncate resizes path's file to size.
func (fs *FileSystem) Truncate(path string, size uint64, caller Caller) error {
	return fs.store.Transact([]uint64{rootIno}, func(tx *kvstore.Txn) error {
		ino, werr := pathwalk.Walk(tx, fs.manager, rootIno, path, true)
		if werr != nil {
			return werr
		}
		if eerr := tx.EnsureLocked(ino); eerr != nil {
			return eerr
		}
		rec, ok, gerr := fs.manager.Get(tx, ino)
		if gerr != nil {
			return gerr
		}
		if !ok {
			return errors.E(errors.NotFound, "efs.Truncate")
		}
		if rec.Kind != inode.File {
			return errors.E(errors.InvalidArgument, "efs.Truncate: not a regular file")
		}
		if perr := pathwalk.Check(rec, caller.Uid, caller.Gid, pathwalk.Write); perr != nil {
			return perr
		}
		return fs.truncateTo(tx, ino, rec, size)
	})
}

// Ftruncate resizes the file underlying fd.
func (fs *FileSystem) Ftruncate(fd int, size uint64) error {
	f, ok := fs.fds.Get(fd)
	if !ok {
		return errors.E(errors.BadFileDescriptor, "efs.Ftruncate")
	}
	return fs.store.Transact([]uint64{f.Ino}, func(tx *kvstore.Txn) error {
		rec, ok, gerr := fs.manager.Get(tx, f.Ino)
		if gerr != nil {
			return gerr
		}
		if !ok {
			return errors.E(errors.NotFound, "efs.Ftruncate")
		}
		if rec.Kind != inode.File {
			return errors.E(errors.InvalidArgument, "efs.Ftruncate: not a regular file")
		}
		return fs.truncateTo(tx, f.Ino, rec, size)
	})
}

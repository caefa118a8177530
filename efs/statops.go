// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package efs

import (
	"math"
	"time"

	"github.com/efscore/efs/errors"
	"github.com/efscore/efs/inode"
	"github.com/efscore/efs/kvstore"
	"github.com/efscore/efs/pathwalk"
)

func (fs *FileSystem) statWalk(path string, followFinal bool) (*inode.Record, error) {
	var rec *inode.Record
	err := fs.store.Transact([]uint64{rootIno}, func(tx *kvstore.Txn) error {
		ino, werr := pathwalk.Walk(tx, fs.manager, rootIno, path, followFinal)
		if werr != nil {
			return werr
		}
		r, ok, gerr := fs.manager.Get(tx, ino)
		if gerr != nil {
			return gerr
		}
		if !ok {
			return errors.E(errors.NotFound, "efs.Stat")
		}
		rec = r
		return nil
	})
	return rec, err
}

// Stat resolves path, following a final symlink.
func (fs *FileSystem) Stat(path string, caller Caller) (*inode.Record, error) {
	return fs.statWalk(path, true)
}

// Ino resolves path to its underlying inode number, the identity two
// different paths share after a Link call. Callers that need a stable
// per-object handle (a FUSE adapter building kernel inode numbers, for
// instance) use this instead of hashing the path itself.
func (fs *FileSystem) Ino(path string, caller Caller, followFinal bool) (uint64, error) {
	var ino uint64
	err := fs.store.Transact([]uint64{rootIno}, func(tx *kvstore.Txn) error {
		var werr error
		ino, werr = pathwalk.Walk(tx, fs.manager, rootIno, path, followFinal)
		return werr
	})
	return ino, err
}

// Lstat resolves path without following a final symlink.
func (fs *FileSystem) Lstat(path string, caller Caller) (*inode.Record, error) {
	return fs.statWalk(path, false)
}

// Chmod sets path's mode bits. Only root or the owning uid may do so.
func (fs *FileSystem) Chmod(path string, mode uint32, caller Caller) error {
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
			return errors.E(errors.NotFound, "efs.Chmod")
		}
		if caller.Uid != 0 && caller.Uid != rec.Uid {
			return errors.E(errors.PermissionDenied, "efs.Chmod")
		}
		return fs.manager.StatSetProp(tx, ino, inode.PropMode, mode&0o7777)
	})
}

// Chown sets path's owning uid/gid. Only root may do so.
func (fs *FileSystem) Chown(path string, uid, gid uint32, caller Caller) error {
	return fs.store.Transact([]uint64{rootIno}, func(tx *kvstore.Txn) error {
		ino, werr := pathwalk.Walk(tx, fs.manager, rootIno, path, true)
		if werr != nil {
			return werr
		}
		if eerr := tx.EnsureLocked(ino); eerr != nil {
			return eerr
		}
		if _, ok, gerr := fs.manager.Get(tx, ino); gerr != nil {
			return gerr
		} else if !ok {
			return errors.E(errors.NotFound, "efs.Chown")
		}
		if caller.Uid != 0 {
			return errors.E(errors.PermissionDenied, "efs.Chown")
		}
		if uerr := fs.manager.StatSetProp(tx, ino, inode.PropUid, uid); uerr != nil {
			return uerr
		}
		return fs.manager.StatSetProp(tx, ino, inode.PropGid, gid)
	})
}

// Utimes sets path's atime and mtime directly (root or owner only).
func (fs *FileSystem) Utimes(path string, atime, mtime time.Time, caller Caller) error {
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
			return errors.E(errors.NotFound, "efs.Utimes")
		}
		if caller.Uid != 0 && caller.Uid != rec.Uid {
			return errors.E(errors.PermissionDenied, "efs.Utimes")
		}
		if uerr := fs.manager.StatSetProp(tx, ino, inode.PropAtime, atime); uerr != nil {
			return uerr
		}
		return fs.manager.StatSetProp(tx, ino, inode.PropMtime, mtime)
	})
}

// Access probes path for mask without opening it, mirroring POSIX
// access(2) (SPEC_FULL.md supplement).
func (fs *FileSystem) Access(path string, mask pathwalk.Mask, caller Caller) error {
	return fs.store.Transact([]uint64{rootIno}, func(tx *kvstore.Txn) error {
		ino, werr := pathwalk.Walk(tx, fs.manager, rootIno, path, true)
		if werr != nil {
			return werr
		}
		rec, ok, gerr := fs.manager.Get(tx, ino)
		if gerr != nil {
			return gerr
		}
		if !ok {
			return errors.E(errors.NotFound, "efs.Access")
		}
		return pathwalk.Check(rec, caller.Uid, caller.Gid, mask)
	})
}

// StatfsResult is Statfs's result (SPEC_FULL.md supplement, needed by
// any real mount: df calls statfs).
type StatfsResult struct {
	BlockSize   uint32
	TotalBlocks uint64
	FreeBlocks  uint64
	TotalInodes uint64
	FreeInodes  uint64
}

// Statfs reports aggregate capacity. Free-space accounting is
// approximate: this facade does not track per-block allocation
// globally, so it reports the configured total capacity as free,
// matching spec.md's explicit exclusion of quota accounting from this
// system's scope.
func (fs *FileSystem) Statfs() (StatfsResult, error) {
	var result StatfsResult
	result.BlockSize = fs.blockSize
	if fs.capacity > 0 {
		result.TotalBlocks = fs.capacity / uint64(fs.blockSize)
	} else {
		result.TotalBlocks = math.MaxUint64 / uint64(fs.blockSize)
	}
	result.FreeBlocks = result.TotalBlocks
	result.TotalInodes = math.MaxUint64
	result.FreeInodes = math.MaxUint64
	return result, nil
}

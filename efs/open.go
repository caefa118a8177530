// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package efs

import (
	"github.com/efscore/efs/errors"
	"github.com/efscore/efs/fdtable"
	"github.com/efscore/efs/inode"
	"github.com/efscore/efs/kvstore"
	"github.com/efscore/efs/pathwalk"
)

// Open-flag bits, re-exported from fdtable for facade callers.
const (
	ORdonly = fdtable.ORdonly
	OWronly = fdtable.OWronly
	ORdwr   = fdtable.ORdwr
	OCreat  = fdtable.OCreat
	OExcl   = fdtable.OExcl
	OTrunc  = fdtable.OTrunc
	OAppend = fdtable.OAppend
)

func accessMaskForFlags(flags int) pathwalk.Mask {
	switch {
	case flags&ORdwr != 0:
		return pathwalk.Read | pathwalk.Write
	case flags&OWronly != 0:
		return pathwalk.Write
	default:
		return pathwalk.Read
	}
}

// Open resolves path and returns a new file descriptor honouring
// O_CREAT|O_EXCL|O_TRUNC|O_APPEND|O_RDONLY|O_WRONLY|O_RDWR (spec
// §4.F). O_CREAT is atomic with the parent directory's lock: the new
// inode number is reserved before the transaction starts so a
// lock-set-expansion restart never reissues it mid-flight.
func (fs *FileSystem) Open(path string, flags int, mode uint32, caller Caller) (int, error) {
	var newIno uint64
	wantCreate := flags&OCreat != 0
	if wantCreate {
		newIno = fs.manager.AllocateIno()
	}
	usedNew := false
	var resultIno uint64

	keys := []uint64{rootIno}
	if wantCreate {
		keys = append(keys, newIno)
	}
	err := fs.store.Transact(keys, func(tx *kvstore.Txn) error {
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
			return errors.E(errors.NotFound, "efs.Open")
		}

		childIno, found, gerr := fs.manager.DirGetEntry(tx, parent, base)
		if gerr != nil {
			return gerr
		}

		if found {
			if wantCreate && flags&OExcl != 0 {
				return errors.E(errors.AlreadyExists, "efs.Open")
			}
			if perr := pathwalk.Check(parentRec, caller.Uid, caller.Gid, pathwalk.Exec); perr != nil {
				return perr
			}
			childRec, ok, gerr := fs.manager.Get(tx, childIno)
			if gerr != nil {
				return gerr
			}
			if !ok {
				return errors.E(errors.NotFound, "efs.Open")
			}
			if childRec.Kind == inode.Directory && flags&(OWronly|ORdwr) != 0 {
				return errors.E(errors.IsADirectory, "efs.Open")
			}
			if perr := pathwalk.Check(childRec, caller.Uid, caller.Gid, accessMaskForFlags(flags)); perr != nil {
				return perr
			}
			if flags&OTrunc != 0 && childRec.Kind == inode.File {
				if eerr := tx.EnsureLocked(childIno); eerr != nil {
					return eerr
				}
				if serr := fs.manager.FileSetBlocks(tx, childIno, nil, childRec.Blksize); serr != nil {
					return serr
				}
			}
			resultIno = childIno
			return nil
		}

		if !wantCreate {
			return errors.E(errors.NotFound, "efs.Open")
		}
		if perr := pathwalk.Check(parentRec, caller.Uid, caller.Gid, pathwalk.Write|pathwalk.Exec); perr != nil {
			return perr
		}
		params := inode.Params{Mode: applyUmask(mode, fs.umask), Uid: caller.Uid, Gid: caller.Gid}
		if cerr := fs.manager.FileCreate(tx, newIno, params, fs.blockSize, nil); cerr != nil {
			return cerr
		}
		if serr := fs.manager.DirSetEntry(tx, parent, base, newIno); serr != nil {
			return serr
		}
		resultIno = newIno
		usedNew = true
		return nil
	})
	if wantCreate && !usedNew {
		fs.manager.DeallocateIno(newIno)
	}
	if err != nil {
		return -1, err
	}
	return fs.fds.Create(resultIno, flags), nil
}

// CloseFD drops fd's table entry and, since that may have brought the
// underlying inode's refcount to zero, gives the inode manager a
// chance to collect it (spec scenario S3).
func (fs *FileSystem) CloseFD(fd int) error {
	f, ok := fs.fds.Get(fd)
	if !ok {
		return errors.E(errors.BadFileDescriptor, "efs.CloseFD")
	}
	ino := f.Ino
	fs.fds.Delete(fd)
	return fs.store.Transact([]uint64{ino}, func(tx *kvstore.Txn) error {
		return fs.manager.MaybeCollect(tx, ino)
	})
}

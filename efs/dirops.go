// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package efs

import (
	"github.com/efscore/efs/errors"
	"github.com/efscore/efs/inode"
	"github.com/efscore/efs/kvstore"
	"github.com/efscore/efs/pathwalk"
)

// Mkdir creates a new empty directory at path.
func (fs *FileSystem) Mkdir(path string, mode uint32, caller Caller) error {
	newIno := fs.manager.AllocateIno()
	used := false
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
			return errors.E(errors.NotFound, "efs.Mkdir")
		}
		if parentRec.Kind != inode.Directory {
			return errors.E(errors.NotADirectory, "efs.Mkdir")
		}
		if perr := pathwalk.Check(parentRec, caller.Uid, caller.Gid, pathwalk.Write|pathwalk.Exec); perr != nil {
			return perr
		}
		params := inode.Params{Mode: applyUmask(mode, fs.umask), Uid: caller.Uid, Gid: caller.Gid}
		if cerr := fs.manager.DirCreate(tx, newIno, params, &parent); cerr != nil {
			return cerr
		}
		if serr := fs.manager.DirSetEntry(tx, parent, base, newIno); serr != nil {
			return serr
		}
		used = true
		return nil
	})
	if !used {
		fs.manager.DeallocateIno(newIno)
	}
	return err
}

// Rmdir removes the empty directory at path (only "." and ".."
// entries permitted, spec §4.F).
func (fs *FileSystem) Rmdir(path string, caller Caller) error {
	return fs.store.Transact([]uint64{rootIno}, func(tx *kvstore.Txn) error {
		parent, base, werr := pathwalk.WalkParent(tx, fs.manager, rootIno, path)
		if werr != nil {
			return werr
		}
		if eerr := tx.EnsureLocked(parent); eerr != nil {
			return eerr
		}
		childIno, ok, gerr := fs.manager.DirGetEntry(tx, parent, base)
		if gerr != nil {
			return gerr
		}
		if !ok {
			return errors.E(errors.NotFound, "efs.Rmdir")
		}
		if eerr := tx.EnsureLocked(childIno); eerr != nil {
			return eerr
		}
		childRec, ok, gerr := fs.manager.Get(tx, childIno)
		if gerr != nil {
			return gerr
		}
		if !ok {
			return errors.E(errors.NotFound, "efs.Rmdir")
		}
		if childRec.Kind != inode.Directory {
			return errors.E(errors.NotADirectory, "efs.Rmdir")
		}
		entries, eerr := fs.manager.DirEntries(tx, childIno)
		if eerr != nil {
			return eerr
		}
		for _, e := range entries {
			if e.Name != "." && e.Name != ".." {
				return errors.E(errors.NotEmpty, "efs.Rmdir")
			}
		}
		parentRec, ok, gerr := fs.manager.Get(tx, parent)
		if gerr != nil {
			return gerr
		}
		if !ok {
			return errors.E(errors.NotFound, "efs.Rmdir")
		}
		if perr := pathwalk.Check(parentRec, caller.Uid, caller.Gid, pathwalk.Write|pathwalk.Exec); perr != nil {
			return perr
		}
		return fs.manager.DirRemoveEntry(tx, parent, base)
	})
}

// Readdir lists path's directory entries, including "." and "..".
func (fs *FileSystem) Readdir(path string, caller Caller) ([]inode.DirEntry, error) {
	var entries []inode.DirEntry
	err := fs.store.Transact([]uint64{rootIno}, func(tx *kvstore.Txn) error {
		ino, werr := pathwalk.Walk(tx, fs.manager, rootIno, path, true)
		if werr != nil {
			return werr
		}
		rec, ok, gerr := fs.manager.Get(tx, ino)
		if gerr != nil {
			return gerr
		}
		if !ok {
			return errors.E(errors.NotFound, "efs.Readdir")
		}
		if rec.Kind != inode.Directory {
			return errors.E(errors.NotADirectory, "efs.Readdir")
		}
		if perr := pathwalk.Check(rec, caller.Uid, caller.Gid, pathwalk.Read|pathwalk.Exec); perr != nil {
			return perr
		}
		var derr error
		entries, derr = fs.manager.DirEntries(tx, ino)
		return derr
	})
	return entries, err
}

// Symlink creates a new symlink at path pointing at target.
func (fs *FileSystem) Symlink(target, path string, caller Caller) error {
	newIno := fs.manager.AllocateIno()
	used := false
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
			return errors.E(errors.NotFound, "efs.Symlink")
		}
		if perr := pathwalk.Check(parentRec, caller.Uid, caller.Gid, pathwalk.Write|pathwalk.Exec); perr != nil {
			return perr
		}
		params := inode.Params{Mode: 0o777, Uid: caller.Uid, Gid: caller.Gid}
		if cerr := fs.manager.SymlinkCreate(tx, newIno, params, target); cerr != nil {
			return cerr
		}
		if serr := fs.manager.DirSetEntry(tx, parent, base, newIno); serr != nil {
			return serr
		}
		used = true
		return nil
	})
	if !used {
		fs.manager.DeallocateIno(newIno)
	}
	return err
}

// Readlink returns path's link target without following it.
func (fs *FileSystem) Readlink(path string, caller Caller) (string, error) {
	var target string
	err := fs.store.Transact([]uint64{rootIno}, func(tx *kvstore.Txn) error {
		parent, base, werr := pathwalk.WalkParent(tx, fs.manager, rootIno, path)
		if werr != nil {
			return werr
		}
		ino, ok, gerr := fs.manager.DirGetEntry(tx, parent, base)
		if gerr != nil {
			return gerr
		}
		if !ok {
			return errors.E(errors.NotFound, "efs.Readlink")
		}
		var rerr error
		target, rerr = fs.manager.ReadSymlink(tx, ino)
		return rerr
	})
	return target, err
}

// Link creates a new hard link at newPath pointing at oldPath's
// inode. Directories cannot be hard-linked.
func (fs *FileSystem) Link(oldPath, newPath string, caller Caller) error {
	return fs.store.Transact([]uint64{rootIno}, func(tx *kvstore.Txn) error {
		oldParent, oldBase, werr := pathwalk.WalkParent(tx, fs.manager, rootIno, oldPath)
		if werr != nil {
			return werr
		}
		targetIno, ok, gerr := fs.manager.DirGetEntry(tx, oldParent, oldBase)
		if gerr != nil {
			return gerr
		}
		if !ok {
			return errors.E(errors.NotFound, "efs.Link")
		}
		targetRec, ok, gerr := fs.manager.Get(tx, targetIno)
		if gerr != nil {
			return gerr
		}
		if !ok {
			return errors.E(errors.NotFound, "efs.Link")
		}
		if targetRec.Kind == inode.Directory {
			return errors.E(errors.PermissionDenied, "efs.Link: cannot hard-link a directory")
		}

		newParent, newBase, werr := pathwalk.WalkParent(tx, fs.manager, rootIno, newPath)
		if werr != nil {
			return werr
		}
		if eerr := tx.EnsureLocked(newParent); eerr != nil {
			return eerr
		}
		if eerr := tx.EnsureLocked(targetIno); eerr != nil {
			return eerr
		}
		newParentRec, ok, gerr := fs.manager.Get(tx, newParent)
		if gerr != nil {
			return gerr
		}
		if !ok {
			return errors.E(errors.NotFound, "efs.Link")
		}
		if perr := pathwalk.Check(newParentRec, caller.Uid, caller.Gid, pathwalk.Write|pathwalk.Exec); perr != nil {
			return perr
		}
		return fs.manager.DirSetEntry(tx, newParent, newBase, targetIno)
	})
}

// Unlink removes path's directory entry (files only; use Rmdir for
// directories).
func (fs *FileSystem) Unlink(path string, caller Caller) error {
	return fs.store.Transact([]uint64{rootIno}, func(tx *kvstore.Txn) error {
		parent, base, werr := pathwalk.WalkParent(tx, fs.manager, rootIno, path)
		if werr != nil {
			return werr
		}
		if eerr := tx.EnsureLocked(parent); eerr != nil {
			return eerr
		}
		childIno, ok, gerr := fs.manager.DirGetEntry(tx, parent, base)
		if gerr != nil {
			return gerr
		}
		if !ok {
			return errors.E(errors.NotFound, "efs.Unlink")
		}
		if eerr := tx.EnsureLocked(childIno); eerr != nil {
			return eerr
		}
		childRec, ok, gerr := fs.manager.Get(tx, childIno)
		if gerr != nil {
			return gerr
		}
		if !ok {
			return errors.E(errors.NotFound, "efs.Unlink")
		}
		if childRec.Kind == inode.Directory {
			return errors.E(errors.IsADirectory, "efs.Unlink")
		}
		parentRec, ok, gerr := fs.manager.Get(tx, parent)
		if gerr != nil {
			return gerr
		}
		if !ok {
			return errors.E(errors.NotFound, "efs.Unlink")
		}
		if perr := pathwalk.Check(parentRec, caller.Uid, caller.Gid, pathwalk.Write|pathwalk.Exec); perr != nil {
			return perr
		}
		return fs.manager.DirUnsetEntry(tx, parent, base)
	})
}

// Rename moves oldPath to newPath, locking both parent inodes in
// ascending order (Store.Transact's sort handles the ordering). If
// newPath already names something, it is unlinked under the same
// transaction (spec §4.F, scenario S6).
func (fs *FileSystem) Rename(oldPath, newPath string, caller Caller) error {
	return fs.store.Transact([]uint64{rootIno}, func(tx *kvstore.Txn) error {
		oldParent, oldBase, werr := pathwalk.WalkParent(tx, fs.manager, rootIno, oldPath)
		if werr != nil {
			return werr
		}
		if eerr := tx.EnsureLocked(oldParent); eerr != nil {
			return eerr
		}
		newParent, newBase, werr := pathwalk.WalkParent(tx, fs.manager, rootIno, newPath)
		if werr != nil {
			return werr
		}
		if eerr := tx.EnsureLocked(newParent); eerr != nil {
			return eerr
		}

		movedIno, ok, gerr := fs.manager.DirGetEntry(tx, oldParent, oldBase)
		if gerr != nil {
			return gerr
		}
		if !ok {
			return errors.E(errors.NotFound, "efs.Rename")
		}
		if eerr := tx.EnsureLocked(movedIno); eerr != nil {
			return eerr
		}

		oldParentRec, ok, gerr := fs.manager.Get(tx, oldParent)
		if gerr != nil {
			return gerr
		}
		if !ok {
			return errors.E(errors.NotFound, "efs.Rename")
		}
		if perr := pathwalk.Check(oldParentRec, caller.Uid, caller.Gid, pathwalk.Write|pathwalk.Exec); perr != nil {
			return perr
		}
		newParentRec, ok, gerr := fs.manager.Get(tx, newParent)
		if gerr != nil {
			return gerr
		}
		if !ok {
			return errors.E(errors.NotFound, "efs.Rename")
		}
		if perr := pathwalk.Check(newParentRec, caller.Uid, caller.Gid, pathwalk.Write|pathwalk.Exec); perr != nil {
			return perr
		}

		existingIno, existed, gerr := fs.manager.DirGetEntry(tx, newParent, newBase)
		if gerr != nil {
			return gerr
		}
		if existed && existingIno == movedIno {
			// oldpath and newpath already name the same inode: a no-op.
			return nil
		}
		if existed {
			if eerr := tx.EnsureLocked(existingIno); eerr != nil {
				return eerr
			}
			existingRec, ok, gerr := fs.manager.Get(tx, existingIno)
			if gerr != nil {
				return gerr
			}
			if !ok {
				return errors.E(errors.NotFound, "efs.Rename")
			}
			movedRec, ok, gerr := fs.manager.Get(tx, movedIno)
			if gerr != nil {
				return gerr
			}
			if !ok {
				return errors.E(errors.NotFound, "efs.Rename")
			}
			if existingRec.Kind == inode.Directory && movedRec.Kind != inode.Directory {
				return errors.E(errors.IsADirectory, "efs.Rename")
			}
			if existingRec.Kind != inode.Directory && movedRec.Kind == inode.Directory {
				return errors.E(errors.NotADirectory, "efs.Rename")
			}
			if existingRec.Kind == inode.Directory {
				entries, eerr := fs.manager.DirEntries(tx, existingIno)
				if eerr != nil {
					return eerr
				}
				for _, e := range entries {
					if e.Name != "." && e.Name != ".." {
						return errors.E(errors.NotEmpty, "efs.Rename")
					}
				}
			}
			if uerr := fs.manager.DirRemoveEntry(tx, newParent, newBase); uerr != nil {
				return uerr
			}
		}

		movedRec, ok, gerr := fs.manager.Get(tx, movedIno)
		if gerr != nil {
			return gerr
		}
		if !ok {
			return errors.E(errors.NotFound, "efs.Rename")
		}

		if serr := fs.manager.DirSetEntry(tx, newParent, newBase, movedIno); serr != nil {
			return serr
		}
		if uerr := fs.manager.DirUnsetEntry(tx, oldParent, oldBase); uerr != nil {
			return uerr
		}
		if movedRec.Kind == inode.Directory && newParent != oldParent {
			return fs.manager.DirReparent(tx, movedIno, newParent)
		}
		return nil
	})
}

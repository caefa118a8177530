// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package inode

import (
	"time"

	"github.com/efscore/efs/errors"
	"github.com/efscore/efs/kvstore"
)

// DirEntry is one (name, child inode) pair returned by DirEntries.
type DirEntry struct {
	Name string
	Ino  uint64
}

// DirGetEntry returns the child inode named name within dirIno, or
// ok=false if no such entry exists.
func (m *Manager) DirGetEntry(tx *kvstore.Txn, dirIno uint64, name string) (ino uint64, ok bool, err error) {
	v, ok, err := tx.Get(direntKey(dirIno, name))
	if err != nil || !ok {
		return 0, false, err
	}
	return decodeIno(v), true, nil
}

// DirSetEntry adds name -> childIno to dirIno, failing with
// AlreadyExists if the name is already taken. It increments
// childIno's nlink (and, if childIno is itself a directory, dirIno's
// nlink too, since the new child's ".." counts against the parent).
func (m *Manager) DirSetEntry(tx *kvstore.Txn, dirIno uint64, name string, childIno uint64) error {
	if _, ok, err := m.DirGetEntry(tx, dirIno, name); err != nil {
		return err
	} else if ok {
		return errors.E(errors.AlreadyExists, "inode.DirSetEntry: "+name)
	}
	tx.Put(direntKey(dirIno, name), encodeIno(childIno))

	child, ok, err := m.Get(tx, childIno)
	if err != nil {
		return err
	}
	if !ok {
		return errors.E(errors.NotFound, "inode.DirSetEntry: child")
	}
	child.Nlink++
	child.Ctime = time.Now()
	m.put(tx, childIno, child)

	if child.Kind == Directory {
		dir, ok, err := m.Get(tx, dirIno)
		if err != nil {
			return err
		}
		if !ok {
			return errors.E(errors.NotFound, "inode.DirSetEntry: parent")
		}
		dir.Nlink++
		dir.Mtime = time.Now()
		m.put(tx, dirIno, dir)
	}
	return nil
}

// DirUnsetEntry removes name from dirIno, releasing only the link
// that entry itself represents: one for a file or symlink, or the
// parent-listing half of a directory's two links (its own "."
// survives). Use this when the child is being relinked elsewhere in
// the same transaction, e.g. Rename's removal of a moved entry's old
// location after DirSetEntry has already added the new one, so the
// child's nlink never drops to zero on the way. Use DirRemoveEntry
// instead when the child is being
// permanently removed.
func (m *Manager) DirUnsetEntry(tx *kvstore.Txn, dirIno uint64, name string) error {
	return m.unsetEntry(tx, dirIno, name, false)
}

// DirRemoveEntry removes name from dirIno and permanently destroys
// the child if it was a directory, releasing both of its links (its
// own "." and its entry in dirIno) in the same step instead of
// stranding the "." half. Callers must have already verified an empty
// directory (Rmdir, Rename's overwrite-of-an-empty-directory case);
// DirRemoveEntry does not re-check emptiness.
func (m *Manager) DirRemoveEntry(tx *kvstore.Txn, dirIno uint64, name string) error {
	return m.unsetEntry(tx, dirIno, name, true)
}

// unsetEntry implements DirUnsetEntry and DirRemoveEntry. If this
// brings the child's nlink to zero and no fd holds it open, it is
// destroyed within tx; otherwise it is enqueued for GC and destroyed
// by a later transaction that locks it once its open-FD refcount also
// reaches zero (see MaybeCollect).
func (m *Manager) unsetEntry(tx *kvstore.Txn, dirIno uint64, name string, final bool) error {
	childIno, ok, err := m.DirGetEntry(tx, dirIno, name)
	if err != nil {
		return err
	}
	if !ok {
		return errors.E(errors.NotFound, "inode.unsetEntry: "+name)
	}
	tx.Del(direntKey(dirIno, name))

	child, ok, err := m.Get(tx, childIno)
	if err != nil {
		return err
	}
	if !ok {
		return errors.E(errors.NotFound, "inode.unsetEntry: child")
	}
	dec := uint32(1)
	if final && child.Kind == Directory {
		dec = 2
	}
	if child.Nlink < dec {
		dec = child.Nlink
	}
	child.Nlink -= dec
	child.Ctime = time.Now()
	m.put(tx, childIno, child)
	if child.Nlink == 0 {
		if m.refCount(childIno) > 0 {
			m.enqueueGC(tx, childIno)
		} else {
			if err := m.destroy(tx, childIno, child); err != nil {
				return err
			}
		}
	}

	if child.Kind == Directory {
		dir, ok, err := m.Get(tx, dirIno)
		if err != nil {
			return err
		}
		if ok && dir.Nlink > 0 {
			dir.Nlink--
			dir.Mtime = time.Now()
			m.put(tx, dirIno, dir)
		}
	}
	return nil
}

// DirReparent rewrites ino's ".." entry to point at newParentIno. Used
// by Rename when a directory moves to a different parent: the move's
// nlink bookkeeping happens via the ordinary DirUnsetEntry/DirSetEntry
// pair on the old and new parent's own entries, but neither of those
// touches ino's own dirent table, so ino's ".." would otherwise keep
// pointing at its old parent.
func (m *Manager) DirReparent(tx *kvstore.Txn, ino, newParentIno uint64) error {
	tx.Put(direntKey(ino, ".."), encodeIno(newParentIno))
	return nil
}

// DirEntries returns every entry of dirIno, including "." and "..",
// in name order.
func (m *Manager) DirEntries(tx *kvstore.Txn, dirIno uint64) ([]DirEntry, error) {
	prefix := direntPrefix(dirIno)
	it, err := tx.Range(prefix, nil, nil)
	if err != nil {
		return nil, err
	}
	defer it.Close()
	var out []DirEntry
	for it.Next() {
		name := string(it.Key()[len(prefix):])
		out = append(out, DirEntry{Name: name, Ino: decodeIno(it.Value())})
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

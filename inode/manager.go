// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package inode implements the inode manager (spec §4.C): the
// allocator, typed inode records, directory entries, file blocks, and
// the lazy garbage-collection policy that destroys an inode once both
// its persisted nlink and in-memory open-FD refcount reach zero.
package inode

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/efscore/efs/errors"
	"github.com/efscore/efs/kvstore"
)

// freelistCap bounds how many deallocated inode numbers Manager will
// hold for reuse; beyond this, further deallocations are simply
// dropped rather than grown without bound.
const freelistCap = 256

// Manager is the inode allocator and typed-record CRUD surface. It
// holds two pieces of in-memory-only state: the monotonic allocator
// high-water mark (mirrored from the persisted M/next-ino watermark)
// and the open-FD reference counts that, together with persisted
// nlink, decide collectibility. Everything else is read and written
// through a *kvstore.Txn supplied by the caller (normally the efs
// facade, inside a Store.Transact body).
type Manager struct {
	store *kvstore.Store

	mu       sync.Mutex
	nextIno  uint64
	freelist []uint64
	refs     map[uint64]int

	devices DeviceTable
}

// Open loads the allocator's persisted watermark from store and
// returns a ready Manager. devices may be nil.
func Open(store *kvstore.Store, devices DeviceTable) (*Manager, error) {
	m := &Manager{store: store, refs: make(map[uint64]int), devices: devices}
	v, ok, err := store.Get(nextInoKey)
	if err != nil {
		return nil, err
	}
	if ok {
		m.nextIno = binary.BigEndian.Uint64(v)
	} else {
		m.nextIno = 1 // ino 0 is reserved, never allocated
	}
	return m, nil
}

// AllocateIno reserves the next inode number. It is a pure in-memory
// operation: nothing is persisted until a create operation commits a
// transaction that writes the inode's record. A number handed out but
// never committed is simply skipped: monotonicity matters, density
// does not, unless it was explicitly returned via DeallocateIno.
func (m *Manager) AllocateIno() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n := len(m.freelist); n > 0 {
		ino := m.freelist[n-1]
		m.freelist = m.freelist[:n-1]
		return ino
	}
	ino := m.nextIno
	m.nextIno++
	return ino
}

// DeallocateIno returns ino to a small free list so that aborted
// allocations don't run the watermark up forever. Beyond freelistCap
// entries, further deallocations are dropped on the floor.
func (m *Manager) DeallocateIno(ino uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.freelist) >= freelistCap {
		return
	}
	m.freelist = append(m.freelist, ino)
}

// bumpWatermark persists the allocator watermark within tx if ino's
// successor exceeds what's already durable, so a restart never
// reissues an inode number that was actually committed.
func (m *Manager) bumpWatermark(tx *kvstore.Txn, ino uint64) {
	if v, ok, err := tx.Get(nextInoKey); err == nil && ok && binary.BigEndian.Uint64(v) > ino {
		return
	}
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], ino+1)
	tx.Put(nextInoKey, b[:])
}

// Get returns ino's record, or ok=false if it has no persisted
// record (never created, or already destroyed).
func (m *Manager) Get(tx *kvstore.Txn, ino uint64) (*Record, bool, error) {
	v, ok, err := tx.Get(inodeKey(ino))
	if err != nil || !ok {
		return nil, false, err
	}
	r, err := decodeRecord(v)
	if err != nil {
		return nil, false, err
	}
	return r, true, nil
}

func (m *Manager) put(tx *kvstore.Txn, ino uint64, r *Record) {
	tx.Put(inodeKey(ino), encodeRecord(r))
}

// Ref increments ino's in-memory open-FD reference count.
func (m *Manager) Ref(ino uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refs[ino]++
}

// Unref decrements ino's in-memory open-FD reference count. It never
// destroys the inode inline; destruction happens lazily, the next
// time a transaction locks ino (see MaybeCollect).
func (m *Manager) Unref(ino uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.refs[ino] <= 1 {
		delete(m.refs, ino)
		return
	}
	m.refs[ino]--
}

func (m *Manager) refCount(ino uint64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refs[ino]
}

// MaybeCollect checks whether ino is collectible (nlink == 0 and
// open-FD refcount == 0) and if so, destroys it: deletes its record,
// every B/<ino>/* block (or D/<ino>/* dirent for a directory), L/<ino>,
// and G/<ino> in one atomic batch within tx. Callers that lock ino via
// Store.Transact must call this before relying on ino's record being
// authoritative, since a prior transaction may have unlinked it down
// to zero without an FD open to collect it immediately.
func (m *Manager) MaybeCollect(tx *kvstore.Txn, ino uint64) error {
	r, ok, err := m.Get(tx, ino)
	if err != nil || !ok {
		return err
	}
	if r.Nlink > 0 || m.refCount(ino) > 0 {
		return nil
	}
	return m.destroy(tx, ino, r)
}

func (m *Manager) destroy(tx *kvstore.Txn, ino uint64, r *Record) error {
	if r.Kind == File {
		it, err := tx.Range(blockPrefix(ino), nil, nil)
		if err != nil {
			return err
		}
		defer it.Close()
		var keys [][]byte
		for it.Next() {
			k := make([]byte, len(it.Key()))
			copy(k, it.Key())
			keys = append(keys, k)
		}
		if err := it.Err(); err != nil {
			return err
		}
		for _, k := range keys {
			tx.Del(k)
		}
	}
	if r.Kind == Symlink {
		tx.Del(symlinkKey(ino))
	}
	if r.Kind == Directory {
		it, err := tx.Range(direntPrefix(ino), nil, nil)
		if err != nil {
			return err
		}
		defer it.Close()
		var keys [][]byte
		for it.Next() {
			k := make([]byte, len(it.Key()))
			copy(k, it.Key())
			keys = append(keys, k)
		}
		if err := it.Err(); err != nil {
			return err
		}
		for _, k := range keys {
			tx.Del(k)
		}
	}
	tx.Del(gcKey(ino))
	tx.Del(inodeKey(ino))
	tx.QueueSuccess(func() { m.DeallocateIno(ino) })
	return nil
}

// enqueueGC marks ino as unlinked-but-open: present iff nlink is zero
// while the in-memory refcount is still positive.
func (m *Manager) enqueueGC(tx *kvstore.Txn, ino uint64) {
	tx.Put(gcKey(ino), []byte{1})
}

// StatGet is an alias of Get, named to match the spec's stat
// vocabulary.
func (m *Manager) StatGet(tx *kvstore.Txn, ino uint64) (*Record, bool, error) {
	return m.Get(tx, ino)
}

// Prop names a settable inode property for StatSetProp.
type Prop int

const (
	PropMode Prop = iota
	PropUid
	PropGid
	PropAtime
	PropMtime
	PropCtime
)

// StatSetProp sets a single stat property on ino. Setting Mode, Uid,
// or Gid (value a uint32) also bumps ctime to now, matching POSIX
// metadata-change semantics; setting Atime, Mtime, or Ctime directly
// (value a time.Time) does not touch any other field.
func (m *Manager) StatSetProp(tx *kvstore.Txn, ino uint64, prop Prop, value interface{}) error {
	r, ok, err := m.Get(tx, ino)
	if err != nil {
		return err
	}
	if !ok {
		return errors.E(errors.NotFound, "inode.StatSetProp")
	}
	switch prop {
	case PropMode:
		r.Mode = value.(uint32)
		r.Ctime = time.Now()
	case PropUid:
		r.Uid = value.(uint32)
		r.Ctime = time.Now()
	case PropGid:
		r.Gid = value.(uint32)
		r.Ctime = time.Now()
	case PropAtime:
		r.Atime = value.(time.Time)
	case PropMtime:
		r.Mtime = value.(time.Time)
	case PropCtime:
		r.Ctime = value.(time.Time)
	default:
		return errors.E(errors.InvalidArgument, "inode.StatSetProp: unknown prop")
	}
	m.put(tx, ino, r)
	return nil
}

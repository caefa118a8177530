// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package fdtable implements the in-memory file-descriptor table
// (spec §4.D): index -> (inode, position, flags), with POSIX dup
// semantics (smallest unused non-negative index) and position-aware
// read/write delegating block I/O to the inode manager.
package fdtable

import (
	"sort"
	"sync"

	"github.com/efscore/efs/errors"
	"github.com/efscore/efs/inode"
	"github.com/efscore/efs/kvstore"
)

// Open-flag bits, matching the facade's POSIX open(2) vocabulary
// (spec §4.F). fdtable only interprets OAppend; the rest are the
// facade's concern at open/create time.
const (
	ORdonly = 0
	OWronly = 1 << iota
	ORdwr
	OCreat
	OExcl
	OTrunc
	OAppend
)

// FD is one open file descriptor's in-memory state.
type FD struct {
	Ino   uint64
	Pos   uint64
	Flags int
}

// Table is a process-wide fd table. The zero value is not usable;
// construct with New.
type Table struct {
	mu      sync.Mutex
	entries map[int]*FD
	manager *inode.Manager
}

// New returns an empty Table backed by manager for ref-counting and
// block I/O.
func New(manager *inode.Manager) *Table {
	return &Table{entries: make(map[int]*FD), manager: manager}
}

// smallestFreeIndex returns the smallest non-negative integer not
// currently a key of t.entries. Callers must hold t.mu.
func (t *Table) smallestFreeIndex() int {
	used := make([]int, 0, len(t.entries))
	for i := range t.entries {
		used = append(used, i)
	}
	sort.Ints(used)
	next := 0
	for _, i := range used {
		if i != next {
			break
		}
		next++
	}
	return next
}

// Create allocates a new fd for ino at position 0, bumping ino's
// in-memory open-FD refcount via the inode manager, and returns its
// index.
func (t *Table) Create(ino uint64, flags int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	index := t.smallestFreeIndex()
	t.entries[index] = &FD{Ino: ino, Flags: flags}
	t.manager.Ref(ino)
	return index
}

// Get returns the fd at index, or ok=false if unallocated.
func (t *Table) Get(index int) (fd *FD, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fd, ok = t.entries[index]
	return fd, ok
}

// Dup creates a new entry sharing index's inode (independent Pos and
// Flags, set to the source's current values), bumping the inode's
// refcount again. It fails with BadFileDescriptor if index is not
// open.
func (t *Table) Dup(index int) (newIndex int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	src, ok := t.entries[index]
	if !ok {
		return 0, errors.E(errors.BadFileDescriptor, "fdtable.Dup")
	}
	newIndex = t.smallestFreeIndex()
	t.entries[newIndex] = &FD{Ino: src.Ino, Pos: src.Pos, Flags: src.Flags}
	t.manager.Ref(src.Ino)
	return newIndex, nil
}

// Delete drops index's entry and releases its inode reference. Any
// subsequent Read/Write/Get on index fails with BadFileDescriptor.
// Deleting an index that is not open is a no-op.
func (t *Table) Delete(index int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fd, ok := t.entries[index]
	if !ok {
		return
	}
	delete(t.entries, index)
	t.manager.Unref(fd.Ino)
}

// Read reads into buf from index's inode. If position is nil, it
// reads from and advances the fd's own cursor; if non-nil, it reads
// from *position without moving the cursor. Reads past the file's
// size return fewer bytes (possibly zero), never an error.
func (t *Table) Read(tx *kvstore.Txn, index int, buf []byte, position *uint64) (n int, err error) {
	fd, ok := t.Get(index)
	if !ok {
		return 0, errors.E(errors.BadFileDescriptor, "fdtable.Read")
	}
	pos := fd.Pos
	if position != nil {
		pos = *position
	}

	r, ok, err := t.manager.Get(tx, fd.Ino)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errors.E(errors.NotFound, "fdtable.Read: inode gone")
	}

	if r.Kind == inode.CharacterDev {
		dev, derr := t.manager.DeviceAt(r)
		if derr != nil {
			return 0, derr
		}
		n, err = dev.Read(buf, int64(pos))
		if err == nil && position == nil {
			t.advance(index, uint64(n))
		}
		return n, err
	}

	if pos >= r.Size || len(buf) == 0 {
		return 0, nil
	}
	avail := r.Size - pos
	want := uint64(len(buf))
	if want > avail {
		want = avail
	}
	bs := uint64(r.Blksize)
	startBlock := pos / bs
	endBlock := (pos+want-1)/bs + 1
	blocks, err := t.manager.FileGetBlocks(tx, fd.Ino, startBlock, endBlock)
	if err != nil {
		return 0, err
	}
	n = 0
	for _, b := range blocks {
		blockStart := b.Index * bs
		blockEnd := blockStart + uint64(len(b.Data))
		readStart := pos + uint64(n)
		if readStart >= blockEnd || uint64(n) >= want {
			continue
		}
		offsetInBlock := uint64(0)
		if readStart > blockStart {
			offsetInBlock = readStart - blockStart
		}
		avail := uint64(len(b.Data)) - offsetInBlock
		remaining := want - uint64(n)
		if avail > remaining {
			avail = remaining
		}
		copy(buf[n:], b.Data[offsetInBlock:offsetInBlock+avail])
		n += int(avail)
	}
	if position == nil {
		t.advance(index, uint64(n))
	}
	return n, nil
}

// Write writes buf into index's inode. If position is nil, it writes
// at (and advances) the fd's own cursor, unless the fd was opened
// with OAppend, in which case every write lands at the current end
// of file regardless of the cursor. Writes past the current size
// extend the file, zero-filling the gap.
func (t *Table) Write(tx *kvstore.Txn, index int, buf []byte, position *uint64) (n int, err error) {
	fd, ok := t.Get(index)
	if !ok {
		return 0, errors.E(errors.BadFileDescriptor, "fdtable.Write")
	}

	r, ok, err := t.manager.Get(tx, fd.Ino)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errors.E(errors.NotFound, "fdtable.Write: inode gone")
	}

	if r.Kind == inode.CharacterDev {
		dev, derr := t.manager.DeviceAt(r)
		if derr != nil {
			return 0, derr
		}
		pos := fd.Pos
		if position != nil {
			pos = *position
		}
		n, err = dev.Write(buf, int64(pos))
		if err == nil && position == nil {
			t.advance(index, uint64(n))
		}
		return n, err
	}

	pos := fd.Pos
	if position != nil {
		pos = *position
	}
	if fd.Flags&OAppend != 0 {
		pos = r.Size
	}
	if err := t.manager.FileWriteBlocks(tx, fd.Ino, buf, r.Blksize, pos); err != nil {
		return 0, err
	}
	if position == nil {
		t.advance(index, uint64(len(buf)))
	}
	return len(buf), nil
}

func (t *Table) advance(index int, n uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if fd, ok := t.entries[index]; ok {
		fd.Pos += n
	}
}

// Seek sets index's cursor directly (used by the facade's lseek-style
// operations), failing with BadFileDescriptor if index is not open.
func (t *Table) Seek(index int, pos uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	fd, ok := t.entries[index]
	if !ok {
		return errors.E(errors.BadFileDescriptor, "fdtable.Seek")
	}
	fd.Pos = pos
	return nil
}

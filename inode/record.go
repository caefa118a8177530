// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package inode

import (
	"encoding/binary"
	"time"

	"github.com/efscore/efs/errors"
)

// Kind discriminates the four inode types the core supports (spec
// §3). There is no runtime type reflection: every operation that
// depends on Kind switches on this tag explicitly.
type Kind uint8

const (
	// File is a regular, block-addressed byte sequence.
	File Kind = iota
	// Directory holds named entries, including the synthetic . and ..
	Directory
	// Symlink stores a single UTF-8 target path under L/<ino>.
	Symlink
	// CharacterDev delegates read/write to a DeviceTable entry keyed by
	// Rdev and never owns blocks.
	CharacterDev
)

func (k Kind) String() string {
	switch k {
	case File:
		return "file"
	case Directory:
		return "directory"
	case Symlink:
		return "symlink"
	case CharacterDev:
		return "chardev"
	default:
		return "unknown"
	}
}

// Record is the persisted inode metadata blob stored at I/<ino>.
type Record struct {
	Kind      Kind
	Mode      uint32
	Uid       uint32
	Gid       uint32
	Atime     time.Time
	Mtime     time.Time
	Ctime     time.Time
	Birthtime time.Time
	Nlink     uint32
	Size      uint64
	Blksize   uint32
	Rdev      uint64
}

// recordSize is the fixed on-disk width of an encoded Record.
const recordSize = 1 + 4 + 4 + 4 + 8 + 8 + 8 + 8 + 4 + 8 + 4 + 8

func encodeRecord(r *Record) []byte {
	b := make([]byte, recordSize)
	i := 0
	b[i] = byte(r.Kind)
	i++
	binary.BigEndian.PutUint32(b[i:], r.Mode)
	i += 4
	binary.BigEndian.PutUint32(b[i:], r.Uid)
	i += 4
	binary.BigEndian.PutUint32(b[i:], r.Gid)
	i += 4
	binary.BigEndian.PutUint64(b[i:], uint64(r.Atime.UnixNano()))
	i += 8
	binary.BigEndian.PutUint64(b[i:], uint64(r.Mtime.UnixNano()))
	i += 8
	binary.BigEndian.PutUint64(b[i:], uint64(r.Ctime.UnixNano()))
	i += 8
	binary.BigEndian.PutUint64(b[i:], uint64(r.Birthtime.UnixNano()))
	i += 8
	binary.BigEndian.PutUint32(b[i:], r.Nlink)
	i += 4
	binary.BigEndian.PutUint64(b[i:], r.Size)
	i += 8
	binary.BigEndian.PutUint32(b[i:], r.Blksize)
	i += 4
	binary.BigEndian.PutUint64(b[i:], r.Rdev)
	return b
}

func decodeRecord(b []byte) (*Record, error) {
	if len(b) != recordSize {
		return nil, errors.E(errors.Corruption, "inode: malformed inode record")
	}
	r := &Record{}
	i := 0
	r.Kind = Kind(b[i])
	i++
	r.Mode = binary.BigEndian.Uint32(b[i:])
	i += 4
	r.Uid = binary.BigEndian.Uint32(b[i:])
	i += 4
	r.Gid = binary.BigEndian.Uint32(b[i:])
	i += 4
	r.Atime = time.Unix(0, int64(binary.BigEndian.Uint64(b[i:])))
	i += 8
	r.Mtime = time.Unix(0, int64(binary.BigEndian.Uint64(b[i:])))
	i += 8
	r.Ctime = time.Unix(0, int64(binary.BigEndian.Uint64(b[i:])))
	i += 8
	r.Birthtime = time.Unix(0, int64(binary.BigEndian.Uint64(b[i:])))
	i += 8
	r.Nlink = binary.BigEndian.Uint32(b[i:])
	i += 4
	r.Size = binary.BigEndian.Uint64(b[i:])
	i += 8
	r.Blksize = binary.BigEndian.Uint32(b[i:])
	i += 4
	r.Rdev = binary.BigEndian.Uint64(b[i:])
	return r, nil
}

// Params supplies the caller-controlled fields of a newly created
// inode; timestamps and Nlink are filled in by the create operation.
type Params struct {
	Mode uint32
	Uid  uint32
	Gid  uint32
	Rdev uint64 // CharacterDev only
}

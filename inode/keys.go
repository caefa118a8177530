// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package inode

import "encoding/binary"

// Sublevel tag bytes (spec §6 on-disk layout), the first byte of
// every key this package writes.
const (
	tagInode   byte = 0x01
	tagDirent  byte = 0x02
	tagBlock   byte = 0x03
	tagSymlink byte = 0x04
	tagGC      byte = 0x05
	tagAlloc   byte = 0x06

	sep byte = 0x2f // '/'
)

// nextInoKey is the fixed key M/next-ino holding the allocator's
// persisted high-water mark.
var nextInoKey = append([]byte{tagAlloc, sep}, "next-ino"...)

// encodeIno encodes ino as the 8-byte big-endian form the key layout
// requires.
func encodeIno(ino uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], ino)
	return b[:]
}

func decodeIno(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

// inodeKey returns I/<ino>.
func inodeKey(ino uint64) []byte {
	k := make([]byte, 0, 10)
	k = append(k, tagInode, sep)
	k = append(k, encodeIno(ino)...)
	return k
}

// direntKey returns D/<parent>/<name>.
func direntKey(parent uint64, name string) []byte {
	k := make([]byte, 0, 2+8+1+len(name))
	k = append(k, tagDirent, sep)
	k = append(k, encodeIno(parent)...)
	k = append(k, sep)
	k = append(k, name...)
	return k
}

// direntPrefix returns D/<parent>/, the prefix every entry of parent
// shares.
func direntPrefix(parent uint64) []byte {
	k := make([]byte, 0, 2+8+1)
	k = append(k, tagDirent, sep)
	k = append(k, encodeIno(parent)...)
	k = append(k, sep)
	return k
}

// symlinkKey returns L/<ino>.
func symlinkKey(ino uint64) []byte {
	k := make([]byte, 0, 10)
	k = append(k, tagSymlink, sep)
	k = append(k, encodeIno(ino)...)
	return k
}

// gcKey returns G/<ino>.
func gcKey(ino uint64) []byte {
	k := make([]byte, 0, 10)
	k = append(k, tagGC, sep)
	k = append(k, encodeIno(ino)...)
	return k
}

// blockPrefix returns B/<ino>/, the prefix every block of ino shares.
func blockPrefix(ino uint64) []byte {
	k := make([]byte, 0, 2+8+1)
	k = append(k, tagBlock, sep)
	k = append(k, encodeIno(ino)...)
	k = append(k, sep)
	return k
}

// blockKey returns B/<ino>/<ordered-index>.
func blockKey(ino uint64, index uint64) []byte {
	k := blockPrefix(ino)
	return append(k, encodeOrderedUint64(index)...)
}

// blockIndexFromKey extracts the block index from a full B/<ino>/<idx>
// key, given the ino's prefix length.
func blockIndexFromKey(key []byte, ino uint64) uint64 {
	p := blockPrefix(ino)
	return decodeOrderedUint64(key[len(p):])
}

// encodeOrderedUint64 encodes v as a length-prefixed big-endian
// minimal representation: one length byte followed by that many
// value bytes with no leading zero. Lexicographic comparison of two
// such encodings matches numeric comparison of the values, because a
// numerically larger value either needs a longer (and therefore
// lexicographically greater) length byte, or — at equal length — its
// big-endian payload already compares correctly.
func encodeOrderedUint64(v uint64) []byte {
	var payload [8]byte
	binary.BigEndian.PutUint64(payload[:], v)
	n := 8
	for n > 1 && payload[8-n] == 0 {
		n--
	}
	out := make([]byte, 0, n+1)
	out = append(out, byte(n))
	out = append(out, payload[8-n:]...)
	return out
}

func decodeOrderedUint64(b []byte) uint64 {
	n := int(b[0])
	var payload [8]byte
	copy(payload[8-n:], b[1:1+n])
	return binary.BigEndian.Uint64(payload[:])
}

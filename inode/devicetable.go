// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package inode

import "github.com/efscore/efs/errors"

// Device is a character device registered in a DeviceTable, keyed by
// rdev. The inode manager stores Rdev on a CharacterDev inode and
// never attempts block storage on it; all I/O is delegated here.
type Device interface {
	Read(buf []byte, position int64) (n int, err error)
	Write(buf []byte, position int64) (n int, err error)
}

// DeviceTable resolves an rdev to the Device that handles its I/O.
// Registered externally by the caller assembling an efs.FileSystem;
// the inode manager only ever looks entries up, it never registers
// one itself.
type DeviceTable interface {
	Lookup(rdev uint64) (Device, bool)
}

// staticDeviceTable is a DeviceTable backed by a fixed map, good
// enough for the built-in null/zero devices and for tests.
type staticDeviceTable map[uint64]Device

// NewDeviceTable returns a DeviceTable pre-populated with /dev/null-
// and /dev/zero-equivalent devices at rdev 1 and 2 respectively. The
// caller may add further devices by constructing its own DeviceTable
// implementation.
func NewDeviceTable() DeviceTable {
	return staticDeviceTable{
		RdevNull: nullDevice{},
		RdevZero: zeroDevice{},
	}
}

func (t staticDeviceTable) Lookup(rdev uint64) (Device, bool) {
	d, ok := t[rdev]
	return d, ok
}

// Well-known rdev values for the built-in devices.
const (
	RdevNull uint64 = 1
	RdevZero uint64 = 2
)

type nullDevice struct{}

func (nullDevice) Read(buf []byte, position int64) (int, error) { return 0, nil }

func (nullDevice) Write(buf []byte, position int64) (int, error) { return len(buf), nil }

type zeroDevice struct{}

func (zeroDevice) Read(buf []byte, position int64) (int, error) {
	for i := range buf {
		buf[i] = 0
	}
	return len(buf), nil
}

func (zeroDevice) Write(buf []byte, position int64) (int, error) { return len(buf), nil }

// DeviceAt resolves ino's rdev against devices, failing with
// InvalidArgument if ino is not a CharacterDev or devices is nil.
func (m *Manager) DeviceAt(r *Record) (Device, error) {
	if r.Kind != CharacterDev {
		return nil, errors.E(errors.InvalidArgument, "inode: not a character device")
	}
	if m.devices == nil {
		return nil, errors.E(errors.InvalidArgument, "inode: no device table registered")
	}
	d, ok := m.devices.Lookup(r.Rdev)
	if !ok {
		return nil, errors.E(errors.NotFound, "inode: no device registered for rdev")
	}
	return d, nil
}

// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

//go:build !windows
// +build !windows

package flock

import (
	"context"
	"sync"
	"syscall"

	"github.com/efscore/efs/errors"
)

type T struct {
	name string
	fd   int
	mu   sync.Mutex
}

// NewLockPlatformSpecific creates an object that locks the given path.
func NewLockPlatformSpecific(path string) FileLock {
	return &T{name: path}
}

// Lock locks the file. Iff Lock() returns nil, the caller must call Unlock()
// later. Unlike the upstream version this is based on, Lock does not spin
// waiting for a contended lock to free up: efsmount wants to refuse a second
// mount of the same database immediately rather than hang.
func (f *T) Lock(ctx context.Context) (err error) {
	reqCh := make(chan func() error, 2)
	doneCh := make(chan error, 1)
	go func() {
		var err error
		reported := false
		for req := range reqCh {
			if err == nil {
				err = req()
			}
			if !reported {
				doneCh <- err
				reported = true
			}
		}
	}()
	reqCh <- f.doLock
	select {
	case <-ctx.Done():
		reqCh <- f.doUnlock
		err = ctx.Err()
	case err = <-doneCh:
	}
	close(reqCh)
	return err
}

// Unlock unlocks the file.
func (f *T) Unlock() error {
	return f.doUnlock()
}

func (f *T) doLock() error {
	f.mu.Lock() // Serialize the lock within one process.

	var err error
	f.fd, err = syscall.Open(f.name, syscall.O_CREAT|syscall.O_RDWR, 0o600)
	if err != nil {
		f.mu.Unlock()
		return errors.E(errors.Other, "flock: open "+f.name, err)
	}
	err = syscall.Flock(f.fd, syscall.LOCK_EX|syscall.LOCK_NB)
	if err == syscall.EWOULDBLOCK || err == syscall.EAGAIN {
		syscall.Close(f.fd)
		f.mu.Unlock()
		return errors.E(errors.Other, "flock: "+f.name+" is already locked by another process")
	}
	if err != nil {
		f.mu.Unlock()
		return errors.E(errors.Other, "flock: lock "+f.name, err)
	}
	return nil
}

func (f *T) doUnlock() error {
	err := syscall.Flock(f.fd, syscall.LOCK_UN)
	syscall.Close(f.fd)
	f.mu.Unlock()
	return err
}

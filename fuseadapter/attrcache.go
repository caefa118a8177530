// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package fuseadapter

import (
	"time"

	"github.com/efscore/efs/inode"
	"github.com/efscore/efs/ttlcache"
)

// attrTTL bounds how long a Lookup's Lstat result is reused by a
// follow-up Getattr for the same path. The kernel issues both in quick
// succession for most syscalls (stat(2) after an open, for example),
// and a millisecond-scale store round trip per call adds up under
// load; a short TTL trades a small staleness window for skipping that
// round trip on the common case. Unlike fsnodefuse's readdirplusCache,
// which caches whole fsnode.T values keyed by name under one parent,
// this caches by absolute path across the whole mount, since efs
// addresses everything by path rather than by a tree node.
const attrTTL = time.Second

type attrEntry struct {
	ino uint64
	rec *inode.Record
}

type attrCache struct {
	c *ttlcache.Cache
}

func newAttrCache() *attrCache {
	return &attrCache{c: ttlcache.New(attrTTL)}
}

func (a *attrCache) get(path string) (uint64, *inode.Record, bool) {
	if a == nil {
		return 0, nil, false
	}
	v, ok := a.c.Get(path)
	if !ok {
		return 0, nil, false
	}
	e := v.(attrEntry)
	return e.ino, e.rec, true
}

func (a *attrCache) put(path string, ino uint64, rec *inode.Record) {
	if a == nil {
		return
	}
	a.c.Set(path, attrEntry{ino: ino, rec: rec})
}

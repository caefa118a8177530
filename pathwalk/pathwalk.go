// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package pathwalk implements path resolution (spec §4.E): splitting a
// slash-separated path into directory lookups through the inode
// manager, following symlinks (bounded, to catch loops), and the
// owner/group/other permission check every resolved inode is subject
// to.
package pathwalk

import (
	"strings"

	"github.com/efscore/efs/errors"
	"github.com/efscore/efs/inode"
	"github.com/efscore/efs/kvstore"
)

// maxSymlinkHops bounds the number of symlinks a single Walk may
// follow before it gives up and reports SymlinkLoop (spec §4.E).
const maxSymlinkHops = 40

// maxNameLength bounds a single path component (spec §4.E).
const maxNameLength = 255

// splitComponents splits path on '/', dropping empty segments so that
// leading slashes, trailing slashes, and repeated slashes are all
// equivalent to a single separator.
func splitComponents(path string) []string {
	parts := strings.Split(path, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isAbsolute(path string) bool {
	return strings.HasPrefix(path, "/")
}

// Walk resolves path starting from root (the ino a relative path is
// relative to, and what an absolute path or an absolute symlink target
// resets to). If followFinalSymlink is true and the last component
// names a symlink, its target is followed too; otherwise Walk returns
// the symlink inode itself. An empty path resolves to root.
func Walk(tx *kvstore.Txn, m *inode.Manager, root uint64, path string, followFinalSymlink bool) (uint64, error) {
	queue := splitComponents(path)
	cur := root
	hops := 0

	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if len(name) > maxNameLength {
			return 0, errors.E(errors.NameTooLong, "pathwalk.Walk")
		}

		rec, ok, err := m.Get(tx, cur)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, errors.E(errors.NotFound, "pathwalk.Walk")
		}
		if rec.Kind != inode.Directory {
			return 0, errors.E(errors.NotADirectory, "pathwalk.Walk")
		}

		childIno, ok, err := m.DirGetEntry(tx, cur, name)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, errors.E(errors.NotFound, "pathwalk.Walk: "+name)
		}

		childRec, ok, err := m.Get(tx, childIno)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, errors.E(errors.NotFound, "pathwalk.Walk")
		}

		isLast := len(queue) == 0
		if childRec.Kind == inode.Symlink && (!isLast || followFinalSymlink) {
			hops++
			if hops > maxSymlinkHops {
				return 0, errors.E(errors.SymlinkLoop, "pathwalk.Walk")
			}
			target, err := m.ReadSymlink(tx, childIno)
			if err != nil {
				return 0, err
			}
			targetComponents := splitComponents(target)
			if isAbsolute(target) {
				cur = root
			}
			queue = append(targetComponents, queue...)
			continue
		}

		cur = childIno
	}
	return cur, nil
}

// SplitParent splits path into its containing directory path and final
// component name. For a bare name with no parent separators, dir is
// "." (resolve relative to whatever ino the caller already holds).
func SplitParent(path string) (dir string, base string) {
	components := splitComponents(path)
	if len(components) == 0 {
		return "", ""
	}
	base = components[len(components)-1]
	if len(components) == 1 {
		dir = "."
		if isAbsolute(path) {
			dir = "/"
		}
		return dir, base
	}
	dir = strings.Join(components[:len(components)-1], "/")
	if isAbsolute(path) {
		dir = "/" + dir
	}
	return dir, base
}

// WalkParent resolves path's containing directory (following every
// symlink along the way, including one naming the parent directory
// itself) and returns its inode number alongside the unresolved final
// component name. Callers that must not follow a final symlink (e.g.
// unlink, lstat) look the base name up themselves via
// inode.Manager.DirGetEntry.
func WalkParent(tx *kvstore.Txn, m *inode.Manager, root uint64, path string) (parent uint64, base string, err error) {
	dir, base := SplitParent(path)
	if base == "" {
		return 0, "", errors.E(errors.InvalidArgument, "pathwalk.WalkParent: empty path")
	}
	if dir == "." {
		return root, base, nil
	}
	parent, err = Walk(tx, m, root, dir, true)
	if err != nil {
		return 0, "", err
	}
	return parent, base, nil
}

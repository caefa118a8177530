// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package cmd

import (
	"flag"
	"io"
	"path"

	"github.com/efscore/efs/efs"
	"github.com/efscore/efs/inode"
	"github.com/efscore/efs/traverse"
)

// Rm removes each path independently and concurrently, the way
// grail-file's own rm does for a batch of unrelated remote keys. The
// paths here name unrelated subtrees too, so there's no ordering
// dependency between them for traverse to violate.
func Rm(fsys *efs.FileSystem, caller efs.Caller, out io.Writer, args []string) error {
	var (
		flags         flag.FlagSet
		recursiveFlag = flags.Bool("r", false, "Remove directories and their contents")
	)
	if err := flags.Parse(args); err != nil {
		return err
	}
	paths := flags.Args()
	t := traverse.Each(len(paths))
	if len(paths) > 1 {
		t = t.WithReporter(&traverse.TimeEstimateReporter{Name: "rm"})
	}
	return t.Do(func(i int) error {
		p := paths[i]
		if *recursiveFlag {
			return removeTree(fsys, caller, p)
		}
		return fsys.Unlink(p, caller)
	})
}

// removeTree removes p, recursing into it first if it is a
// directory. efs has no bulk-delete primitive, so this walks the
// directory one Readdir call at a time, same as a shell's rm -r would
// against any POSIX filesystem without a native subtree-delete.
func removeTree(fsys *efs.FileSystem, caller efs.Caller, p string) error {
	rec, err := fsys.Lstat(p, caller)
	if err != nil {
		return err
	}
	if rec.Kind != inode.Directory {
		return fsys.Unlink(p, caller)
	}
	entries, err := fsys.Readdir(p, caller)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		if err := removeTree(fsys, caller, path.Join(p, e.Name)); err != nil {
			return err
		}
	}
	return fsys.Rmdir(p, caller)
}

// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package cmd

import (
	"flag"
	"fmt"
	"io"

	"github.com/efscore/efs/errors"

	"github.com/efscore/efs/efs"
	"github.com/efscore/efs/inode"
)

func Stat(fsys *efs.FileSystem, caller efs.Caller, out io.Writer, args []string) error {
	var (
		flags    flag.FlagSet
		noFollow = flags.Bool("L", false, "Don't follow a trailing symlink")
	)
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return errors.E(errors.InvalidArgument, "efsctl stat: usage: stat [-L] path")
	}
	p := flags.Arg(0)
	var rec *inode.Record
	var err error
	if *noFollow {
		rec, err = fsys.Lstat(p, caller)
	} else {
		rec, err = fsys.Stat(p, caller)
	}
	if err != nil {
		return err
	}
	ino, err := fsys.Ino(p, caller, !*noFollow)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "ino:     %d\n", ino)
	fmt.Fprintf(out, "kind:    %s\n", rec.Kind)
	fmt.Fprintf(out, "mode:    %o\n", rec.Mode)
	fmt.Fprintf(out, "uid/gid: %d/%d\n", rec.Uid, rec.Gid)
	fmt.Fprintf(out, "nlink:   %d\n", rec.Nlink)
	fmt.Fprintf(out, "size:    %d\n", rec.Size)
	fmt.Fprintf(out, "atime:   %s\n", rec.Atime)
	fmt.Fprintf(out, "mtime:   %s\n", rec.Mtime)
	fmt.Fprintf(out, "ctime:   %s\n", rec.Ctime)
	return nil
}

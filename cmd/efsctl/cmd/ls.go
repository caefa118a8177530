// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package cmd

import (
	"flag"
	"fmt"
	"io"

	"github.com/efscore/efs/efs"
)

func Ls(fsys *efs.FileSystem, caller efs.Caller, out io.Writer, args []string) error {
	var (
		flags          flag.FlagSet
		longOutputFlag = flags.Bool("l", false, "Print mode, size, and modification time")
	)
	if err := flags.Parse(args); err != nil {
		return err
	}
	path := "/"
	if flags.NArg() > 0 {
		path = flags.Arg(0)
	}
	entries, err := fsys.Readdir(path, caller)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !*longOutputFlag {
			fmt.Fprintln(out, e.Name)
			continue
		}
		childPath := path
		if childPath != "/" {
			childPath += "/"
		}
		rec, err := fsys.Lstat(childPath+e.Name, caller)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\t%6o\t%8d\t%s\t%s\n", rec.Kind, rec.Mode, rec.Size, rec.Mtime.Format("2006-01-02T15:04:05-0700"), e.Name)
	}
	return nil
}

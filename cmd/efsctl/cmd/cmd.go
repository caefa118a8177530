// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package cmd implements efsctl's subcommands against an already
// opened efs.FileSystem.
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/efscore/efs/errors"

	"github.com/efscore/efs/efs"
)

var commands = []struct {
	name     string
	callback func(fsys *efs.FileSystem, caller efs.Caller, out io.Writer, args []string) error
	help     string
}{
	{"ls", Ls, "List a directory's entries."},
	{"cat", Cat, "Print a file's contents to stdout."},
	{"cp", Cp, "Copy src to dst within the mounted store."},
	{"mkdir", Mkdir, "Create a directory."},
	{"rm", Rm, "Remove a file or, with -r, a directory tree."},
	{"stat", Stat, "Print an inode's metadata."},
	{"init", Init, "Format a fresh store (idempotent; -db already formats on first open)."},
}

func PrintHelp() {
	fmt.Fprintln(os.Stderr, "Subcommands:")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %s: %s\n", c.name, c.help)
	}
}

// Run dispatches args[0] to the matching subcommand, running it
// against fsys as caller.
func Run(fsys *efs.FileSystem, caller efs.Caller, args []string) error {
	if len(args) == 0 {
		PrintHelp()
		return errors.E(errors.InvalidArgument, "efsctl: no subcommand given")
	}
	for _, c := range commands {
		if c.name == args[0] {
			return c.callback(fsys, caller, os.Stdout, args[1:])
		}
	}
	PrintHelp()
	return errors.E(errors.InvalidArgument, "efsctl: unknown subcommand", args[0])
}

// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Command efsctl inspects and edits an efs database directly, without
// mounting it, the encrypted-store counterpart to grail-file.
package main

import (
	"flag"
	"os"

	"github.com/efscore/efs/cmd/efsctl/cmd"
	"github.com/efscore/efs/cmd/internal/efsopen"
	"github.com/efscore/efs/efs"
	"github.com/efscore/efs/log"
)

func main() {
	dbFlag := flag.String("db", "", "Path to the efs database file (required)")
	keyfileFlag := flag.String("keyfile", "", "Path to a raw 32-byte master key; if empty, a password is prompted for")
	uidFlag := flag.Uint("uid", uint(os.Getuid()), "Uid the subcommand runs as")
	gidFlag := flag.Uint("gid", uint(os.Getgid()), "Gid the subcommand runs as")
	help := flag.Bool("help", false, "Display help about this command")
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)
	flag.Parse()
	if *help {
		cmd.PrintHelp()
		os.Exit(0)
	}
	if *dbFlag == "" {
		log.Fatal("efsctl: -db is required")
	}

	fsys, closeFS, err := efsopen.Open(efsopen.Options{
		DBPath:  *dbFlag,
		Keyfile: *keyfileFlag,
	})
	if err != nil {
		log.Fatalf("efsctl: open %s: %v", *dbFlag, err)
	}
	defer closeFS()

	caller := efs.Caller{Uid: uint32(*uidFlag), Gid: uint32(*gidFlag)}
	if err := cmd.Run(fsys, caller, flag.Args()); err != nil {
		log.Fatal(err)
	}
}

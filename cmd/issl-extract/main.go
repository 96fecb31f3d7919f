// Copyright 2024 The CracklingPlusPlus Authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Command issl-extract scans one or more reference inputs for
// NGG-PAM-flanked 20-mers on both strands and writes the sorted stream of
// seeds to an output file.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"

	"github.com/CeSchmitz/CracklingPlusPlus/extractor"
)

func usage() {
	fmt.Fprintln(os.Stderr, `
issl-extract scans genomic reference inputs for PAM-flanked candidate
off-target sites and writes the sorted stream of 20-nt seeds used to build
an ISSL index.

Usage:
  issl-extract [flags] <output-file> <input1> [input2 ...]

Inputs may be files (FASTA or plain text, one sequence per line, optionally
gzip-compressed) or directories, expanded to their immediate children.
`)
	flag.PrintDefaults()
	os.Exit(2)
}

func main() {
	flag.Usage = usage
	threads := flag.Int("threads", runtime.NumCPU(), "worker count for the split and extract/sort phases")
	flag.Parse()

	if flag.NArg() < 2 {
		usage()
	}
	outputPath := flag.Arg(0)
	inputs := flag.Args()[1:]

	cleanup := grail.Init()
	defer cleanup()
	ctx := vcontext.Background()

	e := extractor.NewEngine(*threads)
	if err := e.Extract(ctx, outputPath, inputs); err != nil {
		log.Panicf("issl-extract: %v", err)
	}
	log.Printf("issl-extract: wrote %s", outputPath)
}

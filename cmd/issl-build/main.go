// Copyright 2024 The CracklingPlusPlus Authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Command issl-build consumes a sorted seed stream (as produced by
// issl-extract) and writes an ISSL index file.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"

	"github.com/CeSchmitz/CracklingPlusPlus/issl"
)

func usage() {
	fmt.Fprintln(os.Stderr, `
issl-build reads a sorted stream of 20-nt seeds (one per line, duplicates
preserved) and writes an Inverted Signature Slice List index.

Usage:
  issl-build [flags] <seeds-file> <index-file>
`)
	flag.PrintDefaults()
	os.Exit(2)
}

func main() {
	flag.Usage = usage
	slices := flag.Int("slices", 5, "number of disjoint position slices (N); must exceed -max-dist")
	maxDist := flag.Int("max-dist", 4, "maximum Hamming distance K the resulting index must support (pigeonhole check: N > K)")
	flag.Parse()

	if flag.NArg() != 2 {
		usage()
	}
	seedsPath, indexPath := flag.Arg(0), flag.Arg(1)

	cleanup := grail.Init()
	defer cleanup()

	plan := issl.DefaultSlicePlan(*slices)
	if err := plan.Validate(*maxDist); err != nil {
		log.Fatalf("issl-build: invalid slice plan: %v", err)
	}

	in, err := os.Open(seedsPath)
	if err != nil {
		log.Panicf("issl-build: opening %q: %v", seedsPath, err)
	}
	defer in.Close()

	out, err := os.Create(indexPath)
	if err != nil {
		log.Panicf("issl-build: creating %q: %v", indexPath, err)
	}

	if err := issl.Build(in, plan, out); err != nil {
		_ = out.Close()
		log.Panicf("issl-build: %v", err)
	}
	if err := out.Close(); err != nil {
		log.Panicf("issl-build: closing %q: %v", indexPath, err)
	}
	log.Printf("issl-build: wrote %s (%d slices, max-dist %d)", indexPath, *slices, *maxDist)
}

// Copyright 2024 The CracklingPlusPlus Authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Command issl-score loads an ISSL index and scores a batch of candidate
// guides read from stdin (or a file), one 20-mer per line, producing
// tab-separated guide/MIT/CFD output.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"runtime"
	"strconv"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"

	"github.com/CeSchmitz/CracklingPlusPlus/issl"
	"github.com/CeSchmitz/CracklingPlusPlus/scoring"
)

func usage() {
	fmt.Fprintln(os.Stderr, `
issl-score loads an ISSL index and scores candidate guides against its
off-target population, reading one 20-mer per line from a file or stdin.

Usage:
  issl-score [flags] <index-file> [guides-file]

If guides-file is omitted, guides are read from stdin.
`)
	flag.PrintDefaults()
	os.Exit(2)
}

func readGuides(path string) ([]string, error) {
	var r *os.File
	if path == "" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var guides []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		guides = append(guides, line)
	}
	return guides, sc.Err()
}

func main() {
	flag.Usage = usage
	slices := flag.Int("slices", 5, "number of disjoint position slices the index was built with")
	maxDist := flag.Int("max-dist", 4, "maximum Hamming distance K to score")
	method := flag.String("method", "mitAndCfd", "scoring method: mit, cfd, mitAndCfd, mitOrCfd, avgMitCfd")
	threshold := flag.Float64("threshold", 75, "accept/reject threshold, in (0, 100]")
	threads := flag.Int("threads", runtime.NumCPU(), "worker count for parallel scoring")
	flag.Parse()

	if flag.NArg() < 1 || flag.NArg() > 2 {
		usage()
	}
	indexPath := flag.Arg(0)
	guidesPath := ""
	if flag.NArg() == 2 {
		guidesPath = flag.Arg(1)
	}

	cleanup := grail.Init()
	defer cleanup()

	scoreMethod, err := scoring.ParseMethod(*method)
	if err != nil {
		log.Fatalf("issl-score: %v", err)
	}

	plan := issl.DefaultSlicePlan(*slices)
	reader, err := issl.Open(indexPath, plan)
	if err != nil {
		log.Panicf("issl-score: opening index %q: %v", indexPath, err)
	}
	defer reader.Close()

	engine, err := scoring.NewEngine(reader, scoring.Config{
		MaxDist:   *maxDist,
		Method:    scoreMethod,
		Threshold: *threshold,
		Threads:   *threads,
	})
	if err != nil {
		log.Fatalf("issl-score: %v", err)
	}

	guides, err := readGuides(guidesPath)
	if err != nil {
		log.Panicf("issl-score: reading guides: %v", err)
	}
	log.Printf("issl-score: scoring %d guide(s)", len(guides))

	results, err := engine.ScoreBatch(guides)
	if err != nil {
		log.Panicf("issl-score: %v", err)
	}

	w := bufio.NewWriter(os.Stdout)
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Guide, formatScore(r.MIT), formatScore(r.CFD))
	}
	if err := w.Flush(); err != nil {
		log.Panicf("issl-score: writing output: %v", err)
	}
}

func formatScore(v float64) string {
	if v < 0 {
		return "-1"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

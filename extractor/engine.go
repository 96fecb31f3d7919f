// Copyright 2024 The CracklingPlusPlus Authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package extractor implements a two-pass, parallel external sorter that
// scans genomic reference sequences (FASTA, or plain text with one
// sequence per line) and emits a single sorted stream of 20-nt off-target
// seeds, duplicates preserved.
//
// Each input is split into one chunk per logical sequence, chunks are
// scanned and sorted concurrently by a worker pool fed over a channel, and
// the sorted chunks are merged with an N-way min-heap merge. Inputs may be
// transparently gzip-compressed, read through grailbio/base/file and
// grailbio/base/compress.
package extractor

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/pkg/errors"
)

// Engine splits, extracts, sorts and merges off-target seeds from a set of
// reference inputs. The zero value is not usable; construct with NewEngine.
type Engine struct {
	// Threads bounds the parallelism of the split and extract/sort phases.
	Threads int
}

// NewEngine returns an Engine with the given worker count. A non-positive
// count defaults to runtime.NumCPU(), matching cmd/bio-fusion's
// parallelism := runtime.NumCPU() convention.
func NewEngine(threads int) *Engine {
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	return &Engine{Threads: threads}
}

// Extract reads every file (or, for a directory argument, every immediate
// child of that directory, non-recursively) named in inputs, and writes the
// lexicographically sorted stream of 20-nt seeds to outputPath, one per
// line, LF-terminated, duplicates preserved.
func (e *Engine) Extract(ctx context.Context, outputPath string, inputs []string) error {
	tempDir, err := os.MkdirTemp("", "crackling-extract-offtargets-")
	if err != nil {
		return errors.Wrap(err, "extractor: create temp dir")
	}
	succeeded := false
	defer func() {
		if succeeded {
			_ = os.RemoveAll(tempDir)
		}
	}()

	log.Printf("extractor: splitting %d input(s)", len(inputs))
	chunkPaths, err := e.split(ctx, tempDir, inputs)
	if err != nil {
		return err
	}
	log.Printf("extractor: split into %d chunk(s)", len(chunkPaths))

	log.Printf("extractor: extracting and sorting chunks")
	sortedPaths, err := e.extractAndSort(ctx, chunkPaths)
	if err != nil {
		return err
	}

	log.Printf("extractor: merging %d sorted chunk(s)", len(sortedPaths))
	if err := mergeSorted(ctx, sortedPaths, outputPath); err != nil {
		return err
	}

	succeeded = true
	log.Printf("extractor: done, temp dir removed")
	return nil
}

// expandInputs resolves each entry of inputs to a list of regular files:
// a file argument passes through unchanged, a directory argument is
// expanded to its immediate children (non-recursively), and a missing path
// is logged and skipped rather than treated as fatal.
func expandInputs(ctx context.Context, inputs []string) []string {
	var files []string
	for _, in := range inputs {
		stat, err := file.Stat(ctx, in)
		if err != nil {
			log.Error.Printf("extractor: skipping %q: %v", in, err)
			continue
		}
		if !stat.IsDir() {
			files = append(files, in)
			continue
		}
		lister := file.List(ctx, in)
		for lister.Scan() {
			files = append(files, lister.Path())
		}
		if err := lister.Err(); err != nil {
			log.Error.Printf("extractor: skipping directory %q: %v", in, err)
		}
	}
	return files
}

// chunkCounter assigns process-wide, monotonically increasing chunk ids,
// shared by every split-phase worker.
type chunkCounter struct{ next uint64 }

func (c *chunkCounter) take() uint64 { return atomic.AddUint64(&c.next, 1) - 1 }

// split parses every input into one temp chunk per logical sequence (one
// per FASTA header, or one per line for plain text), written to
// tempDir/<k>.txt.
func (e *Engine) split(ctx context.Context, tempDir string, inputs []string) ([]string, error) {
	files := expandInputs(ctx, inputs)
	if len(files) == 0 {
		return nil, nil
	}

	var (
		counter    chunkCounter
		mu         sync.Mutex
		chunkPaths []string
		firstErr   error
	)
	recordChunk := func(path string) {
		mu.Lock()
		chunkPaths = append(chunkPaths, path)
		mu.Unlock()
	}
	recordErr := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	work := make(chan string, len(files))
	for _, f := range files {
		work <- f
	}
	close(work)

	var wg sync.WaitGroup
	for i := 0; i < e.Threads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range work {
				if err := splitOneInput(ctx, path, tempDir, &counter, recordChunk); err != nil {
					recordErr(errors.Wrapf(err, "extractor: splitting %q", path))
				}
			}
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	sort.Strings(chunkPaths)
	return chunkPaths, nil
}

// splitOneInput splits a single input file into one chunk file per logical
// sequence, dispatching on whether the first non-blank line looks like a
// FASTA header.
func splitOneInput(ctx context.Context, path, tempDir string, counter *chunkCounter, recordChunk func(string)) error {
	f, err := file.Open(ctx, path)
	if err != nil {
		return err
	}
	defer f.Close(ctx) // nolint: errcheck

	var r = f.Reader(ctx)
	if u := compress.NewReaderPath(r, path); u != nil {
		r = u
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<30)

	var firstLine string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		firstLine = line
		break
	}
	if firstLine == "" {
		return nil
	}

	if firstLine[0] == '>' {
		return splitFASTA(tempDir, counter, scanner, firstLine, recordChunk)
	}
	return splitPlainText(tempDir, counter, scanner, firstLine, recordChunk)
}

// splitFASTA concatenates every line between headers into one logical
// sequence per header, writing each to its own temp chunk.
func splitFASTA(tempDir string, counter *chunkCounter, scanner *bufio.Scanner, firstLine string, recordChunk func(string)) error {
	var cur *os.File
	newChunk := func() error {
		if cur != nil {
			if err := cur.Close(); err != nil {
				return err
			}
		}
		path := filepath.Join(tempDir, chunkName(counter.take()))
		var err error
		cur, err = os.Create(path)
		if err != nil {
			return err
		}
		recordChunk(path)
		return nil
	}

	nextLine := func() (string, bool) {
		for scanner.Scan() {
			if l := strings.TrimSpace(scanner.Text()); l != "" {
				return l, true
			}
		}
		return "", false
	}

	line := firstLine
	for {
		if line[0] == '>' {
			if err := newChunk(); err != nil {
				return err
			}
		} else if cur != nil {
			upper := strings.ToUpper(line)
			if _, err := cur.WriteString(upper); err != nil {
				return err
			}
		}
		next, ok := nextLine()
		if !ok {
			break
		}
		line = next
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if cur != nil {
		return cur.Close()
	}
	return nil
}

// splitPlainText treats the input as one sequence per line, writing each
// trimmed, upper-cased line to its own temp chunk.
func splitPlainText(tempDir string, counter *chunkCounter, scanner *bufio.Scanner, firstLine string, recordChunk func(string)) error {
	writeLine := func(line string) error {
		path := filepath.Join(tempDir, chunkName(counter.take()))
		upper := strings.ToUpper(strings.TrimSpace(line))
		if err := os.WriteFile(path, []byte(upper), 0o644); err != nil {
			return err
		}
		recordChunk(path)
		return nil
	}

	if err := writeLine(firstLine); err != nil {
		return err
	}
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := writeLine(line); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func chunkName(id uint64) string {
	return strconv.FormatUint(id, 10) + ".txt"
}

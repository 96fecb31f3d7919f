// Copyright 2024 The CracklingPlusPlus Authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package extractor

import (
	"bufio"
	"container/heap"
	"context"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/grailbio/base/file"
	"github.com/pkg/errors"
)

// extractAndSort scans each chunk independently for forward/reverse
// PAM-flanked sites, sorts the resulting seeds in memory, and writes them
// to "<chunk>_sorted.txt".
func (e *Engine) extractAndSort(ctx context.Context, chunkPaths []string) ([]string, error) {
	if len(chunkPaths) == 0 {
		return nil, nil
	}

	sortedPaths := make([]string, len(chunkPaths))
	errs := make([]error, len(chunkPaths))

	work := make(chan int, len(chunkPaths))
	for i := range chunkPaths {
		work <- i
	}
	close(work)

	var wg sync.WaitGroup
	for w := 0; w < e.Threads; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				path, err := extractAndSortOne(chunkPaths[i])
				sortedPaths[i], errs[i] = path, err
			}
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return sortedPaths, nil
}

// extractAndSortOne scans a single temp chunk for PAM-flanked sites on both
// strands, sorts the resulting seeds, and writes them to "<chunk>_sorted.txt".
// A chunk file that cannot be read is a fatal error, since by this point
// the chunk is our own intermediate file, not user input.
func extractAndSortOne(chunkPath string) (string, error) {
	data, err := os.ReadFile(chunkPath)
	if err != nil {
		return "", errors.Wrapf(err, "extractor: reading chunk %q", chunkPath)
	}

	var seeds []string
	seeds = scanSeeds(string(data), seeds)
	sort.Strings(seeds)

	sortedPath := strings.TrimSuffix(chunkPath, ".txt") + "_sorted.txt"
	out, err := os.Create(sortedPath)
	if err != nil {
		return "", errors.Wrapf(err, "extractor: creating %q", sortedPath)
	}
	w := bufio.NewWriter(out)
	for _, s := range seeds {
		if _, err := w.WriteString(s); err != nil {
			_ = out.Close()
			return "", errors.Wrapf(err, "extractor: writing %q", sortedPath)
		}
		if err := w.WriteByte('\n'); err != nil {
			_ = out.Close()
			return "", errors.Wrapf(err, "extractor: writing %q", sortedPath)
		}
	}
	if err := w.Flush(); err != nil {
		_ = out.Close()
		return "", errors.Wrapf(err, "extractor: flushing %q", sortedPath)
	}
	return sortedPath, out.Close()
}

// mergeStream is one input stream of the N-way merge, tracking its current
// front line.
type mergeStream struct {
	scanner *bufio.Scanner
	front   string
	done    bool
}

// mergeHeap is a min-heap of mergeStreams ordered by their current front
// line.
type mergeHeap []*mergeStream

func (h mergeHeap) Len() int            { return len(h) }
func (h mergeHeap) Less(i, j int) bool  { return h[i].front < h[j].front }
func (h mergeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x interface{}) { *h = append(*h, x.(*mergeStream)) }
func (h *mergeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// mergeSorted performs an N-way merge of sortedPaths into outputPath,
// duplicates preserved.
func mergeSorted(ctx context.Context, sortedPaths []string, outputPath string) error {
	var streams []*os.File
	defer func() {
		for _, f := range streams {
			_ = f.Close()
		}
	}()

	h := make(mergeHeap, 0, len(sortedPaths))
	for _, p := range sortedPaths {
		f, err := os.Open(p)
		if err != nil {
			return errors.Wrapf(err, "extractor: opening sorted chunk %q", p)
		}
		streams = append(streams, f)
		sc := bufio.NewScanner(f)
		sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
		ms := &mergeStream{scanner: sc}
		if sc.Scan() {
			ms.front = sc.Text()
		} else {
			ms.done = true
		}
		if !ms.done {
			h = append(h, ms)
		}
	}
	heap.Init(&h)

	out, err := file.Create(ctx, outputPath)
	if err != nil {
		return errors.Wrapf(err, "extractor: creating output %q", outputPath)
	}
	w := bufio.NewWriter(out.Writer(ctx))

	for h.Len() > 0 {
		ms := h[0]
		if _, err := w.WriteString(ms.front); err != nil {
			return errors.Wrap(err, "extractor: writing output")
		}
		if err := w.WriteByte('\n'); err != nil {
			return errors.Wrap(err, "extractor: writing output")
		}
		if ms.scanner.Scan() {
			ms.front = ms.scanner.Text()
			heap.Fix(&h, 0)
		} else {
			heap.Pop(&h)
		}
	}

	if err := w.Flush(); err != nil {
		return errors.Wrap(err, "extractor: flushing output")
	}
	return out.Close(ctx)
}

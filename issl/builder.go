// Copyright 2024 The CracklingPlusPlus Authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package issl

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/CeSchmitz/CracklingPlusPlus/signature"
	"github.com/grailbio/base/log"
	"github.com/pkg/errors"
)

// Build consumes a sorted stream of one-20-mer-per-line seeds (as produced
// by extractor.Engine), deduplicates them while counting occurrences,
// assigns ids in stream rank order, computes each unique signature's
// per-slice keys, and writes the index: header, offtargets[], then for
// each slice its mask, bucket-size array, and records.
//
// Build is single-threaded and streaming; I/O, not computation, dominates
// its cost, so no worker pool is warranted.
func Build(seeds io.Reader, plan SlicePlan, w io.Writer) error {
	unique, counts, err := dedupeSorted(seeds)
	if err != nil {
		return err
	}
	log.Printf("issl: %d unique off-targets", len(unique))

	n := len(plan.Masks)
	buckets := make([][][]signature.OffTarget, n)
	for i := 0; i < n; i++ {
		buckets[i] = make([][]signature.OffTarget, plan.Buckets(i))
	}
	for id, sig := range unique {
		ot := signature.PackOffTarget(uint32(id), counts[id])
		for i, mask := range plan.Masks {
			key := signature.Project(sig, mask)
			buckets[i][key] = append(buckets[i][key], ot)
		}
	}

	bw := bufio.NewWriterSize(w, 1<<20)
	hdr := header{
		OfftargetsCount: uint64(len(unique)),
		SeqLength:       signature.Length,
		SliceCount:      uint64(n),
	}
	if err := writeHeader(bw, hdr); err != nil {
		return err
	}
	for _, sig := range unique {
		if err := writeU64(bw, uint64(sig)); err != nil {
			return errors.Wrap(err, "issl: writing offtargets table")
		}
	}
	for i := 0; i < n; i++ {
		if err := writeU64(bw, plan.Masks[i]); err != nil {
			return errors.Wrapf(err, "issl: writing slice %d mask", i)
		}
		for _, b := range buckets[i] {
			if err := writeU64(bw, uint64(len(b))); err != nil {
				return errors.Wrapf(err, "issl: writing slice %d sizes", i)
			}
		}
		for _, b := range buckets[i] {
			for _, rec := range b {
				if err := writeU64(bw, uint64(rec)); err != nil {
					return errors.Wrapf(err, "issl: writing slice %d records", i)
				}
			}
		}
	}
	return bw.Flush()
}

// dedupeSorted performs a single streaming pass over the sorted seed file,
// producing the unique-signature table and parallel occurrence counts, in
// rank order: id == index into unique.
func dedupeSorted(seeds io.Reader) ([]signature.Signature, []uint32, error) {
	sc := bufio.NewScanner(seeds)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var (
		unique []signature.Signature
		counts []uint32
		prev   string
		havePr bool
	)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		if havePr && line == prev {
			counts[len(counts)-1]++
			continue
		}
		sig, err := signature.FromSequence(line)
		if err != nil {
			return nil, nil, errors.Wrap(err, "issl: corrupt seed in sorted input")
		}
		unique = append(unique, sig)
		counts = append(counts, 1)
		prev = line
		havePr = true
	}
	if err := sc.Err(); err != nil {
		return nil, nil, errors.Wrap(err, "issl: reading sorted seed stream")
	}
	return unique, counts, nil
}

func writeHeader(w io.Writer, h header) error {
	if err := writeU64(w, h.OfftargetsCount); err != nil {
		return err
	}
	if err := writeU64(w, h.SeqLength); err != nil {
		return err
	}
	return writeU64(w, h.SliceCount)
}

func writeU64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

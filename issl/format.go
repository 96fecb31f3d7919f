// Copyright 2024 The CracklingPlusPlus Authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package issl implements the Inverted Signature Slice List: an on-disk
// index format for off-target lookup, its writer (Build) and its
// read-only, memory-mapped reader (Reader).
package issl

import (
	"github.com/CeSchmitz/CracklingPlusPlus/signature"
	"github.com/pkg/errors"
)

// headerSize is the fixed 24-byte header: offtargetsCount, seqLength,
// sliceCount, each a little-endian u64.
const headerSize = 24

// header mirrors the fixed-size prefix of an ISSL file.
type header struct {
	OfftargetsCount uint64
	SeqLength       uint64
	SliceCount      uint64
}

// SlicePlan describes how a signature's L positions are partitioned into
// disjoint slices; masks[i] is a bitset (bit j set iff position j belongs to
// slice i). The plan must satisfy the pigeonhole constraint N > K for the
// index to guarantee it enumerates every off-target within K mismatches.
type SlicePlan struct {
	Masks []uint64
}

// Width returns the number of positions (popcount of the mask) assigned to
// slice i.
func (p SlicePlan) Width(i int) int {
	return popcount64(p.Masks[i])
}

// Buckets returns the number of buckets (4^w_i) in slice i.
func (p SlicePlan) Buckets(i int) uint64 {
	return uint64(1) << uint(2*p.Width(i))
}

// DefaultSlicePlan partitions signature.Length positions into n contiguous,
// roughly equal-width slices (e.g. N=5 gives widths 4,4,4,4,4; N=8 gives
// 3,3,3,3,2,2,2,2). Positions are assigned low-to-high: slice 0 gets
// positions [0,w0), slice 1 gets [w0,w0+w1), etc.
func DefaultSlicePlan(n int) SlicePlan {
	base := signature.Length / n
	rem := signature.Length % n
	masks := make([]uint64, n)
	pos := 0
	for i := 0; i < n; i++ {
		w := base
		if i < rem {
			w++
		}
		var mask uint64
		for j := 0; j < w; j++ {
			mask |= 1 << uint(pos)
			pos++
		}
		masks[i] = mask
	}
	return SlicePlan{Masks: masks}
}

// Validate checks the pigeonhole constraint and disjointness/coverage
// invariants: masks must be pairwise disjoint, their union must be [0, L),
// and N (len(Masks)) must exceed maxDist for the index to be usable at
// that distance.
func (p SlicePlan) Validate(maxDist int) error {
	if len(p.Masks) <= maxDist {
		return errors.Errorf("issl: slice plan has %d slices, need > maxDist=%d (pigeonhole)", len(p.Masks), maxDist)
	}
	var union uint64
	for i, m := range p.Masks {
		if union&m != 0 {
			return errors.Errorf("issl: slice %d overlaps a previous slice", i)
		}
		union |= m
	}
	want := uint64(1)<<uint(signature.Length) - 1
	if union != want {
		return errors.Errorf("issl: slice masks do not cover all %d positions", signature.Length)
	}
	return nil
}

func popcount64(x uint64) int {
	n := 0
	for x != 0 {
		x &= x - 1
		n++
	}
	return n
}

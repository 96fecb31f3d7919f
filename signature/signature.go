// Copyright 2024 The CracklingPlusPlus Authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package signature implements the 2-bit packed representation of CRISPR
// guide-RNA seed sequences used throughout the ISSL index and scoring
// engine: encoding, decoding, reverse-complementing, and the XOR+popcount
// mismatch-mask trick used to compute Hamming distance between two packed
// 20-mers.
package signature

import (
	"math/bits"

	"github.com/pkg/errors"
)

// Length is the fixed seed length (L) every Signature represents. The
// scoring and index file formats hard-code this value; there is no support
// for variable-length guides.
const Length = 20

// Signature is a 20-nucleotide sequence packed 2 bits per base into the low
// 40 bits of a uint64, base at position j (0 = 5') in bits 2j..2j+1.
type Signature uint64

// OffTarget is the packed on-disk/in-memory record for one unique indexed
// signature: the low 32 bits hold the off-target id (an index into the
// unique-signature table), and the high 32 bits hold the occurrence count.
type OffTarget uint64

// PackOffTarget builds an OffTarget record from an id and occurrence count.
func PackOffTarget(id uint32, occurrences uint32) OffTarget {
	return OffTarget(uint64(occurrences)<<32 | uint64(id))
}

// ID returns the off-target id embedded in the record.
func (o OffTarget) ID() uint32 { return uint32(o) }

// Occurrences returns the occurrence count embedded in the record.
func (o OffTarget) Occurrences() uint32 { return uint32(o >> 32) }

// base2bit maps an uppercase ASCII nucleotide to its 2-bit code. Any byte
// other than A/C/G/T (including lowercase, N, or line noise) is treated as
// A, matching the convention that the extractor has already upper-cased
// and filtered its input.
var base2bit = [256]byte{}

// bit2base is the inverse mapping, used by Sequence.
var bit2base = [4]byte{'A', 'C', 'G', 'T'}

func init() {
	base2bit['C'] = 1
	base2bit['G'] = 2
	base2bit['T'] = 3
}

// FromSequence packs an uppercase ACGT string of length Length into a
// Signature. It returns an error if seq is not exactly Length bytes long or
// contains a byte outside A/C/G/T, so that callers scoring a candidate
// guide can surface a clean error instead of silently scoring garbage.
func FromSequence(seq string) (Signature, error) {
	if len(seq) != Length {
		return 0, errors.Errorf("signature: sequence %q has length %d, want %d", seq, len(seq), Length)
	}
	var sig Signature
	for j := 0; j < Length; j++ {
		c := seq[j]
		if c != 'A' && c != 'C' && c != 'G' && c != 'T' {
			return 0, errors.Errorf("signature: sequence %q contains non-ACGT base %q at position %d", seq, c, j)
		}
		sig |= Signature(base2bit[c]) << uint(2*j)
	}
	return sig, nil
}

// PackLenient packs seq the same way FromSequence does, except any non-ACGT
// byte is silently treated as A rather than rejected, and only the first
// Length bytes are packed. It never fails. The index builder does not use
// it: issl.Build packs seeds with FromSequence and rejects corrupt ones.
func PackLenient(seq string) Signature {
	var sig Signature
	n := len(seq)
	if n > Length {
		n = Length
	}
	for j := 0; j < n; j++ {
		sig |= Signature(base2bit[seq[j]]) << uint(2*j)
	}
	return sig
}

// Sequence unpacks a Signature back into its upper-case ACGT string.
func (s Signature) Sequence() string {
	buf := make([]byte, Length)
	for j := 0; j < Length; j++ {
		buf[j] = bit2base[(s>>uint(2*j))&3]
	}
	return string(buf)
}

// evenBits selects the high bit of every 2-bit base pair (0xAAAA...).
const evenBits = Signature(0xAAAAAAAAAAAAAAAA)

// oddBits selects the low bit of every 2-bit base pair (0x5555...).
const oddBits = Signature(0x5555555555555555)

// MismatchMask returns a bitmask with bit j set for each base position j
// where a and b differ, computed via an XOR + parity trick rather than a
// per-position comparison loop:
//
//	x = a XOR b
//	e = x AND evenBits
//	o = x AND oddBits
//	m = (e >> 1) OR o
//
// m has bit 2j set for each differing position j; those bits are then
// compacted so that position j lands on bit j. Only the low Length bits of
// the result are meaningful.
func MismatchMask(a, b Signature) Signature {
	x := a ^ b
	e := x & evenBits
	o := x & oddBits
	m := uint64((e >> 1) | o)
	m = (m | m>>1) & 0x3333333333333333
	m = (m | m>>2) & 0x0F0F0F0F0F0F0F0F
	m = (m | m>>4) & 0x00FF00FF00FF00FF
	m = (m | m>>8) & 0x0000FFFF0000FFFF
	m = (m | m>>16) & 0x00000000FFFFFFFF
	return Signature(m)
}

// HammingDistance returns the number of mismatched bases between a and b,
// i.e. popcount(MismatchMask(a, b)).
func HammingDistance(a, b Signature) int {
	return bits.OnesCount64(uint64(MismatchMask(a, b)))
}

// Project extracts the 2-bit base at each position set in mask (in
// ascending position order) and packs them contiguously starting at bit 0,
// the j-th set bit (by ascending position) becoming bit-pair j of the
// result. This is used to compute a slice key for each mask of an
// issl.SlicePlan; the CFD scoring loop reads single bases with BaseAt.
func Project(s Signature, mask uint64) uint64 {
	var out uint64
	var j uint
	for mask != 0 {
		pos := uint(bits.TrailingZeros64(mask))
		mask &^= 1 << pos
		out |= ((uint64(s) >> (2 * pos)) & 3) << (2 * j)
		j++
	}
	return out
}

// BaseAt returns the 2-bit code of the base at position pos (0 = 5').
func (s Signature) BaseAt(pos int) uint64 {
	return (uint64(s) >> uint(2*pos)) & 3
}

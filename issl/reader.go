// Copyright 2024 The CracklingPlusPlus Authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package issl

import (
	"encoding/binary"
	"os"

	"github.com/CeSchmitz/CracklingPlusPlus/signature"
	"github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"
)

// Reader is a read-only, memory-mapped view of an ISSL index: no copy of
// the off-target table or slice buckets is made at load time.
type Reader struct {
	f    *os.File
	data mmap.MMap

	hdr  header
	plan SlicePlan
	// recordsOffset[i] is the byte offset of slice i's records[] array.
	recordsOffset []int
	// bucketStart[i][k] is the index (in records) of the first record of
	// bucket k in slice i, precomputed by prefix-summing sizes[].
	bucketStart [][]uint64
}

// Open memory-maps path and validates its header and slice masks against
// plan, returning a Reader ready for Lookup and SignatureAt calls.
func Open(path string, plan SlicePlan) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "issl: opening %q", path)
	}
	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrapf(err, "issl: mmap %q", path)
	}

	r := &Reader{f: f, data: data, plan: plan}
	if err := r.parse(); err != nil {
		_ = data.Unmap()
		_ = f.Close()
		return nil, err
	}
	return r, nil
}

func (r *Reader) readU64(off int) (uint64, error) {
	if off < 0 || off+8 > len(r.data) {
		return 0, errors.Errorf("issl: offset %d out of range (file size %d)", off, len(r.data))
	}
	return binary.LittleEndian.Uint64(r.data[off : off+8]), nil
}

// parse walks the fixed header, the offtargets table, and every slice's
// mask/sizes/records triplet, recording byte offsets for random access and
// validating the file against the expected SlicePlan.
func (r *Reader) parse() error {
	if len(r.data) < headerSize {
		return errors.Errorf("issl: file too small for header (%d bytes)", len(r.data))
	}
	off := 0
	readField := func() (uint64, error) {
		v, err := r.readU64(off)
		off += 8
		return v, err
	}
	var err error
	if r.hdr.OfftargetsCount, err = readField(); err != nil {
		return err
	}
	if r.hdr.SeqLength, err = readField(); err != nil {
		return err
	}
	if r.hdr.SliceCount, err = readField(); err != nil {
		return err
	}
	if r.hdr.SeqLength != signature.Length {
		return errors.Errorf("issl: seqLength %d != %d", r.hdr.SeqLength, signature.Length)
	}
	if int(r.hdr.SliceCount) != len(r.plan.Masks) {
		return errors.Errorf("issl: sliceCount %d != plan slice count %d", r.hdr.SliceCount, len(r.plan.Masks))
	}

	// offtargets[] table.
	off += int(r.hdr.OfftargetsCount) * 8

	n := int(r.hdr.SliceCount)
	r.recordsOffset = make([]int, n)
	r.bucketStart = make([][]uint64, n)

	for i := 0; i < n; i++ {
		mask, err := r.readU64(off)
		if err != nil {
			return errors.Wrapf(err, "issl: reading slice %d mask", i)
		}
		if mask != r.plan.Masks[i] {
			return errors.Errorf("issl: slice %d mask %#x != plan mask %#x", i, mask, r.plan.Masks[i])
		}
		off += 8

		buckets := int(r.plan.Buckets(i))
		starts := make([]uint64, buckets+1)
		var total uint64
		for k := 0; k < buckets; k++ {
			sz, err := r.readU64(off)
			if err != nil {
				return errors.Wrapf(err, "issl: reading slice %d bucket %d size", i, k)
			}
			starts[k] = total
			total += sz
			off += 8
		}
		starts[buckets] = total
		r.bucketStart[i] = starts

		r.recordsOffset[i] = off
		off += int(total) * 8
	}
	if off != len(r.data) {
		return errors.Errorf("issl: trailing or missing data, parsed %d bytes, file has %d", off, len(r.data))
	}
	return nil
}

// OfftargetsCount reports the number of unique off-target signatures
// indexed.
func (r *Reader) OfftargetsCount() uint64 { return r.hdr.OfftargetsCount }

// SignatureAt returns the unique off-target signature assigned id, as stored
// in the offtargets[] table at file offset headerSize + id*8.
func (r *Reader) SignatureAt(id uint32) (signature.Signature, error) {
	if uint64(id) >= r.hdr.OfftargetsCount {
		return 0, errors.Errorf("issl: id %d out of range (%d offtargets)", id, r.hdr.OfftargetsCount)
	}
	v, err := r.readU64(headerSize + int(id)*8)
	if err != nil {
		return 0, err
	}
	return signature.Signature(v), nil
}

// Lookup returns every OffTarget record in slice i's bucket for the given
// projected key. The records are decoded from the mapped pages into a newly
// allocated slice, so each call copies the bucket; the result does not
// reference the mapping.
func (r *Reader) Lookup(sliceIdx int, key uint64) ([]signature.OffTarget, error) {
	if sliceIdx < 0 || sliceIdx >= len(r.plan.Masks) {
		return nil, errors.Errorf("issl: slice index %d out of range", sliceIdx)
	}
	starts := r.bucketStart[sliceIdx]
	if key+1 >= uint64(len(starts)) {
		return nil, errors.Errorf("issl: bucket key %d out of range for slice %d", key, sliceIdx)
	}
	lo, hi := starts[key], starts[key+1]
	if lo == hi {
		return nil, nil
	}
	base := r.recordsOffset[sliceIdx]
	out := make([]signature.OffTarget, hi-lo)
	for k := range out {
		off := base + int(lo+uint64(k))*8
		v, err := r.readU64(off)
		if err != nil {
			return nil, err
		}
		out[k] = signature.OffTarget(v)
	}
	return out, nil
}

// Plan returns the SlicePlan the index was built and validated against.
func (r *Reader) Plan() SlicePlan { return r.plan }

// Close unmaps the index and closes the underlying file.
func (r *Reader) Close() error {
	if err := r.data.Unmap(); err != nil {
		_ = r.f.Close()
		return errors.Wrap(err, "issl: unmapping")
	}
	return r.f.Close()
}

// Copyright 2024 The CracklingPlusPlus Authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package issl

import (
	"bytes"
	"strings"
	"testing"

	"github.com/CeSchmitz/CracklingPlusPlus/signature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSlicePlanWidths(t *testing.T) {
	p := DefaultSlicePlan(5)
	for i := 0; i < 5; i++ {
		assert.Equal(t, 4, p.Width(i))
	}
	p8 := DefaultSlicePlan(8)
	widths := make([]int, 8)
	for i := range widths {
		widths[i] = p8.Width(i)
	}
	assert.Equal(t, []int{3, 3, 3, 3, 2, 2, 2, 2}, widths)
}

func TestSlicePlanValidate(t *testing.T) {
	p := DefaultSlicePlan(5)
	require.NoError(t, p.Validate(4))
	assert.Error(t, p.Validate(5)) // pigeonhole: N=5 slices can't guarantee K=5

	bad := SlicePlan{Masks: []uint64{0x3, 0x3}} // overlapping
	assert.Error(t, bad.Validate(1))

	incomplete := SlicePlan{Masks: []uint64{0x1, 0x2}} // doesn't cover 20 positions
	assert.Error(t, incomplete.Validate(1))
}

func TestBuildWritesExpectedLayout(t *testing.T) {
	plan := DefaultSlicePlan(5)
	seeds := strings.Join([]string{
		"AAAAAAAAAAAAAAAAAAAA",
		"AAAAAAAAAAAAAAAAAAAA", // duplicate, increments occurrence count
		"CCCCCCCCCCCCCCCCCCCC",
		"GGGGGGGGGGGGGGGGGGGG",
	}, "\n") + "\n"

	var out bytes.Buffer
	require.NoError(t, Build(strings.NewReader(seeds), plan, &out))

	r, err := parseFromBytes(out.Bytes(), plan)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), r.OfftargetsCount())

	sig0, err := r.SignatureAt(0)
	require.NoError(t, err)
	assert.Equal(t, signature.Signature(0), sig0) // all-A packs to 0

	// The duplicate line must have produced occurrences=2 for id 0.
	key := signature.Project(sig0, plan.Masks[0])
	recs, err := r.Lookup(0, key)
	require.NoError(t, err)
	var found bool
	for _, rec := range recs {
		if rec.ID() == 0 {
			assert.Equal(t, uint32(2), rec.Occurrences())
			found = true
		}
	}
	assert.True(t, found)
}

// parseFromBytes is a small test helper that mmaps-equivalent-parses a byte
// slice by reusing Reader.parse through an in-memory-backed Reader. Since
// Reader.parse only ever reads from r.data, we can drive it directly from a
// plain byte slice without touching the filesystem.
func parseFromBytes(data []byte, plan SlicePlan) (*Reader, error) {
	r := &Reader{data: data, plan: plan}
	if err := r.parse(); err != nil {
		return nil, err
	}
	return r, nil
}

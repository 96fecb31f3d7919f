// Copyright 2024 The CracklingPlusPlus Authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package scoring

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/CeSchmitz/CracklingPlusPlus/internal/bitset"
	"github.com/CeSchmitz/CracklingPlusPlus/issl"
	"github.com/CeSchmitz/CracklingPlusPlus/signature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildReader(t *testing.T, plan issl.SlicePlan, seeds []string) *issl.Reader {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "index.issl")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, issl.Build(strings.NewReader(strings.Join(seeds, "\n")+"\n"), plan, f))
	require.NoError(t, f.Close())
	r, err := issl.Open(path, plan)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

const (
	r1 = "AAAAAAAAAAAAAAAAAAAA"
	r2 = "AAAAAAAAAAAAAAAAAAAC" // 1 mismatch vs r1 at position 19
)

func TestConfigValidateRejectsBadThreshold(t *testing.T) {
	plan := issl.DefaultSlicePlan(5)
	r := buildReader(t, plan, []string{r1})
	_, err := NewEngine(r, Config{MaxDist: 4, Method: MIT, Threshold: 0})
	assert.Error(t, err)
	_, err = NewEngine(r, Config{MaxDist: 5, Method: MIT, Threshold: 50})
	assert.Error(t, err) // maxDist must be < sliceCount (pigeonhole)
	_, err = NewEngine(r, Config{MaxDist: 4, Method: Method(99), Threshold: 50})
	assert.Error(t, err)
}

func TestIndexPigeonholeEnumeratesNearbyOffTarget(t *testing.T) {
	plan := issl.DefaultSlicePlan(5)
	r := buildReader(t, plan, []string{r1, r2})
	e, err := NewEngine(r, Config{MaxDist: 4, Method: MIT, Threshold: 1})
	require.NoError(t, err)

	sig, err := signature.FromSequence(r1)
	require.NoError(t, err)
	seen := make(bitset.Set, bitset.Words(int(r.OfftargetsCount())))

	var sawR2 bool
	for i, mask := range plan.Masks {
		key := signature.Project(sig, mask)
		recs, lookupErr := r.Lookup(i, key)
		require.NoError(t, lookupErr)
		for _, rec := range recs {
			s, sigErr := r.SignatureAt(rec.ID())
			require.NoError(t, sigErr)
			if s.Sequence() == r2 {
				sawR2 = true
			}
		}
	}
	assert.True(t, sawR2)

	res, err := e.scoreOne(sig, seen)
	require.NoError(t, err)
	wantTotMit := mitLocalScore(1 << 19) // r2's single mismatch is at position 19
	assert.InDelta(t, 10000/(100+wantTotMit), res.MIT, 1e-9)
}

func TestMITPerfectMatch(t *testing.T) {
	plan := issl.DefaultSlicePlan(5)
	r := buildReader(t, plan, []string{r1})
	e, err := NewEngine(r, Config{MaxDist: 4, Method: MIT, Threshold: 1})
	require.NoError(t, err)

	results, err := e.ScoreBatch([]string{r1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 100.0, results[0].MIT, 1e-9)
	assert.Equal(t, -1.0, results[0].CFD)
}

func TestCFDPerfectMatch(t *testing.T) {
	plan := issl.DefaultSlicePlan(5)
	r := buildReader(t, plan, []string{r1})
	e, err := NewEngine(r, Config{MaxDist: 4, Method: CFD, Threshold: 1})
	require.NoError(t, err)

	results, err := e.ScoreBatch([]string{r1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 10000.0/101.0, results[0].CFD, 1e-6)
	assert.Equal(t, -1.0, results[0].MIT)
}

// TestEarlyExitStopsSliceScanning seeds an index with an off-target that
// differs from the query at a single, PAM-distal position (weight 0 in
// mitPositionWeight) with a large occurrence count, so its contribution
// alone drives totMit over maximum_sum as soon as its bucket is read. That
// off-target shares query buckets in every slice except the one containing
// the mismatched position (slice 0), so the engine must stop after the
// first slice it shares (slice 1) and never read the remaining ones.
func TestEarlyExitStopsSliceScanning(t *testing.T) {
	plan := issl.DefaultSlicePlan(5) // widths 4,4,4,4,4; slice 0 = positions [0,4)
	mutated := "CAAAAAAAAAAAAAAAAAAA"
	require.Len(t, mutated, 20)

	dir := t.TempDir()
	path := filepath.Join(dir, "index.issl")
	out, err := os.Create(path)
	require.NoError(t, err)
	occ := strings.Repeat(mutated+"\n", 300)
	require.NoError(t, issl.Build(strings.NewReader(r1+"\n"+occ), plan, out))
	require.NoError(t, out.Close())
	r, err := issl.Open(path, plan)
	require.NoError(t, err)
	defer r.Close()

	e, err := NewEngine(r, Config{MaxDist: 4, Method: MITOrCFD, Threshold: 50})
	require.NoError(t, err)

	var scanned []int
	e.onSliceLookup = func(i int) { scanned = append(scanned, i) }

	sig, err := signature.FromSequence(r1)
	require.NoError(t, err)
	seen := make(bitset.Set, bitset.Words(int(r.OfftargetsCount())))
	res, err := e.scoreOne(sig, seen)
	require.NoError(t, err)

	assert.LessOrEqual(t, res.MIT, 50.0)
	assert.Less(t, len(scanned), len(plan.Masks), "early exit must skip at least one slice")
	for _, i := range scanned {
		assert.Less(t, i, len(plan.Masks))
	}
}

func TestDeterminismAcrossThreadCounts(t *testing.T) {
	plan := issl.DefaultSlicePlan(5)
	r := buildReader(t, plan, []string{r1, r2, "GGGGGGGGGGGGGGGGGGGG", "TTTTTTTTTTTTTTTTTTTT"})

	guides := []string{r1, r2, "AAAAAAAAAAAAAAAAAAAG"}

	e1, err := NewEngine(r, Config{MaxDist: 4, Method: MITOrCFD, Threshold: 10, Threads: 1})
	require.NoError(t, err)
	res1, err := e1.ScoreBatch(guides)
	require.NoError(t, err)

	e4, err := NewEngine(r, Config{MaxDist: 4, Method: MITOrCFD, Threshold: 10, Threads: 4})
	require.NoError(t, err)
	res4, err := e4.ScoreBatch(guides)
	require.NoError(t, err)

	for i := range guides {
		assert.Equal(t, res1[i].MIT, res4[i].MIT)
		assert.Equal(t, res1[i].CFD, res4[i].CFD)
		assert.Equal(t, res1[i].Accepted, res4[i].Accepted)
	}
}

// Copyright 2024 The CracklingPlusPlus Authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package scoring

import (
	"sync"

	"github.com/CeSchmitz/CracklingPlusPlus/internal/bitset"
	"github.com/CeSchmitz/CracklingPlusPlus/issl"
	"github.com/CeSchmitz/CracklingPlusPlus/signature"
	"github.com/pkg/errors"
)

// mismatchMaskBits masks signature.MismatchMask's result down to the
// Length meaningful low bits.
const mismatchMaskBits = uint64(1)<<uint(signature.Length) - 1

// Result is the per-guide scoring outcome: the final MIT and CFD scores
// (-1 for an unused metric) and the accept/reject verdict.
type Result struct {
	Guide    string
	MIT      float64
	CFD      float64
	Accepted bool
}

// Engine computes, for a batch of candidate 20-mers, the aggregate MIT
// and/or CFD specificity score against an issl.Reader's indexed off-target
// population.
type Engine struct {
	cfg    Config
	reader *issl.Reader

	// onSliceLookup, when set, is called once per slice bucket read
	// performed by scoreOne, in slice order, before early exit is
	// evaluated. It exists only so tests can observe that early exit
	// actually stops slice scanning; production callers never set it.
	onSliceLookup func(sliceIdx int)
}

// NewEngine validates cfg against reader's slice plan and returns a ready
// Engine, or an error if cfg is invalid.
func NewEngine(reader *issl.Reader, cfg Config) (*Engine, error) {
	if err := cfg.validate(len(reader.Plan().Masks)); err != nil {
		return nil, err
	}
	if cfg.Threads <= 0 {
		cfg.Threads = 1
	}
	return &Engine{cfg: cfg, reader: reader}, nil
}

// ScoreBatch scores every guide in guides, returning one Result per guide
// in input order regardless of how work was scheduled across workers.
// Guides are statically partitioned across e.cfg.Threads workers by index
// modulo thread count, each worker owning one "seen" bitset for the
// lifetime of the call, since the full batch size is known up front.
func (e *Engine) ScoreBatch(guides []string) ([]Result, error) {
	sigs := make([]signature.Signature, len(guides))
	for i, g := range guides {
		sig, err := signature.FromSequence(g)
		if err != nil {
			return nil, errors.Wrapf(err, "scoring: guide %d (%q)", i, g)
		}
		sigs[i] = sig
	}

	results := make([]Result, len(guides))
	words := bitset.Words(int(e.reader.OfftargetsCount()))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for w := 0; w < e.cfg.Threads; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			seen := make(bitset.Set, words)
			for i := worker; i < len(guides); i += e.cfg.Threads {
				res, err := e.scoreOne(sigs[i], seen)
				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = errors.Wrapf(err, "scoring: guide %d (%q)", i, guides[i])
					}
					mu.Unlock()
					return
				}
				res.Guide = guides[i]
				results[i] = res
				seen.Clear()
			}
		}(w)
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

// scoreOne scores a single guide signature s against every indexed slice,
// reusing the caller-owned, already-cleared seen bitset.
func (e *Engine) scoreOne(s signature.Signature, seen bitset.Set) (Result, error) {
	plan := e.reader.Plan()
	maxSum := e.cfg.maximumSum()

	var totMit, totCfd float64
	wantMit := e.cfg.Method != CFD
	wantCfd := e.cfg.Method != MIT

	for i, mask := range plan.Masks {
		if e.onSliceLookup != nil {
			e.onSliceLookup(i)
		}
		key := signature.Project(s, mask)
		recs, err := e.reader.Lookup(i, key)
		if err != nil {
			return Result{}, err
		}
		for _, rec := range recs {
			id := rec.ID()
			if seen.TestAndSet(id) {
				continue
			}
			t, err := e.reader.SignatureAt(id)
			if err != nil {
				return Result{}, err
			}
			mask20 := uint64(signature.MismatchMask(s, t)) & mismatchMaskBits
			d := popcount64(mask20)
			if d > e.cfg.MaxDist {
				continue
			}
			occ := float64(rec.Occurrences())
			if d == 0 {
				totCfd += occ
				continue
			}
			if wantMit {
				totMit += mitLocalScore(mask20) * occ
			}
			if wantCfd {
				totCfd += cfdScore(s, t) * occ
			}
		}
		if e.earlyExit(totMit, totCfd, maxSum) {
			break
		}
	}

	finalMit, finalCfd := -1.0, -1.0
	if wantMit {
		finalMit = 10000 / (100 + totMit)
	}
	if wantCfd {
		finalCfd = 10000 / (100 + totCfd)
	}
	return Result{MIT: finalMit, CFD: finalCfd, Accepted: e.classify(finalMit, finalCfd)}, nil
}

// earlyExit reports whether the running totals already guarantee the
// final score(s) cannot reach cfg.Threshold, so remaining slices can be
// skipped.
func (e *Engine) earlyExit(totMit, totCfd, maxSum float64) bool {
	switch e.cfg.Method {
	case MIT:
		return totMit > maxSum
	case CFD:
		return totCfd > maxSum
	case MITAndCFD:
		return totMit > maxSum && totCfd > maxSum
	case MITOrCFD:
		return totMit > maxSum || totCfd > maxSum
	case AvgMITCFD:
		return (totMit+totCfd)/2 > maxSum
	default:
		return false
	}
}

// classify reports whether the final score(s) clear cfg.Threshold under
// the configured Method.
func (e *Engine) classify(finalMit, finalCfd float64) bool {
	switch e.cfg.Method {
	case MIT:
		return finalMit >= e.cfg.Threshold
	case CFD:
		return finalCfd >= e.cfg.Threshold
	case MITAndCFD:
		return finalMit >= e.cfg.Threshold && finalCfd >= e.cfg.Threshold
	case MITOrCFD:
		return finalMit >= e.cfg.Threshold || finalCfd >= e.cfg.Threshold
	case AvgMITCFD:
		return (finalMit+finalCfd)/2 >= e.cfg.Threshold
	default:
		return false
	}
}

func popcount64(x uint64) int {
	n := 0
	for x != 0 {
		x &= x - 1
		n++
	}
	return n
}

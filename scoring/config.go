// Copyright 2024 The CracklingPlusPlus Authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package scoring implements an off-target specificity scorer: given an
// issl.Reader and a batch of candidate guides, it enumerates indexed
// off-targets within a configured Hamming distance and aggregates MIT
// and/or CFD scores with early exit.
package scoring

import "github.com/pkg/errors"

// Method selects which specificity score(s) a guide is evaluated against,
// and which early-exit predicate governs slice scanning.
type Method int

const (
	MIT Method = iota
	CFD
	MITAndCFD
	MITOrCFD
	AvgMITCFD
)

func (m Method) String() string {
	switch m {
	case MIT:
		return "mit"
	case CFD:
		return "cfd"
	case MITAndCFD:
		return "mitAndCfd"
	case MITOrCFD:
		return "mitOrCfd"
	case AvgMITCFD:
		return "avgMitCfd"
	default:
		return "unknown"
	}
}

// ParseMethod maps a CLI flag value to a Method, returning a ConfigError
// for anything else.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "mit":
		return MIT, nil
	case "cfd":
		return CFD, nil
	case "mitAndCfd":
		return MITAndCFD, nil
	case "mitOrCfd":
		return MITOrCFD, nil
	case "avgMitCfd":
		return AvgMITCFD, nil
	default:
		return 0, errors.Errorf("scoring: unknown score method %q", s)
	}
}

// Config holds the tunable options of a scoring run.
type Config struct {
	// MaxDist is the maximum Hamming distance K scored; pairs beyond are
	// skipped. Must satisfy 0 <= MaxDist < slice count (the pigeonhole
	// constraint the index itself was built under).
	MaxDist int
	// Method selects the scored metric(s).
	Method Method
	// Threshold is the accept/reject cutoff on the final score(s), in
	// (0, 100].
	Threshold float64
	// Threads is the worker count for parallel scoring; <= 0 means 1.
	Threads int
}

// maximumSum computes the early-exit cap: the total weighted off-target
// sum beyond which the final score can no longer reach Threshold.
func (c Config) maximumSum() float64 {
	return (10000 - c.Threshold*100) / c.Threshold
}

// validate checks that cfg is usable, so a bad configuration fails at
// construction rather than mid-scoring.
func (c Config) validate(sliceCount int) error {
	if c.Threshold <= 0 || c.Threshold > 100 {
		return errors.Errorf("scoring: threshold %v must be in (0, 100]", c.Threshold)
	}
	if c.MaxDist < 0 || c.MaxDist >= sliceCount {
		return errors.Errorf("scoring: maxDist %d must satisfy 0 <= maxDist < sliceCount=%d", c.MaxDist, sliceCount)
	}
	switch c.Method {
	case MIT, CFD, MITAndCFD, MITOrCFD, AvgMITCFD:
	default:
		return errors.Errorf("scoring: unknown score method %d", c.Method)
	}
	return nil
}

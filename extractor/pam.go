// Copyright 2024 The CracklingPlusPlus Authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package extractor

import (
	"regexp"

	"github.com/CeSchmitz/CracklingPlusPlus/signature"
)

// siteWidth is the length of a PAM-flanked candidate site (20-nt seed plus
// the 3-nt NGG PAM, or its reverse-complement equivalent on the minus
// strand).
const siteWidth = signature.Length + 3

// forwardSite matches a site on the plus strand: [ACG][ACGT]{19}[ACGT][AG]G.
// The PAM is hard-coded to NGG; no other PAM is supported.
var forwardSite = regexp.MustCompile(`^[ACG][ACGT]{19}[ACGT][AG]G$`)

// reverseSite matches a site on the minus strand: C[CT][ACGT][ACGT]{19}[TGC].
var reverseSite = regexp.MustCompile(`^C[CT][ACGT][ACGT]{19}[TGC]$`)

// scanSeeds scans seq for every overlapping 23-nt window that matches
// forwardSite or reverseSite, appending the corresponding 20-nt seed to
// seeds. Scanning advances one position at a time so every matching
// starting position contributes a seed; no starting position is ever
// skipped.
func scanSeeds(seq string, seeds []string) []string {
	n := len(seq)
	if n < siteWidth {
		return seeds
	}
	for i := 0; i+siteWidth <= n; i++ {
		window := seq[i : i+siteWidth]
		if forwardSite.MatchString(window) {
			seeds = append(seeds, window[:signature.Length])
		}
		if reverseSite.MatchString(window) {
			seeds = append(seeds, signature.ReverseComplement(window[3:]))
		}
	}
	return seeds
}

// Copyright 2024 The CracklingPlusPlus Authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package signature

// revCompTable maps an upper-case ASCII base to its Watson-Crick
// complement; anything else maps to 'N', mirroring
// biosimd.ReverseComp8Inplace's table-driven approach (grailbio/bio
// biosimd/revcomp_generic.go) adapted from in-place byte-slice
// reverse-complementing to the extractor's string-oriented seed scanning.
var revCompTable = [256]byte{}

func init() {
	for i := range revCompTable {
		revCompTable[i] = 'N'
	}
	revCompTable['A'] = 'T'
	revCompTable['C'] = 'G'
	revCompTable['G'] = 'C'
	revCompTable['T'] = 'A'
}

// ReverseComplement returns the reverse complement of an upper-case ACGT
// string. Bytes outside A/C/G/T become 'N'.
func ReverseComplement(seq string) string {
	n := len(seq)
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[n-1-i] = revCompTable[seq[i]]
	}
	return string(out)
}

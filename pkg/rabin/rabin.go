// Copyright 2025 zhengshuai.xiao@outlook.com
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and

// Package rabin implements a Rabin fingerprint over a sliding window of
// bytes. The fingerprint is the residue of the window, read as a polynomial
// over GF(2), modulo an irreducible polynomial. Update slides the window one
// byte in O(1) using two precomputed 256-entry tables instead of rehashing
// the whole window.
package rabin

import "math/bits"

// Default parameters shared by all splitters. The polynomial is x^39+x^4+1
// (degree 39, low terms 0o21), taken from Plank's primitive polynomial table:
// https://web.eecs.utk.edu/~plank/plank/papers/CS-07-593/primitive-polynomial-table.txt
const (
	DefaultPoly      uint64 = 0o21
	DefaultDegree           = 39
	DefaultWindowLen        = 16
)

// Rabin holds the precomputed tables for one (polynomial, degree, window)
// triple. It carries no per-stream state and is safe to share between any
// number of concurrent users.
type Rabin struct {
	poly      uint64 // full polynomial, including the x^degree term
	degree    int
	windowLen int
	shift     uint // degree - 8, isolates the top byte of a hash

	// modTable[b] clears the top byte b of a hash shifted past the degree
	// and folds in its residue. outTable[b] is the contribution byte b
	// still has after windowLen-1 younger bytes entered the window.
	modTable [256]uint64
	outTable [256]uint64
}

// New builds the tables for the given polynomial. poly holds only the terms
// below x^degree. windowLen is the number of bytes the fingerprint covers.
func New(poly uint64, degree, windowLen int) *Rabin {
	r := &Rabin{
		poly:      poly | 1<<uint(degree),
		degree:    degree,
		windowLen: windowLen,
		shift:     uint(degree - 8),
	}
	for b := 0; b < 256; b++ {
		p := uint64(b) << uint(degree)
		r.modTable[b] = r.mod(p) | p
	}
	for b := 0; b < 256; b++ {
		h := uint64(b)
		for i := 0; i < windowLen-1; i++ {
			h = r.appendByte(h, 0)
		}
		r.outTable[b] = h
	}
	return r
}

// Update slides the window one byte: in enters, out leaves. The returned
// hash is always below 2^degree. An out byte of 0 contributes nothing, so a
// zero-filled window behaves as if only the real bytes had been fed.
func (r *Rabin) Update(hash uint64, in, out byte) uint64 {
	hash ^= r.outTable[out]
	return ((hash << 8) | uint64(in)) ^ r.modTable[hash>>r.shift]
}

// Degree returns the degree of the polynomial, i.e. the hash width in bits.
func (r *Rabin) Degree() int { return r.degree }

// WindowLen returns the number of bytes the fingerprint depends on.
func (r *Rabin) WindowLen() int { return r.windowLen }

func (r *Rabin) appendByte(hash uint64, b byte) uint64 {
	return ((hash << 8) | uint64(b)) ^ r.modTable[hash>>r.shift]
}

// mod reduces p modulo the full polynomial.
func (r *Rabin) mod(p uint64) uint64 {
	d := deg(r.poly)
	for dp := deg(p); dp >= d; dp = deg(p) {
		p ^= r.poly << uint(dp-d)
	}
	return p
}

// deg returns the degree of p, or -1 for p == 0.
func deg(p uint64) int { return bits.Len64(p) - 1 }

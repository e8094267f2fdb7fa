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

// Package splitter implements content-defined chunking over a byte stream
// delivered in arbitrary fragments. Boundaries depend only on a Rabin
// fingerprint of the most recent bytes, so identical byte runs produce
// identical chunks at any offset in any stream. The splitter can also
// compute whole-stream MD5/SHA256 digests on the side, touching every byte
// exactly once.
package splitter

import (
	"crypto/md5"
	"crypto/sha256"
	"fmt"
	"hash"

	"github.com/zhengshuai-xiao/SplitterS/pkg/rabin"
)

// rollhash is fixed at build time and shared by all Splitter instances; it
// is stateless, only the tables live here. Making the parameters dynamic
// buys nothing and costs the inner loop.
var rollhash = rabin.New(rabin.DefaultPoly, rabin.DefaultDegree, rabin.DefaultWindowLen)

// Config fixes a Splitter's behavior at construction.
type Config struct {
	// MinChunk is the minimum chunk length in bytes; bytes below it are
	// never considered for a boundary. Must be > 0.
	MinChunk int
	// MaxChunk forces a boundary once a chunk reaches this length.
	// Must be >= MinChunk.
	MaxChunk int
	// AvgChunkBits sets the expected chunk length to about 2^AvgChunkBits
	// bytes when the min/max clamps do not dominate. 0 makes every
	// position past MinChunk a boundary.
	AvgChunkBits uint
	// CalcMD5/CalcSHA256 enable whole-stream digests, computed over every
	// pushed byte independent of chunk boundaries.
	CalcMD5    bool
	CalcSHA256 bool
}

// Splitter scans one logical stream, pushed in any number of fragments, and
// records a boundary every time the rolling hash marks one. It is not safe
// for concurrent use; run one Splitter per in-flight stream.
type Splitter struct {
	conf    Config
	avgMask uint64

	window   window
	chunkPos int    // bytes consumed into the current, unclosed chunk
	hash     uint64 // rolling hash state, meaningful only past MinChunk

	chunks []int

	md5Hash    hash.Hash
	sha256Hash hash.Hash
}

// New validates conf and returns a Splitter with an empty window and no
// pending chunk.
func New(conf Config) (*Splitter, error) {
	if conf.MinChunk <= 0 {
		return nil, fmt.Errorf("splitter: min chunk must be positive, got %d", conf.MinChunk)
	}
	if conf.MinChunk > conf.MaxChunk {
		return nil, fmt.Errorf("splitter: min chunk %d exceeds max chunk %d", conf.MinChunk, conf.MaxChunk)
	}
	s := &Splitter{
		conf:    conf,
		avgMask: 1<<conf.AvgChunkBits - 1,
		window:  newWindow(rollhash.WindowLen()),
	}
	if conf.CalcMD5 {
		s.md5Hash = md5.New()
	}
	if conf.CalcSHA256 {
		s.sha256Hash = sha256.New()
	}
	return s, nil
}

// Push feeds the next fragment of the stream. It appends zero or more
// completed chunk lengths to Chunks and keeps any partial chunk state for
// the next call: splitting a stream across pushes in any way yields exactly
// the same chunks and digests as one big push. A zero-length fragment is a
// no-op.
func (s *Splitter) Push(data []byte) {
	if s.md5Hash != nil {
		s.md5Hash.Write(data)
	}
	if s.sha256Hash != nil {
		s.sha256Hash.Write(data)
	}
	for {
		rest, boundary := s.nextPoint(data)
		if !boundary {
			return
		}
		s.chunks = append(s.chunks, s.chunkPos)
		s.chunkPos = 0
		data = rest
	}
}

// Chunks returns the lengths of all chunks closed so far, in stream order.
// The slice is owned by the Splitter; callers must not modify it.
func (s *Splitter) Chunks() []int { return s.chunks }

// Pending returns the number of bytes consumed into the current, not yet
// closed chunk. The sum of Chunks plus Pending equals the total bytes ever
// pushed. The splitter never closes this trailing run on its own, not even
// in Finish; a short tail is the caller's to flush.
func (s *Splitter) Pending() int { return s.chunkPos }

// Finish finalizes the enabled digests. Digests not enabled at construction
// come back nil. Push must not be called afterwards.
func (s *Splitter) Finish() (md5Sum, sha256Sum []byte) {
	if s.md5Hash != nil {
		md5Sum = s.md5Hash.Sum(nil)
	}
	if s.sha256Hash != nil {
		sha256Sum = s.sha256Hash.Sum(nil)
	}
	return md5Sum, sha256Sum
}

// nextPoint advances through data looking for the next boundary. It returns
// the unconsumed remainder and whether a boundary was found; with no
// boundary the whole input is consumed and the scan state is kept for the
// next call. This loop touches every byte of the stream, so the hot state
// lives in locals.
func (s *Splitter) nextPoint(data []byte) (rest []byte, boundary bool) {
	chunkPos := s.chunkPos
	total := chunkPos + len(data)
	min := s.conf.MinChunk
	if total < min {
		min = total
	}
	max := s.conf.MaxChunk
	if total < max {
		max = total
	}
	h := s.hash

	// A boundary is never accepted below the minimum, so bytes up to it
	// skip the window and the hash entirely.
	if chunkPos < min {
		data = data[min-chunkPos:]
		chunkPos = min
	}

	for chunkPos < max {
		b := data[0]
		h = rollhash.Update(h, b, s.window.push(b))
		data = data[1:]
		chunkPos++
		if h&s.avgMask == s.avgMask {
			boundary = true
			break
		}
	}

	if boundary || chunkPos >= s.conf.MaxChunk {
		s.window.reset()
		s.chunkPos = chunkPos
		s.hash = 0
		return data, true
	}
	s.chunkPos = chunkPos
	s.hash = h
	return nil, false
}

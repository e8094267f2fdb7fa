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
package dedup

import (
	"io"

	"github.com/zhengshuai-xiao/SplitterS/pkg/splitter"
)

const chunkerReadSize = 256 * 1024

// Chunker is an interface that returns the next chunk from a stream.
type Chunker interface {
	Next() (Chunk, error)
}

// CDC is an interface for creating chunkers from a reader.
type CDC interface {
	NewChunker(r io.Reader) (Chunker, error)
}

// DigestChunker is a Chunker that also digests the whole stream while
// chunking it. Sums is only meaningful once Next has returned io.EOF.
type DigestChunker interface {
	Chunker
	Sums() (md5Sum, sha256Sum []byte)
}

// RabinCDC implements the CDC interface on top of the rabin splitter.
type RabinCDC struct {
	MinChunkSize int
	MaxChunkSize int
	AvgChunkBits uint
	// CalcDigests also computes whole-stream MD5/SHA256 while chunking,
	// exposed through the DigestChunker interface.
	CalcDigests bool
}

// NewChunker creates a chunker that reads from r and produces variable-size
// chunks with rabin-fingerprint boundaries.
func (f *RabinCDC) NewChunker(r io.Reader) (Chunker, error) {
	sp, err := splitter.New(splitter.Config{
		MinChunk:     f.MinChunkSize,
		MaxChunk:     f.MaxChunkSize,
		AvgChunkBits: f.AvgChunkBits,
		CalcMD5:      f.CalcDigests,
		CalcSHA256:   f.CalcDigests,
	})
	if err != nil {
		return nil, err
	}
	return &rabinChunker{
		sp:  sp,
		r:   r,
		buf: make([]byte, chunkerReadSize),
	}, nil
}

// rabinChunker drives the push-based splitter from an io.Reader. The
// splitter only reports chunk lengths; the raw bytes of the open chunk are
// retained here until a boundary closes them.
type rabinChunker struct {
	sp      *splitter.Splitter
	r       io.Reader
	buf     []byte
	pending []byte // pushed bytes not yet emitted as chunks
	queue   []int  // closed chunk lengths not yet emitted
	taken   int    // lengths already drained from the splitter
	off     uint64
	eof     bool

	md5Sum    []byte
	sha256Sum []byte
}

// Next returns the next content-defined chunk. The splitter never closes
// the trailing run on its own, so at EOF the pending remainder (possibly
// shorter than the minimum chunk size) is emitted as the final chunk.
func (c *rabinChunker) Next() (Chunk, error) {
	for len(c.queue) == 0 && !c.eof {
		n, err := c.r.Read(c.buf)
		if n > 0 {
			c.sp.Push(c.buf[:n])
			c.pending = append(c.pending, c.buf[:n]...)
			lens := c.sp.Chunks()
			c.queue = append(c.queue, lens[c.taken:]...)
			c.taken = len(lens)
		}
		if err == io.EOF {
			c.eof = true
			c.md5Sum, c.sha256Sum = c.sp.Finish()
		} else if err != nil {
			return Chunk{}, err
		}
	}

	var n int
	if len(c.queue) > 0 {
		n = c.queue[0]
		c.queue = c.queue[1:]
	} else {
		// EOF: flush the short tail, if any.
		n = len(c.pending)
		if n == 0 {
			return Chunk{}, io.EOF
		}
	}

	data := make([]byte, n)
	copy(data, c.pending)
	c.pending = append(c.pending[:0], c.pending[n:]...)

	chunk := Chunk{
		Data: data,
		Off:  c.off,
		Len:  uint64(n),
	}
	c.off += uint64(n)
	return chunk, nil
}

// Sums returns the whole-stream digests, nil unless CalcDigests was set and
// the stream has been fully consumed.
func (c *rabinChunker) Sums() (md5Sum, sha256Sum []byte) {
	return c.md5Sum, c.sha256Sum
}

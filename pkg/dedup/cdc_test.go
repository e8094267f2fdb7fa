package dedup

import (
	"bytes"
	"crypto/md5"
	"crypto/sha256"
	"io"
	"math/rand"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhengshuai-xiao/SplitterS/pkg/splitter"
)

func drainChunker(t *testing.T, c Chunker) []Chunk {
	t.Helper()
	var chunks []Chunk
	for {
		chunk, err := c.Next()
		if err == io.EOF {
			return chunks
		}
		require.NoError(t, err)
		chunks = append(chunks, chunk)
	}
}

func TestRabinChunkerMatchesSplitter(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	data := make([]byte, 1<<20)
	rnd.Read(data)

	cdc := &RabinCDC{MinChunkSize: 3 * 1024, MaxChunkSize: 64 * 1024, AvgChunkBits: 13}
	chunker, err := cdc.NewChunker(bytes.NewReader(data))
	require.NoError(t, err)
	chunks := drainChunker(t, chunker)

	sp, err := splitter.New(splitter.Config{MinChunk: 3 * 1024, MaxChunk: 64 * 1024, AvgChunkBits: 13})
	require.NoError(t, err)
	sp.Push(data)
	want := sp.Chunks()
	if sp.Pending() > 0 {
		want = append(want, sp.Pending())
	}

	require.Len(t, chunks, len(want))
	var off uint64
	var reassembled []byte
	for i, chunk := range chunks {
		assert.Equal(t, want[i], int(chunk.Len))
		assert.Equal(t, off, chunk.Off)
		assert.Equal(t, int(chunk.Len), len(chunk.Data))
		off += chunk.Len
		reassembled = append(reassembled, chunk.Data...)
	}
	assert.Equal(t, data, reassembled)
}

func TestRabinChunkerFragmentationIndependence(t *testing.T) {
	rnd := rand.New(rand.NewSource(11))
	data := make([]byte, 256*1024)
	rnd.Read(data)

	cdc := &RabinCDC{MinChunkSize: 1024, MaxChunkSize: 8 * 1024, AvgChunkBits: 11}

	whole, err := cdc.NewChunker(bytes.NewReader(data))
	require.NoError(t, err)
	wholeChunks := drainChunker(t, whole)

	// A reader that returns one byte at a time must produce the same cut points.
	tiny, err := cdc.NewChunker(iotest.OneByteReader(bytes.NewReader(data)))
	require.NoError(t, err)
	tinyChunks := drainChunker(t, tiny)

	require.Len(t, tinyChunks, len(wholeChunks))
	for i := range wholeChunks {
		assert.Equal(t, wholeChunks[i].Len, tinyChunks[i].Len)
		assert.Equal(t, wholeChunks[i].Data, tinyChunks[i].Data)
	}
}

func TestRabinChunkerDigests(t *testing.T) {
	rnd := rand.New(rand.NewSource(13))
	data := make([]byte, 100*1024)
	rnd.Read(data)

	cdc := &RabinCDC{MinChunkSize: 1024, MaxChunkSize: 8 * 1024, AvgChunkBits: 11, CalcDigests: true}
	chunker, err := cdc.NewChunker(bytes.NewReader(data))
	require.NoError(t, err)
	drainChunker(t, chunker)

	dc, ok := chunker.(DigestChunker)
	require.True(t, ok)
	md5Sum, sha256Sum := dc.Sums()

	wantMD5 := md5.Sum(data)
	wantSHA := sha256.Sum256(data)
	assert.Equal(t, wantMD5[:], md5Sum)
	assert.Equal(t, wantSHA[:], sha256Sum)
}

func TestRabinChunkerDigestsDisabled(t *testing.T) {
	cdc := &RabinCDC{MinChunkSize: 1024, MaxChunkSize: 8 * 1024, AvgChunkBits: 11}
	chunker, err := cdc.NewChunker(bytes.NewReader([]byte("some data")))
	require.NoError(t, err)
	drainChunker(t, chunker)

	dc, ok := chunker.(DigestChunker)
	require.True(t, ok)
	md5Sum, sha256Sum := dc.Sums()
	assert.Nil(t, md5Sum)
	assert.Nil(t, sha256Sum)
}

func TestRabinChunkerEmptyStream(t *testing.T) {
	cdc := &RabinCDC{MinChunkSize: 1024, MaxChunkSize: 8 * 1024, AvgChunkBits: 11, CalcDigests: true}
	chunker, err := cdc.NewChunker(bytes.NewReader(nil))
	require.NoError(t, err)

	_, err = chunker.Next()
	assert.Equal(t, io.EOF, err)

	dc := chunker.(DigestChunker)
	md5Sum, sha256Sum := dc.Sums()
	wantMD5 := md5.Sum(nil)
	wantSHA := sha256.Sum256(nil)
	assert.Equal(t, wantMD5[:], md5Sum)
	assert.Equal(t, wantSHA[:], sha256Sum)
}

func TestRabinChunkerShortStream(t *testing.T) {
	// Shorter than the minimum chunk size: the whole stream comes out as
	// one trailing chunk.
	data := []byte("tiny payload")
	cdc := &RabinCDC{MinChunkSize: 1024, MaxChunkSize: 8 * 1024, AvgChunkBits: 11}
	chunker, err := cdc.NewChunker(bytes.NewReader(data))
	require.NoError(t, err)

	chunks := drainChunker(t, chunker)
	require.Len(t, chunks, 1)
	assert.Equal(t, data, chunks[0].Data)
	assert.Equal(t, uint64(0), chunks[0].Off)
}

func TestRabinChunkerInvalidConfig(t *testing.T) {
	cdc := &RabinCDC{MinChunkSize: 8 * 1024, MaxChunkSize: 1024, AvgChunkBits: 11}
	_, err := cdc.NewChunker(bytes.NewReader(nil))
	assert.Error(t, err)
}

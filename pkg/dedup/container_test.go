package dedup

import (
	"bytes"
	"context"
	"math/rand"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChunks(t *testing.T, seed int64, sizes ...int) []Chunk {
	t.Helper()
	rnd := rand.New(rand.NewSource(seed))
	chunks := make([]Chunk, len(sizes))
	var off uint64
	for i, size := range sizes {
		data := make([]byte, size)
		rnd.Read(data)
		chunks[i] = Chunk{Data: data, Off: off, Len: uint64(size)}
		off += uint64(size)
	}
	CalcFPs(chunks)
	return chunks
}

func TestContainerWriteRead(t *testing.T) {
	for _, comp := range []string{"none", "snappy", "zlib"} {
		t.Run(comp, func(t *testing.T) {
			ctx := context.Background()
			backend := NewPOSIXBackend(t.TempDir())
			mds := new(MockMDS)
			mds.On("GetIncreasedDCID").Return(uint64(1), nil).Once()

			mgr, err := NewDataContainerMgr(ctx, mds, backend, "ns", comp)
			require.NoError(t, err)

			chunks := newTestChunks(t, 1, 4096, 100, 32*1024)
			written, _, err := mgr.WriteChunks(chunks)
			require.NoError(t, err)
			assert.Greater(t, written, 0)
			require.NoError(t, mgr.Finalize())

			for _, c := range chunks {
				assert.False(t, c.Deduped)
				assert.Equal(t, uint64(1), c.DCID)
			}

			reader, err := OpenDCReader(ctx, backend, "ns", 1)
			require.NoError(t, err)
			defer reader.Close()

			for _, c := range chunks {
				data, err := reader.ReadChunk(c.FP)
				require.NoError(t, err)
				assert.Equal(t, c.Data, data)
			}

			_, err = reader.ReadChunk(testFP(0xEE))
			assert.Error(t, err)

			mds.AssertExpectations(t)
		})
	}
}

func TestContainerDedupedChunksSkipped(t *testing.T) {
	ctx := context.Background()
	backend := NewPOSIXBackend(t.TempDir())
	mds := new(MockMDS) // GetIncreasedDCID must not be called

	mgr, err := NewDataContainerMgr(ctx, mds, backend, "ns", "none")
	require.NoError(t, err)

	chunks := newTestChunks(t, 2, 1024, 2048)
	for i := range chunks {
		chunks[i].Deduped = true
		chunks[i].DCID = 42
	}

	written, _, err := mgr.WriteChunks(chunks)
	require.NoError(t, err)
	assert.Zero(t, written)
	require.NoError(t, mgr.Finalize())
	mds.AssertExpectations(t)
}

func TestContainerRepeatedFPWithinBatch(t *testing.T) {
	ctx := context.Background()
	backend := NewPOSIXBackend(t.TempDir())
	mds := new(MockMDS)
	mds.On("GetIncreasedDCID").Return(uint64(3), nil).Once()

	mgr, err := NewDataContainerMgr(ctx, mds, backend, "ns", "none")
	require.NoError(t, err)

	payload := bytes.Repeat([]byte("x"), 512)
	chunks := []Chunk{
		{Data: payload, Len: 512},
		{Data: payload, Len: 512, Off: 512},
	}
	CalcFPs(chunks)

	written, _, err := mgr.WriteChunks(chunks)
	require.NoError(t, err)
	// The second occurrence dedupes against the first within the batch.
	assert.Equal(t, 512, written)
	assert.True(t, chunks[1].Deduped)
	assert.Equal(t, uint64(3), chunks[1].DCID)
	require.NoError(t, mgr.Finalize())
	mds.AssertExpectations(t)
}

func TestContainerRollover(t *testing.T) {
	ctx := context.Background()
	backend := NewPOSIXBackend(t.TempDir())
	mds := new(MockMDS)
	mds.On("GetIncreasedDCID").Return(uint64(1), nil).Once()
	mds.On("GetIncreasedDCID").Return(uint64(2), nil).Once()

	mgr, err := NewDataContainerMgr(ctx, mds, backend, "ns", "none")
	require.NoError(t, err)

	// Two chunks of 9MiB cannot share a 16MiB container.
	chunks := newTestChunks(t, 3, 9<<20, 9<<20)
	_, _, err = mgr.WriteChunks(chunks)
	require.NoError(t, err)
	require.NoError(t, mgr.Finalize())

	assert.Equal(t, uint64(1), chunks[0].DCID)
	assert.Equal(t, uint64(2), chunks[1].DCID)

	for _, c := range chunks {
		reader, err := OpenDCReader(ctx, backend, "ns", c.DCID)
		require.NoError(t, err)
		data, err := reader.ReadChunk(c.FP)
		require.NoError(t, err)
		assert.Equal(t, c.Data, data)
		reader.Close()
	}
	mds.AssertExpectations(t)
}

func TestContainerCRCDetectsCorruption(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	backend := NewPOSIXBackend(root)
	mds := new(MockMDS)
	mds.On("GetIncreasedDCID").Return(uint64(1), nil).Once()

	mgr, err := NewDataContainerMgr(ctx, mds, backend, "ns", "none")
	require.NoError(t, err)

	chunks := newTestChunks(t, 4, 4096)
	_, _, err = mgr.WriteChunks(chunks)
	require.NoError(t, err)
	require.NoError(t, mgr.Finalize())

	// Flip a payload byte behind the header.
	path, err := backend.Download(ctx, "ns", 1)
	require.NoError(t, err)
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	require.NoError(t, err)
	buf := []byte{0}
	_, err = f.ReadAt(buf, headerSize)
	require.NoError(t, err)
	buf[0] ^= 0xFF
	_, err = f.WriteAt(buf, headerSize)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	reader, err := OpenDCReader(ctx, backend, "ns", 1)
	require.NoError(t, err)
	defer reader.Close()

	_, err = reader.ReadChunk(chunks[0].FP)
	assert.ErrorContains(t, err, "crc mismatch")
}

func TestOpenDCReaderRejectsGarbage(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	backend := NewPOSIXBackend(root)

	// Plant a bogus file where the backend expects DCID 5.
	path, _ := backend.Download(ctx, "ns", 5)
	require.NoError(t, os.MkdirAll(root+"/0", 0755))
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte{0xAB}, 64), 0644))

	_, err := OpenDCReader(ctx, backend, "ns", 5)
	assert.ErrorContains(t, err, "invalid magic number")
}

package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFPLocalCacheDedup(t *testing.T) {
	mds := new(MockMDS)
	mds.On("LoadFPCache", "ns").Return(map[string]uint64{
		testFP(1): 10,
		testFP(2): 20,
	}, nil).Once()

	cache, err := NewFPLocalCache(mds, "ns")
	require.NoError(t, err)

	chunks := []Chunk{
		{FP: testFP(1)},
		{FP: testFP(3)},
		{FP: testFP(2), Deduped: true, DCID: 99}, // already resolved upstream
	}
	require.NoError(t, cache.DedupFPsBatch("ns", chunks))

	assert.True(t, chunks[0].Deduped)
	assert.Equal(t, uint64(10), chunks[0].DCID)
	assert.False(t, chunks[1].Deduped)
	assert.Equal(t, uint64(99), chunks[2].DCID, "already-deduped chunks are left alone")

	mds.AssertExpectations(t)
}

func TestFPLocalCacheInsert(t *testing.T) {
	mds := new(MockMDS)
	cache, err := NewFPLocalCache(mds)
	require.NoError(t, err)

	require.NoError(t, cache.InsertFPsBatch("ns", []ChunkInManifest{
		{FP: testFP(7), DCID: 7},
	}))

	chunks := []Chunk{{FP: testFP(7)}}
	require.NoError(t, cache.DedupFPsBatch("ns", chunks))
	assert.True(t, chunks[0].Deduped)
	assert.Equal(t, uint64(7), chunks[0].DCID)
}

func TestFPLocalCacheUnknownNamespace(t *testing.T) {
	mds := new(MockMDS)
	cache, err := NewFPLocalCache(mds)
	require.NoError(t, err)

	chunks := []Chunk{{FP: testFP(1)}}
	require.NoError(t, cache.DedupFPsBatch("missing", chunks))
	assert.False(t, chunks[0].Deduped)
}

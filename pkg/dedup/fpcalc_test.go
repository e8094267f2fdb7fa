package dedup

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalcFPs(t *testing.T) {
	chunks := []Chunk{
		{Data: []byte("hello"), Len: 5},
		{Data: []byte("world"), Len: 5},
		{Data: []byte(""), Len: 0},
	}

	CalcFPs(chunks)

	h1 := sha256.Sum256([]byte("hello"))
	assert.Equal(t, string(h1[:]), chunks[0].FP)
	assert.Len(t, chunks[0].FP, FPLen, "Fingerprint should be 32 bytes (SHA256)")

	h2 := sha256.Sum256([]byte("world"))
	assert.Equal(t, string(h2[:]), chunks[1].FP)

	h3 := sha256.Sum256([]byte(""))
	assert.Equal(t, string(h3[:]), chunks[2].FP)
}

func TestGetDCName(t *testing.T) {
	assert.Equal(t, "dc_00000001", GetDCName(1))
	assert.Equal(t, "dc_00001024", GetDCName(1024))
}

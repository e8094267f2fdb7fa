package dedup

import (
	"crypto/sha256"

	"github.com/zhengshuai-xiao/SplitterS/internal"
)

// CalcFP fingerprints one chunk with SHA256 over its payload.
func CalcFP(c *Chunk) {
	sum := sha256.Sum256(c.Data)
	c.FP = string(sum[:])
	logger.Tracef("CalcFP:fp:%s", internal.StringToHex(c.FP))
}

// CalcFPs fingerprints a batch of chunks in place.
func CalcFPs(chunks []Chunk) {
	for i := range chunks {
		CalcFP(&chunks[i])
	}
}

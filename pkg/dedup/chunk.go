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

import "fmt"

// FPLen is the byte length of a chunk fingerprint (SHA256).
const FPLen = 32

// Chunk is one content-defined piece of a stream, carried through the
// write path: fingerprinted, checked against the index, then either marked
// deduped or written into a data container.
type Chunk struct {
	FP      string
	Data    []byte
	Off     uint64
	Len     uint64
	Deduped bool
	DCID    uint64
}

// ChunkInManifest is the per-chunk record persisted in an object manifest.
type ChunkInManifest struct {
	FP   string
	Len  uint64
	DCID uint64
}

// GetDCName returns the object key name of a data container.
func GetDCName(dcid uint64) string {
	return fmt.Sprintf("dc_%08d", dcid)
}

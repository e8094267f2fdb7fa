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

// Config carries the knobs of the dedup store: the metadata service, the
// chunker and the data-container write path.
type Config struct {
	Namespace string
	Retries   int // redis command retries

	// chunking
	MinChunkSize int
	MaxChunkSize int
	AvgChunkBits uint
	CalcDigests  bool

	// data containers
	Compression string // none, zlib, snappy
	CacheDir    string // local staging area for containers
	FPCacheOn   bool   // warm a local fingerprint cache from the MDS
}

// DefaultConfig returns the config the CLI starts from: 16MiB containers,
// rabin chunks around 8KiB, digests on.
func DefaultConfig() *Config {
	return &Config{
		Namespace:    "default",
		Retries:      3,
		MinChunkSize: 3 * 1024,
		MaxChunkSize: 64 * 1024,
		AvgChunkBits: 13,
		CalcDigests:  true,
		Compression:  "none",
		CacheDir:     "/var/splitters/cache",
		FPCacheOn:    true,
	}
}

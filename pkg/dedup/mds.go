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

import "time"

// ObjectInfo is the per-object record kept in the metadata service. The
// manifest itself lives elsewhere; ManifestID names it.
type ObjectInfo struct {
	Name       string
	Size       uint64
	ETag       string // hex MD5 of the whole stream, empty when digests are off
	Checksum   string // hex SHA256 of the whole stream, empty when digests are off
	ManifestID string
	Chunks     uint64
	Created    time.Time
}

// MDS is the metadata service used by the dedup store: a fingerprint index,
// a DCID allocator, and object records.
type MDS interface {
	// Name of database
	Name() string
	// Shutdown closes current database connections.
	Shutdown() error
	GetIncreasedDCID() (uint64, error)
	NewManifestID() (string, error)
	// DedupFPsBatch marks chunks whose fingerprint already exists in the
	// index, filling in Deduped and DCID.
	DedupFPsBatch(namespace string, chunks []Chunk) error
	InsertFPsBatch(namespace string, chunks []ChunkInManifest) error
	// LoadFPCache returns the whole fingerprint index of a namespace,
	// used to warm the local cache.
	LoadFPCache(namespace string) (map[string]uint64, error)
	PutObjectMeta(namespace string, object ObjectInfo) error
	GetObjectMeta(namespace string, name string) (ObjectInfo, error)
	ListObjects(namespace string, prefix string) ([]ObjectInfo, error)
	DelObjectMeta(namespace string, name string) error
}

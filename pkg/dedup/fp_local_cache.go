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
	"sync"
)

// FPLocalCache provides a fast, in-memory cache for fingerprint to DCID
// mappings. It is populated from the MDS on startup and kept in sync with
// writes. It is safe for concurrent use.
type FPLocalCache struct {
	mu                sync.RWMutex
	cachesByNamespace map[string]map[string]uint64 // Key: namespace, Value: map[FP] -> DCID
	mds               MDS
}

// NewFPLocalCache creates a fingerprint cache warmed from the MDS index of
// the given namespaces.
func NewFPLocalCache(mds MDS, namespaces ...string) (*FPLocalCache, error) {
	cache := &FPLocalCache{
		cachesByNamespace: make(map[string]map[string]uint64),
		mds:               mds,
	}
	for _, ns := range namespaces {
		if err := cache.LoadForNamespace(ns); err != nil {
			return nil, err
		}
	}
	return cache, nil
}

// LoadForNamespace replaces the local cache of one namespace with the full
// fingerprint index from the MDS.
func (c *FPLocalCache) LoadForNamespace(namespace string) error {
	fpMap, err := c.mds.LoadFPCache(namespace)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cachesByNamespace[namespace] = fpMap
	logger.Infof("Loaded %d fingerprints into local cache for namespace %s.", len(fpMap), namespace)
	return nil
}

// DedupFPsBatch checks a batch of chunks against the local cache for a given namespace.
// It updates the Deduped and DCID fields of the chunks in place.
func (c *FPLocalCache) DedupFPsBatch(namespace string, chunks []Chunk) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	nsCache, ok := c.cachesByNamespace[namespace]
	if !ok {
		// If the namespace cache doesn't exist, none of the chunks can be
		// deduped locally. The caller will proceed to check the persistent MDS.
		logger.Warnf("DedupFPsBatch: local FP cache for namespace '%s' not found.", namespace)
		return nil
	}

	for i := range chunks {
		if chunks[i].Deduped {
			continue // Already deduped by a higher-level cache (e.g., intra-object)
		}
		if dcid, ok := nsCache[chunks[i].FP]; ok {
			chunks[i].Deduped = true
			chunks[i].DCID = dcid
		}
	}
	return nil
}

// InsertFPsBatch adds a batch of new fingerprint-to-DCID mappings to the local cache.
// This method only updates the in-memory cache. The caller is responsible for
// persisting these entries to the metadata store beforehand.
func (c *FPLocalCache) InsertFPsBatch(namespace string, chunks []ChunkInManifest) error {
	if len(chunks) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	nsCache, ok := c.cachesByNamespace[namespace]
	if !ok {
		nsCache = make(map[string]uint64)
		c.cachesByNamespace[namespace] = nsCache
	}
	for _, chunk := range chunks {
		nsCache[chunk.FP] = chunk.DCID
	}
	return nil
}

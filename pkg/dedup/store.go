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

// Package dedup implements a content-addressed backup store: streams are
// cut into rabin chunks, fingerprinted, deduplicated against a metadata
// service and packed into data containers on a storage backend.
package dedup

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/zhengshuai-xiao/SplitterS/internal"
)

var logger = internal.GetLogger("dedup")

// fpBatchSize is how many chunks are fingerprinted and looked up per round
// trip to the metadata service.
const fpBatchSize = 256

// Store ties the chunker, the metadata service, the manifest store and a
// data-container backend into one backup/restore surface.
type Store struct {
	conf      *Config
	mds       MDS
	backend   DataContainerBackend
	manifests *ManifestStore
	fpCache   *FPLocalCache
	cdc       CDC
}

// NewStore wires up a dedup store. When conf.FPCacheOn is set the local
// fingerprint cache is warmed from the MDS index of conf.Namespace.
func NewStore(conf *Config, mds MDS, backend DataContainerBackend) (*Store, error) {
	s := &Store{
		conf:      conf,
		mds:       mds,
		backend:   backend,
		manifests: NewManifestStore(conf.CacheDir),
		cdc: &RabinCDC{
			MinChunkSize: conf.MinChunkSize,
			MaxChunkSize: conf.MaxChunkSize,
			AvgChunkBits: conf.AvgChunkBits,
			CalcDigests:  conf.CalcDigests,
		},
	}
	if conf.FPCacheOn {
		fpCache, err := NewFPLocalCache(mds, conf.Namespace)
		if err != nil {
			return nil, fmt.Errorf("failed to warm fingerprint cache: %w", err)
		}
		s.fpCache = fpCache
	}
	return s, nil
}

// Shutdown closes the metadata service connection.
func (s *Store) Shutdown() error {
	return s.mds.Shutdown()
}

// Backup chunks and deduplicates r, writes new chunks into data containers
// and records the object under name. Returns the stored object info.
func (s *Store) Backup(ctx context.Context, name string, r io.Reader) (ObjectInfo, error) {
	var objInfo ObjectInfo
	start := time.Now()

	chunker, err := s.cdc.NewChunker(r)
	if err != nil {
		return objInfo, err
	}
	mgr, err := NewDataContainerMgr(ctx, s.mds, s.backend, s.conf.Namespace, s.conf.Compression)
	if err != nil {
		return objInfo, err
	}

	var (
		manifestList   []ChunkInManifest
		totalSize      uint64
		totalWriteSize uint64
		totalChunks    uint64
		batch          = make([]Chunk, 0, fpBatchSize)
		eof            bool
	)
	for !eof {
		batch = batch[:0]
		for len(batch) < fpBatchSize {
			chunk, err := chunker.Next()
			if err == io.EOF {
				eof = true
				break
			}
			if err != nil {
				return objInfo, err
			}
			batch = append(batch, chunk)
		}
		if len(batch) == 0 {
			break
		}

		CalcFPs(batch)
		if s.fpCache != nil {
			if err = s.fpCache.DedupFPsBatch(s.conf.Namespace, batch); err != nil {
				return objInfo, err
			}
		}
		if err = s.mds.DedupFPsBatch(s.conf.Namespace, batch); err != nil {
			logger.Errorf("Backup: failed to deduplicate chunks: %s", err)
			return objInfo, err
		}

		n, _, err := mgr.WriteChunks(batch)
		if err != nil {
			logger.Errorf("Backup: failed to write chunks: %s", err)
			return objInfo, err
		}
		totalWriteSize += uint64(n)

		for _, chunk := range batch {
			totalSize += chunk.Len
			totalChunks++
			manifestList = append(manifestList, ChunkInManifest{
				FP:   chunk.FP,
				Len:  chunk.Len,
				DCID: chunk.DCID,
			})
		}
	}

	// Containers must be durable before their fingerprints become dedup
	// targets for other backups.
	if err = mgr.Finalize(); err != nil {
		return objInfo, err
	}

	var newFPs []ChunkInManifest
	seen := make(map[string]struct{})
	for _, c := range manifestList {
		if _, ok := seen[c.FP]; ok {
			continue
		}
		seen[c.FP] = struct{}{}
		newFPs = append(newFPs, c)
	}
	if err = s.mds.InsertFPsBatch(s.conf.Namespace, newFPs); err != nil {
		return objInfo, err
	}
	if s.fpCache != nil {
		if err = s.fpCache.InsertFPsBatch(s.conf.Namespace, newFPs); err != nil {
			return objInfo, err
		}
	}

	manifestID, err := s.mds.NewManifestID()
	if err != nil {
		return objInfo, err
	}
	if _, err = s.manifests.WriteManifest(manifestID, manifestList); err != nil {
		return objInfo, err
	}

	objInfo = ObjectInfo{
		Name:       name,
		Size:       totalSize,
		ManifestID: manifestID,
		Chunks:     totalChunks,
		Created:    time.Now(),
	}
	if dc, ok := chunker.(DigestChunker); ok {
		md5Sum, sha256Sum := dc.Sums()
		if md5Sum != nil {
			objInfo.ETag = hex.EncodeToString(md5Sum)
		}
		if sha256Sum != nil {
			objInfo.Checksum = hex.EncodeToString(sha256Sum)
		}
	}
	if err = s.mds.PutObjectMeta(s.conf.Namespace, objInfo); err != nil {
		s.manifests.DeleteManifest(manifestID)
		return objInfo, err
	}

	dedupRate := 0.0
	if totalSize > 0 {
		dedupRate = float64(totalSize-totalWriteSize) / float64(totalSize)
	}
	logger.Infof("Backup[%s]: wrote %s of %s (%d chunks), dedupRate: %.2f%%, elapsed %s",
		name, internal.FormatBytes(totalWriteSize), internal.FormatBytes(totalSize),
		totalChunks, dedupRate*100, time.Since(start))

	return objInfo, nil
}

// Restore reassembles the object stored under name into w.
func (s *Store) Restore(ctx context.Context, name string, w io.Writer) error {
	start := time.Now()
	objInfo, err := s.mds.GetObjectMeta(s.conf.Namespace, name)
	if err != nil {
		return err
	}

	manifest, err := s.manifests.ReadManifest(objInfo.ManifestID)
	if err != nil {
		logger.Errorf("Restore: failed to read manifest[%s] err: %s", objInfo.ManifestID, err)
		return err
	}

	// Cache DCReaders to avoid re-opening and re-parsing the same container.
	dcReaderCache := make(map[uint64]*DCReader)
	defer func() {
		for _, reader := range dcReaderCache {
			reader.Close()
		}
	}()

	var totalBytesWritten uint64
	for _, chunk := range manifest {
		dcReader, ok := dcReaderCache[chunk.DCID]
		if !ok {
			dcReader, err = OpenDCReader(ctx, s.backend, s.conf.Namespace, chunk.DCID)
			if err != nil {
				logger.Errorf("Restore: failed to open data container[%d]: %v", chunk.DCID, err)
				return err
			}
			dcReaderCache[chunk.DCID] = dcReader
		}

		data, err := dcReader.ReadChunk(chunk.FP)
		if err != nil {
			return err
		}
		if uint64(len(data)) != chunk.Len {
			return fmt.Errorf("Restore: chunk length mismatch for fp %s: got %d, want %d",
				internal.StringToHex(chunk.FP), len(data), chunk.Len)
		}
		if _, err = internal.WriteAll(w, data); err != nil {
			return err
		}
		totalBytesWritten += chunk.Len
	}

	if totalBytesWritten != objInfo.Size {
		return fmt.Errorf("Restore: size mismatch for object %s: got %d, want %d", name, totalBytesWritten, objInfo.Size)
	}
	logger.Infof("Restore[%s]: wrote %s from %d chunks, elapsed %s",
		name, internal.FormatBytes(totalBytesWritten), len(manifest), time.Since(start))
	return nil
}

// List returns the stored objects whose name starts with prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	return s.mds.ListObjects(s.conf.Namespace, prefix)
}

// Delete removes an object record and its manifest. Data containers are
// left in place; chunks may be shared with other objects.
func (s *Store) Delete(ctx context.Context, name string) error {
	objInfo, err := s.mds.GetObjectMeta(s.conf.Namespace, name)
	if err != nil {
		return err
	}
	if err = s.manifests.DeleteManifest(objInfo.ManifestID); err != nil {
		return err
	}
	return s.mds.DelObjectMeta(s.conf.Namespace, name)
}

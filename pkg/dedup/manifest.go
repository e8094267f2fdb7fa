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
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zhengshuai-xiao/SplitterS/internal"
)

// ManifestStore keeps object manifests as local files under cacheDir.
// The file format is:
// [8-byte offset to DCID set] [ChunkInManifest entries...] [Unique DCID set...]
type ManifestStore struct {
	cacheDir string
}

const manifestEntrySize = FPLen + 8 + 8 // FP + Len + DCID

// NewManifestStore stores manifests under dir/manifests.
func NewManifestStore(dir string) *ManifestStore {
	return &ManifestStore{cacheDir: dir}
}

func (s *ManifestStore) getManifestPath(manifestID string) (string, error) {
	if len(manifestID) < 4 {
		return "", fmt.Errorf("invalid manifest ID: %s", manifestID)
	}
	return filepath.Join(s.cacheDir, "manifests", manifestID), nil
}

// WriteManifest serializes a manifest to a local file and returns the set of
// data containers it references.
func (s *ManifestStore) WriteManifest(manifestID string, manifestList []ChunkInManifest) ([]uint64, error) {
	path, err := s.getManifestPath(manifestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get manifest path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create manifest directory: %w", err)
	}

	var buf bytes.Buffer
	uniqueDCIDs := internal.NewUInt64Set()

	for _, chunk := range manifestList {
		// FP (32 bytes)
		buf.WriteString(chunk.FP)
		// Len (8 bytes)
		lenBytes := internal.UInt64ToBytesLittleEndian(chunk.Len)
		buf.Write(lenBytes[:])
		// DCID (8 bytes)
		dcidBytes := internal.UInt64ToBytesLittleEndian(chunk.DCID)
		buf.Write(dcidBytes[:])

		uniqueDCIDs.Add(chunk.DCID)
	}

	dcidOffset := uint64(buf.Len())

	uniqueDCIDList := uniqueDCIDs.Elements()
	for _, dcid := range uniqueDCIDList {
		dcidBytes := internal.UInt64ToBytesLittleEndian(dcid)
		buf.Write(dcidBytes[:])
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest file for writing: %w", err)
	}
	defer file.Close()

	offsetHeader := internal.UInt64ToBytesLittleEndian(dcidOffset)
	if _, err := file.Write(offsetHeader[:]); err != nil {
		return nil, fmt.Errorf("failed to write manifest offset header: %w", err)
	}
	if _, err := file.Write(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to write manifest content: %w", err)
	}

	logger.Tracef("Successfully wrote manifest %s with %d chunks.", manifestID, len(manifestList))
	return uniqueDCIDList, nil
}

// ReadManifest reads and deserializes a manifest.
func (s *ManifestStore) ReadManifest(manifestID string) ([]ChunkInManifest, error) {
	path, err := s.getManifestPath(manifestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get manifest path: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}
	if len(data) < 8 {
		return nil, fmt.Errorf("manifest file %s is too small", path)
	}

	dcidOffset := internal.BytesToUInt64LittleEndian([8]byte(data[:8]))
	if 8+dcidOffset > uint64(len(data)) {
		return nil, fmt.Errorf("corrupted manifest offset header in %s", path)
	}
	chunkData := data[8 : 8+dcidOffset]
	if len(chunkData)%manifestEntrySize != 0 {
		return nil, fmt.Errorf("corrupted manifest chunk data section in %s", path)
	}

	numChunks := len(chunkData) / manifestEntrySize
	manifestList := make([]ChunkInManifest, numChunks)

	for i := 0; i < numChunks; i++ {
		offset := i * manifestEntrySize
		manifestList[i].FP = string(chunkData[offset : offset+FPLen])
		manifestList[i].Len = binary.LittleEndian.Uint64(chunkData[offset+FPLen : offset+FPLen+8])
		manifestList[i].DCID = binary.LittleEndian.Uint64(chunkData[offset+FPLen+8 : offset+FPLen+16])
	}

	logger.Tracef("Successfully read manifest %s with %d chunks.", manifestID, len(manifestList))
	return manifestList, nil
}

// ReadUniqueDCIDs reads only the unique DCID set from a manifest. Cheaper
// than ReadManifest when only the container list is needed.
func (s *ManifestStore) ReadUniqueDCIDs(manifestID string) ([]uint64, error) {
	path, err := s.getManifestPath(manifestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get manifest path: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}
	if len(data) < 8 {
		return nil, fmt.Errorf("manifest file %s is too small", path)
	}

	dcidOffset := internal.BytesToUInt64LittleEndian([8]byte(data[:8]))
	if 8+dcidOffset > uint64(len(data)) {
		return nil, fmt.Errorf("corrupted manifest offset header in %s", path)
	}
	dcidSetData := data[8+dcidOffset:]
	if len(dcidSetData)%8 != 0 {
		return nil, fmt.Errorf("corrupted manifest DCID set section in %s", path)
	}

	numDCIDs := len(dcidSetData) / 8
	uniqueDCIDs := make([]uint64, numDCIDs)
	for i := 0; i < numDCIDs; i++ {
		offset := i * 8
		uniqueDCIDs[i] = binary.LittleEndian.Uint64(dcidSetData[offset : offset+8])
	}

	return uniqueDCIDs, nil
}

// DeleteManifest removes a manifest file.
func (s *ManifestStore) DeleteManifest(manifestID string) error {
	if manifestID == "" {
		return nil // Nothing to delete
	}
	path, err := s.getManifestPath(manifestID)
	if err != nil {
		return fmt.Errorf("failed to get manifest path for deletion: %w", err)
	}
	if err = os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warnf("Failed to delete manifest file %s: %v", path, err)
		return err
	}
	return nil
}

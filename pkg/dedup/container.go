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
	"context"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"os"

	"github.com/zhengshuai-xiao/SplitterS/internal"
	"github.com/zhengshuai-xiao/SplitterS/internal/compression"
)

/*
Data container layout, streamable front to back:

	[0,8)              magic + version, uint32 LE each
	[8,metaOffset)     chunk payloads, possibly compressed
	[metaOffset,N-8)   gob-encoded BlockHeaders
	[N-8,N)            metaOffset, uint64 LE
*/
const (
	maxContainerSize     = 16 * 1024 * 1024
	headerSize           = 8
	DataContainerMagic   = 0x53444331 // "SDC1"
	DataContainerVersion = 1
)

// BlockHeader defines the metadata for a single chunk stored within a data
// container. It is written to the footer of the container.
type BlockHeader struct {
	FP           [FPLen]byte
	Offset       uint64 // offset of the (possibly compressed) payload
	Len          uint64 // stored payload length
	CRC          uint32 // crc32 of the raw chunk bytes
	CompressType byte
}

// DataContainer represents an active container being streamed to a backend.
type DataContainer struct {
	bucket   string
	key      string
	dcid     uint64
	uploader DataContainerUploader
	w        io.WriteCloser
	offset   uint64
	fps      []BlockHeader
}

// DataContainerMgr packs new chunks into containers and rolls over to a
// fresh one when the active container is full. Not safe for concurrent use;
// one manager serves one backup stream.
type DataContainerMgr struct {
	ctx             context.Context
	mds             MDS
	backend         DataContainerBackend
	bucket          string
	activeContainer *DataContainer
	compressor      compression.Compressor
}

// NewDataContainerMgr creates a new manager for handling data container writes.
func NewDataContainerMgr(ctx context.Context, mds MDS, backend DataContainerBackend, bucket, compressionType string) (*DataContainerMgr, error) {
	compressor, err := compression.GetCompressorViaString(compressionType)
	if err != nil {
		return nil, err
	}
	return &DataContainerMgr{
		ctx:        ctx,
		mds:        mds,
		backend:    backend,
		bucket:     bucket,
		compressor: compressor,
	}, nil
}

// WriteChunks writes a batch of new (not deduped) chunks. It handles container
// creation, writing data, and rolling over to a new container when full.
func (mgr *DataContainerMgr) WriteChunks(chunks []Chunk) (writtenLen int, savedLen int, err error) {
	if mgr.activeContainer == nil {
		// Lazily create the first container only when there's data to write.
		hasNewData := false
		for _, c := range chunks {
			if !c.Deduped {
				hasNewData = true
				break
			}
		}
		if !hasNewData {
			return 0, 0, nil
		}

		mgr.activeContainer, err = mgr.newContainer()
		if err != nil {
			return 0, 0, err
		}
	}

	batchFPCache := make(map[string]uint64)

	for i := range chunks {
		if chunks[i].Deduped {
			continue
		}

		if dcid, ok := batchFPCache[chunks[i].FP]; ok {
			chunks[i].DCID = dcid
			chunks[i].Deduped = true
			continue
		}

		if mgr.activeContainer.offset+chunks[i].Len >= maxContainerSize {
			if err = mgr.finalizeContainer(mgr.activeContainer); err != nil {
				return 0, 0, err
			}
			mgr.activeContainer, err = mgr.newContainer()
			if err != nil {
				return 0, 0, err
			}
		}

		dataToWrite := chunks[i].Data
		if mgr.compressor != nil {
			compressedData, err := mgr.compressor.Compress(chunks[i].Data)
			if err != nil {
				return 0, 0, err
			}
			savedLen += len(chunks[i].Data) - len(compressedData)
			dataToWrite = compressedData
		}

		wlen, err := internal.WriteAll(mgr.activeContainer.w, dataToWrite)
		if err != nil {
			return 0, 0, err
		}
		writtenLen += wlen

		chunks[i].DCID = mgr.activeContainer.dcid
		batchFPCache[chunks[i].FP] = chunks[i].DCID

		fp := BlockHeader{
			Offset: mgr.activeContainer.offset,
			Len:    uint64(len(dataToWrite)),
			CRC:    internal.CalculateCRC32(chunks[i].Data),
		}
		if mgr.compressor != nil {
			fp.CompressType = byte(mgr.compressor.Type())
		}
		copy(fp.FP[:], chunks[i].FP)
		mgr.activeContainer.fps = append(mgr.activeContainer.fps, fp)
		mgr.activeContainer.offset += uint64(len(dataToWrite))
	}
	return writtenLen, savedLen, nil
}

// Finalize ensures any active data container is properly closed and uploaded.
func (mgr *DataContainerMgr) Finalize() error {
	if mgr.activeContainer != nil {
		err := mgr.finalizeContainer(mgr.activeContainer)
		mgr.activeContainer = nil
		return err
	}
	return nil
}

// newContainer allocates a DCID and opens a backend uploader for it.
func (mgr *DataContainerMgr) newContainer() (*DataContainer, error) {
	dcid, err := mgr.mds.GetIncreasedDCID()
	if err != nil {
		return nil, err
	}
	uploader, _, key, err := mgr.backend.GetUploader(mgr.ctx, mgr.bucket, dcid)
	if err != nil {
		return nil, err
	}
	w := uploader.GetWriter()

	header := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(header[0:4], DataContainerMagic)
	binary.LittleEndian.PutUint32(header[4:8], DataContainerVersion)
	if _, err := internal.WriteAll(w, header); err != nil {
		w.Close()
		return nil, err
	}
	logger.Tracef("newContainer: dcid=%d key=%s", dcid, key)
	return &DataContainer{
		bucket:   mgr.bucket,
		key:      key,
		dcid:     dcid,
		uploader: uploader,
		w:        w,
		offset:   headerSize,
		fps:      []BlockHeader{},
	}, nil
}

// finalizeContainer appends the gob footer and the metadata offset, closes
// the stream and waits for the backend upload to complete.
func (mgr *DataContainerMgr) finalizeContainer(container *DataContainer) error {
	encoder := gob.NewEncoder(container.w)
	for _, fp := range container.fps {
		if err := encoder.Encode(fp); err != nil {
			container.w.Close()
			return err
		}
	}

	offsetBytes := internal.UInt64ToBytesLittleEndian(container.offset)
	if _, err := internal.WriteAll(container.w, offsetBytes[:]); err != nil {
		container.w.Close()
		return err
	}
	if err := container.w.Close(); err != nil {
		return err
	}
	if err := container.uploader.Wait(); err != nil {
		return fmt.Errorf("failed to upload data container %s: %w", container.key, err)
	}
	logger.Tracef("finalizeContainer: dcid=%d chunks=%d size=%d", container.dcid, len(container.fps), container.offset)
	return nil
}

// DCReader (Data Container Reader) provides read access to a data container.
// It holds the file handle and a map of fingerprints to their block headers.
type DCReader struct {
	bucket string
	dcKey  string
	path   string
	filer  *os.File
	fpmap  map[string]BlockHeader
}

// OpenDCReader fetches a container through the backend and parses its footer.
func OpenDCReader(ctx context.Context, backend DataContainerBackend, bucket string, dcid uint64) (*DCReader, error) {
	localPath, err := backend.Download(ctx, bucket, dcid)
	if err != nil {
		logger.Errorf("OpenDCReader: failed to download/find data container for DCID %d: %v", dcid, err)
		return nil, err
	}

	dr := &DCReader{
		bucket: bucket,
		dcKey:  GetDCName(dcid),
		path:   localPath,
		fpmap:  make(map[string]BlockHeader),
	}
	dr.filer, err = os.Open(dr.path)
	if err != nil {
		logger.Errorf("OpenDCReader: failed to open data container[%s] err: %s", dr.path, err)
		return nil, err
	}
	if err = dr.parseDataContainer(); err != nil {
		dr.filer.Close()
		logger.Errorf("OpenDCReader: failed to parse data container[%s] err: %s", dr.path, err)
		return nil, err
	}
	return dr, nil
}

// Close releases the underlying file.
func (dr *DCReader) Close() error {
	if dr.filer != nil {
		return dr.filer.Close()
	}
	return nil
}

// parseDataContainer reads the footer of a data container file, decodes the
// block headers, and populates the DCReader's fpmap.
func (dr *DCReader) parseDataContainer() error {
	fi, err := dr.filer.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat data container %s: %w", dr.path, err)
	}
	fileSize := fi.Size()
	if fileSize < headerSize+8 { // Must contain at least header and metadata offset
		return fmt.Errorf("data container %s is too small to be valid", dr.path)
	}

	header := make([]byte, headerSize)
	if _, err := dr.filer.ReadAt(header, 0); err != nil {
		return fmt.Errorf("failed to read header from %s: %w", dr.path, err)
	}

	magic := binary.LittleEndian.Uint32(header[0:4])
	version := binary.LittleEndian.Uint32(header[4:8])

	if magic != DataContainerMagic {
		return fmt.Errorf("invalid magic number in %s: got %x, want %x", dr.path, magic, DataContainerMagic)
	}
	if version != DataContainerVersion {
		return fmt.Errorf("unsupported data container version in %s: got %d, want %d", dr.path, version, DataContainerVersion)
	}

	offsetBuf := [8]byte{}
	if _, err := dr.filer.ReadAt(offsetBuf[:], fileSize-8); err != nil {
		return fmt.Errorf("failed to read metadata offset from %s: %w", dr.path, err)
	}
	fpOffset := internal.BytesToUInt64LittleEndian(offsetBuf)
	if fpOffset < headerSize || int64(fpOffset) > fileSize-8 {
		return fmt.Errorf("corrupt metadata offset %d in %s", fpOffset, dr.path)
	}

	decoder := gob.NewDecoder(io.NewSectionReader(dr.filer, int64(fpOffset), fileSize-int64(fpOffset)-8))
	for {
		var blockHeader BlockHeader
		if err = decoder.Decode(&blockHeader); err != nil {
			if err == io.EOF {
				break
			}
			logger.Errorf("parseDataContainer: failed to decode block header [%s] err: %s", dr.path, err)
			return err
		}
		dr.fpmap[string(blockHeader.FP[:])] = blockHeader
	}

	return nil
}

// ReadChunk returns the raw bytes of one chunk, decompressing if needed and
// verifying the stored CRC.
func (dr *DCReader) ReadChunk(fp string) ([]byte, error) {
	blockHeader, ok := dr.fpmap[fp]
	if !ok {
		return nil, fmt.Errorf("fingerprint:%s not found in data container %s", internal.StringToHex(fp), dr.dcKey)
	}

	buf := make([]byte, blockHeader.Len)
	if _, err := dr.filer.ReadAt(buf, int64(blockHeader.Offset)); err != nil {
		logger.Errorf("ReadChunk: failed to read chunk from %s: %v", dr.path, err)
		return nil, err
	}

	compressor, err := compression.GetCompressorViaType(compression.CompressionType(blockHeader.CompressType))
	if err != nil {
		logger.Errorf("ReadChunk: failed to get compressor: %v", err)
		return nil, err
	}
	if compressor != nil {
		if buf, err = compressor.Decompress(buf); err != nil {
			logger.Errorf("ReadChunk: failed to decompress chunk from %s: %v", dr.path, err)
			return nil, err
		}
	}

	if !internal.VerifyCRC32(buf, blockHeader.CRC) {
		return nil, fmt.Errorf("crc mismatch for fp %s in %s: want %x", internal.StringToHex(fp), dr.dcKey, blockHeader.CRC)
	}
	return buf, nil
}

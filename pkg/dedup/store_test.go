package dedup

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhengshuai-xiao/SplitterS/internal"
)

// fakeMDS is an in-memory MDS for exercising the full backup/restore path
// without a Redis server.
type fakeMDS struct {
	mu       sync.Mutex
	nextDCID uint64
	nextMID  int
	fps      map[string]map[string]uint64 // namespace -> fp -> dcid
	objects  map[string]map[string]ObjectInfo
}

func newFakeMDS() *fakeMDS {
	return &fakeMDS{
		fps:     make(map[string]map[string]uint64),
		objects: make(map[string]map[string]ObjectInfo),
	}
}

func (f *fakeMDS) Name() string    { return "fake" }
func (f *fakeMDS) Shutdown() error { return nil }

func (f *fakeMDS) GetIncreasedDCID() (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextDCID++
	return f.nextDCID, nil
}

func (f *fakeMDS) NewManifestID() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextMID++
	return fmt.Sprintf("manifest-%04d", f.nextMID), nil
}

func (f *fakeMDS) DedupFPsBatch(ns string, chunks []Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	nsFPs := f.fps[ns]
	for i := range chunks {
		if chunks[i].Deduped {
			continue
		}
		if dcid, ok := nsFPs[chunks[i].FP]; ok {
			chunks[i].Deduped = true
			chunks[i].DCID = dcid
		}
	}
	return nil
}

func (f *fakeMDS) InsertFPsBatch(ns string, chunks []ChunkInManifest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	nsFPs, ok := f.fps[ns]
	if !ok {
		nsFPs = make(map[string]uint64)
		f.fps[ns] = nsFPs
	}
	for _, c := range chunks {
		nsFPs[c.FP] = c.DCID
	}
	return nil
}

func (f *fakeMDS) LoadFPCache(ns string) (map[string]uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]uint64, len(f.fps[ns]))
	for fp, dcid := range f.fps[ns] {
		out[fp] = dcid
	}
	return out, nil
}

func (f *fakeMDS) PutObjectMeta(ns string, object ObjectInfo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	nsObjs, ok := f.objects[ns]
	if !ok {
		nsObjs = make(map[string]ObjectInfo)
		f.objects[ns] = nsObjs
	}
	nsObjs[object.Name] = object
	return nil
}

func (f *fakeMDS) GetObjectMeta(ns string, name string) (ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[ns][name]
	if !ok {
		return ObjectInfo{}, internal.ErrObjectNotFound
	}
	return obj, nil
}

func (f *fakeMDS) ListObjects(ns string, prefix string) ([]ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []ObjectInfo
	for name, obj := range f.objects[ns] {
		if len(name) >= len(prefix) && name[:len(prefix)] == prefix {
			out = append(out, obj)
		}
	}
	return out, nil
}

func (f *fakeMDS) DelObjectMeta(ns string, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[ns][name]; !ok {
		return internal.ErrObjectNotFound
	}
	delete(f.objects[ns], name)
	return nil
}

func newTestStore(t *testing.T, conf *Config) (*Store, *fakeMDS) {
	t.Helper()
	if conf == nil {
		conf = DefaultConfig()
	}
	conf.CacheDir = t.TempDir()
	mds := newFakeMDS()
	store, err := NewStore(conf, mds, NewPOSIXBackend(conf.CacheDir))
	require.NoError(t, err)
	return store, mds
}

func TestStoreBackupRestoreRoundtrip(t *testing.T) {
	store, _ := newTestStore(t, nil)
	ctx := context.Background()

	rnd := rand.New(rand.NewSource(21))
	data := make([]byte, 2<<20)
	rnd.Read(data)

	objInfo, err := store.Backup(ctx, "vm-image-1", bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, uint64(len(data)), objInfo.Size)
	assert.NotZero(t, objInfo.Chunks)
	wantSHA := sha256.Sum256(data)
	assert.Equal(t, hex.EncodeToString(wantSHA[:]), objInfo.Checksum)

	var out bytes.Buffer
	require.NoError(t, store.Restore(ctx, "vm-image-1", &out))
	assert.Equal(t, data, out.Bytes())
}

func TestStoreSecondBackupDedupes(t *testing.T) {
	store, mds := newTestStore(t, nil)
	ctx := context.Background()

	rnd := rand.New(rand.NewSource(22))
	data := make([]byte, 1<<20)
	rnd.Read(data)

	_, err := store.Backup(ctx, "first", bytes.NewReader(data))
	require.NoError(t, err)
	dcidAfterFirst := mds.nextDCID

	// The identical stream again: every fingerprint hits the index, so no
	// new container is allocated.
	objInfo, err := store.Backup(ctx, "second", bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, dcidAfterFirst, mds.nextDCID)
	assert.Equal(t, uint64(len(data)), objInfo.Size)

	var out bytes.Buffer
	require.NoError(t, store.Restore(ctx, "second", &out))
	assert.Equal(t, data, out.Bytes())
}

func TestStoreBackupEmptyStream(t *testing.T) {
	store, _ := newTestStore(t, nil)
	ctx := context.Background()

	objInfo, err := store.Backup(ctx, "empty", bytes.NewReader(nil))
	require.NoError(t, err)
	assert.Zero(t, objInfo.Size)
	assert.Zero(t, objInfo.Chunks)

	var out bytes.Buffer
	require.NoError(t, store.Restore(ctx, "empty", &out))
	assert.Zero(t, out.Len())
}

func TestStoreListAndDelete(t *testing.T) {
	store, _ := newTestStore(t, nil)
	ctx := context.Background()

	for _, name := range []string{"db/dump1", "db/dump2", "logs/app"} {
		_, err := store.Backup(ctx, name, bytes.NewReader([]byte(name+" payload")))
		require.NoError(t, err)
	}

	objs, err := store.List(ctx, "db/")
	require.NoError(t, err)
	assert.Len(t, objs, 2)

	require.NoError(t, store.Delete(ctx, "db/dump1"))
	objs, err = store.List(ctx, "db/")
	require.NoError(t, err)
	assert.Len(t, objs, 1)

	err = store.Restore(ctx, "db/dump1", &bytes.Buffer{})
	assert.ErrorIs(t, err, internal.ErrObjectNotFound)

	assert.ErrorIs(t, store.Delete(ctx, "db/dump1"), internal.ErrObjectNotFound)
}

func TestStoreCompressedBackup(t *testing.T) {
	conf := DefaultConfig()
	conf.Compression = "snappy"
	store, _ := newTestStore(t, conf)
	ctx := context.Background()

	// Highly compressible payload.
	data := bytes.Repeat([]byte("abcdefgh"), 128*1024)
	_, err := store.Backup(ctx, "compressible", bytes.NewReader(data))
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, store.Restore(ctx, "compressible", &out))
	assert.Equal(t, data, out.Bytes())
}

func TestStoreFPCacheWarmsFromMDS(t *testing.T) {
	conf := DefaultConfig()
	conf.CacheDir = t.TempDir()
	mds := newFakeMDS()
	backend := NewPOSIXBackend(conf.CacheDir)

	store1, err := NewStore(conf, mds, backend)
	require.NoError(t, err)

	data := make([]byte, 512*1024)
	rand.New(rand.NewSource(23)).Read(data)
	_, err = store1.Backup(context.Background(), "seed", bytes.NewReader(data))
	require.NoError(t, err)

	// A fresh store over the same MDS warms its cache from the index and
	// dedupes everything.
	store2, err := NewStore(conf, mds, backend)
	require.NoError(t, err)
	dcidBefore := mds.nextDCID
	_, err = store2.Backup(context.Background(), "again", bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, dcidBefore, mds.nextDCID)
}

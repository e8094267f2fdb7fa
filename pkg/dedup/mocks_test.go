package dedup

import (
	"github.com/stretchr/testify/mock"
)

// MockMDS is a mock implementation of the MDS interface for testing.
type MockMDS struct {
	mock.Mock
}

func (m *MockMDS) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockMDS) Shutdown() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockMDS) GetIncreasedDCID() (uint64, error) {
	args := m.Called()
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockMDS) NewManifestID() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

func (m *MockMDS) DedupFPsBatch(ns string, chunks []Chunk) error {
	args := m.Called(ns, chunks)
	return args.Error(0)
}

func (m *MockMDS) InsertFPsBatch(ns string, chunks []ChunkInManifest) error {
	args := m.Called(ns, chunks)
	return args.Error(0)
}

func (m *MockMDS) LoadFPCache(ns string) (map[string]uint64, error) {
	args := m.Called(ns)
	return args.Get(0).(map[string]uint64), args.Error(1)
}

func (m *MockMDS) PutObjectMeta(ns string, object ObjectInfo) error {
	args := m.Called(ns, object)
	return args.Error(0)
}

func (m *MockMDS) GetObjectMeta(ns string, name string) (ObjectInfo, error) {
	args := m.Called(ns, name)
	return args.Get(0).(ObjectInfo), args.Error(1)
}

func (m *MockMDS) ListObjects(ns string, prefix string) ([]ObjectInfo, error) {
	args := m.Called(ns, prefix)
	return args.Get(0).([]ObjectInfo), args.Error(1)
}

func (m *MockMDS) DelObjectMeta(ns string, name string) error {
	args := m.Called(ns, name)
	return args.Error(0)
}

package storage

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/roomdesk/apiserver/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryBackend struct {
	objects map[string][]byte
	uploads map[string]Object
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{objects: map[string][]byte{}, uploads: map[string]Object{}}
}

func (m *memoryBackend) EnsureBucket(context.Context) error { return nil }

func (m *memoryBackend) Put(_ context.Context, obj Object, r io.Reader, _ int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[obj.Key] = data
	m.uploads[obj.Key] = obj
	return nil
}

func (m *memoryBackend) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	var objects []ObjectInfo
	for key, data := range m.objects {
		if strings.HasPrefix(key, prefix) {
			objects = append(objects, ObjectInfo{Key: key, Size: int64(len(data))})
		}
	}
	return objects, nil
}

func (m *memoryBackend) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryBackend) Bucket() string { return "test" }

func TestArchiveRoundTrip(t *testing.T) {
	backend := newMemoryBackend()
	archive := NewArchive(backend, "/schedules/")

	key, err := archive.SaveJSON(context.Background(), "/2025-07-13/room-1.json", map[string]int{"room_id": 1}, map[string]string{"room-id": "1"})
	require.NoError(t, err)
	assert.Equal(t, "schedules/2025-07-13/room-1.json", key)
	assert.Equal(t, jsonContentType, backend.uploads[key].ContentType)
	assert.Equal(t, "1", backend.uploads[key].Metadata["room-id"])

	var decoded map[string]int
	require.NoError(t, archive.LoadJSON(context.Background(), "2025-07-13/room-1.json", &decoded))
	assert.Equal(t, 1, decoded["room_id"])
}

func TestArchiveList(t *testing.T) {
	ctx := context.Background()
	archive := NewArchive(newMemoryBackend(), "schedules")
	for _, key := range []string{"2025-07-13/room-2.json", "2025-07-13/room-1.json", "2025-07-20/room-1.json"} {
		_, err := archive.SaveJSON(ctx, key, map[string]string{}, nil)
		require.NoError(t, err)
	}

	objects, err := archive.List(ctx, "2025-07-13/")
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, "2025-07-13/room-1.json", objects[0].Key)
	assert.Equal(t, "2025-07-13/room-2.json", objects[1].Key)
	assert.Positive(t, objects[0].Size)
}

func TestArchiveMissingObject(t *testing.T) {
	archive := NewArchive(newMemoryBackend(), "")

	var decoded map[string]any
	err := archive.LoadJSON(context.Background(), "missing.json", &decoded)
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{Backend: "ftp"})
	assert.Error(t, err)
}

func TestOpenMinioRequiresCredentials(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{
		Backend: "minio",
		Minio:   config.MinioConfig{Endpoint: "localhost:9000", Bucket: "roomdesk"},
	})
	assert.EqualError(t, err, "minio access key and secret key are required")
}

func TestOpenArchiveDisabled(t *testing.T) {
	archive, err := OpenArchive(context.Background(), config.StorageConfig{Backend: "none"})
	require.NoError(t, err)
	assert.Nil(t, archive)
}

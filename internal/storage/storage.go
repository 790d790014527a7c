package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/roomdesk/apiserver/config"
)

const jsonContentType = "application/json"

// ErrObjectNotFound is returned by Get when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// Object describes an upload.
type Object struct {
	Key          string
	ContentType  string
	CacheControl string
	// Metadata is stored as user metadata next to the object.
	Metadata map[string]string
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key     string    `json:"key"`
	Size    int64     `json:"size"`
	Updated time.Time `json:"updated"`
}

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, obj Object, r io.Reader, size int64) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Bucket() string
}

// Open builds the backend selected by cfg.Backend.
func Open(ctx context.Context, cfg config.StorageConfig) (ObjectStorage, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "minio":
		return NewMinioBackend(cfg.Minio)
	case "gcs":
		return NewGCSBackend(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}

// OpenArchive opens the configured backend and makes sure its bucket exists.
// It returns a nil Archive when storage is disabled.
func OpenArchive(ctx context.Context, cfg config.StorageConfig) (*Archive, error) {
	if strings.EqualFold(strings.TrimSpace(cfg.Backend), "none") {
		return nil, nil
	}
	backend, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	archive := NewArchive(backend, cfg.Prefix)
	if err := archive.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket %s: %w", backend.Bucket(), err)
	}
	return archive, nil
}

// Archive stores JSON documents under a key prefix.
type Archive struct {
	backend ObjectStorage
	prefix  string
}

// NewArchive wraps backend. Every key is placed under prefix.
func NewArchive(backend ObjectStorage, prefix string) *Archive {
	return &Archive{backend: backend, prefix: strings.Trim(prefix, "/")}
}

// EnsureBucket ensures the backing bucket exists.
func (a *Archive) EnsureBucket(ctx context.Context) error {
	return a.backend.EnsureBucket(ctx)
}

// SaveJSON encodes value and uploads it with metadata. It returns the full
// object key.
func (a *Archive) SaveJSON(ctx context.Context, key string, value any, metadata map[string]string) (string, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return "", err
	}
	full := a.key(key)
	obj := Object{
		Key:          full,
		ContentType:  jsonContentType,
		CacheControl: "no-cache",
		Metadata:     metadata,
	}
	if err := a.backend.Put(ctx, obj, bytes.NewReader(data), int64(len(data))); err != nil {
		return "", fmt.Errorf("put %s/%s: %w", a.backend.Bucket(), full, err)
	}
	return full, nil
}

// LoadJSON downloads the object at key and decodes it into value.
func (a *Archive) LoadJSON(ctx context.Context, key string, value any) error {
	full := a.key(key)
	reader, err := a.backend.Get(ctx, full)
	if err != nil {
		return fmt.Errorf("get %s/%s: %w", a.backend.Bucket(), full, err)
	}
	defer reader.Close()

	if err := json.NewDecoder(reader).Decode(value); err != nil {
		return fmt.Errorf("decode %s/%s: %w", a.backend.Bucket(), full, err)
	}
	return nil
}

// List returns the objects under prefix sorted by key. Keys are relative to
// the archive prefix, so they can be passed back to LoadJSON.
func (a *Archive) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	full := a.key(prefix)
	if strings.HasSuffix(prefix, "/") && !strings.HasSuffix(full, "/") {
		full += "/"
	}
	objects, err := a.backend.List(ctx, full)
	if err != nil {
		return nil, fmt.Errorf("list %s/%s: %w", a.backend.Bucket(), full, err)
	}

	infos := make([]ObjectInfo, 0, len(objects))
	for _, object := range objects {
		if a.prefix != "" {
			object.Key = strings.TrimPrefix(object.Key, a.prefix+"/")
		}
		infos = append(infos, object)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

func (a *Archive) key(key string) string {
	key = strings.TrimLeft(key, "/")
	if a.prefix == "" {
		return key
	}
	return path.Join(a.prefix, key)
}

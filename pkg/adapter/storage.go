package adapter

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/agriai/pkg/interfaces"
	"github.com/m-mizutani/goerr/v2"
)

// storageClient implements ArtifactStorage using Cloud Storage
type storageClient struct {
	bucketName string
	prefix     string
	client     *storage.Client
}

// NewStorage creates a new Cloud Storage backed artifact storage. All keys are
// placed under prefix.
func NewStorage(ctx context.Context, bucketName, prefix string) (interfaces.ArtifactStorage, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client")
	}

	return &storageClient{
		bucketName: bucketName,
		prefix:     strings.Trim(prefix, "/"),
		client:     client,
	}, nil
}

func (s *storageClient) objectName(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

func (s *storageClient) Put(ctx context.Context, key string) (io.WriteCloser, error) {
	bucket := s.client.Bucket(s.bucketName)
	obj := bucket.Object(s.objectName(key))
	writer := obj.NewWriter(ctx)
	return writer, nil
}

func (s *storageClient) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	bucket := s.client.Bucket(s.bucketName)
	obj := bucket.Object(s.objectName(key))
	reader, err := obj.NewReader(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read from storage", goerr.V("key", key))
	}

	return reader, nil
}

func (s *storageClient) Ref(key string) string {
	return "gs://" + s.bucketName + "/" + s.objectName(key)
}

// fileStorage implements ArtifactStorage on the local file system
type fileStorage struct {
	dir string
}

// NewFileStorage creates an artifact storage rooted at dir
func NewFileStorage(dir string) (interfaces.ArtifactStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, goerr.Wrap(err, "failed to create artifact directory", goerr.V("dir", dir))
	}
	return &fileStorage{dir: dir}, nil
}

func (s *fileStorage) path(key string) (string, error) {
	p := filepath.Join(s.dir, filepath.FromSlash(key))
	rel, err := filepath.Rel(s.dir, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", goerr.New("artifact key escapes storage directory", goerr.V("key", key))
	}
	return p, nil
}

func (s *fileStorage) Put(ctx context.Context, key string) (io.WriteCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, goerr.Wrap(err, "failed to create artifact directory", goerr.V("key", key))
	}
	f, err := os.Create(p)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create artifact file", goerr.V("key", key))
	}
	return f, nil
}

func (s *fileStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open artifact file", goerr.V("key", key))
	}
	return f, nil
}

func (s *fileStorage) Ref(key string) string {
	p, err := s.path(key)
	if err != nil {
		return ""
	}
	return p
}

// SaveArtifact writes data under key and returns its reference
func SaveArtifact(ctx context.Context, st interfaces.ArtifactStorage, key string, data []byte) (string, error) {
	w, err := st.Put(ctx, key)
	if err != nil {
		return "", err
	}

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", goerr.Wrap(err, "failed to write artifact", goerr.V("key", key))
	}

	if err := w.Close(); err != nil {
		return "", goerr.Wrap(err, "failed to close artifact writer", goerr.V("key", key))
	}

	return st.Ref(key), nil
}

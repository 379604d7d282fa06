package interfaces

import (
	"context"
	"io"

	"github.com/m-mizutani/goerr/v2"
)

// ErrKeyNotFound is returned by KVStore.Get when the key does not exist
var ErrKeyNotFound = goerr.New("key not found")

// KVStore is durable key/value storage of UTF-8 text
type KVStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// ArtifactStorage keeps binary artifacts such as captured and generated images
type ArtifactStorage interface {
	// Put returns a writer to save an artifact under key
	Put(ctx context.Context, key string) (io.WriteCloser, error)
	// Get loads an artifact
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Ref returns the reference string recorded for key (e.g. gs://bucket/key)
	Ref(key string) string
}

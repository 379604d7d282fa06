package adapter

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/m-mizutani/agriai/pkg/interfaces"
	"github.com/m-mizutani/goerr/v2"
	bolt "go.etcd.io/bbolt"
)

var kvBucket = []byte("kv")

// Bolt is a KVStore kept in a single BoltDB file
type Bolt struct {
	db *bolt.DB
}

// NewBolt opens (or creates) the BoltDB file at path
func NewBolt(path string) (*Bolt, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, goerr.Wrap(err, "failed to create data directory", goerr.V("path", path))
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open bolt db", goerr.V("path", path))
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(kvBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to create bucket", goerr.V("path", path))
	}

	return &Bolt{db: db}, nil
}

func (b *Bolt) Get(ctx context.Context, key string) (string, error) {
	var (
		value string
		found bool
	)
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(kvBucket).Get([]byte(key))
		if v != nil {
			value, found = string(v), true
		}
		return nil
	})
	if err != nil {
		return "", goerr.Wrap(err, "failed to read key", goerr.V("key", key))
	}
	if !found {
		return "", goerr.Wrap(interfaces.ErrKeyNotFound, "no value", goerr.V("key", key))
	}
	return value, nil
}

func (b *Bolt) Set(ctx context.Context, key, value string) error {
	if err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(kvBucket).Put([]byte(key), []byte(value))
	}); err != nil {
		return goerr.Wrap(err, "failed to write key", goerr.V("key", key))
	}
	return nil
}

func (b *Bolt) Remove(ctx context.Context, key string) error {
	if err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(kvBucket).Delete([]byte(key))
	}); err != nil {
		return goerr.Wrap(err, "failed to delete key", goerr.V("key", key))
	}
	return nil
}

// Close releases the database file lock
func (b *Bolt) Close() error {
	return b.db.Close()
}

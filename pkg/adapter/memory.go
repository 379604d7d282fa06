package adapter

import (
	"context"
	"sync"

	"github.com/m-mizutani/agriai/pkg/interfaces"
	"github.com/m-mizutani/goerr/v2"
)

// Memory is an in-process KVStore. It is used for ephemeral sessions and tests.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return "", goerr.Wrap(interfaces.ErrKeyNotFound, "no value", goerr.V("key", key))
	}
	return v, nil
}

func (m *Memory) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *Memory) Remove(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

package memory

import (
	"context"
	"sync"

	"github.com/PabloGalante/singlechat/internal/adapters/storage/kvserver"
)

// Backend is an in-memory kvserver.Backend.
// It is NOT persistent and is only suitable for development / local mode.
type Backend struct {
	mu     sync.RWMutex
	values map[string][]byte
}

func NewBackend() *Backend {
	return &Backend{
		values: make(map[string][]byte),
	}
}

func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	v, ok := b.values[key]
	if !ok {
		return nil, kvserver.ErrKeyNotFound
	}
	return append([]byte(nil), v...), nil
}

func (b *Backend) PutIfAbsent(ctx context.Context, key string, value []byte) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.values[key]; exists {
		return true, nil
	}
	b.values[key] = append([]byte(nil), value...)
	return false, nil
}

// Set overwrites a key unconditionally. Tests use it to plant corrupt data.
func (b *Backend) Set(key string, value []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.values[key] = append([]byte(nil), value...)
}

// Len returns the number of stored keys.
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.values)
}

func (b *Backend) Close() error {
	return nil
}

var _ kvserver.Backend = (*Backend)(nil)

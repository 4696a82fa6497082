// Package memory provides an in-memory Store implementation (for testing/dev).
package memory

import (
	"context"
	"sync"
)

type Memory struct {
	mu   sync.RWMutex
	docs map[string][]byte

	// FailWrites makes every Write return this error. Tests use it to
	// exercise persistence-failure paths.
	FailWrites error
}

func New() *Memory {
	return &Memory{docs: make(map[string][]byte)}
}

func (m *Memory) Read(_ context.Context, collection string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[collection]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(doc))
	copy(out, doc)
	return out, nil
}

func (m *Memory) Write(_ context.Context, collection string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWrites != nil {
		return m.FailWrites
	}
	doc := make([]byte, len(data))
	copy(doc, data)
	m.docs[collection] = doc
	return nil
}

// Package params stores free-form named parameters in a single remote
// document. Add never overwrites an existing key and Update never creates
// one.
package params

import (
	"context"
	"sync"
)

// Document is one key/value document in a remote store.
type Document interface {
	// Get returns the document content; found is false when it does not exist.
	Get(ctx context.Context) (values map[string]any, found bool, err error)
	// SetMerge writes values over the existing document, creating it if needed.
	// Keys absent from values are left untouched.
	SetMerge(ctx context.Context, values map[string]any) error
}

// MemoryDocument keeps the document in process memory.
type MemoryDocument struct {
	mu     sync.RWMutex
	values map[string]any
}

func NewMemoryDocument() *MemoryDocument {
	return &MemoryDocument{}
}

func (d *MemoryDocument) Get(_ context.Context) (map[string]any, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.values == nil {
		return nil, false, nil
	}
	out := make(map[string]any, len(d.values))
	for k, v := range d.values {
		out[k] = v
	}
	return out, true, nil
}

func (d *MemoryDocument) SetMerge(_ context.Context, values map[string]any) error {
	if len(values) == 0 {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.values == nil {
		d.values = make(map[string]any, len(values))
	}
	for k, v := range values {
		d.values[k] = v
	}
	return nil
}

package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/pbanos/ptree"
)

/*
Memory is a ModelStore that keeps models encoded in the memory of the
process. Models are encoded when created or stored and decoded again on
every Get, so neither the caller's model nor the ones it gets back share any
round, tree or series with the stored copy.

Models in a Memory store are lost when the process exits: it serves tests
and programs that fit and use their models in a single run.
*/
type Memory struct {
	codec  Codec
	mu     sync.RWMutex
	models map[string][]byte
}

// NewMemory returns an empty Memory store encoding its models with codec.
func NewMemory(codec Codec) *Memory {
	return &Memory{codec: codec, models: make(map[string][]byte)}
}

// Create sets a new ID on the model and keeps an encoded copy of it.
func (ms *Memory) Create(ctx context.Context, m *ptree.Model) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	id := NewID()
	for ms.models[id] != nil {
		id = NewID()
	}
	m.ID = id
	data, err := ms.codec.Encode(m)
	if err != nil {
		return fmt.Errorf("creating model: encoding model: %v", err)
	}
	ms.models[id] = data
	return nil
}

// Get returns a fresh copy of the model with the given ID, or nil if there
// is none.
func (ms *Memory) Get(ctx context.Context, id string) (*ptree.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ms.mu.RLock()
	data := ms.models[id]
	ms.mu.RUnlock()
	if data == nil {
		return nil, nil
	}
	m, err := ms.codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("retrieving model %q: decoding: %v", id, err)
	}
	return m, nil
}

// Store replaces the stored copy of a model created before.
func (ms *Memory) Store(ctx context.Context, m *ptree.Model) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := ms.codec.Encode(m)
	if err != nil {
		return fmt.Errorf("storing model %q: encoding model: %v", m.ID, err)
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.models[m.ID] == nil {
		return fmt.Errorf("storing model %q: not found", m.ID)
	}
	ms.models[m.ID] = data
	return nil
}

// Delete drops the model, if it is in the store.
func (ms *Memory) Delete(ctx context.Context, m *ptree.Model) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ms.mu.Lock()
	delete(ms.models, m.ID)
	ms.mu.Unlock()
	return nil
}

// Len returns the number of models in the store.
func (ms *Memory) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.models)
}

// Close drops every model in the store.
func (ms *Memory) Close(ctx context.Context) error {
	ms.mu.Lock()
	ms.models = make(map[string][]byte)
	ms.mu.Unlock()
	return nil
}

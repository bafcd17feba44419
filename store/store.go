/*
Package store persists fitted models: codecs to turn them into bytes and back,
files holding a model and model stores where models are kept by ID.
*/
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/pbanos/ptree"
)

/*
ModelStore keeps fitted models by ID. Implementations keep models encoded,
so a model handed to Create or Store can be changed afterwards without
changing what is stored, and every Get returns a new copy.

Every method takes a context and returns its error without touching the
store if it is done.
*/
type ModelStore interface {
	// Create sets a new random ID on the model and saves it.
	Create(ctx context.Context, m *ptree.Model) error
	// Get returns the model with the given ID, or nil without error if
	// there is none.
	Get(ctx context.Context, id string) (*ptree.Model, error)
	// Store saves a model created before under its ID, replacing the
	// previous version.
	Store(ctx context.Context, m *ptree.Model) error
	// Delete removes the model with the ID of m. Deleting a model that is
	// not in the store is not an error.
	Delete(ctx context.Context, m *ptree.Model) error
	// Close releases the resources of the store.
	Close(ctx context.Context) error
}

// NewID returns a new random model ID.
func NewID() string {
	return uuid.NewString()
}

/*
Codec is an interface for objects that allow encoding models into slices of
bytes and decoding them back to models.
*/
type Codec interface {
	// Encode receives a model and returns a slice of bytes with the model
	// encoded or an error if the encoding could not be performed.
	Encode(*ptree.Model) ([]byte, error)
	// Decode receives a slice of bytes and returns the model decoded from it
	// or an error if the decoding could not be performed.
	Decode([]byte) (*ptree.Model, error)
}

var (
	// JSON encodes models as JSON documents.
	JSON Codec = jsonCodec{}
	// Msgpack encodes models with MessagePack.
	Msgpack Codec = msgpackCodec{}
)

type jsonCodec struct{}

func (jsonCodec) Encode(m *ptree.Model) ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

func (jsonCodec) Decode(data []byte) (*ptree.Model, error) {
	m := &ptree.Model{}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, err
	}
	return m, nil
}

type msgpackCodec struct{}

func (msgpackCodec) Encode(m *ptree.Model) ([]byte, error) {
	return msgpack.Marshal(m)
}

func (msgpackCodec) Decode(data []byte) (*ptree.Model, error) {
	m := &ptree.Model{}
	if err := msgpack.Unmarshal(data, m); err != nil {
		return nil, err
	}
	return m, nil
}

/*
CodecFor takes a file path and returns the codec for its extension:
Msgpack for .msgpack and .mp files, JSON for anything else.
*/
func CodecFor(path string) Codec {
	switch filepath.Ext(path) {
	case ".msgpack", ".mp":
		return Msgpack
	}
	return JSON
}

// ReadFile takes a file path and returns the model encoded in it.
func ReadFile(path string) (*ptree.Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model file %s: %w", path, err)
	}
	m, err := CodecFor(path).Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decoding model file %s: %w", path, err)
	}
	return m, nil
}

// WriteFile takes a file path and a model and writes the encoded model to it.
func WriteFile(path string, m *ptree.Model) error {
	data, err := CodecFor(path).Encode(m)
	if err != nil {
		return fmt.Errorf("encoding model: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing model file %s: %w", path, err)
	}
	return nil
}

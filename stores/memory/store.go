package memory

import (
	"context"
	"sync"

	"github.com/ayukmr/lixel-server/core"
	"github.com/sirupsen/logrus"
)

// memStore keeps the last saved document in serialized form, so every Load hands out a
// fresh copy that the caller is free to mutate.
type memStore struct {
	mu       sync.RWMutex
	document []byte
}

// NewStore creates a new in-memory store holding an empty collection.
func NewStore() *memStore {
	return &memStore{}
}

func (s *memStore) Load(ctx context.Context) (*core.Collection, error) {
	s.mu.RLock()
	document := s.document
	s.mu.RUnlock()

	if document == nil {
		return core.NewCollection(), nil
	}
	return core.DecodeCollection(document)
}

func (s *memStore) Save(ctx context.Context, collection *core.Collection) error {
	data, err := core.EncodeCollection(collection)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.document = data
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"canvas_count": len(collection.Canvases),
		"data_length":  len(data),
	}).Debug("Collection saved in memory")
	return nil
}

package core

import (
	"encoding/json"
	"fmt"
)

// EncodeCollection serializes a collection into the persisted document shape
// {"canvases": [{"id": ..., "content": [[...]]}]}.
func EncodeCollection(collection *Collection) ([]byte, error) {
	doc := Collection{Canvases: collection.Canvases}
	if doc.Canvases == nil {
		doc.Canvases = []Canvas{}
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode collection: %w", err)
	}
	return data, nil
}

// DecodeCollection parses a persisted document. Any malformed input, including an empty
// one, is reported as ErrStorageCorrupt.
func DecodeCollection(data []byte) (*Collection, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrStorageCorrupt)
	}

	var collection Collection
	if err := json.Unmarshal(data, &collection); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageCorrupt, err)
	}
	if collection.Canvases == nil {
		collection.Canvases = []Canvas{}
	}
	return &collection, nil
}

// NewCollection returns an empty collection, the state of a store that has never been saved.
func NewCollection() *Collection {
	return &Collection{Canvases: []Canvas{}}
}

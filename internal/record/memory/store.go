// Package memory provides an in-memory record store for development and
// testing.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/openpatata/scrapers/internal/record"
)

// Store keeps collections in process memory.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]record.Doc
}

// New constructs an empty Store.
func New() *Store {
	return &Store{collections: make(map[string]map[string]record.Doc)}
}

// Upsert inserts or replaces a document, creating the collection on
// first write.
func (s *Store) Upsert(_ context.Context, collection, id string, doc record.Doc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, ok := s.collections[collection]
	if !ok {
		col = make(map[string]record.Doc)
		s.collections[collection] = col
	}
	stored := make(record.Doc, len(doc)+1)
	for k, v := range doc {
		stored[k] = v
	}
	stored["_id"] = id
	col[id] = stored
	return nil
}

// Get fetches a document by id.
func (s *Store) Get(_ context.Context, collection, id string) (record.Doc, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, false, nil
	}
	return doc, true, nil
}

// All returns every document in the collection, ordered by id.
func (s *Store) All(_ context.Context, collection string) ([]record.Doc, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col := s.collections[collection]
	ids := make([]string, 0, len(col))
	for id := range col {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]record.Doc, 0, len(ids))
	for _, id := range ids {
		out = append(out, col[id])
	}
	return out, nil
}

// Delete removes a document. Nothing in the crawl pipeline deletes
// records; this exists for tests exercising mirror reimport.
func (s *Store) Delete(_ context.Context, collection, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections[collection], id)
}

// Package record defines the document model shared across subsystems and
// the store boundary the sync engine and tasks persist through.
package record

import (
	"context"
	"fmt"
	"sort"
)

// Well-known collection names. Collections are created implicitly on
// first write; this list exists so CLI commands can default to "all".
const (
	CollectionBills           = "bills"
	CollectionMPs             = "mps"
	CollectionPlenarySittings = "plenary_sittings"
	CollectionQuestions       = "questions"
)

// Collections returns the known collection names in stable order.
func Collections() []string {
	return []string{
		CollectionBills,
		CollectionMPs,
		CollectionPlenarySittings,
		CollectionQuestions,
	}
}

// Doc is a single structured document. Values are restricted to the
// canonical types string, int, float64, bool, nil, []any and
// map[string]any so that the mirror codec can serialize them
// deterministically.
type Doc map[string]any

// ID returns the document's primary key, or "" when unset.
func (d Doc) ID() string {
	id, _ := d["_id"].(string)
	return id
}

// WithoutID returns a shallow copy of the document with the "_id" key
// stripped. Mirror files carry the id in their filename, not their body.
func (d Doc) WithoutID() Doc {
	out := make(Doc, len(d))
	for k, v := range d {
		if k == "_id" {
			continue
		}
		out[k] = v
	}
	return out
}

// Sources returns the provenance URIs recorded on the document.
func (d Doc) Sources() []string {
	raw, _ := d["_sources"].([]any)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// AddSource records a provenance URI, keeping the list sorted and
// deduplicated so repeated crawls do not perturb the canonical encoding.
func (d Doc) AddSource(uri string) {
	seen := map[string]bool{uri: true}
	merged := []string{uri}
	for _, s := range d.Sources() {
		if !seen[s] {
			seen[s] = true
			merged = append(merged, s)
		}
	}
	sort.Strings(merged)
	out := make([]any, len(merged))
	for i, s := range merged {
		out[i] = s
	}
	d["_sources"] = out
}

// StoreError wraps a store-level failure. Store failures are fatal for
// the current operation; callers must not mask them as per-item errors.
type StoreError struct {
	Collection string
	Op         string
	Err        error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s on %q: %v", e.Op, e.Collection, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Store is the keyed collection boundary. Implementations guarantee
// per-call atomicity only; there are no cross-call transactions.
type Store interface {
	// Upsert inserts or replaces the document with the given id.
	Upsert(ctx context.Context, collection, id string, doc Doc) error
	// Get fetches one document. The boolean reports presence; absence
	// is not an error.
	Get(ctx context.Context, collection, id string) (Doc, bool, error)
	// All returns every document in the collection, ordered by id.
	All(ctx context.Context, collection string) ([]Doc, error)
}

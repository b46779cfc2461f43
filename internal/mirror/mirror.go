package mirror

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/openpatata/scrapers/internal/metrics"
	"github.com/openpatata/scrapers/internal/record"
)

// SchemaError reports one mirror file that could not be loaded. The
// rest of the directory is unaffected.
type SchemaError struct {
	File string
	Err  error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("mirror: %s: %v", e.File, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// Report summarizes one collection's load or unload.
type Report struct {
	Collection string
	Processed  int
	Failures   []*SchemaError
}

// Mirror moves records between the store and a data directory holding
// one YAML file per record, grouped in per-collection subdirectories.
type Mirror struct {
	dir   string
	store record.Store
	log   *zap.Logger
}

// New builds a Mirror rooted at dir.
func New(dir string, store record.Store, log *zap.Logger) *Mirror {
	if log == nil {
		log = zap.NewNop()
	}
	return &Mirror{dir: dir, store: store, log: log}
}

// Unload writes every record of the given collections to the data
// directory, one file per record named by its id. Existing files are
// overwritten; files whose backing record has vanished are left in
// place for external diffing. Store and filesystem errors abort the
// export.
func (m *Mirror) Unload(ctx context.Context, collections ...string) ([]Report, error) {
	if len(collections) == 0 {
		collections = record.Collections()
	}

	reports := make([]Report, 0, len(collections))
	for _, collection := range collections {
		docs, err := m.store.All(ctx, collection)
		if err != nil {
			return nil, err
		}
		head := filepath.Join(m.dir, collection)
		if err := os.MkdirAll(head, 0o755); err != nil {
			return nil, fmt.Errorf("mirror: create %s: %w", head, err)
		}

		report := Report{Collection: collection}
		for _, doc := range docs {
			id := doc.ID()
			if id == "" {
				return nil, fmt.Errorf("mirror: %s record with no id", collection)
			}
			body, err := Marshal(doc.WithoutID())
			if err != nil {
				return nil, fmt.Errorf("mirror: serialize %s/%s: %w", collection, id, err)
			}
			path := filepath.Join(head, id+".yaml")
			if err := os.WriteFile(path, body, 0o644); err != nil {
				return nil, fmt.Errorf("mirror: write %s: %w", path, err)
			}
			report.Processed++
		}
		m.log.Info("unloaded collection",
			zap.String("collection", collection), zap.Int("records", report.Processed))
		metrics.ObserveMirror(collection, "unload", report.Processed)
		reports = append(reports, report)
	}
	return reports, nil
}

// Load reads every mirror file of the given collections and upserts
// the records into the store, keyed by the filename stem. Malformed
// files are reported per file and skipped; store errors abort the
// import outright so a partial write never masquerades as success.
func (m *Mirror) Load(ctx context.Context, collections ...string) ([]Report, error) {
	if len(collections) == 0 {
		collections = record.Collections()
	}

	reports := make([]Report, 0, len(collections))
	for _, collection := range collections {
		head := filepath.Join(m.dir, collection)
		entries, err := os.ReadDir(head)
		if err != nil {
			if os.IsNotExist(err) {
				reports = append(reports, Report{Collection: collection})
				continue
			}
			return nil, fmt.Errorf("mirror: read %s: %w", head, err)
		}

		names := make([]string, 0, len(entries))
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
				continue
			}
			names = append(names, entry.Name())
		}
		sort.Strings(names)

		report := Report{Collection: collection}
		for _, name := range names {
			doc, id, err := m.readFile(head, name)
			if err != nil {
				schemaErr := &SchemaError{File: filepath.Join(collection, name), Err: err}
				m.log.Warn("skipping mirror file", zap.Error(schemaErr))
				report.Failures = append(report.Failures, schemaErr)
				continue
			}
			if err := m.store.Upsert(ctx, collection, id, doc); err != nil {
				return nil, err
			}
			report.Processed++
		}
		m.log.Info("loaded collection",
			zap.String("collection", collection),
			zap.Int("records", report.Processed),
			zap.Int("failures", len(report.Failures)))
		metrics.ObserveMirror(collection, "load", report.Processed)
		reports = append(reports, report)
	}
	return reports, nil
}

func (m *Mirror) readFile(head, name string) (record.Doc, string, error) {
	data, err := os.ReadFile(filepath.Join(head, name))
	if err != nil {
		return nil, "", err
	}
	doc, err := Unmarshal(data)
	if err != nil {
		return nil, "", err
	}
	id := strings.TrimSuffix(name, ".yaml")
	if inBody := doc.ID(); inBody != "" && inBody != id {
		return nil, "", fmt.Errorf("in-body id %q contradicts filename", inBody)
	}
	delete(doc, "_id")
	return doc, id, nil
}

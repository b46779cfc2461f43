// Package postgres provides the Postgres-backed record store.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openpatata/scrapers/internal/metrics"
	"github.com/openpatata/scrapers/internal/record"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the connection pool used for record rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// querier is the subset of pgxpool.Pool the store needs; pgxmock
// implements it in tests.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store persists documents in a single (collection, id, doc JSONB) table.
type Store struct {
	pool  querier
	table string
}

// New creates a Store backed by a fresh pgx pool.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "records"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool, table: table}, nil
}

// NewWithPool constructs a Store from an existing pool (primarily for
// testing with pgxmock).
func NewWithPool(pool querier, table string) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "records"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Upsert inserts or replaces a document by (collection, id).
func (s *Store) Upsert(ctx context.Context, collection, id string, doc record.Doc) error {
	if id == "" {
		return &record.StoreError{Collection: collection, Op: "upsert",
			Err: errors.New("document id is required")}
	}
	body, err := json.Marshal(doc.WithoutID())
	if err != nil {
		return &record.StoreError{Collection: collection, Op: "upsert",
			Err: fmt.Errorf("marshal document %q: %w", id, err)}
	}
	query := fmt.Sprintf(`
INSERT INTO %s (collection, id, doc)
VALUES ($1, $2, $3)
ON CONFLICT (collection, id) DO UPDATE SET doc = EXCLUDED.doc`, s.table)
	if _, err := s.pool.Exec(ctx, query, collection, id, body); err != nil {
		metrics.ObserveStore("upsert", "error")
		return &record.StoreError{Collection: collection, Op: "upsert", Err: err}
	}
	metrics.ObserveStore("upsert", "ok")
	return nil
}

// Get fetches one document by id.
func (s *Store) Get(ctx context.Context, collection, id string) (record.Doc, bool, error) {
	query := fmt.Sprintf(`SELECT doc FROM %s WHERE collection = $1 AND id = $2`, s.table)
	var body []byte
	err := s.pool.QueryRow(ctx, query, collection, id).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &record.StoreError{Collection: collection, Op: "get", Err: err}
	}
	doc, err := unmarshalDoc(body, id)
	if err != nil {
		return nil, false, &record.StoreError{Collection: collection, Op: "get", Err: err}
	}
	return doc, true, nil
}

// All returns every document in the collection, ordered by id.
func (s *Store) All(ctx context.Context, collection string) ([]record.Doc, error) {
	query := fmt.Sprintf(`SELECT id, doc FROM %s WHERE collection = $1 ORDER BY id`, s.table)
	rows, err := s.pool.Query(ctx, query, collection)
	if err != nil {
		return nil, &record.StoreError{Collection: collection, Op: "all", Err: err}
	}
	defer rows.Close()

	var out []record.Doc
	for rows.Next() {
		var (
			id   string
			body []byte
		)
		if err := rows.Scan(&id, &body); err != nil {
			return nil, &record.StoreError{Collection: collection, Op: "all", Err: err}
		}
		doc, err := unmarshalDoc(body, id)
		if err != nil {
			return nil, &record.StoreError{Collection: collection, Op: "all", Err: err}
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, &record.StoreError{Collection: collection, Op: "all", Err: err}
	}
	return out, nil
}

// unmarshalDoc decodes a JSONB body and reattaches the id. json.Unmarshal
// yields float64 for every number; integral values are narrowed back to
// int so documents keep their canonical scalar types.
func unmarshalDoc(body []byte, id string) (record.Doc, error) {
	var doc record.Doc
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal document %q: %w", id, err)
	}
	narrowed, _ := narrowNumbers(map[string]any(doc)).(map[string]any)
	doc = record.Doc(narrowed)
	doc["_id"] = id
	return doc, nil
}

func narrowNumbers(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, item := range val {
			val[k] = narrowNumbers(item)
		}
		return val
	case []any:
		for i, item := range val {
			val[i] = narrowNumbers(item)
		}
		return val
	case float64:
		if val == float64(int(val)) {
			return int(val)
		}
		return val
	default:
		return v
	}
}

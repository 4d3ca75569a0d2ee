// Package docstore keeps a copy of every indexed document in PostgreSQL so
// scorer hooks can read stored fields independently of the index segments.
package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/postgres"
)

const schema = `CREATE TABLE IF NOT EXISTS documents (
	id         BIGINT PRIMARY KEY,
	fields     JSONB NOT NULL,
	indexed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// fetchTimeout bounds one Fetch; scorer hooks have no context of their own.
const fetchTimeout = 2 * time.Second

// Postgres is a scorer.Store backed by the documents table. Recently
// fetched documents are kept in an LRU so a hook touching the same document
// from several leaves costs one round trip.
type Postgres struct {
	db     *postgres.Client
	recent *lru.Cache[uint64, map[string]string]
	logger *slog.Logger
}

// NewPostgres returns a store over db caching up to cacheSize documents.
// cacheSize <= 0 selects 1024.
func NewPostgres(db *postgres.Client, cacheSize int) (*Postgres, error) {
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	recent, err := lru.New[uint64, map[string]string](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating document cache: %w", err)
	}
	return &Postgres{
		db:     db,
		recent: recent,
		logger: slog.Default().With("component", "docstore"),
	}, nil
}

func (p *Postgres) EnsureSchema(ctx context.Context) error {
	return p.db.EnsureSchema(ctx, schema)
}

// Put stores fields under docID, replacing any previous version.
func (p *Postgres) Put(ctx context.Context, docID uint64, fields map[string]string) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshaling document %d: %w", docID, err)
	}
	_, err = p.db.DB.ExecContext(ctx,
		`INSERT INTO documents (id, fields) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET fields = EXCLUDED.fields, indexed_at = NOW()`,
		int64(docID), data,
	)
	if err != nil {
		return fmt.Errorf("storing document %d: %w", docID, err)
	}
	p.recent.Add(docID, fields)
	return nil
}

// Fetch returns the stored fields of docID, or nil when the document was
// never stored.
func (p *Postgres) Fetch(docID uint64) (map[string]string, error) {
	if fields, ok := p.recent.Get(docID); ok {
		return fields, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	var data []byte
	err := p.db.DB.QueryRowContext(ctx,
		`SELECT fields FROM documents WHERE id = $1`, int64(docID),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching document %d: %w", docID, err)
	}
	var fields map[string]string
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("decoding document %d: %w", docID, err)
	}
	p.recent.Add(docID, fields)
	p.logger.Debug("document fetched", "doc_id", docID, "fields", len(fields))
	return fields, nil
}

// Count returns the number of stored documents.
func (p *Postgres) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := p.db.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}

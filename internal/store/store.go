// Package store archives built bundles.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver

	"github.com/a3tai/mcp-pdf-covenants/internal/bundle"
)

var ErrNotFound = errors.New("store: bundle not found")

// Record is one archived bundle.
type Record struct {
	ID        uuid.UUID
	Path      string
	CreatedAt time.Time
	Bundle    *bundle.Bundle
}

// Archive persists bundles by id.
type Archive interface {
	Save(ctx context.Context, path string, b *bundle.Bundle) error
	Load(ctx context.Context, id uuid.UUID) (*Record, error)
	Close() error
}

const schema = `
create table if not exists covenant_bundles (
	id         uuid primary key,
	path       text not null,
	version    integer not null,
	bundle     jsonb not null,
	created_at timestamptz not null default now()
);
create index if not exists covenant_bundles_path_idx on covenant_bundles (path, created_at desc)`

// BundleRepo stores bundles in Postgres.
type BundleRepo struct{ DB *sql.DB }

// Open connects to dsn, checks the connection and creates the table.
func Open(ctx context.Context, dsn string) (*BundleRepo, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(1 * time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db.Ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &BundleRepo{DB: db}, nil
}

// Save inserts the bundle under its id. Saving the same id again
// replaces the stored JSON.
func (r *BundleRepo) Save(ctx context.Context, path string, b *bundle.Bundle) error {
	js, err := b.Marshal()
	if err != nil {
		return err
	}
	const q = `
insert into covenant_bundles(id, path, version, bundle)
values ($1,$2,$3,$4)
on conflict (id)
do update set bundle=excluded.bundle, path=excluded.path`
	if _, err := r.DB.ExecContext(ctx, q, b.ID(), path, b.Version, js); err != nil {
		return fmt.Errorf("failed to save bundle %s: %w", b.ID(), err)
	}
	return nil
}

// Load returns the archived bundle with the given id.
func (r *BundleRepo) Load(ctx context.Context, id uuid.UUID) (*Record, error) {
	const q = `select path, bundle, created_at from covenant_bundles where id=$1`
	var (
		rec = Record{ID: id}
		js  []byte
	)
	err := r.DB.QueryRowContext(ctx, q, id).Scan(&rec.Path, &js, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if rec.Bundle, err = bundle.Decode(js); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Close closes the connection pool
func (r *BundleRepo) Close() error {
	return r.DB.Close()
}

// MemoryArchive keeps bundles in memory.
type MemoryArchive struct {
	mu      sync.RWMutex
	records map[uuid.UUID]Record
}

// NewMemoryArchive creates an empty archive
func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{records: make(map[uuid.UUID]Record)}
}

func (m *MemoryArchive) Save(ctx context.Context, path string, b *bundle.Bundle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[b.ID()] = Record{ID: b.ID(), Path: path, CreatedAt: time.Now(), Bundle: b}
	return nil
}

func (m *MemoryArchive) Load(ctx context.Context, id uuid.UUID) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

// Len returns the number of stored bundles
func (m *MemoryArchive) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *MemoryArchive) Close() error {
	return nil
}

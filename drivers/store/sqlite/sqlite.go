// Package sqlite provides a durable possync.Store backed by an embedded
// SQLite database, the Go-side analogue of a per-browser object store.
package sqlite

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"possync"
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5 * time.Minute
)

// One row per cached record; the composite primary key is the namespace
// contract: records of two tenants can never collide for the same entity
// type. fetched_at is stamped by the store on arrival — records themselves
// carry no timestamp.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS sync_records (
	entity_type TEXT NOT NULL,
	tenant_id   TEXT NOT NULL,
	id          TEXT NOT NULL,
	data        BLOB NOT NULL,
	fetched_at  DATETIME NOT NULL,
	PRIMARY KEY (entity_type, tenant_id, id)
);
CREATE INDEX IF NOT EXISTS idx_sync_records_tenant ON sync_records (tenant_id);
`

// Store implements the possync.Store interface over SQLite.
type Store struct {
	db      *sqlx.DB
	dsn     string
	closeMx sync.Mutex
	closed  bool

	countersMu sync.Mutex
	counters   map[string]int
}

var _ possync.Store = (*Store)(nil)

// NewStore opens (creating if needed) the SQLite database at dsn and ensures
// the snapshot schema exists.
func NewStore(dsn string) (*Store, error) {
	log.Printf("Initializing SQLite store with DSN: %s", dsn)
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite connection: %w", err)
	}

	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure sync_records schema: %w", err)
	}

	log.Println("SQLite store initialized successfully.")
	return &Store{db: db, dsn: dsn, counters: make(map[string]int)}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.closeMx.Lock()
	defer s.closeMx.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Store) isClosed() bool {
	s.closeMx.Lock()
	defer s.closeMx.Unlock()
	return s.closed
}

type recordRow struct {
	ID   string `db:"id"`
	Data []byte `db:"data"`
}

// GetAll returns every record in the (entityType, tenantID) namespace.
func (s *Store) GetAll(ctx context.Context, entityType, tenantID string) ([]possync.RawRecord, error) {
	s.incrCounter("GetAll")
	if s.isClosed() {
		return nil, fmt.Errorf("sqlite store is closed")
	}
	var rows []recordRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, data FROM sync_records WHERE entity_type = ? AND tenant_id = ? ORDER BY rowid`,
		entityType, tenantID)
	if err != nil {
		s.incrCounter("GetAllError")
		return nil, fmt.Errorf("sqlite GetAll for %s/%s: %w", entityType, tenantID, err)
	}
	records := make([]possync.RawRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, possync.RawRecord{ID: row.ID, Data: row.Data})
	}
	return records, nil
}

// Put writes or overwrites a single record by id.
func (s *Store) Put(ctx context.Context, entityType, tenantID string, record possync.RawRecord) error {
	s.incrCounter("Put")
	if s.isClosed() {
		return fmt.Errorf("sqlite store is closed")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_records (entity_type, tenant_id, id, data, fetched_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (entity_type, tenant_id, id) DO UPDATE SET data = excluded.data, fetched_at = excluded.fetched_at`,
		entityType, tenantID, record.ID, record.Data, time.Now().UTC())
	if err != nil {
		s.incrCounter("PutError")
		return fmt.Errorf("sqlite Put %s/%s/%s: %w", entityType, tenantID, record.ID, err)
	}
	return nil
}

// PutAll replaces the namespace snapshot in a single transaction, so a reader
// never observes a half-replaced snapshot.
func (s *Store) PutAll(ctx context.Context, entityType, tenantID string, records []possync.RawRecord) error {
	s.incrCounter("PutAll")
	if s.isClosed() {
		return fmt.Errorf("sqlite store is closed")
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.incrCounter("PutAllError")
		return fmt.Errorf("sqlite PutAll begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Printf("WARN: sqlite PutAll rollback failed: %v", rbErr)
			}
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`DELETE FROM sync_records WHERE entity_type = ? AND tenant_id = ?`,
		entityType, tenantID); err != nil {
		s.incrCounter("PutAllError")
		return fmt.Errorf("sqlite PutAll clear %s/%s: %w", entityType, tenantID, err)
	}

	now := time.Now().UTC()
	for _, record := range records {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO sync_records (entity_type, tenant_id, id, data, fetched_at) VALUES (?, ?, ?, ?, ?)`,
			entityType, tenantID, record.ID, record.Data, now); err != nil {
			s.incrCounter("PutAllError")
			return fmt.Errorf("sqlite PutAll insert %s/%s/%s: %w", entityType, tenantID, record.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		s.incrCounter("PutAllError")
		return fmt.Errorf("sqlite PutAll commit: %w", err)
	}
	return nil
}

// Delete removes a single record. A missing id is not an error.
func (s *Store) Delete(ctx context.Context, entityType, tenantID, id string) error {
	s.incrCounter("Delete")
	if s.isClosed() {
		return fmt.Errorf("sqlite store is closed")
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM sync_records WHERE entity_type = ? AND tenant_id = ? AND id = ?`,
		entityType, tenantID, id)
	if err != nil {
		s.incrCounter("DeleteError")
		return fmt.Errorf("sqlite Delete %s/%s/%s: %w", entityType, tenantID, id, err)
	}
	return nil
}

// ClearTenant removes every record for the tenant across entity types.
func (s *Store) ClearTenant(ctx context.Context, tenantID string) error {
	s.incrCounter("ClearTenant")
	if s.isClosed() {
		return fmt.Errorf("sqlite store is closed")
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM sync_records WHERE tenant_id = ?`, tenantID)
	if err != nil {
		s.incrCounter("ClearTenantError")
		return fmt.Errorf("sqlite ClearTenant %s: %w", tenantID, err)
	}
	return nil
}

func (s *Store) incrCounter(name string) {
	s.countersMu.Lock()
	defer s.countersMu.Unlock()
	s.counters[name]++
}

// GetStoreStats returns store operation statistics for monitoring.
func (s *Store) GetStoreStats(ctx context.Context) possync.StoreStats {
	s.countersMu.Lock()
	defer s.countersMu.Unlock()
	cloned := make(map[string]int, len(s.counters))
	for k, v := range s.counters {
		cloned[k] = v
	}
	return possync.StoreStats{Counters: cloned}
}

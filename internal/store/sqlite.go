package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/ragforge/kbengine/internal/vectormath"
	"github.com/ragforge/kbengine/pkg/types"
)

// SQLiteStore is a durable chunk store: one SQLite file per container. The
// full chunk set is loaded into an in-memory store on open; mutations commit
// to disk first and only then update memory, so the two never disagree.
type SQLiteStore struct {
	db *sql.DB

	// wmu serializes writers; reads go through mem, which has its own lock.
	wmu sync.Mutex
	mem *MemoryStore

	// nextPosition preserves insertion order across restarts. Guarded by wmu.
	nextPosition int64
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return db, nil
}

// NewSQLiteStore opens (or creates) the container database at dbPath and
// loads its chunk set into memory.
func NewSQLiteStore(dbPath string, dimension int) (*SQLiteStore, error) {
	mem, err := NewMemoryStore(dimension)
	if err != nil {
		return nil, err
	}

	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	s := &SQLiteStore{db: db, mem: mem}
	if err := s.loadAll(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}

	return s, nil
}

// loadAll reads the full chunk set in insertion order into the memory store.
func (s *SQLiteStore) loadAll(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, document_name, ordinal, content, embedding, page, section, position
		FROM chunks ORDER BY position ASC
	`)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	var chunks []*types.DocumentChunk
	for rows.Next() {
		var c types.DocumentChunk
		var blob []byte
		var position int64
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.DocumentName, &c.Ordinal,
			&c.Content, &blob, &c.Page, &c.Section, &position); err != nil {
			return err
		}
		c.Embedding = deserializeVector(blob)
		chunks = append(chunks, &c)
		if position >= s.nextPosition {
			s.nextPosition = position + 1
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if len(chunks) == 0 {
		return nil
	}
	// Norms are recomputed on insert rather than read back from disk.
	return s.mem.Upsert(ctx, chunks)
}

// Upsert validates the batch, commits it to disk in a single transaction,
// then mirrors it into memory. A failed commit retains the prior file content
// and leaves memory untouched.
func (s *SQLiteStore) Upsert(ctx context.Context, chunks []*types.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	for i, c := range chunks {
		if err := c.Validate(s.mem.Dimension()); err != nil {
			return fmt.Errorf("chunk %d (%s): %w", i, c.ID, err)
		}
	}

	s.wmu.Lock()
	defer s.wmu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const upsertQuery = `
		INSERT INTO chunks (id, document_id, document_name, ordinal, content, embedding, norm, page, section, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			document_id = excluded.document_id,
			document_name = excluded.document_name,
			ordinal = excluded.ordinal,
			content = excluded.content,
			embedding = excluded.embedding,
			norm = excluded.norm,
			page = excluded.page,
			section = excluded.section
	`
	// position is intentionally not updated on conflict: a replaced chunk
	// keeps its original insertion order.
	for _, c := range chunks {
		norm := vectormath.Norm(c.Embedding)
		if _, err := tx.ExecContext(ctx, upsertQuery,
			c.ID, c.DocumentID, c.DocumentName, c.Ordinal, c.Content,
			serializeVector(c.Embedding), norm, c.Page, c.Section, s.nextPosition); err != nil {
			return fmt.Errorf("failed to upsert chunk %s: %w", c.ID, err)
		}
		s.nextPosition++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	return s.mem.Upsert(ctx, chunks)
}

// Search delegates to the in-memory linear scan.
func (s *SQLiteStore) Search(ctx context.Context, query []float32, topK int) ([]VectorResult, error) {
	return s.mem.Search(ctx, query, topK)
}

// Get returns a copy of the chunk with the given ID.
func (s *SQLiteStore) Get(ctx context.Context, chunkID string) (*types.DocumentChunk, error) {
	return s.mem.Get(ctx, chunkID)
}

// List returns copies of all chunks in insertion order.
func (s *SQLiteStore) List(ctx context.Context) ([]*types.DocumentChunk, error) {
	return s.mem.List(ctx)
}

// DeleteByDocument removes a document's chunks from disk, then from memory.
func (s *SQLiteStore) DeleteByDocument(ctx context.Context, documentID string) ([]string, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", documentID); err != nil {
		return nil, fmt.Errorf("failed to delete chunks: %w", err)
	}
	return s.mem.DeleteByDocument(ctx, documentID)
}

// Clear removes all chunks from disk, then from memory.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM chunks"); err != nil {
		return fmt.Errorf("failed to clear chunks: %w", err)
	}
	return s.mem.Clear(ctx)
}

// Count returns the current chunk count.
func (s *SQLiteStore) Count() int {
	return s.mem.Count()
}

// Dimension returns the configured embedding dimension.
func (s *SQLiteStore) Dimension() int {
	return s.mem.Dimension()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

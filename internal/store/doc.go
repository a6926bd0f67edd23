// Package store provides per-container chunk storage with exact cosine
// similarity search.
//
// Two backends implement the Store interface:
//
//   - MemoryStore: volatile, in-memory only
//   - SQLiteStore: durable, one SQLite file per container; the chunk set is
//     loaded in full on open and mutations are written through
//     transactionally (disk commits before memory updates)
//
// Both backends cache each chunk's L2 norm at write time so the search inner
// loop is a dot product and a division, with no sqrt per chunk.
//
// # Basic Usage
//
//	s, err := store.NewSQLiteStore("container.db", 768)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
//	if err := s.Upsert(ctx, chunks); err != nil {
//	    log.Fatal(err)
//	}
//
//	results, err := s.Search(ctx, queryEmbedding, 10)
//
// # Concurrency
//
// Each store serializes its own mutations against its own reads: batch
// upserts hold an exclusive lock for the duration of the batch, searches hold
// a shared lock. A reader never observes a store mid-batch.
//
// # Build Tags
//
// The default (purego) build uses modernc.org/sqlite and requires no C
// compiler. Building with -tags cgo_sqlite switches to mattn/go-sqlite3.
package store

// Package storage is the persistent notebook store.
//
// # Overview
//
// The package defines the Store interface and its SQLite implementation
// (SQLiteStore). Three logical tables are kept in sync: notebooks (full
// records as JSON blobs), metadata (lightweight summaries for listing) and
// calendar_index (a derived date → page-activity cache). A fourth table,
// kvstore, is owned by internal/kvstore and shares the same database file.
//
// # Consistency
//
// SaveNotebook and DeleteNotebook run their multi-table writes inside a
// single transaction via dbx.WithTx. The calendar index is a rebuildable
// cache, never a source of truth: RebuildCalendarIndex recomputes it from
// the notebook records and atomically replaces the table contents, so any
// staleness is bounded by the next rebuild.
//
// # Concurrency
//
// The store opens its database with a single connection, which serializes
// writes. That matches the single-writer usage model of a personal
// notebook: callers on distinct notebooks never corrupt each other, and a
// rebuild racing a save can at worst overwrite it with a slightly older
// snapshot.
//
// Key Types
//
//   - type Store       — interface used by the session layer
//   - type SQLiteStore — SQLite implementation
//
// Typical Usage
//
//	store, _ := storage.Open(ctx, "toshinote.db", log)
//	defer store.Close()
//	_ = store.SaveNotebook(ctx, nb)
//	metas, _ := store.GetAllMetadata(ctx)
package storage

// Package sync implements the reconciliation engine between a remote
// Karakeep bookmark collection and a local Markdown vault.
//
// # Overview
//
// The engine keeps both sides consistent under independent, concurrent
// edits. Given the remote bookmark set (active / archived / deleted) and the
// local document set (each document tagged with a bookmark id and a
// last-known remote note value), it decides per item whether to create,
// update, skip, delete, move, or tag - and, for note text, which side wins a
// conflict.
//
//	Karakeep API                          Markdown vault
//	     │  list / highlights / assets          │
//	     ▼                                      ▼
//	                     Syncer
//	   filters ─ title ─ filename ─ render ─ classify
//	     │                                      │
//	     └── note push (upstream) ◄── local edits (debounced)
//
// # Conflict detection
//
// Every rendered document carries the note value twice in its header: once
// as the live note and once as the reference note (original_note). Local
// edits to the Notes section are diffed against the reference note; text
// that differs from both the reference and the current remote value is
// pushed upstream, and the reference is backfilled behind a quiet window
// that re-validates the notes have not changed again.
//
// # Concurrency
//
// A Syncer runs at most one pass at a time; a second invocation is rejected
// with ErrSyncInProgress rather than queued. The reactive local-edit path
// (PropagateLocalEdit) runs independently of passes and relies on re-reading
// state at fire time instead of locks.
//
// # Error handling
//
// Per-item transient failures (one asset download, the bulk highlight
// fetch, one removal disposition) are logged and degrade the feature;
// anything else aborts the pass. Documents already written before a failure
// remain - a pass is at-least-once, not atomic.
package sync

// Package storage provides persistence backends for credential pool state.
//
// The pool persists per-key lifecycle state (status, consecutive failures,
// quarantine timestamp) so that a restarted gateway resumes with the same
// quarantine decisions instead of re-discovering broken keys against live
// traffic. Two backends are provided:
//
//   - MemoryBackend: process-local, for tests and stateless deployments
//   - SQLiteBackend: durable single-file storage (modernc.org/sqlite, WAL)
//
// Rate windows are intentionally not persisted; they decay within the
// trailing window and are cheap to rebuild.
package storage

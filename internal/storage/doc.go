// Package storage keeps an optional audit trail of alert runs and the
// notifications each run delivered.
//
// Drivers:
//   - "sqlite": SQLite database file (modernc.org/sqlite, no cgo)
//   - "file": append-only JSON Lines file
//
// Issue data itself is never persisted.
package storage

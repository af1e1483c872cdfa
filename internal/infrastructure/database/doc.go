// Package database manages the local SQLite store backing the reading
// history.
//
// The store is deliberately small: one writer (the polling goroutine
// recording readings), occasional readers (the HTTP history endpoint),
// and a prune loop enforcing retention. WAL mode lets reads proceed
// while a write is in flight; the connection pool is pinned to a single
// connection to match SQLite's single-writer model.
//
// Schema changes ship as embedded SQL migration files, applied in
// version order on startup. Each migration runs in its own transaction
// so a failure leaves the database at a known version.
package database

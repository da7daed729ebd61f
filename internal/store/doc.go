// Package store persists the audit trail of mutating tool calls in SQLite.
//
// Every write or delete tier tool call that reaches the dispatcher is
// recorded with its arguments, the status of the reply envelope and how long
// it took. The log is append-only; ListToolCalls and Summarize read it back
// for the audit subcommand.
//
// # SQLite Configuration
//
// The store uses the pure Go modernc.org/sqlite driver with WAL mode:
//
//	PRAGMA journal_mode=WAL;
//
// Use NewSQLiteStore(":memory:") or a file under t.TempDir() in tests.
package store

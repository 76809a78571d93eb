// Package store keeps the latest fleet snapshot in memory and, optionally, a
// per-engine history of polled values in SQLite.
package store

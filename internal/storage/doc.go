// Package storage provides the clock-in audit log.
//
// It records one entry per clock-in attempt (manual or scheduled) behind a
// small Store interface with two interchangeable backends: an append-only
// JSON Lines file and a SQLite database. The audit log is supplementary
// history; the scheduled-task file in internal/store remains the source of
// truth for task state.
package storage

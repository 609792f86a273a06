// Package storage provides the GORM-backed JobStore implementation.
//
// SQLite works for tests and single-node deployments; PostgreSQL is
// the intended production backend (and the only one that can pair the
// store with the advisory-lock Locker in pkg/lock).
package storage

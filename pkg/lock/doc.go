// Package lock provides cross-process advisory locking keyed by a
// stable hash of the tenant identifier.
//
// PostgresLocker maps keys onto pg_try_advisory_lock for real
// cross-process exclusivity. MemoryLocker is a process-local
// substitute for tests and single-node SQLite deployments. A hash
// collision between two tenants only makes them serialize with each
// other; it cannot corrupt state.
package lock

package lock

import (
	"github.com/cespare/xxhash/v2"
)

// Key hashes a tenant identifier to a stable, non-negative advisory
// lock key. Deterministic across processes and restarts.
func Key(tenantID string) int64 {
	h := xxhash.Sum64String(tenantID)
	// Clear the sign bit so the key is valid for backends that treat
	// lock keys as signed 64-bit integers.
	return int64(h & 0x7fffffffffffffff)
}

package raft

import "math/rand"

// pseudoRandomMs returns a value uniformly distributed in [0, n), used
// to derive the randomized election timeout in [base, 2*base) per
// §4.3. Pulled into its own function so tests can make timeouts
// deterministic by seeding math/rand's global source.
func pseudoRandomMs(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	return uint64(rand.Int63n(int64(n)))
}

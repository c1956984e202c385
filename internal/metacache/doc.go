// Package metacache provides the read-through cache for external metadata
// lookups. Entries live in the state database; correctness never depends on a
// hit, so backing failures quietly degrade to upstream calls.
package metacache

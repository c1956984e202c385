// Package bridge orchestrates reconciliation runs: catalog scan, parallel
// identity resolution, serialized group linking with rollback, stale entry
// cleanup, and the run report.
package bridge

// Package state persists the bridge's durable state in SQLite: link records
// (the idempotency ledger of committed materializations) and the metadata
// cache. Writes go through WAL with full synchronous mode so a committed
// record survives a crash mid-run.
package state

// Package services defines the shared error taxonomy and context plumbing used
// across the bridge. Sentinel errors classify failures as fatal (configuration,
// connectivity, state store) or group-scoped (unresolved, rolled back, conflict)
// so the run loop can decide between aborting and continuing.
package services

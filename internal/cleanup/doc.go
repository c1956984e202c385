// Package cleanup reconciles the library against the state store: artifacts
// belonging to files the catalog no longer reports are removed and emptied
// directories pruned back to the library roots.
package cleanup

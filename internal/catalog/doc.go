// Package catalog maps catalog file references onto the local source tree:
// stat-based fingerprints for change detection and grouping of supplemental
// files with their primary.
package catalog

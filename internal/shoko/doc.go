// Package shoko implements the client for the source-of-truth catalog API.
// The catalog owns media recognition; the bridge only reads its file and
// episode cross-references.
package shoko

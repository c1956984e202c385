// Package resolver assigns each catalog file an identity: a movie, a series
// episode, or an extra. Cross-references from the catalog are authoritative;
// title similarity is the last resort for regular episodes.
package resolver

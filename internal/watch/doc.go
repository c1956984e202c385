// Package watch reruns reconciliation when the source tree changes, with a
// debounce so import bursts trigger a single pass.
package watch

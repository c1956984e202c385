// Package pathing turns resolved identities into destination paths: the
// library folder layout, supplemental file placement, and symlink target
// rewriting through path mappings.
package pathing

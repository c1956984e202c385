// Package identity models the canonical identity of a resolved file group as a
// closed tagged union over movie, episode, and extra variants. Consumers switch
// exhaustively on Kind; Validate rejects ambiguous shapes at the persistence
// boundary.
package identity

// Package textutil provides filename sanitization for destination path
// segments and the case-folded similarity ratio used by title matching.
package textutil

package textutil

import "strings"

// fileNameReplacer replaces filesystem-unsafe characters with dashes. The set
// matches what Windows rejects, the strictest target for the destination tree.
var fileNameReplacer = strings.NewReplacer(
	"<", "-",
	">", "-",
	":", "-",
	"\"", "-",
	"/", "-",
	"\\", "-",
	"|", "-",
	"?", "-",
	"*", "-",
)

// SanitizeFileName replaces filesystem-unsafe characters in a name segment and
// trims surrounding whitespace. Blank input yields "Untitled" so callers never
// produce empty path components.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "Untitled"
	}
	cleaned := strings.TrimSpace(fileNameReplacer.Replace(name))
	if cleaned == "" {
		return "Untitled"
	}
	return cleaned
}

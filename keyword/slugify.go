package keyword

import (
	"regexp"
	"strings"
)

var nonSlugChars = regexp.MustCompile(`[^\pL\pN]+`)

// Slugify reduces an arbitrary string to lower-case letters and digits only.
// Lexicon terms are slugified at load time so matching is insensitive to how
// the term was written in the source file.
func Slugify(orig string) string {
	return strings.ToLower(nonSlugChars.ReplaceAllString(orig, ""))
}

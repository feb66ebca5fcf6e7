package keyword

import "slices"

// TokenInSet checks a single token against a list of tokens.
func TokenInSet(tok string, set []string) bool {
	return slices.Contains(set, tok)
}

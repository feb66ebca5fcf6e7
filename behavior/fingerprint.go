package behavior

import (
	"fmt"
	"strings"

	"github.com/spaolacci/murmur3"

	"github.com/inkhaven-social/warden/keyword"
)

// Fingerprint reduces free-form text to a short stable hash for duplicate
// detection: case-folded, punctuation stripped, whitespace collapsed, then
// hashed. Two posts that differ only in casing, spacing, or punctuation
// produce the same fingerprint.
//
// Uses murmur3 with the default seed and hex encoding. Empty or
// all-punctuation text returns "".
func Fingerprint(text string) string {
	toks := keyword.TokenizeText(text)
	if len(toks) == 0 {
		return ""
	}
	val := murmur3.Sum64([]byte(strings.Join(toks, " ")))
	return fmt.Sprintf("%016x", val)
}

// Fingerprints returns the distinct fingerprints of a set of text fields,
// preserving first-seen order.
func Fingerprints(texts []string) []string {
	out := make([]string, 0, len(texts))
	seen := make(map[string]bool, len(texts))
	for _, t := range texts {
		fp := Fingerprint(t)
		if fp == "" || seen[fp] {
			continue
		}
		seen[fp] = true
		out = append(out, fp)
	}
	return out
}

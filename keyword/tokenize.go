package keyword

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonTokenChars                = regexp.MustCompile(`[^\pL\pN\s]+`)
	nonTokenCharsKeepCensorChars = regexp.MustCompile(`[^\pL\pN\s#*_-]`)
)

// TokenizeTextWithRegex splits free-form text in to tokens: lower-case,
// unicode normalization, and some unicode folding (accent stripping).
//
// Works like an NLP tokenizer might in a fulltext search engine, so lexicon
// matching is robust against casing, punctuation, and diacritic variants.
func TokenizeTextWithRegex(text string, nonTokenCharsRegex *regexp.Regexp) []string {
	// the transform chain is stateful and not safe for concurrent use, so it
	// must be constructed on every call
	normFunc := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	split := strings.ToLower(nonTokenCharsRegex.ReplaceAllString(text, " "))
	bare := strings.ToLower(nonTokenCharsRegex.ReplaceAllString(split, ""))
	norm, _, err := transform.String(normFunc, bare)
	if err != nil {
		slog.Warn("unicode normalization error", "err", err)
		norm = bare
	}
	return strings.Fields(norm)
}

func TokenizeText(text string) []string {
	return TokenizeTextWithRegex(text, nonTokenChars)
}

// TokenizeTextSkippingCensorChars keeps the usual self-censorship characters
// (eg "f*ck", "sh_t") inside tokens so censored variants of lexicon terms can
// still be matched.
func TokenizeTextSkippingCensorChars(text string) []string {
	return TokenizeTextWithRegex(text, nonTokenCharsKeepCensorChars)
}

func splitIdentRune(c rune) bool {
	return !unicode.IsLetter(c) && !unicode.IsNumber(c)
}

// TokenizeIdentifier splits an identifier (eg a hostname) in to tokens,
// dropping single-character fragments.
//
// For example, free-crypto.example.tk becomes ["free", "crypto", "example", "tk"].
func TokenizeIdentifier(orig string) []string {
	fields := strings.FieldsFunc(orig, splitIdentRune)
	out := make([]string, 0, len(fields))
	for _, v := range fields {
		tok := Slugify(v)
		if len(tok) > 1 {
			out = append(out, tok)
		}
	}
	return out
}

package detector

import (
	"context"
	"strings"
	"unicode"

	"github.com/inkhaven-social/warden/flagstore"
	"github.com/inkhaven-social/warden/policy"
)

// https://en.wikipedia.org/wiki/GTUBE
var gtubeString = "XJS*C4JDBQADN1.NSBN3*2IDNEN*GTUBE-STANDARD-ANTI-UBE-TEST-EMAIL*C.34X"

// SpamDetector combines the GTUBE test string, policy blacklist patterns
// (substring match), and flood heuristics. Any hit triggers regardless of
// sensitivity; the whitelist exempts individual blacklist patterns.
type SpamDetector struct {
	charFloodThreshold int
	wordFloodThreshold int
}

func NewSpamDetector() *SpamDetector {
	return &SpamDetector{
		charFloodThreshold: 5,
		wordFloodThreshold: 3,
	}
}

func (d *SpamDetector) Name() string {
	return "spam"
}

func (d *SpamDetector) Detect(ctx context.Context, text string, snap *policy.Snapshot) (Signal, error) {
	f := snap.For(flagstore.FlagSpam)
	if !f.Enabled {
		return Signal{Type: flagstore.FlagSpam}, nil
	}

	sig := Signal{Type: flagstore.FlagSpam}
	hit := func(term string) {
		sig.Triggered = true
		sig.Confidence = 1.0
		sig.Terms = append(sig.Terms, term)
	}

	if strings.Contains(text, gtubeString) {
		hit("gtube")
	}

	lower := strings.ToLower(text)
	for pattern := range f.Blacklist {
		if f.InWhitelist(pattern) {
			continue
		}
		if strings.Contains(lower, pattern) {
			hit(pattern)
		}
	}

	if hasCharFlood(text, d.charFloodThreshold) {
		hit("char-flood")
	}
	if hasWordFlood(text, d.wordFloodThreshold) {
		hit("word-flood")
	}

	return sig, nil
}

// hasCharFlood reports threshold or more consecutive identical characters.
// RE2 has no backreferences, so this is a linear scan.
func hasCharFlood(text string, threshold int) bool {
	count := 1
	prev := rune(-1)
	for _, r := range text {
		if r == prev {
			count++
			if count >= threshold {
				return true
			}
		} else {
			count = 1
			prev = r
		}
	}
	return false
}

// hasWordFlood reports the same word appearing threshold or more times
// consecutively, case-insensitive.
func hasWordFlood(text string, threshold int) bool {
	words := strings.FieldsFunc(text, unicode.IsSpace)
	if len(words) < threshold {
		return false
	}

	count := 1
	prev := ""
	for _, w := range words {
		lower := strings.ToLower(w)
		if lower == prev {
			count++
			if count >= threshold {
				return true
			}
		} else {
			count = 1
			prev = lower
		}
	}
	return false
}

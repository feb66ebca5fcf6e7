package detector

import (
	"context"

	"github.com/inkhaven-social/warden/flagstore"
	"github.com/inkhaven-social/warden/keyword"
	"github.com/inkhaven-social/warden/policy"
)

// ProfanityDetector matches tokens against a severity lexicon. The policy
// whitelist exempts terms entirely; blacklisted terms match at severity 3,
// so they block under every sensitivity.
type ProfanityDetector struct {
	Lexicon *Lexicon
}

func NewProfanityDetector(lex *Lexicon) *ProfanityDetector {
	if lex == nil {
		lex = DefaultProfanityLexicon()
	}
	return &ProfanityDetector{Lexicon: lex}
}

func (d *ProfanityDetector) Name() string {
	return "profanity"
}

func (d *ProfanityDetector) Detect(ctx context.Context, text string, snap *policy.Snapshot) (Signal, error) {
	f := snap.For(flagstore.FlagProfanity)
	if !f.Enabled {
		return Signal{Type: flagstore.FlagProfanity}, nil
	}

	// tokenize twice so both plain and self-censored spellings are seen
	toks := keyword.TokenizeText(text)
	toks = append(toks, keyword.TokenizeTextSkippingCensorChars(text)...)

	maxSev := 0
	var matched []string
	seen := make(map[string]bool)
	for _, tok := range toks {
		slug := keyword.Slugify(tok)
		if slug == "" || seen[slug] {
			continue
		}
		seen[slug] = true
		if f.InWhitelist(slug) {
			continue
		}
		sev := d.Lexicon.Severity(slug)
		if f.InBlacklist(slug) && sev < 3 {
			sev = 3
		}
		if sev == 0 {
			continue
		}
		matched = append(matched, slug)
		if sev > maxSev {
			maxSev = sev
		}
	}

	sig := Signal{
		Type:     flagstore.FlagProfanity,
		Severity: maxSev,
		Terms:    matched,
	}
	if maxSev >= f.Sensitivity.SeverityCutoff() {
		sig.Triggered = true
		sig.Confidence = 1.0
	}
	return sig, nil
}

package detector

import (
	"context"
	"fmt"

	"github.com/inkhaven-social/warden/flagstore"
	"github.com/inkhaven-social/warden/keyword"
	"github.com/inkhaven-social/warden/policy"
	"github.com/inkhaven-social/warden/setstore"
)

// HateSetName is the curated term set consulted by HateSpeechDetector.
// It ships empty; operators load it from a sets file.
const HateSetName = "hate-terms"

// HateSpeechDetector checks tokens and adjacent token pairs against the
// curated hate term set plus the policy blacklist. A hit never blocks on its
// own; the engine reports the content for review instead.
type HateSpeechDetector struct {
	Sets setstore.SetStore
}

func NewHateSpeechDetector(sets setstore.SetStore) *HateSpeechDetector {
	return &HateSpeechDetector{Sets: sets}
}

func (d *HateSpeechDetector) Name() string {
	return "hate-speech"
}

func (d *HateSpeechDetector) Detect(ctx context.Context, text string, snap *policy.Snapshot) (Signal, error) {
	f := snap.For(flagstore.FlagHateSpeech)
	if !f.Enabled {
		return Signal{Type: flagstore.FlagHateSpeech}, nil
	}

	toks := keyword.TokenizeText(text)

	// single tokens plus adjacent pairs, so two-word phrases match
	candidates := make([]string, 0, len(toks)*2)
	for i, tok := range toks {
		candidates = append(candidates, keyword.Slugify(tok))
		if i+1 < len(toks) {
			candidates = append(candidates, keyword.Slugify(tok+toks[i+1]))
		}
	}

	sig := Signal{Type: flagstore.FlagHateSpeech}
	seen := make(map[string]bool)
	for _, slug := range candidates {
		if slug == "" || seen[slug] {
			continue
		}
		seen[slug] = true
		if f.InWhitelist(slug) {
			continue
		}
		inSet, err := d.Sets.InSet(ctx, HateSetName, slug)
		if err != nil {
			return Signal{Type: flagstore.FlagHateSpeech}, fmt.Errorf("hate term set lookup failed: %w", err)
		}
		if inSet || f.InBlacklist(slug) {
			sig.Triggered = true
			sig.Confidence = 0.9
			sig.Terms = append(sig.Terms, slug)
		}
	}

	return sig, nil
}

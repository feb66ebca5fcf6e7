package detector

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/inkhaven-social/warden/keyword"
)

// Lexicon maps slugified terms to a severity in 1..3 (1=mild, 3=severe).
// Immutable after construction, so it is safe to share across goroutines;
// reloading means building a new Lexicon.
type Lexicon struct {
	terms map[string]int
}

func NewLexicon(terms map[string]int) *Lexicon {
	m := make(map[string]int, len(terms))
	for t, sev := range terms {
		slug := keyword.Slugify(t)
		if slug == "" || sev < 1 {
			continue
		}
		if sev > 3 {
			sev = 3
		}
		if sev > m[slug] {
			m[slug] = sev
		}
	}
	return &Lexicon{terms: m}
}

// LoadLexiconFromFileJSON reads a {"term": severity} document.
func LoadLexiconFromFileJSON(p string) (*Lexicon, error) {
	raw, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	var doc map[string]int
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse lexicon file %s: %w", p, err)
	}
	return NewLexicon(doc), nil
}

// Severity returns the severity for an already-slugified token, or 0 when
// the token is not in the lexicon.
func (l *Lexicon) Severity(slug string) int {
	return l.terms[slug]
}

func (l *Lexicon) Len() int {
	return len(l.terms)
}

// DefaultProfanityLexicon is a small starter list. Deployments are expected
// to load a curated lexicon file over it; censored spellings are listed
// explicitly so the censor-tolerant tokenizer can match them.
func DefaultProfanityLexicon() *Lexicon {
	return NewLexicon(map[string]int{
		"damn": 1,
		"hell": 1,
		"crap": 1,
		"piss": 1,
		"arse": 1,

		"ass":     2,
		"asshole": 2,
		"bastard": 2,
		"bitch":   2,
		"b*tch":   2,
		"dick":    2,
		"prick":   2,
		"slut":    2,
		"whore":   2,

		"fuck":         3,
		"f*ck":         3,
		"fucking":      3,
		"fucker":       3,
		"motherfucker": 3,
		"shit":         3,
		"sh*t":         3,
		"bullshit":     3,
		"cunt":         3,
		"wanker":       3,
	})
}

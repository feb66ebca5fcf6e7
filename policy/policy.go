package policy

import (
	"fmt"
	"strings"
	"time"

	"github.com/inkhaven-social/warden/flagstore"
)

// Sensitivity controls how aggressive a filter is. Cutoffs are monotonic:
// everything blocked under PERMISSIVE is also blocked under MODERATE and
// STRICT.
type Sensitivity string

const (
	SensitivityStrict     Sensitivity = "strict"
	SensitivityModerate   Sensitivity = "moderate"
	SensitivityPermissive Sensitivity = "permissive"
)

func (s Sensitivity) Valid() bool {
	switch s {
	case SensitivityStrict, SensitivityModerate, SensitivityPermissive:
		return true
	}
	return false
}

// SeverityCutoff maps a sensitivity to the minimum term severity (1=mild,
// 2=moderate, 3=severe) that triggers a block. Lower cutoff means stricter.
func (s Sensitivity) SeverityCutoff() int {
	switch s {
	case SensitivityStrict:
		return 1
	case SensitivityPermissive:
		return 3
	default:
		return 2
	}
}

// FilterTypes lists every filter a policy snapshot carries, in decision
// priority order.
var FilterTypes = []flagstore.FlagType{
	flagstore.FlagSpam,
	flagstore.FlagProfanity,
	flagstore.FlagMaliciousURL,
	flagstore.FlagHateSpeech,
	flagstore.FlagNSFW,
}

// Filter is the admin-controlled configuration for one detector. Term sets
// are stored lowercased. For the malicious-URL filter the whitelist holds
// trusted domains; for text filters it holds terms exempted from the
// lexicon, and the blacklist holds extra terms blocked at any sensitivity.
type Filter struct {
	Type        flagstore.FlagType `json:"type"`
	Sensitivity Sensitivity        `json:"sensitivity"`
	Enabled     bool               `json:"enabled"`
	Whitelist   map[string]bool    `json:"whitelist,omitempty"`
	Blacklist   map[string]bool    `json:"blacklist,omitempty"`
	UpdatedAt   time.Time          `json:"updated_at"`
	UpdatedBy   string             `json:"updated_by,omitempty"`
}

func (f *Filter) InWhitelist(val string) bool {
	return f.Whitelist[strings.ToLower(val)]
}

func (f *Filter) InBlacklist(val string) bool {
	return f.Blacklist[strings.ToLower(val)]
}

// Snapshot is an immutable, versioned view of every filter's configuration.
// Evaluations hold one snapshot for their whole lifetime, so a concurrent
// admin update never changes a decision mid-flight.
type Snapshot struct {
	Version int64
	filters map[flagstore.FlagType]Filter
}

// For returns the configuration for a filter type. Unknown types read as a
// disabled filter.
func (s *Snapshot) For(t flagstore.FlagType) Filter {
	f, ok := s.filters[t]
	if !ok {
		return Filter{Type: t, Sensitivity: SensitivityModerate}
	}
	return f
}

func (s *Snapshot) Enabled(t flagstore.FlagType) bool {
	return s.For(t).Enabled
}

func defaultFilters() map[flagstore.FlagType]Filter {
	now := time.Now().UTC()
	out := make(map[flagstore.FlagType]Filter, len(FilterTypes))
	for _, t := range FilterTypes {
		out[t] = Filter{
			Type:        t,
			Sensitivity: SensitivityModerate,
			Enabled:     true,
			UpdatedAt:   now,
		}
	}
	return out
}

func lowerSet(vals []string) map[string]bool {
	if vals == nil {
		return nil
	}
	m := make(map[string]bool, len(vals))
	for _, v := range vals {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			m[v] = true
		}
	}
	return m
}

func copySet(m map[string]bool) map[string]bool {
	if m == nil {
		return nil
	}
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Update describes a partial change to one filter. Nil fields are left
// unchanged; an empty non-nil slice clears the corresponding set.
type Update struct {
	Sensitivity *Sensitivity
	Enabled     *bool
	Whitelist   []string
	Blacklist   []string
}

func (u *Update) Validate() error {
	if u.Sensitivity != nil && !u.Sensitivity.Valid() {
		return fmt.Errorf("invalid sensitivity: %q", *u.Sensitivity)
	}
	return nil
}

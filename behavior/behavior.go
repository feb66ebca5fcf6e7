package behavior

import (
	"time"
)

// FlagType names an account-level behavioral anomaly.
type FlagType string

const (
	FlagMultiAccountIP   FlagType = "multi-account-same-ip"
	FlagRapidContent     FlagType = "rapid-content"
	FlagDuplicateContent FlagType = "duplicate-content"
	FlagBotBehavior      FlagType = "bot-behavior"
)

// SuspicionFlag is an advisory finding about an account. It carries the
// metrics that triggered it so reviewers see the evidence without re-running
// the analysis. Suspicion flags never enforce anything on their own; a human
// or a separate policy decides what happens next.
type SuspicionFlag struct {
	AccountID  string         `json:"account_id"`
	Type       FlagType       `json:"type"`
	DetectedAt time.Time      `json:"detected_at"`
	Evidence   map[string]any `json:"evidence,omitempty"`
}

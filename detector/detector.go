package detector

import (
	"context"

	"github.com/inkhaven-social/warden/flagstore"
	"github.com/inkhaven-social/warden/policy"
)

// Signal is one detector's finding about a piece of text. A zero Signal
// means "nothing to report".
type Signal struct {
	Type       flagstore.FlagType
	Triggered  bool
	Confidence float64
	// Severity is the strongest matched lexicon severity (profanity only).
	Severity int
	// Terms carries the matched terms for audit logs, never for user-facing
	// messages.
	Terms []string
}

// Detector is a stateless check over text under one policy snapshot.
// Implementations must be safe for concurrent use; the decision engine runs
// them fanned out over the same input.
type Detector interface {
	Name() string
	Detect(ctx context.Context, text string, snap *policy.Snapshot) (Signal, error)
}

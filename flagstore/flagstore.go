package flagstore

import (
	"context"
	"time"

	"github.com/inkhaven-social/warden/content"
)

type FlagType string

const (
	FlagProfanity    FlagType = "profanity"
	FlagSpam         FlagType = "spam"
	FlagHateSpeech   FlagType = "hate-speech"
	FlagMaliciousURL FlagType = "malicious-url"
	FlagNSFW         FlagType = "nsfw"
)

// Method records how a flag came to exist.
type Method string

const (
	MethodAutomatic  Method = "automatic"
	MethodManual     Method = "manual"
	MethodUserMarked Method = "user-marked"
)

// ContentFlag is one observation about a content item. Flags are append-only:
// a later flag for the same (subject, type) supersedes earlier ones for
// decision purposes, while the full history is retained for audit. A flag
// with Negated set clears the type (creator retracting a self-mark, or a
// moderator overriding an automatic flag).
type ContentFlag struct {
	Subject    content.Ref
	Type       FlagType
	Confidence *float64
	Method     Method
	FlaggedBy  string
	FlaggedAt  time.Time
	Reviewed   bool
	Negated    bool
}

// FlagStore persists content flags. Add never overwrites; Get returns the
// full history for a subject in creation order, oldest first.
type FlagStore interface {
	Add(ctx context.Context, flag ContentFlag) error
	Get(ctx context.Context, subject content.Ref) ([]ContentFlag, error)
}

// Latest returns the most recent flag of the given type, or nil if the
// subject was never flagged with it. Input must be in creation order.
func Latest(flags []ContentFlag, t FlagType) *ContentFlag {
	for i := len(flags) - 1; i >= 0; i-- {
		if flags[i].Type == t {
			return &flags[i]
		}
	}
	return nil
}

// IsNSFW resolves the effective NSFW state from a flag history: the most
// recent NSFW flag wins, and a negated flag reads as not-NSFW.
func IsNSFW(flags []ContentFlag) bool {
	f := Latest(flags, FlagNSFW)
	if f == nil {
		return false
	}
	return !f.Negated
}

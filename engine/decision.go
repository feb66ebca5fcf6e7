package engine

import (
	"fmt"

	"github.com/inkhaven-social/warden/content"
	"github.com/inkhaven-social/warden/flagstore"
)

// ActionType names an automatic side effect taken with a decision.
type ActionType string

const (
	ActionBlock  ActionType = "block"
	ActionReport ActionType = "auto-report"
)

// Decision is the submission-time outcome for one content item. Flags are
// ordered by rule priority (spam, profanity, malicious-url, hate-speech), so
// the first blocking flag determines the user-facing message.
type Decision struct {
	Subject content.Ref           `json:"subject"`
	Allowed bool                  `json:"allowed"`
	Flags   []flagstore.FlagType  `json:"flags,omitempty"`
	Actions []ActionType          `json:"auto_actions,omitempty"`
	// PolicyVersion records which policy snapshot produced the decision.
	PolicyVersion int64 `json:"policy_version"`
	// BlockedURLs carries the offending URLs when the malicious-url flag is
	// present, for the blocked-attempt audit log.
	BlockedURLs []string `json:"blocked_urls,omitempty"`
}

// BlockedCode is the stable error code for rejected submissions.
const BlockedCode = "CONTENT_BLOCKED"

// One user-facing message per blocking flag type. Detector output (matched
// terms, confidences) is never echoed to the user.
var userMessages = map[flagstore.FlagType]string{
	flagstore.FlagSpam:         "Your submission was identified as spam and cannot be published.",
	flagstore.FlagProfanity:    "Your submission contains language that is not allowed. Please revise it and try again.",
	flagstore.FlagMaliciousURL: "Your submission links to a site flagged as unsafe. Remove the link and try again.",
}

// BlockedError is the structured rejection returned to the submitting user
// when content is not allowed.
type BlockedError struct {
	Code    string               `json:"code"`
	Flags   []flagstore.FlagType `json:"flags"`
	Message string               `json:"message"`
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Err returns the user-facing rejection for a blocked decision, or nil when
// the content was allowed.
func (d *Decision) Err() *BlockedError {
	if d.Allowed {
		return nil
	}
	msg := "Your submission violates the content policies and cannot be published."
	for _, t := range d.Flags {
		if m, ok := userMessages[t]; ok {
			msg = m
			break
		}
	}
	return &BlockedError{
		Code:    BlockedCode,
		Flags:   d.Flags,
		Message: msg,
	}
}

package enforcement

import (
	"time"
)

// Suspension blocks all platform access for an account, optionally until an
// expiry time. A nil ExpiresAt means permanent. Rows are retained after
// deactivation as an audit trail.
type Suspension struct {
	AccountID   string     `json:"account_id"`
	SuspendedBy string     `json:"suspended_by"`
	Reason      string     `json:"reason"`
	SuspendedAt time.Time  `json:"suspended_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Active      bool       `json:"active"`
}

func (s *Suspension) Permanent() bool {
	return s.ExpiresAt == nil
}

// ExpiredAt reports whether an expiring suspension has lapsed. Expiry is
// evaluated lazily at check time; a background sweep only exists for
// reporting, correctness never depends on it.
func (s *Suspension) ExpiredAt(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}

// Shadowban hides an account's content from other viewers without notifying
// the account. It never expires on its own; only explicit removal ends it.
type Shadowban struct {
	AccountID string    `json:"account_id"`
	AppliedBy string    `json:"applied_by"`
	Reason    string    `json:"reason"`
	AppliedAt time.Time `json:"applied_at"`
	Active    bool      `json:"active"`
}

// Status is the read-side view of an account's enforcement state, shaped for
// the request hot path: both components resolved in one call.
type Status struct {
	AccountID string `json:"account_id"`

	Suspended        bool       `json:"suspended"`
	SuspensionReason string     `json:"suspension_reason,omitempty"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	Permanent        bool       `json:"permanent,omitempty"`

	Shadowbanned    bool   `json:"shadowbanned"`
	ShadowbanReason string `json:"shadowban_reason,omitempty"`
}

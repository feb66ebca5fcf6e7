package enforcement

import (
	"context"
	"time"
)

// Store persists enforcement records. Implementations must uphold the
// at-most-one-active invariant: creating a suspension or shadowban
// deactivates any prior active record for the account in the same atomic
// step, so two concurrent moderator actions resolve to last-write-wins with
// both rows retained for audit. Records are never deleted.
type Store interface {
	CreateSuspension(ctx context.Context, susp Suspension) error
	// ActiveSuspension returns the account's active suspension row, or nil.
	// Lazy expiry is the caller's concern: an expiring row is returned even
	// after its expiry has passed.
	ActiveSuspension(ctx context.Context, accountID string) (*Suspension, error)
	// DeactivateSuspension marks the active suspension inactive, reporting
	// whether there was one.
	DeactivateSuspension(ctx context.Context, accountID string) (bool, error)
	SuspensionHistory(ctx context.Context, accountID string) ([]Suspension, error)
	// ExpireSuspensions deactivates every active suspension whose expiry has
	// passed, returning how many rows changed. Reporting hygiene only.
	ExpireSuspensions(ctx context.Context, now time.Time) (int, error)

	CreateShadowban(ctx context.Context, ban Shadowban) error
	ActiveShadowban(ctx context.Context, accountID string) (*Shadowban, error)
	DeactivateShadowban(ctx context.Context, accountID string) (bool, error)
	ShadowbanHistory(ctx context.Context, accountID string) ([]Shadowban, error)
}

package enforcement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/inkhaven-social/warden/roles"
)

// Service applies account sanctions and answers the read-only status query.
// All mutations require the acting account to hold the moderator role; the
// role check runs before any state change. Check carries no authorization,
// it runs on the hot path of every authenticated request.
type Service struct {
	Logger *slog.Logger
	Store  Store
	Roles  roles.Directory
}

func NewService(store Store, dir roles.Directory) *Service {
	return &Service{
		Logger: slog.Default().With("system", "enforcement"),
		Store:  store,
		Roles:  dir,
	}
}

// Suspend blocks all access for the account, optionally until expiresAt. Any
// prior active suspension is superseded in the same operation.
func (s *Service) Suspend(ctx context.Context, moderatorID, accountID, reason string, expiresAt *time.Time) error {
	if err := roles.RequireModerator(s.Roles, moderatorID, "suspend accounts"); err != nil {
		return err
	}
	if accountID == "" {
		return fmt.Errorf("suspension requires an account")
	}
	if reason == "" {
		return fmt.Errorf("suspension requires a reason")
	}
	now := time.Now().UTC()
	if expiresAt != nil && !expiresAt.After(now) {
		return fmt.Errorf("suspension expiry must be in the future")
	}

	err := s.Store.CreateSuspension(ctx, Suspension{
		AccountID:   accountID,
		SuspendedBy: moderatorID,
		Reason:      reason,
		SuspendedAt: now,
		ExpiresAt:   expiresAt,
	})
	if err != nil {
		return err
	}
	actionCount.WithLabelValues("suspend").Inc()
	s.Logger.Info("account suspended", "account", accountID, "moderator", moderatorID, "reason", reason, "permanent", expiresAt == nil)
	return nil
}

// LiftSuspension deactivates the account's active suspension, if any.
// Lifting an account that is not suspended is a no-op, not an error.
func (s *Service) LiftSuspension(ctx context.Context, moderatorID, accountID string) error {
	if err := roles.RequireModerator(s.Roles, moderatorID, "lift suspensions"); err != nil {
		return err
	}
	lifted, err := s.Store.DeactivateSuspension(ctx, accountID)
	if err != nil {
		return err
	}
	if !lifted {
		s.Logger.Info("lift requested for account with no active suspension", "account", accountID, "moderator", moderatorID)
		return nil
	}
	actionCount.WithLabelValues("lift-suspension").Inc()
	s.Logger.Info("suspension lifted", "account", accountID, "moderator", moderatorID)
	return nil
}

// Shadowban hides the account's content from other viewers. The affected
// account is never notified; enforcement happens only at read time.
func (s *Service) Shadowban(ctx context.Context, moderatorID, accountID, reason string) error {
	if err := roles.RequireModerator(s.Roles, moderatorID, "shadowban accounts"); err != nil {
		return err
	}
	if accountID == "" {
		return fmt.Errorf("shadowban requires an account")
	}
	if reason == "" {
		return fmt.Errorf("shadowban requires a reason")
	}

	err := s.Store.CreateShadowban(ctx, Shadowban{
		AccountID: accountID,
		AppliedBy: moderatorID,
		Reason:    reason,
		AppliedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	actionCount.WithLabelValues("shadowban").Inc()
	s.Logger.Info("account shadowbanned", "account", accountID, "moderator", moderatorID, "reason", reason)
	return nil
}

func (s *Service) RemoveShadowban(ctx context.Context, moderatorID, accountID string) error {
	if err := roles.RequireModerator(s.Roles, moderatorID, "remove shadowbans"); err != nil {
		return err
	}
	removed, err := s.Store.DeactivateShadowban(ctx, accountID)
	if err != nil {
		return err
	}
	if !removed {
		s.Logger.Info("removal requested for account with no active shadowban", "account", accountID, "moderator", moderatorID)
		return nil
	}
	actionCount.WithLabelValues("remove-shadowban").Inc()
	s.Logger.Info("shadowban removed", "account", accountID, "moderator", moderatorID)
	return nil
}

// Check resolves the account's current enforcement state. An expiring
// suspension whose expiry has passed reads as not suspended (lazy expiry);
// the stored row is left for the reporting sweep.
func (s *Service) Check(ctx context.Context, accountID string) (Status, error) {
	st := Status{AccountID: accountID}

	susp, err := s.Store.ActiveSuspension(ctx, accountID)
	if err != nil {
		return st, err
	}
	if susp != nil && !susp.ExpiredAt(time.Now().UTC()) {
		st.Suspended = true
		st.SuspensionReason = susp.Reason
		st.ExpiresAt = susp.ExpiresAt
		st.Permanent = susp.Permanent()
	}

	ban, err := s.Store.ActiveShadowban(ctx, accountID)
	if err != nil {
		return st, err
	}
	if ban != nil {
		st.Shadowbanned = true
		st.ShadowbanReason = ban.Reason
	}
	return st, nil
}

// IsShadowbanned is the narrow read the visibility filter depends on.
func (s *Service) IsShadowbanned(ctx context.Context, accountID string) (bool, error) {
	ban, err := s.Store.ActiveShadowban(ctx, accountID)
	if err != nil {
		return false, err
	}
	return ban != nil, nil
}

// ExpireSweep deactivates lapsed suspensions in bulk so reporting queries
// see accurate active counts. Check does not depend on it.
func (s *Service) ExpireSweep(ctx context.Context) (int, error) {
	n, err := s.Store.ExpireSuspensions(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		expiredSweepCount.Add(float64(n))
		s.Logger.Info("expired suspensions swept", "count", n)
	}
	return n, nil
}

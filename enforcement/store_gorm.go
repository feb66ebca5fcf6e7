package enforcement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type suspensionRow struct {
	gorm.Model
	AccountID   string `gorm:"index:idx_susp_account;index:idx_susp_account_active"`
	SuspendedBy string
	Reason      string
	SuspendedAt time.Time
	ExpiresAt   *time.Time
	Active      bool `gorm:"index:idx_susp_account_active"`
}

type shadowbanRow struct {
	gorm.Model
	AccountID string `gorm:"index:idx_ban_account;index:idx_ban_account_active"`
	AppliedBy string
	Reason    string
	AppliedAt time.Time
	Active    bool `gorm:"index:idx_ban_account_active"`
}

// GormStore persists enforcement records in sqlite or postgres. Supersede on
// create runs in one transaction; the active lookups are single indexed
// queries on (account_id, active) so they are safe on the request hot path.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&suspensionRow{}, &shadowbanRow{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate enforcement records: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) CreateSuspension(ctx context.Context, susp Suspension) error {
	if susp.SuspendedAt.IsZero() {
		susp.SuspendedAt = time.Now().UTC()
	}
	row := suspensionRow{
		AccountID:   susp.AccountID,
		SuspendedBy: susp.SuspendedBy,
		Reason:      susp.Reason,
		SuspendedAt: susp.SuspendedAt,
		ExpiresAt:   susp.ExpiresAt,
		Active:      true,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&suspensionRow{}).
			Where("account_id = ? AND active = ?", susp.AccountID, true).
			Update("active", false).Error; err != nil {
			return err
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return fmt.Errorf("failed to persist suspension: %w", err)
	}
	return nil
}

func (s *GormStore) ActiveSuspension(ctx context.Context, accountID string) (*Suspension, error) {
	var row suspensionRow
	err := s.db.WithContext(ctx).
		Where("account_id = ? AND active = ?", accountID, true).
		Order("id DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load active suspension: %w", err)
	}
	out := suspensionFromRow(row)
	return &out, nil
}

func (s *GormStore) DeactivateSuspension(ctx context.Context, accountID string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&suspensionRow{}).
		Where("account_id = ? AND active = ?", accountID, true).
		Update("active", false)
	if res.Error != nil {
		return false, fmt.Errorf("failed to deactivate suspension: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) SuspensionHistory(ctx context.Context, accountID string) ([]Suspension, error) {
	var rows []suspensionRow
	err := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load suspension history: %w", err)
	}
	out := make([]Suspension, 0, len(rows))
	for _, r := range rows {
		out = append(out, suspensionFromRow(r))
	}
	return out, nil
}

func (s *GormStore) ExpireSuspensions(ctx context.Context, now time.Time) (int, error) {
	res := s.db.WithContext(ctx).Model(&suspensionRow{}).
		Where("active = ? AND expires_at IS NOT NULL AND expires_at <= ?", true, now).
		Update("active", false)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to expire suspensions: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

func (s *GormStore) CreateShadowban(ctx context.Context, ban Shadowban) error {
	if ban.AppliedAt.IsZero() {
		ban.AppliedAt = time.Now().UTC()
	}
	row := shadowbanRow{
		AccountID: ban.AccountID,
		AppliedBy: ban.AppliedBy,
		Reason:    ban.Reason,
		AppliedAt: ban.AppliedAt,
		Active:    true,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&shadowbanRow{}).
			Where("account_id = ? AND active = ?", ban.AccountID, true).
			Update("active", false).Error; err != nil {
			return err
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return fmt.Errorf("failed to persist shadowban: %w", err)
	}
	return nil
}

func (s *GormStore) ActiveShadowban(ctx context.Context, accountID string) (*Shadowban, error) {
	var row shadowbanRow
	err := s.db.WithContext(ctx).
		Where("account_id = ? AND active = ?", accountID, true).
		Order("id DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load active shadowban: %w", err)
	}
	out := shadowbanFromRow(row)
	return &out, nil
}

func (s *GormStore) DeactivateShadowban(ctx context.Context, accountID string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&shadowbanRow{}).
		Where("account_id = ? AND active = ?", accountID, true).
		Update("active", false)
	if res.Error != nil {
		return false, fmt.Errorf("failed to deactivate shadowban: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) ShadowbanHistory(ctx context.Context, accountID string) ([]Shadowban, error) {
	var rows []shadowbanRow
	err := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load shadowban history: %w", err)
	}
	out := make([]Shadowban, 0, len(rows))
	for _, r := range rows {
		out = append(out, shadowbanFromRow(r))
	}
	return out, nil
}

func suspensionFromRow(r suspensionRow) Suspension {
	return Suspension{
		AccountID:   r.AccountID,
		SuspendedBy: r.SuspendedBy,
		Reason:      r.Reason,
		SuspendedAt: r.SuspendedAt,
		ExpiresAt:   r.ExpiresAt,
		Active:      r.Active,
	}
}

func shadowbanFromRow(r shadowbanRow) Shadowban {
	return Shadowban{
		AccountID: r.AccountID,
		AppliedBy: r.AppliedBy,
		Reason:    r.Reason,
		AppliedAt: r.AppliedAt,
		Active:    r.Active,
	}
}

package behavior

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type suspicionRow struct {
	gorm.Model
	AccountID  string `gorm:"index"`
	FlagType   string
	DetectedAt time.Time `gorm:"index"`
	Evidence   string
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&suspicionRow{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate suspicion flags: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Add(ctx context.Context, flag SuspicionFlag) error {
	if flag.DetectedAt.IsZero() {
		flag.DetectedAt = time.Now().UTC()
	}
	evidence := ""
	if flag.Evidence != nil {
		b, err := json.Marshal(flag.Evidence)
		if err != nil {
			return fmt.Errorf("encoding suspicion evidence: %w", err)
		}
		evidence = string(b)
	}
	row := suspicionRow{
		AccountID:  flag.AccountID,
		FlagType:   string(flag.Type),
		DetectedAt: flag.DetectedAt,
		Evidence:   evidence,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to persist suspicion flag: %w", err)
	}
	return nil
}

func (s *GormStore) ForAccount(ctx context.Context, accountID string) ([]SuspicionFlag, error) {
	var rows []suspicionRow
	err := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load suspicion flags: %w", err)
	}
	return flagsFromRows(rows)
}

func (s *GormStore) Recent(ctx context.Context, since time.Time) ([]SuspicionFlag, error) {
	var rows []suspicionRow
	err := s.db.WithContext(ctx).
		Where("detected_at >= ?", since).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load recent suspicion flags: %w", err)
	}
	return flagsFromRows(rows)
}

func flagsFromRows(rows []suspicionRow) ([]SuspicionFlag, error) {
	out := make([]SuspicionFlag, 0, len(rows))
	for _, r := range rows {
		f := SuspicionFlag{
			AccountID:  r.AccountID,
			Type:       FlagType(r.FlagType),
			DetectedAt: r.DetectedAt,
		}
		if r.Evidence != "" {
			if err := json.Unmarshal([]byte(r.Evidence), &f.Evidence); err != nil {
				return nil, fmt.Errorf("decoding suspicion evidence: %w", err)
			}
		}
		out = append(out, f)
	}
	return out, nil
}

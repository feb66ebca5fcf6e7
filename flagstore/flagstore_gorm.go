package flagstore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/inkhaven-social/warden/content"
)

// flagRow is the database representation of a ContentFlag. Rows are only
// ever inserted; superseding and negation are expressed by newer rows.
type flagRow struct {
	gorm.Model
	SubjectKind string `gorm:"index:idx_flag_subject"`
	SubjectID   string `gorm:"index:idx_flag_subject"`
	FlagType    string `gorm:"index"`
	Confidence  *float64
	Method      string
	FlaggedBy   string
	FlaggedAt   time.Time
	Reviewed    bool
	Negated     bool
}

type GormFlagStore struct {
	db *gorm.DB
}

func NewGormFlagStore(db *gorm.DB) (*GormFlagStore, error) {
	if err := db.AutoMigrate(&flagRow{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate content flags: %w", err)
	}
	return &GormFlagStore{db: db}, nil
}

func (s *GormFlagStore) Add(ctx context.Context, flag ContentFlag) error {
	if flag.FlaggedAt.IsZero() {
		flag.FlaggedAt = time.Now().UTC()
	}
	row := flagRow{
		SubjectKind: string(flag.Subject.Kind),
		SubjectID:   flag.Subject.ID,
		FlagType:    string(flag.Type),
		Confidence:  flag.Confidence,
		Method:      string(flag.Method),
		FlaggedBy:   flag.FlaggedBy,
		FlaggedAt:   flag.FlaggedAt,
		Reviewed:    flag.Reviewed,
		Negated:     flag.Negated,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to persist content flag: %w", err)
	}
	return nil
}

func (s *GormFlagStore) Get(ctx context.Context, subject content.Ref) ([]ContentFlag, error) {
	var rows []flagRow
	err := s.db.WithContext(ctx).
		Where("subject_kind = ? AND subject_id = ?", string(subject.Kind), subject.ID).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load content flags: %w", err)
	}
	out := make([]ContentFlag, 0, len(rows))
	for _, r := range rows {
		out = append(out, ContentFlag{
			Subject:    content.Ref{Kind: content.Kind(r.SubjectKind), ID: r.SubjectID},
			Type:       FlagType(r.FlagType),
			Confidence: r.Confidence,
			Method:     Method(r.Method),
			FlaggedBy:  r.FlaggedBy,
			FlaggedAt:  r.FlaggedAt,
			Reviewed:   r.Reviewed,
			Negated:    r.Negated,
		})
	}
	return out, nil
}

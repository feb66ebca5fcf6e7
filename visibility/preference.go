package visibility

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/puzpuzpuz/xsync/v3"
)

// PreferenceStore holds each account's NSFW display preference. Get returns
// DefaultPref for accounts that never set one.
type PreferenceStore interface {
	Get(ctx context.Context, accountID string) (NSFWPref, error)
	Set(ctx context.Context, accountID string, pref NSFWPref) error
}

// MemPreferenceStore is the in-process implementation, for tests and
// single-node deployments.
type MemPreferenceStore struct {
	prefs *xsync.MapOf[string, NSFWPref]
}

func NewMemPreferenceStore() *MemPreferenceStore {
	return &MemPreferenceStore{
		prefs: xsync.NewMapOf[string, NSFWPref](),
	}
}

var _ PreferenceStore = (*MemPreferenceStore)(nil)

func (s *MemPreferenceStore) Get(ctx context.Context, accountID string) (NSFWPref, error) {
	if pref, ok := s.prefs.Load(accountID); ok {
		return pref, nil
	}
	return DefaultPref, nil
}

func (s *MemPreferenceStore) Set(ctx context.Context, accountID string, pref NSFWPref) error {
	if !pref.Valid() {
		return fmt.Errorf("unknown NSFW preference: %q", pref)
	}
	s.prefs.Store(accountID, pref)
	return nil
}

type preferenceRow struct {
	gorm.Model
	AccountID string `gorm:"uniqueIndex"`
	Pref      string
}

func (preferenceRow) TableName() string {
	return "nsfw_preferences"
}

// GormPreferenceStore persists preferences in SQL.
type GormPreferenceStore struct {
	db *gorm.DB
}

func NewGormPreferenceStore(db *gorm.DB) (*GormPreferenceStore, error) {
	if err := db.AutoMigrate(&preferenceRow{}); err != nil {
		return nil, fmt.Errorf("migrating NSFW preference table: %w", err)
	}
	return &GormPreferenceStore{db: db}, nil
}

var _ PreferenceStore = (*GormPreferenceStore)(nil)

func (s *GormPreferenceStore) Get(ctx context.Context, accountID string) (NSFWPref, error) {
	var row preferenceRow
	err := s.db.WithContext(ctx).Where("account_id = ?", accountID).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return DefaultPref, nil
	}
	if err != nil {
		return DefaultPref, fmt.Errorf("reading NSFW preference: %w", err)
	}
	pref := NSFWPref(row.Pref)
	if !pref.Valid() {
		return DefaultPref, nil
	}
	return pref, nil
}

func (s *GormPreferenceStore) Set(ctx context.Context, accountID string, pref NSFWPref) error {
	if !pref.Valid() {
		return fmt.Errorf("unknown NSFW preference: %q", pref)
	}
	row := preferenceRow{
		AccountID: accountID,
		Pref:      string(pref),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("saving NSFW preference: %w", err)
	}
	return nil
}

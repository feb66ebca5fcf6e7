package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/inkhaven-social/warden/content"
)

// SystemReporter is the synthetic reporter identity attached to automatic
// reports, so the review queue can tell them from user reports.
const SystemReporter = "system"

type ReportStatus string

const ReportStatusPending ReportStatus = "pending"

const (
	PriorityHigh   = "high"
	PriorityNormal = "normal"
)

var (
	ReportReasonSpam       = "spam"
	ReportReasonHateSpeech = "hate-speech"
	ReportReasonSexual     = "sexual"
	ReportReasonViolation  = "violation"
	ReportReasonOther      = "other"
)

// Report is one entry for the human review queue.
type Report struct {
	ID         string       `json:"id"`
	Subject    content.Ref  `json:"subject"`
	AuthorID   string       `json:"author_id"`
	ReporterID string       `json:"reporter_id"`
	Reason     string       `json:"reason"`
	Comment    string       `json:"comment"`
	Priority   string       `json:"priority"`
	Status     ReportStatus `json:"status"`
	CreatedAt  time.Time    `json:"created_at"`
}

// ReportSink receives the engine's automatic reports. The sink owns ID
// assignment; the engine never updates or resolves reports.
type ReportSink interface {
	CreateReport(ctx context.Context, report Report) (string, error)
}

// MemReportSink collects reports in memory, for tests and single-node use.
type MemReportSink struct {
	mu      sync.Mutex
	reports []Report
}

func NewMemReportSink() *MemReportSink {
	return &MemReportSink{}
}

var _ ReportSink = (*MemReportSink)(nil)

func (s *MemReportSink) CreateReport(ctx context.Context, report Report) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	report.ID = uuid.NewString()
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}
	s.reports = append(s.reports, report)
	return report.ID, nil
}

// Reports returns a copy of everything filed so far, oldest first.
func (s *MemReportSink) Reports() []Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Report, len(s.reports))
	copy(out, s.reports)
	return out
}

type reportRow struct {
	gorm.Model
	ReportID    string `gorm:"uniqueIndex"`
	SubjectKind string
	SubjectID   string `gorm:"index"`
	AuthorID    string `gorm:"index"`
	ReporterID  string
	Reason      string
	Comment     string
	Priority    string
	Status      string
}

// GormReportSink persists reports in SQL for an external review queue to
// consume.
type GormReportSink struct {
	db *gorm.DB
}

func NewGormReportSink(db *gorm.DB) (*GormReportSink, error) {
	if err := db.AutoMigrate(&reportRow{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate reports: %w", err)
	}
	return &GormReportSink{db: db}, nil
}

var _ ReportSink = (*GormReportSink)(nil)

func (s *GormReportSink) CreateReport(ctx context.Context, report Report) (string, error) {
	row := reportRow{
		ReportID:    uuid.NewString(),
		SubjectKind: string(report.Subject.Kind),
		SubjectID:   report.Subject.ID,
		AuthorID:    report.AuthorID,
		ReporterID:  report.ReporterID,
		Reason:      report.Reason,
		Comment:     report.Comment,
		Priority:    report.Priority,
		Status:      string(report.Status),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", fmt.Errorf("failed to persist report: %w", err)
	}
	return row.ReportID, nil
}

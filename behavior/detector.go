package behavior

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/inkhaven-social/warden/countstore"
)

// Counter family holding the cross-account content fingerprint index. The
// bucket is the fingerprint, the distinct values are the accounts that
// posted it; two or more distinct accounts on one fingerprint within the
// day bucket means copy-paste across accounts.
const fingerprintCounter = "content-fp"

// suspicionDedupeCounter tracks flags already recorded today, per account
// and flag type, so repeated scans do not spam the review queue.
const suspicionDedupeCounter = "suspicion-flag"

// Thresholds parameterizes the anomaly checks. Zero values are replaced by
// the defaults at scan time, so a partially-populated struct is usable.
type Thresholds struct {
	// Flag when more than this many distinct accounts share one IP.
	MaxAccountsPerIP int
	// Flag when more than this many items are created in the trailing hour.
	// The comparison is strictly greater than: an account sitting exactly at
	// the limit is not flagged.
	MaxHourlyContent int
	// Bot check: flag when the share of an account's own recent posts that
	// are duplicates of each other exceeds this ratio.
	DuplicateRatio float64
	// Bot check: flag when the coefficient of variation of posting intervals
	// falls below this (posting "too regularly").
	MinIntervalCV float64
	// Bot check: flag when the first-ever post lands within this duration of
	// account creation.
	MinFirstPostGap time.Duration
	// Minimum number of recent posts before the interval regularity check
	// has enough signal to run.
	MinPostsForTiming int
	// How far back RecentContent is queried for the duplicate and timing
	// checks.
	RecentWindow time.Duration
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxAccountsPerIP:  3,
		MaxHourlyContent:  20,
		DuplicateRatio:    0.5,
		MinIntervalCV:     0.1,
		MinFirstPostGap:   60 * time.Second,
		MinPostsForTiming: 5,
		RecentWindow:      24 * time.Hour,
	}
}

func (t Thresholds) withDefaults() Thresholds {
	def := DefaultThresholds()
	if t.MaxAccountsPerIP == 0 {
		t.MaxAccountsPerIP = def.MaxAccountsPerIP
	}
	if t.MaxHourlyContent == 0 {
		t.MaxHourlyContent = def.MaxHourlyContent
	}
	if t.DuplicateRatio == 0 {
		t.DuplicateRatio = def.DuplicateRatio
	}
	if t.MinIntervalCV == 0 {
		t.MinIntervalCV = def.MinIntervalCV
	}
	if t.MinFirstPostGap == 0 {
		t.MinFirstPostGap = def.MinFirstPostGap
	}
	if t.MinPostsForTiming == 0 {
		t.MinPostsForTiming = def.MinPostsForTiming
	}
	if t.RecentWindow == 0 {
		t.RecentWindow = def.RecentWindow
	}
	return t
}

// Detector evaluates an account's history for multi-accounting, burst
// posting, duplicated content, and bot-like timing. It holds no per-account
// state of its own: history comes from the activity store, and the
// cross-account duplicate index lives in the count store, fed by
// RecordContent on each accepted submission.
//
// Findings are advisory. Nothing here suspends or shadowbans; flags surface
// for a moderation queue or for policy in the calling layer.
type Detector struct {
	Logger     *slog.Logger
	Activity   ActivityStore
	Counters   countstore.CountStore
	Store      Store
	Thresholds Thresholds
}

func NewDetector(activity ActivityStore, counters countstore.CountStore, store Store) *Detector {
	return &Detector{
		Logger:     slog.Default().With("system", "behavior"),
		Activity:   activity,
		Counters:   counters,
		Store:      store,
		Thresholds: DefaultThresholds(),
	}
}

// RecordContent feeds the cross-account fingerprint index. Call it once per
// accepted submission; the scan side reads the index but never writes it.
func (d *Detector) RecordContent(ctx context.Context, accountID string, texts []string) error {
	for _, fp := range Fingerprints(texts) {
		if err := d.Counters.IncrementDistinct(ctx, fingerprintCounter, fp, accountID); err != nil {
			return fmt.Errorf("recording content fingerprint: %w", err)
		}
	}
	return nil
}

// ScanAccount runs the four anomaly checks and returns any resulting flags,
// at most one per flag type. The error covers only the inability to load the
// account's history; a failing individual check is logged and treated as no
// signal from that check.
func (d *Detector) ScanAccount(ctx context.Context, accountID string) ([]SuspicionFlag, error) {
	th := d.Thresholds.withDefaults()
	now := time.Now().UTC()

	createdAt, err := d.Activity.AccountCreatedAt(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("loading account creation time: %w", err)
	}
	recent, err := d.Activity.RecentContent(ctx, accountID, now.Add(-th.RecentWindow))
	if err != nil {
		return nil, fmt.Errorf("loading recent content: %w", err)
	}

	var flags []SuspicionFlag
	if f := d.checkMultiAccountIP(ctx, accountID, th, now); f != nil {
		flags = append(flags, *f)
	}
	if f := d.checkRapidContent(accountID, recent, th, now); f != nil {
		flags = append(flags, *f)
	}
	if f := d.checkDuplicateContent(ctx, accountID, recent, now); f != nil {
		flags = append(flags, *f)
	}
	if f := d.checkBotBehavior(accountID, createdAt, recent, th, now); f != nil {
		flags = append(flags, *f)
	}
	return flags, nil
}

// ScanAndRecord scans the account and persists any flags not already
// recorded today for the same (account, type), returning the newly stored
// flags.
func (d *Detector) ScanAndRecord(ctx context.Context, accountID string) ([]SuspicionFlag, error) {
	found, err := d.ScanAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if d.Store == nil {
		return found, nil
	}

	var fresh []SuspicionFlag
	for _, f := range found {
		key := accountID + "/" + string(f.Type)
		existing, err := d.Counters.GetCount(ctx, suspicionDedupeCounter, key, countstore.PeriodDay)
		if err != nil {
			return nil, err
		}
		if existing > 0 {
			d.Logger.Debug("skipping already-recorded suspicion flag", "account", accountID, "type", f.Type)
			continue
		}
		if err := d.Store.Add(ctx, f); err != nil {
			return nil, fmt.Errorf("persisting suspicion flag: %w", err)
		}
		if err := d.Counters.Increment(ctx, suspicionDedupeCounter, key); err != nil {
			return nil, err
		}
		suspicionFlagCount.WithLabelValues(string(f.Type)).Inc()
		d.Logger.Info("suspicion flag recorded", "account", accountID, "type", f.Type, "evidence", f.Evidence)
		fresh = append(fresh, f)
	}
	return fresh, nil
}

func (d *Detector) checkMultiAccountIP(ctx context.Context, accountID string, th Thresholds, now time.Time) *SuspicionFlag {
	byIP, err := d.Activity.SharedIPAccounts(ctx, accountID)
	if err != nil {
		d.Logger.Warn("shared-IP lookup failed, skipping check", "account", accountID, "err", err)
		return nil
	}

	worstIP := ""
	worstCount := 0
	for ip, accounts := range byIP {
		distinct := make(map[string]bool, len(accounts))
		for _, a := range accounts {
			distinct[a] = true
		}
		if len(distinct) > worstCount {
			worstIP = ip
			worstCount = len(distinct)
		}
	}
	if worstCount <= th.MaxAccountsPerIP {
		return nil
	}
	return &SuspicionFlag{
		AccountID:  accountID,
		Type:       FlagMultiAccountIP,
		DetectedAt: now,
		Evidence: map[string]any{
			"ip":        worstIP,
			"accounts":  worstCount,
			"threshold": th.MaxAccountsPerIP,
		},
	}
}

func (d *Detector) checkRapidContent(accountID string, recent []ContentActivity, th Thresholds, now time.Time) *SuspicionFlag {
	cutoff := now.Add(-time.Hour)
	count := 0
	for _, act := range recent {
		if !act.CreatedAt.Before(cutoff) {
			count++
		}
	}
	if count <= th.MaxHourlyContent {
		return nil
	}
	return &SuspicionFlag{
		AccountID:  accountID,
		Type:       FlagRapidContent,
		DetectedAt: now,
		Evidence: map[string]any{
			"count":          count,
			"window_minutes": 60,
			"threshold":      th.MaxHourlyContent,
		},
	}
}

func (d *Detector) checkDuplicateContent(ctx context.Context, accountID string, recent []ContentActivity, now time.Time) *SuspicionFlag {
	for _, act := range recent {
		fp := Fingerprint(act.Text)
		if fp == "" {
			continue
		}
		accounts, err := d.Counters.GetCountDistinct(ctx, fingerprintCounter, fp, countstore.PeriodDay)
		if err != nil {
			d.Logger.Warn("fingerprint index lookup failed, skipping check", "account", accountID, "err", err)
			return nil
		}
		if accounts > 1 {
			return &SuspicionFlag{
				AccountID:  accountID,
				Type:       FlagDuplicateContent,
				DetectedAt: now,
				Evidence: map[string]any{
					"fingerprint": fp,
					"accounts":    accounts,
					"subject":     act.Ref.String(),
				},
			}
		}
	}
	return nil
}

func (d *Detector) checkBotBehavior(accountID string, createdAt time.Time, recent []ContentActivity, th Thresholds, now time.Time) *SuspicionFlag {
	var reasons []string
	evidence := map[string]any{}

	// the recent window covers the account's whole life only for new
	// accounts, which is exactly when first-post timing is meaningful
	if !createdAt.IsZero() && createdAt.After(now.Add(-th.RecentWindow)) && len(recent) > 0 {
		gap := recent[0].CreatedAt.Sub(createdAt)
		if gap >= 0 && gap < th.MinFirstPostGap {
			reasons = append(reasons, "first-post-timing")
			evidence["first_post_seconds"] = gap.Seconds()
		}
	}

	if cv, ok := intervalCV(recent, th.MinPostsForTiming); ok && cv < th.MinIntervalCV {
		reasons = append(reasons, "metronomic-intervals")
		evidence["interval_cv"] = cv
	}

	if len(recent) > 1 {
		texts := make([]string, 0, len(recent))
		for _, act := range recent {
			texts = append(texts, act.Text)
		}
		distinct := len(Fingerprints(texts))
		ratio := 1.0 - float64(distinct)/float64(len(texts))
		if ratio > th.DuplicateRatio {
			reasons = append(reasons, "self-duplication")
			evidence["duplicate_ratio"] = ratio
		}
	}

	if len(reasons) == 0 {
		return nil
	}
	evidence["reasons"] = reasons
	return &SuspicionFlag{
		AccountID:  accountID,
		Type:       FlagBotBehavior,
		DetectedAt: now,
		Evidence:   evidence,
	}
}

// intervalCV computes the coefficient of variation of the gaps between
// consecutive posts. Reports ok=false when there are fewer than minPosts
// posts or the mean interval is zero.
func intervalCV(recent []ContentActivity, minPosts int) (float64, bool) {
	if len(recent) < minPosts {
		return 0, false
	}
	intervals := make([]float64, 0, len(recent)-1)
	for i := 1; i < len(recent); i++ {
		intervals = append(intervals, recent[i].CreatedAt.Sub(recent[i-1].CreatedAt).Seconds())
	}

	mean := 0.0
	for _, v := range intervals {
		mean += v
	}
	mean /= float64(len(intervals))
	if mean <= 0 {
		return 0, false
	}

	variance := 0.0
	for _, v := range intervals {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(intervals))

	return math.Sqrt(variance) / mean, true
}

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/inkhaven-social/warden/content"
	"github.com/inkhaven-social/warden/countstore"
)

// imageClassifyTimeout bounds the download-plus-classify round trip for one
// image so a slow classifier cannot stall the submission path.
const imageClassifyTimeout = 30 * time.Second

// persistDecision applies the accumulated effects of a finalized decision:
// flag history appends, then (for published content only) auto-reports,
// fingerprint recording, and image classification.
//
// Note that this method expects to run *before* counters are persisted; the
// report dedupe and quota checks read counters and enqueue their own
// increments.
func (eng *Engine) persistDecision(ctx context.Context, logger *slog.Logger, item content.Item, d *Decision, eff *Effects) error {
	for _, flag := range eff.ContentFlags {
		if err := eng.Flags.Add(ctx, flag); err != nil {
			return fmt.Errorf("appending content flag: %w", err)
		}
		actionNewFlagCount.WithLabelValues(string(flag.Type)).Inc()
	}

	if !d.Allowed {
		// blocked-attempt audit record; the rejected body itself is never kept
		logger.Warn("submission blocked", "flags", d.Flags, "urls", d.BlockedURLs)
		return nil
	}

	newReports := eng.dedupeReports(ctx, item.AuthorID, eff, eff.Reports)
	newReports = eng.circuitBreakReports(ctx, eff, newReports)
	for _, ref := range newReports {
		if eng.Reports == nil {
			logger.Warn("no report sink configured, dropping auto-report", "reason", ref.Reason)
			continue
		}
		rep := Report{
			Subject:    item.Ref,
			AuthorID:   item.AuthorID,
			ReporterID: SystemReporter,
			Reason:     ref.Reason,
			Comment:    ref.Comment,
			Priority:   PriorityHigh,
			Status:     ReportStatusPending,
			CreatedAt:  time.Now().UTC(),
		}
		id, err := eng.Reports.CreateReport(ctx, rep)
		if err != nil {
			return fmt.Errorf("filing auto-report: %w", err)
		}
		rep.ID = id
		actionNewReportCount.WithLabelValues(ref.Reason).Inc()
		logger.Info("auto-report filed", "reportID", id, "reason", ref.Reason)

		if eng.Notifier != nil {
			if err := eng.Notifier.SendReport(ctx, rep); err != nil {
				logger.Error("sending report notification", "err", err)
				notifyErrorCount.Inc()
			}
		}
	}

	if eng.Behavior != nil {
		// feeds the cross-account duplicate index; advisory, so a failure
		// never rejects the submission
		if err := eng.Behavior.RecordContent(ctx, item.AuthorID, item.TextFields()); err != nil {
			logger.Warn("recording content fingerprints", "err", err)
		}
	}

	eng.classifyImages(ctx, logger, item)
	return nil
}

// dedupeReports drops reports already filed today for the same (author,
// reason), so one noisy author does not fill the review queue. A counter
// read failure files the report anyway.
func (eng *Engine) dedupeReports(ctx context.Context, authorID string, eff *Effects, reports []ReportRef) []ReportRef {
	if len(reports) == 0 {
		return nil
	}
	out := []ReportRef{}
	for _, r := range reports {
		counterName := "auto-report-" + r.Reason
		existing, err := eng.Counters.GetCount(ctx, counterName, authorID, countstore.PeriodDay)
		if err != nil {
			eng.Logger.Warn("report dedupe counter read failed, filing anyway", "err", err)
			out = append(out, r)
			continue
		}
		if existing > 0 {
			eng.Logger.Debug("skipping duplicate auto-report", "reason", r.Reason, "author", authorID, "existing", existing)
			continue
		}
		eff.Increment(counterName, authorID)
		out = append(out, r)
	}
	return out
}

// circuitBreakReports enforces the daily auto-report quota across all
// subjects and reasons combined.
func (eng *Engine) circuitBreakReports(ctx context.Context, eff *Effects, reports []ReportRef) []ReportRef {
	if len(reports) == 0 {
		return nil
	}
	c, err := eng.Counters.GetCount(ctx, "auto-quota", "report", countstore.PeriodDay)
	if err != nil {
		eng.Logger.Warn("report quota counter read failed, filing anyway", "err", err)
		return reports
	}
	if c >= QuotaAutoReportDay {
		eng.Logger.Warn("CIRCUIT BREAKER: auto-reports", "quota", QuotaAutoReportDay)
		reportQuotaTrips.Inc()
		return nil
	}
	eff.Increment("auto-quota", "report")
	return reports
}

// classifyImages runs NSFW classification for the item's images once the
// content is being published. The NSFW signal never blocks; classification
// failures leave the image unflagged until a manual or user mark arrives.
func (eng *Engine) classifyImages(ctx context.Context, logger *slog.Logger, item content.Item) {
	if eng.Visual == nil {
		return
	}
	for _, img := range item.ImageRefs() {
		imgCtx, cancel := context.WithTimeout(ctx, imageClassifyTimeout)
		analysis, err := eng.Visual.AnalyzeImage(imgCtx, item.Ref, img)
		cancel()
		if err != nil {
			logger.Warn("image classification failed, leaving unflagged", "imageID", img.ID, "err", err)
			continue
		}
		if analysis.IsNSFW {
			logger.Info("image classified nsfw", "imageID", img.ID, "confidence", analysis.Confidence)
		}
	}
}

func (eng *Engine) persistCounters(ctx context.Context, eff *Effects) error {
	for _, ref := range eff.CounterIncrements {
		if err := eng.Counters.Increment(ctx, ref.Name, ref.Val); err != nil {
			return err
		}
	}
	for _, ref := range eff.CounterDistinctIncrements {
		if err := eng.Counters.IncrementDistinct(ctx, ref.Name, ref.Bucket, ref.Val); err != nil {
			return err
		}
	}
	return nil
}

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/inkhaven-social/warden/behavior"
	"github.com/inkhaven-social/warden/content"
	"github.com/inkhaven-social/warden/countstore"
	"github.com/inkhaven-social/warden/detector"
	"github.com/inkhaven-social/warden/flagstore"
	"github.com/inkhaven-social/warden/policy"
	"github.com/inkhaven-social/warden/urlcheck"
	"github.com/inkhaven-social/warden/visual"
)

// Engine is the submission-time moderation runtime: it fans content out to
// the signal detectors, folds the results into an allow/block decision, and
// persists the decision's side effects.
//
// TODO: careful when initializing: Logger, Policies, Counters, and Flags
// must not be nil. URLs, Visual, Behavior, Reports, and Notifier are
// optional; a nil field disables that concern.
type Engine struct {
	Logger    *slog.Logger
	Policies  *policy.Store
	Detectors []detector.Detector
	URLs      *urlcheck.Checker
	Visual    *visual.Service
	Behavior  *behavior.Detector
	Flags     flagstore.FlagStore
	Counters  countstore.CountStore
	Reports   ReportSink
	Notifier  Notifier
}

// Evaluate runs the moderation decision for one submitted content item.
//
// Text detectors and the URL checker run fanned out over the same input and
// are joined before any decision logic; no detector sees another's output.
// An individual detector failure or panic degrades to "no signal from that
// detector" (availability over maximal strictness). Side effects (flag
// persistence, auto-reports, counters, image classification) happen only
// after the decision is final.
//
// The returned error covers validation and persistence problems only; a
// blocked decision is not an error. Callers surface blocks to users via
// Decision.Err.
func (eng *Engine) Evaluate(ctx context.Context, item content.Item) (d *Decision, err error) {
	start := time.Now()
	// similar to an HTTP server, we want to recover any panics from the
	// decision path itself; per-detector panics are handled in the fan-out
	defer func() {
		if r := recover(); r != nil {
			eng.Logger.Error("evaluation exception, allowing content unflagged", "subject", item.Ref.String(), "err", r)
			evaluateErrorCount.WithLabelValues(string(item.Ref.Kind)).Inc()
			d = &Decision{Subject: item.Ref, Allowed: true}
			err = nil
		}
		evaluateDuration.WithLabelValues(string(item.Ref.Kind)).Observe(time.Since(start).Seconds())
	}()

	if err := item.Validate(); err != nil {
		return nil, err
	}

	logger := eng.Logger.With("subject", item.Ref.String(), "author", item.AuthorID)
	snap := eng.Policies.Current()
	eff := &Effects{}

	signals, urls := eng.collectSignals(ctx, logger, item.AllText(), snap)
	d = eng.decide(item, snap, signals, urls, eff)
	eng.canonicalLogLine(logger, d)

	if err := eng.persistDecision(ctx, logger, item, d, eff); err != nil {
		return nil, fmt.Errorf("persisting decision effects: %w", err)
	}
	if err := eng.persistCounters(ctx, eff); err != nil {
		return nil, fmt.Errorf("persisting counters: %w", err)
	}

	outcome := "allowed"
	if !d.Allowed {
		outcome = "blocked"
	}
	evaluateCount.WithLabelValues(string(item.Ref.Kind), outcome).Inc()
	return d, nil
}

// collectSignals fans the text out to every detector plus the URL checker and
// joins the results. Each runs in its own goroutine with its own panic
// recovery; a failed or panicked detector contributes no signal.
func (eng *Engine) collectSignals(ctx context.Context, logger *slog.Logger, text string, snap *policy.Snapshot) ([]detector.Signal, *urlcheck.Result) {
	results := make(chan detector.Signal, len(eng.Detectors))
	var wg sync.WaitGroup
	for _, det := range eng.Detectors {
		wg.Add(1)
		go func(det detector.Detector) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					logger.Error("detector panic, treating as no signal", "detector", det.Name(), "err", r)
					detectorErrorCount.WithLabelValues(det.Name()).Inc()
				}
			}()
			sig, err := det.Detect(ctx, text, snap)
			if err != nil {
				logger.Warn("detector failed, treating as no signal", "detector", det.Name(), "err", err)
				detectorErrorCount.WithLabelValues(det.Name()).Inc()
				return
			}
			results <- sig
		}(det)
	}

	var urls *urlcheck.Result
	if eng.URLs != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					logger.Error("url check panic, treating as no signal", "err", r)
					detectorErrorCount.WithLabelValues("urlcheck").Inc()
				}
			}()
			urls = eng.URLs.CheckText(ctx, text, snap)
		}()
	}

	wg.Wait()
	close(results)

	var signals []detector.Signal
	for sig := range results {
		signals = append(signals, sig)
	}
	return signals, urls
}

// decide folds the joined signals into a decision, applying the blocking
// rules in priority order and enqueueing the side effects on eff. Hate
// speech never blocks; it files a report instead, and only when the content
// is actually being published.
func (eng *Engine) decide(item content.Item, snap *policy.Snapshot, signals []detector.Signal, urls *urlcheck.Result, eff *Effects) *Decision {
	now := time.Now().UTC()
	byType := make(map[flagstore.FlagType]detector.Signal, len(signals))
	for _, sig := range signals {
		if sig.Triggered {
			byType[sig.Type] = sig
		}
	}

	d := &Decision{Subject: item.Ref, Allowed: true, PolicyVersion: snap.Version}

	if sig, ok := byType[flagstore.FlagSpam]; ok {
		d.Allowed = false
		d.Flags = append(d.Flags, flagstore.FlagSpam)
		eff.AddContentFlag(autoFlag(item.Ref, sig, now))
	}
	if sig, ok := byType[flagstore.FlagProfanity]; ok {
		d.Allowed = false
		d.Flags = append(d.Flags, flagstore.FlagProfanity)
		eff.AddContentFlag(autoFlag(item.Ref, sig, now))
	}
	if urls != nil && !urls.Safe {
		d.Allowed = false
		d.Flags = append(d.Flags, flagstore.FlagMaliciousURL)
		for _, v := range urls.Threats {
			d.BlockedURLs = append(d.BlockedURLs, v.URL)
		}
		eff.AddContentFlag(flagstore.ContentFlag{
			Subject:   item.Ref,
			Type:      flagstore.FlagMaliciousURL,
			Method:    flagstore.MethodAutomatic,
			FlaggedAt: now,
		})
	}
	if sig, ok := byType[flagstore.FlagHateSpeech]; ok {
		d.Flags = append(d.Flags, flagstore.FlagHateSpeech)
		eff.AddContentFlag(autoFlag(item.Ref, sig, now))
		if d.Allowed {
			d.Actions = append(d.Actions, ActionReport)
			eff.ReportContent(ReportReasonHateSpeech, fmt.Sprintf("possible hate speech in %s", item.Ref))
		}
	}

	if !d.Allowed {
		d.Actions = append([]ActionType{ActionBlock}, d.Actions...)
		eff.Increment("blocked-submission", string(item.Ref.Kind))
	}
	return d
}

func autoFlag(subject content.Ref, sig detector.Signal, at time.Time) flagstore.ContentFlag {
	conf := sig.Confidence
	return flagstore.ContentFlag{
		Subject:    subject,
		Type:       sig.Type,
		Confidence: &conf,
		Method:     flagstore.MethodAutomatic,
		FlaggedAt:  at,
	}
}

func (eng *Engine) canonicalLogLine(logger *slog.Logger, d *Decision) {
	logger.Info("evaluation complete",
		"allowed", d.Allowed,
		"flags", d.Flags,
		"actions", d.Actions,
		"blockedURLs", d.BlockedURLs,
		"policyVersion", d.PolicyVersion,
	)
}

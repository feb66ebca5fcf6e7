package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/inkhaven-social/warden/behavior"
	"github.com/inkhaven-social/warden/cachestore"
	"github.com/inkhaven-social/warden/countstore"
	"github.com/inkhaven-social/warden/detector"
	"github.com/inkhaven-social/warden/flagstore"
	"github.com/inkhaven-social/warden/policy"
	"github.com/inkhaven-social/warden/setstore"
	"github.com/inkhaven-social/warden/urlcheck"
)

// EngineTestFixture builds a fully in-memory engine with the default text
// detectors and a heuristics-only URL checker (no reputation client).
// Intentionally exported, for use in other packages' tests.
//
// The hate term set is seeded with the placeholder term "slurword".
func EngineTestFixture() *Engine {
	sets := setstore.NewMemSetStore()
	_ = sets.AddToSet(context.Background(), detector.HateSetName, []string{"slurword"})

	counters := countstore.NewMemCountStore()
	cache := cachestore.NewMemCacheStore(1000, time.Hour)
	activity := behavior.NewMemActivityStore()

	return &Engine{
		Logger:   slog.Default(),
		Policies: policy.NewStore(),
		Detectors: []detector.Detector{
			detector.NewProfanityDetector(nil),
			detector.NewSpamDetector(),
			detector.NewHateSpeechDetector(sets),
		},
		URLs:     urlcheck.NewChecker(nil, cache, sets),
		Behavior: behavior.NewDetector(activity, counters, behavior.NewMemStore()),
		Flags:    flagstore.NewMemFlagStore(),
		Counters: counters,
		Reports:  NewMemReportSink(),
	}
}

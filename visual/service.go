package visual

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/inkhaven-social/warden/cachestore"
	"github.com/inkhaven-social/warden/content"
	"github.com/inkhaven-social/warden/flagstore"
	"github.com/inkhaven-social/warden/roles"
)

// NSFWThreshold is the classifier confidence at which an image is
// automatically flagged. The comparison is inclusive.
const NSFWThreshold = 0.80

const classifyCacheName = "argus-class"

// Analysis is the outcome of classifying one image.
type Analysis struct {
	IsNSFW     bool    `json:"is_nsfw"`
	Confidence float64 `json:"confidence"`
	Labels     []Label `json:"labels,omitempty"`
}

// Service wires image classification in to the flag store. Automatic flags,
// creator self-marks, and moderator overrides all land in the same append-only
// history; the most recent flag wins when resolving display state.
type Service struct {
	Classifier Classifier
	Fetcher    *Fetcher
	Flags      flagstore.FlagStore
	Roles      roles.Directory
	Cache      cachestore.CacheStore
}

func NewService(classifier Classifier, flags flagstore.FlagStore, dir roles.Directory) *Service {
	return &Service{
		Classifier: classifier,
		Fetcher:    NewFetcher(),
		Flags:      flags,
		Roles:      dir,
		Cache:      cachestore.NewMemCacheStore(5000, time.Hour),
	}
}

// AnalyzeImage downloads and classifies one image, recording an automatic
// NSFW flag when any label scores at or above NSFWThreshold. Classifier and
// download failures return an error and leave the flag history untouched;
// callers treat the image as unclassified, not as safe.
func (s *Service) AnalyzeImage(ctx context.Context, subject content.Ref, img content.ImageRef) (*Analysis, error) {

	if img.MimeType != "" && !strings.HasPrefix(img.MimeType, "image/") {
		slog.Debug("skipping classification of non-image blob", "subject", subject.String(), "mimetype", img.MimeType)
		return &Analysis{}, nil
	}

	labels, err := s.classify(ctx, img)
	if err != nil {
		return nil, err
	}

	out := &Analysis{Labels: labels}
	for _, l := range labels {
		if l.Score > out.Confidence {
			out.Confidence = l.Score
		}
	}
	out.IsNSFW = out.Confidence >= NSFWThreshold

	if !out.IsNSFW {
		return out, nil
	}

	conf := out.Confidence
	err = s.Flags.Add(ctx, flagstore.ContentFlag{
		Subject:    subject,
		Type:       flagstore.FlagNSFW,
		Confidence: &conf,
		Method:     flagstore.MethodAutomatic,
		FlaggedAt:  time.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("recording nsfw flag: %w", err)
	}
	nsfwAutoFlagCount.Inc()
	slog.Info("image auto-flagged nsfw", "subject", subject.String(), "confidence", out.Confidence)
	return out, nil
}

func (s *Service) classify(ctx context.Context, img content.ImageRef) ([]Label, error) {
	if s.Cache != nil && img.ID != "" {
		if val, err := s.Cache.Get(ctx, classifyCacheName, img.ID); err == nil && val != "" {
			var labels []Label
			if err := json.Unmarshal([]byte(val), &labels); err == nil {
				return labels, nil
			}
		}
	}

	if s.Classifier == nil {
		return nil, fmt.Errorf("no image classifier configured")
	}
	if s.Fetcher == nil {
		return nil, fmt.Errorf("no image fetcher configured")
	}

	data, err := s.Fetcher.FetchImage(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("fetching image for classification: %w", err)
	}

	labels, err := s.Classifier.ClassifyImage(ctx, data, img.MimeType)
	if err != nil {
		return nil, err
	}

	if s.Cache != nil && img.ID != "" {
		raw, err := json.Marshal(labels)
		if err == nil {
			if err := s.Cache.Set(ctx, classifyCacheName, img.ID, string(raw)); err != nil {
				slog.Warn("failed to cache classifier response", "imageID", img.ID, "err", err)
			}
		}
	}
	return labels, nil
}

// SelfMark records a creator marking or retracting the NSFW state of their
// own content. The caller is responsible for verifying that accountID is the
// content's creator.
func (s *Service) SelfMark(ctx context.Context, subject content.Ref, accountID string, nsfw bool) error {
	if accountID == "" {
		return fmt.Errorf("self-mark requires an account")
	}
	err := s.Flags.Add(ctx, flagstore.ContentFlag{
		Subject:   subject,
		Type:      flagstore.FlagNSFW,
		Method:    flagstore.MethodUserMarked,
		FlaggedBy: accountID,
		FlaggedAt: time.Now(),
		Negated:   !nsfw,
	})
	if err != nil {
		return err
	}
	slog.Info("content self-marked", "subject", subject.String(), "account", accountID, "nsfw", nsfw)
	return nil
}

// Override records a moderator decision on the NSFW state of a subject,
// superseding any earlier automatic or user-marked flag.
func (s *Service) Override(ctx context.Context, subject content.Ref, moderatorID string, nsfw bool) error {
	if err := roles.RequireModerator(s.Roles, moderatorID, "override nsfw state"); err != nil {
		return err
	}
	err := s.Flags.Add(ctx, flagstore.ContentFlag{
		Subject:   subject,
		Type:      flagstore.FlagNSFW,
		Method:    flagstore.MethodManual,
		FlaggedBy: moderatorID,
		FlaggedAt: time.Now(),
		Reviewed:  true,
		Negated:   !nsfw,
	})
	if err != nil {
		return err
	}
	slog.Info("nsfw state overridden", "subject", subject.String(), "moderator", moderatorID, "nsfw", nsfw)
	return nil
}

// IsNSFW resolves the current display state for a subject from its flag
// history.
func (s *Service) IsNSFW(ctx context.Context, subject content.Ref) (bool, error) {
	flags, err := s.Flags.Get(ctx, subject)
	if err != nil {
		return false, err
	}
	return flagstore.IsNSFW(flags), nil
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/inkhaven-social/warden/content"
	"github.com/inkhaven-social/warden/detector"
	"github.com/inkhaven-social/warden/flagstore"
	"github.com/inkhaven-social/warden/policy"
	"github.com/inkhaven-social/warden/roles"
	"github.com/inkhaven-social/warden/visual"
)

// https://en.wikipedia.org/wiki/GTUBE
const gtube = "XJS*C4JDBQADN1.NSBN3*2IDNEN*GTUBE-STANDARD-ANTI-UBE-TEST-EMAIL*C.34X"

type stubReputation struct {
	safe    bool
	threats []string
	err     error
	calls   atomic.Int64
}

func (c *stubReputation) Lookup(ctx context.Context, url string) (bool, []string, error) {
	c.calls.Add(1)
	if c.err != nil {
		return false, nil, c.err
	}
	return c.safe, c.threats, nil
}

type failingDetector struct{}

func (failingDetector) Name() string { return "failing" }
func (failingDetector) Detect(ctx context.Context, text string, snap *policy.Snapshot) (detector.Signal, error) {
	return detector.Signal{}, errors.New("classifier offline")
}

type panickingDetector struct{}

func (panickingDetector) Name() string { return "panicking" }
func (panickingDetector) Detect(ctx context.Context, text string, snap *policy.Snapshot) (detector.Signal, error) {
	panic("boom")
}

func TestCleanContentAllowed(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	d, err := eng.Evaluate(ctx, content.NewWhisper("w1", "alice", "a quiet morning of writing"))
	assert.NoError(err)
	assert.True(d.Allowed)
	assert.Empty(d.Flags)
	assert.Empty(d.Actions)
	assert.Nil(d.Err())

	flags, err := eng.Flags.Get(ctx, d.Subject)
	assert.NoError(err)
	assert.Empty(flags)
	assert.Empty(eng.Reports.(*MemReportSink).Reports())
}

func TestSpamBlocksAtEverySensitivity(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	for _, sens := range []policy.Sensitivity{policy.SensitivityStrict, policy.SensitivityModerate, policy.SensitivityPermissive} {
		eng := EngineTestFixture()
		s := sens
		_, err := eng.Policies.Update(flagstore.FlagSpam, policy.Update{
			Sensitivity: &s,
			Blacklist:   []string{"buy cheap meds"},
		}, "admin1")
		assert.NoError(err)

		d, err := eng.Evaluate(ctx, content.NewWhisper("w1", "mallory", "limited offer! buy cheap meds today"))
		assert.NoError(err)
		assert.False(d.Allowed, "sensitivity %s", sens)
		assert.Equal([]flagstore.FlagType{flagstore.FlagSpam}, d.Flags)
		assert.Equal([]ActionType{ActionBlock}, d.Actions)

		flags, err := eng.Flags.Get(ctx, d.Subject)
		assert.NoError(err)
		assert.Len(flags, 1)
		assert.Equal(flagstore.MethodAutomatic, flags[0].Method)

		blocked := d.Err()
		assert.Equal(BlockedCode, blocked.Code)
		assert.Contains(blocked.Message, "spam")
	}
}

func TestProfanityMonotonicity(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	blockedUnder := func(sens policy.Sensitivity, text string) bool {
		eng := EngineTestFixture()
		s := sens
		_, err := eng.Policies.Update(flagstore.FlagProfanity, policy.Update{Sensitivity: &s}, "admin1")
		assert.NoError(err)
		d, err := eng.Evaluate(ctx, content.NewWhisper("w1", "alice", text))
		assert.NoError(err)
		return !d.Allowed
	}

	// severity 1, 2, and 3 samples from the default lexicon
	texts := []string{"that damn deadline", "you utter bastard", "fuck this chapter"}
	for _, text := range texts {
		p := blockedUnder(policy.SensitivityPermissive, text)
		m := blockedUnder(policy.SensitivityModerate, text)
		s := blockedUnder(policy.SensitivityStrict, text)
		// whatever permissive blocks, moderate blocks; whatever moderate
		// blocks, strict blocks
		if p {
			assert.True(m, "moderate must block %q", text)
		}
		if m {
			assert.True(s, "strict must block %q", text)
		}
	}

	assert.False(blockedUnder(policy.SensitivityPermissive, "that damn deadline"))
	assert.False(blockedUnder(policy.SensitivityModerate, "that damn deadline"))
	assert.True(blockedUnder(policy.SensitivityStrict, "that damn deadline"))

	assert.False(blockedUnder(policy.SensitivityPermissive, "you utter bastard"))
	assert.True(blockedUnder(policy.SensitivityModerate, "you utter bastard"))

	assert.True(blockedUnder(policy.SensitivityPermissive, "fuck this chapter"))
}

func TestMaliciousURLsBlockSubmission(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture()
	rep := &stubReputation{safe: false, threats: []string{"phishing"}}
	eng.URLs.Client = rep

	text := "read https://evil-one.example.com then https://evil-two.example.com then https://evil-three.example.com"
	d, err := eng.Evaluate(ctx, content.NewWhisper("w1", "mallory", text))
	assert.NoError(err)
	assert.False(d.Allowed)
	assert.Equal([]flagstore.FlagType{flagstore.FlagMaliciousURL}, d.Flags)
	assert.Len(d.BlockedURLs, 3)
	assert.Equal(int64(3), rep.calls.Load())

	flags, err := eng.Flags.Get(ctx, d.Subject)
	assert.NoError(err)
	assert.Len(flags, 1)
	assert.Equal(flagstore.FlagMaliciousURL, flags[0].Type)
	assert.Empty(eng.Reports.(*MemReportSink).Reports())

	blocked := d.Err()
	assert.Equal(BlockedCode, blocked.Code)
	assert.Contains(blocked.Message, "unsafe")

	// same URLs again within the cache TTL: no further reputation calls
	d2, err := eng.Evaluate(ctx, content.NewWhisper("w2", "mallory", text))
	assert.NoError(err)
	assert.False(d2.Allowed)
	assert.Equal(int64(3), rep.calls.Load())
}

func TestHateSpeechReportsWithoutBlocking(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	sink := eng.Reports.(*MemReportSink)

	d, err := eng.Evaluate(ctx, content.NewWhisper("w1", "alice", "those slurword people"))
	assert.NoError(err)
	assert.True(d.Allowed)
	assert.Equal([]flagstore.FlagType{flagstore.FlagHateSpeech}, d.Flags)
	assert.Equal([]ActionType{ActionReport}, d.Actions)

	reps := sink.Reports()
	assert.Len(reps, 1)
	assert.Equal(SystemReporter, reps[0].ReporterID)
	assert.Equal(ReportStatusPending, reps[0].Status)
	assert.Equal(PriorityHigh, reps[0].Priority)
	assert.Equal(d.Subject, reps[0].Subject)
	assert.Contains(reps[0].Comment, "hate speech")

	flags, err := eng.Flags.Get(ctx, d.Subject)
	assert.NoError(err)
	assert.Len(flags, 1)
	assert.Equal(flagstore.FlagHateSpeech, flags[0].Type)

	// same author, same day: flag history grows but the report is deduped
	d2, err := eng.Evaluate(ctx, content.NewWhisper("w2", "alice", "more slurword talk"))
	assert.NoError(err)
	assert.True(d2.Allowed)
	assert.Len(sink.Reports(), 1)

	// a different author files fresh
	_, err = eng.Evaluate(ctx, content.NewWhisper("w3", "bob", "slurword again"))
	assert.NoError(err)
	assert.Len(sink.Reports(), 2)
}

func TestReportQuotaCircuitBreaker(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	defer func(prev int) { QuotaAutoReportDay = prev }(QuotaAutoReportDay)
	QuotaAutoReportDay = 3

	for i := 0; i < 5; i++ {
		_, err := eng.Evaluate(ctx, content.NewWhisper(fmt.Sprintf("w%d", i), fmt.Sprintf("acct%d", i), "saying slurword"))
		assert.NoError(err)
	}
	assert.Len(eng.Reports.(*MemReportSink).Reports(), 3)
}

func TestDetectorFailuresNeverAbort(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	eng.Detectors = append(eng.Detectors, failingDetector{}, panickingDetector{})

	d, err := eng.Evaluate(ctx, content.NewWhisper("w1", "alice", "a perfectly fine whisper"))
	assert.NoError(err)
	assert.True(d.Allowed)
	assert.Empty(d.Flags)

	// the healthy detectors still decide
	d2, err := eng.Evaluate(ctx, content.NewWhisper("w2", "mallory", "spam run "+gtube))
	assert.NoError(err)
	assert.False(d2.Allowed)
	assert.Equal([]flagstore.FlagType{flagstore.FlagSpam}, d2.Flags)
}

func TestBlockedErrorHidesDetectorOutput(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	d, err := eng.Evaluate(ctx, content.NewWhisper("w1", "alice", "fuck deadlines"))
	assert.NoError(err)
	assert.False(d.Allowed)

	blocked := d.Err()
	assert.Equal(BlockedCode, blocked.Code)
	assert.NotEmpty(blocked.Message)
	assert.NotContains(strings.ToLower(blocked.Message), "fuck")
}

func TestImagesClassifiedOnlyWhenPublished(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not-really-a-jpeg"))
	}))
	t.Cleanup(srv.Close)

	cls := &stubClassifier{labels: []visual.Label{{Class: "porn", Score: 0.9}}}
	dir, err := roles.NewStaticDirectory("")
	assert.NoError(err)

	eng := EngineTestFixture()
	svc := visual.NewService(cls, eng.Flags, dir)
	// the default fetcher refuses loopback addresses
	svc.Fetcher = &visual.Fetcher{}
	eng.Visual = svc

	img := content.ImageRef{ID: "i1", URL: srv.URL + "/i1", MimeType: "image/jpeg"}
	d, err := eng.Evaluate(ctx, content.NewImage("img1", "alice", "sunset", img))
	assert.NoError(err)
	assert.True(d.Allowed)
	assert.Equal(int64(1), cls.calls.Load())

	flags, err := eng.Flags.Get(ctx, d.Subject)
	assert.NoError(err)
	assert.True(flagstore.IsNSFW(flags))

	// a blocked submission never reaches the classifier
	img2 := content.ImageRef{ID: "i2", URL: srv.URL + "/i2", MimeType: "image/jpeg"}
	d2, err := eng.Evaluate(ctx, content.NewImage("img2", "mallory", gtube, img2))
	assert.NoError(err)
	assert.False(d2.Allowed)
	assert.Equal(int64(1), cls.calls.Load())
}

func TestEvaluateRejectsInvalidItems(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	_, err := eng.Evaluate(ctx, content.Item{Ref: content.Ref{Kind: content.KindStory}, AuthorID: "alice"})
	assert.Error(err)

	_, err = eng.Evaluate(ctx, content.Item{Ref: content.Ref{Kind: content.KindStory, ID: "s1"}})
	assert.Error(err)
}

type stubClassifier struct {
	labels []visual.Label
	err    error
	calls  atomic.Int64
}

func (c *stubClassifier) ClassifyImage(ctx context.Context, data []byte, mimeType string) ([]visual.Label, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return c.labels, nil
}

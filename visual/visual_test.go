package visual

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/inkhaven-social/warden/content"
	"github.com/inkhaven-social/warden/flagstore"
	"github.com/inkhaven-social/warden/roles"

	"github.com/stretchr/testify/assert"
)

type stubClassifier struct {
	labels []Label
	err    error
	calls  atomic.Int64
}

func (c *stubClassifier) ClassifyImage(ctx context.Context, data []byte, mimeType string) ([]Label, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return c.labels, nil
}

func testService(t *testing.T, cls Classifier) (*Service, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not-really-a-jpeg"))
	}))
	t.Cleanup(srv.Close)

	dir, err := roles.NewStaticDirectory("")
	assert.NoError(t, err)
	dir.Grant("mod1", false)

	svc := NewService(cls, flagstore.NewMemFlagStore(), dir)
	// the default fetcher refuses loopback addresses
	svc.Fetcher = &Fetcher{}
	return svc, srv
}

func testImage(srv *httptest.Server, id string) content.ImageRef {
	return content.ImageRef{ID: id, URL: srv.URL + "/" + id, MimeType: "image/jpeg"}
}

func TestAnalyzeThreshold(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cls := &stubClassifier{labels: []Label{{Class: "porn", Score: 0.79}}}
	svc, srv := testService(t, cls)
	subject := content.Ref{Kind: content.KindImage, ID: "img-under"}

	out, err := svc.AnalyzeImage(ctx, subject, testImage(srv, "under"))
	assert.NoError(err)
	assert.False(out.IsNSFW)
	assert.Equal(0.79, out.Confidence)

	flags, err := svc.Flags.Get(ctx, subject)
	assert.NoError(err)
	assert.Empty(flags)

	cls2 := &stubClassifier{labels: []Label{{Class: "porn", Score: 0.80}}}
	svc2, srv2 := testService(t, cls2)
	subject2 := content.Ref{Kind: content.KindImage, ID: "img-at"}

	out, err = svc2.AnalyzeImage(ctx, subject2, testImage(srv2, "at"))
	assert.NoError(err)
	assert.True(out.IsNSFW, "threshold is inclusive")

	flags, err = svc2.Flags.Get(ctx, subject2)
	assert.NoError(err)
	assert.Len(flags, 1)
	assert.Equal(flagstore.FlagNSFW, flags[0].Type)
	assert.Equal(flagstore.MethodAutomatic, flags[0].Method)
	if assert.NotNil(flags[0].Confidence) {
		assert.Equal(0.80, *flags[0].Confidence)
	}
}

func TestAnalyzeTakesTopScore(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cls := &stubClassifier{labels: []Label{
		{Class: "suggestive", Score: 0.51},
		{Class: "nudity", Score: 0.93},
		{Class: "gore", Score: 0.12},
	}}
	svc, srv := testService(t, cls)
	subject := content.Ref{Kind: content.KindImage, ID: "img-multi"}

	out, err := svc.AnalyzeImage(ctx, subject, testImage(srv, "multi"))
	assert.NoError(err)
	assert.True(out.IsNSFW)
	assert.Equal(0.93, out.Confidence)
	assert.Len(out.Labels, 3)
}

func TestAnalyzeClassifierError(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cls := &stubClassifier{err: ErrRateLimited}
	svc, srv := testService(t, cls)
	subject := content.Ref{Kind: content.KindImage, ID: "img-err"}

	_, err := svc.AnalyzeImage(ctx, subject, testImage(srv, "err"))
	assert.Error(err)

	// no flag on failure: unclassified, not safe
	flags, err := svc.Flags.Get(ctx, subject)
	assert.NoError(err)
	assert.Empty(flags)
}

func TestAnalyzeSkipsNonImage(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cls := &stubClassifier{labels: []Label{{Class: "porn", Score: 0.99}}}
	svc, srv := testService(t, cls)
	subject := content.Ref{Kind: content.KindStory, ID: "story1"}

	img := testImage(srv, "clip")
	img.MimeType = "video/mp4"
	out, err := svc.AnalyzeImage(ctx, subject, img)
	assert.NoError(err)
	assert.False(out.IsNSFW)
	assert.Equal(int64(0), cls.calls.Load())
}

func TestAnalyzeCachesClassifierResponse(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cls := &stubClassifier{labels: []Label{{Class: "suggestive", Score: 0.40}}}
	svc, srv := testService(t, cls)
	subject := content.Ref{Kind: content.KindImage, ID: "img-cached"}
	img := testImage(srv, "cached")

	out, err := svc.AnalyzeImage(ctx, subject, img)
	assert.NoError(err)
	assert.False(out.IsNSFW)
	assert.Equal(int64(1), cls.calls.Load())

	out, err = svc.AnalyzeImage(ctx, subject, img)
	assert.NoError(err)
	assert.Equal(0.40, out.Confidence)
	assert.Equal(int64(1), cls.calls.Load(), "second analysis served from cache")
}

func TestSelfMarkAndRetract(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	svc, _ := testService(t, &stubClassifier{})
	subject := content.Ref{Kind: content.KindChapter, ID: "ch1"}

	assert.Error(svc.SelfMark(ctx, subject, "", true))

	assert.NoError(svc.SelfMark(ctx, subject, "author1", true))
	nsfw, err := svc.IsNSFW(ctx, subject)
	assert.NoError(err)
	assert.True(nsfw)

	assert.NoError(svc.SelfMark(ctx, subject, "author1", false))
	nsfw, err = svc.IsNSFW(ctx, subject)
	assert.NoError(err)
	assert.False(nsfw)

	// both marks retained for audit
	flags, err := svc.Flags.Get(ctx, subject)
	assert.NoError(err)
	assert.Len(flags, 2)
	assert.Equal(flagstore.MethodUserMarked, flags[0].Method)
}

func TestModeratorOverride(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cls := &stubClassifier{labels: []Label{{Class: "nudity", Score: 0.95}}}
	svc, srv := testService(t, cls)
	subject := content.Ref{Kind: content.KindImage, ID: "img-override"}

	_, err := svc.AnalyzeImage(ctx, subject, testImage(srv, "override"))
	assert.NoError(err)
	nsfw, err := svc.IsNSFW(ctx, subject)
	assert.NoError(err)
	assert.True(nsfw)

	var authErr *roles.AuthorizationError
	err = svc.Override(ctx, subject, "rando", false)
	assert.ErrorAs(err, &authErr)

	assert.NoError(svc.Override(ctx, subject, "mod1", false))
	nsfw, err = svc.IsNSFW(ctx, subject)
	assert.NoError(err)
	assert.False(nsfw, "moderator decision supersedes the automatic flag")

	flags, err := svc.Flags.Get(ctx, subject)
	assert.NoError(err)
	assert.Len(flags, 2)
	last := flags[len(flags)-1]
	assert.Equal(flagstore.MethodManual, last.Method)
	assert.True(last.Reviewed)
	assert.True(last.Negated)
}

func TestArgusClient(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("POST", r.Method)
		assert.Equal("/v1/media/classify", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(ok)
		assert.Equal("admin", user)
		assert.Equal("hunter2", pass)

		assert.NoError(r.ParseMultipartForm(1 << 20))
		f, _, err := r.FormFile("media")
		assert.NoError(err)
		f.Close()

		json.NewEncoder(w).Encode(argusResp{Classes: []Label{{Class: "nsfw", Score: 0.97}}})
	}))
	defer srv.Close()

	client := NewArgusClient(srv.URL, "hunter2", 10, 100, 1000)
	labels, err := client.ClassifyImage(ctx, []byte("image-bytes"), "image/png")
	assert.NoError(err)
	if assert.Len(labels, 1) {
		assert.Equal("nsfw", labels[0].Class)
		assert.Equal(0.97, labels[0].Score)
	}
}

func TestArgusClientRateLimit(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(argusResp{})
	}))
	defer srv.Close()

	client := NewArgusClient(srv.URL, "pw", 1, 100, 1000)
	_, err := client.ClassifyImage(ctx, []byte("a"), "image/png")
	assert.NoError(err)

	_, err = client.ClassifyImage(ctx, []byte("b"), "image/png")
	assert.ErrorIs(err, ErrRateLimited)
}

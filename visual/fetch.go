package visual

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/inkhaven-social/warden/content"
	"github.com/inkhaven-social/warden/util/ssrf"

	"github.com/carlmjohnson/versioninfo"
)

// MaxImageBytes caps image downloads. Larger images are rejected before
// classification rather than truncated.
const MaxImageBytes = 20 * 1024 * 1024

// Fetcher downloads image bytes from storage URLs. Image URLs come from
// creator uploads, so the transport refuses connections to non-public
// addresses.
type Fetcher struct {
	Client http.Client
}

func NewFetcher() *Fetcher {
	return &Fetcher{
		Client: http.Client{
			Transport: ssrf.PublicOnlyTransport(),
			Timeout:   time.Second * 30,
		},
	}
}

func (f *Fetcher) FetchImage(ctx context.Context, img content.ImageRef) ([]byte, error) {

	start := time.Now()
	defer func() {
		duration := time.Since(start)
		imageDownloadDuration.Observe(duration.Seconds())
	}()

	req, err := http.NewRequest("GET", img.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "warden/"+versioninfo.Short())

	req = req.WithContext(ctx)
	res, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	imageDownloadCount.WithLabelValues(fmt.Sprint(res.StatusCode)).Inc()
	if res.StatusCode != 200 {
		return nil, fmt.Errorf("failed to fetch image. id=%s statusCode=%d", img.ID, res.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(res.Body, MaxImageBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxImageBytes {
		return nil, fmt.Errorf("image too large for classification. id=%s max=%d", img.ID, MaxImageBytes)
	}

	return data, nil
}

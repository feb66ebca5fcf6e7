package visual

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/inkhaven-social/warden/util"

	"github.com/RussellLuo/slidingwindow"
	"github.com/carlmjohnson/versioninfo"
)

// ErrRateLimited indicates the client-side request budget for the classifier
// is exhausted. Callers should treat it as "no result", not as a verdict.
var ErrRateLimited = errors.New("argus classification skipped: rate limit exceeded")

// Label is a single classifier finding. The Argus service only returns
// unsafe-content categories, so any high-confidence label means the image
// should be treated as sensitive.
type Label struct {
	Class string  `json:"class"`
	Score float64 `json:"score"`
}

// Classifier scores an image across unsafe-content categories.
type Classifier interface {
	ClassifyImage(ctx context.Context, data []byte, mimeType string) ([]Label, error)
}

type ArgusClient struct {
	Client   http.Client
	Host     string
	Password string

	limiters []*slidingwindow.Limiter
}

func windowFunc() (slidingwindow.Window, slidingwindow.StopFunc) {
	return slidingwindow.NewLocalWindow()
}

func NewArgusClient(host, password string, perSecLimit, perHourLimit, perDayLimit int64) *ArgusClient {
	perSec, _ := slidingwindow.NewLimiter(time.Second, perSecLimit, windowFunc)
	perHour, _ := slidingwindow.NewLimiter(time.Hour, perHourLimit, windowFunc)
	perDay, _ := slidingwindow.NewLimiter(time.Hour*24, perDayLimit, windowFunc)
	return &ArgusClient{
		Client:   *util.RobustHTTPClient(),
		Host:     host,
		Password: password,
		limiters: []*slidingwindow.Limiter{perSec, perHour, perDay},
	}
}

type argusResp struct {
	Classes []Label `json:"classes"`
}

func (ac *ArgusClient) ClassifyImage(ctx context.Context, data []byte, mimeType string) ([]Label, error) {

	for _, lim := range ac.limiters {
		if !lim.Allow() {
			argusAPISkippedCount.Inc()
			return nil, ErrRateLimited
		}
	}

	slog.Debug("sending image to argus", "mimetype", mimeType, "size", len(data))

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("media", "image")
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequest("POST", ac.Host+"/v1/media/classify", body)
	if err != nil {
		return nil, err
	}

	req.SetBasicAuth("admin", ac.Password)
	req.Header.Add("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "warden/"+versioninfo.Short())

	start := time.Now()
	defer func() {
		duration := time.Since(start)
		argusAPIDuration.Observe(duration.Seconds())
	}()

	req = req.WithContext(ctx)
	res, err := ac.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("argus request failed: %v", err)
	}
	defer res.Body.Close()

	argusAPICount.WithLabelValues(fmt.Sprint(res.StatusCode)).Inc()
	if res.StatusCode != 200 {
		return nil, fmt.Errorf("argus request failed statusCode=%d", res.StatusCode)
	}

	respBytes, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read argus resp body: %v", err)
	}

	var respObj argusResp
	if err := json.Unmarshal(respBytes, &respObj); err != nil {
		return nil, fmt.Errorf("failed to parse argus resp JSON: %v", err)
	}
	slog.Debug("argus-response", "classes", len(respObj.Classes))
	return respObj.Classes, nil
}

package urlcheck

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/carlmjohnson/versioninfo"

	"github.com/inkhaven-social/warden/util"
)

// ReputationClient looks a URL up against an external threat intelligence
// service.
type ReputationClient interface {
	Lookup(ctx context.Context, url string) (bool, []string, error)
}

// HTTPReputationClient talks to a reputation service over its JSON lookup
// endpoint.
type HTTPReputationClient struct {
	Client   http.Client
	Host     string
	Password string
}

func NewHTTPReputationClient(host, password string) *HTTPReputationClient {
	return &HTTPReputationClient{
		Client:   *util.RobustHTTPClient(),
		Host:     host,
		Password: password,
	}
}

type reputationReq struct {
	URL string `json:"url"`
}

type reputationResp struct {
	Safe    bool     `json:"safe"`
	Threats []string `json:"threats"`
}

func (rc *HTTPReputationClient) Lookup(ctx context.Context, url string) (bool, []string, error) {

	slog.Debug("sending url to reputation service", "url", url)

	reqBytes, err := json.Marshal(reputationReq{URL: url})
	if err != nil {
		return false, nil, err
	}

	req, err := http.NewRequest("POST", rc.Host+"/v1/url/lookup", bytes.NewBuffer(reqBytes))
	if err != nil {
		return false, nil, err
	}
	req.SetBasicAuth("admin", rc.Password)
	req.Header.Add("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "warden/"+versioninfo.Short())

	start := time.Now()
	defer func() {
		duration := time.Since(start)
		reputationAPIDuration.Observe(duration.Seconds())
	}()

	req = req.WithContext(ctx)
	res, err := rc.Client.Do(req)
	if err != nil {
		return false, nil, fmt.Errorf("reputation request failed: %v", err)
	}
	defer res.Body.Close()

	reputationAPICount.WithLabelValues(fmt.Sprint(res.StatusCode)).Inc()
	if res.StatusCode != 200 {
		return false, nil, fmt.Errorf("reputation request failed statusCode=%d", res.StatusCode)
	}

	respBytes, err := io.ReadAll(res.Body)
	if err != nil {
		return false, nil, fmt.Errorf("failed to read reputation resp body: %v", err)
	}

	var respObj reputationResp
	if err := json.Unmarshal(respBytes, &respObj); err != nil {
		return false, nil, fmt.Errorf("failed to parse reputation resp JSON: %v", err)
	}
	return respObj.Safe, respObj.Threats, nil
}

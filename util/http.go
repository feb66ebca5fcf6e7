package util

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type leveledSlog struct {
	inner *slog.Logger
}

// re-writes HTTP client ERROR to WARN level (because of retries)
func (l leveledSlog) Error(msg string, keysAndValues ...interface{}) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l leveledSlog) Warn(msg string, keysAndValues ...interface{}) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l leveledSlog) Info(msg string, keysAndValues ...interface{}) {
	l.inner.Info(msg, keysAndValues...)
}

// re-writes HTTP client DEBUG to INFO level (this is where retry is logged)
func (l leveledSlog) Debug(msg string, keysAndValues ...interface{}) {
	l.inner.Info(msg, keysAndValues...)
}

// RobustHTTPClient generates an HTTP client with decent general-purpose
// defaults around timeouts and retries. The returned client has the stdlib
// http.Client interface, but has Hashicorp retryablehttp logic internally,
// and an OTEL-instrumented transport.
//
// This client will retry on connection errors and 5xx status (except 501).
// 429 Too Many Requests is returned to the caller unretried, so rate-limit
// handling stays with the application. Intermediate failures are logged at
// WARN level. This does not start from http.DefaultClient.
//
// Usable for the reputation and image classifier clients, and other general
// inter-service needs. CLI tools might want shorter timeouts and fewer
// retries by default.
func RobustHTTPClient() *http.Client {

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Transport = otelhttp.NewTransport(cleanhttp.DefaultPooledTransport())
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.Logger = retryablehttp.LeveledLogger(leveledSlog{slog.Default().With("component", "http")})
	retryClient.CheckRetry = retryPolicy
	client := retryClient.StandardClient()
	client.Timeout = 20 * time.Second
	return client
}

// retryPolicy wraps retryablehttp.DefaultRetryPolicy but treats
// `429 Too Many Requests` as non-retryable, so the application can decide
// how to deal with rate-limiting.
func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err == nil && resp.StatusCode == http.StatusTooManyRequests {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

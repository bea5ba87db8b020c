package platforms

import (
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// DefaultUserAgent is sent by every API-JSON and API-OAuth adapter.
const DefaultUserAgent = "streamwatch/1.0 (+https://github.com/streamwatch/streamwatch)"

// NewHTTPClient builds the retryable HTTP client that each API adapter (the
// four API-JSON ones and twitch) constructs for itself: a short request
// timeout plus a couple of retries on
// transient failures, grounded on the teacher's
// clients/callback_client.go NewPeriodicCallbackClient construction.
func NewHTTPClient(timeout time.Duration) *http.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 1 * time.Second
	rc.Logger = nil
	rc.HTTPClient.Timeout = timeout
	return rc.StandardClient()
}

// Error collapses an adapter-local failure into a record the way §4.1 (a-d)
// requires: a populated ErrorDetail on an otherwise-usable record, never a
// propagated Go error.
func Error(r Record, reason string) Record {
	r.ErrorDetail = reason
	return r
}

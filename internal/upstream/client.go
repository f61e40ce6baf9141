package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"golang.org/x/net/http2"

	"github.com/fpt/klein-cli/pkg/logger"
)

// Base URLs for the v1internal endpoint, prod first then the sandbox
// fallback (SPEC_FULL.md §6, grounded on V1InternalBaseURLProd/Daily).
const (
	BaseURLProd  = "https://cloudcode-pa.googleapis.com/v1internal"
	BaseURLDaily = "https://daily-cloudcode-pa.sandbox.googleapis.com/v1internal"
)

// Client sends v1internal requests against the prod endpoint, falling back
// to the daily sandbox endpoint on connection failure or a retryable status.
type Client struct {
	http *http.Client
	urls []string
	log  *logger.Logger
}

// NewClient builds a Client with an http2-tuned Transport (grounded on the
// adapter's header set and timeout posture: the account pool already bounds
// token acquisition to 5s, so the transport itself only needs idle-conn and
// TLS handshake tuning, not a blanket request deadline).
func NewClient() *Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	_ = http2.ConfigureTransport(transport)
	return &Client{
		http: &http.Client{Transport: transport},
		urls: []string{BaseURLProd, BaseURLDaily},
		log:  logger.NewComponentLogger("upstream"),
	}
}

// Endpoints returns the ordered list of base URLs this client will try.
func (c *Client) Endpoints() []string {
	return append([]string(nil), c.urls...)
}

// BuildURL appends the streaming or non-streaming v1internal method to
// base.
func BuildURL(base string, stream bool) string {
	if stream {
		return base + ":streamGenerateContent?alt=sse"
	}
	return base + ":generateContent"
}

// Send issues a single POST of env against base, with the given bearer
// token. The caller owns endpoint fallback and retry decisions (internal/retry).
func (c *Client) Send(ctx context.Context, base string, stream bool, accessToken string, env Envelope) (*http.Response, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	url := BuildURL(base, stream)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("User-Agent", "antigravity")

	c.log.DebugWithIntention(logger.IntentionUpstream, "sending upstream request", "url", url, "stream", stream)
	return c.http.Do(req)
}

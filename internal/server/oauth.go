package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// googleOAuthRefresher is the production Refresher: it is the pure
// function SPEC_FULL.md §1 calls out as an external collaborator
// ("OAuth refresh mechanics ... called as a pure function"), implemented
// here against Google's real token endpoint since the proxy has no other
// caller to source it from.
type googleOAuthRefresher struct {
	http         *http.Client
	tokenURL     string
	clientID     string
	clientSecret string
}

// NewGoogleOAuthRefresher builds a tokenpool.Refresher backed by Google's
// OAuth2 token endpoint, refresh_token grant.
func NewGoogleOAuthRefresher(httpClient *http.Client, clientID, clientSecret string) *googleOAuthRefresher {
	return &googleOAuthRefresher{
		http:         httpClient,
		tokenURL:     "https://oauth2.googleapis.com/token",
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

type refreshResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	Error       string `json:"error"`
	ErrorDesc   string `json:"error_description"`
}

// Refresh implements tokenpool.Refresher.
func (g *googleOAuthRefresher) Refresh(ctx context.Context, refreshToken string) (string, int64, error) {
	form := url.Values{
		"client_id":     {g.clientID},
		"client_secret": {g.clientSecret},
		"refresh_token": {refreshToken},
		"grant_type":    {"refresh_token"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.http.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, err
	}

	var parsed refreshResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", 0, fmt.Errorf("oauth refresh: malformed response: %w", err)
	}
	if parsed.Error != "" {
		return "", 0, fmt.Errorf("oauth refresh: %s: %s", parsed.Error, parsed.ErrorDesc)
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("oauth refresh: status %d", resp.StatusCode)
	}
	return parsed.AccessToken, parsed.ExpiresIn, nil
}

// cloudCodeProjectResolver resolves the Google Cloud project id associated
// with an access token via the same loadCodeAssist endpoint the real
// Antigravity client calls before its first generateContent request.
type cloudCodeProjectResolver struct {
	http *http.Client
	url  string
}

// NewCloudCodeProjectResolver builds a tokenpool.ProjectResolver against
// Upstream's companion project-resolution endpoint.
func NewCloudCodeProjectResolver(httpClient *http.Client) *cloudCodeProjectResolver {
	return &cloudCodeProjectResolver{
		http: httpClient,
		url:  "https://cloudcode-pa.googleapis.com/v1internal:loadCodeAssist",
	}
}

type loadCodeAssistResponse struct {
	CloudaicompanionProject string `json:"cloudaicompanionProject"`
}

// ResolveProject implements tokenpool.ProjectResolver.
func (c *cloudCodeProjectResolver) ResolveProject(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(`{}`))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("project resolution: status %d: %s", resp.StatusCode, string(body))
	}

	var parsed loadCodeAssistResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if parsed.CloudaicompanionProject == "" {
		return "", fmt.Errorf("project resolution: empty project id in response")
	}
	return parsed.CloudaicompanionProject, nil
}

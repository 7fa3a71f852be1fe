package token

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"

	"github.com/CoderDKai/oai-team-automation/internal/errors"
)

// DefaultTokenURL is the OAuth token endpoint used when none is configured.
const DefaultTokenURL = "https://auth.openai.com/oauth/token"

// maxBody caps how much of a token response is read.
const maxBody = 1 << 20

// Refresher exchanges a refresh token for a new credential pair.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// HTTPRefresher posts a refresh_token grant as a form to an OAuth token
// endpoint and reads the response with the extraction rules, so both
// standard and vendor-shaped payloads are accepted.
type HTTPRefresher struct {
	Endpoint     oauth2.Endpoint
	ClientID     string
	ClientSecret string
	Audience     string
	Scope        string
	UserAgent    string
	Client       *http.Client
	Rules        []Rule
	Now          func() time.Time
}

// NewHTTPRefresher returns a refresher for tokenURL.
func NewHTTPRefresher(tokenURL string, client *http.Client) *HTTPRefresher {
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPRefresher{
		Endpoint: oauth2.Endpoint{TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInParams},
		Client:   client,
		Rules:    DefaultRules,
		Now:      time.Now,
	}
}

// Refresh implements Refresher. A non-2xx answer is returned as an
// *errors.ExternalError wrapping an *oauth2.RetrieveError; a payload
// without an access token matches errors.ErrMalformedToken.
func (r *HTTPRefresher) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, errors.ErrNoRefreshToken
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	for k, v := range map[string]string{
		"client_id":     r.ClientID,
		"client_secret": r.ClientSecret,
		"audience":      r.Audience,
		"scope":         r.Scope,
	} {
		if v != "" {
			form.Set(k, v)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.Endpoint.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build refresh request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if r.UserAgent != "" {
		req.Header.Set("User-Agent", r.UserAgent)
	}

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, errors.NewExternalError("token endpoint unreachable", err).WithProvider("oauth")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, errors.NewExternalError("read token response", err).WithProvider("oauth")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		parsed := gjson.ParseBytes(body)
		rerr := &oauth2.RetrieveError{
			Response:         resp,
			Body:             body,
			ErrorCode:        parsed.Get("error").String(),
			ErrorDescription: parsed.Get("error_description").String(),
		}
		return nil, errors.NewExternalError("refresh rejected", rerr).WithProvider("oauth").WithStatusCode(resp.StatusCode)
	}

	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("token response is not JSON: %w", errors.ErrMalformedToken)
	}

	now := time.Now()
	if r.Now != nil {
		now = r.Now()
	}
	rules := r.Rules
	if rules == nil {
		rules = DefaultRules
	}
	toks := Extract(body, now, rules)
	if toks.AccessToken == "" {
		return nil, fmt.Errorf("token response has no access token: %w", errors.ErrMalformedToken)
	}

	tok := &oauth2.Token{
		AccessToken:  toks.AccessToken,
		RefreshToken: toks.RefreshToken,
		TokenType:    gjson.GetBytes(body, "token_type").String(),
	}
	if toks.ExpiresAt > 0 {
		tok.Expiry = time.Unix(toks.ExpiresAt, 0)
	}
	if toks.IDToken != "" {
		tok = tok.WithExtra(map[string]any{"id_token": toks.IDToken})
	}
	return tok, nil
}

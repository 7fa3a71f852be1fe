package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/CoderDKai/oai-team-automation/internal/errors"
)

const maxResponse = 8 << 20

// client is the HTTP plumbing shared by the backend clients.
type client struct {
	name      string
	baseURL   string
	http      *http.Client
	userAgent string
	auth      func(*http.Request)
}

func newClient(name, baseURL string, hc *http.Client, userAgent string, auth func(*http.Request)) client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return client{
		name:      name,
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      hc,
		userAgent: userAgent,
		auth:      auth,
	}
}

// do sends a request and returns the body of a 2xx response. Everything
// else is an *errors.ExternalError tagged with the provider.
func (c *client) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", c.name, err)
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", c.name, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	c.auth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.NewExternalError(method+" "+path, err).WithProvider(c.name)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponse))
	if err != nil {
		return nil, errors.NewExternalError("read response", err).WithProvider(c.name)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.NewExternalError(fmt.Sprintf("%s %s: %s", method, path, snippet(data)), nil).
			WithProvider(c.name).WithStatusCode(resp.StatusCode)
	}
	return data, nil
}

// malformed reports an unexpected response shape.
func (c *client) malformed(what string) error {
	return errors.NewExternalError("unexpected response: "+what, errors.ErrInvalidInput).WithProvider(c.name)
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

func bearer(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func header(name, value string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set(name, value) }
}

// withEmail returns a copy of session carrying email.
func withEmail(session map[string]any, email string) map[string]any {
	out := make(map[string]any, len(session)+1)
	for k, v := range session {
		out[k] = v
	}
	if _, ok := out["email"]; !ok {
		out["email"] = email
	}
	return out
}

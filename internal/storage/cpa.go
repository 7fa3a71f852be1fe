package storage

import (
	"context"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/CoderDKai/oai-team-automation/internal/errors"
	"github.com/CoderDKai/oai-team-automation/internal/poll"
)

// CPAClient talks to the cpa management API. Its create endpoint returns no
// id, so Create waits until the new auth file shows up in the listing.
type CPAClient struct {
	client
	// Visibility controls how long Create waits for the account to appear.
	Visibility poll.Options
}

// NewCPAClient returns a cpa client using the management key.
func NewCPAClient(baseURL, key string, hc *http.Client, userAgent string) *CPAClient {
	return &CPAClient{
		client: newClient(CPA, baseURL, hc, userAgent, header("X-Management-Key", key)),
		Visibility: poll.Options{
			Name:        "cpa-visibility",
			MaxAttempts: 5,
			Schedule:    poll.NewTiered(3, time.Second, 3*time.Second),
		},
	}
}

// Name implements Provider.
func (c *CPAClient) Name() string { return CPA }

// Query lists auth files and matches on email. The listing is either a bare
// array or {"files":[...]}.
func (c *CPAClient) Query(ctx context.Context, email string) (Presence, error) {
	data, err := c.do(ctx, http.MethodGet, "/v0/management/auth-files", nil, nil)
	if err != nil {
		return Presence{}, err
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsArray() {
		doc = doc.Get("files")
	}
	if !doc.IsArray() {
		return Presence{}, c.malformed("auth-files listing is not a list")
	}
	for _, f := range doc.Array() {
		if SameEmail(f.Get("email").String(), email) || SameEmail(f.Get("name").String(), email) {
			id := f.Get("id").String()
			if id == "" {
				id = f.Get("name").String()
			}
			return Presence{Exists: true, AccountID: id}, nil
		}
	}
	return Presence{}, nil
}

// Create uploads the session as an auth file, then polls Query until the
// account is listed and returns the id found there.
func (c *CPAClient) Create(ctx context.Context, email string, session map[string]any) (string, error) {
	body := withEmail(session, email)
	body["type"] = "codex"
	if _, err := c.do(ctx, http.MethodPost, "/v0/management/auth-files", nil, body); err != nil {
		return "", err
	}

	fetch := func(ctx context.Context) (Presence, bool, error) {
		p, err := c.Query(ctx, email)
		return p, err == nil, err
	}
	check := func(p Presence) (string, bool, error) {
		return p.AccountID, p.Exists, nil
	}
	res := poll.Poll(ctx, fetch, check, c.Visibility)
	if !res.OK {
		return "", errors.NewExternalError("created account not visible", res.Err).WithProvider(CPA)
	}
	return res.Value, nil
}

package storage

import (
	"context"
	"net/http"
	"net/url"

	"github.com/tidwall/gjson"
)

// CRSClient talks to the crs admin API with a bearer admin token.
type CRSClient struct {
	client
}

// NewCRSClient returns a crs client.
func NewCRSClient(baseURL, token string, hc *http.Client, userAgent string) *CRSClient {
	return &CRSClient{client: newClient(CRS, baseURL, hc, userAgent, bearer(token))}
}

// Name implements Provider.
func (c *CRSClient) Name() string { return CRS }

// Query searches accounts by email. The response is
// {"success":true,"data":[{"id":...,"name":...}]}.
func (c *CRSClient) Query(ctx context.Context, email string) (Presence, error) {
	data, err := c.do(ctx, http.MethodGet, "/admin/openai-accounts", url.Values{"search": {email}}, nil)
	if err != nil {
		return Presence{}, err
	}
	doc := gjson.ParseBytes(data)
	if !doc.Get("success").Bool() {
		return Presence{}, c.malformed("success=false")
	}
	for _, acct := range doc.Get("data").Array() {
		if SameEmail(acct.Get("name").String(), email) || SameEmail(acct.Get("email").String(), email) {
			return Presence{Exists: true, AccountID: acct.Get("id").String()}, nil
		}
	}
	return Presence{}, nil
}

// Create registers the account with its session credentials.
func (c *CRSClient) Create(ctx context.Context, email string, session map[string]any) (string, error) {
	body := map[string]any{
		"name":        email,
		"description": "provisioned by oai-team",
		"accountType": "shared",
		"openaiOauth": withEmail(session, email),
	}
	data, err := c.do(ctx, http.MethodPost, "/admin/openai-accounts", nil, body)
	if err != nil {
		return "", err
	}
	doc := gjson.ParseBytes(data)
	id := doc.Get("data.id").String()
	if !doc.Get("success").Bool() || id == "" {
		return "", c.malformed("create returned no id")
	}
	return id, nil
}

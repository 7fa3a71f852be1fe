package storage

import (
	"context"
	"net/http"
	"net/url"

	"github.com/tidwall/gjson"
)

// DefaultCatalog is the s2a platform scanned for accounts.
const DefaultCatalog = "openai"

// S2AClient talks to the s2a admin API. s2a has no lookup by email, so
// Query lists the whole catalog and scans it.
type S2AClient struct {
	client
	catalog string
}

// NewS2AClient returns an s2a client using the admin key.
func NewS2AClient(baseURL, key, catalog string, hc *http.Client, userAgent string) *S2AClient {
	if catalog == "" {
		catalog = DefaultCatalog
	}
	return &S2AClient{
		client:  newClient(S2A, baseURL, hc, userAgent, header("x-api-key", key)),
		catalog: catalog,
	}
}

// Name implements Provider.
func (c *S2AClient) Name() string { return S2A }

// Query scans {"code":0,"data":{"items":[...]}} for an item whose name or
// credentials.email matches.
func (c *S2AClient) Query(ctx context.Context, email string) (Presence, error) {
	data, err := c.do(ctx, http.MethodGet, "/api/v1/admin/accounts", url.Values{"platform": {c.catalog}}, nil)
	if err != nil {
		return Presence{}, err
	}
	doc := gjson.ParseBytes(data)
	if code := doc.Get("code"); code.Exists() && code.Int() != 0 {
		return Presence{}, c.malformed("code=" + code.Raw)
	}
	items := doc.Get("data.items")
	if !items.IsArray() {
		items = doc.Get("data")
	}
	for _, item := range items.Array() {
		if SameEmail(item.Get("name").String(), email) || SameEmail(item.Get("credentials.email").String(), email) {
			id := item.Get("id").String()
			if id == "" {
				id = item.Get("account_id").String()
			}
			return Presence{Exists: true, AccountID: id}, nil
		}
	}
	return Presence{}, nil
}

// Create adds an oauth account to the catalog.
func (c *S2AClient) Create(ctx context.Context, email string, session map[string]any) (string, error) {
	body := map[string]any{
		"name":        email,
		"platform":    c.catalog,
		"type":        "oauth",
		"credentials": withEmail(session, email),
	}
	data, err := c.do(ctx, http.MethodPost, "/api/v1/admin/accounts", nil, body)
	if err != nil {
		return "", err
	}
	doc := gjson.ParseBytes(data)
	if code := doc.Get("code"); code.Exists() && code.Int() != 0 {
		return "", c.malformed("code=" + code.Raw)
	}
	id := doc.Get("data.id").String()
	if id == "" {
		return "", c.malformed("create returned no id")
	}
	return id, nil
}

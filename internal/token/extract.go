package token

import (
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tidwall/gjson"
)

// Field names a value extracted from a token endpoint response.
type Field string

const (
	FieldAccessToken  Field = "access_token"
	FieldRefreshToken Field = "refresh_token"
	FieldIDToken      Field = "id_token"
	FieldExpiresAt    Field = "token_expires_at"
)

// Rule extracts one field from a raw response. Rules are evaluated in order
// and the first one yielding a non-empty value wins for its field.
type Rule struct {
	Field   Field
	Name    string
	Extract func(payload gjson.Result, now time.Time) (string, bool)
}

// Tokens is the result of applying the rules to a response.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
	// ExpiresAt is unix seconds, 0 when the response carried no expiry.
	ExpiresAt int64
}

// source is the nested "tokens" object when present, else the payload itself.
func source(payload gjson.Result) gjson.Result {
	if t := payload.Get("tokens"); t.IsObject() {
		return t
	}
	return payload
}

// fromSource reads key from the source object.
func fromSource(key string) func(gjson.Result, time.Time) (string, bool) {
	return func(p gjson.Result, _ time.Time) (string, bool) {
		return truthy(source(p).Get(key))
	}
}

// fromRoot reads key from the top level.
func fromRoot(key string) func(gjson.Result, time.Time) (string, bool) {
	return func(p gjson.Result, _ time.Time) (string, bool) {
		return truthy(p.Get(key))
	}
}

// relative turns a lifetime in seconds into an absolute expiry.
func relative(read func(gjson.Result, time.Time) (string, bool)) func(gjson.Result, time.Time) (string, bool) {
	return func(p gjson.Result, now time.Time) (string, bool) {
		v, ok := read(p, now)
		if !ok {
			return "", false
		}
		n, err := parseInt(v)
		if err != nil {
			return "", false
		}
		return strconv.FormatInt(now.Unix()+n, 10), true
	}
}

// jwtExpiry reads the exp claim of the access token without verifying it.
func jwtExpiry(p gjson.Result, now time.Time) (string, bool) {
	access, ok := first(DefaultRules, FieldAccessToken, p, now)
	if !ok || strings.Count(access, ".") != 2 {
		return "", false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(access, claims); err != nil {
		return "", false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return "", false
	}
	return strconv.FormatInt(exp.Unix(), 10), true
}

// DefaultRules is the priority order for token endpoint responses: the
// nested tokens object before the root, snake_case before camelCase, an
// absolute expiry before expires_in, and the access token's own exp claim
// last.
var DefaultRules []Rule

func init() {
	DefaultRules = []Rule{
		{FieldAccessToken, "source.access_token", fromSource("access_token")},
		{FieldAccessToken, "source.accessToken", fromSource("accessToken")},
		{FieldAccessToken, "root.access_token", fromRoot("access_token")},
		{FieldAccessToken, "root.accessToken", fromRoot("accessToken")},
		{FieldAccessToken, "source.token", fromSource("token")},

		{FieldRefreshToken, "source.refresh_token", fromSource("refresh_token")},
		{FieldRefreshToken, "source.refreshToken", fromSource("refreshToken")},
		{FieldRefreshToken, "root.refresh_token", fromRoot("refresh_token")},
		{FieldRefreshToken, "root.refreshToken", fromRoot("refreshToken")},

		{FieldIDToken, "source.id_token", fromSource("id_token")},
		{FieldIDToken, "source.idToken", fromSource("idToken")},
		{FieldIDToken, "root.id_token", fromRoot("id_token")},
		{FieldIDToken, "root.idToken", fromRoot("idToken")},

		{FieldExpiresAt, "source.token_expires_at", fromSource("token_expires_at")},
		{FieldExpiresAt, "source.tokenExpiresAt", fromSource("tokenExpiresAt")},
		{FieldExpiresAt, "source.expires_at", fromSource("expires_at")},
		{FieldExpiresAt, "root.token_expires_at", fromRoot("token_expires_at")},
		{FieldExpiresAt, "root.tokenExpiresAt", fromRoot("tokenExpiresAt")},
		{FieldExpiresAt, "root.expires_at", fromRoot("expires_at")},
		{FieldExpiresAt, "source.expires_in", relative(fromSource("expires_in"))},
		{FieldExpiresAt, "source.expiresIn", relative(fromSource("expiresIn"))},
		{FieldExpiresAt, "root.expires_in", relative(fromRoot("expires_in"))},
		{FieldExpiresAt, "root.expiresIn", relative(fromRoot("expiresIn"))},
		{FieldExpiresAt, "jwt.exp", jwtExpiry},
	}
}

// Extract applies rules to a raw JSON response. Values that do not parse
// (a non-numeric expiry) fall through to the next rule.
func Extract(payload []byte, now time.Time, rules []Rule) Tokens {
	p := gjson.ParseBytes(payload)
	var out Tokens
	out.AccessToken, _ = first(rules, FieldAccessToken, p, now)
	out.RefreshToken, _ = first(rules, FieldRefreshToken, p, now)
	out.IDToken, _ = first(rules, FieldIDToken, p, now)
	for _, r := range rules {
		if r.Field != FieldExpiresAt {
			continue
		}
		v, ok := r.Extract(p, now)
		if !ok {
			continue
		}
		if n, err := parseInt(v); err == nil && n > 0 {
			out.ExpiresAt = n
			break
		}
	}
	return out
}

func first(rules []Rule, field Field, p gjson.Result, now time.Time) (string, bool) {
	for _, r := range rules {
		if r.Field != field {
			continue
		}
		if v, ok := r.Extract(p, now); ok {
			return v, true
		}
	}
	return "", false
}

// truthy mirrors "present and non-empty": missing, null, false, 0 and ""
// all count as absent.
func truthy(v gjson.Result) (string, bool) {
	switch v.Type {
	case gjson.String:
		return v.Str, v.Str != ""
	case gjson.Number:
		if v.Num == 0 {
			return "", false
		}
		return v.Raw, true
	case gjson.True:
		return "true", true
	}
	return "", false
}

func parseInt(s string) (int64, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}

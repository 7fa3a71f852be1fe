// Package team reads and writes the team credential file, a JSON list of
// team records shared with the operator and the registration collaborator.
//
// Two record shapes exist. New-format records carry the credential pair
// directly; old-format records are raw session dumps
// ({"user":{"email":...},"accessToken":...}). Both decode into [Team].
// Fields this package does not know are kept and written back untouched.
package team

import (
	"github.com/go-viper/mapstructure/v2"
)

// Format distinguishes the two record shapes.
type Format string

const (
	FormatOld Format = "old"
	FormatNew Format = "new"
)

// Team is one team's credential record.
type Team struct {
	Name           string `mapstructure:"name"`
	Format         Format `mapstructure:"format"`
	OwnerEmail     string `mapstructure:"owner_email"`
	OwnerPassword  string `mapstructure:"owner_password"`
	AccountID      string `mapstructure:"account_id"`
	AccessToken    string `mapstructure:"access_token"`
	AuthToken      string `mapstructure:"auth_token"`
	RefreshToken   string `mapstructure:"refresh_token"`
	TokenExpiresAt int64  `mapstructure:"token_expires_at"`
	NeedsLogin     bool   `mapstructure:"needs_login"`
	Authorized     bool   `mapstructure:"authorized"`

	// Extra holds keys not mapped above, preserved on write.
	Extra map[string]any `mapstructure:",remain"`

	present map[string]bool
}

// Token returns the bearer credential, preferring the access token over
// its auth_token mirror.
func (t *Team) Token() string {
	if t.AccessToken != "" {
		return t.AccessToken
	}
	return t.AuthToken
}

// SetTokens records a refreshed credential pair. Empty values leave the
// current value in place; a zero expiry is ignored the same way.
func (t *Team) SetTokens(access, refresh string, expiresAt int64) {
	if access != "" {
		t.AccessToken = access
		t.AuthToken = access
		t.NeedsLogin = false
		t.Authorized = true
	}
	if refresh != "" {
		t.RefreshToken = refresh
	}
	if expiresAt != 0 {
		t.TokenExpiresAt = expiresAt
	}
}

// Decode builds a Team from one raw record of the team file.
func Decode(raw map[string]any) (*Team, error) {
	t := &Team{}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           t,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, err
	}

	t.present = make(map[string]bool, len(raw))
	for k := range raw {
		t.present[k] = true
	}
	if t.Format == "" {
		t.Format = detectFormat(raw)
	}
	if t.Format == FormatOld {
		t.fillFromSession()
	}
	if t.Name == "" {
		t.Name = t.OwnerEmail
	}
	return t, nil
}

func detectFormat(raw map[string]any) Format {
	for _, k := range []string{"refresh_token", "token_expires_at", "owner_email", "needs_login"} {
		if _, ok := raw[k]; ok {
			return FormatNew
		}
	}
	return FormatOld
}

// fillFromSession reads the camelCase session fields of an old record.
// They stay in Extra so the record is written back in its own shape.
func (t *Team) fillFromSession() {
	if t.AccessToken == "" {
		if s, ok := t.Extra["accessToken"].(string); ok {
			t.AccessToken = s
		}
	}
	if t.OwnerEmail == "" {
		if user, ok := t.Extra["user"].(map[string]any); ok {
			if s, ok := user["email"].(string); ok {
				t.OwnerEmail = s
			}
		}
	}
	if t.AccountID == "" {
		if acct, ok := t.Extra["account"].(map[string]any); ok {
			if s, ok := acct["id"].(string); ok {
				t.AccountID = s
			}
		}
	}
}

// Encode returns the record as written to the team file. Old-format
// records are written with only the keys they were read with, so a session
// dump keeps its own shape.
func (t *Team) Encode() map[string]any {
	out := make(map[string]any, len(t.Extra)+11)
	for k, v := range t.Extra {
		out[k] = v
	}

	known := map[string]any{
		"name":             t.Name,
		"format":           string(t.Format),
		"owner_email":      t.OwnerEmail,
		"owner_password":   t.OwnerPassword,
		"account_id":       t.AccountID,
		"access_token":     t.AccessToken,
		"auth_token":       t.AuthToken,
		"refresh_token":    t.RefreshToken,
		"token_expires_at": t.TokenExpiresAt,
		"needs_login":      t.NeedsLogin,
		"authorized":       t.Authorized,
	}
	for k, v := range known {
		switch {
		case t.present[k]:
			out[k] = v
		case t.Format == FormatOld:
		case isZero(v) && k != "needs_login" && k != "authorized":
		default:
			out[k] = v
		}
	}
	return out
}

func isZero(v any) bool {
	switch x := v.(type) {
	case string:
		return x == ""
	case int64:
		return x == 0
	case bool:
		return !x
	}
	return v == nil
}

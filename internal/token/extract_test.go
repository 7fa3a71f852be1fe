package token

import (
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var now = time.Unix(1_700_000_000, 0)

func TestExtract(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Tokens
	}{
		{
			name:    "standard oauth response",
			payload: `{"access_token":"a","refresh_token":"r","id_token":"i","expires_in":3600}`,
			want:    Tokens{AccessToken: "a", RefreshToken: "r", IDToken: "i", ExpiresAt: now.Unix() + 3600},
		},
		{
			name:    "nested tokens object wins over root",
			payload: `{"access_token":"root","tokens":{"access_token":"nested","refresh_token":"nr","expires_at":1800000000}}`,
			want:    Tokens{AccessToken: "nested", RefreshToken: "nr", ExpiresAt: 1800000000},
		},
		{
			name:    "camelCase variants",
			payload: `{"accessToken":"a","refreshToken":"r","idToken":"i","expiresIn":"60"}`,
			want:    Tokens{AccessToken: "a", RefreshToken: "r", IDToken: "i", ExpiresAt: now.Unix() + 60},
		},
		{
			name:    "absolute expiry beats expires_in",
			payload: `{"access_token":"a","token_expires_at":1800000001,"expires_in":10}`,
			want:    Tokens{AccessToken: "a", ExpiresAt: 1800000001},
		},
		{
			name:    "root fields when tokens object lacks them",
			payload: `{"tokens":{"id_token":"i"},"access_token":"a","refresh_token":"r"}`,
			want:    Tokens{AccessToken: "a", RefreshToken: "r", IDToken: "i"},
		},
		{
			name:    "bare token field",
			payload: `{"token":"t"}`,
			want:    Tokens{AccessToken: "t"},
		},
		{
			name:    "empty and zero values are absent",
			payload: `{"access_token":"","accessToken":"b","expires_at":0,"expires_in":5}`,
			want:    Tokens{AccessToken: "b", ExpiresAt: now.Unix() + 5},
		},
		{
			name:    "non-numeric expiry falls through",
			payload: `{"access_token":"a","expires_at":"soon","expires_in":7}`,
			want:    Tokens{AccessToken: "a", ExpiresAt: now.Unix() + 7},
		},
		{
			name:    "not an object",
			payload: `["x"]`,
			want:    Tokens{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract([]byte(tt.payload), now, DefaultRules)
			if got != tt.want {
				t.Errorf("Extract() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestExtract_JWTExpiryFallback(t *testing.T) {
	exp := now.Add(2 * time.Hour)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()}).SignedString([]byte("k"))
	if err != nil {
		t.Fatal(err)
	}

	got := Extract([]byte(`{"access_token":"`+signed+`"}`), now, DefaultRules)
	if got.ExpiresAt != exp.Unix() {
		t.Errorf("ExpiresAt = %d, want %d", got.ExpiresAt, exp.Unix())
	}

	got = Extract([]byte(`{"access_token":"`+signed+`","expires_in":10}`), now, DefaultRules)
	if got.ExpiresAt != now.Unix()+10 {
		t.Errorf("explicit expiry should beat the jwt claim, got %d", got.ExpiresAt)
	}
}

func TestRulesArePure(t *testing.T) {
	payload := []byte(`{"tokens":{"accessToken":"a"},"expires_in":30}`)
	for _, r := range DefaultRules {
		first := Extract(payload, now, []Rule{r})
		second := Extract(payload, now, []Rule{r})
		if first != second {
			t.Errorf("rule %s is not deterministic", r.Name)
		}
	}
}

func TestIsExpired(t *testing.T) {
	tests := []struct {
		name      string
		expiresAt int64
		buffer    time.Duration
		want      bool
	}{
		{"zero", 0, time.Hour, true},
		{"past", now.Unix() - 1, 0, true},
		{"exactly now", now.Unix(), 0, true},
		{"inside buffer", now.Unix() + 1800, time.Hour, true},
		{"at buffer edge", now.Unix() + 3600, time.Hour, true},
		{"beyond buffer", now.Unix() + 3601, time.Hour, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsExpired(tt.expiresAt, now, tt.buffer); got != tt.want {
				t.Errorf("IsExpired(%s) = %v, want %v", strconv.FormatInt(tt.expiresAt, 10), got, tt.want)
			}
		})
	}
}

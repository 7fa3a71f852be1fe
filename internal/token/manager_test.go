package token

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"golang.org/x/oauth2"

	ierrors "github.com/CoderDKai/oai-team-automation/internal/errors"
	"github.com/CoderDKai/oai-team-automation/internal/team"
)

type fakeRefresher struct {
	calls int
	tok   *oauth2.Token
	err   error
}

func (f *fakeRefresher) Refresh(context.Context, string) (*oauth2.Token, error) {
	f.calls++
	return f.tok, f.err
}

type fakeSaver struct {
	saves int
	err   error
}

func (f *fakeSaver) Save(context.Context) error {
	f.saves++
	return f.err
}

func expiredTeam() *team.Team {
	return &team.Team{
		Name:           "alpha",
		Format:         team.FormatNew,
		AccessToken:    "old-access",
		RefreshToken:   "old-refresh",
		TokenExpiresAt: now.Unix() - 60,
		NeedsLogin:     true,
	}
}

func TestEnsure_RefreshSuccess(t *testing.T) {
	r := &fakeRefresher{tok: &oauth2.Token{AccessToken: "new-access", RefreshToken: "new-refresh", Expiry: now.Add(24 * time.Hour)}}
	s := &fakeSaver{}
	tm := expiredTeam()

	out, err := NewManager(r, s, WithClock(func() time.Time { return now })).Ensure(context.Background(), tm)
	if err != nil || out != OutcomeRefreshed {
		t.Fatalf("Ensure = %s, %v; want refreshed", out, err)
	}
	if tm.AccessToken != "new-access" || tm.RefreshToken != "new-refresh" || tm.TokenExpiresAt != now.Add(24*time.Hour).Unix() {
		t.Errorf("team not updated: %+v", tm)
	}
	if tm.NeedsLogin || !tm.Authorized {
		t.Errorf("flags: needs_login=%v authorized=%v", tm.NeedsLogin, tm.Authorized)
	}
	if s.saves != 1 {
		t.Errorf("saves = %d, want 1", s.saves)
	}
}

func TestEnsure_RefreshFailureLeavesTeamUnchanged(t *testing.T) {
	r := &fakeRefresher{err: ierrors.NewExternalError("refresh rejected", nil).WithStatusCode(400)}
	s := &fakeSaver{}
	tm := expiredTeam()
	before := *tm

	out, err := NewManager(r, s, WithClock(func() time.Time { return now })).Ensure(context.Background(), tm)
	if out != OutcomeFailed || err == nil {
		t.Fatalf("Ensure = %s, %v; want failed with error", out, err)
	}
	if tm.AccessToken != before.AccessToken || tm.RefreshToken != before.RefreshToken ||
		tm.TokenExpiresAt != before.TokenExpiresAt || tm.NeedsLogin != before.NeedsLogin || tm.Authorized {
		t.Errorf("team changed on failure: %+v", tm)
	}
	if s.saves != 0 {
		t.Errorf("saves = %d, want 0", s.saves)
	}
}

func TestEnsure_MissingRefreshToken(t *testing.T) {
	r := &fakeRefresher{}
	tm := expiredTeam()
	tm.RefreshToken = ""
	before := *tm

	out, err := NewManager(r, &fakeSaver{}, WithClock(func() time.Time { return now })).Ensure(context.Background(), tm)
	if out != OutcomeSkipped || err != nil {
		t.Fatalf("Ensure = %s, %v; want skipped", out, err)
	}
	if r.calls != 0 {
		t.Errorf("refresh called %d times, want 0", r.calls)
	}
	if tm.AccessToken != before.AccessToken || tm.TokenExpiresAt != before.TokenExpiresAt || !tm.NeedsLogin || tm.Authorized {
		t.Errorf("team changed: %+v", tm)
	}
}

func TestEnsure_FreshToken(t *testing.T) {
	r := &fakeRefresher{}
	tm := expiredTeam()
	tm.TokenExpiresAt = now.Add(2 * time.Hour).Unix()

	out, _ := NewManager(r, &fakeSaver{}, WithClock(func() time.Time { return now })).Ensure(context.Background(), tm)
	if out != OutcomeFresh || r.calls != 0 {
		t.Errorf("Ensure = %s with %d calls, want fresh and none", out, r.calls)
	}
}

func TestEnsure_SaveFailureReported(t *testing.T) {
	r := &fakeRefresher{tok: &oauth2.Token{AccessToken: "n"}}
	s := &fakeSaver{err: ierrors.NewPersistenceError("write", ierrors.ErrLockTimeout)}

	out, err := NewManager(r, s, WithClock(func() time.Time { return now })).Ensure(context.Background(), expiredTeam())
	if out != OutcomeRefreshed || !errors.Is(err, ierrors.ErrLockTimeout) {
		t.Errorf("Ensure = %s, %v", out, err)
	}
}

func TestHTTPRefresher(t *testing.T) {
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got, _ = url.ParseQuery(string(body))
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("Content-Type = %q", ct)
		}
		switch got.Get("refresh_token") {
		case "good":
			w.Write([]byte(`{"tokens":{"accessToken":"A","refreshToken":"R"},"expires_in":100,"id_token":"I"}`))
		case "rejected":
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant","error_description":"expired"}`))
		case "empty":
			w.Write([]byte(`{"refresh_token":"R"}`))
		default:
			w.Write([]byte(`<html>`))
		}
	}))
	defer srv.Close()

	r := NewHTTPRefresher(srv.URL, srv.Client())
	r.ClientID = "cid"
	r.Scope = "openid offline_access"
	r.Now = func() time.Time { return now }

	tok, err := r.Refresh(context.Background(), "good")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if tok.AccessToken != "A" || tok.RefreshToken != "R" || tok.Expiry.Unix() != now.Unix()+100 {
		t.Errorf("token = %+v", tok)
	}
	if tok.Extra("id_token") != "I" {
		t.Errorf("id_token extra = %v", tok.Extra("id_token"))
	}
	if got.Get("grant_type") != "refresh_token" || got.Get("client_id") != "cid" || got.Get("scope") != "openid offline_access" {
		t.Errorf("form = %v", got)
	}
	if got.Has("client_secret") || got.Has("audience") {
		t.Errorf("empty optional params should be omitted: %v", got)
	}

	_, err = r.Refresh(context.Background(), "rejected")
	var rerr *oauth2.RetrieveError
	if !errors.As(err, &rerr) || rerr.ErrorCode != "invalid_grant" {
		t.Errorf("rejected error = %v, want RetrieveError invalid_grant", err)
	}
	var xerr *ierrors.ExternalError
	if !errors.As(err, &xerr) || xerr.StatusCode != http.StatusBadRequest || ierrors.IsRetryable(err) {
		t.Errorf("rejected error should be a non-retryable ExternalError, got %v", err)
	}

	if _, err := r.Refresh(context.Background(), "empty"); !errors.Is(err, ierrors.ErrMalformedToken) {
		t.Errorf("missing access token error = %v", err)
	}
	if _, err := r.Refresh(context.Background(), "html"); !errors.Is(err, ierrors.ErrMalformedToken) {
		t.Errorf("non-JSON error = %v", err)
	}
	if _, err := r.Refresh(context.Background(), ""); !errors.Is(err, ierrors.ErrNoRefreshToken) {
		t.Errorf("empty refresh token error = %v", err)
	}
}

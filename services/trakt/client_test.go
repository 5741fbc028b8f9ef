package trakt

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient("client-id", "client-secret", 5*time.Second)
	c.baseURL = srv.URL
	return c
}

func TestTraktIDs(t *testing.T) {
	cases := []struct {
		key  string
		want IDs
		ok   bool
	}{
		{"tmdb:603", IDs{TMDB: 603}, true},
		{"imdb:tt0133093", IDs{IMDB: "tt0133093"}, true},
		{"tvdb:81189", IDs{TVDB: 81189}, true},
		{"TMDB:603", IDs{TMDB: 603}, true},
		{"tmdb:abc", IDs{}, false},
		{"tmdb:", IDs{}, false},
		{"anidb:42", IDs{}, false},
		{"", IDs{}, false},
		{"noseparator", IDs{}, false},
	}
	for _, tc := range cases {
		got, ok := TraktIDs(tc.key)
		if ok != tc.ok {
			t.Errorf("TraktIDs(%q) ok = %v, want %v", tc.key, ok, tc.ok)
			continue
		}
		if got != tc.want {
			t.Errorf("TraktIDs(%q) = %+v, want %+v", tc.key, got, tc.want)
		}
	}
}

func TestPollForTokenStatusMapping(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		body      string
		wantToken bool
		wantErr   error
	}{
		{"approved", http.StatusOK, `{"access_token":"at","refresh_token":"rt","expires_in":7776000}`, true, nil},
		{"pending", http.StatusBadRequest, `{}`, false, nil},
		{"unknown code pending", http.StatusNotFound, `{}`, false, nil},
		{"expired", http.StatusGone, `{}`, false, ErrDeviceCodeExpired},
		{"already used", http.StatusConflict, `{}`, false, ErrDeviceCodeUsed},
		{"slow down", http.StatusTooManyRequests, `{}`, false, ErrSlowDown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/oauth/device/token" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			})

			token, err := c.PollForToken(context.Background(), "device-code")
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.wantToken && (token == nil || token.AccessToken != "at") {
				t.Fatalf("expected token, got %+v", token)
			}
			if !tc.wantToken && token != nil {
				t.Fatalf("expected pending, got token %+v", token)
			}
		})
	}
}

func TestAddToHistorySendsAuthorizedRequest(t *testing.T) {
	var gotBody HistoryPayload
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sync/history" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token123" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("trakt-api-key"); got != "client-id" {
			t.Errorf("trakt-api-key = %q", got)
		}
		if got := r.Header.Get("trakt-api-version"); got != "2" {
			t.Errorf("trakt-api-version = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"added":{"movies":1,"episodes":0},"not_found":{"movies":[]}}`))
	})

	payload := HistoryPayload{
		Movies: []HistoryRecord{{IDs: IDs{TMDB: 603}, WatchedAt: "2024-05-01T20:00:00Z"}},
	}
	resp, err := c.AddToHistory(context.Background(), "token123", payload)
	if err != nil {
		t.Fatalf("AddToHistory failed: %v", err)
	}
	if resp.Added == nil || resp.Added.Movies != 1 {
		t.Fatalf("expected 1 added movie, got %+v", resp.Added)
	}
	if len(gotBody.Movies) != 1 || gotBody.Movies[0].IDs.TMDB != 603 {
		t.Fatalf("server saw payload %+v", gotBody)
	}
	if gotBody.Movies[0].WatchedAt != "2024-05-01T20:00:00Z" {
		t.Fatalf("watched_at = %q", gotBody.Movies[0].WatchedAt)
	}
}

func TestAddToHistoryUnauthorized(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	})

	_, err := c.AddToHistory(context.Background(), "stale", HistoryPayload{
		Movies: []HistoryRecord{{IDs: IDs{TMDB: 1}, WatchedAt: "2024-01-01T00:00:00Z"}},
	})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestRefreshAccessToken(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/token" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["grant_type"] != "refresh_token" {
			t.Errorf("grant_type = %q", body["grant_type"])
		}
		if body["refresh_token"] != "old-refresh" {
			t.Errorf("refresh_token = %q", body["refresh_token"])
		}
		w.Write([]byte(`{"access_token":"new-access","refresh_token":"new-refresh","expires_in":7776000}`))
	})

	token, err := c.RefreshAccessToken(context.Background(), "old-refresh")
	if err != nil {
		t.Fatalf("RefreshAccessToken failed: %v", err)
	}
	if token.AccessToken != "new-access" || token.RefreshToken != "new-refresh" {
		t.Fatalf("unexpected token %+v", token)
	}
}

func TestRefreshAccessTokenRejected(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	})

	_, err := c.RefreshAccessToken(context.Background(), "revoked")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestGetDeviceCode(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/device/code" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["client_id"] != "client-id" {
			t.Errorf("client_id = %q", body["client_id"])
		}
		w.Write([]byte(`{"device_code":"dc","user_code":"ABCD1234","verification_url":"https://trakt.tv/activate","expires_in":600,"interval":5}`))
	})

	code, err := c.GetDeviceCode(context.Background())
	if err != nil {
		t.Fatalf("GetDeviceCode failed: %v", err)
	}
	if code.UserCode != "ABCD1234" || code.Interval != 5 {
		t.Fatalf("unexpected device code %+v", code)
	}
}

package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/afero"

	"github.com/gioxx/trakt-multi-scrobbler/handlers"
	"github.com/gioxx/trakt-multi-scrobbler/internal/database"
	"github.com/gioxx/trakt-multi-scrobbler/services/jellyfin"
	"github.com/gioxx/trakt-multi-scrobbler/services/library"
	"github.com/gioxx/trakt-multi-scrobbler/services/posters"
	"github.com/gioxx/trakt-multi-scrobbler/services/trakt"
	"github.com/gioxx/trakt-multi-scrobbler/utils"
)

var pngBytes = append([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, make([]byte, 32)...)

type stubGateway struct {
	users []jellyfin.User
	items map[string][]jellyfin.Item
}

func (g *stubGateway) GetUsers(context.Context) ([]jellyfin.User, error) {
	return g.users, nil
}

func (g *stubGateway) GetUserItems(_ context.Context, userID string) ([]jellyfin.Item, error) {
	return g.items[userID], nil
}

// stubTraktAPI satisfies the Trakt client interface for handler tests that
// never reach the network.
type stubTraktAPI struct{}

func (stubTraktAPI) GetDeviceCode(context.Context) (*trakt.DeviceCodeResponse, error) {
	return &trakt.DeviceCodeResponse{
		DeviceCode:      "dc",
		UserCode:        "ABCD1234",
		VerificationURL: "https://trakt.tv/activate",
		ExpiresIn:       600,
		Interval:        5,
	}, nil
}

func (stubTraktAPI) PollForToken(context.Context, string) (*trakt.TokenResponse, error) {
	return nil, nil
}

func (stubTraktAPI) RefreshAccessToken(context.Context, string) (*trakt.TokenResponse, error) {
	return nil, errors.New("unexpected refresh")
}

func (stubTraktAPI) GetUserProfile(context.Context, string) (*trakt.UserProfile, error) {
	return nil, errors.New("unexpected profile fetch")
}

func (stubTraktAPI) AddToHistory(context.Context, string, trakt.HistoryPayload) (*trakt.SyncResponse, error) {
	return &trakt.SyncResponse{}, nil
}

func movieItem(id, name, tmdb, playedAt string) jellyfin.Item {
	return jellyfin.Item{
		ID:             id,
		Type:           "Movie",
		Name:           name,
		ProductionYear: 1999,
		ProviderIDs:    map[string]string{"Tmdb": tmdb},
		ImageTags:      map[string]string{"Primary": "ptag"},
		UserData: jellyfin.UserData{
			Played:           true,
			PlayedPercentage: 100,
			LastPlayedDate:   playedAt,
		},
	}
}

func episodeItem(id, series, seriesID, tvdb, playedAt string, percent float64) jellyfin.Item {
	return jellyfin.Item{
		ID:                    id,
		Type:                  "Episode",
		Name:                  "Pilot",
		SeriesID:              seriesID,
		SeriesName:            series,
		IndexNumber:           1,
		ParentIndexNumber:     1,
		ProviderIDs:           map[string]string{"Tvdb": tvdb},
		SeriesPrimaryImageTag: "stag",
		UserData: jellyfin.UserData{
			PlayedPercentage: percent,
			LastPlayedDate:   playedAt,
		},
	}
}

func defaultGateway() *stubGateway {
	return &stubGateway{
		users: []jellyfin.User{{ID: "u1", Name: "Alice"}, {ID: "u2", Name: "Bob"}},
		items: map[string][]jellyfin.Item{
			"u1": {
				movieItem("m1", "The Matrix", "603", "2024-05-02T20:00:00Z"),
				episodeItem("e1", "The Wire", "s1", "79126", "2024-05-01T21:00:00Z", 100),
			},
			"u2": {
				episodeItem("e2", "The Wire", "s1", "79127", "2024-05-03T21:00:00Z", 40),
			},
		},
	}
}

func newLibraryService(t *testing.T, gw library.Gateway) *library.Service {
	t.Helper()
	return library.NewService(gw, library.Config{
		WatchThreshold: 0.95,
		RefreshEvery:   time.Minute,
		StatePath:      "state/jellyfin_users.json",
		Fs:             afero.NewMemMapFs(),
	})
}

func newTraktService(t *testing.T, seed ...database.AccountRecord) *trakt.Service {
	t.Helper()
	db, err := database.NewDB(database.Config{
		DatabasePath: filepath.Join(t.TempDir(), "sync.db"),
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	for _, rec := range seed {
		if err := db.Store.UpsertAccount(ctx, rec); err != nil {
			t.Fatalf("seed account: %v", err)
		}
	}

	svc, err := trakt.NewService(trakt.Config{
		Client:    stubTraktAPI{},
		Store:     db.Store,
		StatePath: "state/trakt_accounts.json",
		Fs:        afero.NewMemMapFs(),
	})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc
}

func newRouter(t *testing.T, lib *library.Service, traktSvc *trakt.Service) *mux.Router {
	t.Helper()
	cache := posters.NewCache(afero.NewMemMapFs(), "posters", func(context.Context, string, string) ([]byte, error) {
		return pngBytes, nil
	})
	r := utils.NewRouter()
	handlers.NewLibraryHandler(lib, cache, traktSvc).RegisterRoutes(r)
	handlers.NewTraktHandler(traktSvc, lib).RegisterRoutes(r)
	return r
}

func doJSON(t *testing.T, router *mux.Router, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	decoded := map[string]any{}
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json" {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, decoded
}

func TestSummaryCountsLibrary(t *testing.T) {
	router := newRouter(t, newLibraryService(t, defaultGateway()), nil)

	rec, body := doJSON(t, router, http.MethodGet, "/api/summary", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["totalUsers"].(float64) != 2 || body["selectedUsers"].(float64) != 2 {
		t.Fatalf("user counts wrong: %+v", body)
	}
	if body["movies"].(float64) != 1 || body["shows"].(float64) != 1 {
		t.Fatalf("catalog counts wrong: %+v", body)
	}
	if body["traktConfigured"].(bool) {
		t.Fatalf("traktConfigured should be false without a service")
	}
	if body["lastRefresh"].(float64) <= 0 {
		t.Fatalf("lastRefresh not set: %+v", body)
	}
}

func TestToggleUser(t *testing.T) {
	router := newRouter(t, newLibraryService(t, defaultGateway()), nil)

	rec, body := doJSON(t, router, http.MethodPost, "/api/users/toggle", map[string]any{
		"user_id": "u2", "enabled": false,
	})
	if rec.Code != http.StatusOK || body["ok"] != true {
		t.Fatalf("toggle failed: %d %+v", rec.Code, body)
	}
	selected := body["selected"].([]any)
	if len(selected) != 1 || selected[0] != "u1" {
		t.Fatalf("selected = %+v", selected)
	}
	if body["initialized"] != true {
		t.Fatalf("first toggle should initialize the selection")
	}

	rec, body = doJSON(t, router, http.MethodPost, "/api/users/toggle", map[string]any{
		"user_id": "ghost",
	})
	if rec.Code != http.StatusNotFound || body["error"] != "unknown_user" {
		t.Fatalf("unknown user: %d %+v", rec.Code, body)
	}

	rec, body = doJSON(t, router, http.MethodPost, "/api/users/toggle", map[string]any{})
	if rec.Code != http.StatusBadRequest || body["error"] != "missing_user_id" {
		t.Fatalf("missing user id: %d %+v", rec.Code, body)
	}
}

func TestUsersListsSelectionState(t *testing.T) {
	router := newRouter(t, newLibraryService(t, defaultGateway()), nil)

	rec, body := doJSON(t, router, http.MethodGet, "/api/users", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	users := body["users"].([]any)
	if len(users) != 2 {
		t.Fatalf("users = %+v", users)
	}
	first := users[0].(map[string]any)
	if first["name"] != "Alice" || first["enabled"] != true {
		t.Fatalf("first user = %+v", first)
	}
	if body["initialized"] != false {
		t.Fatalf("selection should start uninitialized")
	}
}

func TestRecentReturnsCompletedOnly(t *testing.T) {
	router := newRouter(t, newLibraryService(t, defaultGateway()), nil)

	rec, body := doJSON(t, router, http.MethodGet, "/api/recent", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	items := body["items"].([]any)
	// u2's episode sits at 40 percent and must not show up.
	if len(items) != 2 {
		t.Fatalf("items = %+v", items)
	}
	first := items[0].(map[string]any)
	if first["title"] != "The Matrix" {
		t.Fatalf("newest first expected, got %+v", first)
	}
	if first["userName"] != "Alice" {
		t.Fatalf("recent items carry the user: %+v", first)
	}
}

func TestUserHistoryEndpoint(t *testing.T) {
	router := newRouter(t, newLibraryService(t, defaultGateway()), nil)

	rec, body := doJSON(t, router, http.MethodGet, "/api/user/u1/history", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	items := body["items"].([]any)
	if len(items) != 2 {
		t.Fatalf("items = %+v", items)
	}
	if items[0].(map[string]any)["title"] != "The Matrix" {
		t.Fatalf("history not newest first: %+v", items[0])
	}

	rec, body = doJSON(t, router, http.MethodGet, "/api/user/ghost/history", nil)
	if rec.Code != http.StatusNotFound || body["error"] != "user not found" {
		t.Fatalf("unknown user: %d %+v", rec.Code, body)
	}
}

func TestUserItemsSplitsMoviesAndShows(t *testing.T) {
	router := newRouter(t, newLibraryService(t, defaultGateway()), nil)

	rec, body := doJSON(t, router, http.MethodGet, "/api/user/u1/items", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(body["movies"].([]any)) != 1 || len(body["shows"].([]any)) != 1 {
		t.Fatalf("split wrong: %+v", body)
	}
}

func TestImageEndpoint(t *testing.T) {
	router := newRouter(t, newLibraryService(t, defaultGateway()), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/image/m1?tag=ptag", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("content type = %q", ct)
	}
	if !bytes.Equal(rec.Body.Bytes(), pngBytes) {
		t.Fatalf("image bytes mangled")
	}

	rec2, body := doJSON(t, router, http.MethodGet, "/api/image/m1", nil)
	if rec2.Code != http.StatusNotFound || body["error"] != "image not found" {
		t.Fatalf("missing tag: %d %+v", rec2.Code, body)
	}
}

func TestTraktEndpointsWithoutService(t *testing.T) {
	router := newRouter(t, newLibraryService(t, defaultGateway()), nil)

	rec, body := doJSON(t, router, http.MethodGet, "/api/trakt/accounts", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["configured"] != false || body["error"] != "missing_client_id" {
		t.Fatalf("accounts body = %+v", body)
	}
	if len(body["accounts"].([]any)) != 0 {
		t.Fatalf("accounts should be empty: %+v", body)
	}

	rec, body = doJSON(t, router, http.MethodPost, "/api/trakt/sync", nil)
	if rec.Code != http.StatusOK || body["ok"] != false || body["error"] != "trakt_not_configured" {
		t.Fatalf("sync body = %d %+v", rec.Code, body)
	}

	rec, _ = doJSON(t, router, http.MethodPost, "/api/trakt/device/start", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("device start should 400, got %d", rec.Code)
	}
}

func TestTraktAccountToggleAndDelete(t *testing.T) {
	traktSvc := newTraktService(t, database.AccountRecord{
		Username:     "alice",
		AccessToken:  "at",
		RefreshToken: "rt",
		ExpiresAt:    float64(time.Now().Unix()) + 3600,
		Enabled:      false,
	})
	router := newRouter(t, newLibraryService(t, defaultGateway()), traktSvc)

	rec, body := doJSON(t, router, http.MethodPost, "/api/trakt/accounts/toggle", map[string]any{
		"username": "alice", "enabled": true,
	})
	if rec.Code != http.StatusOK || body["ok"] != true {
		t.Fatalf("toggle: %d %+v", rec.Code, body)
	}
	if !traktSvc.ListAccounts()[0].Enabled {
		t.Fatalf("toggle not applied")
	}

	rec, body = doJSON(t, router, http.MethodPost, "/api/trakt/accounts/toggle", map[string]any{
		"username": "nobody",
	})
	if rec.Code != http.StatusOK || body["ok"] != false {
		t.Fatalf("unknown account toggle: %d %+v", rec.Code, body)
	}

	rec, body = doJSON(t, router, http.MethodPost, "/api/trakt/accounts/delete", map[string]any{
		"username": "alice",
	})
	if rec.Code != http.StatusOK || body["ok"] != true {
		t.Fatalf("delete: %d %+v", rec.Code, body)
	}
	if len(traktSvc.ListAccounts()) != 0 {
		t.Fatalf("account survived deletion")
	}
}

func TestTraktItemsCarryAccountFlags(t *testing.T) {
	traktSvc := newTraktService(t, database.AccountRecord{
		Username:     "alice",
		AccessToken:  "at",
		RefreshToken: "rt",
		ExpiresAt:    float64(time.Now().Unix()) + 3600,
		Enabled:      true,
	})
	if !traktSvc.SetItemRule(context.Background(), "alice", "tmdb:603", true) {
		t.Fatalf("seed rule failed")
	}
	router := newRouter(t, newLibraryService(t, defaultGateway()), traktSvc)

	rec, body := doJSON(t, router, http.MethodGet, "/api/trakt/items", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	accounts := body["accounts"].([]any)
	if len(accounts) != 1 || accounts[0] != "alice" {
		t.Fatalf("accounts = %+v", accounts)
	}

	items := body["items"].([]any)
	if len(items) != 2 {
		t.Fatalf("items = %+v", items)
	}
	var movie map[string]any
	for _, raw := range items {
		it := raw.(map[string]any)
		if it["type"] == "movie" {
			movie = it
		}
	}
	if movie == nil {
		t.Fatalf("movie entry missing: %+v", items)
	}
	flags := movie["accounts"].([]any)[0].(map[string]any)
	if flags["ruleEnabled"] != true || flags["accountEnabled"] != true {
		t.Fatalf("flags = %+v", flags)
	}
}

func TestSetItemRulePrefersGroupKeyForShows(t *testing.T) {
	traktSvc := newTraktService(t, database.AccountRecord{
		Username:     "alice",
		AccessToken:  "at",
		RefreshToken: "rt",
		ExpiresAt:    float64(time.Now().Unix()) + 3600,
		Enabled:      true,
	})
	router := newRouter(t, newLibraryService(t, defaultGateway()), traktSvc)

	rec, body := doJSON(t, router, http.MethodPost, "/api/trakt/items/set", map[string]any{
		"username":    "alice",
		"providerKey": "tvdb:79126",
		"groupKey":    "s1",
		"type":        "show",
		"enabled":     true,
	})
	if rec.Code != http.StatusOK || body["ok"] != true {
		t.Fatalf("set rule: %d %+v", rec.Code, body)
	}

	rules := traktSvc.EnabledItems("alice")
	if !rules["s1"] {
		t.Fatalf("show rule should land on the group key, got %+v", rules)
	}
	if _, ok := rules["tvdb:79126"]; ok {
		t.Fatalf("provider key rule written for a show: %+v", rules)
	}

	rec, body = doJSON(t, router, http.MethodPost, "/api/trakt/items/remove", map[string]any{
		"username": "alice",
		"key":      "s1",
	})
	if rec.Code != http.StatusOK || body["ok"] != true {
		t.Fatalf("remove rule: %d %+v", rec.Code, body)
	}
	if len(traktSvc.EnabledItems("alice")) != 0 {
		t.Fatalf("rule survived removal")
	}
}

func TestAPIKeyMiddleware(t *testing.T) {
	lib := newLibraryService(t, defaultGateway())
	router := utils.NewRouter()
	router.Use(handlers.APIKeyMiddleware("secret"))
	handlers.NewLibraryHandler(lib, nil, nil).RegisterRoutes(router)

	rec, _ := doJSON(t, router, http.MethodGet, "/api/summary", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET should pass without a key, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/refresh", nil)
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusUnauthorized {
		t.Fatalf("POST without key should 401, got %d", rec2.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/refresh", nil)
	req.Header.Set("X-API-Key", "secret")
	rec3 := httptest.NewRecorder()
	router.ServeHTTP(rec3, req)
	if rec3.Code != http.StatusOK {
		t.Fatalf("POST with key should pass, got %d", rec3.Code)
	}
}

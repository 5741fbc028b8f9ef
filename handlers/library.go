package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/gioxx/trakt-multi-scrobbler/services/library"
	"github.com/gioxx/trakt-multi-scrobbler/services/posters"
	"github.com/gioxx/trakt-multi-scrobbler/services/trakt"
)

// LibraryHandler serves the watch-history, user selection and artwork
// endpoints backed by the library snapshot.
type LibraryHandler struct {
	library *library.Service
	posters *posters.Cache
	trakt   *trakt.Service // nil when Trakt credentials are not configured
}

// NewLibraryHandler creates a new library handler.
func NewLibraryHandler(lib *library.Service, cache *posters.Cache, traktSvc *trakt.Service) *LibraryHandler {
	return &LibraryHandler{
		library: lib,
		posters: cache,
		trakt:   traktSvc,
	}
}

// RegisterRoutes attaches the library endpoints to the router.
func (h *LibraryHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/", h.Index).Methods(http.MethodGet)
	r.HandleFunc("/api/summary", h.Summary).Methods(http.MethodGet)
	r.HandleFunc("/api/users", h.Users).Methods(http.MethodGet)
	r.HandleFunc("/api/users/toggle", h.ToggleUser).Methods(http.MethodPost)
	r.HandleFunc("/api/recent", h.Recent).Methods(http.MethodGet)
	r.HandleFunc("/api/refresh", h.ForceRefresh).Methods(http.MethodPost)
	r.HandleFunc("/api/user/{userID}/items", h.UserItems).Methods(http.MethodGet)
	r.HandleFunc("/api/user/{userID}/history", h.UserHistory).Methods(http.MethodGet)
	r.HandleFunc("/api/image/{itemID}", h.Image).Methods(http.MethodGet)
}

// Index returns a small service banner.
// GET /
func (h *LibraryHandler) Index(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "trakt-multi-scrobbler",
		"status":  "ok",
	})
}

// Summary returns library-wide counters for the dashboard.
// GET /api/summary
func (h *LibraryHandler) Summary(w http.ResponseWriter, r *http.Request) {
	refreshLibrary(r.Context(), h.library)

	selected, total, movies, shows := h.library.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"users":           selected,
		"selectedUsers":   selected,
		"totalUsers":      total,
		"lastRefresh":     h.library.LastRefreshUnix(),
		"traktConfigured": h.trakt != nil && h.trakt.Ready(),
		"movies":          movies,
		"shows":           shows,
	})
}

// Users returns all known Jellyfin users with their selection flag.
// GET /api/users
func (h *LibraryHandler) Users(w http.ResponseWriter, r *http.Request) {
	refreshLibrary(r.Context(), h.library)

	writeJSON(w, http.StatusOK, map[string]any{
		"users":       h.library.UsersWithSelection(),
		"initialized": h.library.SelectionInitialized(),
	})
}

// ToggleUser enables or disables a Jellyfin user as a scrobble source.
// POST /api/users/toggle
func (h *LibraryHandler) ToggleUser(w http.ResponseWriter, r *http.Request) {
	refreshLibrary(r.Context(), h.library)

	var req struct {
		UserID      string `json:"user_id"`
		UserIDAlias string `json:"userId"`
		Enabled     *bool  `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "missing_user_id"})
		return
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = strings.TrimSpace(req.UserIDAlias)
	}
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "missing_user_id"})
		return
	}
	if !h.library.HasUser(userID) {
		writeJSON(w, http.StatusNotFound, map[string]any{"ok": false, "error": "unknown_user"})
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	selected, initialized, err := h.library.SetUserEnabled(userID, enabled)
	if err != nil {
		slog.Warn("http.users.save_failed", "user_id", userID, "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":          true,
		"enabled":     enabled,
		"selected":    selected,
		"initialized": initialized,
	})
}

// Recent returns the latest completed items across selected users.
// GET /api/recent
func (h *LibraryHandler) Recent(w http.ResponseWriter, r *http.Request) {
	refreshLibrary(r.Context(), h.library)

	writeJSON(w, http.StatusOK, map[string]any{
		"items": h.library.RecentCompleted(6),
	})
}

// ForceRefresh rebuilds the snapshot regardless of age, useful after library
// changes on the Jellyfin side.
// POST /api/refresh
func (h *LibraryHandler) ForceRefresh(w http.ResponseWriter, r *http.Request) {
	if err := h.library.Refresh(r.Context(), true); err != nil {
		slog.Warn("http.refresh_failed", "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":          true,
		"lastRefresh": h.library.LastRefreshUnix(),
	})
}

// UserItems returns per-item progress for one user, split into movies and
// show episodes, latest play per item.
// GET /api/user/{userID}/items
func (h *LibraryHandler) UserItems(w http.ResponseWriter, r *http.Request) {
	refreshLibrary(r.Context(), h.library)

	movies, shows, ok := h.library.UserProgress(mux.Vars(r)["userID"])
	if !ok {
		jsonError(w, "user not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"movies": movies,
		"shows":  shows,
	})
}

// UserHistory returns one user's full watch history, newest first.
// GET /api/user/{userID}/history
func (h *LibraryHandler) UserHistory(w http.ResponseWriter, r *http.Request) {
	refreshLibrary(r.Context(), h.library)

	items, ok := h.library.UserHistory(mux.Vars(r)["userID"])
	if !ok {
		jsonError(w, "user not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// Image proxies a poster through the disk cache so the Jellyfin token never
// reaches a browser.
// GET /api/image/{itemID}?tag=...
func (h *LibraryHandler) Image(w http.ResponseWriter, r *http.Request) {
	itemID := mux.Vars(r)["itemID"]
	tag := r.URL.Query().Get("tag")
	if tag == "" {
		jsonError(w, "image not found", http.StatusNotFound)
		return
	}

	data, contentType, err := h.posters.Get(r.Context(), itemID, tag)
	if err != nil {
		slog.Warn("http.image.fetch_failed", "item_id", itemID, "error", err)
		jsonError(w, "image unavailable", http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		slog.Debug("http.image.write_failed", "item_id", itemID, "error", err)
	}
}

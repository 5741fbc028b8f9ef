package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/gioxx/trakt-multi-scrobbler/models"
	"github.com/gioxx/trakt-multi-scrobbler/services/library"
	"github.com/gioxx/trakt-multi-scrobbler/services/trakt"
)

// TraktHandler serves account enrollment, per-item scrobble rules and the
// manual sync trigger. The service is nil when no Trakt credentials are
// configured; every endpoint degrades to a structured error in that case.
type TraktHandler struct {
	trakt   *trakt.Service
	library *library.Service
}

// NewTraktHandler creates a new Trakt handler.
func NewTraktHandler(traktSvc *trakt.Service, lib *library.Service) *TraktHandler {
	return &TraktHandler{
		trakt:   traktSvc,
		library: lib,
	}
}

// RegisterRoutes attaches the Trakt endpoints to the router.
func (h *TraktHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/trakt/accounts", h.Accounts).Methods(http.MethodGet)
	r.HandleFunc("/api/trakt/accounts/toggle", h.ToggleAccount).Methods(http.MethodPost)
	r.HandleFunc("/api/trakt/accounts/delete", h.DeleteAccount).Methods(http.MethodPost)
	r.HandleFunc("/api/trakt/sync", h.Sync).Methods(http.MethodPost)
	r.HandleFunc("/api/trakt/device/start", h.DeviceStart).Methods(http.MethodPost)
	r.HandleFunc("/api/trakt/device/poll", h.DevicePoll).Methods(http.MethodPost)
	r.HandleFunc("/api/trakt/items", h.Items).Methods(http.MethodGet)
	r.HandleFunc("/api/trakt/items/set", h.SetItemRule).Methods(http.MethodPost)
	r.HandleFunc("/api/trakt/items/remove", h.RemoveItemRule).Methods(http.MethodPost)
}

// Accounts lists linked Trakt accounts and their sync state.
// GET /api/trakt/accounts
func (h *TraktHandler) Accounts(w http.ResponseWriter, r *http.Request) {
	if h.trakt == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"accounts":   []models.AccountSummary{},
			"configured": false,
			"error":      "missing_client_id",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"accounts":   h.trakt.ListAccounts(),
		"configured": h.trakt.Ready(),
	})
}

// ToggleAccount flips sync on or off for one account.
// POST /api/trakt/accounts/toggle
func (h *TraktHandler) ToggleAccount(w http.ResponseWriter, r *http.Request) {
	if h.trakt == nil || !h.trakt.Ready() {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "trakt_not_configured"})
		return
	}

	var req struct {
		Username string `json:"username"`
		Enabled  *bool  `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "missing_username"})
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "missing_username"})
		return
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	ok := h.trakt.SetEnabled(r.Context(), username, enabled)
	writeJSON(w, http.StatusOK, map[string]any{"ok": ok})
}

// DeleteAccount unlinks a Trakt account.
// POST /api/trakt/accounts/delete
func (h *TraktHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	if h.trakt == nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "trakt_not_configured"})
		return
	}

	var req struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "missing_username"})
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "missing_username"})
		return
	}

	ok := h.trakt.RemoveAccount(r.Context(), username)
	writeJSON(w, http.StatusOK, map[string]any{"ok": ok})
}

// Sync runs a sync pass over all enabled accounts, or over a single account
// when the optional body names one.
// POST /api/trakt/sync
func (h *TraktHandler) Sync(w http.ResponseWriter, r *http.Request) {
	refreshLibrary(r.Context(), h.library)

	if h.trakt == nil {
		writeJSON(w, http.StatusOK, models.SyncReport{OK: false, Error: "trakt_not_configured"})
		return
	}

	// The body is optional and ignored when malformed.
	var req struct {
		Username string `json:"username"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	events := h.library.CompletedEvents()
	var report models.SyncReport
	if username := strings.TrimSpace(req.Username); username != "" {
		report = h.trakt.SyncEvents(r.Context(), events, username)
	} else {
		report = h.trakt.SyncEvents(r.Context(), events)
	}
	writeJSON(w, http.StatusOK, report)
}

// DeviceStart kicks off the Trakt device enrollment flow.
// POST /api/trakt/device/start
func (h *TraktHandler) DeviceStart(w http.ResponseWriter, r *http.Request) {
	if h.trakt == nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "trakt_not_configured"})
		return
	}

	code, err := h.trakt.StartDeviceFlow(r.Context())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "device_flow_start_failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":               true,
		"device_code":      code.DeviceCode,
		"user_code":        code.UserCode,
		"verification_url": code.VerificationURL,
		"expires_in":       code.ExpiresIn,
		"interval":         code.Interval,
	})
}

// DevicePoll checks an in-flight device enrollment.
// POST /api/trakt/device/poll
func (h *TraktHandler) DevicePoll(w http.ResponseWriter, r *http.Request) {
	if h.trakt == nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"status": trakt.StatusError, "error": "trakt_not_configured"})
		return
	}

	var req struct {
		DeviceCode string `json:"device_code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"status": trakt.StatusError, "error": "missing_device_code"})
		return
	}
	deviceCode := strings.TrimSpace(req.DeviceCode)
	if deviceCode == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"status": trakt.StatusError, "error": "missing_device_code"})
		return
	}

	status, detail := h.trakt.PollDeviceFlow(r.Context(), deviceCode)
	body := map[string]any{"status": status}
	for k, v := range detail {
		body[k] = v
	}
	writeJSON(w, http.StatusOK, body)
}

type itemAccountResponse struct {
	Username    string `json:"username"`
	RuleEnabled bool   `json:"ruleEnabled"`
	Enabled     bool   `json:"enabled"`
	// AccountEnabled duplicates Enabled; older dashboard builds read one,
	// newer ones the other.
	AccountEnabled bool `json:"accountEnabled"`
}

type catalogItemResponse struct {
	models.CatalogEntry
	Accounts []itemAccountResponse `json:"accounts"`
}

// Items lists every catalog title with its per-account scrobble flags.
// GET /api/trakt/items
func (h *TraktHandler) Items(w http.ResponseWriter, r *http.Request) {
	refreshLibrary(r.Context(), h.library)

	var accounts []models.AccountSummary
	if h.trakt != nil {
		accounts = h.trakt.ListAccounts()
	}

	entries := h.library.CatalogItems()
	items := make([]catalogItemResponse, 0, len(entries))
	for _, entry := range entries {
		if entry.ProviderKey == "" && entry.GroupKey == "" {
			continue
		}
		flags := make([]itemAccountResponse, 0, len(accounts))
		for _, acc := range accounts {
			allowed := h.trakt.ItemAllowed(acc.Username, entry.ProviderKey, entry.GroupKey)
			flags = append(flags, itemAccountResponse{
				Username:       acc.Username,
				RuleEnabled:    allowed,
				Enabled:        acc.Enabled,
				AccountEnabled: acc.Enabled,
			})
		}
		items = append(items, catalogItemResponse{CatalogEntry: entry, Accounts: flags})
	}

	names := make([]string, 0, len(accounts))
	for _, acc := range accounts {
		names = append(names, acc.Username)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "accounts": names})
}

// SetItemRule opts an item in or out of scrobbling for one account. Shows
// prefer the group key so future episodes inherit the rule.
// POST /api/trakt/items/set
func (h *TraktHandler) SetItemRule(w http.ResponseWriter, r *http.Request) {
	if h.trakt == nil || !h.trakt.Ready() {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "trakt_not_configured"})
		return
	}

	var req struct {
		ProviderKey string `json:"providerKey"`
		GroupKey    string `json:"groupKey"`
		Username    string `json:"username"`
		Type        string `json:"type"`
		Enabled     *bool  `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "missing_params"})
		return
	}
	providerKey := strings.TrimSpace(req.ProviderKey)
	groupKey := strings.TrimSpace(req.GroupKey)
	username := strings.TrimSpace(req.Username)
	if (providerKey == "" && groupKey == "") || username == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "missing_params"})
		return
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	key := providerKey
	if key == "" {
		key = groupKey
	}
	if strings.ToLower(strings.TrimSpace(req.Type)) == models.CatalogTypeShow && groupKey != "" {
		key = groupKey
	}

	ok := h.trakt.SetItemRule(r.Context(), username, key, enabled)
	writeJSON(w, http.StatusOK, map[string]any{"ok": ok})
}

// RemoveItemRule deletes a rule so the item reverts to the default deny.
// POST /api/trakt/items/remove
func (h *TraktHandler) RemoveItemRule(w http.ResponseWriter, r *http.Request) {
	if h.trakt == nil || !h.trakt.Ready() {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "trakt_not_configured"})
		return
	}

	var req struct {
		Username string `json:"username"`
		Key      string `json:"key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "missing_params"})
		return
	}
	username := strings.TrimSpace(req.Username)
	key := strings.TrimSpace(req.Key)
	if username == "" || key == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "missing_params"})
		return
	}

	ok := h.trakt.RemoveItemRule(r.Context(), username, key)
	writeJSON(w, http.StatusOK, map[string]any{"ok": ok})
}

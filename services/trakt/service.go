package trakt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/gioxx/trakt-multi-scrobbler/internal/database"
	"github.com/gioxx/trakt-multi-scrobbler/models"
)

//go:generate mockgen -destination=mock_client_test.go -package=trakt_test github.com/gioxx/trakt-multi-scrobbler/services/trakt API

// Device flow poll outcomes.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
	StatusError    = "error"
)

// Per-category cap on diagnostic samples in a sync result.
const maxSkipSamples = 5

// API is the slice of the Trakt HTTP client the service drives.
type API interface {
	GetDeviceCode(ctx context.Context) (*DeviceCodeResponse, error)
	PollForToken(ctx context.Context, deviceCode string) (*TokenResponse, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (*TokenResponse, error)
	GetUserProfile(ctx context.Context, accessToken string) (*UserProfile, error)
	AddToHistory(ctx context.Context, accessToken string, payload HistoryPayload) (*SyncResponse, error)
}

var _ API = (*Client)(nil)

// Store persists accounts, sync cursors and item rules between runs.
type Store interface {
	LoadAccounts(ctx context.Context) ([]database.AccountRecord, error)
	UpsertAccount(ctx context.Context, rec database.AccountRecord) error
	SetEnabled(ctx context.Context, username string, enabled bool) error
	SetLastSynced(ctx context.Context, username string, ts float64) error
	RemoveAccount(ctx context.Context, username string) error
	LoadItemRules(ctx context.Context) (map[string]map[string]bool, error)
	SetItemRule(ctx context.Context, username, key string, enabled bool) error
	RemoveItemRule(ctx context.Context, username, key string) error
	PruneRules(ctx context.Context, validKeys []string) error
	ImportItemRules(ctx context.Context, items map[string]map[string]bool) error
}

var _ Store = (*database.SyncStore)(nil)

// Account is one linked Trakt profile together with its sync state.
type Account struct {
	Username     string
	AccessToken  string
	RefreshToken string
	ExpiresAt    float64
	Enabled      bool
}

// Expired reports whether the access token needs a refresh. It flips a
// minute early so a token cannot lapse mid-request.
func (a *Account) Expired() bool {
	return nowUnix() > a.ExpiresAt-60
}

// Config wires the service to its HTTP client and persistence.
type Config struct {
	Client API
	Store  Store
	// StatePath is the legacy JSON state file. It is imported once when the
	// database is empty and kept up to date as a plain-text mirror afterwards.
	StatePath string
	Fs        afero.Fs
}

// Service syncs completed watch events to linked Trakt accounts and owns
// the device-flow enrollment, token refresh and per-item rule state.
type Service struct {
	client    API
	store     Store
	fs        afero.Fs
	statePath string

	mu         sync.Mutex
	accounts   map[string]*Account
	lastSynced map[string]float64
	// itemRules: username -> item key -> enabled. A missing key means the
	// item was never selected, which counts as denied.
	itemRules map[string]map[string]bool
}

// NewService loads persisted accounts and rules and returns a ready service.
// A populated legacy JSON state file is imported when the database holds no
// accounts yet.
func NewService(cfg Config) (*Service, error) {
	fs := cfg.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	s := &Service{
		client:     cfg.Client,
		store:      cfg.Store,
		fs:         fs,
		statePath:  cfg.StatePath,
		accounts:   make(map[string]*Account),
		lastSynced: make(map[string]float64),
		itemRules:  make(map[string]map[string]bool),
	}

	ctx := context.Background()
	records, err := s.store.LoadAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}

	if len(records) == 0 {
		if legacy := s.loadLegacyState(); legacy != nil {
			if err := s.importLegacyState(ctx, legacy); err != nil {
				return nil, err
			}
			records, err = s.store.LoadAccounts(ctx)
			if err != nil {
				return nil, fmt.Errorf("load accounts after import: %w", err)
			}
		}
	}

	for _, rec := range records {
		s.accounts[rec.Username] = &Account{
			Username:     rec.Username,
			AccessToken:  rec.AccessToken,
			RefreshToken: rec.RefreshToken,
			ExpiresAt:    rec.ExpiresAt,
			Enabled:      rec.Enabled,
		}
		s.lastSynced[rec.Username] = rec.LastSynced
	}

	rules, err := s.store.LoadItemRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("load item rules: %w", err)
	}
	s.itemRules = rules

	s.mu.Lock()
	s.saveStateLocked()
	s.mu.Unlock()

	slog.Info("trakt.state.loaded", "accounts", len(s.accounts), "accounts_with_rules", len(s.itemRules))
	return s, nil
}

// Ready reports whether a sync pass can do anything: at least one account
// is linked. Credential presence is the caller's concern, a service only
// exists when credentials were configured.
func (s *Service) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accounts) > 0
}

// ListAccounts returns every linked account sorted by username.
func (s *Service) ListAccounts() []models.AccountSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.AccountSummary, 0, len(s.accounts))
	for _, acc := range s.accounts {
		out = append(out, models.AccountSummary{
			Username:     acc.Username,
			Enabled:      acc.Enabled,
			ExpiresAt:    acc.ExpiresAt,
			LastSyncedAt: s.lastSynced[acc.Username],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

// SetEnabled flips an account's sync toggle. Returns false for an unknown
// username.
func (s *Service) SetEnabled(ctx context.Context, username string, enabled bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[username]
	if !ok {
		return false
	}
	acc.Enabled = enabled
	if err := s.store.SetEnabled(ctx, username, enabled); err != nil {
		slog.Warn("trakt.account.persist_failed", "username", username, "error", err)
	}
	s.saveStateLocked()
	return true
}

// RemoveAccount unlinks an account and drops its cursor and rules.
func (s *Service) RemoveAccount(ctx context.Context, username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[username]; !ok {
		return false
	}
	delete(s.accounts, username)
	delete(s.lastSynced, username)
	delete(s.itemRules, username)
	if err := s.store.RemoveAccount(ctx, username); err != nil {
		slog.Warn("trakt.account.remove_failed", "username", username, "error", err)
	}
	s.saveStateLocked()
	slog.Info("trakt.account.removed", "username", username)
	return true
}

// SetItemRule records whether an item may be scrobbled for an account.
// The key is a provider key or a group key.
func (s *Service) SetItemRule(ctx context.Context, username, key string, enabled bool) bool {
	if username == "" || key == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[username]; !ok {
		return false
	}
	rules, ok := s.itemRules[username]
	if !ok {
		rules = make(map[string]bool)
		s.itemRules[username] = rules
	}
	rules[key] = enabled
	if err := s.store.SetItemRule(ctx, username, key, enabled); err != nil {
		slog.Warn("trakt.rule.persist_failed", "username", username, "key", key, "error", err)
	}
	s.saveStateLocked()
	return true
}

// RemoveItemRule deletes a rule so the item falls back to the default deny.
func (s *Service) RemoveItemRule(ctx context.Context, username, key string) bool {
	if username == "" || key == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rules, ok := s.itemRules[username]
	if !ok {
		return false
	}
	if _, ok := rules[key]; !ok {
		return false
	}
	delete(rules, key)
	if err := s.store.RemoveItemRule(ctx, username, key); err != nil {
		slog.Warn("trakt.rule.persist_failed", "username", username, "key", key, "error", err)
	}
	s.saveStateLocked()
	return true
}

// ItemAllowed decides whether an event may be forwarded for an account. A
// provider key rule wins over a group key rule. No rule means denied, so
// new library content never syncs until someone opts it in.
func (s *Service) ItemAllowed(username, providerKey, groupKey string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.itemAllowedLocked(username, providerKey, groupKey)
}

func (s *Service) itemAllowedLocked(username, providerKey, groupKey string) bool {
	if providerKey == "" && groupKey == "" {
		return false
	}
	rules := s.itemRules[username]
	if providerKey != "" {
		if enabled, ok := rules[providerKey]; ok {
			return enabled
		}
	}
	if groupKey != "" {
		if enabled, ok := rules[groupKey]; ok {
			return enabled
		}
	}
	return false
}

// EnabledItems returns a copy of an account's rule map.
func (s *Service) EnabledItems(username string) map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]bool, len(s.itemRules[username]))
	for k, v := range s.itemRules[username] {
		out[k] = v
	}
	return out
}

// PruneRules drops rules whose keys no longer exist in the catalog. An empty
// key set is ignored so a failed catalog build cannot wipe every rule.
func (s *Service) PruneRules(ctx context.Context, validKeys map[string]struct{}) {
	if len(validKeys) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, rules := range s.itemRules {
		for key := range rules {
			if _, ok := validKeys[key]; !ok {
				delete(rules, key)
				removed++
			}
		}
	}
	if removed == 0 {
		return
	}

	keys := make([]string, 0, len(validKeys))
	for k := range validKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if err := s.store.PruneRules(ctx, keys); err != nil {
		slog.Warn("trakt.rules.prune_failed", "error", err)
	}
	s.saveStateLocked()
	slog.Info("trakt.rules.pruned", "removed", removed)
}

// StartDeviceFlow asks Trakt for a fresh device code.
func (s *Service) StartDeviceFlow(ctx context.Context) (*DeviceCodeResponse, error) {
	code, err := s.client.GetDeviceCode(ctx)
	if err != nil {
		slog.Warn("trakt.device.start_failed", "error", err)
		return nil, err
	}
	return code, nil
}

// PollDeviceFlow checks whether the user approved a device code. On approval
// the account is linked (or re-linked, keeping its toggle and rules) and the
// detail carries the username and token expiry.
func (s *Service) PollDeviceFlow(ctx context.Context, deviceCode string) (string, map[string]any) {
	if deviceCode == "" {
		return StatusError, map[string]any{"error": "missing_params"}
	}

	token, err := s.client.PollForToken(ctx, deviceCode)
	switch {
	case err == nil && token == nil:
		return StatusPending, nil
	case errors.Is(err, ErrSlowDown):
		return StatusPending, map[string]any{"error": "slow_down"}
	case errors.Is(err, ErrDeviceCodeExpired):
		return StatusRejected, map[string]any{"error": "expired_token"}
	case errors.Is(err, ErrDeviceCodeUsed):
		return StatusError, map[string]any{"error": "device_code_used"}
	case err != nil:
		slog.Warn("trakt.device.poll_failed", "error", err)
		return StatusError, map[string]any{"error": "poll_failed"}
	}

	return s.addAccountFromToken(ctx, token)
}

func (s *Service) addAccountFromToken(ctx context.Context, token *TokenResponse) (string, map[string]any) {
	if token.AccessToken == "" || token.RefreshToken == "" || token.ExpiresIn <= 0 {
		return StatusError, map[string]any{"error": "missing_tokens"}
	}

	profile, err := s.client.GetUserProfile(ctx, token.AccessToken)
	if err != nil {
		slog.Warn("trakt.device.profile_failed", "error", err)
		return StatusError, map[string]any{"error": "missing_username"}
	}
	username := strings.TrimSpace(profile.Username)
	if username == "" {
		username = strings.TrimSpace(profile.IDs.Slug)
	}
	if username == "" {
		return StatusError, map[string]any{"error": "missing_username"}
	}

	expiresAt := nowUnix() + float64(token.ExpiresIn)

	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[username]
	if ok {
		// Re-link: fresh tokens, everything else stays as configured.
		acc.AccessToken = token.AccessToken
		acc.RefreshToken = token.RefreshToken
		acc.ExpiresAt = expiresAt
	} else {
		// New accounts start disabled until someone flips them on and
		// picks what to scrobble.
		acc = &Account{
			Username:     username,
			AccessToken:  token.AccessToken,
			RefreshToken: token.RefreshToken,
			ExpiresAt:    expiresAt,
			Enabled:      false,
		}
		s.accounts[username] = acc
		s.lastSynced[username] = 0
	}
	if err := s.store.UpsertAccount(ctx, s.recordLocked(acc)); err != nil {
		slog.Warn("trakt.account.persist_failed", "username", username, "error", err)
	}
	s.saveStateLocked()

	slog.Info("trakt.device.approved", "username", username)
	return StatusApproved, map[string]any{"username": username, "expires_at": expiresAt}
}

// SyncEvents forwards completed events to every enabled account, or only to
// the named ones when a filter is given. Events older than an account's
// cursor are skipped, so repeating a pass never re-sends history.
func (s *Service) SyncEvents(ctx context.Context, events []models.WatchEvent, only ...string) models.SyncReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.accounts) == 0 {
		return models.SyncReport{OK: false, Error: "trakt_not_configured"}
	}

	var filter map[string]struct{}
	if len(only) > 0 {
		filter = make(map[string]struct{}, len(only))
		for _, name := range only {
			filter[name] = struct{}{}
		}
	}

	sorted := make([]models.WatchEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })

	usernames := make([]string, 0, len(s.accounts))
	for name := range s.accounts {
		usernames = append(usernames, name)
	}
	sort.Strings(usernames)

	results := make(map[string]models.AccountSyncResult, len(usernames))
	for _, username := range usernames {
		if filter != nil {
			if _, ok := filter[username]; !ok {
				continue
			}
		}
		acc := s.accounts[username]
		if !acc.Enabled {
			results[username] = models.AccountSyncResult{Skipped: true, Reason: "disabled"}
			continue
		}
		results[username] = s.syncAccountLocked(ctx, acc, sorted)
	}

	return models.SyncReport{OK: true, Results: results}
}

func (s *Service) syncAccountLocked(ctx context.Context, acc *Account, events []models.WatchEvent) models.AccountSyncResult {
	last := s.lastSynced[acc.Username]
	res := models.AccountSyncResult{
		SamplesMissingIDs: []models.SkippedItem{},
		SamplesDisallowed: []models.SkippedItem{},
	}

	var movies, episodes []HistoryRecord
	maxTsSent := 0.0
	for _, ev := range events {
		if ev.Date <= last || !ev.Completed {
			continue
		}
		ids, ok := TraktIDs(ev.ProviderKey)
		if !ok {
			res.SkippedMissingIDs++
			if len(res.SamplesMissingIDs) < maxSkipSamples {
				res.SamplesMissingIDs = append(res.SamplesMissingIDs, sampleOf(ev))
			}
			continue
		}
		if !s.itemAllowedLocked(acc.Username, ev.ProviderKey, ev.GroupKey) {
			res.SkippedDisallowed++
			if len(res.SamplesDisallowed) < maxSkipSamples {
				res.SamplesDisallowed = append(res.SamplesDisallowed, sampleOf(ev))
			}
			continue
		}
		record := HistoryRecord{IDs: ids, WatchedAt: isoTime(ev.Date)}
		switch ev.Kind {
		case models.KindMovie:
			movies = append(movies, record)
			maxTsSent = math.Max(maxTsSent, ev.Date)
		case models.KindEpisode:
			episodes = append(episodes, record)
			maxTsSent = math.Max(maxTsSent, ev.Date)
		}
	}

	payload := HistoryPayload{Movies: movies, Episodes: episodes}
	resp, err := s.pushHistory(ctx, acc, payload)
	if err != nil {
		slog.Warn("trakt.sync.push_failed", "username", acc.Username, "error", err)
		res.OK = false
		res.Payload = payload
		res.Response = map[string]string{"error": err.Error()}
		return res
	}

	if !payload.Empty() {
		if maxTsSent > last {
			s.lastSynced[acc.Username] = maxTsSent
		}
		if err := s.store.SetLastSynced(ctx, acc.Username, s.lastSynced[acc.Username]); err != nil {
			slog.Warn("trakt.sync.cursor_persist_failed", "username", acc.Username, "error", err)
		}
		s.saveStateLocked()
	}

	res.OK = true
	res.Sent = &models.SentCounts{Movies: len(movies), Episodes: len(episodes)}
	res.Response = resp
	slog.Info("trakt.sync.account_done",
		"username", acc.Username,
		"movies", len(movies),
		"episodes", len(episodes),
		"skipped_missing_ids", res.SkippedMissingIDs,
		"skipped_disallowed", res.SkippedDisallowed)
	return res
}

// pushHistory sends one payload with the account's current token. An expired
// token is refreshed first. A 401 gets exactly one refresh-and-retry, then
// the attempt fails so a revoked account cannot loop.
func (s *Service) pushHistory(ctx context.Context, acc *Account, payload HistoryPayload) (*SyncResponse, error) {
	if payload.Empty() {
		return &SyncResponse{}, nil
	}

	if acc.Expired() {
		if err := s.refreshTokenLocked(ctx, acc); err != nil {
			return nil, fmt.Errorf("auth failed for %s: %w", acc.Username, err)
		}
	}

	resp, err := s.client.AddToHistory(ctx, acc.AccessToken, payload)
	if err == nil {
		return resp, nil
	}
	if !errors.Is(err, ErrUnauthorized) {
		return nil, err
	}

	if rerr := s.refreshTokenLocked(ctx, acc); rerr != nil {
		return nil, fmt.Errorf("auth failed for %s: %w", acc.Username, rerr)
	}
	return s.client.AddToHistory(ctx, acc.AccessToken, payload)
}

// refreshTokenLocked swaps the account's tokens for fresh ones. On failure
// the stored tokens are left untouched.
func (s *Service) refreshTokenLocked(ctx context.Context, acc *Account) error {
	if acc.RefreshToken == "" {
		return errors.New("no refresh token")
	}

	token, err := s.client.RefreshAccessToken(ctx, acc.RefreshToken)
	if err != nil {
		slog.Warn("trakt.token.refresh_failed", "username", acc.Username, "error", err)
		return err
	}

	if token.AccessToken != "" {
		acc.AccessToken = token.AccessToken
	}
	if token.RefreshToken != "" {
		acc.RefreshToken = token.RefreshToken
	}
	acc.ExpiresAt = nowUnix() + float64(token.ExpiresIn)

	if err := s.store.UpsertAccount(ctx, s.recordLocked(acc)); err != nil {
		slog.Warn("trakt.account.persist_failed", "username", acc.Username, "error", err)
	}
	s.saveStateLocked()
	slog.Info("trakt.token.refreshed", "username", acc.Username)
	return nil
}

func (s *Service) recordLocked(acc *Account) database.AccountRecord {
	return database.AccountRecord{
		Username:     acc.Username,
		AccessToken:  acc.AccessToken,
		RefreshToken: acc.RefreshToken,
		ExpiresAt:    acc.ExpiresAt,
		Enabled:      acc.Enabled,
		LastSynced:   s.lastSynced[acc.Username],
	}
}

// Legacy JSON state, the pre-database format. Tokens lived in this file
// while toggles, cursors and rules were already in SQLite, so accounts
// without an enabled field default to on like they did back then.
type legacyAccount struct {
	Username     string  `json:"username"`
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
	ExpiresAt    float64 `json:"expires_at"`
	Enabled      *bool   `json:"enabled"`
}

type legacyState struct {
	Accounts     []legacyAccount            `json:"accounts"`
	LastSynced   map[string]float64         `json:"last_synced"`
	AccountItems map[string]map[string]bool `json:"account_items"`
}

func (s *Service) loadLegacyState() *legacyState {
	if s.statePath == "" {
		return nil
	}
	info, err := s.fs.Stat(s.statePath)
	if err != nil {
		return nil
	}
	if info.IsDir() {
		slog.Warn("trakt.state.path_is_directory", "path", s.statePath)
		return nil
	}

	raw, err := afero.ReadFile(s.fs, s.statePath)
	if err != nil {
		slog.Warn("trakt.state.read_failed", "path", s.statePath, "error", err)
		return nil
	}
	var state legacyState
	if err := json.Unmarshal(raw, &state); err != nil {
		slog.Warn("trakt.state.parse_failed", "path", s.statePath, "error", err)
		return nil
	}
	if len(state.Accounts) == 0 {
		return nil
	}
	return &state
}

func (s *Service) importLegacyState(ctx context.Context, legacy *legacyState) error {
	imported := 0
	for _, a := range legacy.Accounts {
		username := strings.TrimSpace(a.Username)
		if username == "" {
			continue
		}
		enabled := true
		if a.Enabled != nil {
			enabled = *a.Enabled
		}
		rec := database.AccountRecord{
			Username:     username,
			AccessToken:  strings.TrimSpace(a.AccessToken),
			RefreshToken: strings.TrimSpace(a.RefreshToken),
			ExpiresAt:    a.ExpiresAt,
			Enabled:      enabled,
			LastSynced:   legacy.LastSynced[username],
		}
		if err := s.store.UpsertAccount(ctx, rec); err != nil {
			return fmt.Errorf("import legacy account %s: %w", username, err)
		}
		imported++
	}
	if err := s.store.ImportItemRules(ctx, legacy.AccountItems); err != nil {
		return fmt.Errorf("import legacy item rules: %w", err)
	}
	slog.Info("trakt.state.imported_legacy", "accounts", imported, "path", s.statePath)
	return nil
}

// State mirror written after every mutation. The database is authoritative,
// the file keeps the old format readable for anyone poking at the state dir.
type stateAccount struct {
	Username     string  `json:"username"`
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
	ExpiresAt    float64 `json:"expires_at"`
}

type stateFile struct {
	Accounts   []stateAccount     `json:"accounts"`
	LastSynced map[string]float64 `json:"last_synced"`
}

func (s *Service) saveStateLocked() {
	if s.statePath == "" {
		return
	}

	state := stateFile{
		Accounts:   make([]stateAccount, 0, len(s.accounts)),
		LastSynced: make(map[string]float64, len(s.lastSynced)),
	}
	for _, acc := range s.accounts {
		state.Accounts = append(state.Accounts, stateAccount{
			Username:     acc.Username,
			AccessToken:  acc.AccessToken,
			RefreshToken: acc.RefreshToken,
			ExpiresAt:    acc.ExpiresAt,
		})
	}
	sort.Slice(state.Accounts, func(i, j int) bool { return state.Accounts[i].Username < state.Accounts[j].Username })
	for name, ts := range s.lastSynced {
		state.LastSynced[name] = ts
	}

	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		slog.Warn("trakt.state.write_failed", "path", s.statePath, "error", err)
		return
	}
	if dir := filepath.Dir(s.statePath); dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			slog.Warn("trakt.state.write_failed", "path", s.statePath, "error", err)
			return
		}
	}
	if err := afero.WriteFile(s.fs, s.statePath, raw, 0o600); err != nil {
		slog.Warn("trakt.state.write_failed", "path", s.statePath, "error", err)
	}
}

func nowUnix() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}

func isoTime(ts float64) string {
	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(frac*float64(time.Second))).UTC().Format(time.RFC3339)
}

func sampleOf(ev models.WatchEvent) models.SkippedItem {
	title := ev.Title
	if title == "" {
		title = ev.SeriesName
	}
	return models.SkippedItem{
		Title:       title,
		ProviderKey: ev.ProviderKey,
		GroupKey:    ev.GroupKey,
	}
}

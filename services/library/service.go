package library

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/gioxx/trakt-multi-scrobbler/models"
	"github.com/gioxx/trakt-multi-scrobbler/services/jellyfin"
)

//go:generate mockgen -source=service.go -destination=mock_service_test.go -package=library_test

// Gateway lists users and their played items from the media server.
type Gateway interface {
	GetUsers(ctx context.Context) ([]jellyfin.User, error)
	GetUserItems(ctx context.Context, userID string) ([]jellyfin.Item, error)
}

var _ Gateway = (*jellyfin.Client)(nil)

// Pruner drops per-item scrobble rules whose keys vanished from the catalog.
type Pruner interface {
	PruneRules(ctx context.Context, validKeys map[string]struct{})
}

// Snapshot is one fully built generation of library state. Published
// snapshots are never mutated; readers always see either the previous or the
// next generation, never a mix.
type Snapshot struct {
	RefreshedAt time.Time
	Users       map[string]models.User
	History     map[string][]models.WatchEvent
	Catalog     map[string]models.CatalogEntry
}

var emptySnapshot = &Snapshot{
	Users:   map[string]models.User{},
	History: map[string][]models.WatchEvent{},
	Catalog: map[string]models.CatalogEntry{},
}

// Config carries the tunables for the library service.
type Config struct {
	WatchThreshold float64
	RefreshEvery   time.Duration
	StatePath      string
	Fs             afero.Fs
	Pruner         Pruner
}

// Service owns the in-memory library snapshot, its staleness model, and the
// persisted user selection.
type Service struct {
	gateway  Gateway
	pruner   Pruner
	interval time.Duration
	thresh   float64

	snapshot  atomic.Pointer[Snapshot]
	refreshMu sync.Mutex

	selection *selection
}

// NewService builds the service and loads the persisted user selection.
func NewService(gateway Gateway, cfg Config) *Service {
	fs := cfg.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Service{
		gateway:   gateway,
		pruner:    cfg.Pruner,
		interval:  cfg.RefreshEvery,
		thresh:    cfg.WatchThreshold,
		selection: newSelection(fs, cfg.StatePath),
	}
}

// current returns the live snapshot, or an empty one before the first refresh.
func (s *Service) current() *Snapshot {
	if snap := s.snapshot.Load(); snap != nil {
		return snap
	}
	return emptySnapshot
}

// Stale reports whether the snapshot is older than the refresh interval, or
// was never built.
func (s *Service) Stale() bool {
	snap := s.snapshot.Load()
	if snap == nil {
		return true
	}
	return time.Since(snap.RefreshedAt) > s.interval
}

// LastRefreshUnix returns the snapshot build time in unix seconds, 0 when no
// refresh has completed yet.
func (s *Service) LastRefreshUnix() float64 {
	snap := s.snapshot.Load()
	if snap == nil {
		return 0
	}
	return float64(snap.RefreshedAt.UnixNano()) / float64(time.Second)
}

// Refresh rebuilds the snapshot from the media server. Without force it is a
// no-op while the current snapshot is fresh. Refreshes are serialized; a
// failure to list users keeps the previous snapshot in place.
func (s *Service) Refresh(ctx context.Context, force bool) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	if !force && !s.Stale() {
		return nil
	}

	runID := uuid.NewString()
	started := time.Now()

	jfUsers, err := s.gateway.GetUsers(ctx)
	if err != nil {
		slog.Warn("library.refresh.users_failed", "run", runID, "error", err)
		return fmt.Errorf("fetch users: %w", err)
	}

	snap := &Snapshot{
		RefreshedAt: time.Now(),
		Users:       make(map[string]models.User, len(jfUsers)),
		History:     make(map[string][]models.WatchEvent),
		Catalog:     make(map[string]models.CatalogEntry),
	}

	ordered := make([]string, 0, len(jfUsers))
	for _, ju := range jfUsers {
		id := strings.TrimSpace(ju.ID)
		if id == "" {
			continue
		}
		name := strings.TrimSpace(ju.Name)
		if name == "" {
			name = id
		}
		snap.Users[id] = models.User{ID: id, Name: name}
		ordered = append(ordered, id)
	}

	norm := newNormalizer(s.thresh)
	events := 0
	for _, userID := range ordered {
		items, err := s.gateway.GetUserItems(ctx, userID)
		if err != nil {
			slog.Warn("library.refresh.items_failed", "run", runID, "user", userID, "error", err)
			continue
		}
		for _, it := range items {
			event, entry, catalogKey, ok := norm.normalize(it)
			if !ok {
				continue
			}
			if catalogKey != "" {
				if _, exists := snap.Catalog[catalogKey]; !exists {
					snap.Catalog[catalogKey] = entry
				}
			}
			snap.History[userID] = append(snap.History[userID], event)
			events++
		}
	}

	s.snapshot.Store(snap)

	currentIDs := make(map[string]struct{}, len(snap.Users))
	for id := range snap.Users {
		currentIDs[id] = struct{}{}
	}
	s.selection.pruneMissing(currentIDs)

	if s.pruner != nil {
		validKeys := make(map[string]struct{})
		for _, entry := range snap.Catalog {
			if entry.ProviderKey != "" {
				validKeys[entry.ProviderKey] = struct{}{}
			}
			if entry.GroupKey != "" {
				validKeys[entry.GroupKey] = struct{}{}
			}
		}
		s.pruner.PruneRules(ctx, validKeys)
	}

	slog.Info("library.refresh.done",
		"run", runID,
		"users", len(snap.Users),
		"events", events,
		"catalog", len(snap.Catalog),
		"duration", time.Since(started).Round(time.Millisecond))
	return nil
}

// Stats returns the counts the summary endpoint reports.
func (s *Service) Stats() (selectedUsers, totalUsers, movies, shows int) {
	snap := s.current()
	for id := range snap.Users {
		if s.selection.isSelected(id) {
			selectedUsers++
		}
	}
	totalUsers = len(snap.Users)
	for _, entry := range snap.Catalog {
		switch entry.Type {
		case models.CatalogTypeMovie:
			movies++
		case models.CatalogTypeShow:
			shows++
		}
	}
	return selectedUsers, totalUsers, movies, shows
}

// HasUser reports whether the user exists in the current snapshot.
func (s *Service) HasUser(userID string) bool {
	_, ok := s.current().Users[userID]
	return ok
}

// UsersWithSelection returns every known user with their selection flag,
// sorted by display name.
func (s *Service) UsersWithSelection() []models.UserSelection {
	snap := s.current()
	out := make([]models.UserSelection, 0, len(snap.Users))
	for id, u := range snap.Users {
		out = append(out, models.UserSelection{
			UserID:  id,
			Name:    u.Name,
			Enabled: s.selection.isSelected(id),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

// SelectionInitialized reports whether a user toggle ever happened.
func (s *Service) SelectionInitialized() bool {
	return s.selection.isInitialized()
}

// IsUserSelected reports whether a user's history feeds the scrobbler.
func (s *Service) IsUserSelected(userID string) bool {
	return s.selection.isSelected(userID)
}

// SetUserEnabled toggles a user as a scrobble source and persists the
// selection. Returns the selected set after the toggle.
func (s *Service) SetUserEnabled(userID string, enabled bool) ([]string, bool, error) {
	snap := s.current()
	current := make([]string, 0, len(snap.Users))
	for id := range snap.Users {
		current = append(current, id)
	}
	return s.selection.setEnabled(userID, enabled, current)
}

// CompletedEvents returns all completed, timestamped events of selected
// users, ascending by watch time. This is the sync engine's input.
func (s *Service) CompletedEvents() []models.WatchEvent {
	snap := s.current()
	var out []models.WatchEvent
	for userID, events := range snap.History {
		if !s.selection.isSelected(userID) {
			continue
		}
		for _, ev := range events {
			if !ev.Completed || ev.Date <= 0 {
				continue
			}
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// RecentCompleted returns the newest completed events across selected users,
// annotated with the user they belong to.
func (s *Service) RecentCompleted(limit int) []models.RecentEvent {
	snap := s.current()
	var out []models.RecentEvent
	for userID, events := range snap.History {
		if !s.selection.isSelected(userID) {
			continue
		}
		userName := snap.Users[userID].Name
		for _, ev := range events {
			if !ev.Completed || ev.Date <= 0 {
				continue
			}
			out = append(out, models.RecentEvent{WatchEvent: ev, UserID: userID, UserName: userName})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// UserHistory returns a user's full event list, newest first. The second
// return is false for unknown users.
func (s *Service) UserHistory(userID string) ([]models.WatchEvent, bool) {
	snap := s.current()
	if _, ok := snap.Users[userID]; !ok {
		return nil, false
	}
	events := snap.History[userID]
	out := make([]models.WatchEvent, 0, len(events))
	for _, ev := range events {
		if ev.Title == "" && ev.EpisodeTitle != "" {
			ev.Title = ev.EpisodeTitle
		}
		out = append(out, ev)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out, true
}

// UserProgress returns the newest event per item for one user, split into
// movies and episodes, for the progress view.
func (s *Service) UserProgress(userID string) (movies, shows []models.WatchEvent, ok bool) {
	snap := s.current()
	if _, exists := snap.Users[userID]; !exists {
		return nil, nil, false
	}
	latest := make(map[string]models.WatchEvent)
	for _, ev := range snap.History[userID] {
		if ev.RatingKey == "" {
			continue
		}
		if prev, seen := latest[ev.RatingKey]; !seen || ev.Date > prev.Date {
			latest[ev.RatingKey] = ev
		}
	}
	for _, ev := range latest {
		switch ev.Kind {
		case models.KindMovie:
			movies = append(movies, ev)
		case models.KindEpisode:
			shows = append(shows, ev)
		}
	}
	sort.SliceStable(movies, func(i, j int) bool { return movies[i].Date > movies[j].Date })
	sort.SliceStable(shows, func(i, j int) bool { return shows[i].Date > shows[j].Date })
	return movies, shows, true
}

// CatalogItems returns the catalog with movies before shows, titles collated
// case-insensitively.
func (s *Service) CatalogItems() []models.CatalogEntry {
	snap := s.current()
	out := make([]models.CatalogEntry, 0, len(snap.Catalog))
	for _, entry := range snap.Catalog {
		out = append(out, entry)
	}
	coll := collate.New(language.Und, collate.IgnoreCase)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		if c := coll.CompareString(out[i].Title, out[j].Title); c != 0 {
			return c < 0
		}
		return out[i].GroupKey+out[i].ProviderKey < out[j].GroupKey+out[j].ProviderKey
	})
	return out
}

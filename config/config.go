package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultWatchThreshold = 0.95
	defaultRefreshMinutes = 30
	defaultHTTPTimeout    = 30 * time.Second
	defaultListenAddr     = ":8080"
	defaultStatePath      = "trakt_accounts.json"
)

// ErrMissingJellyfin is returned when the Jellyfin connection settings are
// absent. The service cannot do anything useful without them.
var ErrMissingJellyfin = errors.New("missing required env vars: JELLYFIN_URL, JELLYFIN_APIKEY")

// Config holds runtime configuration loaded from the environment.
type Config struct {
	JellyfinURL    string
	JellyfinAPIKey string

	WatchThreshold float64
	RefreshEvery   time.Duration

	TraktClientID     string
	TraktClientSecret string

	// StatePath is the legacy account JSON file. The SQLite database and the
	// user-selection state live next to it unless overridden.
	StatePath         string
	DBPath            string
	JellyfinStatePath string
	PosterCacheDir    string

	HTTPTimeout time.Duration
	ListenAddr  string

	AdminAPIKey string

	LogFile  string
	LogLevel string
}

// FromEnv builds the configuration from environment variables, applying the
// documented defaults. Missing Jellyfin settings are a hard error.
func FromEnv() (Config, error) {
	c := Config{
		JellyfinURL:       strings.TrimRight(strings.TrimSpace(os.Getenv("JELLYFIN_URL")), "/"),
		JellyfinAPIKey:    strings.TrimSpace(os.Getenv("JELLYFIN_APIKEY")),
		TraktClientID:     strings.TrimSpace(os.Getenv("TRAKT_CLIENT_ID")),
		TraktClientSecret: strings.TrimSpace(os.Getenv("TRAKT_CLIENT_SECRET")),
		StatePath:         getEnv("TRAKT_STATE_PATH", defaultStatePath),
		ListenAddr:        getEnv("LISTEN_ADDR", defaultListenAddr),
		AdminAPIKey:       strings.TrimSpace(os.Getenv("ADMIN_API_KEY")),
		LogFile:           os.Getenv("LOG_FILE"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
	}

	if c.JellyfinURL == "" || c.JellyfinAPIKey == "" {
		return Config{}, ErrMissingJellyfin
	}

	threshold, err := parseFloat("WATCH_THRESHOLD", defaultWatchThreshold)
	if err != nil {
		return Config{}, err
	}
	c.WatchThreshold = threshold

	minutes, err := parseInt("REFRESH_MINUTES", defaultRefreshMinutes)
	if err != nil {
		return Config{}, err
	}
	c.RefreshEvery = time.Duration(minutes) * time.Minute

	timeoutSecs, err := parseInt("HTTP_TIMEOUT_SECONDS", int(defaultHTTPTimeout/time.Second))
	if err != nil {
		return Config{}, err
	}
	c.HTTPTimeout = time.Duration(timeoutSecs) * time.Second

	stateDir := filepath.Dir(c.StatePath)
	c.DBPath = getEnv("TRAKT_DB_PATH", filepath.Join(stateDir, "trakt_sync.db"))
	c.JellyfinStatePath = getEnv("JELLYFIN_STATE_PATH", filepath.Join(stateDir, "jellyfin_state.json"))
	c.PosterCacheDir = getEnv("POSTER_CACHE_DIR", filepath.Join(stateDir, "posters"))

	return c, nil
}

// TraktConfigured reports whether device-flow credentials are present.
func (c Config) TraktConfigured() bool {
	return c.TraktClientID != "" && c.TraktClientSecret != ""
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func parseFloat(key string, def float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func parseInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

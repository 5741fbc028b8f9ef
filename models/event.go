package models

const (
	// EventSource marks every event produced by the Jellyfin gateway.
	EventSource = "jellyfin"

	KindMovie   = "movie"
	KindEpisode = "episode"
)

// WatchEvent is one observed (user, item) playback state from the latest
// library refresh. Field names match the JSON emitted by the history and
// recent-activity endpoints.
type WatchEvent struct {
	Source       string  `json:"source"`
	Kind         string  `json:"type"`
	RatingKey    string  `json:"ratingKey"`
	ProviderKey  string  `json:"providerKey"`
	Percent      float64 `json:"percent"`
	Completed    bool    `json:"completed"`
	Date         float64 `json:"date"`
	Title        string  `json:"title"`
	Year         int     `json:"year,omitempty"`
	SeriesName   string  `json:"seriesName"`
	SeasonName   string  `json:"seasonName"`
	EpisodeTitle string  `json:"episodeTitle"`
	EpisodeIndex int     `json:"episodeIndex,omitempty"`
	SeasonIndex  int     `json:"seasonIndex,omitempty"`
	SeriesID     string  `json:"seriesId"`
	SeasonID     string  `json:"seasonId"`
	EpisodeID    string  `json:"episodeId"`
	JellyfinID   string  `json:"jellyfinId"`
	SeriesThumb  string  `json:"seriesThumb"`
	Thumb        string  `json:"thumb"`
	GroupKey     string  `json:"groupKey"`
}

// RecentEvent annotates a WatchEvent with the user it belongs to for the
// cross-user recent-activity view.
type RecentEvent struct {
	WatchEvent
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

// CatalogEntry is one distinct movie or show seen during a refresh, keyed by
// groupKey when present, otherwise providerKey. The first event that resolves
// an entry wins; later episodes of the same series never overwrite the title
// or thumbnail captured first.
type CatalogEntry struct {
	GroupKey    string `json:"groupKey"`
	ProviderKey string `json:"providerKey"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	Year        string `json:"year"`
	Thumb       string `json:"thumb"`
}

// CatalogTypeMovie and CatalogTypeShow are the two entry types the catalog
// distinguishes. Episodes collapse into their show's entry.
const (
	CatalogTypeMovie = "movie"
	CatalogTypeShow  = "show"
)

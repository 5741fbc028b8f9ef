package library

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gioxx/trakt-multi-scrobbler/models"
	"github.com/gioxx/trakt-multi-scrobbler/services/jellyfin"
)

// providerOrder is the preference order for external ids. Exactly one key is
// ever chosen for an item.
var providerOrder = []string{"tmdb", "imdb", "tvdb"}

// ProviderKey picks one external id from a Jellyfin ProviderIds map and
// renders it as "provider:id". Returns "" when no known provider is present.
func ProviderKey(ids map[string]string) string {
	if len(ids) == 0 {
		return ""
	}
	for _, provider := range providerOrder {
		for name, value := range ids {
			if strings.EqualFold(name, provider) {
				if ident := strings.TrimSpace(value); ident != "" {
					return provider + ":" + ident
				}
			}
		}
	}
	return ""
}

// parseWatchedAt turns Jellyfin's LastPlayedDate into unix seconds. Anything
// unparseable degrades to 0, which marks the event as never forwardable.
func parseWatchedAt(value string) float64 {
	if value == "" {
		return 0
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return float64(t.UnixNano()) / float64(time.Second)
		}
	}
	return 0
}

// thumbPath builds the local poster-proxy reference for an item image. The
// Jellyfin token never appears here; the proxy adds it server-side.
func thumbPath(itemID, tag string) string {
	if itemID == "" || tag == "" {
		return ""
	}
	return "/api/image/" + url.PathEscape(itemID) + "?tag=" + url.QueryEscape(tag)
}

// normalizer turns raw Jellyfin items into watch events and catalog entries
// for one refresh pass. Series posters are resolved once and reused across
// all episodes of the same series.
type normalizer struct {
	threshold    float64
	seriesThumbs map[string]string
}

func newNormalizer(threshold float64) *normalizer {
	return &normalizer{
		threshold:    threshold,
		seriesThumbs: make(map[string]string),
	}
}

func (n *normalizer) seriesThumb(seriesID, tag string) string {
	if seriesID == "" {
		return ""
	}
	if cached, ok := n.seriesThumbs[seriesID]; ok {
		return cached
	}
	thumb := thumbPath(seriesID, tag)
	n.seriesThumbs[seriesID] = thumb
	return thumb
}

// normalize produces zero or one WatchEvent plus a candidate catalog entry.
// Items that are neither movies nor episodes, or that carry no id, yield
// ok=false and are dropped.
func (n *normalizer) normalize(it jellyfin.Item) (models.WatchEvent, models.CatalogEntry, string, bool) {
	kind := strings.ToLower(strings.TrimSpace(it.Type))
	if kind != models.KindMovie && kind != models.KindEpisode {
		return models.WatchEvent{}, models.CatalogEntry{}, "", false
	}
	itemID := strings.TrimSpace(it.ID)
	if itemID == "" {
		return models.WatchEvent{}, models.CatalogEntry{}, "", false
	}

	primaryTag := it.PrimaryImageTag
	if primaryTag == "" {
		primaryTag = it.ImageTags["Primary"]
	}

	seriesID := strings.TrimSpace(it.SeriesID)
	seasonID := strings.TrimSpace(it.ParentID)

	var thumb, seriesThumb string
	if kind == models.KindEpisode {
		if it.SeriesPrimaryImageTag != "" && seriesID != "" {
			// Prefer the show poster over episode stills.
			seriesThumb = n.seriesThumb(seriesID, it.SeriesPrimaryImageTag)
			thumb = seriesThumb
		} else if primaryTag != "" {
			thumb = thumbPath(itemID, primaryTag)
		}
	} else if primaryTag != "" {
		thumb = thumbPath(itemID, primaryTag)
	}

	percent := it.UserData.PlayedPercentage / 100
	completed := it.UserData.Played || percent >= n.threshold
	watchedAt := parseWatchedAt(it.UserData.LastPlayedDate)

	providerKey := ProviderKey(it.ProviderIDs)
	groupKey := itemID
	if kind == models.KindEpisode {
		groupKey = seriesID
	}

	catalogKey := groupKey
	if catalogKey == "" {
		catalogKey = providerKey
	}

	entryType := models.CatalogTypeMovie
	entryTitle := it.Name
	if kind == models.KindEpisode {
		entryType = models.CatalogTypeShow
		entryTitle = it.SeriesName
	}
	entryYear := ""
	if it.ProductionYear != 0 {
		entryYear = strconv.Itoa(it.ProductionYear)
	}
	entryThumb := thumb
	if entryThumb == "" {
		entryThumb = seriesThumb
	}
	entry := models.CatalogEntry{
		GroupKey:    groupKey,
		ProviderKey: providerKey,
		Type:        entryType,
		Title:       entryTitle,
		Year:        entryYear,
		Thumb:       entryThumb,
	}

	eventSeriesThumb := seriesThumb
	if eventSeriesThumb == "" {
		eventSeriesThumb = thumb
	}
	event := models.WatchEvent{
		Source:       models.EventSource,
		Kind:         kind,
		RatingKey:    itemID,
		ProviderKey:  providerKey,
		Percent:      percent,
		Completed:    completed,
		Date:         watchedAt,
		Title:        it.Name,
		Year:         it.ProductionYear,
		SeriesName:   it.SeriesName,
		SeasonName:   it.SeasonName,
		EpisodeTitle: it.Name,
		EpisodeIndex: it.IndexNumber,
		SeasonIndex:  it.ParentIndexNumber,
		SeriesID:     seriesID,
		SeasonID:     seasonID,
		EpisodeID:    itemID,
		JellyfinID:   itemID,
		SeriesThumb:  eventSeriesThumb,
		Thumb:        thumb,
		GroupKey:     groupKey,
	}

	return event, entry, catalogKey, true
}

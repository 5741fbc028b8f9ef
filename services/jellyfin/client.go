package jellyfin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

const (
	// pageSize keeps item listings well under Jellyfin's response limits.
	pageSize = 2000
	// maxItems caps pagination so a misbehaving server cannot loop us forever.
	maxItems = 200000

	itemFields = "ProviderIds,SeriesId,ParentId,UserData,PrimaryImageTag,SeriesPrimaryImageTag,ImageTags,RunTimeTicks,OfficialRating,CommunityRating,IndexNumber,ParentIndexNumber"
)

// Client is a read-only Jellyfin API client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// User is a Jellyfin user as returned by /Users.
type User struct {
	ID   string `json:"Id"`
	Name string `json:"Name"`
}

// UserData carries per-user playback state for an item.
type UserData struct {
	Played                bool    `json:"Played"`
	PlayedPercentage      float64 `json:"PlayedPercentage"`
	PlayCount             int     `json:"PlayCount"`
	PlaybackPositionTicks int64   `json:"PlaybackPositionTicks"`
	LastPlayedDate        string  `json:"LastPlayedDate"`
}

// Item is a Jellyfin library item scoped to a user.
type Item struct {
	ID                    string            `json:"Id"`
	Type                  string            `json:"Type"`
	Name                  string            `json:"Name"`
	SeriesID              string            `json:"SeriesId"`
	SeriesName            string            `json:"SeriesName"`
	SeasonName            string            `json:"SeasonName"`
	ParentID              string            `json:"ParentId"`
	IndexNumber           int               `json:"IndexNumber"`
	ParentIndexNumber     int               `json:"ParentIndexNumber"`
	ProductionYear        int               `json:"ProductionYear"`
	RunTimeTicks          int64             `json:"RunTimeTicks"`
	ProviderIDs           map[string]string `json:"ProviderIds"`
	ImageTags             map[string]string `json:"ImageTags"`
	PrimaryImageTag       string            `json:"PrimaryImageTag"`
	SeriesPrimaryImageTag string            `json:"SeriesPrimaryImageTag"`
	UserData              UserData          `json:"UserData"`
}

// itemsResponse is the envelope Jellyfin wraps item listings in.
type itemsResponse struct {
	Items            []Item `json:"Items"`
	TotalRecordCount int    `json:"TotalRecordCount"`
	StartIndex       int    `json:"StartIndex"`
}

// NewClient creates a Jellyfin client for the given server.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
	}
}

// GetUsers retrieves all users known to the server.
func (c *Client) GetUsers(ctx context.Context) ([]User, error) {
	body, err := c.get(ctx, "/Users", nil)
	if err != nil {
		return nil, err
	}
	var users []User
	if err := json.Unmarshal(body, &users); err != nil {
		return nil, fmt.Errorf("decode jellyfin users: %w", err)
	}
	return users, nil
}

// GetUserItems fetches all played movies and episodes for a user, paginating
// until the server runs out of results.
func (c *Client) GetUserItems(ctx context.Context, userID string) ([]Item, error) {
	var all []Item
	for start := 0; start < maxItems; start += pageSize {
		query := url.Values{}
		query.Set("IncludeItemTypes", "Movie,Episode")
		query.Set("Recursive", "true")
		query.Set("Limit", strconv.Itoa(pageSize))
		query.Set("StartIndex", strconv.Itoa(start))
		query.Set("SortBy", "DatePlayed")
		query.Set("Fields", itemFields)
		query.Set("EnableTotalRecordCount", "false")

		body, err := c.get(ctx, "/Users/"+url.PathEscape(userID)+"/Items", query)
		if err != nil {
			return nil, err
		}
		var page itemsResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("decode jellyfin items: %w", err)
		}
		if len(page.Items) == 0 {
			break
		}
		all = append(all, page.Items...)
		if len(page.Items) < pageSize {
			break
		}
	}
	return all, nil
}

// FetchImage downloads the primary image bytes for an item.
func (c *Client) FetchImage(ctx context.Context, itemID, tag string) ([]byte, error) {
	query := url.Values{}
	if tag != "" {
		query.Set("tag", tag)
	}
	return c.get(ctx, "/Items/"+url.PathEscape(itemID)+"/Images/Primary", query)
}

// get performs one GET against the server, retrying transport errors and 5xx
// responses a few times. Non-5xx HTTP errors fail immediately.
func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	return retry.DoWithData(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, http.NoBody)
		if err != nil {
			return nil, retry.Unrecoverable(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("X-Emby-Token", c.apiKey)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("jellyfin request failed: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read jellyfin response: %w", err)
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("jellyfin %s returned status %d: %s", path, resp.StatusCode, string(body))
		}
		if resp.StatusCode != http.StatusOK {
			return nil, retry.Unrecoverable(fmt.Errorf("jellyfin %s returned status %d: %s", path, resp.StatusCode, string(body)))
		}
		return body, nil
	},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
	)
}

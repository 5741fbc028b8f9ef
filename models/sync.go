package models

// AccountSummary is the API view of one linked Trakt account.
type AccountSummary struct {
	Username     string  `json:"username"`
	Enabled      bool    `json:"enabled"`
	ExpiresAt    float64 `json:"expires_at"`
	LastSyncedAt float64 `json:"last_synced_at"`
}

// SkippedItem identifies an event the sync engine declined to forward, kept
// as a small diagnostic sample in sync results.
type SkippedItem struct {
	Title       string `json:"title"`
	ProviderKey string `json:"providerKey"`
	GroupKey    string `json:"groupKey"`
}

// SentCounts reports how many records a history push contained.
type SentCounts struct {
	Movies   int `json:"movies"`
	Episodes int `json:"episodes"`
}

// AccountSyncResult is the per-account outcome of one sync pass.
type AccountSyncResult struct {
	OK                bool          `json:"ok"`
	Skipped           bool          `json:"skipped,omitempty"`
	Reason            string        `json:"reason,omitempty"`
	Sent              *SentCounts   `json:"sent,omitempty"`
	SkippedMissingIDs int           `json:"skipped_missing_ids"`
	SkippedDisallowed int           `json:"skipped_disallowed"`
	SamplesMissingIDs []SkippedItem `json:"samples_missing_ids"`
	SamplesDisallowed []SkippedItem `json:"samples_disallowed"`
	Payload           any           `json:"payload,omitempty"`
	Response          any           `json:"response,omitempty"`
}

// SyncReport is the outcome of one sync pass across all accounts. OK is false
// only when the downstream integration is not configured at all; individual
// account failures are reported inside Results.
type SyncReport struct {
	OK      bool                         `json:"ok"`
	Error   string                       `json:"error,omitempty"`
	Results map[string]AccountSyncResult `json:"results,omitempty"`
}

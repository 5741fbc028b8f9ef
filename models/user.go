package models

// User is a Jellyfin profile observed during a library refresh. Keyed by the
// server's opaque id; the set is rebuilt from scratch on every refresh.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UserSelection is the API view of a user together with whether their watch
// history feeds the scrobbler.
type UserSelection struct {
	UserID  string `json:"user_id"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

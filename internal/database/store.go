package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// AccountRecord is one persisted Trakt account together with its sync cursor.
type AccountRecord struct {
	Username     string
	AccessToken  string
	RefreshToken string
	ExpiresAt    float64
	Enabled      bool
	LastSynced   float64
}

// SyncStore persists Trakt accounts, sync cursors and per-item scrobble rules.
type SyncStore struct {
	db *sql.DB
}

// NewSyncStore creates a store over an open connection.
func NewSyncStore(db *sql.DB) *SyncStore {
	return &SyncStore{db: db}
}

// LoadAccounts returns every persisted account.
func (s *SyncStore) LoadAccounts(ctx context.Context) ([]AccountRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT username, access_token, refresh_token, expires_at, enabled, last_synced FROM accounts`)
	if err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}
	defer rows.Close()

	var records []AccountRecord
	for rows.Next() {
		var rec AccountRecord
		var enabled int
		if err := rows.Scan(&rec.Username, &rec.AccessToken, &rec.RefreshToken, &rec.ExpiresAt, &enabled, &rec.LastSynced); err != nil {
			return nil, fmt.Errorf("failed to scan account row: %w", err)
		}
		rec.Enabled = enabled != 0
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate account rows: %w", err)
	}
	return records, nil
}

// UpsertAccount inserts an account or, when it already exists, replaces its
// tokens and expiry. The enabled flag and sync cursor of an existing row are
// left untouched so re-linking an account keeps its configuration.
func (s *SyncStore) UpsertAccount(ctx context.Context, rec AccountRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (username, access_token, refresh_token, expires_at, enabled, last_synced)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at`,
		rec.Username, rec.AccessToken, rec.RefreshToken, rec.ExpiresAt, boolToInt(rec.Enabled), rec.LastSynced)
	if err != nil {
		return fmt.Errorf("failed to upsert account %s: %w", rec.Username, err)
	}
	return nil
}

// SetEnabled flips the sync toggle for an account.
func (s *SyncStore) SetEnabled(ctx context.Context, username string, enabled bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE accounts SET enabled = ? WHERE username = ?`,
		boolToInt(enabled), username)
	if err != nil {
		return fmt.Errorf("failed to set enabled for %s: %w", username, err)
	}
	return nil
}

// SetLastSynced stores the sync watermark for an account.
func (s *SyncStore) SetLastSynced(ctx context.Context, username string, ts float64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE accounts SET last_synced = ? WHERE username = ?`,
		ts, username)
	if err != nil {
		return fmt.Errorf("failed to set last_synced for %s: %w", username, err)
	}
	return nil
}

// RemoveAccount deletes an account and all of its item rules.
func (s *SyncStore) RemoveAccount(ctx context.Context, username string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin remove of %s: %w", username, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM account_items WHERE username = ?`, username); err != nil {
		return fmt.Errorf("failed to delete item rules for %s: %w", username, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE username = ?`, username); err != nil {
		return fmt.Errorf("failed to delete account %s: %w", username, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit remove of %s: %w", username, err)
	}
	return nil
}

// LoadItemRules returns every per-item rule grouped by account.
func (s *SyncStore) LoadItemRules(ctx context.Context) (map[string]map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT username, item_key, enabled FROM account_items`)
	if err != nil {
		return nil, fmt.Errorf("failed to load item rules: %w", err)
	}
	defer rows.Close()

	rules := make(map[string]map[string]bool)
	for rows.Next() {
		var username, key string
		var enabled int
		if err := rows.Scan(&username, &key, &enabled); err != nil {
			return nil, fmt.Errorf("failed to scan item rule row: %w", err)
		}
		userRules, ok := rules[username]
		if !ok {
			userRules = make(map[string]bool)
			rules[username] = userRules
		}
		userRules[key] = enabled != 0
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate item rule rows: %w", err)
	}
	return rules, nil
}

// SetItemRule upserts one (account, key) scrobble rule. The account row is
// created on demand so the foreign key always holds.
func (s *SyncStore) SetItemRule(ctx context.Context, username, key string, enabled bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin rule upsert for %s: %w", username, err)
	}
	defer tx.Rollback()

	if err := ensureAccountRow(ctx, tx, username); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO account_items (username, item_key, enabled)
		VALUES (?, ?, ?)
		ON CONFLICT(username, item_key) DO UPDATE SET enabled = excluded.enabled`,
		username, key, boolToInt(enabled)); err != nil {
		return fmt.Errorf("failed to upsert rule %s/%s: %w", username, key, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rule upsert for %s: %w", username, err)
	}
	return nil
}

// RemoveItemRule deletes one (account, key) rule.
func (s *SyncStore) RemoveItemRule(ctx context.Context, username, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM account_items WHERE username = ? AND item_key = ?`,
		username, key)
	if err != nil {
		return fmt.Errorf("failed to remove rule %s/%s: %w", username, key, err)
	}
	return nil
}

// PruneRules deletes rules whose key is not in validKeys. An empty set is a
// no-op so a failed catalog build can never wipe the rule table.
func (s *SyncStore) PruneRules(ctx context.Context, validKeys []string) error {
	if len(validKeys) == 0 {
		return nil
	}
	placeholders := strings.Repeat("?,", len(validKeys))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(validKeys))
	for i, k := range validKeys {
		args[i] = k
	}
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM account_items WHERE item_key NOT IN (%s)`, placeholders), args...)
	if err != nil {
		return fmt.Errorf("failed to prune rules: %w", err)
	}
	return nil
}

// ImportItemRules bulk-loads rules, used once when migrating legacy JSON state.
func (s *SyncStore) ImportItemRules(ctx context.Context, items map[string]map[string]bool) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin rule import: %w", err)
	}
	defer tx.Rollback()

	for username, rules := range items {
		if err := ensureAccountRow(ctx, tx, username); err != nil {
			return err
		}
		for key, enabled := range rules {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO account_items (username, item_key, enabled)
				VALUES (?, ?, ?)
				ON CONFLICT(username, item_key) DO UPDATE SET enabled = excluded.enabled`,
				username, key, boolToInt(enabled)); err != nil {
				return fmt.Errorf("failed to import rule %s/%s: %w", username, key, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rule import: %w", err)
	}
	return nil
}

func ensureAccountRow(ctx context.Context, tx *sql.Tx, username string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (username) VALUES (?)
		ON CONFLICT(username) DO NOTHING`, username)
	if err != nil {
		return fmt.Errorf("failed to ensure account row for %s: %w", username, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sethvargo/go-password/password"
	"github.com/spf13/afero"
)

// GenerateAPIKey returns a random alphanumeric admin key. Symbols are left
// out so the key survives copy-paste into headers and env files.
func GenerateAPIKey() (string, error) {
	key, err := password.Generate(48, 12, 0, false, true)
	if err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return key, nil
}

// LoadOrCreateAPIKey returns the admin key persisted at path, generating and
// persisting a fresh one when the file does not exist yet. The second return
// reports whether a new key was minted on this call.
func LoadOrCreateAPIKey(fs afero.Fs, path string) (string, bool, error) {
	raw, err := afero.ReadFile(fs, path)
	if err == nil {
		if key := strings.TrimSpace(string(raw)); key != "" {
			return key, false, nil
		}
	} else if !os.IsNotExist(err) {
		return "", false, fmt.Errorf("read api key %s: %w", path, err)
	}

	key, err := GenerateAPIKey()
	if err != nil {
		return "", false, err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return "", false, fmt.Errorf("create api key dir %s: %w", dir, err)
		}
	}
	if err := afero.WriteFile(fs, path, []byte(key+"\n"), 0o600); err != nil {
		return "", false, fmt.Errorf("persist api key %s: %w", path, err)
	}
	return key, true, nil
}

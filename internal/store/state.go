package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ActiveCountryState is the persisted "active" pointer of the country registry.
type ActiveCountryState struct {
	Active string `json:"active"`
}

// LoadJSON reads path into v. A missing file leaves v untouched and returns
// os.ErrNotExist so callers can fall back to defaults.
func LoadJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// SaveJSON writes v to path atomically (temp file + rename).
func SaveJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", " ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoadActiveCountry returns the persisted active country, or "" when none.
func LoadActiveCountry(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	var s ActiveCountryState
	if err := LoadJSON(path, &s); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return s.Active, nil
}

// SaveActiveCountry persists id as the active country.
func SaveActiveCountry(path, id string) error {
	if path == "" {
		return nil
	}
	return SaveJSON(path, ActiveCountryState{Active: id})
}

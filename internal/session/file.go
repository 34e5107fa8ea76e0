package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a saved session. A missing file is not an error and
// returns nil.
func LoadFile(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var s Session
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse session file %s: %w", path, err)
	}
	if s.AccessToken == "" {
		return nil, nil
	}
	return &s, nil
}

// SaveFile writes the session readable by the owner only.
func SaveFile(path string, s *Session) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

func RemoveFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}

// Persist keeps the session file in step with the provider's session.
func Persist(p Provider, path string) (unsubscribe func()) {
	return p.OnSessionChange(func(ev Event, s *Session) {
		var err error
		switch {
		case ev == SignedOut:
			err = RemoveFile(path)
		case s != nil:
			err = SaveFile(path, s)
		}
		if err != nil {
			logger.WithError(err).WithField("event", ev).Warn("Failed to persist session")
		}
	})
}

package store

import (
	"fmt"
	"os"
	"path"

	"github.com/labstack/gommon/log"

	"br.com.tavares.disparo/internal/transport"
)

type Config interface {
	SessionDirectory() string
	DataDirectory() string
}

// SessionStore is the directory of credential files backing the session.
// The transport reads the whole directory at connect time and rotates
// individual files as the network reissues keys.
type SessionStore struct {
	dir string
}

func NewSessionStore(config Config) (*SessionStore, error) {
	dir := config.SessionDirectory()
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating session directory: %w", err)
	}
	return &SessionStore{dir: dir}, nil
}

func (s *SessionStore) Load() (transport.Credentials, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading session directory: %w", err)
	}

	creds := transport.Credentials{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(path.Join(s.dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading credential file %s: %w", entry.Name(), err)
		}
		creds[entry.Name()] = data
	}
	return creds, nil
}

func (s *SessionStore) Save(name string, data []byte) error {
	if err := os.WriteFile(path.Join(s.dir, name), data, 0o600); err != nil {
		return fmt.Errorf("writing credential file %s: %w", name, err)
	}
	return nil
}

// Wipe deletes every credential file, one by one. A file that cannot be
// removed is logged and skipped; the remaining files are still deleted.
// Returns the number of files removed.
func (s *SessionStore) Wipe() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("reading session directory: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		name := path.Join(s.dir, entry.Name())
		if err := os.Remove(name); err != nil {
			log.Errorf("removing session file %s: %v", entry.Name(), err)
			continue
		}
		removed++
	}
	log.Infof("removed %d session files", removed)
	return removed, nil
}

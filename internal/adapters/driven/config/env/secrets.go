// Package env provides the secret store: API keys come from the process
// environment, optionally seeded from a dotenv file.
package env

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
)

// Ensure SecretStore implements the interface.
var _ driven.SecretStore = (*SecretStore)(nil)

// SecretStore reads secrets from environment variables and persists them to
// a dotenv file. Variables already set in the environment win over the file.
type SecretStore struct {
	mu   sync.Mutex
	path string
}

// NewSecretStore loads path into the environment and returns a store writing
// back to it. An empty path means ~/.ragchat/.env. A missing file is fine.
func NewSecretStore(path string) (*SecretStore, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		path = filepath.Join(home, ".ragchat", ".env")
	}

	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return &SecretStore{path: path}, nil
}

// LoadWorkingDir loads ./.env if present, the way local development setups
// expect. It never overrides variables that are already set.
func LoadWorkingDir() {
	_ = godotenv.Load()
}

// Lookup returns a non-empty environment variable.
func (s *SecretStore) Lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(name)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

// Save merges values into the dotenv file and the current environment.
// Empty values remove the variable from the file.
func (s *SecretStore) Save(values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := godotenv.Read(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("read %s: %w", s.path, err)
	}
	if existing == nil {
		existing = make(map[string]string)
	}

	for name, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			delete(existing, name)
			_ = os.Unsetenv(name)
			continue
		}
		existing[name] = value
		if err := os.Setenv(name, value); err != nil {
			return fmt.Errorf("set %s: %w", name, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create secrets directory: %w", err)
	}
	if err := godotenv.Write(existing, s.path); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	return os.Chmod(s.path, 0600)
}

// Path returns the dotenv file path.
func (s *SecretStore) Path() string {
	return s.path
}

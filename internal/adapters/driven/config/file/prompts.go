package file

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
)

// Ensure PromptStore implements the interface.
var _ driven.PromptStore = (*PromptStore)(nil)

// PromptStore loads prompt templates from user-editable files.
// Missing or unreadable files fall back to the built-in templates, and the
// directory is only populated on the first Load.
type PromptStore struct {
	mu        sync.RWMutex
	promptDir string
	defaults  map[string]string
	cache     map[string]string
	initOnce  sync.Once
	initErr   error
}

// NewPromptStore creates a prompt store over promptDir, seeded with defaults.
// An empty promptDir means ~/.ragchat/prompts.
func NewPromptStore(promptDir string, defaults map[string]string) (*PromptStore, error) {
	if promptDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		promptDir = filepath.Join(home, ".ragchat", "prompts")
	}
	return &PromptStore{
		promptDir: promptDir,
		defaults:  defaults,
		cache:     make(map[string]string),
	}, nil
}

// Load returns the template for name.
func (s *PromptStore) Load(name string) (string, error) {
	s.initOnce.Do(s.initialise)

	s.mu.RLock()
	prompt, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		return prompt, nil
	}

	prompt, err := s.loadFromFile(name)
	if err != nil || s.initErr != nil {
		if fallback, ok := s.defaults[name]; ok {
			return fallback, nil
		}
		if err == nil {
			err = s.initErr
		}
		return "", fmt.Errorf("load prompt %q: %w", name, err)
	}

	s.mu.Lock()
	if cached, ok := s.cache[name]; ok {
		prompt = cached
	} else {
		s.cache[name] = prompt
	}
	s.mu.Unlock()
	return prompt, nil
}

// Reload forgets cached templates so edits are picked up.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

// Dir returns the prompt directory.
func (s *PromptStore) Dir() string {
	return s.promptDir
}

// initialise writes each default template that has no file yet.
func (s *PromptStore) initialise() {
	if err := os.MkdirAll(s.promptDir, 0700); err != nil {
		s.initErr = fmt.Errorf("create prompt directory: %w", err)
		return
	}
	for name, content := range s.defaults {
		path := s.path(name)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := os.WriteFile(path, []byte(content), 0600); err != nil {
				s.initErr = fmt.Errorf("write default prompt %q: %w", name, err)
				return
			}
		}
	}
}

func (s *PromptStore) loadFromFile(name string) (string, error) {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *PromptStore) path(name string) string {
	return filepath.Join(s.promptDir, name+".txt")
}

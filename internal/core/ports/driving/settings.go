package driving

import "github.com/custodia-labs/ragchat/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get returns the effective settings: defaults, then file, then environment.
	Get() (*domain.Settings, error)

	// Set updates one setting by its dotted key and persists it.
	Set(key, value string) error

	// SaveSecrets persists API keys outside the config file.
	SaveSecrets(values map[string]string) error

	// SecretNames returns the environment variables SaveSecrets accepts.
	SecretNames() []string

	// Keys returns every settable key, sorted.
	Keys() []string

	// ConfigPath returns the config file location.
	ConfigPath() string
}

package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragchat/internal/core/ports/driving"
)

// Need says which services a command requires.
type Need int

const (
	// NeedSettings only reads and writes configuration.
	NeedSettings Need = iota
	// NeedIndex adds embedding and the vector index.
	NeedIndex
	// NeedChat adds the language model.
	NeedChat
)

// LoadOptions are passed to the Loader once flags are parsed.
type LoadOptions struct {
	ConfigDir string
	EnvFile   string
	Need      Need

	// ChunkSize overrides the configured chunk size when positive.
	ChunkSize int

	// Overlap overrides the configured overlap when set.
	Overlap *int
}

// CheckResult is the outcome of probing one backend.
type CheckResult struct {
	Component string
	Name      string
	Err       error
}

// Runtime holds the services commands run against. Fields beyond Settings
// are set according to LoadOptions.Need.
type Runtime struct {
	Settings driving.SettingsService
	Ingest   driving.IngestService
	Index    driving.IndexService
	Chat     driving.ChatService

	// Supports reports whether a file has a registered loader.
	Supports func(path string) bool

	// Check pings the configured backends. Optional.
	Check func(ctx context.Context) []CheckResult

	// Warnings are non-fatal setup notes, such as a missing PDF tool.
	Warnings []string

	// Close releases backend resources. Optional.
	Close func()
}

// Loader builds a Runtime.
type Loader func(ctx context.Context, opts LoadOptions) (*Runtime, error)

var (
	loader  Loader
	current *Runtime
	loaded  Need = -1
)

// SetLoader installs the function that builds services.
func SetLoader(l Loader) {
	loader = l
	closeRuntime()
}

// load returns a runtime satisfying need, building it on first use.
// Overrides always force a rebuild.
func load(cmd *cobra.Command, need Need, overrides ...func(*LoadOptions)) (*Runtime, error) {
	if current != nil && loaded >= need && len(overrides) == 0 {
		return current, nil
	}
	if loader == nil {
		return nil, errors.New("services not configured")
	}

	opts := LoadOptions{ConfigDir: configDir, EnvFile: envFile, Need: need}
	for _, o := range overrides {
		o(&opts)
	}

	rt, err := loader(cmd.Context(), opts)
	if err != nil {
		return nil, err
	}
	closeRuntime()
	current, loaded = rt, need

	for _, w := range rt.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", w)
	}
	return rt, nil
}

func closeRuntime() {
	if current != nil && current.Close != nil {
		current.Close()
	}
	current, loaded = nil, -1
}

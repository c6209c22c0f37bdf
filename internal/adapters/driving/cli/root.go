// Package cli provides the ragchat command line interface built on cobra.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

// Global flags.
var (
	configDir string
	envFile   string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "ragchat",
	Short: "Chat with your documents",
	Long: `ragchat ingests PDF, text, CSV and Markdown files into a vector index
and answers questions about them with a language model.

Configuration lives in ~/.ragchat/config.toml; API keys are read from the
environment or from ~/.ragchat/.env.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if verbose {
			logger.SetVerbose(true)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default ~/.ragchat)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "file with API keys (default <config-dir>/.env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command. Errors are printed once to stderr with a
// hint for common failures.
func Execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		printError(rootCmd.ErrOrStderr(), err)
	}
	closeRuntime()
	return err
}

func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)
	if hint := errorHint(err); hint != "" {
		fmt.Fprintln(w, hint)
	}
}

// errorHint returns guidance for errors a user can fix.
func errorHint(err error) string {
	var cfgErr *domain.ConfigurationError
	switch {
	case errors.Is(err, domain.ErrAuthInvalid):
		return "Invalid API key. Run 'ragchat settings keys' to update it."
	case errors.Is(err, domain.ErrIndexNotFound):
		return "Index not found. Run 'ragchat index init' to create it."
	case errors.Is(err, domain.ErrDimensionMismatch):
		return "The index was created with another embedding model. Use a new vector.index or the original model."
	case errors.Is(err, domain.ErrLLMUnavailable):
		return "No language model configured. Set llm.provider with 'ragchat settings set'."
	case errors.As(err, &cfgErr):
		return fmt.Sprintf("Fix it with 'ragchat settings set %s <value>' or 'ragchat settings keys'.", cfgErr.Field)
	}
	return ""
}

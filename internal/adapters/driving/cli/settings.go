package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

var settingsCheck bool

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and change the configuration in config.toml and store API keys.

Settings resolve from built-in defaults, then the config file, then the
environment. API keys are only read from the environment or the .env file.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change a setting",
	Long: `Changes one setting and saves it to config.toml.
Run 'ragchat settings list' to see every key.`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

var settingsKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Store API keys",
	Long: `Prompts for API keys and stores them in the .env file next to the
configuration. Leave a prompt empty to keep the current value.`,
	Args: cobra.NoArgs,
	RunE: runSettingsKeys,
}

var settingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every setting key",
	Args:  cobra.NoArgs,
	RunE:  runSettingsList,
}

func init() {
	settingsCmd.PersistentFlags().BoolVar(&settingsCheck, "check", false, "ping the configured providers and index")
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsKeysCmd)
	settingsCmd.AddCommand(settingsListCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	rt, err := load(cmd, NeedSettings)
	if err != nil {
		return err
	}

	settings, err := rt.Settings.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Printf("Config file: %s\n", rt.Settings.ConfigPath())
	cmd.Println()

	cmd.Println("[Embedding]")
	cmd.Printf("  Provider: %s\n", settings.Embedding.Provider.Description())
	cmd.Printf("  Model: %s\n", settings.Embedding.Model)
	cmd.Printf("  Dimensions: %d\n", settings.Embedding.Dimensions)
	if settings.Embedding.BaseURL != "" {
		cmd.Printf("  Base URL: %s\n", settings.Embedding.BaseURL)
	}
	if settings.Embedding.Provider.RequiresAPIKey() {
		cmd.Printf("  API Key: %s\n", maskAPIKey(settings.Embedding.APIKey))
	}
	cmd.Println()

	cmd.Println("[LLM]")
	cmd.Printf("  Provider: %s\n", settings.LLM.Provider.Description())
	cmd.Printf("  Model: %s\n", settings.LLM.Model)
	cmd.Printf("  Temperature: %.2f\n", settings.LLM.Temperature)
	if settings.LLM.BaseURL != "" {
		cmd.Printf("  Base URL: %s\n", settings.LLM.BaseURL)
	}
	if settings.LLM.Provider.RequiresAPIKey() {
		cmd.Printf("  API Key: %s\n", maskAPIKey(settings.LLM.APIKey))
	}
	cmd.Println()

	cmd.Println("[Vector Index]")
	cmd.Printf("  Backend: %s\n", settings.Vector.Backend.Description())
	cmd.Printf("  Index: %s\n", settings.Vector.Index)
	cmd.Printf("  Metric: %s\n", settings.Vector.Metric)
	switch settings.Vector.Backend {
	case domain.VectorBackendQdrant:
		cmd.Printf("  URL: %s\n", settings.Vector.URL)
	case domain.VectorBackendPinecone:
		cmd.Printf("  Cloud: %s/%s\n", settings.Vector.Cloud, settings.Vector.Region)
		cmd.Printf("  API Key: %s\n", maskAPIKey(settings.Vector.APIKey))
	case domain.VectorBackendSQLite:
		if settings.Vector.DataDir != "" {
			cmd.Printf("  Data dir: %s\n", settings.Vector.DataDir)
		}
	}
	cmd.Println()

	cmd.Println("[Retrieval]")
	cmd.Printf("  Chunk size: %d, overlap: %d\n", settings.Chunking.Size, settings.Chunking.Overlap)
	cmd.Printf("  k: %d, namespace: %s\n", settings.Retrieval.K, settings.Retrieval.Namespace)
	cmd.Printf("  History: %d turns, condense follow-ups: %t\n",
		settings.Chat.MaxHistoryTurns, settings.Chat.CondenseQuestion)
	cmd.Println()

	if err := settings.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
		if hint := errorHint(err); hint != "" {
			cmd.Println(hint)
		}
		return nil
	}
	cmd.Println("Configuration is valid.")

	if settingsCheck {
		return runSettingsCheck(cmd)
	}
	return nil
}

func runSettingsCheck(cmd *cobra.Command) error {
	rt, err := load(cmd, NeedChat)
	if err != nil {
		return err
	}
	if rt.Check == nil {
		return nil
	}

	cmd.Println()
	cmd.Println("Checking connectivity...")
	failed := 0
	for _, r := range rt.Check(cmd.Context()) {
		if r.Err != nil {
			failed++
			cmd.Printf("  %-10s %-28s FAILED: %v\n", r.Component, r.Name, r.Err)
			continue
		}
		cmd.Printf("  %-10s %-28s OK\n", r.Component, r.Name)
	}
	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	rt, err := load(cmd, NeedSettings)
	if err != nil {
		return err
	}

	if err := rt.Settings.Set(args[0], args[1]); err != nil {
		return err
	}
	cmd.Printf("Set %s = %s\n", args[0], args[1])
	return nil
}

func runSettingsList(cmd *cobra.Command, _ []string) error {
	rt, err := load(cmd, NeedSettings)
	if err != nil {
		return err
	}
	for _, key := range rt.Settings.Keys() {
		cmd.Println(key)
	}
	return nil
}

func runSettingsKeys(cmd *cobra.Command, _ []string) error {
	rt, err := load(cmd, NeedSettings)
	if err != nil {
		return err
	}

	reader := bufio.NewReader(cmd.InOrStdin())
	values := make(map[string]string)
	for _, name := range rt.Settings.SecretNames() {
		cmd.Printf("%s: ", name)
		value := readSecret(cmd.InOrStdin(), reader)
		cmd.Println()
		if value != "" {
			values[name] = value
		}
	}

	if len(values) == 0 {
		return errors.New("no keys entered")
	}
	if err := rt.Settings.SaveSecrets(values); err != nil {
		return err
	}
	cmd.Printf("Saved %d key(s).\n", len(values))
	return nil
}

// Helper functions.

// readSecret reads a line without echo when in is a terminal.
//
//nolint:errcheck // CLI helper, error ignored for UX
func readSecret(in io.Reader, reader *bufio.Reader) string {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return strings.TrimSpace(string(secret))
		}
	}
	return readLine(reader)
}

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func maskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

var (
	queryNamespace string
	queryK         int
	queryJSON      bool
)

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Find the passages most similar to a text",
	Long: `Embeds the text and returns the nearest chunks of a namespace, ranked by
similarity. No language model is involved.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVarP(&queryNamespace, "namespace", "n", "", "namespace to search (default: retrieval.namespace)")
	queryCmd.Flags().IntVarP(&queryK, "k", "k", 0, "number of passages (default: retrieval.k)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output matches as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	rt, err := load(cmd, NeedIndex)
	if err != nil {
		return err
	}
	if rt.Index == nil {
		return fmt.Errorf("index: %w", domain.ErrConfiguration)
	}

	text := strings.Join(args, " ")
	matches, err := rt.Index.Query(cmd.Context(), text, queryK, queryNamespace)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		return outputMatchesJSON(cmd, matches)
	}
	outputMatches(cmd, matches)
	return nil
}

type matchJSON struct {
	ID            string  `json:"id"`
	Score         float64 `json:"score"`
	SourceID      string  `json:"source_id"`
	SequenceIndex int     `json:"sequence_index"`
	Namespace     string  `json:"namespace"`
	Format        string  `json:"format"`
	Text          string  `json:"text"`
}

func outputMatchesJSON(cmd *cobra.Command, matches []domain.Match) error {
	out := make([]matchJSON, len(matches))
	for i := range matches {
		out[i] = matchJSON{
			ID:            matches[i].ID,
			Score:         matches[i].Score,
			SourceID:      matches[i].Metadata.SourceID,
			SequenceIndex: matches[i].Metadata.SequenceIndex,
			Namespace:     matches[i].Metadata.Namespace,
			Format:        string(matches[i].Metadata.Format),
			Text:          matches[i].Text,
		}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal matches: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputMatches(cmd *cobra.Command, matches []domain.Match) {
	if len(matches) == 0 {
		cmd.Println("No matches found.")
		return
	}

	cmd.Println("Matches:")
	cmd.Println()
	for i := range matches {
		// Format: [N] source #chunk (score)
		cmd.Printf("  [%d] %s #%d (%.3f)\n", i+1,
			matches[i].Metadata.SourceID, matches[i].Metadata.SequenceIndex, matches[i].Score)
		cmd.Printf("      %s\n", snippet(matches[i].Text, 200))
		cmd.Println()
	}
}

// snippet collapses whitespace and truncates text to at most n runes.
func snippet(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}

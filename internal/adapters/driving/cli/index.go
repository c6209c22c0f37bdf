package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

var indexJSON bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the vector index",
	Long: `Create and inspect the vector index. The index is created automatically
on first ingest; 'index init' does it up front and checks that an existing
index matches the configured embedding dimension.`,
}

var indexInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the index or verify the existing one",
	Args:  cobra.NoArgs,
	RunE:  runIndexInit,
}

var indexDescribeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Show the name, dimension and metric of the index",
	Args:  cobra.NoArgs,
	RunE:  runIndexDescribe,
}

var indexNamespacesCmd = &cobra.Command{
	Use:   "namespaces",
	Short: "List namespaces and their record counts",
	Args:  cobra.NoArgs,
	RunE:  runIndexNamespaces,
}

func init() {
	indexCmd.PersistentFlags().BoolVar(&indexJSON, "json", false, "output as JSON")
	indexCmd.AddCommand(indexInitCmd)
	indexCmd.AddCommand(indexDescribeCmd)
	indexCmd.AddCommand(indexNamespacesCmd)
	rootCmd.AddCommand(indexCmd)
}

func runIndexInit(cmd *cobra.Command, _ []string) error {
	rt, err := loadIndex(cmd)
	if err != nil {
		return err
	}
	if err := rt.Index.Initialize(cmd.Context()); err != nil {
		return err
	}
	desc, err := rt.Index.Describe(cmd.Context())
	if err != nil {
		return fmt.Errorf("describe index: %w", err)
	}
	cmd.Printf("Index %q is ready (%d dimensions, %s).\n", desc.Name, desc.Dimension, desc.Metric)
	return nil
}

func runIndexDescribe(cmd *cobra.Command, _ []string) error {
	rt, err := loadIndex(cmd)
	if err != nil {
		return err
	}
	desc, err := rt.Index.Describe(cmd.Context())
	if err != nil {
		return fmt.Errorf("describe index: %w", err)
	}

	if indexJSON {
		return printJSON(cmd, map[string]any{
			"name":      desc.Name,
			"dimension": desc.Dimension,
			"metric":    desc.Metric,
		})
	}
	cmd.Printf("Name:      %s\n", desc.Name)
	cmd.Printf("Dimension: %d\n", desc.Dimension)
	cmd.Printf("Metric:    %s\n", desc.Metric)
	return nil
}

func runIndexNamespaces(cmd *cobra.Command, _ []string) error {
	rt, err := loadIndex(cmd)
	if err != nil {
		return err
	}
	stats, err := rt.Index.Namespaces(cmd.Context())
	if err != nil {
		return fmt.Errorf("list namespaces: %w", err)
	}

	if indexJSON {
		out := make(map[string]int, len(stats))
		for _, ns := range stats {
			out[ns.Name] = ns.RecordCount
		}
		return printJSON(cmd, out)
	}
	if len(stats) == 0 {
		cmd.Println("No namespaces yet. Run 'ragchat ingest' to add documents.")
		return nil
	}
	for _, ns := range stats {
		cmd.Printf("  %-24s %d records\n", ns.Name, ns.RecordCount)
	}
	return nil
}

func loadIndex(cmd *cobra.Command) (*Runtime, error) {
	rt, err := load(cmd, NeedIndex)
	if err != nil {
		return nil, err
	}
	if rt.Index == nil {
		return nil, fmt.Errorf("index: %w", domain.ErrConfiguration)
	}
	return rt, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragchat/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server so AI assistants can query the
index and chat over it.

Tools: query, chat, reset, ingest, namespaces. Chat sessions are kept by
the server for as long as it runs, keyed by session_id.

By default the server communicates over stdio. Use --port to serve
streamable HTTP instead.

Examples:
  # Stdio mode (default)
  ragchat mcp serve

  # HTTP mode (MCP Inspector, remote clients)
  ragchat mcp serve --port 8080

Client configuration:
  {
    "mcpServers": {
      "ragchat": {
        "command": "/path/to/ragchat",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}

	// Chat is optional: without an LLM the server still answers queries.
	rt, err := load(cmd, NeedChat)
	if err != nil {
		rt, err = load(cmd, NeedIndex)
		if err != nil {
			return err
		}
		cmd.PrintErrln("Warning: chat tools disabled, no language model configured.")
	}

	server, err := mcp.NewServer(&mcp.Ports{
		Index:  rt.Index,
		Chat:   rt.Chat,
		Ingest: rt.Ingest,
	})
	if err != nil {
		return err
	}

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.ErrOrStderr(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	}

	return server.Run(cmd.Context())
}

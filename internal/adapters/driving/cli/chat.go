package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/ragchat/internal/adapters/driving/tui"
	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driving"
	"github.com/custodia-labs/ragchat/internal/logger"
)

var (
	chatNamespace string
	chatPlain     bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with your documents",
	Long: `Starts a conversation answered from the indexed documents. Each answer
lists the passages it was generated from.

A full-screen interface is used when the terminal supports it; --plain
uses a simple prompt instead.

Commands:
  /ns <name>  switch namespace (history is kept)
  /ns         show the namespaces of the index
  /reset      clear the conversation history
  /quit       exit

In the full-screen interface ctrl+r resets and esc or ctrl+c quits.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatNamespace, "namespace", "n", "", "namespace to retrieve from (default: retrieval.namespace)")
	chatCmd.Flags().BoolVar(&chatPlain, "plain", false, "use a line-based prompt instead of the full-screen interface")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	rt, err := load(cmd, NeedChat)
	if err != nil {
		return err
	}
	if rt.Chat == nil {
		return fmt.Errorf("chat: %w", domain.ErrLLMUnavailable)
	}

	if chatPlain || !isTerminal(cmd.OutOrStdout()) {
		return runPlainChat(cmd, rt.Chat, rt.Index)
	}

	app, err := tui.NewApp(&tui.Ports{Chat: rt.Chat, Index: rt.Index}, chatNamespace)
	if err != nil {
		return fmt.Errorf("failed to create TUI: %w", err)
	}
	app.WithContext(cmd.Context())

	// Log lines would tear the full-screen view.
	logger.SetOutput(io.Discard)
	defer logger.SetOutput(os.Stderr)

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// runPlainChat is a line-based conversation loop over the command's input.
func runPlainChat(cmd *cobra.Command, chat driving.ChatService, index driving.IndexService) error {
	ctx := cmd.Context()
	session := chat.NewSession(chatNamespace)
	scanner := bufio.NewScanner(cmd.InOrStdin())
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	cmd.Printf("Chatting in namespace %q. Type /quit to exit.\n", session.Namespace())
	for {
		cmd.Print("> ")
		if !scanner.Scan() {
			cmd.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			continue
		case line == "/quit" || line == "/exit":
			return nil
		case line == "/reset":
			chat.Reset(session)
			cmd.Println("History cleared.")
			continue
		case line == "/ns":
			listNamespaces(cmd, index, session.Namespace())
			continue
		case strings.HasPrefix(line, "/ns "):
			session.SetNamespace(strings.TrimSpace(strings.TrimPrefix(line, "/ns ")))
			cmd.Printf("Switched to namespace %q. History is kept; /reset clears it.\n", session.Namespace())
			continue
		}

		result := chat.Chat(ctx, session, line)
		cmd.Println(result.Answer)
		if !result.OK() {
			cmd.PrintErrf("(%v)\n", result.Err)
			if hint := errorHint(result.Err); hint != "" {
				cmd.PrintErrln(hint)
			}
		}
		for _, m := range result.Sources {
			cmd.Printf("  - %s #%d (%.3f)\n", m.Metadata.SourceID, m.Metadata.SequenceIndex, m.Score)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func listNamespaces(cmd *cobra.Command, index driving.IndexService, current string) {
	cmd.Printf("Current namespace: %s\n", current)
	if index == nil {
		return
	}
	stats, err := index.Namespaces(cmd.Context())
	if err != nil {
		cmd.PrintErrf("Could not list namespaces: %v\n", err)
		return
	}
	for _, ns := range stats {
		cmd.Printf("  %s (%d records)\n", ns.Name, ns.RecordCount)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

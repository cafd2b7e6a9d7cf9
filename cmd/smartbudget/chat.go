package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"smartbudget/internal/config"
)

func newChatCmd() *cobra.Command {
	var (
		sessionID string
		offline   bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := newLogger(cfg, cmd.ErrOrStderr())

			a, err := wireApp(cmd.Context(), cfg, logger, wireOptions{offline: offline})
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Chatting with %s. Type \"exit\" to quit.\n", cfg.AssistantName)

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, "You: ")
				if !scanner.Scan() {
					break
				}
				text := strings.TrimSpace(scanner.Text())
				if text == "" {
					continue
				}
				if strings.EqualFold(text, "exit") || strings.EqualFold(text, "quit") {
					break
				}
				reply := a.engine.Process(cmd.Context(), sessionID, text)
				fmt.Fprintf(out, "%s: %s\n", cfg.AssistantName, reply)
			}
			fmt.Fprintln(out)
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "local", "session id to chat in")
	cmd.Flags().BoolVar(&offline, "offline", false, "use local replies only, even when Gemini keys are configured")
	return cmd
}

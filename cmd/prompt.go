// File: cmd/prompt.go
package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/chatpilot/internal/observability"
)

// newPromptCmd creates the `prompt` command: one prompt in, one response out.
func newPromptCmd() *cobra.Command {
	promptCmd := &cobra.Command{
		Use:   "prompt [text]",
		Short: "Submits a single prompt and prints the response",
		Long: `Submits one prompt to the chat application and prints the extracted
response to stdout. The prompt text is taken from the argument, or from
stdin when no argument is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			text, err := promptText(cmd, args)
			if err != nil {
				return err
			}
			if strings.TrimSpace(text) == "" {
				return fmt.Errorf("prompt text is empty")
			}

			auto, err := newAutomator(cmd)
			if err != nil {
				return err
			}
			defer func() {
				if err := auto.Close(); err != nil {
					logger.Warn("Error while closing browser session", zap.Error(err))
				}
			}()

			if err := auto.Init(ctx); err != nil {
				return err
			}
			response, err := auto.ProcessPrompt(ctx, text)
			if err != nil {
				return err
			}

			// The response is the command's product; it goes to stdout
			// while all logging stays on stderr.
			fmt.Fprintln(cmd.OutOrStdout(), response)
			return nil
		},
	}
	return promptCmd
}

func promptText(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt from stdin: %w", err)
	}
	return string(data), nil
}

func init() {
	rootCmd.AddCommand(newPromptCmd())
}

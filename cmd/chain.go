// File: cmd/chain.go
package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/chatpilot/internal/automator"
	"github.com/xkilldash9x/chatpilot/internal/observability"
)

// newChainCmd creates the `chain` command: a sequence of prompt templates,
// each rendered against the previous response.
func newChainCmd() *cobra.Command {
	var file string

	chainCmd := &cobra.Command{
		Use:   "chain [template...]",
		Short: "Runs a sequence of templated prompts and prints the final response",
		Long: `Runs a chain of prompt templates in order. Each template may reference
the previous step's response through a placeholder: every "{{previous}}" is
substituted, otherwise the first "{}" token, otherwise the first "{{}}".

Templates come from the arguments, or one per line from a file given with
--file (blank lines and lines starting with '#' are skipped).`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			templates := args
			if file != "" {
				loaded, err := loadChainFile(file)
				if err != nil {
					return err
				}
				templates = append(loaded, templates...)
			}
			if len(templates) == 0 {
				return fmt.Errorf("no chain templates given: pass them as arguments or with --file")
			}

			prompts := make([]automator.Prompt, 0, len(templates))
			for _, t := range templates {
				prompts = append(prompts, automator.Text(t))
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
			responses, err := auto.ProcessChain(ctx, prompts)
			if err != nil {
				return err
			}

			if all, _ := cmd.Flags().GetBool("all"); all {
				for _, response := range responses {
					fmt.Fprintln(cmd.OutOrStdout(), response)
				}
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), responses[len(responses)-1])
			return nil
		},
	}

	chainCmd.Flags().StringVarP(&file, "file", "f", "", "file with one prompt template per line")
	chainCmd.Flags().Bool("all", false, "print every step's response, one per line, instead of only the final one")
	return chainCmd
}

func loadChainFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open chain file: %w", err)
	}
	defer f.Close()

	var templates []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		templates = append(templates, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read chain file: %w", err)
	}
	return templates, nil
}

func init() {
	rootCmd.AddCommand(newChainCmd())
}

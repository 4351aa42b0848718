package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var askJSON bool

// askCmd runs one exchange and prints the result
var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question",
	Long: `Runs one supervised exchange and prints the answer.

Example:
  iris ask "Is a butterfly bandage first aid?"
  iris ask --offline --json "What is Form 300A?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "Print the full response as JSON")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(timeout)
	defer cancel()

	stack, err := bootStack(ctx, cfg)
	if err != nil {
		return err
	}
	defer stack.Close()

	question := strings.Join(args, " ")
	logger.Debug("asking", zap.String("question", question))
	resp := stack.Harness.Execute(ctx, question, nil)

	out := cmd.OutOrStdout()
	if askJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	for _, msg := range resp.Messages() {
		fmt.Fprintln(out, msg)
	}
	if resp.NeedMoreInfo {
		fmt.Fprintln(out, "\n(more information needed: ask again with the details above)")
	}
	return resp.Err()
}

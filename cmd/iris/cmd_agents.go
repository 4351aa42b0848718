package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/system"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List the provisioned participants",
	RunE:  runAgents,
}

func runAgents(cmd *cobra.Command, args []string) error {
	stack, err := bootStack(context.Background(), cfg, system.WithoutLedger())
	if err != nil {
		return err
	}
	defer stack.Close()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tID\tDESCRIPTION")
	for _, h := range stack.Agents() {
		fmt.Fprintf(w, "%s\t%s\t%s\n", h.Name, h.ID, h.Description)
	}
	return w.Flush()
}

package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/ledger"
)

var ledgerLimit int

// ledgerCmd reports recorded exchange outcomes
var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Show recent exchange outcomes and totals",
	RunE:  runLedger,
}

func init() {
	ledgerCmd.Flags().IntVarP(&ledgerLimit, "limit", "n", 20, "Number of recent outcomes to show")
}

func runLedger(cmd *cobra.Command, args []string) error {
	if !cfg.Ledger.Enabled {
		return fmt.Errorf("the outcome ledger is disabled (ledger.enabled: false)")
	}
	store, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	st, err := store.Stats(ctx)
	if err != nil {
		return err
	}
	entries, err := store.Recent(ctx, ledgerLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d exchanges: %d answered, %d clarifications, %d failed (%d timeouts), %d retried, avg %s\n\n",
		st.Total, st.Answered, st.Clarifications, st.Failures, st.Timeouts, st.Retried,
		st.AvgDuration.Round(time.Millisecond))

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tOUTCOME\tATTEMPTS\tDURATION\tQUESTION")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			e.CreatedAt.Local().Format("2006-01-02 15:04"), outcomeLabel(e), e.Attempts,
			e.Duration.Round(time.Millisecond), truncate(e.Question, 60))
	}
	return w.Flush()
}

func outcomeLabel(e ledger.Entry) string {
	switch {
	case e.Failed():
		return "error:" + e.ErrorType
	case e.NeedMoreInfo:
		return "clarify"
	default:
		return "answered"
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

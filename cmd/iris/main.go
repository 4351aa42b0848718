package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/config"
	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/logging"
	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/system"
)

var (
	// Global flags
	configPath string
	verbose    bool
	offline    bool
	noLedger   bool
	timeout    time.Duration

	// Set up by PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "iris",
	Short: "IRIS - OSHA recordkeeping assistant",
	Long: `IRIS answers OSHA injury and illness recordkeeping questions (29 CFR 1904)
through a team of agents: a translator, a router, a dispatcher and four
domain responders (Sciences, Governance, Analytics, Experience).

Run without arguments to start the interactive chat interface.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded

		// The chat UI owns the terminal; only log when a file is configured
		if isInteractive(cmd) && cfg.Logging.File == "" {
			logger = zap.NewNop()
			logging.Attach(logger, cfg.Logging)
			return nil
		}

		logger, err = logging.Build(cfg.Logging, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logging.Attach(logger, cfg.Logging)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runChat,
}

func isInteractive(cmd *cobra.Command) bool {
	return !cmd.HasParent() || cmd.Name() == "chat"
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to iris.yaml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&offline, "offline", false, "Serve every plugin from its static tables")
	rootCmd.PersistentFlags().BoolVar(&noLedger, "no-ledger", false, "Do not record exchange outcomes")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Overall timeout for one-shot commands")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(ledgerCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(chatCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootStack boots the stack honouring the global flags.
func bootStack(ctx context.Context, c *config.Config, extra ...system.BootOption) (*system.Stack, error) {
	opts := append([]system.BootOption(nil), extra...)
	if offline {
		opts = append(opts, system.WithOffline())
	}
	if noLedger {
		opts = append(opts, system.WithoutLedger())
	}
	return system.Boot(ctx, c, opts...)
}

// signalContext is cancelled on SIGINT/SIGTERM or after d when d > 0.
func signalContext(d time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	if d <= 0 {
		return ctx, stop
	}
	tctx, cancel := context.WithTimeout(ctx, d)
	return tctx, func() {
		cancel()
		stop()
	}
}

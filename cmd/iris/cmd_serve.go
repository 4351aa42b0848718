package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/config"
	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/server"
	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/system"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the chat API over HTTP",
	Long: `Starts the HTTP front end:

  POST /chat     {"message": "...", "history": [{"role": "...", "content": "..."}]}
  GET  /agents   provisioned participants
  GET  /healthz  liveness and reload count

When server.watch_config is set, edits to the config file rebuild the stack
without dropping in-flight exchanges.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(0)
	defer stop()

	stack, err := bootStack(ctx, cfg)
	if err != nil {
		return err
	}
	srv := server.New(stack)
	defer srv.Close()

	var reloader *server.Reloader
	if cfg.Server.WatchConfig {
		boot := func(ctx context.Context, c *config.Config) (*system.Stack, error) {
			return bootStack(ctx, c)
		}
		reloader, err = server.NewReloader(configPath, cfg.GetReloadDebounce(), boot, srv.Swap)
		if err != nil {
			logger.Warn("config watching disabled", zap.Error(err))
			reloader = nil
		}
	}

	addr := serveAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}
	logger.Info("serving IRIS",
		zap.String("addr", addr),
		zap.Int("agents", len(stack.Agents())),
		zap.Bool("watch_config", reloader != nil))

	if err := srv.Run(ctx, addr, cfg.GetReadTimeout(), reloader); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

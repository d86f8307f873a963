package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/recall-labs/recall/internal/api"
	"github.com/recall-labs/recall/internal/config"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()

		cfg, err := config.Load(debug)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if servePort > 0 {
			cfg.Server.Port = servePort
		}

		if cfg.OpenAIKey == "" {
			logger.Warn("no OpenAI API key configured, chat is disabled")
		}
		if cfg.Supermemory.APIKey == "" {
			logger.Warn("no Supermemory API key configured, memory features are disabled")
		}

		server := api.NewServer(cfg, logger)

		errCh := make(chan error, 1)
		go func() {
			if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		logger.Info("ready", "addr", cfg.Addr())

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return fmt.Errorf("server failed: %w", err)
		case sig := <-sigCh:
			logger.Info("shutting down", "signal", sig)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Stop(ctx)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config)")
}

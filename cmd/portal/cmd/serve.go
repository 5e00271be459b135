package cmd

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ffland/portal/internal/config"
	"github.com/ffland/portal/internal/logging"
	"github.com/ffland/portal/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the login portal. Configuration is read from the environment and
an optional .env file in the working directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logging.New(cfg.LogFormat, cfg.LogLevel)
		server.Version = version

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		s, err := server.New(ctx, cfg)
		if err != nil {
			return err
		}
		if err := s.Start(ctx); err != nil {
			slog.Error("Server stopped with error", "error", err)
			return err
		}
		slog.Info("Server stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/micareg/internal/schema"
	"github.com/JonMunkholm/micareg/internal/web"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long:  `Serve validate, clean and task generation for uploaded register files over HTTP.`,
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	svc, done, err := newService(ctx, serviceOptions(cmd))
	if err != nil {
		return err
	}
	defer done()

	slog.Info("configuration loaded",
		"addr", cfg.Server.Addr(),
		"registers", schema.Count(),
		"audit_db", cfg.Database.Enabled(),
		"upload_max_bytes", cfg.Upload.MaxFileSize,
	)

	server := web.NewServer(svc, cfg)

	// Graceful shutdown once the command context is cancelled by
	// SIGINT or SIGTERM.
	shutdownErr := make(chan error, 1)
	go func() {
		<-ctx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		shutdownErr <- server.Shutdown(shutdownCtx)
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	if err := <-shutdownErr; err != nil {
		slog.Error("shutdown error", "error", err)
		return err
	}
	slog.Info("server stopped")
	return nil
}

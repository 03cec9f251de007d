package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/campus/internal/devserver"
	"github.com/felixgeelhaar/campus/internal/log"
	"github.com/felixgeelhaar/campus/internal/version"
)

// EnvDevSecret fixes the dev server's signing secret so tokens survive restarts.
const EnvDevSecret = "CAMPUS_DEV_SECRET"

var devServerCmd = &cobra.Command{
	Use:   "dev-server",
	Short: "Run a local mock of the campus backend",
	Long: `Run an in-memory mock of the campus backend for local development.

The server implements every endpoint the client calls, publishes its OpenAPI
contract at /openapi.yaml and Prometheus metrics at /metrics. It seeds one
account per role, all with the password "campus123":

  alice  Teacher
  ben    Learning Advisor
  mai    Manager

Password-reset codes are written to the log instead of being emailed.

The server shuts down gracefully on SIGTERM or SIGINT.

Example:
  # Start on the default address
  campus dev-server

  # Short-lived access tokens, to watch the portal refresh them
  campus dev-server --access-ttl 90s`,
	Args: cobra.NoArgs,
	RunE: runDevServer,
}

var (
	devServerAddress         string
	devServerAccessTTL       time.Duration
	devServerRefreshTTL      time.Duration
	devServerShutdownTimeout time.Duration
)

func init() {
	devServerCmd.Flags().StringVar(&devServerAddress, "addr", "127.0.0.1:8080", "address to listen on")
	devServerCmd.Flags().DurationVar(&devServerAccessTTL, "access-ttl", 15*time.Minute, "lifetime of issued access tokens")
	devServerCmd.Flags().DurationVar(&devServerRefreshTTL, "refresh-ttl", 24*time.Hour, "lifetime of issued refresh tokens")
	devServerCmd.Flags().DurationVar(&devServerShutdownTimeout, "shutdown-timeout", 10*time.Second, "maximum time to wait for connections to drain during shutdown")

	rootCmd.AddCommand(devServerCmd)
}

func runDevServer(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	info := version.GetInfo()

	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return fmt.Errorf("failed to create command context: %w", err)
	}
	level := log.LevelInfo
	if cmdCtx.LogLevel != "" {
		if level, err = log.ParseLevel(cmdCtx.LogLevel); err != nil {
			return err
		}
	}
	logger := log.New(log.Config{
		Level:          level,
		Format:         log.FormatText,
		Output:         log.NewOutput(cmd.ErrOrStderr()),
		ServiceName:    "campus-dev-server",
		ServiceVersion: info.Version,
	})

	backend, err := devserver.New(devserver.Options{
		Secret:          []byte(os.Getenv(EnvDevSecret)),
		AccessTokenTTL:  devServerAccessTTL,
		RefreshTokenTTL: devServerRefreshTTL,
		Logger:          logger,
	})
	if err != nil {
		return err
	}
	srv := devserver.NewServer(backend, devserver.Config{
		Address:         devServerAddress,
		ShutdownTimeout: devServerShutdownTimeout,
	})

	fmt.Fprintf(out, "campus dev-server %s\n", info.Short())
	fmt.Fprintf(out, "Listening on: http://%s\n", devServerAddress)
	fmt.Fprintf(out, "Contract:     http://%s/openapi.yaml\n", devServerAddress)
	fmt.Fprintf(out, "Metrics:      http://%s/metrics\n\n", devServerAddress)
	fmt.Fprintln(out, "Seeded accounts (password "+devserver.DefaultPassword+"):")
	for _, u := range devserver.DefaultUsers() {
		fmt.Fprintf(out, "  %-6s %-18s %s\n", u.Username, u.Role, u.Email)
	}
	fmt.Fprintln(out, "\nPress Ctrl+C to stop the server")

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// The root context is cancelled on SIGINT and SIGTERM.
	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		fmt.Fprintln(out, "\nInitiating graceful shutdown...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), devServerShutdownTimeout+5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}

		fmt.Fprintln(out, "Server stopped gracefully")
		return nil
	}
}

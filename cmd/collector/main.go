// Collector is a development ingestion server for tidal clients. It
// accepts POST /tracks, /identifies and /groups and logs what it receives.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var (
	listenAddr string
	apiKey     string
	keyHeader  string
	failRate   float64
	verbose    bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "collector",
	Short: "Development collector for tidal events",
	Long: `Run a local collector that accepts tidal sub-stream batches.

Events whose properties or traits contain "trigger_error": true are answered
with HTTP 500 so client retries can be observed. --fail-rate makes a random
share of requests fail with HTTP 503.

Examples:
  collector                          # listen on :3000, any api key
  collector --api-key secret         # require "Authorization: Bearer secret"
  collector --fail-rate 0.3 -v       # flaky server, log every event`,
	RunE: runCollector,
}

func init() {
	rootCmd.Flags().StringVarP(&listenAddr, "addr", "a", ":3000", "Address to listen on")
	rootCmd.Flags().StringVar(&apiKey, "api-key", "", "Required API key (empty accepts any)")
	rootCmd.Flags().StringVar(&keyHeader, "api-key-header", "", "Header carrying the API key instead of Authorization")
	rootCmd.Flags().Float64Var(&failRate, "fail-rate", 0, "Share of requests answered with 503 (0-1)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log every received event")
}

func runCollector(cmd *cobra.Command, args []string) error {
	if failRate < 0 || failRate > 1 {
		return fmt.Errorf("--fail-rate must be between 0 and 1, got %v", failRate)
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           newCollector(apiKey, keyHeader, failRate, logger).routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("collector listening", "addr", listenAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

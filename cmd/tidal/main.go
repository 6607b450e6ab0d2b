// Tidal is a command-line producer for tidal collectors. Each invocation
// restores the persisted queue and session, applies one command and
// disposes the client, so events survive between runs until delivered.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	tidal "github.com/Tap30/tidal-go"
	"github.com/Tap30/tidal-go/adapters"
)

// CLI flags
var (
	configFile string
	store      storeOptions
	noFlush    bool
	logLevel   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tidal",
	Short: "Send analytics events to a tidal collector",
	Long: `Tidal queues track, identify and group events and delivers them to a
collector in batches. Settings come from --config (YAML) and TIDAL_*
environment variables.

Examples:
  tidal track page_view -p page=/home
  tidal identify user-42 -p plan=pro
  tidal group acme --type company
  tidal status --store sqlite
  tidal flush`,
	Version:      tidal.Version,
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "YAML config file")
	flags.StringVar(&store.Kind, "store", "file", "Persistence backend: file, sqlite, redis, s3, memory, none")
	flags.StringVar(&store.Path, "store-path", "", "Directory (file) or database path (sqlite)")
	flags.StringVar(&store.RedisAddr, "redis-addr", "", "Redis address for --store redis")
	flags.StringVar(&store.S3Bucket, "s3-bucket", "", "Bucket for --store s3")
	flags.StringVar(&store.S3Prefix, "s3-prefix", "tidal/", "Key prefix for --store s3")
	flags.StringVar(&store.S3Region, "s3-region", "", "AWS region for --store s3")
	flags.StringVar(&store.S3Endpoint, "s3-endpoint", "", "Custom S3 endpoint (MinIO, LocalStack)")
	flags.BoolVar(&noFlush, "no-flush", false, "Leave events queued instead of flushing on exit")
	flags.StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides config)")
}

// withClient loads configuration, runs fn against an initialized client
// and disposes it.
func withClient(cmd *cobra.Command, fn func(*tidal.Client) error) error {
	fc, err := tidal.LoadConfig(configFile)
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("store-path") && fc.StoragePath != "" {
		store.Path = fc.StoragePath
	}

	level := fc.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	slogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slogLevel(adapters.ParseLogLevel(level)),
	}))

	storage, err := openStore(cmd.Context(), store)
	if err != nil {
		return err
	}
	defer storage.Close()

	cfg := fc.ClientConfig()
	cfg.StorageAdapter = storage
	cfg.LoggerAdapter = adapters.NewSlogLoggerAdapter(slogger)
	cfg.Metrics = tidal.NewMetricsRecorder(nil)
	cfg.Hooks.OnError = func(err error) {
		slogger.Error("delivery problem", "error", err)
	}
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = time.Hour
	}

	client, err := tidal.NewClient(cfg)
	if err != nil {
		return err
	}
	if err := client.Init(); err != nil {
		return err
	}

	runErr := fn(client)
	if noFlush {
		return joinErr(runErr, client.DisposeWithoutFlush())
	}
	return joinErr(runErr, client.Dispose())
}

func joinErr(first, second error) error {
	if first != nil {
		return first
	}
	return second
}

func slogLevel(level adapters.LogLevel) slog.Level {
	switch level {
	case adapters.LogLevelDebug:
		return slog.LevelDebug
	case adapters.LogLevelInfo:
		return slog.LevelInfo
	case adapters.LogLevelError:
		return slog.LevelError
	case adapters.LogLevelNone:
		return slog.LevelError + 4
	default:
		return slog.LevelWarn
	}
}

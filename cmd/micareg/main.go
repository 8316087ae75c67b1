package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/micareg/internal/config"
	"github.com/JonMunkholm/micareg/internal/llm"
	"github.com/JonMunkholm/micareg/internal/logging"
	"github.com/JonMunkholm/micareg/internal/pipeline"
	"github.com/JonMunkholm/micareg/internal/schema"
	"github.com/JonMunkholm/micareg/internal/store"
)

// Build information, set with -ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
)

var (
	cfg      *config.Config
	logLevel string
	envFile  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "micareg",
	Short: "Validate, clean and remediate MiCA interim register files",
	Long: "micareg checks ESMA interim MiCA register CSV exports, applies deterministic repairs, " +
		"and optionally asks a language model for fixes to what remains.",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: bootstrap,
	RunE: func(cmd *cobra.Command, args []string) error {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("micareg %s (commit %s, %s %s/%s)\n", Version, GitCommit, runtime.Version(), runtime.GOOS, runtime.GOARCH)
			return nil
		}
		return cmd.Help()
	},
}

// bootstrap loads .env and configuration, sets up logging and applies
// schema overrides before any subcommand runs.
func bootstrap(cmd *cobra.Command, args []string) error {
	// Overload overwrites existing env vars
	if err := godotenv.Overload(envFile); err != nil {
		slog.Debug("no .env file found, using environment variables", "file", envFile)
	}

	var err error
	cfg, err = config.Load()
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("configuration loaded", "config", cfg.String())

	if cfg.Schema.OverridesFile != "" {
		n, err := schema.ApplyOverridesFile(cfg.Schema.OverridesFile)
		if err != nil {
			return err
		}
		slog.Info("schema overrides applied", "file", cfg.Schema.OverridesFile, "registers", n)
	}
	return nil
}

// newService wires the pipeline from configuration. The model client is
// left out when no API key is configured, and the audit store when no
// database URL is. The returned func releases the store.
func newService(ctx context.Context, opts pipeline.Options) (*pipeline.Service, func(), error) {
	logger := slog.Default()

	var remediator pipeline.Remediator
	client, err := llm.NewFromConfig(cfg.LLM, llm.Options{Logger: logger})
	switch {
	case errors.Is(err, llm.ErrNoCredentials):
		slog.Debug("model remediation disabled: no API key")
	case err != nil:
		return nil, nil, err
	default:
		slog.Debug("model remediation enabled", "provider", cfg.LLM.Provider, "models", client.Models())
		remediator = client
	}

	var audit pipeline.AuditSink
	cleanup := func() {}
	if cfg.Database.Enabled() {
		st, err := store.Open(ctx, cfg.Database, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := st.EnsureSchema(ctx); err != nil {
			st.Close()
			return nil, nil, err
		}
		audit = st
		cleanup = st.Close
	}

	return pipeline.NewService(remediator, audit, opts, logger), cleanup, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a .env file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override LOG_LEVEL (debug, info, warn, error)")
	rootCmd.Flags().Bool("version", false, "Show version information and exit")

	setupCommands()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if pipeline.IsUserFacing(err) {
			fmt.Fprintln(os.Stderr, pipeline.FormatUserError(err))
		}
		os.Exit(1)
	}
}

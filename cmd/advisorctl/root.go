package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"advisorgate/internal/config"
	"advisorgate/internal/db"
	"advisorgate/internal/ledger"
	"advisorgate/internal/logging"
)

var (
	envFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "advisorctl",
	Short: "Operate advisorgate usage ledgers",
	Long: `advisorctl talks to the advisorgate database directly.

It reads the same environment (and .env file) as the server.

Examples:
  # Rebuild one user's counters from history
  advisorctl resync user-123

  # Rebuild every user active in the last 24 hours
  advisorctl resync --all

  # Show a ledger row
  advisorctl ledger show user-123 --format json`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// env holds what every subcommand needs.
type env struct {
	cfg    *config.Config
	ledger *ledger.Ledger
	log    zerolog.Logger
}

func openEnv() (*env, error) {
	_ = godotenv.Load(envFile)
	cfg := config.Load()

	level := "warn"
	if verbose {
		level = "debug"
	}
	log := logging.New(os.Stderr, level, "console")

	gdb, err := db.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	limits, err := config.NewLimitsWatcher(cfg.LimitsFile, log)
	if err != nil {
		return nil, fmt.Errorf("load limits: %w", err)
	}
	l := ledger.New(gdb, limits, ledger.WithLogger(log), ledger.WithPendingTTL(cfg.Provider.Timeout+time.Minute))
	return &env{cfg: cfg, ledger: l, log: log}, nil
}

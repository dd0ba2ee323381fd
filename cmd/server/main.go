/*
main.go - Application entry point

PURPOSE:
  The latidos command: runs the HTTP server and the operator tooling
  around it (seeding demo data, integrity checks, tokens, operators).

COMMANDS:
  serve       Start the HTTP API (default when no command is given)
  seed        Load a demo scenario into a tenant
  reconcile   Compare cached balances against the journal
  token       Mint a bearer token for a tenant
  operator    Register an operator PIN for signing
  account     Open a ledger account

CONFIGURATION:
  Every command reads .env and the environment via config.Load. The --db
  flag overrides DATABASE_PATH. Use ":memory:" for a throwaway database.

EXAMPLES:
  latidos serve
  latidos seed --tenant demo --scenario overpayment
  latidos reconcile --tenant demo
  latidos token --tenant demo --user ana --ttl 24h

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/latidos/ledger-engine/config"
	"github.com/latidos/ledger-engine/logger"
	"github.com/latidos/ledger-engine/store/sqlite"
)

var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "latidos",
	Short: "Latidos - receivables and treasury ledger engine",
	Long: `Latidos records what customers owe, applies their payments across open
invoices, and keeps every account balance tied to an append-only journal.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (overrides DATABASE_PATH)")
	rootCmd.PersistentFlags().String("env-file", ".env", "Optional .env file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		l := logger.WithComponent("cmd")
		l.Error().Err(err).Msg("command failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads configuration and sets up logging for any command.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.DatabasePath = db
	}
	if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}
	return cfg, nil
}

func openStore(cfg *config.Config) (*sqlite.Store, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.DatabasePath, err)
	}
	return st, nil
}

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"bank-accounts/app"
	"bank-accounts/config"
	"bank-accounts/store"
)

var storePath string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bank-accounts",
	Short: "An event-sourced bank account service",
	Long: `bank-accounts manages bank accounts as event-sourced entities: balances are
never stored directly but derived by replaying each account's event log.

Accounts can be opened, queried, and adjusted from the command line against a
durable SQLite event log, or served over HTTP with the serve command.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "path to the SQLite event log (defaults to $BANK_STORE_PATH)")
}

// openRegistry builds the durable store and a registry on top of it for one
// CLI invocation. The returned cleanup drains the registry and closes the log.
func openRegistry() (*app.Registry, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	path := storePath
	if path == "" {
		path = cfg.StorePath
	}

	st, err := store.OpenSQLite(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open event log %s: %w", path, err)
	}

	registry, err := app.NewRegistry(st, st,
		app.WithReplyTimeout(cfg.ReplyTimeout),
		app.WithMailboxSize(cfg.MailboxSize),
		app.WithSnapshotFrequency(cfg.SnapshotFrequency),
	)
	if err != nil {
		_ = st.Close()
		return nil, nil, fmt.Errorf("start registry: %w", err)
	}

	cleanup := func() {
		registry.Stop()
		_ = st.Close()
	}
	return registry, cleanup, nil
}

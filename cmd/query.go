package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"bank-accounts/domain"
	"bank-accounts/events"
)

var (
	historySkip  int
	historyLimit int
)

// queryCmd represents the query command group
var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query account event history",
	Long:  `Provides read-only queries against the persisted event log.`,
}

// historyCmd represents the query history command
var historyCmd = &cobra.Command{
	Use:   "history <account-id>",
	Short: "Show an account's event history",
	Long:  `Prints the account's events in log order, oldest first, optionally paginated.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, cleanup, err := openRegistry()
		if err != nil {
			return err
		}
		defer cleanup()

		history, err := registry.History(args[0], historySkip, historyLimit)
		if err != nil {
			if errors.Is(err, domain.ErrAccountNotFound) {
				return fmt.Errorf("account %q not found", args[0])
			}
			return fmt.Errorf("failed to get history: %w", err)
		}

		if len(history) == 0 {
			fmt.Println("No events in the requested range.")
			return nil
		}
		for _, event := range history {
			printEvent(event)
		}
		return nil
	},
}

func printEvent(event events.Event) {
	base := event.GetBase()
	switch e := event.(type) {
	case events.AccountOpenedEvent:
		fmt.Printf("v%-4d %s  %s  owner=%s currency=%s initialBalance=%s\n",
			base.Version, base.Timestamp.Format("2006-01-02 15:04:05"), base.Type, e.Owner, e.Currency, e.InitialBalance.StringFixed(2))
	case events.BalanceChangedEvent:
		fmt.Printf("v%-4d %s  %s  delta=%s\n",
			base.Version, base.Timestamp.Format("2006-01-02 15:04:05"), base.Type, e.Delta.StringFixed(2))
	default:
		fmt.Printf("v%-4d %s  %s\n", base.Version, base.Timestamp.Format("2006-01-02 15:04:05"), base.Type)
	}
}

func init() {
	rootCmd.AddCommand(queryCmd)

	queryCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVar(&historySkip, "skip", 0, "Number of events to skip from the start of the stream")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 0, "Maximum number of events to print (0 = all)")
}

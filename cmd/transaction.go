package cmd

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"bank-accounts/domain"
)

var txDeltaStr string

// transactionCmd represents the transaction command group
var transactionCmd = &cobra.Command{
	Use:   "transaction",
	Short: "Adjust account balances",
	Long:  `Provides commands to change an account's balance by a signed delta.`,
}

// changeCmd represents the transaction change command
var changeCmd = &cobra.Command{
	Use:   "change <account-id>",
	Short: "Change an account's balance by a signed delta",
	Long: `Applies a signed balance change to an account. A positive delta deposits,
a negative delta withdraws. A change that would drive the balance negative is
rejected and leaves the account untouched.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if txDeltaStr == "" {
			return fmt.Errorf("delta (--delta) is required")
		}
		delta, err := decimal.NewFromString(txDeltaStr)
		if err != nil {
			return fmt.Errorf("invalid delta format: %q: %w", txDeltaStr, err)
		}
		if delta.IsZero() {
			return fmt.Errorf("delta must be non-zero")
		}

		registry, cleanup, err := openRegistry()
		if err != nil {
			return err
		}
		defer cleanup()

		account, err := registry.ChangeBalance(args[0], delta)
		if err != nil {
			if errors.Is(err, domain.ErrInsufficientFunds) {
				return fmt.Errorf("change rejected: %w", err)
			}
			if errors.Is(err, domain.ErrAccountNotFound) {
				return fmt.Errorf("account %q not found", args[0])
			}
			return fmt.Errorf("failed to change balance: %w", err)
		}

		fmt.Printf("Balance of account '%s' changed by %s. New balance: %s %s.\n",
			account.ID, delta.StringFixed(2), account.Balance.StringFixed(2), account.Currency)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(transactionCmd)

	transactionCmd.AddCommand(changeCmd)

	changeCmd.Flags().StringVarP(&txDeltaStr, "delta", "d", "", "Signed balance change, e.g. 25 or -12.50 (required)")
}

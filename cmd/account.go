package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"bank-accounts/domain"
	"bank-accounts/shared"
)

var (
	openOwner      string
	openCurrency   string
	openBalanceStr string
)

// accountCmd represents the account command group
var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage bank accounts",
	Long:  `Provides commands to open accounts and inspect their current state.`,
}

// openCmd represents the account open command
var openCmd = &cobra.Command{
	Use:   "open",
	Short: "Open a new bank account",
	Long: `Opens a new account for an owner in a single currency, with an optional
initial balance. The account identifier is allocated by the registry and
printed on success.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		owner := strings.TrimSpace(openOwner)
		if owner == "" {
			return fmt.Errorf("owner (--owner) is required")
		}
		currency := shared.Currency(strings.ToUpper(strings.TrimSpace(openCurrency)))
		if currency == "" {
			return fmt.Errorf("currency (--currency) is required")
		}

		initialBalance := decimal.Zero
		if openBalanceStr != "" {
			var err error
			initialBalance, err = decimal.NewFromString(openBalanceStr)
			if err != nil {
				return fmt.Errorf("invalid balance format: %q: %w", openBalanceStr, err)
			}
			if initialBalance.IsNegative() {
				return fmt.Errorf("initial balance cannot be negative: %s", initialBalance)
			}
		}

		registry, cleanup, err := openRegistry()
		if err != nil {
			return err
		}
		defer cleanup()

		id, err := registry.Open(owner, currency, initialBalance)
		if err != nil {
			return fmt.Errorf("failed to open account: %w", err)
		}

		fmt.Printf("Account '%s' opened for %s with %s %s.\n", id, owner, initialBalance.StringFixed(2), currency)
		return nil
	},
}

// getCmd represents the account get command
var getCmd = &cobra.Command{
	Use:   "get <account-id>",
	Short: "Show an account's current state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, cleanup, err := openRegistry()
		if err != nil {
			return err
		}
		defer cleanup()

		account, err := registry.Get(args[0])
		if err != nil {
			if errors.Is(err, domain.ErrAccountNotFound) {
				return fmt.Errorf("account %q not found", args[0])
			}
			return fmt.Errorf("failed to get account: %w", err)
		}

		fmt.Printf("Account:  %s\n", account.ID)
		fmt.Printf("Owner:    %s\n", account.Owner)
		fmt.Printf("Currency: %s\n", account.Currency)
		fmt.Printf("Balance:  %s\n", account.Balance.StringFixed(2))
		fmt.Printf("Version:  %d\n", account.Version)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(accountCmd)

	accountCmd.AddCommand(openCmd)
	accountCmd.AddCommand(getCmd)

	openCmd.Flags().StringVar(&openOwner, "owner", "", "Account owner name (required)")
	openCmd.Flags().StringVar(&openCurrency, "currency", "", "Account currency code, e.g. USD (required)")
	openCmd.Flags().StringVarP(&openBalanceStr, "balance", "b", "", "Initial balance, e.g. 100.50 (defaults to 0)")
}

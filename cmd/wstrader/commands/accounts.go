package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/guberm/wealthsimple-trading-bot/internal/contracts"
)

// accountsCmd represents the accounts command
var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List brokerage accounts and positions",
	Long: `Logs in to Wealthsimple Trade and prints account state.

This command:
- Lists every account with its buying power
- Marks the account the bot trades (trading.account_type)
- Prints the open positions and total value of that account

Example:
  go run ./cmd/wstrader accounts`,
	RunE: runAccounts,
}

func init() {
	rootCmd.AddCommand(accountsCmd)
}

func runAccounts(cmd *cobra.Command, args []string) error {
	fmt.Println("=== wstrader Accounts ===")

	// 1. Initialize dependencies
	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.cfg.HasCredentials() {
		return fmt.Errorf("WS_EMAIL and WS_PASSWORD must be set to inspect accounts")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Log in
	if err := a.auth.Login(ctx); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	PrintSuccess("Logged in")

	// 3. List all accounts
	accounts, err := a.accounts.Accounts(ctx)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}

	configured := contracts.AccountType(a.settings.Trading.AccountType)

	fmt.Println()
	widths := []int{2, 30, 12, 8, 16}
	PrintTableHeader([]string{"", "ID", "TYPE", "STATUS", "BUYING POWER"}, widths)
	for _, acct := range accounts {
		marker := ""
		if acct.Type == configured {
			marker = "→"
		}
		PrintTableRow([]string{
			marker,
			acct.ID,
			string(acct.Type),
			acct.Status,
			formatMoney(acct.BuyingPower),
		}, widths)
	}
	fmt.Println("\n→ account the bot trades (trading.account_type)")

	// 4. Positions of the trading account
	acct, err := a.accounts.AccountByType(ctx, configured)
	if err != nil {
		PrintWarning(fmt.Sprintf("No %s account found: %v", configured, err))
		return nil
	}

	positions, err := a.accounts.Positions(ctx, acct.ID)
	if err != nil {
		return fmt.Errorf("list positions: %w", err)
	}

	if len(positions) == 0 {
		fmt.Println("\nNo open positions")
	} else {
		fmt.Printf("\nPositions in %s:\n", acct.ID)
		pw := []int{10, 12, 10, 12, 8}
		PrintTableHeader([]string{"SYMBOL", "QTY", "PRICE", "VALUE", "P&L %"}, pw)
		for _, p := range positions {
			PrintTableRow([]string{
				p.Symbol,
				p.Quantity.StringFixed(4),
				p.CurrentPrice.StringFixed(2),
				p.MarketValue.StringFixed(2),
				p.GainLossPct.StringFixed(1),
			}, pw)
		}
	}

	// 5. Totals
	total, err := a.accounts.TotalValue(ctx, acct.ID, positions)
	if err != nil {
		return fmt.Errorf("total value: %w", err)
	}

	fmt.Println()
	PrintKeyValue("Positions", fmt.Sprintf("%d", len(positions)), 12)
	PrintKeyValue("Cash", formatMoney(acct.BuyingPower), 12)
	PrintKeyValue("Total value", total.StringFixed(2)+" "+acct.BuyingPower.Currency, 12)

	return nil
}

// formatMoney renders an amount with its currency
func formatMoney(m contracts.Money) string {
	return m.Amount.StringFixed(2) + " " + m.Currency
}

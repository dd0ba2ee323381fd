package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/latidos/ledger-engine/ledger"
	"github.com/latidos/ledger-engine/treasury"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Open a ledger account with an optional opening balance",
	Example: `  latidos account --tenant demo --name "Caja Principal" --type CASH --opening 1250.50
  latidos account --tenant demo --name "Banco Nacion" --type BANK --default`,
	RunE: runAccount,
}

func init() {
	rootCmd.AddCommand(accountCmd)
	accountCmd.Flags().String("tenant", "", "Tenant (org id)")
	accountCmd.Flags().String("name", "", "Account name")
	accountCmd.Flags().String("type", string(ledger.AccountCash), "CASH, BANK, WALLET, TRADE_IN or CREDIT_NOTE")
	accountCmd.Flags().String("opening", "0", "Opening balance in major units, e.g. 1250.50")
	accountCmd.Flags().Bool("default", false, "Make this the tenant's default account")
}

func runAccount(cmd *cobra.Command, args []string) error {
	tenant, _ := cmd.Flags().GetString("tenant")
	name, _ := cmd.Flags().GetString("name")
	typ, _ := cmd.Flags().GetString("type")
	openingStr, _ := cmd.Flags().GetString("opening")
	isDefault, _ := cmd.Flags().GetBool("default")
	if tenant == "" {
		return fmt.Errorf("--tenant is required")
	}

	opening, err := ledger.ParseMoney(openingStr)
	if err != nil {
		return fmt.Errorf("--opening: %w", err)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	a, err := treasury.NewService(store, nil, nil).CreateAccount(cmd.Context(), treasury.CreateAccountRequest{
		Tenant:         ledger.TenantID(tenant),
		Name:           name,
		Type:           ledger.AccountType(strings.ToUpper(typ)),
		IsDefault:      isDefault,
		OpeningBalance: opening,
	})
	if err != nil {
		return err
	}
	fmt.Printf("%s\t%s\t%s\t%s\n", a.ID, a.Name, a.Type, a.Balance)
	return nil
}

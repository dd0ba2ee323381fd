package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/latidos/ledger-engine/api"
	"github.com/latidos/ledger-engine/ledger"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for a tenant",
	Long: `Mint an HS256 token signed with JWT_SECRET. For development and
scripts; production tokens come from the identity provider.`,
	Example: `  latidos token --tenant demo --user ana --ttl 24h`,
	RunE:    runToken,
}

var operatorCmd = &cobra.Command{
	Use:     "operator",
	Short:   "Register an operator PIN for signing",
	Example: `  latidos operator --tenant demo --name "Ana Ruiz" --pin 4821`,
	RunE:    runOperator,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().String("tenant", "", "Tenant (org id)")
	tokenCmd.Flags().String("user", "cli", "Subject (user id)")
	tokenCmd.Flags().String("name", "", "Display name")
	tokenCmd.Flags().Duration("ttl", 12*time.Hour, "Token lifetime")

	rootCmd.AddCommand(operatorCmd)
	operatorCmd.Flags().String("tenant", "", "Tenant (org id)")
	operatorCmd.Flags().String("id", "", "Operator id (default: random)")
	operatorCmd.Flags().String("user", "", "User id of the operator")
	operatorCmd.Flags().String("name", "", "Display name")
	operatorCmd.Flags().String("pin", "", "PIN used to sign operations")
}

func runToken(cmd *cobra.Command, args []string) error {
	tenant, _ := cmd.Flags().GetString("tenant")
	user, _ := cmd.Flags().GetString("user")
	name, _ := cmd.Flags().GetString("name")
	ttl, _ := cmd.Flags().GetDuration("ttl")
	if ttl <= 0 {
		return fmt.Errorf("--ttl must be positive")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	tok, err := api.NewAuthenticator(cfg.JWTSecret, cfg.JWTIssuer).Issue(ledger.TenantID(tenant), user, name, ttl)
	if err != nil {
		return err
	}
	fmt.Println(tok)
	return nil
}

func runOperator(cmd *cobra.Command, args []string) error {
	tenant, _ := cmd.Flags().GetString("tenant")
	id, _ := cmd.Flags().GetString("id")
	user, _ := cmd.Flags().GetString("user")
	name, _ := cmd.Flags().GetString("name")
	pin, _ := cmd.Flags().GetString("pin")
	if tenant == "" || name == "" {
		return fmt.Errorf("--tenant and --name are required")
	}
	if id == "" {
		id = uuid.NewString()
	}

	hash, err := ledger.HashPIN(pin)
	if err != nil {
		return err
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

	err = store.SaveOperator(cmd.Context(), ledger.OperatorRecord{
		ID:       ledger.OperatorID(id),
		TenantID: ledger.TenantID(tenant),
		UserID:   user,
		Name:     name,
		PINHash:  hash,
		Active:   true,
	})
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}

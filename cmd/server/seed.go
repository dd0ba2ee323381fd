package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/latidos/ledger-engine/api"
	"github.com/latidos/ledger-engine/ledger"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load a demo scenario into a tenant",
	Example: `  latidos seed --tenant demo --scenario overpayment
  latidos seed --tenant demo --list`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().String("tenant", "", "Tenant (org id) to seed")
	seedCmd.Flags().String("scenario", "", "Scenario id")
	seedCmd.Flags().Bool("list", false, "List scenarios and exit")
}

func runSeed(cmd *cobra.Command, args []string) error {
	if list, _ := cmd.Flags().GetBool("list"); list {
		for _, s := range api.Scenarios() {
			fmt.Printf("%-18s %s\n", s.ID, s.Description)
		}
		return nil
	}

	tenant, _ := cmd.Flags().GetString("tenant")
	scenario, _ := cmd.Flags().GetString("scenario")
	if tenant == "" || scenario == "" {
		return fmt.Errorf("--tenant and --scenario are required")
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

	h := api.NewHandler(store, nil, nil)
	res, err := h.Seeder.Load(cmd.Context(), ledger.TenantID(tenant), scenario)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

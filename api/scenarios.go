/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate a tenant with realistic data
	for demos. Each scenario creates accounts, customers and invoices, then
	runs the operation it is named after so the result can be inspected
	through the statement and account endpoints.

AVAILABLE SCENARIOS:

	overpayment:       70.000 paid against 50.000 owed, 20.000 banked as credit
	credit-redemption: 30.000 credit redeemed over 10.000 + 25.000 invoices
	split-transfer:    two sources fund two destinations in one transfer

HOW SCENARIOS WORK:
 1. Create accounts through treasury (opening balances are journaled)
 2. Create the customer and invoices through collections
 3. Run the featured operation
 4. Return the ids so callers can follow up

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "overpayment"}

USAGE VIA CLI:

	latidos seed --tenant demo --scenario split-transfer

NOTE:

	Scenarios add data to the tenant and never delete anything. Loading one
	twice creates a second, independent copy.

SEE ALSO:
  - handlers.go: LoadScenario, ListScenarios handlers
  - cmd/server/seed.go: CLI entry point
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/latidos/ledger-engine/collections"
	"github.com/latidos/ledger-engine/ledger"
	"github.com/latidos/ledger-engine/treasury"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "overpayment",
		Name:        "Overpayment",
		Description: "Customer owes 500.00 over two invoices and pays 700.00; 200.00 becomes store credit",
	},
	{
		ID:          "credit-redemption",
		Name:        "Credit Redemption",
		Description: "Customer holds 300.00 credit and redeems it over 100.00 + 250.00 invoices",
	},
	{
		ID:          "split-transfer",
		Name:        "Split Transfer",
		Description: "600.00 leaves Cash and Wallet and lands in Bank and Safe in one transfer",
	},
}

// Scenarios lists the demo scenarios.
func Scenarios() []ScenarioDTO { return scenarios }

// ScenarioResult names what a scenario created.
type ScenarioResult struct {
	ScenarioID string            `json:"scenario_id"`
	Customers  []string          `json:"customers,omitempty"`
	Sales      []string          `json:"sales,omitempty"`
	Accounts   map[string]string `json:"accounts"` // name -> id
	Summary    string            `json:"summary"`
}

// Seeder loads scenarios through the services, so every row it writes
// passes the same validation as API traffic.
type Seeder struct {
	Collections *collections.Service
	Treasury    *treasury.Service
	Now         func() time.Time
}

// Load runs scenario id for tenant.
func (s *Seeder) Load(ctx context.Context, tenant ledger.TenantID, id string) (*ScenarioResult, error) {
	if s.Now == nil {
		s.Now = time.Now
	}
	res := &ScenarioResult{ScenarioID: id, Accounts: map[string]string{}}

	var err error
	switch id {
	case "overpayment":
		err = s.loadOverpayment(ctx, tenant, res)
	case "credit-redemption":
		err = s.loadCreditRedemption(ctx, tenant, res)
	case "split-transfer":
		err = s.loadSplitTransfer(ctx, tenant, res)
	default:
		return nil, fmt.Errorf("%w: unknown scenario %q", ledger.ErrInvalidInput, id)
	}
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", id, err)
	}
	return res, nil
}

func (s *Seeder) account(ctx context.Context, tenant ledger.TenantID, res *ScenarioResult, name string, typ ledger.AccountType, opening ledger.Money) (*ledger.Account, error) {
	a, err := s.Treasury.CreateAccount(ctx, treasury.CreateAccountRequest{
		Tenant: tenant, Name: name, Type: typ, OpeningBalance: opening,
	})
	if err != nil {
		return nil, err
	}
	res.Accounts[name] = string(a.ID)
	return a, nil
}

func (s *Seeder) invoice(ctx context.Context, tenant ledger.TenantID, res *ScenarioResult, customer ledger.CustomerID, number string, daysAgo int, total ledger.Money) error {
	sale, err := s.Collections.CreateSale(ctx, collections.CreateSaleRequest{
		Tenant:        tenant,
		CustomerID:    customer,
		InvoiceNumber: number,
		Date:          s.Now().AddDate(0, 0, -daysAgo),
		Total:         total,
	})
	if err != nil {
		return err
	}
	res.Sales = append(res.Sales, string(sale.ID))
	return nil
}

// loadOverpayment: F-001 200.00 and F-002 300.00, paid with 700.00 cash.
func (s *Seeder) loadOverpayment(ctx context.Context, tenant ledger.TenantID, res *ScenarioResult) error {
	cash, err := s.account(ctx, tenant, res, "Caja Principal", ledger.AccountCash, 0)
	if err != nil {
		return err
	}
	customer, err := s.Collections.CreateCustomer(ctx, tenant, "Lucia Perez")
	if err != nil {
		return err
	}
	res.Customers = append(res.Customers, string(customer.ID))

	if err := s.invoice(ctx, tenant, res, customer.ID, "F-001", 30, 20000); err != nil {
		return err
	}
	if err := s.invoice(ctx, tenant, res, customer.ID, "F-002", 15, 30000); err != nil {
		return err
	}

	out, err := s.Collections.ProcessCascadePayment(ctx, collections.CascadePaymentRequest{
		Tenant:              tenant,
		CustomerID:          customer.ID,
		Amount:              70000,
		Method:              ledger.MethodCash,
		AccountID:           cash.ID,
		Reference:           "Pago en caja",
		AllowSurplusBanking: true,
	})
	if err != nil {
		return err
	}
	res.Summary = fmt.Sprintf("%d invoices settled, %s banked as credit", len(out.AppliedPayments), out.RemainingCredit)
	return nil
}

// loadCreditRedemption: 300.00 banked first, then redeemed over two invoices.
func (s *Seeder) loadCreditRedemption(ctx context.Context, tenant ledger.TenantID, res *ScenarioResult) error {
	bank, err := s.account(ctx, tenant, res, "Banco Nacion", ledger.AccountBank, 0)
	if err != nil {
		return err
	}
	customer, err := s.Collections.CreateCustomer(ctx, tenant, "Martin Gomez")
	if err != nil {
		return err
	}
	res.Customers = append(res.Customers, string(customer.ID))

	// Nothing is owed yet, so the whole deposit is banked.
	if _, err := s.Collections.ProcessCascadePayment(ctx, collections.CascadePaymentRequest{
		Tenant:              tenant,
		CustomerID:          customer.ID,
		Amount:              30000,
		Method:              ledger.MethodTransfer,
		AccountID:           bank.ID,
		Reference:           "Anticipo",
		AllowSurplusBanking: true,
	}); err != nil {
		return err
	}

	if err := s.invoice(ctx, tenant, res, customer.ID, "F-101", 10, 10000); err != nil {
		return err
	}
	if err := s.invoice(ctx, tenant, res, customer.ID, "F-102", 5, 25000); err != nil {
		return err
	}

	out, err := s.Collections.RedeemCreditBalance(ctx, collections.RedeemRequest{
		Tenant: tenant, CustomerID: customer.ID, Reference: "Aplicacion de saldo a favor",
	})
	if err != nil {
		return err
	}
	res.Summary = fmt.Sprintf("%s redeemed, credit left %s", out.TotalRedeemed, out.CreditBalance)
	return nil
}

// loadSplitTransfer: Cash 450 + Wallet 150 -> Bank 400 + Safe 200.
func (s *Seeder) loadSplitTransfer(ctx context.Context, tenant ledger.TenantID, res *ScenarioResult) error {
	cash, err := s.account(ctx, tenant, res, "Caja Principal", ledger.AccountCash, 50000)
	if err != nil {
		return err
	}
	wallet, err := s.account(ctx, tenant, res, "Billetera Yape", ledger.AccountWallet, 20000)
	if err != nil {
		return err
	}
	bank, err := s.account(ctx, tenant, res, "Banco Nacion", ledger.AccountBank, 0)
	if err != nil {
		return err
	}
	safe, err := s.account(ctx, tenant, res, "Caja Fuerte", ledger.AccountCash, 0)
	if err != nil {
		return err
	}

	out, err := s.Treasury.SplitTransferFunds(ctx, treasury.SplitTransferRequest{
		Tenant:       tenant,
		Sources:      []treasury.Leg{{AccountID: cash.ID, Amount: 45000}, {AccountID: wallet.ID, Amount: 15000}},
		Destinations: []treasury.Leg{{AccountID: bank.ID, Amount: 40000}, {AccountID: safe.ID, Amount: 20000}},
		TotalAmount:  60000,
		Description:  "Deposito de cierre",
	})
	if err != nil {
		return err
	}
	res.Summary = fmt.Sprintf("transfer %s posted %d lines", out.TransferID, len(out.Transactions))
	return nil
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario seeds the caller's tenant with a scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.Seeder.Load(r.Context(), tenantOf(r), req.ScenarioID)
	if err != nil {
		writeError(w, err)
		return
	}
	h.Cache.Purge()
	writeJSON(w, http.StatusCreated, res)
}

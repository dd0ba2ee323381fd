package collections_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/latidos/ledger-engine/collections"
	"github.com/latidos/ledger-engine/ledger"
	"github.com/latidos/ledger-engine/ledger/store"
	"github.com/latidos/ledger-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var clock = time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)

// backends runs a test against every TxStore implementation.
var backends = map[string]func(t *testing.T) ledger.TxStore{
	"memory": func(t *testing.T) ledger.TxStore { return store.NewMemory() },
	"sqlite": func(t *testing.T) ledger.TxStore {
		s, err := sqlite.New(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	},
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	store    ledger.TxStore
	svc      *collections.Service
	tenant   ledger.TenantID
	customer *ledger.Customer
	cash     ledger.Account
	bank     ledger.Account
	seq      int
}

func newFixture(t *testing.T, st ledger.TxStore) *fixture {
	t.Helper()
	f := &fixture{
		t:      t,
		ctx:    context.Background(),
		store:  st,
		svc:    collections.NewService(st, nil, nil),
		tenant: "tenant-a",
	}
	f.svc.SetClock(func() time.Time { return clock })

	var err error
	f.customer, err = f.svc.CreateCustomer(f.ctx, f.tenant, "Lucia Perez")
	require.NoError(t, err)

	f.cash = f.account(f.tenant, "Cash", ledger.AccountCash)
	f.bank = f.account(f.tenant, "Bank", ledger.AccountBank)
	return f
}

func (f *fixture) account(tenant ledger.TenantID, name string, typ ledger.AccountType) ledger.Account {
	f.seq++
	a := ledger.Account{
		ID:        ledger.AccountID(fmt.Sprintf("acc-%d", f.seq)),
		TenantID:  tenant,
		Name:      name,
		Type:      typ,
		CreatedAt: clock,
	}
	require.NoError(f.t, f.store.SaveAccount(f.ctx, a))
	return a
}

// sale creates an invoice dated day days into January 2025.
func (f *fixture) sale(number string, day int, total ledger.Money) *ledger.Sale {
	f.t.Helper()
	s, err := f.svc.CreateSale(f.ctx, collections.CreateSaleRequest{
		Tenant:        f.tenant,
		CustomerID:    f.customer.ID,
		InvoiceNumber: number,
		Date:          time.Date(2025, 1, day, 9, 0, 0, 0, time.UTC),
		Total:         total,
	})
	require.NoError(f.t, err)
	return s
}

func (f *fixture) pay(amount ledger.Money, account ledger.Account, allowBank bool) (*collections.CascadeResult, error) {
	return f.svc.ProcessCascadePayment(f.ctx, collections.CascadePaymentRequest{
		Tenant:              f.tenant,
		CustomerID:          f.customer.ID,
		Amount:              amount,
		Method:              account.DefaultMethod(),
		AccountID:           account.ID,
		AllowSurplusBanking: allowBank,
	})
}

func (f *fixture) getSale(id ledger.SaleID) *ledger.Sale {
	s, err := f.store.GetSale(f.ctx, id)
	require.NoError(f.t, err)
	require.NotNil(f.t, s)
	return s
}

func (f *fixture) balance(id ledger.AccountID) ledger.Money {
	a, err := f.store.GetAccount(f.ctx, id)
	require.NoError(f.t, err)
	require.NotNil(f.t, a)
	return a.Balance
}

func (f *fixture) credit() ledger.Money {
	c, err := f.store.GetCustomer(f.ctx, f.customer.ID)
	require.NoError(f.t, err)
	return c.CreditBalance
}

func (f *fixture) journal(id ledger.AccountID) []ledger.Transaction {
	txs, err := f.store.ListTransactions(f.ctx, id, ledger.DateRange{})
	require.NoError(f.t, err)
	return txs
}

// requireBalanced checks every cached balance equals its journal sum and
// every invoice amount paid equals the sum of its payments.
func (f *fixture) requireBalanced() {
	f.t.Helper()
	accounts, err := f.store.ListAccounts(f.ctx, f.tenant, true)
	require.NoError(f.t, err)
	for _, a := range accounts {
		var sum ledger.Money
		for _, tx := range f.journal(a.ID) {
			sum += tx.Signed()
		}
		require.Equal(f.t, sum, a.Balance, "account %s", a.Name)
	}

	sales, err := f.store.ListTenantSales(f.ctx, f.tenant)
	require.NoError(f.t, err)
	for _, s := range sales {
		payments, err := f.store.ListPaymentsBySale(f.ctx, s.ID)
		require.NoError(f.t, err)
		var sum ledger.Money
		for _, p := range payments {
			sum += p.Amount
		}
		require.Equal(f.t, sum, s.AmountPaid, "invoice %s", s.DisplayRef())
		require.LessOrEqual(f.t, s.AmountPaid, s.Total)
	}
}

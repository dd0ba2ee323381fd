package collections_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latidos/ledger-engine/collections"
	"github.com/latidos/ledger-engine/ledger"
)

func TestBuildStatement_OrderAndRunningBalance(t *testing.T) {
	// GIVEN: Two sales and two payments, one payment at the same instant as a sale
	// WHEN: Building the statement
	// THEN: Rows are chronological, the debit comes first on a tie,
	//       and the running balance is seeded at zero
	day := func(d int) time.Time { return time.Date(2025, 2, d, 12, 0, 0, 0, time.UTC) }
	customer := ledger.Customer{ID: "c1", Name: "Ana", CreditBalance: 700}

	sales := []ledger.Sale{
		{ID: "s2", InvoiceNumber: "F-002", Date: day(5), Total: 3000},
		{ID: "s1", InvoiceNumber: "F-001", Date: day(1), Total: 1000},
	}
	payments := []ledger.Payment{
		{ID: "p2", SaleID: "s2", Amount: 500, Date: day(5), Method: ledger.MethodCash},
		{ID: "p1", SaleID: "s1", Amount: 1000, Date: day(2), Method: ledger.MethodTransfer, Reference: "TRX-9"},
	}

	st := collections.BuildStatement(customer, ledger.DateRange{}, sales, payments)

	require.Len(t, st.Movements, 4)
	kinds := []string{}
	for _, m := range st.Movements {
		kinds = append(kinds, m.SourceID)
	}
	assert.Equal(t, []string{"s1", "p1", "s2", "p2"}, kinds)

	assert.Equal(t, ledger.Money(1000), st.Movements[0].Balance)
	assert.Equal(t, ledger.Money(0), st.Movements[1].Balance)
	assert.Equal(t, ledger.Money(3000), st.Movements[2].Balance)
	assert.Equal(t, ledger.Money(2500), st.Movements[3].Balance)

	assert.Equal(t, "TRX-9", st.Movements[1].Reference)
	assert.Equal(t, "Payment F-002", st.Movements[3].Reference)
	assert.Equal(t, collections.MovementCredit, st.Movements[3].Kind)

	assert.Equal(t, ledger.Money(4000), st.Summary.TotalDebit)
	assert.Equal(t, ledger.Money(1500), st.Summary.TotalCredit)
	assert.Equal(t, ledger.Money(2500), st.Summary.Balance)
	assert.Equal(t, ledger.Money(700), st.Summary.CreditBalance)
}

func TestBuildStatement_RangeFilters(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2025, 2, d, 0, 0, 0, 0, time.UTC) }
	sales := []ledger.Sale{
		{ID: "s1", InvoiceNumber: "F-001", Date: day(1), Total: 1000},
	}
	payments := []ledger.Payment{
		{ID: "p1", SaleID: "s1", Amount: 400, Date: day(10)},
	}

	st := collections.BuildStatement(ledger.Customer{}, ledger.DateRange{From: day(5), To: day(20)}, sales, payments)

	require.Len(t, st.Movements, 1, "the sale falls outside the range")
	assert.Equal(t, "Payment F-001", st.Movements[0].Reference, "the invoice is still named")
	assert.Equal(t, ledger.Money(-400), st.Movements[0].Balance)
}

func TestGetCustomerStatement(t *testing.T) {
	for name, newStore := range backends {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, newStore(t))
			f.sale("F-001", 1, 10000)
			f.sale("F-002", 2, 5000)
			_, err := f.pay(12000, f.cash, false)
			require.NoError(t, err)

			st, err := f.svc.GetCustomerStatement(f.ctx, f.tenant, f.customer.ID, ledger.DateRange{})
			require.NoError(t, err)

			require.Len(t, st.Movements, 4)
			assert.Equal(t, ledger.Money(15000), st.Summary.TotalDebit)
			assert.Equal(t, ledger.Money(12000), st.Summary.TotalCredit)
			assert.Equal(t, ledger.Money(3000), st.Summary.Balance)
			assert.Equal(t, st.Summary.Balance, st.Movements[len(st.Movements)-1].Balance)

			_, err = f.svc.GetCustomerStatement(f.ctx, f.tenant, f.customer.ID,
				ledger.DateRange{From: clock, To: clock.Add(-time.Hour)})
			assert.ErrorIs(t, err, ledger.ErrInvalidRange)

			_, err = f.svc.GetCustomerStatement(f.ctx, "tenant-b", f.customer.ID, ledger.DateRange{})
			assert.ErrorIs(t, err, ledger.ErrCrossTenant)
		})
	}
}

func TestToggleVerification(t *testing.T) {
	// GIVEN: A paid invoice
	// WHEN: Toggling verification on the sale and the payment
	// THEN: The flags flip, balances do not move, and an audit entry is written
	f := newFixture(t, backends["memory"](t))
	inv := f.sale("F-001", 1, 10000)
	res, err := f.pay(10000, f.cash, false)
	require.NoError(t, err)
	paymentID := res.AppliedPayments[0].PaymentID

	verified, err := f.svc.ToggleVerification(f.ctx, f.tenant, collections.VerifySale, string(inv.ID), nil)
	require.NoError(t, err)
	assert.True(t, verified)
	assert.True(t, f.getSale(inv.ID).IsVerified)

	verified, err = f.svc.ToggleVerification(f.ctx, f.tenant, collections.VerifyPayment, string(paymentID), nil)
	require.NoError(t, err)
	assert.True(t, verified)

	verified, err = f.svc.ToggleVerification(f.ctx, f.tenant, collections.VerifyPayment, string(paymentID), nil)
	require.NoError(t, err)
	assert.False(t, verified)

	assert.Equal(t, ledger.Money(10000), f.getSale(inv.ID).AmountPaid)
	assert.Equal(t, ledger.Money(10000), f.balance(f.cash.ID))

	history, err := f.svc.PaymentHistory(f.ctx, f.tenant, paymentID)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	_, err = f.svc.ToggleVerification(f.ctx, f.tenant, "account", "x", nil)
	assert.ErrorIs(t, err, ledger.ErrInvalidInput)
	_, err = f.svc.ToggleVerification(f.ctx, "tenant-b", collections.VerifySale, string(inv.ID), nil)
	assert.ErrorIs(t, err, ledger.ErrCrossTenant)
}

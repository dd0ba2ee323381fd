package ledger_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latidos/ledger-engine/ledger"
)

func pending(id string, day int, amount ledger.Money) ledger.PendingInvoice {
	return ledger.PendingInvoice{
		SaleID:        ledger.SaleID(id),
		InvoiceNumber: "INV-" + id,
		Date:          time.Date(2025, 1, day, 0, 0, 0, 0, time.UTC),
		Pending:       amount,
	}
}

// =============================================================================
// CASCADE ALLOCATION TESTS
// =============================================================================

func TestCascadeAllocator_OldestFirst(t *testing.T) {
	// GIVEN: Three open invoices with 100.00, 80.00 and 50.00 pending
	// WHEN: A payment of 140.00 is allocated
	// THEN: The first invoice is paid off, the second gets 40.00, the third nothing
	invoices := []ledger.PendingInvoice{
		pending("a", 1, 10000),
		pending("b", 2, 8000),
		pending("c", 3, 5000),
	}

	plan, err := ledger.CascadeAllocator{}.Allocate(invoices, 14000)
	require.NoError(t, err)

	require.Len(t, plan.Allocations, 2)
	assert.Equal(t, ledger.SaleID("a"), plan.Allocations[0].SaleID)
	assert.Equal(t, ledger.Money(10000), plan.Allocations[0].Applied)
	assert.Equal(t, ledger.Money(0), plan.Allocations[0].Remaining)
	assert.Equal(t, ledger.SaleID("b"), plan.Allocations[1].SaleID)
	assert.Equal(t, ledger.Money(4000), plan.Allocations[1].Applied)
	assert.Equal(t, ledger.Money(4000), plan.Allocations[1].Remaining)
	assert.Equal(t, ledger.Money(0), plan.Leftover)
}

func TestCascadeAllocator_Leftover(t *testing.T) {
	// GIVEN: One invoice with 500.00 pending
	// WHEN: 700.00 is allocated
	// THEN: 500.00 is applied and 200.00 is left over
	plan, err := ledger.CascadeAllocator{}.Allocate([]ledger.PendingInvoice{pending("a", 1, 50000)}, 70000)
	require.NoError(t, err)

	require.Len(t, plan.Allocations, 1)
	applied, err := plan.TotalApplied()
	require.NoError(t, err)
	assert.Equal(t, ledger.Money(50000), applied)
	assert.Equal(t, ledger.Money(20000), plan.Leftover)
}

func TestCascadeAllocator_NoInvoices(t *testing.T) {
	plan, err := ledger.CascadeAllocator{}.Allocate(nil, 1500)
	require.NoError(t, err)
	assert.Empty(t, plan.Allocations)
	assert.Equal(t, ledger.Money(1500), plan.Leftover)
}

func TestCascadeAllocator_SkipsSettledInvoices(t *testing.T) {
	invoices := []ledger.PendingInvoice{
		pending("a", 1, 0),
		pending("b", 2, 300),
	}

	plan, err := ledger.CascadeAllocator{}.Allocate(invoices, 200)
	require.NoError(t, err)
	require.Len(t, plan.Allocations, 1)
	assert.Equal(t, ledger.SaleID("b"), plan.Allocations[0].SaleID)
}

func TestCascadeAllocator_RejectsNonPositive(t *testing.T) {
	for _, amount := range []ledger.Money{0, -1} {
		_, err := ledger.CascadeAllocator{}.Allocate([]ledger.PendingInvoice{pending("a", 1, 100)}, amount)
		assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
	}
}

func TestCascadeAllocator_Conservation(t *testing.T) {
	// GIVEN: A range of payment sizes against the same invoices
	// THEN: applied + leftover == requested, no invoice takes more than its pending,
	//       and a later invoice only receives money once every earlier one is settled
	invoices := []ledger.PendingInvoice{
		pending("a", 1, 1234),
		pending("b", 2, 1),
		pending("c", 3, 99999),
		pending("d", 4, 500),
	}

	for _, amount := range []ledger.Money{1, 1234, 1235, 50000, 101734, 200000} {
		plan, err := ledger.CascadeAllocator{}.Allocate(invoices, amount)
		require.NoError(t, err)

		applied, err := plan.TotalApplied()
		require.NoError(t, err)
		assert.Equal(t, amount, applied+plan.Leftover, "amount %d", amount)
		for i, a := range plan.Allocations {
			assert.LessOrEqual(t, a.Applied, invoices[i].Pending)
			assert.Positive(t, int64(a.Applied))
			if i < len(plan.Allocations)-1 {
				assert.Zero(t, a.Remaining, "only the last touched invoice may stay open")
			}
		}
		if plan.Leftover > 0 {
			assert.Len(t, plan.Allocations, len(invoices))
		}
	}
}

func TestAllocationPlan_TotalAppliedRejectsOverflow(t *testing.T) {
	// GIVEN: A plan whose allocations do not fit in int64 when added
	plan := &ledger.AllocationPlan{Allocations: []ledger.Allocation{
		{SaleID: "a", Applied: 1 << 62},
		{SaleID: "b", Applied: 1 << 62},
	}}

	// WHEN / THEN: The total is an error, not a wrapped negative
	_, err := plan.TotalApplied()
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
}

/*
allocator.go - FIFO cascade of one payment across many invoices

PURPOSE:
  A customer hands over one lump sum. The allocator decides how much of it
  lands on each open invoice:
  - Oldest invoice first (the caller supplies the order)
  - Each invoice takes min(remaining, pending)
  - Whatever is left after the last invoice is the leftover

  The allocator does no I/O and knows nothing about accounts, tenants or
  persistence. Same input, same plan.

EXAMPLE:
  invoices: A pending 100.00, B pending 80.00, C pending 50.00
  payment:  140.00
  plan:     A 100.00 (remaining 0), B 40.00 (remaining 40.00), leftover 0

SEE ALSO:
  - collections/resolver.go: produces the ordered pending list
  - collections/recorder.go: persists a plan
*/
package ledger

import "time"

// PendingInvoice is one candidate for allocation.
type PendingInvoice struct {
	SaleID        SaleID
	InvoiceNumber string
	Date          time.Time
	Pending       Money
}

// Allocation is the share of a payment applied to one invoice.
type Allocation struct {
	SaleID        SaleID
	InvoiceNumber string
	Applied       Money
	Remaining     Money // pending balance after this allocation
}

// AllocationPlan describes how a payment is split across invoices.
type AllocationPlan struct {
	Requested   Money
	Allocations []Allocation
	Leftover    Money // unallocated surplus, candidate for credit banking
}

// TotalApplied is the part of the payment that reached invoices.
func (p *AllocationPlan) TotalApplied() (Money, error) {
	var total Money
	for _, a := range p.Allocations {
		next, err := total.Add(a.Applied)
		if err != nil {
			return 0, err
		}
		total = next
	}
	return total, nil
}

// CascadeAllocator distributes a payment greedily in the given order.
type CascadeAllocator struct{}

// Allocate walks invoices in order and applies min(remaining, pending) to each.
// Invoices with no pending balance are skipped.
func (CascadeAllocator) Allocate(invoices []PendingInvoice, amount Money) (*AllocationPlan, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	plan := &AllocationPlan{Requested: amount}
	remaining := amount

	for _, inv := range invoices {
		if remaining.IsZero() {
			break
		}
		if !inv.Pending.IsPositive() {
			continue
		}

		applied := remaining.Min(inv.Pending)
		plan.Allocations = append(plan.Allocations, Allocation{
			SaleID:        inv.SaleID,
			InvoiceNumber: inv.InvoiceNumber,
			Applied:       applied,
			Remaining:     inv.Pending - applied,
		})
		remaining -= applied
	}

	plan.Leftover = remaining
	return plan, nil
}

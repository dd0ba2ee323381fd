package collections

import (
	"context"
	"fmt"
	"sort"

	"github.com/latidos/ledger-engine/ledger"
)

// =============================================================================
// RESOLVER - Which invoices are open, in what order
// =============================================================================

// Resolver turns a customer (or an explicit invoice list) into the ordered
// pending list the allocator consumes. Open means AmountPaid < Total exactly.
// Order is oldest first, ties by invoice id.
type Resolver struct{}

// ByCustomer returns every open invoice of the customer.
// A customer with nothing open yields an empty list and no error.
func (Resolver) ByCustomer(ctx context.Context, st ledger.Store, tenant ledger.TenantID, customer ledger.CustomerID) ([]ledger.PendingInvoice, error) {
	if _, err := ledger.LoadCustomer(ctx, st, tenant, customer); err != nil {
		return nil, err
	}

	sales, err := st.ListOpenSales(ctx, tenant, customer)
	if err != nil {
		return nil, fmt.Errorf("list open invoices: %w", err)
	}
	return toPending(sales), nil
}

// ByInvoices restricts resolution to ids. Every id must be an invoice of
// this tenant and this customer; invoices already settled are dropped.
// Repeated ids are collapsed.
func (Resolver) ByInvoices(ctx context.Context, st ledger.Store, tenant ledger.TenantID, customer ledger.CustomerID, ids []ledger.SaleID) ([]ledger.PendingInvoice, error) {
	if _, err := ledger.LoadCustomer(ctx, st, tenant, customer); err != nil {
		return nil, err
	}

	seen := make(map[ledger.SaleID]bool, len(ids))
	var sales []ledger.Sale
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		sale, err := ledger.LoadSale(ctx, st, tenant, id)
		if err != nil {
			return nil, err
		}
		// Another customer's invoice is reported as missing, not as foreign
		if sale.CustomerID != customer {
			return nil, &ledger.NotFoundError{Kind: "invoice", ID: string(id)}
		}
		if sale.IsOpen() {
			sales = append(sales, *sale)
		}
	}

	sort.Slice(sales, func(i, j int) bool {
		if !sales[i].Date.Equal(sales[j].Date) {
			return sales[i].Date.Before(sales[j].Date)
		}
		return sales[i].ID < sales[j].ID
	})
	return toPending(sales), nil
}

// Resolve picks ByCustomer when ids is empty.
func (r Resolver) Resolve(ctx context.Context, st ledger.Store, tenant ledger.TenantID, customer ledger.CustomerID, ids []ledger.SaleID) ([]ledger.PendingInvoice, error) {
	if len(ids) == 0 {
		return r.ByCustomer(ctx, st, tenant, customer)
	}
	return r.ByInvoices(ctx, st, tenant, customer, ids)
}

func toPending(sales []ledger.Sale) []ledger.PendingInvoice {
	out := make([]ledger.PendingInvoice, 0, len(sales))
	for _, s := range sales {
		out = append(out, ledger.PendingInvoice{
			SaleID:        s.ID,
			InvoiceNumber: s.DisplayRef(),
			Date:          s.Date,
			Pending:       s.Pending(),
		})
	}
	return out
}

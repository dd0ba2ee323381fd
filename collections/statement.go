package collections

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/latidos/ledger-engine/ledger"
)

// =============================================================================
// STATEMENT - Chronological receivables projection
// =============================================================================

type MovementKind string

const (
	MovementDebit  MovementKind = "DEBIT"  // invoice issued
	MovementCredit MovementKind = "CREDIT" // payment received
)

// SourceKind names the row a movement was projected from.
type SourceKind string

const (
	SourceSale    SourceKind = "sale"
	SourcePayment SourceKind = "payment"
)

// Movement is one derived statement row.
type Movement struct {
	Date       time.Time
	Kind       MovementKind
	Source     SourceKind
	SourceID   string
	Reference  string
	Debit      ledger.Money
	Credit     ledger.Money
	Balance    ledger.Money // running balance after this row
	IsVerified bool
	Method     ledger.PaymentMethod // payments only
}

type StatementSummary struct {
	TotalDebit    ledger.Money
	TotalCredit   ledger.Money
	Balance       ledger.Money // TotalDebit - TotalCredit
	CreditBalance ledger.Money // store credit currently held
}

type Statement struct {
	Customer  ledger.Customer
	Range     ledger.DateRange
	Movements []Movement
	Summary   StatementSummary
}

// BuildStatement projects sales and payments into movements, ordered by date
// with debits before credits on the same instant and then by source id.
// The running balance starts at zero for the range.
func BuildStatement(customer ledger.Customer, r ledger.DateRange, sales []ledger.Sale, payments []ledger.Payment) *Statement {
	refs := make(map[ledger.SaleID]string, len(sales))
	movements := make([]Movement, 0, len(sales)+len(payments))

	for _, sale := range sales {
		refs[sale.ID] = sale.DisplayRef()
		if !r.Contains(sale.Date) {
			continue
		}
		movements = append(movements, Movement{
			Date:       sale.Date,
			Kind:       MovementDebit,
			Source:     SourceSale,
			SourceID:   string(sale.ID),
			Reference:  sale.DisplayRef(),
			Debit:      sale.Total,
			IsVerified: sale.IsVerified,
		})
	}

	for _, p := range payments {
		if !r.Contains(p.Date) {
			continue
		}
		ref := p.Reference
		if ref == "" {
			inv, ok := refs[p.SaleID]
			if !ok {
				inv = string(p.SaleID)
			}
			ref = "Payment " + inv
		}
		movements = append(movements, Movement{
			Date:       p.Date,
			Kind:       MovementCredit,
			Source:     SourcePayment,
			SourceID:   string(p.ID),
			Reference:  ref,
			Credit:     p.Amount,
			IsVerified: p.IsVerified,
			Method:     p.Method,
		})
	}

	sort.SliceStable(movements, func(i, j int) bool {
		a, b := movements[i], movements[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Kind != b.Kind {
			return a.Kind == MovementDebit
		}
		return a.SourceID < b.SourceID
	})

	st := &Statement{Customer: customer, Range: r, Movements: movements}
	var running ledger.Money
	for i := range st.Movements {
		m := &st.Movements[i]
		running += m.Debit - m.Credit
		m.Balance = running
		st.Summary.TotalDebit += m.Debit
		st.Summary.TotalCredit += m.Credit
	}
	st.Summary.Balance = st.Summary.TotalDebit - st.Summary.TotalCredit
	st.Summary.CreditBalance = customer.CreditBalance
	return st
}

// GetCustomerStatement reads the customer's sales and payments within r.
func (s *Service) GetCustomerStatement(ctx context.Context, tenant ledger.TenantID, customerID ledger.CustomerID, r ledger.DateRange) (*Statement, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	customer, err := ledger.LoadCustomer(ctx, s.store, tenant, customerID)
	if err != nil {
		return nil, err
	}

	// All sales are read so payment rows can name invoices outside the range
	sales, err := s.store.ListSales(ctx, tenant, customerID, ledger.DateRange{})
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	payments, err := s.store.ListPaymentsByCustomer(ctx, tenant, customerID, r)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}

	return BuildStatement(*customer, r, sales, payments), nil
}

// =============================================================================
// VERIFICATION - Reconciliation flag, independent of balances
// =============================================================================

type VerificationKind string

const (
	VerifySale    VerificationKind = "sale"
	VerifyPayment VerificationKind = "payment"
)

// ToggleVerification flips IsVerified on a sale or payment and returns the new value.
func (s *Service) ToggleVerification(ctx context.Context, tenant ledger.TenantID, kind VerificationKind, id string, sig *ledger.Signature) (bool, error) {
	operator, err := ledger.Sign(ctx, s.signer, tenant, sig)
	if err != nil {
		return false, err
	}

	var verified bool
	var customer ledger.CustomerID
	err = s.store.WithTx(ctx, func(st ledger.Store) error {
		switch kind {
		case VerifySale:
			sale, err := ledger.LoadSale(ctx, st, tenant, ledger.SaleID(id))
			if err != nil {
				return err
			}
			verified, customer = !sale.IsVerified, sale.CustomerID
			if err := st.SetSaleVerified(ctx, sale.ID, verified); err != nil {
				return err
			}
		case VerifyPayment:
			p, err := ledger.LoadPayment(ctx, st, tenant, ledger.PaymentID(id))
			if err != nil {
				return err
			}
			sale, err := ledger.LoadSale(ctx, st, tenant, p.SaleID)
			if err != nil {
				return err
			}
			verified, customer = !p.IsVerified, sale.CustomerID
			if err := st.SetPaymentVerified(ctx, p.ID, verified); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: verification kind %q", ledger.ErrInvalidInput, kind)
		}

		return st.AppendAudit(ctx, ledger.AuditEntry{
			ID:        s.newID(),
			TenantID:  tenant,
			At:        s.now(),
			Actor:     operator,
			Action:    ledger.AuditVerificationToggle,
			SubjectID: id,
			Payload:   map[string]any{"kind": string(kind), "verified": verified},
		})
	})
	if err != nil {
		return false, err
	}

	s.notifier.Notify(ctx, ledger.Change{TenantID: tenant, Customers: []ledger.CustomerID{customer}})
	return verified, nil
}

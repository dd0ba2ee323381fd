/*
recorder.go - Persists an allocation plan

PURPOSE:
  The allocator decides, the recorder writes. For every allocation it
  inserts a payment, bumps the invoice's amount paid, and for real money
  appends a journal line and credits the receiving account.

ORDER OF WRITES (per allocation):
  1. payments row (method, account, reference, operator snapshot)
  2. sales.amount_paid += applied   (conditional, fails with ErrInvoiceOverpaid)
  3. transactions INCOME "Collection"   (skipped for CREDIT_BALANCE)
  4. accounts.balance += applied        (skipped for CREDIT_BALANCE)

  Apply must run inside a WithTx view. Any error aborts the whole unit of
  work, so a half-recorded cascade is never visible.

SEE ALSO:
  - ledger/allocator.go: builds the plan
  - collections/credit.go: what happens to the leftover
*/
package collections

import (
	"context"
	"fmt"
	"time"

	"github.com/latidos/ledger-engine/ledger"
)

// AppliedPayment is one invoice touched by a cascade or redemption.
type AppliedPayment struct {
	SaleID        ledger.SaleID
	InvoiceNumber string
	PaymentID     ledger.PaymentID
	Amount        ledger.Money
	NewBalance    ledger.Money // invoice pending balance after the payment
}

// ApplyInput is everything the recorder needs besides the store.
type ApplyInput struct {
	Tenant    ledger.TenantID
	Customer  *ledger.Customer
	Plan      *ledger.AllocationPlan
	Method    ledger.PaymentMethod
	Account   *ledger.Account // nil for CREDIT_BALANCE
	Reference string
	Date      time.Time
	Operator  ledger.Operator
}

type Recorder struct {
	NewID func() string
}

// PostingAccount loads the account a real-money method deposits into and
// checks it may receive postings of that method.
func PostingAccount(ctx context.Context, st ledger.AccountStore, tenant ledger.TenantID, method ledger.PaymentMethod, id ledger.AccountID) (*ledger.Account, error) {
	account, err := ledger.LoadPostableAccount(ctx, st, tenant, id)
	if err != nil {
		return nil, err
	}
	if !ledger.MethodAllowed(method, *account) {
		return nil, fmt.Errorf("%w: %s into %s account %q",
			ledger.ErrMethodAccountMismatch, method, account.Type, account.Name)
	}
	return account, nil
}

// Apply writes every allocation of in.Plan.
func (r Recorder) Apply(ctx context.Context, st ledger.Store, in ApplyInput) ([]AppliedPayment, error) {
	if in.Plan == nil || in.Customer == nil {
		return nil, fmt.Errorf("%w: plan and customer are required", ledger.ErrInvalidInput)
	}
	movesCash := in.Method.MovesCash()
	if movesCash && in.Account == nil {
		return nil, ledger.ErrMissingAccount
	}

	applied := make([]AppliedPayment, 0, len(in.Plan.Allocations))
	for _, alloc := range in.Plan.Allocations {
		if !alloc.Applied.IsPositive() {
			continue
		}

		payment := ledger.Payment{
			ID:         ledger.PaymentID(r.NewID()),
			TenantID:   in.Tenant,
			SaleID:     alloc.SaleID,
			Amount:     alloc.Applied,
			Method:     in.Method,
			Reference:  in.Reference,
			Date:       in.Date,
			IsVerified: false,
			Operator:   in.Operator,
			CreatedAt:  in.Date,
		}
		if movesCash {
			payment.AccountID = in.Account.ID
			payment.TransactionID = ledger.TransactionID(r.NewID())
		}

		if err := st.InsertPayment(ctx, payment); err != nil {
			return nil, fmt.Errorf("insert payment for invoice %s: %w", alloc.SaleID, err)
		}

		sale, err := st.AdjustAmountPaid(ctx, alloc.SaleID, alloc.Applied)
		if err != nil {
			return nil, fmt.Errorf("apply payment to invoice %s: %w", alloc.SaleID, err)
		}

		if movesCash {
			if err := ledger.Post(ctx, st, ledger.Transaction{
				ID:          payment.TransactionID,
				TenantID:    in.Tenant,
				AccountID:   in.Account.ID,
				Amount:      alloc.Applied,
				Type:        ledger.TxIncome,
				Category:    ledger.CategoryCollection,
				Description: fmt.Sprintf("Payment for invoice %s - %s", sale.DisplayRef(), in.Customer.Name),
				Date:        in.Date,
				PaymentID:   payment.ID,
				Operator:    in.Operator,
				CreatedAt:   in.Date,
			}); err != nil {
				return nil, err
			}
		}

		applied = append(applied, AppliedPayment{
			SaleID:        sale.ID,
			InvoiceNumber: sale.DisplayRef(),
			PaymentID:     payment.ID,
			Amount:        alloc.Applied,
			NewBalance:    sale.Pending(),
		})
	}

	return applied, nil
}

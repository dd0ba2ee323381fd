package collections

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/latidos/ledger-engine/ledger"
)

// =============================================================================
// CREDIT MANAGER - Customer store credit
// =============================================================================
// A surplus is only banked when the caller said so. Banked cash still lands
// on the receiving account as a "Customer Credit" journal line; redeeming
// credit later moves no money at all.

type CreditManager struct {
	NewID func() string
}

// BankInput describes a surplus to move into the customer's credit balance.
type BankInput struct {
	Tenant    ledger.TenantID
	Customer  *ledger.Customer
	Amount    ledger.Money
	Account   *ledger.Account // receiving account of the cash, nil when none moved
	Reference string
	Date      time.Time
	Operator  ledger.Operator
}

// Bank adds in.Amount to the customer's credit and returns the new balance.
func (m CreditManager) Bank(ctx context.Context, st ledger.Store, in BankInput) (ledger.Money, error) {
	if !in.Amount.IsPositive() {
		return 0, ledger.ErrInvalidAmount
	}

	balance, err := st.AdjustCreditBalance(ctx, in.Customer.ID, in.Amount)
	if err != nil {
		return 0, fmt.Errorf("bank surplus for customer %s: %w", in.Customer.ID, err)
	}

	if in.Account != nil {
		description := fmt.Sprintf("Credit balance deposit - %s", in.Customer.Name)
		if in.Reference != "" {
			description += " (" + in.Reference + ")"
		}
		if err := ledger.Post(ctx, st, ledger.Transaction{
			ID:          ledger.TransactionID(m.NewID()),
			TenantID:    in.Tenant,
			AccountID:   in.Account.ID,
			Amount:      in.Amount,
			Type:        ledger.TxIncome,
			Category:    ledger.CategoryCustomerCredit,
			Description: description,
			Date:        in.Date,
			Operator:    in.Operator,
			CreatedAt:   in.Date,
		}); err != nil {
			return 0, err
		}
	}

	return balance, nil
}

// Spend removes amount from the customer's credit balance.
func (m CreditManager) Spend(ctx context.Context, st ledger.Store, customer *ledger.Customer, amount ledger.Money) (ledger.Money, error) {
	balance, err := st.AdjustCreditBalance(ctx, customer.ID, -amount)
	if errors.Is(err, ledger.ErrInsufficientCredit) {
		return balance, &ledger.InsufficientCreditError{
			CustomerID: customer.ID,
			Available:  balance,
			Requested:  amount,
		}
	}
	if err != nil {
		return 0, fmt.Errorf("spend credit for customer %s: %w", customer.ID, err)
	}
	return balance, nil
}

// Refund returns amount to the customer's credit balance.
func (m CreditManager) Refund(ctx context.Context, st ledger.Store, customer *ledger.Customer, amount ledger.Money) (ledger.Money, error) {
	balance, err := st.AdjustCreditBalance(ctx, customer.ID, amount)
	if err != nil {
		return 0, fmt.Errorf("refund credit for customer %s: %w", customer.ID, err)
	}
	return balance, nil
}

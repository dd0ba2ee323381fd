package collections

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/latidos/ledger-engine/ledger"
)

// =============================================================================
// PAYMENT CORRECTIONS - Edit and delete with reversal lines
// =============================================================================
// The journal is never rewritten. Undoing a payment's cash appends an
// EXPENSE "Reversal" line; undoing a credit redemption refunds the credit.
// Both operations need a reason and leave an audit entry.

type EditPaymentRequest struct {
	Tenant    ledger.TenantID
	PaymentID ledger.PaymentID
	Amount    ledger.Money
	Method    ledger.PaymentMethod // empty keeps the current method
	AccountID ledger.AccountID     // empty keeps the current account
	Reference *string              // nil keeps the current reference
	Reason    string
	Signature *ledger.Signature
}

type DeletePaymentRequest struct {
	Tenant    ledger.TenantID
	PaymentID ledger.PaymentID
	Reason    string
	Signature *ledger.Signature
}

// paymentContext is what a correction needs to know about a payment.
type paymentContext struct {
	payment  *ledger.Payment
	sale     *ledger.Sale
	customer *ledger.Customer
}

func (s *Service) loadPaymentContext(ctx context.Context, st ledger.Store, tenant ledger.TenantID, id ledger.PaymentID) (*paymentContext, error) {
	p, err := ledger.LoadPayment(ctx, st, tenant, id)
	if err != nil {
		return nil, err
	}
	sale, err := ledger.LoadSale(ctx, st, tenant, p.SaleID)
	if err != nil {
		return nil, err
	}
	customer, err := ledger.LoadCustomer(ctx, st, tenant, sale.CustomerID)
	if err != nil {
		return nil, err
	}
	return &paymentContext{payment: p, sale: sale, customer: customer}, nil
}

// reverse undoes the effect of pc.payment on its invoice and on the money
// it moved. It returns the account touched, if any.
func (s *Service) reverse(ctx context.Context, st ledger.Store, pc *paymentContext, reason string, operator ledger.Operator, now time.Time) (ledger.AccountID, error) {
	p := pc.payment
	if _, err := st.AdjustAmountPaid(ctx, p.SaleID, -p.Amount); err != nil {
		return "", fmt.Errorf("reverse payment %s on invoice %s: %w", p.ID, p.SaleID, err)
	}

	if !p.Method.MovesCash() {
		if _, err := s.credit.Refund(ctx, st, pc.customer, p.Amount); err != nil {
			return "", err
		}
		return "", nil
	}

	if _, err := ledger.LoadPostableAccount(ctx, st, p.TenantID, p.AccountID); err != nil {
		return "", err
	}
	err := ledger.Post(ctx, st, ledger.Transaction{
		ID:          ledger.TransactionID(s.newID()),
		TenantID:    p.TenantID,
		AccountID:   p.AccountID,
		Amount:      p.Amount,
		Type:        ledger.TxExpense,
		Category:    ledger.CategoryReversal,
		Description: fmt.Sprintf("Reversal of payment for invoice %s: %s", pc.sale.DisplayRef(), reason),
		Date:        now,
		PaymentID:   p.ID,
		Operator:    operator,
		CreatedAt:   now,
	})
	if err != nil {
		return "", err
	}
	return p.AccountID, nil
}

// DeletePayment reverses a payment and removes it.
func (s *Service) DeletePayment(ctx context.Context, req DeletePaymentRequest) error {
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return ledger.ErrReasonRequired
	}
	operator, err := ledger.Sign(ctx, s.signer, req.Tenant, req.Signature)
	if err != nil {
		return err
	}

	now := s.now()
	var change ledger.Change
	err = s.store.WithTx(ctx, func(st ledger.Store) error {
		pc, err := s.loadPaymentContext(ctx, st, req.Tenant, req.PaymentID)
		if err != nil {
			return err
		}

		account, err := s.reverse(ctx, st, pc, reason, operator, now)
		if err != nil {
			return err
		}
		if err := st.DeletePayment(ctx, pc.payment.ID); err != nil {
			return fmt.Errorf("delete payment: %w", err)
		}

		change = changeFor(req.Tenant, pc.customer.ID, account)
		return st.AppendAudit(ctx, ledger.AuditEntry{
			ID:        s.newID(),
			TenantID:  req.Tenant,
			At:        now,
			Actor:     operator,
			Action:    ledger.AuditPaymentDeleted,
			SubjectID: string(pc.payment.ID),
			Reason:    reason,
			Payload:   paymentPayload(pc.payment),
		})
	})
	if err != nil {
		return err
	}

	s.notifier.Notify(ctx, change)
	s.log.Info().
		Str("tenant_id", string(req.Tenant)).
		Str("payment_id", string(req.PaymentID)).
		Str("reason", reason).
		Msg("payment deleted")
	return nil
}

// EditPayment reverses a payment and re-applies it with the corrected
// amount, method and account, keeping its id.
func (s *Service) EditPayment(ctx context.Context, req EditPaymentRequest) (*ledger.Payment, error) {
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, ledger.ErrReasonRequired
	}
	if !req.Amount.IsPositive() {
		return nil, ledger.ErrInvalidAmount
	}
	if req.Method != "" && !req.Method.Valid() {
		return nil, fmt.Errorf("%w: %q", ledger.ErrInvalidMethod, req.Method)
	}
	operator, err := ledger.Sign(ctx, s.signer, req.Tenant, req.Signature)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var updated ledger.Payment
	var change ledger.Change
	err = s.store.WithTx(ctx, func(st ledger.Store) error {
		pc, err := s.loadPaymentContext(ctx, st, req.Tenant, req.PaymentID)
		if err != nil {
			return err
		}
		before := *pc.payment

		oldAccount, err := s.reverse(ctx, st, pc, reason, operator, now)
		if err != nil {
			return err
		}

		updated = before
		updated.Amount = req.Amount
		if req.Method != "" {
			updated.Method = req.Method
		}
		if req.Reference != nil {
			updated.Reference = *req.Reference
		}
		updated.Operator = operator
		updated.TransactionID = ""
		if !updated.Method.MovesCash() {
			updated.AccountID = ""
		} else if req.AccountID != "" {
			updated.AccountID = req.AccountID
		}

		sale, err := st.AdjustAmountPaid(ctx, updated.SaleID, updated.Amount)
		if err != nil {
			return fmt.Errorf("re-apply payment %s: %w", updated.ID, err)
		}

		if updated.Method.MovesCash() {
			account, err := PostingAccount(ctx, st, req.Tenant, updated.Method, updated.AccountID)
			if err != nil {
				return err
			}
			updated.TransactionID = ledger.TransactionID(s.newID())
			if err := ledger.Post(ctx, st, ledger.Transaction{
				ID:          updated.TransactionID,
				TenantID:    req.Tenant,
				AccountID:   account.ID,
				Amount:      updated.Amount,
				Type:        ledger.TxIncome,
				Category:    ledger.CategoryCollection,
				Description: fmt.Sprintf("Corrected payment for invoice %s - %s", sale.DisplayRef(), pc.customer.Name),
				Date:        now,
				PaymentID:   updated.ID,
				Operator:    operator,
				CreatedAt:   now,
			}); err != nil {
				return err
			}
		} else if _, err := s.credit.Spend(ctx, st, pc.customer, updated.Amount); err != nil {
			return err
		}

		if err := st.UpdatePayment(ctx, updated); err != nil {
			return fmt.Errorf("update payment: %w", err)
		}

		change = changeFor(req.Tenant, pc.customer.ID, oldAccount, updated.AccountID)
		return st.AppendAudit(ctx, ledger.AuditEntry{
			ID:        s.newID(),
			TenantID:  req.Tenant,
			At:        now,
			Actor:     operator,
			Action:    ledger.AuditPaymentEdited,
			SubjectID: string(updated.ID),
			Reason:    reason,
			Payload: map[string]any{
				"before": paymentPayload(&before),
				"after":  paymentPayload(&updated),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, change)
	s.log.Info().
		Str("tenant_id", string(req.Tenant)).
		Str("payment_id", string(req.PaymentID)).
		Int64("amount", int64(updated.Amount)).
		Str("reason", reason).
		Msg("payment edited")
	return &updated, nil
}

// PaymentHistory returns the audit trail of a payment.
func (s *Service) PaymentHistory(ctx context.Context, tenant ledger.TenantID, id ledger.PaymentID) ([]ledger.AuditEntry, error) {
	return s.store.ListAudit(ctx, tenant, string(id))
}

func paymentPayload(p *ledger.Payment) map[string]any {
	return map[string]any{
		"sale_id":    string(p.SaleID),
		"amount":     int64(p.Amount),
		"method":     string(p.Method),
		"account_id": string(p.AccountID),
		"reference":  p.Reference,
	}
}

func changeFor(tenant ledger.TenantID, customer ledger.CustomerID, accounts ...ledger.AccountID) ledger.Change {
	c := ledger.Change{TenantID: tenant, Customers: []ledger.CustomerID{customer}}
	seen := map[ledger.AccountID]bool{}
	for _, a := range accounts {
		if a != "" && !seen[a] {
			seen[a] = true
			c.Accounts = append(c.Accounts, a)
		}
	}
	return c
}

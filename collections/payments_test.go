package collections_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/latidos/ledger-engine/collections"
	"github.com/latidos/ledger-engine/ledger"
	"github.com/latidos/ledger-engine/ledger/store"
)

func TestDeletePayment_ReversesCash(t *testing.T) {
	for name, newStore := range backends {
		t.Run(name, func(t *testing.T) {
			// GIVEN: A 60.00 cash payment on a 100.00 invoice
			// WHEN: The payment is deleted with a reason
			// THEN: The invoice is open again, a Reversal line brings the account
			//       back to zero, and the audit log records who and why
			f := newFixture(t, newStore(t))
			inv := f.sale("F-001", 1, 10000)
			res, err := f.pay(6000, f.cash, false)
			require.NoError(t, err)
			paymentID := res.AppliedPayments[0].PaymentID

			err = f.svc.DeletePayment(f.ctx, collections.DeletePaymentRequest{
				Tenant: f.tenant, PaymentID: paymentID, Reason: "entered twice",
			})
			require.NoError(t, err)

			assert.Equal(t, ledger.Money(0), f.getSale(inv.ID).AmountPaid)
			assert.Equal(t, ledger.Money(0), f.balance(f.cash.ID))

			lines := f.journal(f.cash.ID)
			require.Len(t, lines, 2, "the original line stays, a reversal is appended")
			assert.Equal(t, ledger.TxExpense, lines[1].Type)
			assert.Equal(t, ledger.CategoryReversal, lines[1].Category)
			assert.Contains(t, lines[1].Description, "entered twice")

			p, err := f.store.GetPayment(f.ctx, paymentID)
			require.NoError(t, err)
			assert.Nil(t, p)

			audit, err := f.store.ListAudit(f.ctx, f.tenant, string(paymentID))
			require.NoError(t, err)
			require.Len(t, audit, 1)
			assert.Equal(t, ledger.AuditPaymentDeleted, audit[0].Action)
			assert.Equal(t, "entered twice", audit[0].Reason)
			f.requireBalanced()
		})
	}
}

func TestDeletePayment_RefundsCredit(t *testing.T) {
	f := newFixture(t, backends["memory"](t))
	_, err := f.pay(3000, f.cash, true)
	require.NoError(t, err)
	f.sale("F-001", 1, 2000)

	res, err := f.svc.RedeemCreditBalance(f.ctx, collections.RedeemRequest{Tenant: f.tenant, CustomerID: f.customer.ID})
	require.NoError(t, err)
	require.Equal(t, ledger.Money(1000), f.credit())

	err = f.svc.DeletePayment(f.ctx, collections.DeletePaymentRequest{
		Tenant: f.tenant, PaymentID: res.AppliedPayments[0].PaymentID, Reason: "wrong invoice",
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.Money(3000), f.credit())
	f.requireBalanced()
}

func TestDeletePayment_RequiresReason(t *testing.T) {
	f := newFixture(t, backends["memory"](t))
	err := f.svc.DeletePayment(f.ctx, collections.DeletePaymentRequest{Tenant: f.tenant, PaymentID: "p", Reason: "  "})
	assert.ErrorIs(t, err, ledger.ErrReasonRequired)

	err = f.svc.DeletePayment(f.ctx, collections.DeletePaymentRequest{Tenant: f.tenant, PaymentID: "p", Reason: "x"})
	assert.ErrorIs(t, err, ledger.ErrPaymentNotFound)
}

func TestEditPayment_ChangesAmountAndAccount(t *testing.T) {
	for name, newStore := range backends {
		t.Run(name, func(t *testing.T) {
			// GIVEN: A 40.00 cash payment
			// WHEN: It is corrected to 55.00 by bank transfer
			// THEN: Cash is back to zero, the bank holds 55.00, the invoice shows
			//       55.00 paid and the payment keeps its id
			f := newFixture(t, newStore(t))
			inv := f.sale("F-001", 1, 10000)
			res, err := f.pay(4000, f.cash, false)
			require.NoError(t, err)
			paymentID := res.AppliedPayments[0].PaymentID

			ref := "TRX-77"
			updated, err := f.svc.EditPayment(f.ctx, collections.EditPaymentRequest{
				Tenant:    f.tenant,
				PaymentID: paymentID,
				Amount:    5500,
				Method:    ledger.MethodTransfer,
				AccountID: f.bank.ID,
				Reference: &ref,
				Reason:    "was a transfer",
			})
			require.NoError(t, err)

			assert.Equal(t, paymentID, updated.ID)
			assert.Equal(t, ledger.Money(5500), updated.Amount)
			assert.Equal(t, f.bank.ID, updated.AccountID)
			assert.Equal(t, "TRX-77", updated.Reference)

			assert.Equal(t, ledger.Money(5500), f.getSale(inv.ID).AmountPaid)
			assert.Equal(t, ledger.Money(0), f.balance(f.cash.ID))
			assert.Equal(t, ledger.Money(5500), f.balance(f.bank.ID))

			stored, err := f.store.GetPayment(f.ctx, paymentID)
			require.NoError(t, err)
			assert.Equal(t, updated.TransactionID, stored.TransactionID)

			audit, err := f.store.ListAudit(f.ctx, f.tenant, string(paymentID))
			require.NoError(t, err)
			require.Len(t, audit, 1)
			assert.Equal(t, ledger.AuditPaymentEdited, audit[0].Action)
			f.requireBalanced()
		})
	}
}

func TestEditPayment_OverpayRollsBackReversal(t *testing.T) {
	for name, newStore := range backends {
		t.Run(name, func(t *testing.T) {
			// GIVEN: A 40.00 payment on a 100.00 invoice
			// WHEN: Editing it to 150.00
			// THEN: ErrInvoiceOverpaid and the reversal written first is rolled back
			f := newFixture(t, newStore(t))
			inv := f.sale("F-001", 1, 10000)
			res, err := f.pay(4000, f.cash, false)
			require.NoError(t, err)

			_, err = f.svc.EditPayment(f.ctx, collections.EditPaymentRequest{
				Tenant:    f.tenant,
				PaymentID: res.AppliedPayments[0].PaymentID,
				Amount:    15000,
				Reason:    "typo",
			})
			require.ErrorIs(t, err, ledger.ErrInvoiceOverpaid)

			assert.Equal(t, ledger.Money(4000), f.getSale(inv.ID).AmountPaid)
			assert.Equal(t, ledger.Money(4000), f.balance(f.cash.ID))
			assert.Len(t, f.journal(f.cash.ID), 1)
			f.requireBalanced()
		})
	}
}

func TestCascade_SignedByOperator(t *testing.T) {
	// GIVEN: An operator with a PIN
	// WHEN: A payment is signed with the right PIN
	// THEN: The operator snapshot is stored on the payment and its journal line
	ledger.PINCost = bcrypt.MinCost
	mem := store.NewMemory()
	hash, err := ledger.HashPIN("2468")
	require.NoError(t, err)
	require.NoError(t, mem.SaveOperator(context.Background(), ledger.OperatorRecord{
		ID: "op-1", TenantID: "tenant-a", UserID: "user-9", Name: "Rosa", PINHash: hash, Active: true,
	}))

	f := newFixture(t, mem)
	f.svc = collections.NewService(mem, ledger.NewPINSigner(mem), nil)
	f.svc.SetClock(func() time.Time { return clock })
	inv := f.sale("F-001", 1, 1000)

	_, err = f.svc.ProcessCascadePayment(f.ctx, collections.CascadePaymentRequest{
		Tenant: f.tenant, CustomerID: f.customer.ID, Amount: 1000,
		Method: ledger.MethodCash, AccountID: f.cash.ID,
		Signature: &ledger.Signature{OperatorID: "op-1", PIN: "2468"},
	})
	require.NoError(t, err)

	payments, err := mem.ListPaymentsBySale(f.ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, "Rosa", payments[0].Operator.Name)
	assert.Equal(t, "user-9", payments[0].Operator.UserID)
	assert.Equal(t, "Rosa", f.journal(f.cash.ID)[0].Operator.Name)

	_, err = f.svc.ProcessCascadePayment(f.ctx, collections.CascadePaymentRequest{
		Tenant: f.tenant, CustomerID: f.customer.ID, Amount: 1000,
		Method: ledger.MethodCash, AccountID: f.cash.ID, AllowSurplusBanking: true,
		Signature: &ledger.Signature{OperatorID: "op-1", PIN: "0000"},
	})
	assert.ErrorIs(t, err, ledger.ErrInvalidSignature)
}

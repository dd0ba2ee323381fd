package ledger_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/latidos/ledger-engine/ledger"
)

func TestAccountClass(t *testing.T) {
	tests := []struct {
		typ    ledger.AccountType
		class  ledger.AccountClass
		method ledger.PaymentMethod
	}{
		{ledger.AccountCash, ledger.ClassCashLike, ledger.MethodCash},
		{ledger.AccountBank, ledger.ClassBankLike, ledger.MethodTransfer},
		{ledger.AccountWallet, ledger.ClassBankLike, ledger.MethodTransfer},
		{ledger.AccountCreditNote, ledger.ClassCreditNoteLike, ledger.MethodCreditNote},
		{ledger.AccountTradeIn, ledger.ClassTradeInLike, ledger.MethodTradeIn},
	}

	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			// Names are display-only: a "Cash" named bank account is still bank-like
			a := ledger.Account{Name: "Cash drawer", Type: tt.typ}
			assert.Equal(t, tt.class, a.Class())
			assert.Equal(t, tt.method, a.DefaultMethod())
			assert.True(t, ledger.MethodAllowed(tt.method, a))
		})
	}
}

func TestMethodAllowed_Mismatch(t *testing.T) {
	bank := ledger.Account{Type: ledger.AccountBank}
	assert.False(t, ledger.MethodAllowed(ledger.MethodCash, bank))
	assert.False(t, ledger.MethodAllowed(ledger.MethodCreditBalance, bank))
	assert.False(t, ledger.MethodAllowed(ledger.PaymentMethod("CHEQUE"), bank))
}

func TestDateRange(t *testing.T) {
	jan := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	r := ledger.DateRange{From: jan, To: feb}
	assert.True(t, r.Contains(jan), "bounds are inclusive")
	assert.True(t, r.Contains(feb))
	assert.False(t, r.Contains(feb.Add(time.Nanosecond)))
	assert.True(t, ledger.DateRange{}.Contains(feb), "zero range is unbounded")

	assert.ErrorIs(t, ledger.DateRange{From: feb, To: jan}.Validate(), ledger.ErrInvalidRange)
	assert.NoError(t, r.Validate())
}

func TestErrorCode(t *testing.T) {
	wrapped := fmt.Errorf("apply: %w", &ledger.NotFoundError{Kind: "invoice", ID: "s-1"})

	assert.True(t, errors.Is(wrapped, ledger.ErrInvoiceNotFound))
	assert.True(t, ledger.IsNotFound(wrapped))
	assert.False(t, ledger.IsClientError(wrapped))

	cross := &ledger.CrossTenantError{Kind: "account", ID: "a-1"}
	assert.ErrorIs(t, cross, ledger.ErrCrossTenant)
	assert.Equal(t, "cross_tenant_violation", ledger.ErrorCode(cross))

	funds := &ledger.InsufficientFundsError{AccountID: "a-1", Available: 10, Requested: 20}
	assert.ErrorIs(t, funds, ledger.ErrInsufficientFunds)
	assert.True(t, ledger.IsBusinessRule(funds))

	assert.True(t, ledger.IsRetryable(fmt.Errorf("x: %w", ledger.ErrConcurrentModification)))
	assert.Equal(t, "internal", ledger.ErrorCode(errors.New("boom")))
}

/*
errors.go - Centralized error types for the money engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Services wrap these with context; callers branch with errors.Is/As.

ERROR CATEGORIES:
  1. Validation errors - bad input, reported before any write
  2. Not-found / cross-tenant errors - treated as authorization failures
  3. Invariant violations - abort and roll back the unit of work
  4. Business outcomes - insufficient funds/credit, overpayment consent
  5. Store errors - concurrency and persistence failures

USAGE:
  if errors.Is(err, ledger.ErrInsufficientFunds) {
      var fe *ledger.InsufficientFundsError
      errors.As(err, &fe)
      ...
  }

SEE ALSO:
  - api/handlers.go: maps categories to HTTP status codes
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// Validation
	ErrInvalidAmount         = errors.New("amount must be a positive number of minor units")
	ErrInvalidRange          = errors.New("invalid date range: end before start")
	ErrInvalidMethod         = errors.New("invalid payment method")
	ErrInvalidAccountType    = errors.New("invalid account type")
	ErrInvalidInput          = errors.New("invalid input")
	ErrMissingAccount        = errors.New("account selection required")
	ErrMethodAccountMismatch = errors.New("payment method does not match account type")
	ErrSplitMismatch         = errors.New("split legs do not add up to the declared total")
	ErrSameAccount           = errors.New("account appears as both source and destination")
	ErrDuplicateLeg          = errors.New("account appears twice on the same side of a transfer")
	ErrReasonRequired        = errors.New("a reason is required")

	// Not found / isolation
	ErrCustomerNotFound = errors.New("customer not found")
	ErrInvoiceNotFound  = errors.New("invoice not found")
	ErrAccountNotFound  = errors.New("account not found")
	ErrPaymentNotFound  = errors.New("payment not found")
	ErrCrossTenant      = errors.New("resource belongs to another tenant")

	// Invariants
	ErrInvoiceOverpaid    = errors.New("invoice amount paid would exceed its total")
	ErrNegativeAmountPaid = errors.New("invoice amount paid would go negative")
	ErrDuplicateID        = errors.New("duplicate id")
	ErrAccountArchived    = errors.New("account is archived")
	ErrAccountInUse       = errors.New("account has a balance or transaction history")
	ErrNoOpenInvoices     = errors.New("no open invoices to apply the amount to")
	ErrInvalidSignature   = errors.New("operator signature could not be verified")

	// Business outcomes
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrInsufficientCredit    = errors.New("insufficient credit balance")
	ErrOverpaymentNotAllowed = errors.New("payment exceeds pending balance and surplus banking was not allowed")

	// Store
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError names the missing resource.
type NotFoundError struct {
	Kind string // "customer", "invoice", "account", "payment"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	switch e.Kind {
	case "customer":
		return ErrCustomerNotFound
	case "invoice":
		return ErrInvoiceNotFound
	case "account":
		return ErrAccountNotFound
	case "payment":
		return ErrPaymentNotFound
	}
	return nil
}

// CrossTenantError is returned when a referenced row exists under a
// different tenant. It is never reported with the foreign tenant id.
type CrossTenantError struct {
	Kind string
	ID   string
}

func (e *CrossTenantError) Error() string {
	return fmt.Sprintf("%s %s is not visible to this tenant", e.Kind, e.ID)
}

func (e *CrossTenantError) Unwrap() error { return ErrCrossTenant }

// InsufficientFundsError provides details about an account shortage.
type InsufficientFundsError struct {
	AccountID AccountID
	Available Money
	Requested Money
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds in account %s: available %s, requested %s",
		e.AccountID, e.Available, e.Requested)
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// InsufficientCreditError provides details about a credit balance shortage.
type InsufficientCreditError struct {
	CustomerID CustomerID
	Available  Money
	Requested  Money
}

func (e *InsufficientCreditError) Error() string {
	return fmt.Sprintf("insufficient credit for customer %s: available %s, requested %s",
		e.CustomerID, e.Available, e.Requested)
}

func (e *InsufficientCreditError) Unwrap() error { return ErrInsufficientCredit }

// OverpaymentError reports the surplus a caller must consent to bank.
type OverpaymentError struct {
	Leftover Money
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("payment leaves %s unallocated; retry with surplus banking allowed", e.Leftover)
}

func (e *OverpaymentError) Unwrap() error { return ErrOverpaymentNotAllowed }

// SplitMismatchError reports the sums of a malformed split transfer.
type SplitMismatchError struct {
	Sources      Money
	Destinations Money
	Declared     Money
}

func (e *SplitMismatchError) Error() string {
	return fmt.Sprintf("split mismatch: sources %s, destinations %s, declared %s",
		e.Sources, e.Destinations, e.Declared)
}

func (e *SplitMismatchError) Unwrap() error { return ErrSplitMismatch }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrInvalidMethod) ||
		errors.Is(err, ErrInvalidAccountType) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrMissingAccount) ||
		errors.Is(err, ErrMethodAccountMismatch) ||
		errors.Is(err, ErrSplitMismatch) ||
		errors.Is(err, ErrSameAccount) ||
		errors.Is(err, ErrDuplicateLeg) ||
		errors.Is(err, ErrReasonRequired) ||
		errors.Is(err, ErrDuplicateID)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCustomerNotFound) ||
		errors.Is(err, ErrInvoiceNotFound) ||
		errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrPaymentNotFound)
}

// IsBusinessRule returns true for expected outcomes the caller should
// present with a specific message (and invariant violations surfaced as such).
func IsBusinessRule(err error) bool {
	return errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrInsufficientCredit) ||
		errors.Is(err, ErrOverpaymentNotAllowed) ||
		errors.Is(err, ErrNoOpenInvoices) ||
		errors.Is(err, ErrAccountArchived) ||
		errors.Is(err, ErrAccountInUse) ||
		errors.Is(err, ErrInvoiceOverpaid) ||
		errors.Is(err, ErrNegativeAmountPaid)
}

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrInvalidAmount, "invalid_amount"},
	{ErrInvalidRange, "invalid_range"},
	{ErrInvalidMethod, "invalid_method"},
	{ErrInvalidAccountType, "invalid_account_type"},
	{ErrInvalidInput, "invalid_input"},
	{ErrMissingAccount, "missing_account"},
	{ErrMethodAccountMismatch, "method_account_mismatch"},
	{ErrSplitMismatch, "split_mismatch"},
	{ErrSameAccount, "same_account"},
	{ErrDuplicateLeg, "duplicate_leg"},
	{ErrReasonRequired, "reason_required"},
	{ErrCustomerNotFound, "customer_not_found"},
	{ErrInvoiceNotFound, "invoice_not_found"},
	{ErrAccountNotFound, "account_not_found"},
	{ErrPaymentNotFound, "payment_not_found"},
	{ErrCrossTenant, "cross_tenant_violation"},
	{ErrInvoiceOverpaid, "invoice_overpaid"},
	{ErrNegativeAmountPaid, "negative_amount_paid"},
	{ErrDuplicateID, "duplicate_id"},
	{ErrAccountArchived, "account_archived"},
	{ErrAccountInUse, "account_in_use"},
	{ErrNoOpenInvoices, "no_open_invoices"},
	{ErrInvalidSignature, "invalid_signature"},
	{ErrInsufficientFunds, "insufficient_funds"},
	{ErrInsufficientCredit, "insufficient_credit"},
	{ErrOverpaymentNotAllowed, "overpayment_not_allowed"},
	{ErrConcurrentModification, "concurrent_modification"},
}

// ErrorCode returns a stable machine-readable code for err, or "internal".
func ErrorCode(err error) string {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}

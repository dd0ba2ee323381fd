/*
Package ledger provides the core money engine for LATIDOS.

PURPOSE:
  This package holds the domain types and pure algorithms shared by the
  collections (receivables) and treasury (cash/bank) packages: invoices,
  payments, ledger accounts, journal lines, customer credit balances, the
  cascading allocator and the storage contracts they are persisted through.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: integral minor currency units (never floats)
  - Sale: an invoice owed by a customer, with a pending balance
  - Payment: money applied toward one invoice
  - Account: a named pool of funds with a cached running balance
  - Transaction: an immutable journal line against exactly one Account
  - Customer: carries the store-credit balance

DESIGN PRINCIPLES:
  1. Tenant isolation: every entity carries its TenantID and every core
     operation receives the tenant explicitly. Nothing here resolves sessions.
  2. Precision: Money is an int64 count of minor units.
  3. Cached balances: Account.Balance and Sale.AmountPaid are derived values
     kept in sync inside the same unit of work as the rows that explain them.
  4. Auditability: journal lines are append-only; corrections are reversals.

SEE ALSO:
  - money.go: parsing and formatting of Money
  - allocator.go: the FIFO cascade kernel
  - store.go: persistence contracts
*/
package ledger

import "time"

// =============================================================================
// IDENTIFIERS
// =============================================================================

type TenantID string
type CustomerID string
type SaleID string
type PaymentID string
type AccountID string
type TransactionID string
type OperatorID string

// =============================================================================
// ENUMERATIONS
// =============================================================================

// PaymentMethod is how money was tendered for a payment.
type PaymentMethod string

const (
	MethodCash          PaymentMethod = "CASH"
	MethodTransfer      PaymentMethod = "TRANSFER"
	MethodCreditNote    PaymentMethod = "CREDIT_NOTE"
	MethodTradeIn       PaymentMethod = "TRADE_IN"
	MethodCreditBalance PaymentMethod = "CREDIT_BALANCE" // customer store credit, no account movement
)

// Valid reports whether m is a known method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodTransfer, MethodCreditNote, MethodTradeIn, MethodCreditBalance:
		return true
	}
	return false
}

// MovesCash is false only for credit-balance redemptions.
func (m PaymentMethod) MovesCash() bool { return m != MethodCreditBalance }

// AccountType is the declared kind of a ledger account. It is authoritative
// for classification; account names are display-only.
type AccountType string

const (
	AccountCash       AccountType = "CASH"
	AccountBank       AccountType = "BANK"
	AccountWallet     AccountType = "WALLET"
	AccountTradeIn    AccountType = "TRADE_IN"
	AccountCreditNote AccountType = "CREDIT_NOTE"
)

func (t AccountType) Valid() bool {
	switch t {
	case AccountCash, AccountBank, AccountWallet, AccountTradeIn, AccountCreditNote:
		return true
	}
	return false
}

// TxType is the direction of a journal line.
type TxType string

const (
	TxIncome  TxType = "INCOME"
	TxExpense TxType = "EXPENSE"
)

// Journal categories written by the engine.
const (
	CategoryCollection     = "Collection"
	CategoryCustomerCredit = "Customer Credit"
	CategoryTransfer       = "Transfer"
	CategoryReversal       = "Reversal"
	CategoryOpeningBalance = "Opening Balance"
)

// =============================================================================
// OPERATOR - Signer snapshot stored on financial rows
// =============================================================================

// Operator is the verified identity that authorised a financial write.
// It is a snapshot: renaming the operator later does not rewrite history.
type Operator struct {
	ID     OperatorID
	UserID string
	Name   string
}

// IsZero reports whether no operator signed.
func (o Operator) IsZero() bool { return o.ID == "" }

// =============================================================================
// CUSTOMER
// =============================================================================

type Customer struct {
	ID            CustomerID
	TenantID      TenantID
	Name          string
	CreditBalance Money // store credit owed to the customer, never negative
	CreatedAt     time.Time
}

// =============================================================================
// SALE - Invoice owed by a customer
// =============================================================================

type Sale struct {
	ID            SaleID
	TenantID      TenantID
	CustomerID    CustomerID
	InvoiceNumber string
	Date          time.Time // aging anchor for FIFO
	Total         Money
	AmountPaid    Money // 0 <= AmountPaid <= Total
	IsVerified    bool
	CreatedAt     time.Time
}

// Pending is the outstanding balance of the invoice.
func (s Sale) Pending() Money { return s.Total - s.AmountPaid }

// IsOpen is true while money is still owed. Exact comparison, no tolerance.
func (s Sale) IsOpen() bool { return s.AmountPaid < s.Total }

// DisplayRef is the label shown to humans.
func (s Sale) DisplayRef() string {
	if s.InvoiceNumber != "" {
		return s.InvoiceNumber
	}
	return string(s.ID)
}

// =============================================================================
// PAYMENT - Money applied toward one invoice
// =============================================================================

type Payment struct {
	ID            PaymentID
	TenantID      TenantID
	SaleID        SaleID
	Amount        Money
	Method        PaymentMethod
	AccountID     AccountID     // empty for CREDIT_BALANCE
	TransactionID TransactionID // journal line that carried the cash, empty for CREDIT_BALANCE
	Reference     string
	Date          time.Time
	IsVerified    bool
	Operator      Operator
	CreatedAt     time.Time
}

// =============================================================================
// ACCOUNT - Named pool of funds
// =============================================================================

type Account struct {
	ID         AccountID
	TenantID   TenantID
	Name       string
	Type       AccountType
	Balance    Money // cached: sum of signed journal lines
	IsArchived bool
	IsDefault  bool
	CreatedAt  time.Time
}

// =============================================================================
// TRANSACTION - Immutable journal line
// =============================================================================

type Transaction struct {
	ID          TransactionID
	TenantID    TenantID
	AccountID   AccountID
	Amount      Money // always positive, direction comes from Type
	Type        TxType
	Category    string
	Description string
	Date        time.Time
	PaymentID   PaymentID // set when the line carries a payment
	ToAccountID AccountID // outgoing leg of an internal transfer
	TransferID  string    // groups every leg of one transfer
	Operator    Operator
	IsVerified  bool
	CreatedAt   time.Time
}

// Signed returns the effect of the line on its account balance.
func (t Transaction) Signed() Money {
	if t.Type == TxExpense {
		return -t.Amount
	}
	return t.Amount
}

// =============================================================================
// DATE RANGE - Inclusive reporting window, zero bounds are open
// =============================================================================

type DateRange struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

// Validate rejects ranges whose end precedes their start.
func (r DateRange) Validate() error {
	if !r.From.IsZero() && !r.To.IsZero() && r.To.Before(r.From) {
		return ErrInvalidRange
	}
	return nil
}

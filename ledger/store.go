/*
store.go - Persistence contracts for the money engine

PURPOSE:
  Defines the interface between the engine and the database. Implementations
  live in store/sqlite (production) and ledger/store (in-memory, tests).

KEY INTERFACES:
  CustomerStore: customers and their credit balance
  SaleStore:     invoices and their amount paid
  AccountStore:  ledger accounts and their cached balance
  PaymentStore:  payments applied to invoices
  JournalStore:  append-only journal lines
  AuditLog:      who changed what and why
  TxStore:       all of the above inside one atomic unit of work

LOOKUPS:
  Get* methods look rows up by id only and return (nil, nil) when the row
  does not exist. Tenant checks happen in the services so a foreign row can
  be reported as a cross-tenant violation instead of silently vanishing.
  List* methods are always tenant-scoped.

CONDITIONAL INCREMENTS:
  Adjust* methods are the only way cached values change. They apply a delta
  in place and refuse results that break the row's invariant:
  - AdjustAmountPaid:     0 <= amount_paid <= total
  - AdjustAccountBalance: balance >= 0
  - AdjustCreditBalance:  credit_balance >= 0
  Two concurrent increments can never overwrite each other.

JOURNAL:
  Transactions have no Update or Delete. Corrections are reversal lines.

SEE ALSO:
  - store/sqlite/sqlite.go: SQLite implementation
  - ledger/store/memory.go: in-memory implementation
*/
package ledger

import (
	"context"
	"time"
)

// =============================================================================
// ENTITY STORES
// =============================================================================

type CustomerStore interface {
	GetCustomer(ctx context.Context, id CustomerID) (*Customer, error)

	// SaveCustomer inserts a customer or updates its name.
	// The credit balance is only changed through AdjustCreditBalance.
	SaveCustomer(ctx context.Context, c Customer) error

	// AdjustCreditBalance adds delta and returns the new balance.
	// Fails with ErrInsufficientCredit if the result would be negative.
	AdjustCreditBalance(ctx context.Context, id CustomerID, delta Money) (Money, error)
}

type SaleStore interface {
	GetSale(ctx context.Context, id SaleID) (*Sale, error)

	// SaveSale inserts a new invoice. Fails with ErrDuplicateID on reuse.
	SaveSale(ctx context.Context, s Sale) error

	// ListSales returns the customer's invoices dated inside r, oldest first.
	ListSales(ctx context.Context, tenant TenantID, customer CustomerID, r DateRange) ([]Sale, error)

	// ListOpenSales returns invoices with amount_paid < total, oldest first,
	// ties broken by id.
	ListOpenSales(ctx context.Context, tenant TenantID, customer CustomerID) ([]Sale, error)

	// ListTenantSales returns every invoice of the tenant.
	ListTenantSales(ctx context.Context, tenant TenantID) ([]Sale, error)

	// AdjustAmountPaid adds delta to amount_paid and returns the updated row.
	// Fails with ErrInvoiceOverpaid or ErrNegativeAmountPaid.
	AdjustAmountPaid(ctx context.Context, id SaleID, delta Money) (Sale, error)

	SetSaleVerified(ctx context.Context, id SaleID, verified bool) error
}

type AccountStore interface {
	GetAccount(ctx context.Context, id AccountID) (*Account, error)

	// SaveAccount inserts an account or updates name/type/default flags.
	// The balance is only changed through AdjustAccountBalance.
	SaveAccount(ctx context.Context, a Account) error

	ListAccounts(ctx context.Context, tenant TenantID, includeArchived bool) ([]Account, error)

	// AdjustAccountBalance adds delta and returns the new balance.
	// Fails with ErrInsufficientFunds if the result would be negative.
	AdjustAccountBalance(ctx context.Context, id AccountID, delta Money) (Money, error)

	SetAccountArchived(ctx context.Context, id AccountID, archived bool) error

	// ClearDefaultAccount unsets the default flag on every tenant account.
	ClearDefaultAccount(ctx context.Context, tenant TenantID) error

	DeleteAccount(ctx context.Context, id AccountID) error
}

type PaymentStore interface {
	GetPayment(ctx context.Context, id PaymentID) (*Payment, error)
	InsertPayment(ctx context.Context, p Payment) error
	UpdatePayment(ctx context.Context, p Payment) error
	DeletePayment(ctx context.Context, id PaymentID) error

	ListPaymentsBySale(ctx context.Context, sale SaleID) ([]Payment, error)

	// ListPaymentsByCustomer returns payments on the customer's invoices,
	// dated inside r, oldest first.
	ListPaymentsByCustomer(ctx context.Context, tenant TenantID, customer CustomerID, r DateRange) ([]Payment, error)

	SetPaymentVerified(ctx context.Context, id PaymentID, verified bool) error
}

// JournalStore is APPEND-ONLY. No Update, No Delete.
type JournalStore interface {
	InsertTransaction(ctx context.Context, tx Transaction) error

	// ListTransactions returns an account's lines dated inside r, oldest first.
	ListTransactions(ctx context.Context, account AccountID, r DateRange) ([]Transaction, error)

	// ListTenantTransactions returns every journal line of the tenant.
	ListTenantTransactions(ctx context.Context, tenant TenantID) ([]Transaction, error)

	CountTransactions(ctx context.Context, account AccountID) (int, error)
}

// =============================================================================
// AUDIT LOG - Who did what, when and why
// =============================================================================

type AuditAction string

const (
	AuditPaymentEdited      AuditAction = "payment_edited"
	AuditPaymentDeleted     AuditAction = "payment_deleted"
	AuditAccountArchived    AuditAction = "account_archived"
	AuditAccountDeleted     AuditAction = "account_deleted"
	AuditVerificationToggle AuditAction = "verification_toggled"
)

// AuditEntry records a sensitive mutation. Also append-only.
type AuditEntry struct {
	ID        string
	TenantID  TenantID
	At        time.Time
	Actor     Operator
	Action    AuditAction
	SubjectID string
	Reason    string
	Payload   map[string]any
}

type AuditLog interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
	ListAudit(ctx context.Context, tenant TenantID, subjectID string) ([]AuditEntry, error)
}

// =============================================================================
// STORE - Everything the services persist through
// =============================================================================

type Store interface {
	CustomerStore
	SaleStore
	AccountStore
	PaymentStore
	JournalStore
	AuditLog
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, every write made through the view is rolled back.
	// If fn returns nil, the writes are committed together.
	WithTx(ctx context.Context, fn func(Store) error) error
}

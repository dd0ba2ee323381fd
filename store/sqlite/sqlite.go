/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements ledger.TxStore and ledger.OperatorStore using SQLite. In
  production, the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

INTERFACES IMPLEMENTED:
  ledger.Store:         customers, invoices, accounts, payments, journal, audit
  ledger.TxStore:       all of the above inside one database transaction
  ledger.OperatorStore: PIN-signing operators

APPEND-ONLY ENFORCEMENT:
  Triggers reject UPDATE and DELETE on transactions and audit_log.
  Corrections are reversal lines.

CONDITIONAL INCREMENTS:
  Cached values change with a single statement that checks the invariant
  in its WHERE clause:
    UPDATE sales SET amount_paid = amount_paid + ?
    WHERE id = ? AND amount_paid + ? BETWEEN 0 AND total
  Zero affected rows means the increment would break the invariant (or the
  row is gone) and nothing was written. CHECK constraints back this up.
  SQLite turns an overflowing integer sum into REAL, so increments also
  require typeof(... + ?) = 'integer'.

KEY TABLES:
  customers:    credit_balance >= 0
  sales:        0 <= amount_paid <= total
  accounts:     balance >= 0
  payments:     one row per invoice application
  transactions: immutable journal lines
  audit_log:    sensitive mutations with reason and JSON payload
  operators:    bcrypt PIN hashes

CONCURRENCY:
  The pool is capped at one connection, so every statement and every
  WithTx unit of work is serialised by database/sql. Transactions begin
  IMMEDIATE so the write lock is taken up front.

USAGE:
  store, err := sqlite.New("./data/latidos.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/latidos/ledger-engine/ledger"
)

// timeLayout is fixed-width so lexical order equals chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn implements every store method against a querier.
type conn struct {
	q querier
}

// Store implements all storage interfaces using SQLite.
type Store struct {
	conn
	db *sql.DB
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_txlock=immediate&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{conn: conn{q: db}, db: db}
	if err := store.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const schema = `
	CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		name TEXT NOT NULL,
		credit_balance INTEGER NOT NULL DEFAULT 0 CHECK (credit_balance >= 0),
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_customers_tenant ON customers(tenant_id);

	CREATE TABLE IF NOT EXISTS sales (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		customer_id TEXT NOT NULL REFERENCES customers(id),
		invoice_number TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL,
		total INTEGER NOT NULL CHECK (total >= 0),
		amount_paid INTEGER NOT NULL DEFAULT 0 CHECK (amount_paid >= 0 AND amount_paid <= total),
		is_verified INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	-- FIFO hot path: open invoices of one customer, oldest first
	CREATE INDEX IF NOT EXISTS idx_sales_tenant_customer_date
		ON sales(tenant_id, customer_id, date, id);

	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		balance INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0),
		is_archived INTEGER NOT NULL DEFAULT 0,
		is_default INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_tenant ON accounts(tenant_id);

	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		sale_id TEXT NOT NULL REFERENCES sales(id),
		amount INTEGER NOT NULL CHECK (amount > 0),
		method TEXT NOT NULL,
		account_id TEXT,
		transaction_id TEXT,
		reference TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL,
		is_verified INTEGER NOT NULL DEFAULT 0,
		operator_id TEXT NOT NULL DEFAULT '',
		operator_user_id TEXT NOT NULL DEFAULT '',
		operator_name TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_sale ON payments(sale_id);
	CREATE INDEX IF NOT EXISTS idx_payments_tenant_date ON payments(tenant_id, date);

	-- Journal (append-only)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		account_id TEXT NOT NULL REFERENCES accounts(id),
		amount INTEGER NOT NULL CHECK (amount > 0),
		type TEXT NOT NULL CHECK (type IN ('INCOME', 'EXPENSE')),
		category TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL,
		payment_id TEXT,
		to_account_id TEXT,
		transfer_id TEXT,
		operator_id TEXT NOT NULL DEFAULT '',
		operator_user_id TEXT NOT NULL DEFAULT '',
		operator_name TEXT NOT NULL DEFAULT '',
		is_verified INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_account_date
		ON transactions(account_id, date);
	CREATE INDEX IF NOT EXISTS idx_transactions_tenant ON transactions(tenant_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_transfer
		ON transactions(transfer_id) WHERE transfer_id IS NOT NULL;

	CREATE TRIGGER IF NOT EXISTS transactions_no_update
		BEFORE UPDATE ON transactions
		BEGIN SELECT RAISE(ABORT, 'transactions are append-only'); END;
	CREATE TRIGGER IF NOT EXISTS transactions_no_delete
		BEFORE DELETE ON transactions
		BEGIN SELECT RAISE(ABORT, 'transactions are append-only'); END;

	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		at TEXT NOT NULL,
		actor_id TEXT NOT NULL DEFAULT '',
		actor_user_id TEXT NOT NULL DEFAULT '',
		actor_name TEXT NOT NULL DEFAULT '',
		action TEXT NOT NULL,
		subject_id TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		payload_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_tenant_subject ON audit_log(tenant_id, subject_id);

	CREATE TRIGGER IF NOT EXISTS audit_log_no_update
		BEFORE UPDATE ON audit_log
		BEGIN SELECT RAISE(ABORT, 'audit_log is append-only'); END;

	CREATE TABLE IF NOT EXISTS operators (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		user_id TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL,
		pin_hash TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1
	);
`

// migrate creates the database schema.
func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store ledger.Store) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapErr(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer sqlTx.Rollback()

	if err := fn(&conn{q: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return mapErr(fmt.Errorf("failed to commit: %w", err))
	}
	return nil
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func (c *conn) GetCustomer(ctx context.Context, id ledger.CustomerID) (*ledger.Customer, error) {
	row := c.q.QueryRowContext(ctx,
		`SELECT id, tenant_id, name, credit_balance, created_at FROM customers WHERE id = ?`, id)

	var cust ledger.Customer
	var createdAt string
	err := row.Scan(&cust.ID, &cust.TenantID, &cust.Name, &cust.CreditBalance, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to get customer: %w", err))
	}
	cust.CreatedAt = parseTime(createdAt)
	return &cust, nil
}

func (c *conn) SaveCustomer(ctx context.Context, cust ledger.Customer) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO customers (id, tenant_id, name, credit_balance, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`, cust.ID, cust.TenantID, cust.Name, int64(cust.CreditBalance), formatTime(orNow(cust.CreatedAt)))
	if err != nil {
		return mapErr(fmt.Errorf("failed to save customer: %w", err))
	}
	return nil
}

func (c *conn) AdjustCreditBalance(ctx context.Context, id ledger.CustomerID, delta ledger.Money) (ledger.Money, error) {
	n, err := c.exec(ctx, `
		UPDATE customers SET credit_balance = credit_balance + ?
		WHERE id = ? AND credit_balance + ? >= 0
		  AND typeof(credit_balance + ?) = 'integer'
	`, int64(delta), id, int64(delta), int64(delta))
	if err != nil {
		return 0, fmt.Errorf("failed to adjust credit balance: %w", err)
	}

	cust, err := c.GetCustomer(ctx, id)
	if err != nil {
		return 0, err
	}
	if cust == nil {
		return 0, &ledger.NotFoundError{Kind: "customer", ID: string(id)}
	}
	if n == 0 {
		if _, err := cust.CreditBalance.Add(delta); err != nil {
			return cust.CreditBalance, err
		}
		return cust.CreditBalance, fmt.Errorf("%w: customer %s", ledger.ErrInsufficientCredit, id)
	}
	return cust.CreditBalance, nil
}

// =============================================================================
// SALES
// =============================================================================

const saleColumns = `id, tenant_id, customer_id, invoice_number, date, total, amount_paid, is_verified, created_at`

func (c *conn) GetSale(ctx context.Context, id ledger.SaleID) (*ledger.Sale, error) {
	row := c.q.QueryRowContext(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = ?`, id)
	sale, err := scanSale(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to get invoice: %w", err))
	}
	return &sale, nil
}

func (c *conn) SaveSale(ctx context.Context, s ledger.Sale) error {
	_, err := c.q.ExecContext(ctx, `INSERT INTO sales (`+saleColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.TenantID, s.CustomerID, s.InvoiceNumber, formatTime(s.Date),
		int64(s.Total), int64(s.AmountPaid), s.IsVerified, formatTime(orNow(s.CreatedAt)))
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: invoice %s", ledger.ErrDuplicateID, s.ID)
		}
		return mapErr(fmt.Errorf("failed to save invoice: %w", err))
	}
	return nil
}

func (c *conn) ListSales(ctx context.Context, tenant ledger.TenantID, customer ledger.CustomerID, r ledger.DateRange) ([]ledger.Sale, error) {
	where, args := rangeClause("date", r)
	args = append([]any{tenant, customer}, args...)
	return c.querySales(ctx, `SELECT `+saleColumns+` FROM sales
		WHERE tenant_id = ? AND customer_id = ?`+where+`
		ORDER BY date ASC, id ASC`, args...)
}

func (c *conn) ListOpenSales(ctx context.Context, tenant ledger.TenantID, customer ledger.CustomerID) ([]ledger.Sale, error) {
	return c.querySales(ctx, `SELECT `+saleColumns+` FROM sales
		WHERE tenant_id = ? AND customer_id = ? AND amount_paid < total
		ORDER BY date ASC, id ASC`, tenant, customer)
}

func (c *conn) ListTenantSales(ctx context.Context, tenant ledger.TenantID) ([]ledger.Sale, error) {
	return c.querySales(ctx, `SELECT `+saleColumns+` FROM sales
		WHERE tenant_id = ? ORDER BY date ASC, id ASC`, tenant)
}

func (c *conn) AdjustAmountPaid(ctx context.Context, id ledger.SaleID, delta ledger.Money) (ledger.Sale, error) {
	n, err := c.exec(ctx, `
		UPDATE sales SET amount_paid = amount_paid + ?
		WHERE id = ? AND amount_paid + ? BETWEEN 0 AND total
		  AND typeof(amount_paid + ?) = 'integer'
	`, int64(delta), id, int64(delta), int64(delta))
	if err != nil {
		return ledger.Sale{}, fmt.Errorf("failed to adjust amount paid: %w", err)
	}

	sale, err := c.GetSale(ctx, id)
	if err != nil {
		return ledger.Sale{}, err
	}
	if sale == nil {
		return ledger.Sale{}, &ledger.NotFoundError{Kind: "invoice", ID: string(id)}
	}
	if n == 0 {
		next, err := sale.AmountPaid.Add(delta)
		if err != nil {
			return *sale, err
		}
		if next > sale.Total {
			return *sale, fmt.Errorf("%w: invoice %s", ledger.ErrInvoiceOverpaid, id)
		}
		return *sale, fmt.Errorf("%w: invoice %s", ledger.ErrNegativeAmountPaid, id)
	}
	return *sale, nil
}

func (c *conn) SetSaleVerified(ctx context.Context, id ledger.SaleID, verified bool) error {
	n, err := c.exec(ctx, `UPDATE sales SET is_verified = ? WHERE id = ?`, verified, id)
	if err != nil {
		return fmt.Errorf("failed to set invoice verification: %w", err)
	}
	if n == 0 {
		return &ledger.NotFoundError{Kind: "invoice", ID: string(id)}
	}
	return nil
}

func (c *conn) querySales(ctx context.Context, query string, args ...any) ([]ledger.Sale, error) {
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to query invoices: %w", err))
	}
	defer rows.Close()

	var out []ledger.Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		out = append(out, sale)
	}
	return out, rows.Err()
}

func scanSale(sc scanner) (ledger.Sale, error) {
	var s ledger.Sale
	var date, createdAt string
	err := sc.Scan(&s.ID, &s.TenantID, &s.CustomerID, &s.InvoiceNumber, &date,
		&s.Total, &s.AmountPaid, &s.IsVerified, &createdAt)
	if err != nil {
		return s, err
	}
	s.Date = parseTime(date)
	s.CreatedAt = parseTime(createdAt)
	return s, nil
}

// =============================================================================
// ACCOUNTS
// =============================================================================

const accountColumns = `id, tenant_id, name, type, balance, is_archived, is_default, created_at`

func (c *conn) GetAccount(ctx context.Context, id ledger.AccountID) (*ledger.Account, error) {
	row := c.q.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to get account: %w", err))
	}
	return &a, nil
}

func (c *conn) SaveAccount(ctx context.Context, a ledger.Account) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			is_default = excluded.is_default
	`, a.ID, a.TenantID, a.Name, a.Type, int64(a.Balance), a.IsArchived, a.IsDefault,
		formatTime(orNow(a.CreatedAt)))
	if err != nil {
		return mapErr(fmt.Errorf("failed to save account: %w", err))
	}
	return nil
}

func (c *conn) ListAccounts(ctx context.Context, tenant ledger.TenantID, includeArchived bool) ([]ledger.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE tenant_id = ?`
	if !includeArchived {
		query += ` AND is_archived = 0`
	}
	query += ` ORDER BY name ASC, id ASC`

	rows, err := c.q.QueryContext(ctx, query, tenant)
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to query accounts: %w", err))
	}
	defer rows.Close()

	var out []ledger.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (c *conn) AdjustAccountBalance(ctx context.Context, id ledger.AccountID, delta ledger.Money) (ledger.Money, error) {
	n, err := c.exec(ctx, `
		UPDATE accounts SET balance = balance + ?
		WHERE id = ? AND balance + ? >= 0
		  AND typeof(balance + ?) = 'integer'
	`, int64(delta), id, int64(delta), int64(delta))
	if err != nil {
		return 0, fmt.Errorf("failed to adjust account balance: %w", err)
	}

	a, err := c.GetAccount(ctx, id)
	if err != nil {
		return 0, err
	}
	if a == nil {
		return 0, &ledger.NotFoundError{Kind: "account", ID: string(id)}
	}
	if n == 0 {
		if _, err := a.Balance.Add(delta); err != nil {
			return a.Balance, err
		}
		return a.Balance, fmt.Errorf("%w: account %s", ledger.ErrInsufficientFunds, id)
	}
	return a.Balance, nil
}

func (c *conn) SetAccountArchived(ctx context.Context, id ledger.AccountID, archived bool) error {
	n, err := c.exec(ctx, `
		UPDATE accounts SET is_archived = ?, is_default = CASE WHEN ? THEN 0 ELSE is_default END
		WHERE id = ?
	`, archived, archived, id)
	if err != nil {
		return fmt.Errorf("failed to archive account: %w", err)
	}
	if n == 0 {
		return &ledger.NotFoundError{Kind: "account", ID: string(id)}
	}
	return nil
}

func (c *conn) ClearDefaultAccount(ctx context.Context, tenant ledger.TenantID) error {
	_, err := c.exec(ctx, `UPDATE accounts SET is_default = 0 WHERE tenant_id = ? AND is_default = 1`, tenant)
	return err
}

func (c *conn) DeleteAccount(ctx context.Context, id ledger.AccountID) error {
	_, err := c.exec(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	return err
}

func scanAccount(sc scanner) (ledger.Account, error) {
	var a ledger.Account
	var createdAt string
	err := sc.Scan(&a.ID, &a.TenantID, &a.Name, &a.Type, &a.Balance, &a.IsArchived, &a.IsDefault, &createdAt)
	if err != nil {
		return a, err
	}
	a.CreatedAt = parseTime(createdAt)
	return a, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

const paymentColumns = `p.id, p.tenant_id, p.sale_id, p.amount, p.method, p.account_id, p.transaction_id,
	p.reference, p.date, p.is_verified, p.operator_id, p.operator_user_id, p.operator_name, p.created_at`

func (c *conn) GetPayment(ctx context.Context, id ledger.PaymentID) (*ledger.Payment, error) {
	row := c.q.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments p WHERE p.id = ?`, id)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to get payment: %w", err))
	}
	return &p, nil
}

func (c *conn) InsertPayment(ctx context.Context, p ledger.Payment) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO payments
		(id, tenant_id, sale_id, amount, method, account_id, transaction_id, reference, date,
		 is_verified, operator_id, operator_user_id, operator_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.TenantID, p.SaleID, int64(p.Amount), p.Method,
		nullString(string(p.AccountID)), nullString(string(p.TransactionID)),
		p.Reference, formatTime(p.Date), p.IsVerified,
		p.Operator.ID, p.Operator.UserID, p.Operator.Name, formatTime(orNow(p.CreatedAt)))
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: payment %s", ledger.ErrDuplicateID, p.ID)
		}
		if isForeignKeyError(err) {
			return &ledger.NotFoundError{Kind: "invoice", ID: string(p.SaleID)}
		}
		return mapErr(fmt.Errorf("failed to insert payment: %w", err))
	}
	return nil
}

func (c *conn) UpdatePayment(ctx context.Context, p ledger.Payment) error {
	n, err := c.exec(ctx, `
		UPDATE payments SET
			amount = ?, method = ?, account_id = ?, transaction_id = ?, reference = ?, date = ?,
			is_verified = ?, operator_id = ?, operator_user_id = ?, operator_name = ?
		WHERE id = ?
	`, int64(p.Amount), p.Method, nullString(string(p.AccountID)), nullString(string(p.TransactionID)),
		p.Reference, formatTime(p.Date), p.IsVerified,
		p.Operator.ID, p.Operator.UserID, p.Operator.Name, p.ID)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	if n == 0 {
		return &ledger.NotFoundError{Kind: "payment", ID: string(p.ID)}
	}
	return nil
}

func (c *conn) DeletePayment(ctx context.Context, id ledger.PaymentID) error {
	_, err := c.exec(ctx, `DELETE FROM payments WHERE id = ?`, id)
	return err
}

func (c *conn) ListPaymentsBySale(ctx context.Context, sale ledger.SaleID) ([]ledger.Payment, error) {
	return c.queryPayments(ctx, `SELECT `+paymentColumns+` FROM payments p
		WHERE p.sale_id = ? ORDER BY p.date ASC, p.id ASC`, sale)
}

func (c *conn) ListPaymentsByCustomer(ctx context.Context, tenant ledger.TenantID, customer ledger.CustomerID, r ledger.DateRange) ([]ledger.Payment, error) {
	where, args := rangeClause("p.date", r)
	args = append([]any{tenant, customer}, args...)
	return c.queryPayments(ctx, `SELECT `+paymentColumns+` FROM payments p
		JOIN sales s ON s.id = p.sale_id
		WHERE p.tenant_id = ? AND s.customer_id = ?`+where+`
		ORDER BY p.date ASC, p.id ASC`, args...)
}

func (c *conn) SetPaymentVerified(ctx context.Context, id ledger.PaymentID, verified bool) error {
	n, err := c.exec(ctx, `UPDATE payments SET is_verified = ? WHERE id = ?`, verified, id)
	if err != nil {
		return fmt.Errorf("failed to set payment verification: %w", err)
	}
	if n == 0 {
		return &ledger.NotFoundError{Kind: "payment", ID: string(id)}
	}
	return nil
}

func (c *conn) queryPayments(ctx context.Context, query string, args ...any) ([]ledger.Payment, error) {
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to query payments: %w", err))
	}
	defer rows.Close()

	var out []ledger.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPayment(sc scanner) (ledger.Payment, error) {
	var p ledger.Payment
	var accountID, txID sql.NullString
	var date, createdAt string
	err := sc.Scan(&p.ID, &p.TenantID, &p.SaleID, &p.Amount, &p.Method, &accountID, &txID,
		&p.Reference, &date, &p.IsVerified,
		&p.Operator.ID, &p.Operator.UserID, &p.Operator.Name, &createdAt)
	if err != nil {
		return p, err
	}
	p.AccountID = ledger.AccountID(accountID.String)
	p.TransactionID = ledger.TransactionID(txID.String)
	p.Date = parseTime(date)
	p.CreatedAt = parseTime(createdAt)
	return p, nil
}

// =============================================================================
// JOURNAL (append-only)
// =============================================================================

const txColumns = `id, tenant_id, account_id, amount, type, category, description, date,
	payment_id, to_account_id, transfer_id, operator_id, operator_user_id, operator_name,
	is_verified, created_at`

func (c *conn) InsertTransaction(ctx context.Context, tx ledger.Transaction) error {
	_, err := c.q.ExecContext(ctx, `INSERT INTO transactions (`+txColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.TenantID, tx.AccountID, int64(tx.Amount), tx.Type, tx.Category, tx.Description,
		formatTime(tx.Date), nullString(string(tx.PaymentID)), nullString(string(tx.ToAccountID)),
		nullString(tx.TransferID), tx.Operator.ID, tx.Operator.UserID, tx.Operator.Name,
		tx.IsVerified, formatTime(orNow(tx.CreatedAt)))
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: transaction %s", ledger.ErrDuplicateID, tx.ID)
		}
		if isForeignKeyError(err) {
			return &ledger.NotFoundError{Kind: "account", ID: string(tx.AccountID)}
		}
		return mapErr(fmt.Errorf("failed to append transaction: %w", err))
	}
	return nil
}

func (c *conn) ListTransactions(ctx context.Context, account ledger.AccountID, r ledger.DateRange) ([]ledger.Transaction, error) {
	where, args := rangeClause("date", r)
	args = append([]any{account}, args...)
	return c.queryTransactions(ctx, `SELECT `+txColumns+` FROM transactions
		WHERE account_id = ?`+where+` ORDER BY date ASC, rowid ASC`, args...)
}

func (c *conn) ListTenantTransactions(ctx context.Context, tenant ledger.TenantID) ([]ledger.Transaction, error) {
	return c.queryTransactions(ctx, `SELECT `+txColumns+` FROM transactions
		WHERE tenant_id = ? ORDER BY date ASC, rowid ASC`, tenant)
}

func (c *conn) CountTransactions(ctx context.Context, account ledger.AccountID) (int, error) {
	var n int
	err := c.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions WHERE account_id = ?`, account).Scan(&n)
	if err != nil {
		return 0, mapErr(fmt.Errorf("failed to count transactions: %w", err))
	}
	return n, nil
}

func (c *conn) queryTransactions(ctx context.Context, query string, args ...any) ([]ledger.Transaction, error) {
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to query transactions: %w", err))
	}
	defer rows.Close()

	var out []ledger.Transaction
	for rows.Next() {
		var tx ledger.Transaction
		var paymentID, toAccount, transferID sql.NullString
		var date, createdAt string
		err := rows.Scan(&tx.ID, &tx.TenantID, &tx.AccountID, &tx.Amount, &tx.Type, &tx.Category,
			&tx.Description, &date, &paymentID, &toAccount, &transferID,
			&tx.Operator.ID, &tx.Operator.UserID, &tx.Operator.Name, &tx.IsVerified, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		tx.PaymentID = ledger.PaymentID(paymentID.String)
		tx.ToAccountID = ledger.AccountID(toAccount.String)
		tx.TransferID = transferID.String
		tx.Date = parseTime(date)
		tx.CreatedAt = parseTime(createdAt)
		out = append(out, tx)
	}
	return out, rows.Err()
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (c *conn) AppendAudit(ctx context.Context, e ledger.AuditEntry) error {
	var payload sql.NullString
	if len(e.Payload) > 0 {
		b, err := json.Marshal(e.Payload)
		if err != nil {
			return fmt.Errorf("failed to encode audit payload: %w", err)
		}
		payload = sql.NullString{String: string(b), Valid: true}
	}

	_, err := c.q.ExecContext(ctx, `
		INSERT INTO audit_log
		(id, tenant_id, at, actor_id, actor_user_id, actor_name, action, subject_id, reason, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.TenantID, formatTime(orNow(e.At)), e.Actor.ID, e.Actor.UserID, e.Actor.Name,
		e.Action, e.SubjectID, e.Reason, payload)
	if err != nil {
		return mapErr(fmt.Errorf("failed to append audit entry: %w", err))
	}
	return nil
}

func (c *conn) ListAudit(ctx context.Context, tenant ledger.TenantID, subjectID string) ([]ledger.AuditEntry, error) {
	query := `SELECT id, tenant_id, at, actor_id, actor_user_id, actor_name, action, subject_id, reason, payload_json
		FROM audit_log WHERE tenant_id = ?`
	args := []any{tenant}
	if subjectID != "" {
		query += ` AND subject_id = ?`
		args = append(args, subjectID)
	}
	query += ` ORDER BY at ASC, rowid ASC`

	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to query audit log: %w", err))
	}
	defer rows.Close()

	var out []ledger.AuditEntry
	for rows.Next() {
		var e ledger.AuditEntry
		var at string
		var payload sql.NullString
		if err := rows.Scan(&e.ID, &e.TenantID, &at, &e.Actor.ID, &e.Actor.UserID, &e.Actor.Name,
			&e.Action, &e.SubjectID, &e.Reason, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.At = parseTime(at)
		if payload.Valid {
			if err := json.Unmarshal([]byte(payload.String), &e.Payload); err != nil {
				return nil, fmt.Errorf("failed to decode audit payload: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// OPERATORS (ledger.OperatorStore interface)
// =============================================================================

func (c *conn) GetOperator(ctx context.Context, id ledger.OperatorID) (*ledger.OperatorRecord, error) {
	var op ledger.OperatorRecord
	err := c.q.QueryRowContext(ctx,
		`SELECT id, tenant_id, user_id, name, pin_hash, active FROM operators WHERE id = ?`, id,
	).Scan(&op.ID, &op.TenantID, &op.UserID, &op.Name, &op.PINHash, &op.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to get operator: %w", err))
	}
	return &op, nil
}

func (c *conn) SaveOperator(ctx context.Context, op ledger.OperatorRecord) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO operators (id, tenant_id, user_id, name, pin_hash, active)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			name = excluded.name,
			pin_hash = excluded.pin_hash,
			active = excluded.active
	`, op.ID, op.TenantID, op.UserID, op.Name, op.PINHash, op.Active)
	if err != nil {
		return mapErr(fmt.Errorf("failed to save operator: %w", err))
	}
	return nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset drops and recreates every table (for testing/demo).
// The append-only triggers forbid DELETE, so the tables are dropped instead.
func (s *Store) Reset(ctx context.Context) error {
	tables := []string{"audit_log", "transactions", "payments", "sales", "accounts", "customers", "operators"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return fmt.Errorf("failed to drop %s: %w", table, err)
		}
	}
	return s.migrate(ctx)
}

type scanner interface {
	Scan(dest ...any) error
}

func (c *conn) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := c.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, mapErr(err)
	}
	return res.RowsAffected()
}

func rangeClause(col string, r ledger.DateRange) (string, []any) {
	var b strings.Builder
	var args []any
	if !r.From.IsZero() {
		b.WriteString(" AND " + col + " >= ?")
		args = append(args, formatTime(r.From))
	}
	if !r.To.IsZero() {
		b.WriteString(" AND " + col + " <= ?")
		args = append(args, formatTime(r.To))
	}
	return b.String(), args
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

func orNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}

func isForeignKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// mapErr turns lock contention into ErrConcurrentModification so callers
// can retry the whole unit of work.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY") {
		return fmt.Errorf("%w: %v", ledger.ErrConcurrentModification, err)
	}
	return err
}

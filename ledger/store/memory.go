// Package store provides in-memory Store implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/latidos/ledger-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements ledger.TxStore and ledger.OperatorStore.
// A single mutex serialises every call; WithTx holds it for the whole unit
// of work and restores a snapshot when fn fails.
type Memory struct {
	mu sync.Mutex
	st *state
}

type state struct {
	customers map[ledger.CustomerID]ledger.Customer
	sales     map[ledger.SaleID]ledger.Sale
	accounts  map[ledger.AccountID]ledger.Account
	payments  map[ledger.PaymentID]ledger.Payment
	journal   []ledger.Transaction
	audit     []ledger.AuditEntry
	operators map[ledger.OperatorID]ledger.OperatorRecord
}

func newState() *state {
	return &state{
		customers: make(map[ledger.CustomerID]ledger.Customer),
		sales:     make(map[ledger.SaleID]ledger.Sale),
		accounts:  make(map[ledger.AccountID]ledger.Account),
		payments:  make(map[ledger.PaymentID]ledger.Payment),
		operators: make(map[ledger.OperatorID]ledger.OperatorRecord),
	}
}

func NewMemory() *Memory {
	return &Memory{st: newState()}
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.st.clone()
	if err := fn(&view{st: m.st}); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.customers {
		c.customers[k] = v
	}
	for k, v := range s.sales {
		c.sales[k] = v
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	for k, v := range s.operators {
		c.operators[k] = v
	}
	c.journal = append([]ledger.Transaction(nil), s.journal...)
	c.audit = append([]ledger.AuditEntry(nil), s.audit...)
	return c
}

// view is the Store handed to WithTx callbacks. The lock is already held.
type view struct {
	st *state
}

// =============================================================================
// LOCKED FACADE
// =============================================================================

func (m *Memory) locked(fn func(s *state) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.st)
}

func (m *Memory) GetCustomer(_ context.Context, id ledger.CustomerID) (c *ledger.Customer, err error) {
	err = m.locked(func(s *state) error { c = s.getCustomer(id); return nil })
	return c, err
}

func (m *Memory) SaveCustomer(_ context.Context, c ledger.Customer) error {
	return m.locked(func(s *state) error { return s.saveCustomer(c) })
}

func (m *Memory) AdjustCreditBalance(_ context.Context, id ledger.CustomerID, delta ledger.Money) (bal ledger.Money, err error) {
	err = m.locked(func(s *state) error { bal, err = s.adjustCredit(id, delta); return err })
	return bal, err
}

func (m *Memory) GetSale(_ context.Context, id ledger.SaleID) (sale *ledger.Sale, err error) {
	err = m.locked(func(s *state) error { sale = s.getSale(id); return nil })
	return sale, err
}

func (m *Memory) SaveSale(_ context.Context, sale ledger.Sale) error {
	return m.locked(func(s *state) error { return s.saveSale(sale) })
}

func (m *Memory) ListSales(_ context.Context, tenant ledger.TenantID, customer ledger.CustomerID, r ledger.DateRange) (out []ledger.Sale, err error) {
	err = m.locked(func(s *state) error { out = s.listSales(tenant, customer, r, false); return nil })
	return out, err
}

func (m *Memory) ListOpenSales(_ context.Context, tenant ledger.TenantID, customer ledger.CustomerID) (out []ledger.Sale, err error) {
	err = m.locked(func(s *state) error { out = s.listSales(tenant, customer, ledger.DateRange{}, true); return nil })
	return out, err
}

func (m *Memory) ListTenantSales(_ context.Context, tenant ledger.TenantID) (out []ledger.Sale, err error) {
	err = m.locked(func(s *state) error { out = s.listSales(tenant, "", ledger.DateRange{}, false); return nil })
	return out, err
}

func (m *Memory) AdjustAmountPaid(_ context.Context, id ledger.SaleID, delta ledger.Money) (sale ledger.Sale, err error) {
	err = m.locked(func(s *state) error { sale, err = s.adjustAmountPaid(id, delta); return err })
	return sale, err
}

func (m *Memory) SetSaleVerified(_ context.Context, id ledger.SaleID, verified bool) error {
	return m.locked(func(s *state) error { return s.setSaleVerified(id, verified) })
}

func (m *Memory) GetAccount(_ context.Context, id ledger.AccountID) (a *ledger.Account, err error) {
	err = m.locked(func(s *state) error { a = s.getAccount(id); return nil })
	return a, err
}

func (m *Memory) SaveAccount(_ context.Context, a ledger.Account) error {
	return m.locked(func(s *state) error { return s.saveAccount(a) })
}

func (m *Memory) ListAccounts(_ context.Context, tenant ledger.TenantID, includeArchived bool) (out []ledger.Account, err error) {
	err = m.locked(func(s *state) error { out = s.listAccounts(tenant, includeArchived); return nil })
	return out, err
}

func (m *Memory) AdjustAccountBalance(_ context.Context, id ledger.AccountID, delta ledger.Money) (bal ledger.Money, err error) {
	err = m.locked(func(s *state) error { bal, err = s.adjustBalance(id, delta); return err })
	return bal, err
}

func (m *Memory) SetAccountArchived(_ context.Context, id ledger.AccountID, archived bool) error {
	return m.locked(func(s *state) error { return s.setArchived(id, archived) })
}

func (m *Memory) ClearDefaultAccount(_ context.Context, tenant ledger.TenantID) error {
	return m.locked(func(s *state) error { s.clearDefault(tenant); return nil })
}

func (m *Memory) DeleteAccount(_ context.Context, id ledger.AccountID) error {
	return m.locked(func(s *state) error { delete(s.accounts, id); return nil })
}

func (m *Memory) GetPayment(_ context.Context, id ledger.PaymentID) (p *ledger.Payment, err error) {
	err = m.locked(func(s *state) error { p = s.getPayment(id); return nil })
	return p, err
}

func (m *Memory) InsertPayment(_ context.Context, p ledger.Payment) error {
	return m.locked(func(s *state) error { return s.insertPayment(p) })
}

func (m *Memory) UpdatePayment(_ context.Context, p ledger.Payment) error {
	return m.locked(func(s *state) error { return s.updatePayment(p) })
}

func (m *Memory) DeletePayment(_ context.Context, id ledger.PaymentID) error {
	return m.locked(func(s *state) error { delete(s.payments, id); return nil })
}

func (m *Memory) ListPaymentsBySale(_ context.Context, sale ledger.SaleID) (out []ledger.Payment, err error) {
	err = m.locked(func(s *state) error { out = s.paymentsBySale(sale); return nil })
	return out, err
}

func (m *Memory) ListPaymentsByCustomer(_ context.Context, tenant ledger.TenantID, customer ledger.CustomerID, r ledger.DateRange) (out []ledger.Payment, err error) {
	err = m.locked(func(s *state) error { out = s.paymentsByCustomer(tenant, customer, r); return nil })
	return out, err
}

func (m *Memory) SetPaymentVerified(_ context.Context, id ledger.PaymentID, verified bool) error {
	return m.locked(func(s *state) error { return s.setPaymentVerified(id, verified) })
}

func (m *Memory) InsertTransaction(_ context.Context, tx ledger.Transaction) error {
	return m.locked(func(s *state) error { return s.insertTransaction(tx) })
}

func (m *Memory) ListTransactions(_ context.Context, account ledger.AccountID, r ledger.DateRange) (out []ledger.Transaction, err error) {
	err = m.locked(func(s *state) error { out = s.transactions(account, r); return nil })
	return out, err
}

func (m *Memory) ListTenantTransactions(_ context.Context, tenant ledger.TenantID) (out []ledger.Transaction, err error) {
	err = m.locked(func(s *state) error { out = s.tenantTransactions(tenant); return nil })
	return out, err
}

func (m *Memory) CountTransactions(_ context.Context, account ledger.AccountID) (n int, err error) {
	err = m.locked(func(s *state) error { n = len(s.transactions(account, ledger.DateRange{})); return nil })
	return n, err
}

func (m *Memory) AppendAudit(_ context.Context, e ledger.AuditEntry) error {
	return m.locked(func(s *state) error { s.audit = append(s.audit, e); return nil })
}

func (m *Memory) ListAudit(_ context.Context, tenant ledger.TenantID, subjectID string) (out []ledger.AuditEntry, err error) {
	err = m.locked(func(s *state) error { out = s.listAudit(tenant, subjectID); return nil })
	return out, err
}

func (m *Memory) GetOperator(_ context.Context, id ledger.OperatorID) (op *ledger.OperatorRecord, err error) {
	err = m.locked(func(s *state) error {
		if rec, ok := s.operators[id]; ok {
			op = &rec
		}
		return nil
	})
	return op, err
}

func (m *Memory) SaveOperator(_ context.Context, op ledger.OperatorRecord) error {
	return m.locked(func(s *state) error { s.operators[op.ID] = op; return nil })
}

// =============================================================================
// TRANSACTIONAL VIEW
// =============================================================================

func (v *view) GetCustomer(_ context.Context, id ledger.CustomerID) (*ledger.Customer, error) {
	return v.st.getCustomer(id), nil
}
func (v *view) SaveCustomer(_ context.Context, c ledger.Customer) error { return v.st.saveCustomer(c) }
func (v *view) AdjustCreditBalance(_ context.Context, id ledger.CustomerID, delta ledger.Money) (ledger.Money, error) {
	return v.st.adjustCredit(id, delta)
}
func (v *view) GetSale(_ context.Context, id ledger.SaleID) (*ledger.Sale, error) {
	return v.st.getSale(id), nil
}
func (v *view) SaveSale(_ context.Context, s ledger.Sale) error { return v.st.saveSale(s) }
func (v *view) ListSales(_ context.Context, tenant ledger.TenantID, customer ledger.CustomerID, r ledger.DateRange) ([]ledger.Sale, error) {
	return v.st.listSales(tenant, customer, r, false), nil
}
func (v *view) ListOpenSales(_ context.Context, tenant ledger.TenantID, customer ledger.CustomerID) ([]ledger.Sale, error) {
	return v.st.listSales(tenant, customer, ledger.DateRange{}, true), nil
}
func (v *view) ListTenantSales(_ context.Context, tenant ledger.TenantID) ([]ledger.Sale, error) {
	return v.st.listSales(tenant, "", ledger.DateRange{}, false), nil
}
func (v *view) AdjustAmountPaid(_ context.Context, id ledger.SaleID, delta ledger.Money) (ledger.Sale, error) {
	return v.st.adjustAmountPaid(id, delta)
}
func (v *view) SetSaleVerified(_ context.Context, id ledger.SaleID, verified bool) error {
	return v.st.setSaleVerified(id, verified)
}
func (v *view) GetAccount(_ context.Context, id ledger.AccountID) (*ledger.Account, error) {
	return v.st.getAccount(id), nil
}
func (v *view) SaveAccount(_ context.Context, a ledger.Account) error { return v.st.saveAccount(a) }
func (v *view) ListAccounts(_ context.Context, tenant ledger.TenantID, includeArchived bool) ([]ledger.Account, error) {
	return v.st.listAccounts(tenant, includeArchived), nil
}
func (v *view) AdjustAccountBalance(_ context.Context, id ledger.AccountID, delta ledger.Money) (ledger.Money, error) {
	return v.st.adjustBalance(id, delta)
}
func (v *view) SetAccountArchived(_ context.Context, id ledger.AccountID, archived bool) error {
	return v.st.setArchived(id, archived)
}
func (v *view) ClearDefaultAccount(_ context.Context, tenant ledger.TenantID) error {
	v.st.clearDefault(tenant)
	return nil
}
func (v *view) DeleteAccount(_ context.Context, id ledger.AccountID) error {
	delete(v.st.accounts, id)
	return nil
}
func (v *view) GetPayment(_ context.Context, id ledger.PaymentID) (*ledger.Payment, error) {
	return v.st.getPayment(id), nil
}
func (v *view) InsertPayment(_ context.Context, p ledger.Payment) error { return v.st.insertPayment(p) }
func (v *view) UpdatePayment(_ context.Context, p ledger.Payment) error { return v.st.updatePayment(p) }
func (v *view) DeletePayment(_ context.Context, id ledger.PaymentID) error {
	delete(v.st.payments, id)
	return nil
}
func (v *view) ListPaymentsBySale(_ context.Context, sale ledger.SaleID) ([]ledger.Payment, error) {
	return v.st.paymentsBySale(sale), nil
}
func (v *view) ListPaymentsByCustomer(_ context.Context, tenant ledger.TenantID, customer ledger.CustomerID, r ledger.DateRange) ([]ledger.Payment, error) {
	return v.st.paymentsByCustomer(tenant, customer, r), nil
}
func (v *view) SetPaymentVerified(_ context.Context, id ledger.PaymentID, verified bool) error {
	return v.st.setPaymentVerified(id, verified)
}
func (v *view) InsertTransaction(_ context.Context, tx ledger.Transaction) error {
	return v.st.insertTransaction(tx)
}
func (v *view) ListTransactions(_ context.Context, account ledger.AccountID, r ledger.DateRange) ([]ledger.Transaction, error) {
	return v.st.transactions(account, r), nil
}
func (v *view) ListTenantTransactions(_ context.Context, tenant ledger.TenantID) ([]ledger.Transaction, error) {
	return v.st.tenantTransactions(tenant), nil
}
func (v *view) CountTransactions(_ context.Context, account ledger.AccountID) (int, error) {
	return len(v.st.transactions(account, ledger.DateRange{})), nil
}
func (v *view) AppendAudit(_ context.Context, e ledger.AuditEntry) error {
	v.st.audit = append(v.st.audit, e)
	return nil
}
func (v *view) ListAudit(_ context.Context, tenant ledger.TenantID, subjectID string) ([]ledger.AuditEntry, error) {
	return v.st.listAudit(tenant, subjectID), nil
}

// =============================================================================
// STATE OPERATIONS - Caller holds the lock
// =============================================================================

func (s *state) getCustomer(id ledger.CustomerID) *ledger.Customer {
	c, ok := s.customers[id]
	if !ok {
		return nil
	}
	return &c
}

func (s *state) saveCustomer(c ledger.Customer) error {
	if existing, ok := s.customers[c.ID]; ok {
		existing.Name = c.Name
		s.customers[c.ID] = existing
		return nil
	}
	s.customers[c.ID] = c
	return nil
}

func (s *state) adjustCredit(id ledger.CustomerID, delta ledger.Money) (ledger.Money, error) {
	c, ok := s.customers[id]
	if !ok {
		return 0, &ledger.NotFoundError{Kind: "customer", ID: string(id)}
	}
	next, err := c.CreditBalance.Add(delta)
	if err != nil {
		return c.CreditBalance, err
	}
	if next < 0 {
		return c.CreditBalance, fmt.Errorf("%w: customer %s", ledger.ErrInsufficientCredit, id)
	}
	c.CreditBalance = next
	s.customers[id] = c
	return c.CreditBalance, nil
}

func (s *state) getSale(id ledger.SaleID) *ledger.Sale {
	sale, ok := s.sales[id]
	if !ok {
		return nil
	}
	return &sale
}

func (s *state) saveSale(sale ledger.Sale) error {
	if _, ok := s.sales[sale.ID]; ok {
		return fmt.Errorf("%w: invoice %s", ledger.ErrDuplicateID, sale.ID)
	}
	s.sales[sale.ID] = sale
	return nil
}

func (s *state) listSales(tenant ledger.TenantID, customer ledger.CustomerID, r ledger.DateRange, openOnly bool) []ledger.Sale {
	var out []ledger.Sale
	for _, sale := range s.sales {
		if sale.TenantID != tenant || (customer != "" && sale.CustomerID != customer) {
			continue
		}
		if openOnly && !sale.IsOpen() {
			continue
		}
		if !r.Contains(sale.Date) {
			continue
		}
		out = append(out, sale)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *state) adjustAmountPaid(id ledger.SaleID, delta ledger.Money) (ledger.Sale, error) {
	sale, ok := s.sales[id]
	if !ok {
		return ledger.Sale{}, &ledger.NotFoundError{Kind: "invoice", ID: string(id)}
	}
	next, err := sale.AmountPaid.Add(delta)
	if err != nil {
		return sale, err
	}
	if next > sale.Total {
		return sale, fmt.Errorf("%w: invoice %s", ledger.ErrInvoiceOverpaid, id)
	}
	if next < 0 {
		return sale, fmt.Errorf("%w: invoice %s", ledger.ErrNegativeAmountPaid, id)
	}
	sale.AmountPaid = next
	s.sales[id] = sale
	return sale, nil
}

func (s *state) setSaleVerified(id ledger.SaleID, verified bool) error {
	sale, ok := s.sales[id]
	if !ok {
		return &ledger.NotFoundError{Kind: "invoice", ID: string(id)}
	}
	sale.IsVerified = verified
	s.sales[id] = sale
	return nil
}

func (s *state) getAccount(id ledger.AccountID) *ledger.Account {
	a, ok := s.accounts[id]
	if !ok {
		return nil
	}
	return &a
}

func (s *state) saveAccount(a ledger.Account) error {
	if existing, ok := s.accounts[a.ID]; ok {
		existing.Name = a.Name
		existing.Type = a.Type
		existing.IsDefault = a.IsDefault
		s.accounts[a.ID] = existing
		return nil
	}
	s.accounts[a.ID] = a
	return nil
}

func (s *state) listAccounts(tenant ledger.TenantID, includeArchived bool) []ledger.Account {
	var out []ledger.Account
	for _, a := range s.accounts {
		if a.TenantID != tenant || (!includeArchived && a.IsArchived) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *state) adjustBalance(id ledger.AccountID, delta ledger.Money) (ledger.Money, error) {
	a, ok := s.accounts[id]
	if !ok {
		return 0, &ledger.NotFoundError{Kind: "account", ID: string(id)}
	}
	next, err := a.Balance.Add(delta)
	if err != nil {
		return a.Balance, err
	}
	if next < 0 {
		return a.Balance, fmt.Errorf("%w: account %s", ledger.ErrInsufficientFunds, id)
	}
	a.Balance = next
	s.accounts[id] = a
	return a.Balance, nil
}

func (s *state) setArchived(id ledger.AccountID, archived bool) error {
	a, ok := s.accounts[id]
	if !ok {
		return &ledger.NotFoundError{Kind: "account", ID: string(id)}
	}
	a.IsArchived = archived
	if archived {
		a.IsDefault = false
	}
	s.accounts[id] = a
	return nil
}

func (s *state) clearDefault(tenant ledger.TenantID) {
	for id, a := range s.accounts {
		if a.TenantID == tenant && a.IsDefault {
			a.IsDefault = false
			s.accounts[id] = a
		}
	}
}

func (s *state) getPayment(id ledger.PaymentID) *ledger.Payment {
	p, ok := s.payments[id]
	if !ok {
		return nil
	}
	return &p
}

func (s *state) insertPayment(p ledger.Payment) error {
	if _, ok := s.payments[p.ID]; ok {
		return fmt.Errorf("%w: payment %s", ledger.ErrDuplicateID, p.ID)
	}
	if _, ok := s.sales[p.SaleID]; !ok {
		return &ledger.NotFoundError{Kind: "invoice", ID: string(p.SaleID)}
	}
	s.payments[p.ID] = p
	return nil
}

func (s *state) updatePayment(p ledger.Payment) error {
	if _, ok := s.payments[p.ID]; !ok {
		return &ledger.NotFoundError{Kind: "payment", ID: string(p.ID)}
	}
	s.payments[p.ID] = p
	return nil
}

func (s *state) paymentsBySale(sale ledger.SaleID) []ledger.Payment {
	var out []ledger.Payment
	for _, p := range s.payments {
		if p.SaleID == sale {
			out = append(out, p)
		}
	}
	sortPayments(out)
	return out
}

func (s *state) paymentsByCustomer(tenant ledger.TenantID, customer ledger.CustomerID, r ledger.DateRange) []ledger.Payment {
	var out []ledger.Payment
	for _, p := range s.payments {
		sale, ok := s.sales[p.SaleID]
		if !ok || p.TenantID != tenant || sale.CustomerID != customer || !r.Contains(p.Date) {
			continue
		}
		out = append(out, p)
	}
	sortPayments(out)
	return out
}

func sortPayments(ps []ledger.Payment) {
	sort.Slice(ps, func(i, j int) bool {
		if !ps[i].Date.Equal(ps[j].Date) {
			return ps[i].Date.Before(ps[j].Date)
		}
		return ps[i].ID < ps[j].ID
	})
}

func (s *state) setPaymentVerified(id ledger.PaymentID, verified bool) error {
	p, ok := s.payments[id]
	if !ok {
		return &ledger.NotFoundError{Kind: "payment", ID: string(id)}
	}
	p.IsVerified = verified
	s.payments[id] = p
	return nil
}

func (s *state) insertTransaction(tx ledger.Transaction) error {
	for _, existing := range s.journal {
		if existing.ID == tx.ID {
			return fmt.Errorf("%w: transaction %s", ledger.ErrDuplicateID, tx.ID)
		}
	}
	if _, ok := s.accounts[tx.AccountID]; !ok {
		return &ledger.NotFoundError{Kind: "account", ID: string(tx.AccountID)}
	}

	// Binary search for insertion point keeps the journal ordered by date
	// while preserving insertion order for equal dates.
	i := sort.Search(len(s.journal), func(i int) bool {
		return s.journal[i].Date.After(tx.Date)
	})
	s.journal = append(s.journal, ledger.Transaction{})
	copy(s.journal[i+1:], s.journal[i:])
	s.journal[i] = tx
	return nil
}

func (s *state) transactions(account ledger.AccountID, r ledger.DateRange) []ledger.Transaction {
	var out []ledger.Transaction
	for _, tx := range s.journal {
		if tx.AccountID == account && r.Contains(tx.Date) {
			out = append(out, tx)
		}
	}
	return out
}

func (s *state) tenantTransactions(tenant ledger.TenantID) []ledger.Transaction {
	var out []ledger.Transaction
	for _, tx := range s.journal {
		if tx.TenantID == tenant {
			out = append(out, tx)
		}
	}
	return out
}

func (s *state) listAudit(tenant ledger.TenantID, subjectID string) []ledger.AuditEntry {
	var out []ledger.AuditEntry
	for _, e := range s.audit {
		if e.TenantID == tenant && (subjectID == "" || e.SubjectID == subjectID) {
			out = append(out, e)
		}
	}
	return out
}

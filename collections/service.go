/*
Package collections implements receivables: applying customer payments to
invoices, banking and redeeming store credit, correcting payments, and the
customer statement.

PURPOSE:
  Service is the entry point. Every mutating operation follows the same
  shape:
    1. validate the request (no I/O)
    2. verify the optional operator signature
    3. run one WithTx unit of work (resolve -> allocate -> record)
    4. after commit, notify dependents and log

OPERATIONS:
  ProcessCascadePayment: one lump sum spread oldest-invoice-first
  RedeemCreditBalance:   pay invoices out of the customer's store credit
  EditPayment:           reverse a payment and apply its corrected version
  DeletePayment:         reverse and remove a payment
  ToggleVerification:    flip the reconciled flag of an invoice or payment
  GetCustomerStatement:  chronological debit/credit projection

SEE ALSO:
  - ledger/allocator.go: the FIFO kernel
  - treasury/transfer.go: money moving between accounts
*/
package collections

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/latidos/ledger-engine/ledger"
	"github.com/latidos/ledger-engine/logger"
)

type Service struct {
	store     ledger.TxStore
	signer    ledger.Signer
	notifier  ledger.Notifier
	resolver  Resolver
	allocator ledger.CascadeAllocator
	recorder  Recorder
	credit    CreditManager
	now       func() time.Time
	newID     func() string
	log       zerolog.Logger
}

// NewService wires a collections service. signer and notifier may be nil.
func NewService(store ledger.TxStore, signer ledger.Signer, notifier ledger.Notifier) *Service {
	if notifier == nil {
		notifier = ledger.NopNotifier{}
	}
	s := &Service{
		store:    store,
		signer:   signer,
		notifier: notifier,
		now:      time.Now,
		newID:    uuid.NewString,
		log:      logger.WithComponent("collections"),
	}
	s.recorder = Recorder{NewID: s.nextID}
	s.credit = CreditManager{NewID: s.nextID}
	return s
}

// SetClock replaces the time source (for tests and demo seeding).
func (s *Service) SetClock(now func() time.Time) { s.now = now }

func (s *Service) nextID() string { return s.newID() }

// =============================================================================
// CUSTOMERS AND INVOICES
// =============================================================================

func (s *Service) CreateCustomer(ctx context.Context, tenant ledger.TenantID, name string) (*ledger.Customer, error) {
	name = strings.TrimSpace(name)
	if tenant == "" || name == "" {
		return nil, fmt.Errorf("%w: tenant and name are required", ledger.ErrInvalidInput)
	}

	c := ledger.Customer{
		ID:        ledger.CustomerID(s.newID()),
		TenantID:  tenant,
		Name:      name,
		CreatedAt: s.now(),
	}
	if err := s.store.SaveCustomer(ctx, c); err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	return &c, nil
}

func (s *Service) GetCustomer(ctx context.Context, tenant ledger.TenantID, id ledger.CustomerID) (*ledger.Customer, error) {
	return ledger.LoadCustomer(ctx, s.store, tenant, id)
}

type CreateSaleRequest struct {
	Tenant        ledger.TenantID
	CustomerID    ledger.CustomerID
	InvoiceNumber string
	Date          time.Time // zero means now
	Total         ledger.Money
}

func (s *Service) CreateSale(ctx context.Context, req CreateSaleRequest) (*ledger.Sale, error) {
	if !req.Total.IsPositive() {
		return nil, ledger.ErrInvalidAmount
	}
	if _, err := ledger.LoadCustomer(ctx, s.store, req.Tenant, req.CustomerID); err != nil {
		return nil, err
	}

	now := s.now()
	date := req.Date
	if date.IsZero() {
		date = now
	}
	sale := ledger.Sale{
		ID:            ledger.SaleID(s.newID()),
		TenantID:      req.Tenant,
		CustomerID:    req.CustomerID,
		InvoiceNumber: strings.TrimSpace(req.InvoiceNumber),
		Date:          date,
		Total:         req.Total,
		CreatedAt:     now,
	}
	if err := s.store.SaveSale(ctx, sale); err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}

	s.notifier.Notify(ctx, ledger.Change{TenantID: req.Tenant, Customers: []ledger.CustomerID{req.CustomerID}})
	return &sale, nil
}

func (s *Service) GetSale(ctx context.Context, tenant ledger.TenantID, id ledger.SaleID) (*ledger.Sale, []ledger.Payment, error) {
	sale, err := ledger.LoadSale(ctx, s.store, tenant, id)
	if err != nil {
		return nil, nil, err
	}
	payments, err := s.store.ListPaymentsBySale(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("list payments: %w", err)
	}
	return sale, payments, nil
}

// PendingInvoices lists the customer's open invoices in allocation order.
func (s *Service) PendingInvoices(ctx context.Context, tenant ledger.TenantID, customer ledger.CustomerID) ([]ledger.PendingInvoice, error) {
	return s.resolver.ByCustomer(ctx, s.store, tenant, customer)
}

// =============================================================================
// CASCADE PAYMENT
// =============================================================================

type CascadePaymentRequest struct {
	Tenant     ledger.TenantID
	CustomerID ledger.CustomerID
	Amount     ledger.Money
	InvoiceIDs []ledger.SaleID // empty means every open invoice
	Method     ledger.PaymentMethod
	AccountID  ledger.AccountID
	Reference  string

	// AllowSurplusBanking must be set for any leftover to become credit.
	// Without it a payment larger than the pending total is rejected.
	AllowSurplusBanking bool

	Signature *ledger.Signature
}

func (r CascadePaymentRequest) validate() error {
	if !r.Amount.IsPositive() {
		return ledger.ErrInvalidAmount
	}
	if !r.Method.Valid() {
		return fmt.Errorf("%w: %q", ledger.ErrInvalidMethod, r.Method)
	}
	if !r.Method.MovesCash() {
		return fmt.Errorf("%w: use credit redemption to pay from the credit balance", ledger.ErrInvalidMethod)
	}
	if r.AccountID == "" {
		return ledger.ErrMissingAccount
	}
	return nil
}

type CascadeResult struct {
	AppliedPayments []AppliedPayment
	RemainingCredit ledger.Money // surplus banked by this payment
	CreditBalance   ledger.Money // customer credit after the payment
}

// ProcessCascadePayment spreads req.Amount over the customer's open invoices,
// oldest first, and banks any surplus when allowed.
func (s *Service) ProcessCascadePayment(ctx context.Context, req CascadePaymentRequest) (*CascadeResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	operator, err := ledger.Sign(ctx, s.signer, req.Tenant, req.Signature)
	if err != nil {
		return nil, err
	}

	now := s.now()
	result := &CascadeResult{}

	err = s.store.WithTx(ctx, func(st ledger.Store) error {
		customer, err := ledger.LoadCustomer(ctx, st, req.Tenant, req.CustomerID)
		if err != nil {
			return err
		}
		account, err := PostingAccount(ctx, st, req.Tenant, req.Method, req.AccountID)
		if err != nil {
			return err
		}

		invoices, err := s.resolver.Resolve(ctx, st, req.Tenant, req.CustomerID, req.InvoiceIDs)
		if err != nil {
			return err
		}
		plan, err := s.allocator.Allocate(invoices, req.Amount)
		if err != nil {
			return err
		}
		if plan.Leftover.IsPositive() && !req.AllowSurplusBanking {
			return &ledger.OverpaymentError{Leftover: plan.Leftover}
		}

		result.AppliedPayments, err = s.recorder.Apply(ctx, st, ApplyInput{
			Tenant:    req.Tenant,
			Customer:  customer,
			Plan:      plan,
			Method:    req.Method,
			Account:   account,
			Reference: req.Reference,
			Date:      now,
			Operator:  operator,
		})
		if err != nil {
			return err
		}

		result.CreditBalance = customer.CreditBalance
		if plan.Leftover.IsPositive() {
			result.CreditBalance, err = s.credit.Bank(ctx, st, BankInput{
				Tenant:    req.Tenant,
				Customer:  customer,
				Amount:    plan.Leftover,
				Account:   account,
				Reference: req.Reference,
				Date:      now,
				Operator:  operator,
			})
			if err != nil {
				return err
			}
			result.RemainingCredit = plan.Leftover
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, ledger.Change{
		TenantID:  req.Tenant,
		Customers: []ledger.CustomerID{req.CustomerID},
		Accounts:  []ledger.AccountID{req.AccountID},
	})
	s.log.Info().
		Str("tenant_id", string(req.Tenant)).
		Str("customer_id", string(req.CustomerID)).
		Str("account_id", string(req.AccountID)).
		Str("method", string(req.Method)).
		Int64("amount", int64(req.Amount)).
		Int("payments", len(result.AppliedPayments)).
		Int64("banked", int64(result.RemainingCredit)).
		Msg("cascade payment applied")

	return result, nil
}

// =============================================================================
// CREDIT REDEMPTION
// =============================================================================

type RedeemRequest struct {
	Tenant     ledger.TenantID
	CustomerID ledger.CustomerID
	Amount     *ledger.Money   // nil means all available credit
	InvoiceIDs []ledger.SaleID // empty means every open invoice
	Reference  string
	Signature  *ledger.Signature
}

type RedeemResult struct {
	AppliedPayments []AppliedPayment
	TotalRedeemed   ledger.Money
	CreditBalance   ledger.Money
}

// RedeemCreditBalance pays open invoices out of the customer's credit.
// Credit the invoices cannot absorb stays on the balance.
func (s *Service) RedeemCreditBalance(ctx context.Context, req RedeemRequest) (*RedeemResult, error) {
	if req.Amount != nil && !req.Amount.IsPositive() {
		return nil, ledger.ErrInvalidAmount
	}
	operator, err := ledger.Sign(ctx, s.signer, req.Tenant, req.Signature)
	if err != nil {
		return nil, err
	}

	now := s.now()
	result := &RedeemResult{}

	err = s.store.WithTx(ctx, func(st ledger.Store) error {
		customer, err := ledger.LoadCustomer(ctx, st, req.Tenant, req.CustomerID)
		if err != nil {
			return err
		}

		available := customer.CreditBalance
		if !available.IsPositive() {
			return fmt.Errorf("%w: customer %s has no credit", ledger.ErrInsufficientCredit, customer.ID)
		}
		requested := available
		if req.Amount != nil {
			requested = *req.Amount
		}
		if requested > available {
			return &ledger.InsufficientCreditError{
				CustomerID: customer.ID,
				Available:  available,
				Requested:  requested,
			}
		}

		invoices, err := s.resolver.Resolve(ctx, st, req.Tenant, req.CustomerID, req.InvoiceIDs)
		if err != nil {
			return err
		}
		if len(invoices) == 0 {
			return ledger.ErrNoOpenInvoices
		}

		plan, err := s.allocator.Allocate(invoices, requested)
		if err != nil {
			return err
		}

		result.AppliedPayments, err = s.recorder.Apply(ctx, st, ApplyInput{
			Tenant:    req.Tenant,
			Customer:  customer,
			Plan:      plan,
			Method:    ledger.MethodCreditBalance,
			Reference: req.Reference,
			Date:      now,
			Operator:  operator,
		})
		if err != nil {
			return err
		}

		result.TotalRedeemed, err = plan.TotalApplied()
		if err != nil {
			return err
		}
		result.CreditBalance, err = s.credit.Spend(ctx, st, customer, result.TotalRedeemed)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, ledger.Change{TenantID: req.Tenant, Customers: []ledger.CustomerID{req.CustomerID}})
	s.log.Info().
		Str("tenant_id", string(req.Tenant)).
		Str("customer_id", string(req.CustomerID)).
		Int64("redeemed", int64(result.TotalRedeemed)).
		Int64("credit_balance", int64(result.CreditBalance)).
		Msg("credit balance redeemed")

	return result, nil
}

/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the domain model from the external API contract.

MONEY:
  Amounts travel as integral minor units (int64 cents). Responses add a
  *_display string in major units for humans; it is never parsed back.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done by the services. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/latidos/ledger-engine/collections"
	"github.com/latidos/ledger-engine/ledger"
	"github.com/latidos/ledger-engine/treasury"
)

const dateLayout = "2006-01-02"

// =============================================================================
// SHARED
// =============================================================================

// SignatureDTO is the optional operator PIN signature on mutating requests.
type SignatureDTO struct {
	OperatorID string `json:"operator_id"`
	PIN        string `json:"pin"`
}

func (s *SignatureDTO) toDomain() *ledger.Signature {
	if s == nil || s.OperatorID == "" {
		return nil
	}
	return &ledger.Signature{OperatorID: ledger.OperatorID(s.OperatorID), PIN: s.PIN}
}

type OperatorDTO struct {
	ID     string `json:"id"`
	UserID string `json:"user_id,omitempty"`
	Name   string `json:"name"`
}

func toOperatorDTO(o ledger.Operator) *OperatorDTO {
	if o.IsZero() {
		return nil
	}
	return &OperatorDTO{ID: string(o.ID), UserID: o.UserID, Name: o.Name}
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// =============================================================================
// CUSTOMERS AND SALES
// =============================================================================

type CreateCustomerRequest struct {
	Name string `json:"name"`
}

type CustomerDTO struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	CreditBalance        int64  `json:"credit_balance"`
	CreditBalanceDisplay string `json:"credit_balance_display"`
	CreatedAt            string `json:"created_at,omitempty"`
}

func toCustomerDTO(c *ledger.Customer) CustomerDTO {
	return CustomerDTO{
		ID:                   string(c.ID),
		Name:                 c.Name,
		CreditBalance:        int64(c.CreditBalance),
		CreditBalanceDisplay: c.CreditBalance.String(),
		CreatedAt:            formatTime(c.CreatedAt),
	}
}

type CreateSaleRequest struct {
	CustomerID    string `json:"customer_id"`
	InvoiceNumber string `json:"invoice_number"`
	Date          string `json:"date"` // YYYY-MM-DD or RFC3339, empty = now
	Total         int64  `json:"total"`
}

type SaleDTO struct {
	ID            string       `json:"id"`
	CustomerID    string       `json:"customer_id"`
	InvoiceNumber string       `json:"invoice_number,omitempty"`
	Date          string       `json:"date"`
	Total         int64        `json:"total"`
	AmountPaid    int64        `json:"amount_paid"`
	Pending       int64        `json:"pending"`
	IsVerified    bool         `json:"is_verified"`
	Payments      []PaymentDTO `json:"payments,omitempty"`
}

func toSaleDTO(s *ledger.Sale) SaleDTO {
	return SaleDTO{
		ID:            string(s.ID),
		CustomerID:    string(s.CustomerID),
		InvoiceNumber: s.InvoiceNumber,
		Date:          formatTime(s.Date),
		Total:         int64(s.Total),
		AmountPaid:    int64(s.AmountPaid),
		Pending:       int64(s.Pending()),
		IsVerified:    s.IsVerified,
	}
}

type PendingInvoiceDTO struct {
	SaleID        string `json:"sale_id"`
	InvoiceNumber string `json:"invoice_number"`
	Date          string `json:"date"`
	Pending       int64  `json:"pending"`
}

type PaymentDTO struct {
	ID            string       `json:"id"`
	SaleID        string       `json:"sale_id"`
	Amount        int64        `json:"amount"`
	Method        string       `json:"method"`
	AccountID     string       `json:"account_id,omitempty"`
	TransactionID string       `json:"transaction_id,omitempty"`
	Reference     string       `json:"reference,omitempty"`
	Date          string       `json:"date"`
	IsVerified    bool         `json:"is_verified"`
	Operator      *OperatorDTO `json:"operator,omitempty"`
}

func toPaymentDTO(p *ledger.Payment) PaymentDTO {
	return PaymentDTO{
		ID:            string(p.ID),
		SaleID:        string(p.SaleID),
		Amount:        int64(p.Amount),
		Method:        string(p.Method),
		AccountID:     string(p.AccountID),
		TransactionID: string(p.TransactionID),
		Reference:     p.Reference,
		Date:          formatTime(p.Date),
		IsVerified:    p.IsVerified,
		Operator:      toOperatorDTO(p.Operator),
	}
}

// =============================================================================
// PAYMENTS
// =============================================================================

type CascadePaymentRequest struct {
	Amount              int64         `json:"amount"`
	InvoiceIDs          []string      `json:"invoice_ids,omitempty"`
	Method              string        `json:"method"`
	AccountID           string        `json:"account_id"`
	Reference           string        `json:"reference,omitempty"`
	AllowSurplusBanking bool          `json:"allow_surplus_banking"`
	Signature           *SignatureDTO `json:"signature,omitempty"`
}

type RedeemCreditRequest struct {
	Amount     *int64        `json:"amount,omitempty"` // omitted = all available credit
	InvoiceIDs []string      `json:"invoice_ids,omitempty"`
	Reference  string        `json:"reference,omitempty"`
	Signature  *SignatureDTO `json:"signature,omitempty"`
}

type AppliedPaymentDTO struct {
	SaleID        string `json:"sale_id"`
	InvoiceNumber string `json:"invoice_number"`
	PaymentID     string `json:"payment_id"`
	Amount        int64  `json:"amount"`
	NewBalance    int64  `json:"new_balance"`
}

func toAppliedDTOs(applied []collections.AppliedPayment) []AppliedPaymentDTO {
	out := make([]AppliedPaymentDTO, len(applied))
	for i, a := range applied {
		out[i] = AppliedPaymentDTO{
			SaleID:        string(a.SaleID),
			InvoiceNumber: a.InvoiceNumber,
			PaymentID:     string(a.PaymentID),
			Amount:        int64(a.Amount),
			NewBalance:    int64(a.NewBalance),
		}
	}
	return out
}

type CascadeResultDTO struct {
	Success         bool                `json:"success"`
	AppliedPayments []AppliedPaymentDTO `json:"applied_payments"`
	RemainingCredit int64               `json:"remaining_credit"`
	CreditBalance   int64               `json:"credit_balance"`
}

type RedeemResultDTO struct {
	Success         bool                `json:"success"`
	AppliedPayments []AppliedPaymentDTO `json:"applied_payments"`
	TotalRedeemed   int64               `json:"total_redeemed"`
	CreditBalance   int64               `json:"credit_balance"`
}

type EditPaymentRequest struct {
	Amount    int64         `json:"amount"`
	Method    string        `json:"method,omitempty"`
	AccountID string        `json:"account_id,omitempty"`
	Reference *string       `json:"reference,omitempty"`
	Reason    string        `json:"reason"`
	Signature *SignatureDTO `json:"signature,omitempty"`
}

type DeletePaymentRequest struct {
	Reason    string        `json:"reason"`
	Signature *SignatureDTO `json:"signature,omitempty"`
}

type AuditEntryDTO struct {
	ID        string         `json:"id"`
	At        string         `json:"at"`
	Actor     *OperatorDTO   `json:"actor,omitempty"`
	Action    string         `json:"action"`
	SubjectID string         `json:"subject_id"`
	Reason    string         `json:"reason,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
}

func toAuditDTOs(entries []ledger.AuditEntry) []AuditEntryDTO {
	out := make([]AuditEntryDTO, len(entries))
	for i, e := range entries {
		out[i] = AuditEntryDTO{
			ID:        e.ID,
			At:        formatTime(e.At),
			Actor:     toOperatorDTO(e.Actor),
			Action:    string(e.Action),
			SubjectID: e.SubjectID,
			Reason:    e.Reason,
			Payload:   e.Payload,
		}
	}
	return out
}

type VerificationRequest struct {
	Signature *SignatureDTO `json:"signature,omitempty"`
}

// =============================================================================
// STATEMENT
// =============================================================================

type MovementDTO struct {
	Date       string `json:"date"`
	Kind       string `json:"kind"`
	Source     string `json:"source"`
	SourceID   string `json:"source_id"`
	Reference  string `json:"reference"`
	Debit      int64  `json:"debit"`
	Credit     int64  `json:"credit"`
	Balance    int64  `json:"balance"`
	IsVerified bool   `json:"is_verified"`
	Method     string `json:"method,omitempty"`
}

type StatementDTO struct {
	Customer  CustomerDTO   `json:"customer"`
	From      string        `json:"from,omitempty"`
	To        string        `json:"to,omitempty"`
	Movements []MovementDTO `json:"movements"`
	Summary   struct {
		TotalDebit    int64 `json:"total_debit"`
		TotalCredit   int64 `json:"total_credit"`
		Balance       int64 `json:"balance"`
		CreditBalance int64 `json:"credit_balance"`
	} `json:"summary"`
}

func toStatementDTO(s *collections.Statement) StatementDTO {
	dto := StatementDTO{
		Customer:  toCustomerDTO(&s.Customer),
		From:      formatTime(s.Range.From),
		To:        formatTime(s.Range.To),
		Movements: make([]MovementDTO, len(s.Movements)),
	}
	for i, m := range s.Movements {
		dto.Movements[i] = MovementDTO{
			Date:       formatTime(m.Date),
			Kind:       string(m.Kind),
			Source:     string(m.Source),
			SourceID:   m.SourceID,
			Reference:  m.Reference,
			Debit:      int64(m.Debit),
			Credit:     int64(m.Credit),
			Balance:    int64(m.Balance),
			IsVerified: m.IsVerified,
			Method:     string(m.Method),
		}
	}
	dto.Summary.TotalDebit = int64(s.Summary.TotalDebit)
	dto.Summary.TotalCredit = int64(s.Summary.TotalCredit)
	dto.Summary.Balance = int64(s.Summary.Balance)
	dto.Summary.CreditBalance = int64(s.Summary.CreditBalance)
	return dto
}

// =============================================================================
// ACCOUNTS AND TRANSFERS
// =============================================================================

type CreateAccountRequest struct {
	Name           string        `json:"name"`
	Type           string        `json:"type"`
	IsDefault      bool          `json:"is_default"`
	OpeningBalance int64         `json:"opening_balance"`
	Signature      *SignatureDTO `json:"signature,omitempty"`
}

type AccountLifecycleRequest struct {
	Reason    string        `json:"reason"`
	Signature *SignatureDTO `json:"signature,omitempty"`
}

type AccountDTO struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Type           string `json:"type"`
	Class          string `json:"class"`
	Balance        int64  `json:"balance"`
	BalanceDisplay string `json:"balance_display"`
	IsArchived     bool   `json:"is_archived"`
	IsDefault      bool   `json:"is_default"`
}

func toAccountDTO(a *ledger.Account) AccountDTO {
	return AccountDTO{
		ID:             string(a.ID),
		Name:           a.Name,
		Type:           string(a.Type),
		Class:          string(a.Class()),
		Balance:        int64(a.Balance),
		BalanceDisplay: a.Balance.String(),
		IsArchived:     a.IsArchived,
		IsDefault:      a.IsDefault,
	}
}

type TransactionDTO struct {
	ID          string       `json:"id"`
	AccountID   string       `json:"account_id"`
	Amount      int64        `json:"amount"`
	Type        string       `json:"type"`
	Category    string       `json:"category"`
	Description string       `json:"description"`
	Date        string       `json:"date"`
	PaymentID   string       `json:"payment_id,omitempty"`
	ToAccountID string       `json:"to_account_id,omitempty"`
	TransferID  string       `json:"transfer_id,omitempty"`
	Operator    *OperatorDTO `json:"operator,omitempty"`
}

func toTransactionDTO(tx ledger.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:          string(tx.ID),
		AccountID:   string(tx.AccountID),
		Amount:      int64(tx.Amount),
		Type:        string(tx.Type),
		Category:    tx.Category,
		Description: tx.Description,
		Date:        formatTime(tx.Date),
		PaymentID:   string(tx.PaymentID),
		ToAccountID: string(tx.ToAccountID),
		TransferID:  tx.TransferID,
		Operator:    toOperatorDTO(tx.Operator),
	}
}

func toTransactionDTOs(txs []ledger.Transaction) []TransactionDTO {
	out := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		out[i] = toTransactionDTO(tx)
	}
	return out
}

type AccountDetailsDTO struct {
	Account      AccountDTO       `json:"account"`
	Transactions []TransactionDTO `json:"transactions"`
	Period       struct {
		Income  int64 `json:"income"`
		Expense int64 `json:"expense"`
		Net     int64 `json:"net"`
	} `json:"period_summary"`
}

func toAccountDetailsDTO(d *treasury.AccountDetails) AccountDetailsDTO {
	dto := AccountDetailsDTO{
		Account:      toAccountDTO(&d.Account),
		Transactions: toTransactionDTOs(d.Transactions),
	}
	dto.Period.Income = int64(d.Period.Income)
	dto.Period.Expense = int64(d.Period.Expense)
	dto.Period.Net = int64(d.Period.Net)
	return dto
}

type TransferRequest struct {
	FromAccountID string        `json:"from_account_id"`
	ToAccountID   string        `json:"to_account_id"`
	Amount        int64         `json:"amount"`
	Description   string        `json:"description,omitempty"`
	Signature     *SignatureDTO `json:"signature,omitempty"`
}

type LegDTO struct {
	AccountID string `json:"account_id"`
	Amount    int64  `json:"amount"`
}

type SplitTransferRequest struct {
	Sources      []LegDTO      `json:"sources"`
	Destinations []LegDTO      `json:"destinations"`
	TotalAmount  int64         `json:"total_amount"`
	Description  string        `json:"description,omitempty"`
	Signature    *SignatureDTO `json:"signature,omitempty"`
}

func toLegs(dtos []LegDTO) []treasury.Leg {
	out := make([]treasury.Leg, len(dtos))
	for i, l := range dtos {
		out[i] = treasury.Leg{AccountID: ledger.AccountID(l.AccountID), Amount: ledger.Money(l.Amount)}
	}
	return out
}

type TransferResultDTO struct {
	Success      bool             `json:"success"`
	TransferID   string           `json:"transfer_id"`
	Transactions []TransactionDTO `json:"transactions"`
	Balances     map[string]int64 `json:"balances"`
}

func toTransferResultDTO(r *treasury.TransferResult) TransferResultDTO {
	dto := TransferResultDTO{
		Success:      true,
		TransferID:   r.TransferID,
		Transactions: toTransactionDTOs(r.Transactions),
		Balances:     make(map[string]int64, len(r.Balances)),
	}
	for id, b := range r.Balances {
		dto.Balances[string(id)] = int64(b)
	}
	return dto
}

// =============================================================================
// INTEGRITY
// =============================================================================

type DiscrepancyDTO struct {
	Kind     string `json:"kind"`
	ID       string `json:"id"`
	Name     string `json:"name"`
	Cached   int64  `json:"cached"`
	Computed int64  `json:"computed"`
}

type IntegrityReportDTO struct {
	OK              bool             `json:"ok"`
	CheckedAccounts int              `json:"checked_accounts"`
	CheckedInvoices int              `json:"checked_invoices"`
	Discrepancies   []DiscrepancyDTO `json:"discrepancies"`
}

func toIntegrityDTO(r *treasury.IntegrityReport) IntegrityReportDTO {
	dto := IntegrityReportDTO{
		OK:              r.OK(),
		CheckedAccounts: r.CheckedAccounts,
		CheckedInvoices: r.CheckedInvoices,
		Discrepancies:   make([]DiscrepancyDTO, len(r.Discrepancies)),
	}
	for i, d := range r.Discrepancies {
		dto.Discrepancies[i] = DiscrepancyDTO{
			Kind: string(d.Kind), ID: d.ID, Name: d.Name,
			Cached: int64(d.Cached), Computed: int64(d.Computed),
		}
	}
	return dto
}

// =============================================================================
// SCENARIOS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

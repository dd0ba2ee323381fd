/*
handlers.go - HTTP API handlers for the collections and treasury engine

PURPOSE:
  Exposes the payment engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the collections and treasury
  services. The tenant always comes from the bearer token, never the body.

ENDPOINTS:
  Customers:
    POST   /api/customers                      Create customer
    GET    /api/customers/{id}                 Customer with credit balance
    GET    /api/customers/{id}/pending         Open invoices in allocation order
    POST   /api/customers/{id}/payments        Cascade a payment over invoices
    POST   /api/customers/{id}/credit/redeem   Pay invoices from store credit
    GET    /api/customers/{id}/statement       Debit/credit statement (?from=&to=)

  Sales:
    POST   /api/sales                          Create invoice
    GET    /api/sales/{id}                     Invoice with its payments

  Payments:
    PUT    /api/payments/{id}                  Correct a payment (reason required)
    DELETE /api/payments/{id}                  Delete a payment (reason required)
    GET    /api/payments/{id}/history          Audit entries of a payment

  Accounts and transfers:
    GET    /api/accounts                       List accounts (?include_archived=true)
    POST   /api/accounts                       Create account
    GET    /api/accounts/{id}                  Lines and period summary (?from=&to=)
    POST   /api/accounts/{id}/archive          Archive account
    DELETE /api/accounts/{id}                  Delete an unused account
    POST   /api/transfers                      One-to-one transfer
    POST   /api/transfers/split                Many-to-many transfer

  Reconciliation:
    POST   /api/verification/{kind}/{id}       Toggle verified flag (kind: sale|payment)
    GET    /api/integrity                      Cached balances vs. journal

ERROR HANDLING:
  Failures are {success:false, code, error, details} with status:
  - 400: Validation errors, invalid input
  - 401: Missing or invalid token
  - 403: Cross-tenant reference, bad operator signature
  - 404: Resource not found
  - 409: Concurrent modification, duplicate id
  - 422: Business rule (insufficient funds/credit, overpayment, archived)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/latidos/ledger-engine/collections"
	"github.com/latidos/ledger-engine/ledger"
	"github.com/latidos/ledger-engine/logger"
	"github.com/latidos/ledger-engine/treasury"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store       ledger.TxStore
	Collections *collections.Service
	Treasury    *treasury.Service
	Cache       *ProjectionCache
	Seeder      *Seeder

	log zerolog.Logger
}

// NewHandler wires both services to store. The cache is notified of every
// committed change. signer may be nil.
func NewHandler(store ledger.TxStore, signer ledger.Signer, cache *ProjectionCache) *Handler {
	if cache == nil {
		cache = &ProjectionCache{}
	}
	h := &Handler{
		Store:       store,
		Collections: collections.NewService(store, signer, cache),
		Treasury:    treasury.NewService(store, signer, cache),
		Cache:       cache,
		log:         logger.WithComponent("api"),
	}
	h.Seeder = &Seeder{Collections: h.Collections, Treasury: h.Treasury}
	return h
}

// SetClock replaces the time source of both services.
func (h *Handler) SetClock(now func() time.Time) {
	h.Collections.SetClock(now)
	h.Treasury.SetClock(now)
	h.Seeder.Now = now
}

// Health reports whether the store answers.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.Store.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(r.Context()); err != nil {
			writeFailure(w, http.StatusServiceUnavailable, "unavailable", "database unreachable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// CUSTOMER HANDLERS
// =============================================================================

func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CreateCustomerRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := h.Collections.CreateCustomer(r.Context(), tenantOf(r), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCustomerDTO(c))
}

func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := h.Collections.GetCustomer(r.Context(), tenantOf(r), ledger.CustomerID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerDTO(c))
}

func (h *Handler) PendingInvoices(w http.ResponseWriter, r *http.Request) {
	tenant := tenantOf(r)
	id := ledger.CustomerID(chi.URLParam(r, "id"))
	if _, err := h.Collections.GetCustomer(r.Context(), tenant, id); err != nil {
		writeError(w, err)
		return
	}
	pending, err := h.Collections.PendingInvoices(r.Context(), tenant, id)
	if err != nil {
		writeError(w, err)
		return
	}

	dtos := make([]PendingInvoiceDTO, len(pending))
	for i, p := range pending {
		dtos[i] = PendingInvoiceDTO{
			SaleID:        string(p.SaleID),
			InvoiceNumber: p.InvoiceNumber,
			Date:          formatTime(p.Date),
			Pending:       int64(p.Pending),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ProcessPayment applies one lump sum to the customer's invoices.
func (h *Handler) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	var req CascadePaymentRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.Collections.ProcessCascadePayment(r.Context(), collections.CascadePaymentRequest{
		Tenant:              tenantOf(r),
		CustomerID:          ledger.CustomerID(chi.URLParam(r, "id")),
		Amount:              ledger.Money(req.Amount),
		InvoiceIDs:          saleIDs(req.InvoiceIDs),
		Method:              ledger.PaymentMethod(req.Method),
		AccountID:           ledger.AccountID(req.AccountID),
		Reference:           req.Reference,
		AllowSurplusBanking: req.AllowSurplusBanking,
		Signature:           req.Signature.toDomain(),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, CascadeResultDTO{
		Success:         true,
		AppliedPayments: toAppliedDTOs(res.AppliedPayments),
		RemainingCredit: int64(res.RemainingCredit),
		CreditBalance:   int64(res.CreditBalance),
	})
}

func (h *Handler) RedeemCredit(w http.ResponseWriter, r *http.Request) {
	var req RedeemCreditRequest
	if !decode(w, r, &req) {
		return
	}

	var amount *ledger.Money
	if req.Amount != nil {
		m := ledger.Money(*req.Amount)
		amount = &m
	}
	res, err := h.Collections.RedeemCreditBalance(r.Context(), collections.RedeemRequest{
		Tenant:     tenantOf(r),
		CustomerID: ledger.CustomerID(chi.URLParam(r, "id")),
		Amount:     amount,
		InvoiceIDs: saleIDs(req.InvoiceIDs),
		Reference:  req.Reference,
		Signature:  req.Signature.toDomain(),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, RedeemResultDTO{
		Success:         true,
		AppliedPayments: toAppliedDTOs(res.AppliedPayments),
		TotalRedeemed:   int64(res.TotalRedeemed),
		CreditBalance:   int64(res.CreditBalance),
	})
}

func (h *Handler) GetStatement(w http.ResponseWriter, r *http.Request) {
	rng, err := parseRange(r)
	if err != nil {
		writeError(w, err)
		return
	}
	tenant := tenantOf(r)
	id := ledger.CustomerID(chi.URLParam(r, "id"))

	dto, err := cached(h.Cache, statementKey(tenant, id, rng), func() (StatementDTO, error) {
		st, err := h.Collections.GetCustomerStatement(r.Context(), tenant, id, rng)
		if err != nil {
			return StatementDTO{}, err
		}
		return toStatementDTO(st), nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// SALE HANDLERS
// =============================================================================

func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request) {
	var req CreateSaleRequest
	if !decode(w, r, &req) {
		return
	}
	date, err := parseTime(req.Date, false)
	if err != nil {
		writeError(w, err)
		return
	}

	sale, err := h.Collections.CreateSale(r.Context(), collections.CreateSaleRequest{
		Tenant:        tenantOf(r),
		CustomerID:    ledger.CustomerID(req.CustomerID),
		InvoiceNumber: req.InvoiceNumber,
		Date:          date,
		Total:         ledger.Money(req.Total),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSaleDTO(sale))
}

func (h *Handler) GetSale(w http.ResponseWriter, r *http.Request) {
	sale, payments, err := h.Collections.GetSale(r.Context(), tenantOf(r), ledger.SaleID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, err)
		return
	}
	dto := toSaleDTO(sale)
	for i := range payments {
		dto.Payments = append(dto.Payments, toPaymentDTO(&payments[i]))
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// PAYMENT CORRECTION HANDLERS
// =============================================================================

func (h *Handler) EditPayment(w http.ResponseWriter, r *http.Request) {
	var req EditPaymentRequest
	if !decode(w, r, &req) {
		return
	}

	p, err := h.Collections.EditPayment(r.Context(), collections.EditPaymentRequest{
		Tenant:    tenantOf(r),
		PaymentID: ledger.PaymentID(chi.URLParam(r, "id")),
		Amount:    ledger.Money(req.Amount),
		Method:    ledger.PaymentMethod(req.Method),
		AccountID: ledger.AccountID(req.AccountID),
		Reference: req.Reference,
		Reason:    req.Reason,
		Signature: req.Signature.toDomain(),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentDTO(p))
}

func (h *Handler) DeletePayment(w http.ResponseWriter, r *http.Request) {
	var req DeletePaymentRequest
	if !decode(w, r, &req) {
		return
	}

	err := h.Collections.DeletePayment(r.Context(), collections.DeletePaymentRequest{
		Tenant:    tenantOf(r),
		PaymentID: ledger.PaymentID(chi.URLParam(r, "id")),
		Reason:    req.Reason,
		Signature: req.Signature.toDomain(),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) PaymentHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Collections.PaymentHistory(r.Context(), tenantOf(r), ledger.PaymentID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuditDTOs(entries))
}

func (h *Handler) ToggleVerification(w http.ResponseWriter, r *http.Request) {
	var req VerificationRequest
	if !decode(w, r, &req) {
		return
	}

	verified, err := h.Collections.ToggleVerification(r.Context(), tenantOf(r),
		collections.VerificationKind(chi.URLParam(r, "kind")), chi.URLParam(r, "id"), req.Signature.toDomain())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"is_verified": verified})
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	includeArchived, _ := strconv.ParseBool(r.URL.Query().Get("include_archived"))
	accounts, err := h.Treasury.ListAccounts(r.Context(), tenantOf(r), includeArchived)
	if err != nil {
		writeError(w, err)
		return
	}
	dtos := make([]AccountDTO, len(accounts))
	for i := range accounts {
		dtos[i] = toAccountDTO(&accounts[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if !decode(w, r, &req) {
		return
	}

	a, err := h.Treasury.CreateAccount(r.Context(), treasury.CreateAccountRequest{
		Tenant:         tenantOf(r),
		Name:           req.Name,
		Type:           ledger.AccountType(req.Type),
		IsDefault:      req.IsDefault,
		OpeningBalance: ledger.Money(req.OpeningBalance),
		Signature:      req.Signature.toDomain(),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountDTO(a))
}

func (h *Handler) GetAccountDetails(w http.ResponseWriter, r *http.Request) {
	rng, err := parseRange(r)
	if err != nil {
		writeError(w, err)
		return
	}
	tenant := tenantOf(r)
	id := ledger.AccountID(chi.URLParam(r, "id"))

	dto, err := cached(h.Cache, accountKey(tenant, id, rng), func() (AccountDetailsDTO, error) {
		d, err := h.Treasury.GetAccountDetails(r.Context(), tenant, id, rng)
		if err != nil {
			return AccountDetailsDTO{}, err
		}
		return toAccountDetailsDTO(d), nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

func (h *Handler) ArchiveAccount(w http.ResponseWriter, r *http.Request) {
	var req AccountLifecycleRequest
	if !decode(w, r, &req) {
		return
	}
	err := h.Treasury.ArchiveAccount(r.Context(), tenantOf(r), ledger.AccountID(chi.URLParam(r, "id")), req.Reason, req.Signature.toDomain())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	var req AccountLifecycleRequest
	if !decode(w, r, &req) {
		return
	}
	err := h.Treasury.DeleteAccount(r.Context(), tenantOf(r), ledger.AccountID(chi.URLParam(r, "id")), req.Reason, req.Signature.toDomain())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.Treasury.TransferFunds(r.Context(), treasury.TransferRequest{
		Tenant:      tenantOf(r),
		From:        ledger.AccountID(req.FromAccountID),
		To:          ledger.AccountID(req.ToAccountID),
		Amount:      ledger.Money(req.Amount),
		Description: req.Description,
		Signature:   req.Signature.toDomain(),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransferResultDTO(res))
}

func (h *Handler) SplitTransfer(w http.ResponseWriter, r *http.Request) {
	var req SplitTransferRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.Treasury.SplitTransferFunds(r.Context(), treasury.SplitTransferRequest{
		Tenant:       tenantOf(r),
		Sources:      toLegs(req.Sources),
		Destinations: toLegs(req.Destinations),
		TotalAmount:  ledger.Money(req.TotalAmount),
		Description:  req.Description,
		Signature:    req.Signature.toDomain(),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransferResultDTO(res))
}

func (h *Handler) CheckIntegrity(w http.ResponseWriter, r *http.Request) {
	report, err := h.Treasury.CheckIntegrity(r.Context(), tenantOf(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toIntegrityDTO(report))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeFailure(w http.ResponseWriter, status int, code, message string, err error) {
	resp := ErrorResponse{Success: false, Code: code, Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeError maps a service error onto a status and a stable code.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		l := logger.WithComponent("api")
		l.Error().Err(err).Msg("request failed")
		message = "internal error"
	}
	writeFailure(w, status, ledger.ErrorCode(err), message, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrCrossTenant), errors.Is(err, ledger.ErrInvalidSignature):
		return http.StatusForbidden
	case ledger.IsNotFound(err):
		return http.StatusNotFound
	case ledger.IsRetryable(err), errors.Is(err, ledger.ErrDuplicateID):
		return http.StatusConflict
	case ledger.IsBusinessRule(err):
		return http.StatusUnprocessableEntity
	case ledger.IsClientError(err):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// decode reads a JSON body into v. An empty body leaves v at its zero value.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeFailure(w, http.StatusBadRequest, ledger.ErrorCode(ledger.ErrInvalidInput), "invalid request body", err)
		return false
	}
	return true
}

func saleIDs(ids []string) []ledger.SaleID {
	if len(ids) == 0 {
		return nil
	}
	out := make([]ledger.SaleID, len(ids))
	for i, id := range ids {
		out[i] = ledger.SaleID(id)
	}
	return out
}

// parseTime accepts YYYY-MM-DD or RFC3339. A bare date used as an upper
// bound covers the whole day.
func parseTime(s string, endOfDay bool) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", ledger.ErrInvalidInput, s)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

func parseRange(r *http.Request) (ledger.DateRange, error) {
	q := r.URL.Query()
	from, err := parseTime(q.Get("from"), false)
	if err != nil {
		return ledger.DateRange{}, err
	}
	to, err := parseTime(q.Get("to"), true)
	if err != nil {
		return ledger.DateRange{}, err
	}
	rng := ledger.DateRange{From: from, To: to}
	return rng, rng.Validate()
}

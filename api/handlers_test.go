/*
handlers_test.go - HTTP tests for the API surface

Tests for:
- Bearer token enforcement and tenant scoping
- Cascade payment and credit redemption through the router
- Error body shape and status mapping
- Projection cache invalidation after writes
- Scenario loading
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latidos/ledger-engine/ledger"
	"github.com/latidos/ledger-engine/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const testSecret = "test-secret-0123456789"

var testClock = time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)

type apiFixture struct {
	t       *testing.T
	handler *Handler
	router  http.Handler
	auth    *Authenticator
	token   string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	cache, err := NewProjectionCache(64)
	require.NoError(t, err)

	h := NewHandler(store.NewMemory(), nil, cache)
	h.SetClock(func() time.Time { return testClock })

	auth := NewAuthenticator(testSecret, "latidos")
	f := &apiFixture{
		t:       t,
		handler: h,
		router:  NewRouter(h, RouterOptions{Auth: auth}),
		auth:    auth,
	}
	f.token = f.tokenFor("org-a")
	return f
}

func (f *apiFixture) tokenFor(tenant ledger.TenantID) string {
	f.t.Helper()
	tok, err := f.auth.Issue(tenant, "user-1", "Ana", time.Hour)
	require.NoError(f.t, err)
	return tok
}

func (f *apiFixture) doAs(token, method, path string, body any) *httptest.ResponseRecorder {
	f.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(f.t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) do(method, path string, body any) *httptest.ResponseRecorder {
	return f.doAs(f.token, method, path, body)
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (f *apiFixture) createAccount(name string, typ ledger.AccountType, opening int64) AccountDTO {
	f.t.Helper()
	rec := f.do(http.MethodPost, "/api/accounts", CreateAccountRequest{Name: name, Type: string(typ), OpeningBalance: opening})
	require.Equal(f.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[AccountDTO](f.t, rec)
}

func (f *apiFixture) createCustomer(name string) CustomerDTO {
	f.t.Helper()
	rec := f.do(http.MethodPost, "/api/customers", CreateCustomerRequest{Name: name})
	require.Equal(f.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[CustomerDTO](f.t, rec)
}

func (f *apiFixture) createSale(customer, number, date string, total int64) SaleDTO {
	f.t.Helper()
	rec := f.do(http.MethodPost, "/api/sales", CreateSaleRequest{CustomerID: customer, InvoiceNumber: number, Date: date, Total: total})
	require.Equal(f.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[SaleDTO](f.t, rec)
}

// =============================================================================
// AUTH
// =============================================================================

func TestAuth_RejectsMissingAndInvalidTokens(t *testing.T) {
	f := newAPIFixture(t)

	tests := []struct {
		name  string
		token string
	}{
		{"missing", ""},
		{"garbage", "not-a-jwt"},
		{"wrong secret", func() string {
			tok, err := NewAuthenticator("another-secret-987654", "latidos").Issue("org-a", "u", "", time.Hour)
			require.NoError(t, err)
			return tok
		}()},
		{"wrong issuer", func() string {
			tok, err := NewAuthenticator(testSecret, "someone-else").Issue("org-a", "u", "", time.Hour)
			require.NoError(t, err)
			return tok
		}()},
		{"expired", func() string {
			a := NewAuthenticator(testSecret, "latidos")
			a.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
			tok, err := a.Issue("org-a", "u", "", time.Hour)
			require.NoError(t, err)
			return tok
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.doAs(tt.token, http.MethodGet, "/api/accounts", nil)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			body := decodeBody[ErrorResponse](t, rec)
			assert.False(t, body.Success)
			assert.Equal(t, "unauthorized", body.Code)
		})
	}
}

func TestAuth_IssueRequiresTenant(t *testing.T) {
	_, err := NewAuthenticator(testSecret, "").Issue("", "u", "", time.Hour)
	assert.ErrorIs(t, err, ErrNoTenant)
}

func TestAuth_ParseReturnsPrincipal(t *testing.T) {
	a := NewAuthenticator(testSecret, "latidos")
	tok, err := a.Issue("org-7", "user-9", "Bea", time.Minute)
	require.NoError(t, err)

	p, err := a.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, Principal{Tenant: "org-7", UserID: "user-9", Name: "Bea"}, p)
}

func TestHealth_IsPublic(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.doAs("", http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Content-Type"))
}

func TestTenantScoping_OtherTenantCannotReadCustomer(t *testing.T) {
	// GIVEN: A customer owned by org-a
	f := newAPIFixture(t)
	c := f.createCustomer("Lucia Perez")

	// WHEN: org-b asks for it
	rec := f.doAs(f.tokenFor("org-b"), http.MethodGet, "/api/customers/"+c.ID, nil)

	// THEN: 403 cross-tenant, and the list of accounts for org-b is empty
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "cross_tenant_violation", decodeBody[ErrorResponse](t, rec).Code)

	rec = f.doAs(f.tokenFor("org-b"), http.MethodGet, "/api/accounts", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[[]AccountDTO](t, rec))
}

// =============================================================================
// PAYMENTS
// =============================================================================

func TestProcessPayment_OverpaymentBanksCredit(t *testing.T) {
	// GIVEN: Two open invoices totalling 500.00
	f := newAPIFixture(t)
	cash := f.createAccount("Caja", ledger.AccountCash, 0)
	c := f.createCustomer("Lucia Perez")
	older := f.createSale(c.ID, "F-001", "2025-01-10", 20000)
	newer := f.createSale(c.ID, "F-002", "2025-02-10", 30000)

	// WHEN: 700.00 is paid with surplus banking
	rec := f.do(http.MethodPost, "/api/customers/"+c.ID+"/payments", CascadePaymentRequest{
		Amount: 70000, Method: "CASH", AccountID: cash.ID, AllowSurplusBanking: true,
	})

	// THEN: Both invoices settle oldest first and 200.00 becomes credit
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decodeBody[CascadeResultDTO](t, rec)
	assert.True(t, res.Success)
	require.Len(t, res.AppliedPayments, 2)
	assert.Equal(t, older.ID, res.AppliedPayments[0].SaleID)
	assert.Equal(t, int64(20000), res.AppliedPayments[0].Amount)
	assert.Equal(t, newer.ID, res.AppliedPayments[1].SaleID)
	assert.Equal(t, int64(0), res.AppliedPayments[1].NewBalance)
	assert.Equal(t, int64(20000), res.RemainingCredit)
	assert.Equal(t, int64(20000), res.CreditBalance)

	rec = f.do(http.MethodGet, "/api/customers/"+c.ID, nil)
	assert.Equal(t, int64(20000), decodeBody[CustomerDTO](t, rec).CreditBalance)

	rec = f.do(http.MethodGet, "/api/customers/"+c.ID+"/pending", nil)
	assert.Empty(t, decodeBody[[]PendingInvoiceDTO](t, rec))

	rec = f.do(http.MethodGet, "/api/accounts/"+cash.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	details := decodeBody[AccountDetailsDTO](t, rec)
	assert.Equal(t, int64(70000), details.Account.Balance)

	rec = f.do(http.MethodGet, "/api/integrity", nil)
	assert.True(t, decodeBody[IntegrityReportDTO](t, rec).OK)
}

func TestProcessPayment_ErrorMapping(t *testing.T) {
	f := newAPIFixture(t)
	cash := f.createAccount("Caja", ledger.AccountCash, 0)
	bank := f.createAccount("Banco", ledger.AccountBank, 0)
	c := f.createCustomer("Lucia Perez")
	f.createSale(c.ID, "F-001", "", 10000)

	tests := []struct {
		name     string
		path     string
		body     any
		wantCode int
		wantErr  string
	}{
		{
			name:     "surplus without banking",
			path:     "/api/customers/" + c.ID + "/payments",
			body:     CascadePaymentRequest{Amount: 15000, Method: "CASH", AccountID: cash.ID},
			wantCode: http.StatusUnprocessableEntity,
			wantErr:  "overpayment_not_allowed",
		},
		{
			name:     "zero amount",
			path:     "/api/customers/" + c.ID + "/payments",
			body:     CascadePaymentRequest{Amount: 0, Method: "CASH", AccountID: cash.ID},
			wantCode: http.StatusBadRequest,
			wantErr:  "invalid_amount",
		},
		{
			name:     "method does not fit account",
			path:     "/api/customers/" + c.ID + "/payments",
			body:     CascadePaymentRequest{Amount: 5000, Method: "CASH", AccountID: bank.ID},
			wantCode: http.StatusBadRequest,
			wantErr:  "method_account_mismatch",
		},
		{
			name:     "unknown customer",
			path:     "/api/customers/nobody/payments",
			body:     CascadePaymentRequest{Amount: 5000, Method: "CASH", AccountID: cash.ID},
			wantCode: http.StatusNotFound,
			wantErr:  "customer_not_found",
		},
		{
			name:     "malformed body",
			path:     "/api/customers/" + c.ID + "/payments",
			body:     `{"amount": "lots"}`,
			wantCode: http.StatusBadRequest,
			wantErr:  "invalid_input",
		},
		{
			name:     "unknown field",
			path:     "/api/customers/" + c.ID + "/payments",
			body:     `{"amount": 100, "tenant_id": "org-b"}`,
			wantCode: http.StatusBadRequest,
			wantErr:  "invalid_input",
		},
		{
			name:     "redeem without credit",
			path:     "/api/customers/" + c.ID + "/credit/redeem",
			body:     RedeemCreditRequest{},
			wantCode: http.StatusUnprocessableEntity,
			wantErr:  "insufficient_credit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			body := decodeBody[ErrorResponse](t, rec)
			assert.False(t, body.Success)
			assert.Equal(t, tt.wantErr, body.Code)
			assert.NotEmpty(t, body.Error)
		})
	}

	// Nothing above may have moved money
	rec := f.do(http.MethodGet, "/api/accounts", nil)
	for _, a := range decodeBody[[]AccountDTO](t, rec) {
		assert.Zero(t, a.Balance, a.Name)
	}
}

func TestPaymentCorrection_EditAndDeleteAreAudited(t *testing.T) {
	// GIVEN: A 100.00 payment against a 300.00 invoice
	f := newAPIFixture(t)
	cash := f.createAccount("Caja", ledger.AccountCash, 0)
	c := f.createCustomer("Lucia Perez")
	sale := f.createSale(c.ID, "F-001", "", 30000)

	rec := f.do(http.MethodPost, "/api/customers/"+c.ID+"/payments", CascadePaymentRequest{
		Amount: 10000, Method: "CASH", AccountID: cash.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	paymentID := decodeBody[CascadeResultDTO](t, rec).AppliedPayments[0].PaymentID

	// WHEN: The edit omits a reason
	rec = f.do(http.MethodPut, "/api/payments/"+paymentID, EditPaymentRequest{Amount: 12000})

	// THEN: It is rejected
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "reason_required", decodeBody[ErrorResponse](t, rec).Code)

	// WHEN: The amount is corrected with a reason
	rec = f.do(http.MethodPut, "/api/payments/"+paymentID, EditPaymentRequest{Amount: 12000, Reason: "typo"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(12000), decodeBody[PaymentDTO](t, rec).Amount)

	rec = f.do(http.MethodGet, "/api/sales/"+sale.ID, nil)
	got := decodeBody[SaleDTO](t, rec)
	assert.Equal(t, int64(12000), got.AmountPaid)
	require.Len(t, got.Payments, 1)

	// WHEN: The payment is deleted
	rec = f.do(http.MethodDelete, "/api/payments/"+paymentID, DeletePaymentRequest{Reason: "duplicate"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN: The invoice is open again and history shows both actions
	rec = f.do(http.MethodGet, "/api/sales/"+sale.ID, nil)
	assert.Equal(t, int64(0), decodeBody[SaleDTO](t, rec).AmountPaid)

	rec = f.do(http.MethodGet, "/api/payments/"+paymentID+"/history", nil)
	history := decodeBody[[]AuditEntryDTO](t, rec)
	require.Len(t, history, 2)
	assert.Equal(t, "typo", history[0].Reason)
	assert.Equal(t, "duplicate", history[1].Reason)

	rec = f.do(http.MethodGet, "/api/integrity", nil)
	assert.True(t, decodeBody[IntegrityReportDTO](t, rec).OK)
}

func TestToggleVerification(t *testing.T) {
	f := newAPIFixture(t)
	c := f.createCustomer("Lucia Perez")
	sale := f.createSale(c.ID, "F-001", "", 1000)

	rec := f.do(http.MethodPost, "/api/verification/sale/"+sale.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, map[string]bool{"is_verified": true}, decodeBody[map[string]bool](t, rec))

	rec = f.do(http.MethodPost, "/api/verification/sale/"+sale.ID, nil)
	assert.Equal(t, map[string]bool{"is_verified": false}, decodeBody[map[string]bool](t, rec))

	rec = f.do(http.MethodPost, "/api/verification/invoice/"+sale.ID, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// STATEMENT AND CACHE
// =============================================================================

func TestStatement_CacheInvalidatedByPayment(t *testing.T) {
	// GIVEN: A statement read once, which fills the cache
	f := newAPIFixture(t)
	cash := f.createAccount("Caja", ledger.AccountCash, 0)
	c := f.createCustomer("Lucia Perez")
	f.createSale(c.ID, "F-001", "2025-03-01", 20000)

	path := "/api/customers/" + c.ID + "/statement?from=2025-03-01&to=2025-03-31"
	rec := f.do(http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decodeBody[StatementDTO](t, rec)
	assert.Len(t, first.Movements, 1)
	assert.Equal(t, 1, f.handler.Cache.Len())

	// WHEN: A payment lands
	rec = f.do(http.MethodPost, "/api/customers/"+c.ID+"/payments", CascadePaymentRequest{
		Amount: 5000, Method: "CASH", AccountID: cash.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// THEN: The cached statement was dropped and the next read sees the payment
	assert.Equal(t, 0, f.handler.Cache.Len())
	rec = f.do(http.MethodGet, path, nil)
	second := decodeBody[StatementDTO](t, rec)
	assert.Len(t, second.Movements, 2)
	assert.Equal(t, int64(15000), second.Summary.Balance)
}

func TestStatement_InvalidRange(t *testing.T) {
	f := newAPIFixture(t)
	c := f.createCustomer("Lucia Perez")

	rec := f.do(http.MethodGet, "/api/customers/"+c.ID+"/statement?from=2025-04-01&to=2025-03-01", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_range", decodeBody[ErrorResponse](t, rec).Code)

	rec = f.do(http.MethodGet, "/api/customers/"+c.ID+"/statement?from=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_input", decodeBody[ErrorResponse](t, rec).Code)
}

func TestProjectionCache_DisabledAndKeyed(t *testing.T) {
	off, err := NewProjectionCache(0)
	require.NoError(t, err)
	loads := 0
	load := func() (int, error) { loads++; return loads, nil }

	v, _ := cached(off, "k", load)
	v2, _ := cached(off, "k", load)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, v2)
	off.Notify(context.Background(), ledger.Change{})
	off.Purge()
	assert.Zero(t, off.Len())

	on, err := NewProjectionCache(8)
	require.NoError(t, err)
	rng := ledger.DateRange{}
	key := statementKey("t1", "c1", rng)
	_, _ = cached(on, key, load)
	_, _ = cached(on, accountKey("t1", "a1", rng), load)
	assert.Equal(t, 2, on.Len())

	// A change in another tenant leaves both
	on.Notify(context.Background(), ledger.Change{TenantID: "t2", Customers: []ledger.CustomerID{"c1"}})
	assert.Equal(t, 2, on.Len())

	on.Notify(context.Background(), ledger.Change{TenantID: "t1", Accounts: []ledger.AccountID{"a1"}})
	assert.Equal(t, 1, on.Len())
	got, _ := cached(on, key, func() (int, error) { return -1, nil })
	assert.Equal(t, 3, got)

	_, err = cached(on, "failing", func() (int, error) { return 0, errors.New("boom") })
	assert.Error(t, err)
	assert.Equal(t, 1, on.Len())
}

// =============================================================================
// ACCOUNTS AND TRANSFERS
// =============================================================================

func TestSplitTransfer_ThroughRouter(t *testing.T) {
	f := newAPIFixture(t)
	cash := f.createAccount("Caja", ledger.AccountCash, 50000)
	wallet := f.createAccount("Yape", ledger.AccountWallet, 20000)
	bank := f.createAccount("Banco", ledger.AccountBank, 0)

	rec := f.do(http.MethodPost, "/api/transfers/split", SplitTransferRequest{
		Sources:      []LegDTO{{AccountID: cash.ID, Amount: 30000}, {AccountID: wallet.ID, Amount: 10000}},
		Destinations: []LegDTO{{AccountID: bank.ID, Amount: 40000}},
		TotalAmount:  40000,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decodeBody[TransferResultDTO](t, rec)
	assert.Len(t, res.Transactions, 3)
	assert.Equal(t, int64(20000), res.Balances[cash.ID])
	assert.Equal(t, int64(10000), res.Balances[wallet.ID])
	assert.Equal(t, int64(40000), res.Balances[bank.ID])

	rec = f.do(http.MethodPost, "/api/transfers", TransferRequest{FromAccountID: wallet.ID, ToAccountID: bank.ID, Amount: 99999})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "insufficient_funds", decodeBody[ErrorResponse](t, rec).Code)

	rec = f.do(http.MethodPost, "/api/transfers/split", SplitTransferRequest{
		Sources:      []LegDTO{{AccountID: cash.ID, Amount: 100}},
		Destinations: []LegDTO{{AccountID: bank.ID, Amount: 200}},
		TotalAmount:  100,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "split_mismatch", decodeBody[ErrorResponse](t, rec).Code)

	// Legs that only match the total after wrapping around int64
	rec = f.do(http.MethodPost, "/api/transfers/split", SplitTransferRequest{
		Sources: []LegDTO{{AccountID: cash.ID, Amount: 100}},
		Destinations: []LegDTO{
			{AccountID: bank.ID, Amount: 1 << 62},
			{AccountID: wallet.ID, Amount: 1 << 62},
			{AccountID: f.createAccount("B3", ledger.AccountBank, 0).ID, Amount: 1 << 62},
			{AccountID: f.createAccount("B4", ledger.AccountBank, 0).ID, Amount: 1<<62 + 100},
		},
		TotalAmount: 100,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_amount", decodeBody[ErrorResponse](t, rec).Code)
}

func TestAccountLifecycle_ThroughRouter(t *testing.T) {
	f := newAPIFixture(t)
	used := f.createAccount("Caja", ledger.AccountCash, 1000)
	unused := f.createAccount("Vieja", ledger.AccountCash, 0)

	rec := f.doAs(f.token, http.MethodDelete, "/api/accounts/"+used.ID, AccountLifecycleRequest{Reason: "cleanup"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "account_in_use", decodeBody[ErrorResponse](t, rec).Code)

	rec = f.do(http.MethodDelete, "/api/accounts/"+unused.ID, AccountLifecycleRequest{Reason: "cleanup"})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(http.MethodPost, "/api/accounts/"+used.ID+"/archive", AccountLifecycleRequest{Reason: "closed"})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(http.MethodGet, "/api/accounts", nil)
	assert.Empty(t, decodeBody[[]AccountDTO](t, rec))

	rec = f.do(http.MethodGet, "/api/accounts?include_archived=true", nil)
	all := decodeBody[[]AccountDTO](t, rec)
	require.Len(t, all, 1)
	assert.True(t, all[0].IsArchived)
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestScenarios_LoadEach(t *testing.T) {
	for _, sc := range Scenarios() {
		t.Run(sc.ID, func(t *testing.T) {
			// GIVEN: A fresh tenant
			f := newAPIFixture(t)
			f.token = f.tokenFor(ledger.TenantID("org-" + sc.ID))

			// WHEN: The scenario loads
			rec := f.do(http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: sc.ID})

			// THEN: It reports what it created and the books are intact
			require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
			res := decodeBody[ScenarioResult](t, rec)
			assert.Equal(t, sc.ID, res.ScenarioID)
			assert.NotEmpty(t, res.Accounts)
			assert.NotEmpty(t, res.Summary)

			rec = f.do(http.MethodGet, "/api/integrity", nil)
			assert.True(t, decodeBody[IntegrityReportDTO](t, rec).OK)
		})
	}
}

func TestScenarios_CreditRedemptionLeavesRemainder(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "credit-redemption"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decodeBody[ScenarioResult](t, rec)
	require.Len(t, res.Customers, 1)

	rec = f.do(http.MethodGet, "/api/customers/"+res.Customers[0], nil)
	assert.Equal(t, int64(0), decodeBody[CustomerDTO](t, rec).CreditBalance)

	rec = f.do(http.MethodGet, "/api/customers/"+res.Customers[0]+"/pending", nil)
	pending := decodeBody[[]PendingInvoiceDTO](t, rec)
	require.Len(t, pending, 1)
	assert.Equal(t, "F-102", pending[0].InvoiceNumber)
	assert.Equal(t, int64(5000), pending[0].Pending)
}

func TestScenarios_UnknownAndList(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodGet, "/api/scenarios", nil)
	assert.Len(t, decodeBody[[]ScenarioDTO](t, rec), len(Scenarios()))

	rec = f.do(http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "bogus"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// STATUS MAPPING
// =============================================================================

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ledger.ErrInvalidAmount, http.StatusBadRequest},
		{&ledger.NotFoundError{Kind: "invoice", ID: "x"}, http.StatusNotFound},
		{&ledger.CrossTenantError{Kind: "account", ID: "x"}, http.StatusForbidden},
		{ledger.ErrInvalidSignature, http.StatusForbidden},
		{ledger.ErrConcurrentModification, http.StatusConflict},
		{fmt.Errorf("save: %w", ledger.ErrDuplicateID), http.StatusConflict},
		{&ledger.InsufficientFundsError{AccountID: "a", Available: 1, Requested: 2}, http.StatusUnprocessableEntity},
		{ledger.ErrAccountArchived, http.StatusUnprocessableEntity},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestWriteError_HidesInternalMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, errors.New("sql: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "internal", body.Code)
	assert.Equal(t, "internal error", body.Error)
}

package treasury

import (
	"context"
	"fmt"
	"strings"

	"github.com/latidos/ledger-engine/ledger"
)

// =============================================================================
// ACCOUNT LIFECYCLE
// =============================================================================

type CreateAccountRequest struct {
	Tenant         ledger.TenantID
	Name           string
	Type           ledger.AccountType
	IsDefault      bool
	OpeningBalance ledger.Money // posted as an INCOME "Opening Balance" line
	Signature      *ledger.Signature
}

// CreateAccount opens an account. A non-zero opening balance goes through
// the journal so the cached balance always matches its lines.
func (s *Service) CreateAccount(ctx context.Context, req CreateAccountRequest) (*ledger.Account, error) {
	name := strings.TrimSpace(req.Name)
	if req.Tenant == "" || name == "" {
		return nil, fmt.Errorf("%w: tenant and name are required", ledger.ErrInvalidInput)
	}
	if !req.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", ledger.ErrInvalidAccountType, req.Type)
	}
	if req.OpeningBalance.IsNegative() {
		return nil, ledger.ErrInvalidAmount
	}
	operator, err := ledger.Sign(ctx, s.signer, req.Tenant, req.Signature)
	if err != nil {
		return nil, err
	}

	now := s.now()
	account := ledger.Account{
		ID:        ledger.AccountID(s.newID()),
		TenantID:  req.Tenant,
		Name:      name,
		Type:      req.Type,
		IsDefault: req.IsDefault,
		CreatedAt: now,
	}

	err = s.store.WithTx(ctx, func(st ledger.Store) error {
		if account.IsDefault {
			if err := st.ClearDefaultAccount(ctx, req.Tenant); err != nil {
				return err
			}
		}
		if err := st.SaveAccount(ctx, account); err != nil {
			return fmt.Errorf("save account: %w", err)
		}
		if req.OpeningBalance.IsPositive() {
			if err := ledger.Post(ctx, st, ledger.Transaction{
				ID:          ledger.TransactionID(s.newID()),
				TenantID:    req.Tenant,
				AccountID:   account.ID,
				Amount:      req.OpeningBalance,
				Type:        ledger.TxIncome,
				Category:    ledger.CategoryOpeningBalance,
				Description: "Opening balance - " + name,
				Date:        now,
				Operator:    operator,
				CreatedAt:   now,
			}); err != nil {
				return err
			}
			account.Balance = req.OpeningBalance
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("tenant_id", string(req.Tenant)).
		Str("account_id", string(account.ID)).
		Str("type", string(account.Type)).
		Msg("account created")
	return &account, nil
}

func (s *Service) ListAccounts(ctx context.Context, tenant ledger.TenantID, includeArchived bool) ([]ledger.Account, error) {
	return s.store.ListAccounts(ctx, tenant, includeArchived)
}

// ArchiveAccount freezes an account: it keeps its history and balance but
// accepts no further postings.
func (s *Service) ArchiveAccount(ctx context.Context, tenant ledger.TenantID, id ledger.AccountID, reason string, sig *ledger.Signature) error {
	operator, err := ledger.Sign(ctx, s.signer, tenant, sig)
	if err != nil {
		return err
	}

	err = s.store.WithTx(ctx, func(st ledger.Store) error {
		a, err := ledger.LoadAccount(ctx, st, tenant, id)
		if err != nil {
			return err
		}
		if a.IsArchived {
			return nil
		}
		if err := st.SetAccountArchived(ctx, id, true); err != nil {
			return err
		}
		return st.AppendAudit(ctx, ledger.AuditEntry{
			ID:        s.newID(),
			TenantID:  tenant,
			At:        s.now(),
			Actor:     operator,
			Action:    ledger.AuditAccountArchived,
			SubjectID: string(id),
			Reason:    strings.TrimSpace(reason),
			Payload:   map[string]any{"name": a.Name, "balance": int64(a.Balance)},
		})
	})
	if err != nil {
		return err
	}

	s.notifier.Notify(ctx, ledger.Change{TenantID: tenant, Accounts: []ledger.AccountID{id}})
	return nil
}

// DeleteAccount removes an account that never held money.
// Anything with a balance or journal history must be archived instead.
func (s *Service) DeleteAccount(ctx context.Context, tenant ledger.TenantID, id ledger.AccountID, reason string, sig *ledger.Signature) error {
	operator, err := ledger.Sign(ctx, s.signer, tenant, sig)
	if err != nil {
		return err
	}

	err = s.store.WithTx(ctx, func(st ledger.Store) error {
		a, err := ledger.LoadAccount(ctx, st, tenant, id)
		if err != nil {
			return err
		}
		n, err := st.CountTransactions(ctx, id)
		if err != nil {
			return err
		}
		if !a.Balance.IsZero() || n > 0 {
			return fmt.Errorf("%w: %s has balance %s and %d transactions", ledger.ErrAccountInUse, a.Name, a.Balance, n)
		}
		if err := st.DeleteAccount(ctx, id); err != nil {
			return fmt.Errorf("delete account: %w", err)
		}
		return st.AppendAudit(ctx, ledger.AuditEntry{
			ID:        s.newID(),
			TenantID:  tenant,
			At:        s.now(),
			Actor:     operator,
			Action:    ledger.AuditAccountDeleted,
			SubjectID: string(id),
			Reason:    strings.TrimSpace(reason),
			Payload:   map[string]any{"name": a.Name, "type": string(a.Type)},
		})
	})
	if err != nil {
		return err
	}

	s.notifier.Notify(ctx, ledger.Change{TenantID: tenant, Accounts: []ledger.AccountID{id}})
	return nil
}

// =============================================================================
// ACCOUNT DETAILS - Lines and period totals
// =============================================================================

type PeriodSummary struct {
	Income  ledger.Money
	Expense ledger.Money
	Net     ledger.Money
}

type AccountDetails struct {
	Account      ledger.Account
	Transactions []ledger.Transaction
	Period       PeriodSummary
}

func (s *Service) GetAccountDetails(ctx context.Context, tenant ledger.TenantID, id ledger.AccountID, r ledger.DateRange) (*AccountDetails, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	var (
		a   *ledger.Account
		txs []ledger.Transaction
	)
	// Row and lines are read in one snapshot
	err := s.store.WithTx(ctx, func(st ledger.Store) error {
		var err error
		if a, err = ledger.LoadAccount(ctx, st, tenant, id); err != nil {
			return err
		}
		if txs, err = st.ListTransactions(ctx, id, r); err != nil {
			return fmt.Errorf("list transactions: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	d := &AccountDetails{Account: *a, Transactions: txs}
	for _, tx := range txs {
		if tx.Type == ledger.TxIncome {
			d.Period.Income += tx.Amount
		} else {
			d.Period.Expense += tx.Amount
		}
	}
	d.Period.Net = d.Period.Income - d.Period.Expense
	return d, nil
}

package treasury

import (
	"context"
	"fmt"
	"strings"

	"github.com/latidos/ledger-engine/ledger"
)

// =============================================================================
// TRANSFERS - Money moving between accounts of one tenant
// =============================================================================
// A transfer is N EXPENSE legs out and M INCOME legs in that share a
// TransferID. Everything is validated before the first write; the legs
// are then posted in one unit of work, so a transfer is all or nothing.

// Leg is one side's share of a transfer.
type Leg struct {
	AccountID ledger.AccountID
	Amount    ledger.Money
}

type TransferRequest struct {
	Tenant      ledger.TenantID
	From        ledger.AccountID
	To          ledger.AccountID
	Amount      ledger.Money
	Description string
	Signature   *ledger.Signature
}

type SplitTransferRequest struct {
	Tenant       ledger.TenantID
	Sources      []Leg
	Destinations []Leg
	TotalAmount  ledger.Money
	Description  string
	Signature    *ledger.Signature
}

type TransferResult struct {
	TransferID   string
	Transactions []ledger.Transaction
	Balances     map[ledger.AccountID]ledger.Money // balances after the transfer
}

// TransferFunds moves Amount from one account to another.
func (s *Service) TransferFunds(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	return s.SplitTransferFunds(ctx, SplitTransferRequest{
		Tenant:       req.Tenant,
		Sources:      []Leg{{AccountID: req.From, Amount: req.Amount}},
		Destinations: []Leg{{AccountID: req.To, Amount: req.Amount}},
		TotalAmount:  req.Amount,
		Description:  req.Description,
		Signature:    req.Signature,
	})
}

// ValidateSplit checks the shape of a split transfer without touching storage.
func ValidateSplit(req SplitTransferRequest) error {
	if !req.TotalAmount.IsPositive() {
		return ledger.ErrInvalidAmount
	}
	if len(req.Sources) == 0 || len(req.Destinations) == 0 {
		return fmt.Errorf("%w: a transfer needs at least one source and one destination", ledger.ErrInvalidInput)
	}

	sides := map[ledger.AccountID]string{}
	var sum [2]ledger.Money
	for i, legs := range [][]Leg{req.Sources, req.Destinations} {
		side := "source"
		if i == 1 {
			side = "destination"
		}
		for _, leg := range legs {
			if leg.AccountID == "" {
				return fmt.Errorf("%w: %s leg", ledger.ErrMissingAccount, side)
			}
			if !leg.Amount.IsPositive() {
				return fmt.Errorf("%w: %s leg %s", ledger.ErrInvalidAmount, side, leg.AccountID)
			}
			if prev, ok := sides[leg.AccountID]; ok {
				if prev == side {
					return fmt.Errorf("%w: %s", ledger.ErrDuplicateLeg, leg.AccountID)
				}
				return fmt.Errorf("%w: %s", ledger.ErrSameAccount, leg.AccountID)
			}
			sides[leg.AccountID] = side
			next, err := sum[i].Add(leg.Amount)
			if err != nil {
				return fmt.Errorf("%s legs: %w", side, err)
			}
			sum[i] = next
		}
	}

	if sum[0] != req.TotalAmount || sum[1] != req.TotalAmount {
		return &ledger.SplitMismatchError{Sources: sum[0], Destinations: sum[1], Declared: req.TotalAmount}
	}
	return nil
}

// SplitTransferFunds moves money from several sources to several destinations.
func (s *Service) SplitTransferFunds(ctx context.Context, req SplitTransferRequest) (*TransferResult, error) {
	if err := ValidateSplit(req); err != nil {
		return nil, err
	}
	operator, err := ledger.Sign(ctx, s.signer, req.Tenant, req.Signature)
	if err != nil {
		return nil, err
	}

	now := s.now()
	result := &TransferResult{
		TransferID: s.newID(),
		Balances:   make(map[ledger.AccountID]ledger.Money),
	}

	err = s.store.WithTx(ctx, func(st ledger.Store) error {
		accounts := make(map[ledger.AccountID]*ledger.Account)
		for _, leg := range append(append([]Leg{}, req.Sources...), req.Destinations...) {
			a, err := ledger.LoadPostableAccount(ctx, st, req.Tenant, leg.AccountID)
			if err != nil {
				return err
			}
			accounts[leg.AccountID] = a
		}

		// Check every source up front so the error names the first short account
		for _, leg := range req.Sources {
			if a := accounts[leg.AccountID]; a.Balance < leg.Amount {
				return &ledger.InsufficientFundsError{AccountID: a.ID, Available: a.Balance, Requested: leg.Amount}
			}
		}

		description := req.Description
		if description == "" {
			description = describeTransfer(req, accounts)
		}

		var toAccount ledger.AccountID
		if len(req.Destinations) == 1 {
			toAccount = req.Destinations[0].AccountID
		}

		post := func(leg Leg, typ ledger.TxType, to ledger.AccountID) error {
			tx := ledger.Transaction{
				ID:          ledger.TransactionID(s.newID()),
				TenantID:    req.Tenant,
				AccountID:   leg.AccountID,
				Amount:      leg.Amount,
				Type:        typ,
				Category:    ledger.CategoryTransfer,
				Description: description,
				Date:        now,
				ToAccountID: to,
				TransferID:  result.TransferID,
				Operator:    operator,
				CreatedAt:   now,
			}
			if err := ledger.Post(ctx, st, tx); err != nil {
				return err
			}
			result.Transactions = append(result.Transactions, tx)
			return nil
		}

		for _, leg := range req.Sources {
			if err := post(leg, ledger.TxExpense, toAccount); err != nil {
				return err
			}
		}
		for _, leg := range req.Destinations {
			if err := post(leg, ledger.TxIncome, ""); err != nil {
				return err
			}
		}

		for id := range accounts {
			a, err := st.GetAccount(ctx, id)
			if err != nil {
				return err
			}
			result.Balances[id] = a.Balance
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	change := ledger.Change{TenantID: req.Tenant}
	for id := range result.Balances {
		change.Accounts = append(change.Accounts, id)
	}
	s.notifier.Notify(ctx, change)
	s.log.Info().
		Str("tenant_id", string(req.Tenant)).
		Str("transfer_id", result.TransferID).
		Int("sources", len(req.Sources)).
		Int("destinations", len(req.Destinations)).
		Int64("amount", int64(req.TotalAmount)).
		Msg("transfer posted")

	return result, nil
}

func describeTransfer(req SplitTransferRequest, accounts map[ledger.AccountID]*ledger.Account) string {
	names := func(legs []Leg) string {
		out := make([]string, 0, len(legs))
		for _, l := range legs {
			out = append(out, accounts[l.AccountID].Name)
		}
		return strings.Join(out, ", ")
	}
	return fmt.Sprintf("Transfer from %s to %s", names(req.Sources), names(req.Destinations))
}

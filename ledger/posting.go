package ledger

import (
	"context"
	"errors"
	"fmt"
)

// PostingStore is the part of Store a journal posting touches.
type PostingStore interface {
	JournalStore
	AccountStore
}

// Post appends tx to the journal and moves its account's cached balance by
// tx.Signed() in the same unit of work. The balance never goes negative:
// a debit larger than the balance fails with InsufficientFundsError.
func Post(ctx context.Context, st PostingStore, tx Transaction) error {
	if !tx.Amount.IsPositive() {
		return fmt.Errorf("%w: journal line %s", ErrInvalidAmount, tx.ID)
	}
	if tx.Type != TxIncome && tx.Type != TxExpense {
		return fmt.Errorf("%w: journal type %q", ErrInvalidInput, tx.Type)
	}

	if err := st.InsertTransaction(ctx, tx); err != nil {
		return fmt.Errorf("append %s line on %s: %w", tx.Type, tx.AccountID, err)
	}

	balance, err := st.AdjustAccountBalance(ctx, tx.AccountID, tx.Signed())
	if errors.Is(err, ErrInsufficientFunds) {
		return &InsufficientFundsError{AccountID: tx.AccountID, Available: balance, Requested: tx.Amount}
	}
	if err != nil {
		return fmt.Errorf("adjust balance of %s: %w", tx.AccountID, err)
	}
	return nil
}

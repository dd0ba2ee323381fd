/*
Package treasury manages where money sits: ledger accounts, transfers
between them, and the integrity check that ties cached balances back to
the journal.

PURPOSE:
  Collections decides what a customer owes; treasury decides which account
  holds the cash. Every balance change here is a journal line posted with
  ledger.Post inside one WithTx unit of work.

OPERATIONS:
  CreateAccount, ArchiveAccount, DeleteAccount, ListAccounts, GetAccountDetails
  TransferFunds, SplitTransferFunds
  CheckIntegrity

SEE ALSO:
  - ledger/posting.go: journal line + balance increment
  - collections/service.go: receivables
*/
package treasury

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/latidos/ledger-engine/ledger"
	"github.com/latidos/ledger-engine/logger"
)

type Service struct {
	store    ledger.TxStore
	signer   ledger.Signer
	notifier ledger.Notifier
	now      func() time.Time
	newID    func() string
	log      zerolog.Logger
}

// NewService wires a treasury service. signer and notifier may be nil.
func NewService(store ledger.TxStore, signer ledger.Signer, notifier ledger.Notifier) *Service {
	if notifier == nil {
		notifier = ledger.NopNotifier{}
	}
	return &Service{
		store:    store,
		signer:   signer,
		notifier: notifier,
		now:      time.Now,
		newID:    uuid.NewString,
		log:      logger.WithComponent("treasury"),
	}
}

// SetClock replaces the time source (for tests and demo seeding).
func (s *Service) SetClock(now func() time.Time) { s.now = now }

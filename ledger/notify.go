package ledger

import "context"

// Change lists what a committed operation touched, so cached projections
// of those customers and accounts can be dropped.
type Change struct {
	TenantID  TenantID
	Customers []CustomerID
	Accounts  []AccountID
}

// Notifier is told about every committed change. Implementations must not block.
type Notifier interface {
	Notify(ctx context.Context, c Change)
}

// NopNotifier ignores changes.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Change) {}

// Notifiers fans a change out to several notifiers.
type Notifiers []Notifier

func (ns Notifiers) Notify(ctx context.Context, c Change) {
	for _, n := range ns {
		n.Notify(ctx, c)
	}
}

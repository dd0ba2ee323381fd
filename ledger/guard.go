package ledger

import (
	"context"
	"fmt"
)

// =============================================================================
// TENANT-CHECKED LOOKUPS
// =============================================================================
// Every service loads rows through these so a missing row and a row owned
// by another tenant fail closed with distinct errors.

func LoadCustomer(ctx context.Context, s CustomerStore, tenant TenantID, id CustomerID) (*Customer, error) {
	c, err := s.GetCustomer(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load customer %s: %w", id, err)
	}
	if c == nil {
		return nil, &NotFoundError{Kind: "customer", ID: string(id)}
	}
	if c.TenantID != tenant {
		return nil, &CrossTenantError{Kind: "customer", ID: string(id)}
	}
	return c, nil
}

func LoadSale(ctx context.Context, s SaleStore, tenant TenantID, id SaleID) (*Sale, error) {
	sale, err := s.GetSale(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load invoice %s: %w", id, err)
	}
	if sale == nil {
		return nil, &NotFoundError{Kind: "invoice", ID: string(id)}
	}
	if sale.TenantID != tenant {
		return nil, &CrossTenantError{Kind: "invoice", ID: string(id)}
	}
	return sale, nil
}

func LoadAccount(ctx context.Context, s AccountStore, tenant TenantID, id AccountID) (*Account, error) {
	if id == "" {
		return nil, ErrMissingAccount
	}
	a, err := s.GetAccount(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load account %s: %w", id, err)
	}
	if a == nil {
		return nil, &NotFoundError{Kind: "account", ID: string(id)}
	}
	if a.TenantID != tenant {
		return nil, &CrossTenantError{Kind: "account", ID: string(id)}
	}
	return a, nil
}

// LoadPostableAccount is LoadAccount plus the archived check.
func LoadPostableAccount(ctx context.Context, s AccountStore, tenant TenantID, id AccountID) (*Account, error) {
	a, err := LoadAccount(ctx, s, tenant, id)
	if err != nil {
		return nil, err
	}
	if a.IsArchived {
		return nil, fmt.Errorf("%w: %s", ErrAccountArchived, a.Name)
	}
	return a, nil
}

func LoadPayment(ctx context.Context, s PaymentStore, tenant TenantID, id PaymentID) (*Payment, error) {
	p, err := s.GetPayment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load payment %s: %w", id, err)
	}
	if p == nil {
		return nil, &NotFoundError{Kind: "payment", ID: string(id)}
	}
	if p.TenantID != tenant {
		return nil, &CrossTenantError{Kind: "payment", ID: string(id)}
	}
	return p, nil
}

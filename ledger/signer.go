package ledger

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// =============================================================================
// SIGNER - Operator dual-identity verification
// =============================================================================

// Signature is what a caller presents to have a write attributed to an operator.
type Signature struct {
	OperatorID OperatorID
	PIN        string
}

// Signer verifies a signature and returns the operator snapshot to record.
type Signer interface {
	Verify(ctx context.Context, tenant TenantID, sig Signature) (Operator, error)
}

// Sign resolves an optional signature. A nil signature yields a zero operator.
// It must be called before the unit of work begins.
func Sign(ctx context.Context, signer Signer, tenant TenantID, sig *Signature) (Operator, error) {
	if sig == nil {
		return Operator{}, nil
	}
	if signer == nil {
		return Operator{}, fmt.Errorf("%w: no signer configured", ErrInvalidSignature)
	}
	return signer.Verify(ctx, tenant, *sig)
}

// =============================================================================
// PIN SIGNER - bcrypt-hashed operator PINs
// =============================================================================

// OperatorRecord is a stored operator able to sign with a PIN.
type OperatorRecord struct {
	ID       OperatorID
	TenantID TenantID
	UserID   string
	Name     string
	PINHash  string
	Active   bool
}

type OperatorStore interface {
	GetOperator(ctx context.Context, id OperatorID) (*OperatorRecord, error)
	SaveOperator(ctx context.Context, op OperatorRecord) error
}

// PINCost is the bcrypt cost used by HashPIN.
var PINCost = bcrypt.DefaultCost

// HashPIN hashes a PIN for storage.
func HashPIN(pin string) (string, error) {
	if pin == "" {
		return "", fmt.Errorf("%w: empty PIN", ErrInvalidInput)
	}
	b, err := bcrypt.GenerateFromPassword([]byte(pin), PINCost)
	return string(b), err
}

type PINSigner struct {
	Operators OperatorStore
}

func NewPINSigner(operators OperatorStore) *PINSigner {
	return &PINSigner{Operators: operators}
}

func (s *PINSigner) Verify(ctx context.Context, tenant TenantID, sig Signature) (Operator, error) {
	if sig.OperatorID == "" || sig.PIN == "" {
		return Operator{}, ErrInvalidSignature
	}
	rec, err := s.Operators.GetOperator(ctx, sig.OperatorID)
	if err != nil {
		return Operator{}, fmt.Errorf("load operator: %w", err)
	}
	if rec == nil || rec.TenantID != tenant || !rec.Active {
		return Operator{}, ErrInvalidSignature
	}
	if err := bcrypt.CompareHashAndPassword([]byte(rec.PINHash), []byte(sig.PIN)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return Operator{}, ErrInvalidSignature
		}
		return Operator{}, fmt.Errorf("verify pin: %w", err)
	}
	return Operator{ID: rec.ID, UserID: rec.UserID, Name: rec.Name}, nil
}

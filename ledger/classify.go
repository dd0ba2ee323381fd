package ledger

// =============================================================================
// ACCOUNT CLASSIFICATION
// =============================================================================

// AccountClass groups account types by how money sits in them.
// Callers ask the account for its class instead of sniffing names.
type AccountClass string

const (
	ClassCashLike       AccountClass = "cash"
	ClassBankLike       AccountClass = "bank"
	ClassCreditNoteLike AccountClass = "credit_note"
	ClassTradeInLike    AccountClass = "trade_in"
)

// ClassOf maps a declared account type to its class.
func ClassOf(t AccountType) AccountClass {
	switch t {
	case AccountCash:
		return ClassCashLike
	case AccountBank, AccountWallet:
		return ClassBankLike
	case AccountCreditNote:
		return ClassCreditNoteLike
	case AccountTradeIn:
		return ClassTradeInLike
	}
	return ""
}

// Class returns the account's class from its declared type.
func (a Account) Class() AccountClass { return ClassOf(a.Type) }

// MethodClass is the account class a payment method settles into.
// CREDIT_BALANCE has none: it never touches an account.
func MethodClass(m PaymentMethod) AccountClass {
	switch m {
	case MethodCash:
		return ClassCashLike
	case MethodTransfer:
		return ClassBankLike
	case MethodCreditNote:
		return ClassCreditNoteLike
	case MethodTradeIn:
		return ClassTradeInLike
	}
	return ""
}

// DefaultMethod is the method a payment into the account would normally use.
func (a Account) DefaultMethod() PaymentMethod {
	switch a.Class() {
	case ClassCashLike:
		return MethodCash
	case ClassBankLike:
		return MethodTransfer
	case ClassCreditNoteLike:
		return MethodCreditNote
	case ClassTradeInLike:
		return MethodTradeIn
	}
	return ""
}

// MethodAllowed reports whether money tendered with m may be deposited into a.
func MethodAllowed(m PaymentMethod, a Account) bool {
	if !m.MovesCash() {
		return false
	}
	c := MethodClass(m)
	return c != "" && c == a.Class()
}

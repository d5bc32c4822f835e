package models

// AccountType represents the type of account
type AccountType string

const (
	AccountTypeChecking   AccountType = "checking"
	AccountTypeSavings    AccountType = "savings"
	AccountTypeCreditCard AccountType = "credit_card"
	AccountTypeInvestment AccountType = "investment"
)

// IsDebt reports whether balances on this account type represent a liability.
func (t AccountType) IsDebt() bool {
	return t == AccountTypeCreditCard
}

// Account represents a financial account in the system.
//
// Balance is a denormalized aggregate: it always equals OpeningBalance plus
// the signed sum of all non-deleted transactions posted to the account, where
// each transaction's sign comes from its category type (income adds, expense
// subtracts). All mutations of Balance go through the reconciliation logic in
// the transaction service; the only user-facing exception is an explicit
// balance reset, which shifts OpeningBalance by the same delta so the
// equation keeps holding.
type Account struct {
	Base
	UserID         string      `gorm:"type:uuid;not null;index" json:"user_id"`
	Name           string      `gorm:"not null" json:"name"`
	Type           AccountType `gorm:"not null" json:"type"`
	Description    string      `json:"description"`
	Currency       string      `gorm:"not null;default:'USD'" json:"currency"`
	OpeningBalance int64       `gorm:"type:bigint;not null;default:0" json:"opening_balance"`
	Balance        int64       `gorm:"type:bigint;not null;default:0" json:"balance"`
	IsActive       bool        `gorm:"default:true" json:"is_active"`

	// For credit card accounts
	CreditLimit  int64   `gorm:"type:bigint" json:"credit_limit,omitempty"`
	InterestRate float64 `json:"interest_rate,omitempty"`

	// Relationships
	Transactions []Transaction `gorm:"foreignKey:AccountID" json:"transactions,omitempty"`
}

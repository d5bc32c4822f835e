package models

import "time"

// Transaction represents a financial transaction posted against exactly one
// account.
//
// Amount is always a positive magnitude in cents. The sign is never stored:
// it is derived at reconciliation time from the category's type, with a nil
// or unresolvable category treated as expense. AccountID is fixed for the
// transaction's lifetime; moving a transaction between accounts is rejected
// at the service layer rather than left silently unreconciled.
type Transaction struct {
	Base
	UserID      string    `gorm:"type:uuid;not null;index" json:"user_id"`
	AccountID   string    `gorm:"type:uuid;not null;index" json:"account_id"`
	CategoryID  *string   `gorm:"type:uuid" json:"category_id,omitempty"`
	Date        time.Time `gorm:"not null" json:"date"`
	Merchant    string    `gorm:"not null" json:"merchant"`
	Amount      int64     `gorm:"type:bigint;not null" json:"amount"`
	Description string    `json:"description"`
	Notes       string    `json:"notes,omitempty"`
	Recurring   bool      `gorm:"default:false" json:"recurring"`

	// Relationships
	Account  Account   `gorm:"foreignKey:AccountID" json:"account,omitempty"`
	Category *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}

package models

// CategoryType represents the type of category. It is the only source of a
// transaction's sign: income categories add to an account balance, expense
// categories subtract. The type is immutable once the category is created;
// reclassifying a category would silently invalidate every balance derived
// from it.
type CategoryType string

const (
	CategoryTypeIncome  CategoryType = "income"
	CategoryTypeExpense CategoryType = "expense"
)

// Category represents a transaction category. Categories are global, shared
// across all users.
type Category struct {
	Base
	Name        string       `gorm:"uniqueIndex;not null" json:"name"`
	Type        CategoryType `gorm:"not null" json:"type"`
	Description string       `json:"description"`
	Icon        string       `json:"icon"`
	Color       string       `json:"color"`

	// Relationships
	Transactions []Transaction `gorm:"foreignKey:CategoryID" json:"transactions,omitempty"`
	Budgets      []Budget      `gorm:"foreignKey:CategoryID" json:"budgets,omitempty"`
}

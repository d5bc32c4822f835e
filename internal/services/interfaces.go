package services

import (
	"time"

	"gorm.io/gorm"

	"tally/internal/models"
	"tally/internal/pagination"
)

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(email, password, firstName, lastName string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
	AttemptLogin(email, password string) (*models.User, error)
	StoreRefreshTokenHash(userID, tokenHash string) error
	GetRefreshTokenHash(userID string) (string, error)
}

// AccountUpdateFields holds optional fields for updating an account.
// Balance, when set, is an explicit balance reset: the account's opening
// balance is shifted by the same delta so the ledger stays reconcilable.
type AccountUpdateFields struct {
	Name         *string
	Description  *string
	IsActive     *bool
	Balance      *int64
	CreditLimit  *int64
	InterestRate *float64
}

// BalanceCheck reports the stored denormalized balance of an account against
// the balance recomputed from its transaction history.
type BalanceCheck struct {
	AccountID  string `json:"account_id"`
	Stored     int64  `json:"stored"`
	Computed   int64  `json:"computed"`
	Consistent bool   `json:"consistent"`
}

// AccountServicer defines the contract for account-related business logic.
type AccountServicer interface {
	CreateAccount(userID, name string, accountType models.AccountType, description, currency string, openingBalance, creditLimit int64, interestRate float64) (*models.Account, error)
	GetUserAccounts(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Account], error)
	GetAccountByID(userID, accountID string) (*models.Account, error)
	UpdateAccount(userID, accountID string, fields AccountUpdateFields) (*models.Account, error)
	DeleteAccount(userID, accountID string) error
	ApplyBalanceDelta(tx *gorm.DB, accountID string, delta int64) error
	CheckBalance(userID, accountID string) (*BalanceCheck, error)
	RecalculateBalance(userID, accountID string) (*models.Account, error)
}

// CategoryServicer defines the contract for category-related business logic.
// Categories are global; callers must still be authenticated, but no
// per-user ownership applies.
type CategoryServicer interface {
	CreateCategory(name string, categoryType models.CategoryType, description, icon, color string) (*models.Category, error)
	GetCategories(page pagination.PageRequest, categoryType *models.CategoryType) (*pagination.PageResponse[models.Category], error)
	GetCategoryByID(categoryID string) (*models.Category, error)
	UpdateCategory(categoryID, name, description, icon, color string) (*models.Category, error)
	DeleteCategory(categoryID string) error
}

// TransactionCreateInput holds the fields for creating a transaction.
type TransactionCreateInput struct {
	AccountID   string
	CategoryID  *string
	Date        time.Time
	Merchant    string
	Amount      int64
	Description string
	Notes       string
	Recurring   bool
}

// TransactionUpdateFields holds optional fields for updating a transaction.
// CategoryID is tri-state: nil means no change, a pointer to nil clears the
// category, a pointer to a value sets it. AccountID may be supplied but must
// match the transaction's current account; reassignment is rejected.
type TransactionUpdateFields struct {
	AccountID   *string
	CategoryID  **string
	Date        *time.Time
	Merchant    *string
	Amount      *int64
	Description *string
	Notes       *string
	Recurring   *bool
}

// TransactionFilter holds optional filter parameters for listing transactions.
type TransactionFilter struct {
	FromDate   *time.Time
	ToDate     *time.Time
	CategoryID *string
	AccountID  *string
	Merchant   *string
	MinAmount  *int64
	MaxAmount  *int64
	Recurring  *bool
}

// TransactionServicer defines the contract for transaction-related business
// logic, including the balance reconciliation that keeps each account's
// denormalized balance consistent with its ledger.
type TransactionServicer interface {
	CreateTransaction(userID string, input TransactionCreateInput) (*models.Transaction, error)
	GetAccountTransactions(userID, accountID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
	GetUserTransactions(userID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
	GetTransactionByID(userID, transactionID string) (*models.Transaction, error)
	UpdateTransaction(userID, transactionID string, fields TransactionUpdateFields) (*models.Transaction, error)
	DeleteTransaction(userID, transactionID string) error
}

// BudgetProgress contains spending vs budget data for a budget's current period.
type BudgetProgress struct {
	BudgetID   string  `json:"budget_id"`
	Budgeted   int64   `json:"budgeted"`
	Spent      int64   `json:"spent"`
	Remaining  int64   `json:"remaining"`
	Percentage float64 `json:"percentage"`
}

// BudgetServicer defines the contract for budget-related business logic.
type BudgetServicer interface {
	CreateBudget(userID, categoryID, name string, amount int64, period models.BudgetPeriod, startDate time.Time, endDate *time.Time) (*models.Budget, error)
	GetUserBudgets(userID string, page pagination.PageRequest, isActive *bool, period *models.BudgetPeriod) (*pagination.PageResponse[models.Budget], error)
	GetBudgetByID(userID, budgetID string) (*models.Budget, error)
	UpdateBudget(userID, budgetID, name string, amount *int64, period *models.BudgetPeriod, endDate *time.Time) (*models.Budget, error)
	DeleteBudget(userID, budgetID string) error
	GetBudgetProgress(userID, budgetID string) (*BudgetProgress, error)
}

// CategorySpend is a per-category total within a reporting window.
// Amounts are decimal strings in major currency units.
type CategorySpend struct {
	CategoryID   string              `json:"category_id"`
	CategoryName string              `json:"category_name"`
	Type         models.CategoryType `json:"type"`
	Total        string              `json:"total"`
}

// MonthlySummary aggregates a user's income and spending for one month.
type MonthlySummary struct {
	Year       int             `json:"year"`
	Month      int             `json:"month"`
	Income     string          `json:"income"`
	Expenses   string          `json:"expenses"`
	Net        string          `json:"net"`
	Categories []CategorySpend `json:"categories"`
}

// ReportServicer defines the contract for reporting and export.
type ReportServicer interface {
	GetMonthlySummary(userID string, year int, month time.Month) (*MonthlySummary, error)
	ExportAccountStatement(userID, accountID string, from, to time.Time) ([]byte, error)
}

// SnapshotServicer defines the contract for net worth snapshots.
type SnapshotServicer interface {
	RecordSnapshots(recordedAt time.Time) (int, error)
	GetSnapshots(userID string, from, to time.Time, page pagination.PageRequest) (*pagination.PageResponse[models.NetWorthSnapshot], error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{})
}

package services

import (
	"errors"

	"gorm.io/gorm"

	apperrors "tally/internal/errors"
	"tally/internal/models"
	"tally/internal/pagination"
)

// accountService handles account-related business logic.
type accountService struct {
	db *gorm.DB
}

// NewAccountService creates a new AccountServicer.
func NewAccountService(db *gorm.DB) AccountServicer {
	return &accountService{db: db}
}

// CreateAccount creates a new account for a user. The opening balance seeds
// the denormalized balance; from then on only transaction reconciliation or
// an explicit balance reset may change it.
func (s *accountService) CreateAccount(
	userID, name string,
	accountType models.AccountType,
	description, currency string,
	openingBalance, creditLimit int64,
	interestRate float64,
) (*models.Account, error) {
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "account name is required")
	}

	if currency == "" {
		currency = "USD" // Default currency
	}

	// Credit terms only make sense on credit card accounts
	if accountType != models.AccountTypeCreditCard {
		creditLimit = 0
		interestRate = 0
	}

	account := &models.Account{
		UserID:         userID,
		Name:           name,
		Type:           accountType,
		Description:    description,
		Currency:       currency,
		OpeningBalance: openingBalance,
		Balance:        openingBalance,
		IsActive:       true,
		CreditLimit:    creditLimit,
		InterestRate:   interestRate,
	}

	if err := s.db.Create(account).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return account, nil
}

// GetUserAccounts retrieves a paginated list of active accounts for a user.
func (s *accountService) GetUserAccounts(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Account], error) {
	page.Defaults()

	var totalItems int64
	base := s.db.Model(&models.Account{}).Where("user_id = ? AND is_active = ?", userID, true)
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var accounts []models.Account
	if err := base.Scopes(pagination.Paginate(page)).Find(&accounts).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(accounts, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetAccountByID retrieves an account by ID for a specific user.
// An account belonging to a different user is an authorization failure, not
// a not-found, so that a cross-user write attempt is reported as such.
func (s *accountService) GetAccountByID(userID, accountID string) (*models.Account, error) {
	var account models.Account
	if err := s.db.Where("id = ?", accountID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAccountNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if account.UserID != userID {
		return nil, apperrors.ErrForbidden
	}

	return &account, nil
}

// UpdateAccount updates an existing account. A Balance field in the patch is
// treated as an opening-balance reset: both balance and opening_balance move
// by the same delta, computed against the stored row inside the UPDATE itself
// so no concurrent reconciliation is lost.
func (s *accountService) UpdateAccount(userID, accountID string, fields AccountUpdateFields) (*models.Account, error) {
	account, err := s.GetAccountByID(userID, accountID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})

	if fields.Name != nil && *fields.Name != "" {
		updates["name"] = *fields.Name
	}
	if fields.Description != nil {
		updates["description"] = *fields.Description
	}
	if fields.IsActive != nil {
		updates["is_active"] = *fields.IsActive
	}

	if fields.Balance != nil {
		updates["opening_balance"] = gorm.Expr("opening_balance + (? - balance)", *fields.Balance)
		updates["balance"] = *fields.Balance
	}

	// Credit card-only fields
	if account.Type == models.AccountTypeCreditCard {
		if fields.CreditLimit != nil {
			updates["credit_limit"] = *fields.CreditLimit
		}
		if fields.InterestRate != nil {
			updates["interest_rate"] = *fields.InterestRate
		}
	}

	if len(updates) > 0 {
		if err := s.db.Model(account).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		// Reload to get fresh data
		if err := s.db.Where("id = ?", account.ID).First(account).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	return account, nil
}

// DeleteAccount deletes an account and all of its transactions as one atomic
// unit, so no transaction can be left referencing a missing account. No
// balance reconciliation is needed since the whole account goes away.
func (s *accountService) DeleteAccount(userID, accountID string) error {
	account, err := s.GetAccountByID(userID, accountID)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ?", account.ID).Delete(&models.Transaction{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Delete(account).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
}

// ApplyBalanceDelta applies a signed delta to an account balance as a single
// atomic SQL increment. The increment happens entirely at the storage layer,
// so concurrent reconciliations against the same account compose without a
// read-modify-write race.
func (s *accountService) ApplyBalanceDelta(tx *gorm.DB, accountID string, delta int64) error {
	res := tx.Model(&models.Account{}).
		Where("id = ?", accountID).
		UpdateColumn("balance", gorm.Expr("balance + ?", delta))
	if res.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
	}
	if res.RowsAffected != 1 {
		return apperrors.WithMessage(apperrors.ErrConsistency, "account row missing during balance update")
	}
	return nil
}

// CheckBalance compares an account's stored balance against the balance
// recomputed from its full transaction history.
func (s *accountService) CheckBalance(userID, accountID string) (*BalanceCheck, error) {
	account, err := s.GetAccountByID(userID, accountID)
	if err != nil {
		return nil, err
	}

	computed, err := foldBalance(s.db, account)
	if err != nil {
		return nil, err
	}

	return &BalanceCheck{
		AccountID:  account.ID,
		Stored:     account.Balance,
		Computed:   computed,
		Consistent: account.Balance == computed,
	}, nil
}

// RecalculateBalance recomputes an account's balance from its transaction
// history and stores the result, repairing any drift.
func (s *accountService) RecalculateBalance(userID, accountID string) (*models.Account, error) {
	account, err := s.GetAccountByID(userID, accountID)
	if err != nil {
		return nil, err
	}

	computed, err := foldBalance(s.db, account)
	if err != nil {
		return nil, err
	}

	if err := s.db.Model(account).UpdateColumn("balance", computed).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	account.Balance = computed
	return account, nil
}

// foldBalance computes opening balance plus the signed sum of all live
// transactions on the account. Transactions whose category is missing or
// soft-deleted fall back to the expense default, matching reconciliation.
func foldBalance(tx *gorm.DB, account *models.Account) (int64, error) {
	type ledgerRow struct {
		Amount       int64
		CategoryType *string
	}

	var rows []ledgerRow
	if err := tx.Model(&models.Transaction{}).
		Select("transactions.amount AS amount, categories.type AS category_type").
		Joins("LEFT JOIN categories ON categories.id = transactions.category_id AND categories.deleted_at IS NULL").
		Where("transactions.account_id = ? AND transactions.deleted_at IS NULL", account.ID).
		Scan(&rows).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	total := account.OpeningBalance
	for _, row := range rows {
		categoryType := defaultCategoryType
		if row.CategoryType != nil {
			categoryType = models.CategoryType(*row.CategoryType)
		}
		total += signedDelta(categoryType, row.Amount)
	}
	return total, nil
}

package services

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "tally/internal/errors"
	"tally/internal/models"
	"tally/internal/pagination"
)

// transactionService handles transaction-related business logic and drives
// balance reconciliation: every create, update, and delete adjusts the
// owning account's balance by the transaction's signed delta, with the
// ledger write and the balance write committed as one unit.
type transactionService struct {
	db             *gorm.DB
	accountService AccountServicer
}

// NewTransactionService creates a new TransactionServicer.
func NewTransactionService(db *gorm.DB, accountService AccountServicer) TransactionServicer {
	return &transactionService{
		db:             db,
		accountService: accountService,
	}
}

// CreateTransaction creates a new transaction for a user's account and
// applies its signed delta to the account balance. All validation happens
// before any write; the insert and the balance increment share a database
// transaction so neither can land without the other.
func (s *transactionService) CreateTransaction(userID string, input TransactionCreateInput) (*models.Transaction, error) {
	if input.Amount <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
	}
	if input.AccountID == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "account ID is required")
	}
	if input.Merchant == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "merchant is required")
	}

	// Default date to now if not provided
	if input.Date.IsZero() {
		input.Date = time.Now()
	}

	// Ownership check; a foreign account is Forbidden, not NotFound
	account, err := s.accountService.GetAccountByID(userID, input.AccountID)
	if err != nil {
		return nil, err
	}

	// A category supplied on create must exist; only later resolution
	// (after a category is deleted) falls back to the expense default.
	if input.CategoryID != nil {
		if _, err := s.getCategory(*input.CategoryID); err != nil {
			return nil, err
		}
	}

	transaction := &models.Transaction{
		UserID:      userID,
		AccountID:   account.ID,
		CategoryID:  input.CategoryID,
		Date:        input.Date,
		Merchant:    input.Merchant,
		Amount:      input.Amount,
		Description: input.Description,
		Notes:       input.Notes,
		Recurring:   input.Recurring,
	}

	err = runReconciled(s.db, func(tx *gorm.DB) error {
		if err := tx.Create(transaction).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		// The sign is resolved inside the same unit as the insert, so the
		// stored delta and a later fold agree even when the category is
		// deleted while this create is in flight.
		categoryType, err := resolveCategoryType(tx, transaction.CategoryID)
		if err != nil {
			return err
		}
		return s.accountService.ApplyBalanceDelta(tx, account.ID, signedDelta(categoryType, transaction.Amount))
	})
	if err != nil {
		return nil, err
	}
	return transaction, nil
}

// UpdateTransaction mutates a transaction and reconciles the account balance
// in a single step. Old and new signed deltas are both computed from one
// pre-image snapshot, and the difference is applied as one atomic increment;
// the balance is never reverted and reapplied sequentially.
func (s *transactionService) UpdateTransaction(userID, transactionID string, fields TransactionUpdateFields) (*models.Transaction, error) {
	if fields.Amount != nil && *fields.Amount <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
	}
	if fields.Merchant != nil && *fields.Merchant == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "merchant cannot be empty")
	}

	var result *models.Transaction
	err := runReconciled(s.db, func(tx *gorm.DB) error {
		// Lock the pre-image so concurrent updates of the same transaction
		// serialize; both deltas derive from the row each writer actually
		// replaces. The lock is dropped by the SQLite driver, which
		// serializes writers anyway.
		var transaction models.Transaction
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND user_id = ?", transactionID, userID).
			First(&transaction).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrTransactionNotFound
			}
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		// Moving a transaction between accounts would require reconciling
		// both the losing and gaining account; rejected instead.
		if fields.AccountID != nil && *fields.AccountID != transaction.AccountID {
			return apperrors.ErrAccountChangeDenied
		}

		oldType, err := resolveCategoryType(tx, transaction.CategoryID)
		if err != nil {
			return err
		}
		oldDelta := signedDelta(oldType, transaction.Amount)

		newType := oldType
		if fields.CategoryID != nil {
			if *fields.CategoryID == nil {
				transaction.CategoryID = nil
				newType = defaultCategoryType
			} else {
				category, err := s.getCategoryTx(tx, **fields.CategoryID)
				if err != nil {
					return err
				}
				transaction.CategoryID = *fields.CategoryID
				newType = category.Type
			}
		}
		if fields.Amount != nil {
			transaction.Amount = *fields.Amount
		}
		if fields.Date != nil {
			transaction.Date = *fields.Date
		}
		if fields.Merchant != nil {
			transaction.Merchant = *fields.Merchant
		}
		if fields.Description != nil {
			transaction.Description = *fields.Description
		}
		if fields.Notes != nil {
			transaction.Notes = *fields.Notes
		}
		if fields.Recurring != nil {
			transaction.Recurring = *fields.Recurring
		}

		newDelta := signedDelta(newType, transaction.Amount)

		if err := tx.Save(&transaction).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		if diff := newDelta - oldDelta; diff != 0 {
			if err := s.accountService.ApplyBalanceDelta(tx, transaction.AccountID, diff); err != nil {
				return err
			}
		}

		result = &transaction
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteTransaction removes a transaction and reverses exactly its original
// contribution to the account balance, both inside one database transaction.
func (s *transactionService) DeleteTransaction(userID, transactionID string) error {
	return runReconciled(s.db, func(tx *gorm.DB) error {
		var transaction models.Transaction
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND user_id = ?", transactionID, userID).
			First(&transaction).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrTransactionNotFound
			}
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		categoryType, err := resolveCategoryType(tx, transaction.CategoryID)
		if err != nil {
			return err
		}

		res := tx.Delete(&transaction)
		if res.Error != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
		}
		// A concurrent delete can win between the load and this statement.
		// The soft delete then matches nothing, and the reversal must not
		// run a second time.
		if res.RowsAffected != 1 {
			return apperrors.ErrTransactionNotFound
		}

		return s.accountService.ApplyBalanceDelta(tx, transaction.AccountID, -signedDelta(categoryType, transaction.Amount))
	})
}

// GetTransactionByID retrieves a transaction by ID for a specific user
func (s *transactionService) GetTransactionByID(userID, transactionID string) (*models.Transaction, error) {
	var transaction models.Transaction
	if err := s.db.Where("id = ? AND user_id = ?", transactionID, userID).First(&transaction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &transaction, nil
}

// GetAccountTransactions retrieves a paginated, filtered list of transactions for a specific account.
func (s *transactionService) GetAccountTransactions(userID, accountID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
	// First verify the account belongs to the user
	if _, err := s.accountService.GetAccountByID(userID, accountID); err != nil {
		return nil, err
	}

	page.Defaults()

	base := s.db.Model(&models.Transaction{}).Where("user_id = ? AND account_id = ?", userID, accountID)
	base = applyTransactionFilters(base, filter)

	return listTransactions(base, page)
}

// GetUserTransactions retrieves a paginated, filtered list of all the user's transactions.
func (s *transactionService) GetUserTransactions(userID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
	page.Defaults()

	base := s.db.Model(&models.Transaction{}).Where("user_id = ?", userID)
	if filter.AccountID != nil {
		base = base.Where("account_id = ?", *filter.AccountID)
	}
	base = applyTransactionFilters(base, filter)

	return listTransactions(base, page)
}

func listTransactions(base *gorm.DB, page pagination.PageRequest) (*pagination.PageResponse[models.Transaction], error) {
	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var transactions []models.Transaction
	if err := base.Scopes(pagination.Paginate(page)).
		Order("date DESC").
		Find(&transactions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(transactions, page.Page, page.PageSize, totalItems)
	return &result, nil
}

func applyTransactionFilters(q *gorm.DB, f TransactionFilter) *gorm.DB {
	if f.FromDate != nil {
		q = q.Where("date >= ?", *f.FromDate)
	}
	if f.ToDate != nil {
		q = q.Where("date <= ?", *f.ToDate)
	}
	if f.CategoryID != nil {
		q = q.Where("category_id = ?", *f.CategoryID)
	}
	if f.Merchant != nil {
		q = q.Where("merchant LIKE ?", "%"+*f.Merchant+"%")
	}
	if f.MinAmount != nil {
		q = q.Where("amount >= ?", *f.MinAmount)
	}
	if f.MaxAmount != nil {
		q = q.Where("amount <= ?", *f.MaxAmount)
	}
	if f.Recurring != nil {
		q = q.Where("recurring = ?", *f.Recurring)
	}
	return q
}

func (s *transactionService) getCategory(categoryID string) (*models.Category, error) {
	return s.getCategoryTx(s.db, categoryID)
}

func (s *transactionService) getCategoryTx(tx *gorm.DB, categoryID string) (*models.Category, error) {
	var category models.Category
	if err := tx.Where("id = ?", categoryID).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCategoryNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &category, nil
}

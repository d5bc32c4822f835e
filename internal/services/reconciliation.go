package services

import (
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"gorm.io/gorm"

	apperrors "tally/internal/errors"
	"tally/internal/models"
)

// defaultCategoryType is applied when a transaction has no category, or its
// category can no longer be resolved (soft-deleted). Uncategorized activity
// is treated as spending, never income.
const defaultCategoryType = models.CategoryTypeExpense

// balanceRetryAttempts bounds retries of a reconciliation unit on transient
// storage failures.
const balanceRetryAttempts = 4

// signedDelta returns the amount by which a transaction changes its account
// balance: +amount for income categories, -amount for everything else.
// Amounts are stored as positive magnitudes; this is the only place a sign
// is attached.
func signedDelta(categoryType models.CategoryType, amount int64) int64 {
	if categoryType == models.CategoryTypeIncome {
		return amount
	}
	return -amount
}

// resolveCategoryType returns the category type governing a transaction's
// sign. A nil ID or an unresolvable category yields defaultCategoryType.
func resolveCategoryType(tx *gorm.DB, categoryID *string) (models.CategoryType, error) {
	if categoryID == nil {
		return defaultCategoryType, nil
	}

	var category models.Category
	if err := tx.Select("type").Where("id = ?", *categoryID).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return defaultCategoryType, nil
		}
		return defaultCategoryType, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return category.Type, nil
}

// runReconciled executes fn as a single database transaction and retries the
// whole unit with bounded exponential backoff when storage fails transiently.
// Business failures (validation, ownership, not-found) are permanent and
// surface immediately. Because the ledger write and the balance write live in
// the same unit, a retry never observes a half-applied operation.
func runReconciled(db *gorm.DB, fn func(tx *gorm.DB) error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 20 * time.Millisecond
	bo.MaxInterval = 500 * time.Millisecond

	return backoff.Retry(func() error {
		err := db.Transaction(fn)
		if err == nil {
			return nil
		}

		var appErr *apperrors.AppError
		if errors.As(err, &appErr) && appErr.Code != apperrors.ErrInternalServer.Code {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithMaxRetries(bo, balanceRetryAttempts))
}

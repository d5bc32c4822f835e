package services

import (
	"bytes"
	"encoding/csv"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "tally/internal/errors"
	"tally/internal/models"
)

// reportService builds read-only aggregations over the transaction ledger.
// All money leaves this service as decimal strings in major currency units;
// the int64 cent representation stays internal.
type reportService struct {
	db             *gorm.DB
	accountService AccountServicer
}

// NewReportService creates a new ReportServicer.
func NewReportService(db *gorm.DB, accountService AccountServicer) ReportServicer {
	return &reportService{
		db:             db,
		accountService: accountService,
	}
}

// centsToDecimal formats an int64 cent amount as a major-unit decimal string.
func centsToDecimal(cents int64) string {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100)).StringFixed(2)
}

// GetMonthlySummary aggregates a user's income and spending for one calendar
// month. Uncategorized transactions count as expenses, matching how
// reconciliation signs them.
func (s *reportService) GetMonthlySummary(userID string, year int, month time.Month) (*MonthlySummary, error) {
	if year < 1970 || month < time.January || month > time.December {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid year or month")
	}

	monthStart := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, 0).Add(-time.Nanosecond)

	type spendRow struct {
		CategoryID   *string
		CategoryName *string
		CategoryType *string
		Total        int64
	}

	var rows []spendRow
	err := s.db.Model(&models.Transaction{}).
		Select(
			"categories.id AS category_id, "+
				"categories.name AS category_name, "+
				"categories.type AS category_type, "+
				"SUM(transactions.amount) AS total",
		).
		Joins("LEFT JOIN categories ON categories.id = transactions.category_id AND categories.deleted_at IS NULL").
		Where("transactions.user_id = ? AND transactions.date BETWEEN ? AND ? AND transactions.deleted_at IS NULL",
			userID, monthStart, monthEnd).
		Group("categories.id, categories.name, categories.type").
		Scan(&rows).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var income, expenses int64
	categories := make([]CategorySpend, 0, len(rows))
	for _, row := range rows {
		categoryType := defaultCategoryType
		if row.CategoryType != nil {
			categoryType = models.CategoryType(*row.CategoryType)
		}
		if categoryType == models.CategoryTypeIncome {
			income += row.Total
		} else {
			expenses += row.Total
		}

		spend := CategorySpend{
			Type:  categoryType,
			Total: centsToDecimal(row.Total),
		}
		if row.CategoryID != nil {
			spend.CategoryID = *row.CategoryID
		}
		if row.CategoryName != nil {
			spend.CategoryName = *row.CategoryName
		} else {
			spend.CategoryName = "Uncategorized"
		}
		categories = append(categories, spend)
	}

	return &MonthlySummary{
		Year:       year,
		Month:      int(month),
		Income:     centsToDecimal(income),
		Expenses:   centsToDecimal(expenses),
		Net:        centsToDecimal(income - expenses),
		Categories: categories,
	}, nil
}

// ExportAccountStatement renders a CSV statement for one account over a date
// range. The running balance column starts from the balance folded up to the
// window start, so the statement agrees with reconciliation regardless of the
// range chosen.
func (s *reportService) ExportAccountStatement(userID, accountID string, from, to time.Time) ([]byte, error) {
	account, err := s.accountService.GetAccountByID(userID, accountID)
	if err != nil {
		return nil, err
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "statement end date precedes start date")
	}

	type statementRow struct {
		Date         time.Time
		Merchant     string
		Description  string
		Amount       int64
		CategoryName *string
		CategoryType *string
	}

	// Balance carried into the window: opening balance plus everything
	// before the start date.
	running := account.OpeningBalance
	if !from.IsZero() {
		var preRows []statementRow
		if err := s.db.Model(&models.Transaction{}).
			Select("transactions.amount AS amount, categories.type AS category_type").
			Joins("LEFT JOIN categories ON categories.id = transactions.category_id AND categories.deleted_at IS NULL").
			Where("transactions.account_id = ? AND transactions.date < ? AND transactions.deleted_at IS NULL",
				account.ID, from).
			Scan(&preRows).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		for _, row := range preRows {
			categoryType := defaultCategoryType
			if row.CategoryType != nil {
				categoryType = models.CategoryType(*row.CategoryType)
			}
			running += signedDelta(categoryType, row.Amount)
		}
	}

	query := s.db.Model(&models.Transaction{}).
		Select(
			"transactions.date AS date, "+
				"transactions.merchant AS merchant, "+
				"transactions.description AS description, "+
				"transactions.amount AS amount, "+
				"categories.name AS category_name, "+
				"categories.type AS category_type",
		).
		Joins("LEFT JOIN categories ON categories.id = transactions.category_id AND categories.deleted_at IS NULL").
		Where("transactions.account_id = ? AND transactions.deleted_at IS NULL", account.ID)
	if !from.IsZero() {
		query = query.Where("transactions.date >= ?", from)
	}
	if !to.IsZero() {
		query = query.Where("transactions.date <= ?", to)
	}

	var rows []statementRow
	if err := query.Order("transactions.date").Scan(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{"date", "merchant", "description", "category", "amount", "balance"}
	if err := w.Write(header); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	for _, row := range rows {
		categoryType := defaultCategoryType
		categoryName := "Uncategorized"
		if row.CategoryType != nil {
			categoryType = models.CategoryType(*row.CategoryType)
		}
		if row.CategoryName != nil {
			categoryName = *row.CategoryName
		}

		delta := signedDelta(categoryType, row.Amount)
		running += delta

		record := []string{
			row.Date.Format("2006-01-02"),
			row.Merchant,
			row.Description,
			categoryName,
			centsToDecimal(delta),
			centsToDecimal(running),
		}
		if err := w.Write(record); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return buf.Bytes(), nil
}

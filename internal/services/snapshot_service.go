package services

import (
	"time"

	"gorm.io/gorm"

	apperrors "tally/internal/errors"
	"tally/internal/logger"
	"tally/internal/models"
	"tally/internal/pagination"
)

// snapshotService records and serves point-in-time net worth snapshots.
// Snapshots read the reconciled account balances; they never recompute from
// the transaction ledger.
type snapshotService struct {
	db *gorm.DB
}

// NewSnapshotService creates a new SnapshotServicer.
func NewSnapshotService(db *gorm.DB) SnapshotServicer {
	return &snapshotService{db: db}
}

// RecordSnapshots captures a net worth snapshot for every user with at least
// one active account, and returns how many were written. Credit card balances
// run negative under reconciliation, so debt is stored as their negated sum.
// Re-recording the same instant updates the existing row instead of
// duplicating it.
func (s *snapshotService) RecordSnapshots(recordedAt time.Time) (int, error) {
	type userTotals struct {
		UserID string
		Assets int64
		Debts  int64
	}

	var totals []userTotals
	err := s.db.Model(&models.Account{}).
		Select(
			"user_id, "+
				"COALESCE(SUM(CASE WHEN type = ? THEN 0 ELSE balance END), 0) AS assets, "+
				"COALESCE(SUM(CASE WHEN type = ? THEN balance ELSE 0 END), 0) AS debts",
			models.AccountTypeCreditCard, models.AccountTypeCreditCard,
		).
		Where("is_active = ?", true).
		Group("user_id").
		Scan(&totals).Error
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	recorded := 0
	for _, t := range totals {
		snapshot := models.NetWorthSnapshot{
			UserID:        t.UserID,
			RecordedAt:    recordedAt,
			TotalNetWorth: t.Assets + t.Debts,
			AssetBalance:  t.Assets,
			DebtBalance:   -t.Debts,
		}

		var existing models.NetWorthSnapshot
		res := s.db.Where("user_id = ? AND recorded_at = ?", t.UserID, recordedAt).First(&existing)
		if res.Error == nil {
			snapshot.ID = existing.ID
			if err := s.db.Model(&existing).Updates(map[string]interface{}{
				"total_net_worth": snapshot.TotalNetWorth,
				"asset_balance":   snapshot.AssetBalance,
				"debt_balance":    snapshot.DebtBalance,
			}).Error; err != nil {
				return recorded, apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
		} else {
			if err := s.db.Create(&snapshot).Error; err != nil {
				return recorded, apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
		}
		recorded++
	}

	logger.Get().Infow("recorded net worth snapshots",
		"count", recorded,
		"recorded_at", recordedAt,
	)
	return recorded, nil
}

// GetSnapshots returns a user's snapshots within a time range, oldest first.
func (s *snapshotService) GetSnapshots(userID string, from, to time.Time, page pagination.PageRequest) (*pagination.PageResponse[models.NetWorthSnapshot], error) {
	page.Defaults()

	base := s.db.Model(&models.NetWorthSnapshot{}).Where("user_id = ?", userID)
	if !from.IsZero() {
		base = base.Where("recorded_at >= ?", from)
	}
	if !to.IsZero() {
		base = base.Where("recorded_at <= ?", to)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var snapshots []models.NetWorthSnapshot
	if err := base.Order("recorded_at").Scopes(pagination.Paginate(page)).Find(&snapshots).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(snapshots, page.Page, page.PageSize, totalItems)
	return &result, nil
}

package models

import (
	"time"

	"tally/internal/uuid"

	"gorm.io/gorm"
)

// NetWorthSnapshot represents a point-in-time record of a user's net worth,
// broken down into asset and debt account balances. Snapshots are immutable
// time-series data, so there is no Base embed and no soft delete.
type NetWorthSnapshot struct {
	ID            string    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        string    `gorm:"type:uuid;not null;index" json:"user_id"`
	RecordedAt    time.Time `gorm:"not null" json:"recorded_at"`
	TotalNetWorth int64     `gorm:"type:bigint;not null" json:"total_net_worth"`
	AssetBalance  int64     `gorm:"type:bigint;not null" json:"asset_balance"`
	DebtBalance   int64     `gorm:"type:bigint;not null" json:"debt_balance"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (n *NetWorthSnapshot) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.New()
	}
	return nil
}

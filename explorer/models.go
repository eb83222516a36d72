package explorer

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReceiptRow is the persisted summary of a committed transaction.
type ReceiptRow struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	TxHash     string    `gorm:"size:66;uniqueIndex"`
	Type       string    `gorm:"size:32;index"`
	Sender     string    `gorm:"size:64;index"`
	Nonce      uint64
	Sequence   uint64 `gorm:"index"`
	Status     string `gorm:"size:16"`
	EventCount int
	Timestamp  int64
	CreatedAt  time.Time
}

func (ReceiptRow) TableName() string { return "receipts" }

// MintRow records one accepted minutes report and the reward it produced.
// Quantities are kept as decimal strings since they span the full uint64
// range, which SQL integer columns do not.
type MintRow struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	TxHash          string    `gorm:"size:66;index"`
	Sequence        uint64    `gorm:"index"`
	User            string    `gorm:"column:account;size:64;index"`
	PreviousMinutes string    `gorm:"size:20"`
	LifetimeMinutes string    `gorm:"size:20"`
	Delta           string    `gorm:"size:20"`
	Amount          string    `gorm:"size:20"`
	Saturated       bool
	ReportedAt      string `gorm:"size:20"`
	CreatedAt       time.Time
}

func (MintRow) TableName() string { return "mints" }

// AutoMigrate creates or updates the indexer tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&ReceiptRow{}, &MintRow{})
}

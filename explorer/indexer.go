package explorer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"rewardchain/core/events"
	"rewardchain/core/types"
	"rewardchain/crypto"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

var ErrUnsupportedDSN = errors.New("explorer: unsupported index dsn")

// Mint is a single entry of a user's reward history.
type Mint struct {
	TxHash          string `json:"txHash"`
	Sequence        uint64 `json:"sequence"`
	User            string `json:"user"`
	PreviousMinutes uint64 `json:"previousMinutes"`
	LifetimeMinutes uint64 `json:"lifetimeMinutes"`
	Delta           uint64 `json:"delta"`
	Amount          uint64 `json:"amount"`
	Saturated       bool   `json:"saturated,omitempty"`
	Timestamp       uint64 `json:"timestamp"`
	Label           string `json:"label"`
}

// Indexer persists committed receipts and minutes rewards to SQL. It is
// registered with the node as a receipt sink.
type Indexer struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open connects to the index database named by dsn. "sqlite://<path>" (or a
// bare path) uses the embedded sqlite driver; "postgres://" and
// "postgresql://" URLs use postgres.
func Open(dsn string, logger *slog.Logger) (*Indexer, error) {
	dialector, err := dialectorFor(dsn)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("explorer: open: %w", err)
	}
	return New(db, logger)
}

// New wraps an existing gorm handle and migrates the schema.
func New(db *gorm.DB, logger *slog.Logger) (*Indexer, error) {
	if db == nil {
		return nil, errors.New("explorer: nil database")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("explorer: migrate: %w", err)
	}
	return &Indexer{db: db, logger: logger}, nil
}

func dialectorFor(dsn string) (gorm.Dialector, error) {
	trimmed := strings.TrimSpace(dsn)
	switch {
	case trimmed == "":
		return nil, fmt.Errorf("%w: empty", ErrUnsupportedDSN)
	case strings.HasPrefix(trimmed, "postgres://"), strings.HasPrefix(trimmed, "postgresql://"):
		return postgres.Open(trimmed), nil
	case strings.HasPrefix(trimmed, "sqlite://"):
		return sqlite.Open(strings.TrimPrefix(trimmed, "sqlite://")), nil
	case strings.Contains(trimmed, "://"):
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDSN, trimmed)
	default:
		return sqlite.Open(trimmed), nil
	}
}

// HandleReceipt stores the receipt and any reward mints it carries. Receipts
// already indexed are skipped so replays are harmless.
func (i *Indexer) HandleReceipt(ctx context.Context, receipt *types.Receipt) error {
	if receipt == nil || !receipt.Succeeded() {
		return nil
	}
	return i.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := ReceiptRow{
			ID:         uuid.New(),
			TxHash:     receipt.TxHash,
			Type:       receipt.Type,
			Sender:     receipt.Sender,
			Nonce:      receipt.Nonce,
			Sequence:   receipt.Sequence,
			Status:     receipt.Status,
			EventCount: len(receipt.Events),
			Timestamp:  receipt.Timestamp,
		}
		res := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "tx_hash"}}, DoNothing: true}).Create(&row)
		if res.Error != nil {
			return fmt.Errorf("explorer: store receipt: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		for _, evt := range receipt.Events {
			mint, ok := mintRowFromEvent(receipt, evt)
			if !ok {
				continue
			}
			if err := tx.Create(&mint).Error; err != nil {
				return fmt.Errorf("explorer: store mint: %w", err)
			}
		}
		i.logger.Debug("receipt indexed",
			slog.String("txhash", receipt.TxHash),
			slog.Uint64("sequence", receipt.Sequence))
		return nil
	})
}

func mintRowFromEvent(receipt *types.Receipt, evt types.Event) (MintRow, bool) {
	if evt.Type != events.TypeRewardsMinutesRecorded {
		return MintRow{}, false
	}
	attrs := evt.Attributes
	if attrs["delta"] == "" || attrs["delta"] == "0" {
		return MintRow{}, false
	}
	return MintRow{
		ID:              uuid.New(),
		TxHash:          receipt.TxHash,
		Sequence:        receipt.Sequence,
		User:            attrs["user"],
		PreviousMinutes: attrs["previousMinutes"],
		LifetimeMinutes: attrs["lifetimeMinutes"],
		Delta:           attrs["delta"],
		Amount:          attrs["amount"],
		Saturated:       attrs["saturated"] == "true",
		ReportedAt:      attrs["timestamp"],
	}, true
}

// MintHistory returns the user's most recent reward mints, newest first.
func (i *Indexer) MintHistory(ctx context.Context, user [crypto.AddressLength]byte, limit int) ([]Mint, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	addr := crypto.MustNewAddress(crypto.RWDPrefix, user[:]).String()
	var rows []MintRow
	err := i.db.WithContext(ctx).
		Where("account = ?", addr).
		Order("sequence DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("explorer: mint history: %w", err)
	}
	out := make([]Mint, 0, len(rows))
	for _, row := range rows {
		out = append(out, mintFromRow(row))
	}
	return out, nil
}

// ReceiptCount returns the number of indexed receipts.
func (i *Indexer) ReceiptCount(ctx context.Context) (int64, error) {
	var count int64
	if err := i.db.WithContext(ctx).Model(&ReceiptRow{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("explorer: count receipts: %w", err)
	}
	return count, nil
}

// Close releases the underlying connection pool.
func (i *Indexer) Close() error {
	sqlDB, err := i.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func mintFromRow(row MintRow) Mint {
	m := Mint{
		TxHash:          row.TxHash,
		Sequence:        row.Sequence,
		User:            row.User,
		PreviousMinutes: parseUint(row.PreviousMinutes),
		LifetimeMinutes: parseUint(row.LifetimeMinutes),
		Delta:           parseUint(row.Delta),
		Amount:          parseUint(row.Amount),
		Saturated:       row.Saturated,
		Timestamp:       parseUint(row.ReportedAt),
	}
	m.Label = MintLabel(m.Delta)
	return m
}

func parseUint(s string) uint64 {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Activity types recorded in the vault log.
const (
	ActivityAudit    = "audit"
	ActivityPurchase = "purchase"
	ActivityReward   = "reward"
)

// ActivityRecord is one row of the vault archive.
type ActivityRecord struct {
	Id          string          `db:"id"`
	Type        string          `db:"type"`
	Description string          `db:"description"`
	AmountEth   decimal.Decimal `db:"amount_eth"`
	Credits     int             `db:"credits"`
	Address     string          `db:"address"`
	Score       *int            `db:"score"`
	ReportHash  string          `db:"report_hash"`
	CreatedAt   time.Time       `db:"created_at"`
}

// RecordActivity appends one entry to the vault log.
func (s *Service) RecordActivity(ctx context.Context, record ActivityRecord) error {
	switch record.Type {
	case ActivityAudit, ActivityPurchase, ActivityReward:
	default:
		return fmt.Errorf("unknown activity type %q", record.Type)
	}
	if record.Id == "" {
		record.Id = uuid.New().String()
	}

	_, err := s.db.ExecContext(ctx, queryInsertActivity,
		record.Id, record.Type, record.Description, record.AmountEth.String(),
		record.Credits, normalizeAddress(record.Address), record.Score,
		record.ReportHash)
	if err != nil {
		return fmt.Errorf("error recording activity: %w", err)
	}
	return nil
}

// ListActivity returns the most recent vault entries, newest first.
func (s *Service) ListActivity(ctx context.Context, limit, offset int) ([]ActivityRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx, queryListActivity, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("error listing activity: %w", err)
	}
	defer rows.Close()

	var records []ActivityRecord
	for rows.Next() {
		var record ActivityRecord
		var amount string
		if err := rows.Scan(&record.Id, &record.Type, &record.Description,
			&amount, &record.Credits, &record.Address, &record.Score,
			&record.ReportHash, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning activity row: %w", err)
		}
		record.AmountEth, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("corrupt amount in activity %s: %w", record.Id, err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"veraguard-go/internal/models"

	"go.uber.org/zap"
)

// Lookup returns the cached entry for an address, matched case-insensitively,
// or nil on a miss. Callers must check IsProxy before replaying: a proxy
// contract's logic may have changed since the scan.
func (s *Service) Lookup(ctx context.Context, address string) (*models.HistoryEntry, error) {
	key := normalizeAddress(address)
	if key == "" {
		return nil, fmt.Errorf("address is required")
	}

	row := s.db.QueryRowContext(ctx, queryLookupAudit, key)

	var entry models.HistoryEntry
	var warningsJSON, milestonesJSON string
	var vitalsJSON sql.NullString
	err := row.Scan(&entry.Address, &entry.Score, &warningsJSON, &vitalsJSON,
		&milestonesJSON, &entry.CostDeducted, &entry.CreditSource,
		&entry.ReportHash, &entry.IsProxy, &entry.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading audit history: %w", err)
	}

	if err := json.Unmarshal([]byte(warningsJSON), &entry.Warnings); err != nil {
		return nil, fmt.Errorf("corrupt warnings for %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(milestonesJSON), &entry.Milestones); err != nil {
		return nil, fmt.Errorf("corrupt milestones for %s: %w", key, err)
	}
	if vitalsJSON.Valid && vitalsJSON.String != "" {
		var vitals models.Vitals
		if err := json.Unmarshal([]byte(vitalsJSON.String), &vitals); err != nil {
			return nil, fmt.Errorf("corrupt vitals for %s: %w", key, err)
		}
		entry.Vitals = &vitals
	}

	return &entry, nil
}

// Insert caches a completed audit under its lowercased address, replacing any
// prior entry for the same target.
func (s *Service) Insert(ctx context.Context, report *models.AuditReport) error {
	key := normalizeAddress(report.Address)
	if key == "" {
		return fmt.Errorf("report address is required")
	}

	warningsJSON, err := json.Marshal(orEmpty(report.Warnings))
	if err != nil {
		return fmt.Errorf("unable to encode warnings: %w", err)
	}
	milestonesJSON, err := json.Marshal(orEmptyMilestones(report.Milestones))
	if err != nil {
		return fmt.Errorf("unable to encode milestones: %w", err)
	}
	var vitalsJSON any
	if report.Vitals != nil {
		encoded, err := json.Marshal(report.Vitals)
		if err != nil {
			return fmt.Errorf("unable to encode vitals: %w", err)
		}
		vitalsJSON = string(encoded)
	}

	_, err = s.db.ExecContext(ctx, queryUpsertAudit, key, report.Score,
		string(warningsJSON), vitalsJSON, string(milestonesJSON),
		report.CostDeducted, report.CreditSource, report.ReportHash, report.IsProxy)
	if err != nil {
		return fmt.Errorf("error caching audit for %s: %w", key, err)
	}

	zap.L().Debug("Audit cached",
		zap.String("address", key),
		zap.Int("score", report.Score),
		zap.Bool("is_proxy", report.IsProxy))
	return nil
}

func normalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

func orEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func orEmptyMilestones(values []models.Milestone) []models.Milestone {
	if values == nil {
		return []models.Milestone{}
	}
	return values
}

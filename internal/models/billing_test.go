package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestFeeQuote_Expired(t *testing.T) {
	now := time.Unix(1700000000, 0)
	quote := FeeQuote{Expiry: now.Add(30 * time.Second).Unix()}

	if quote.Expired(now) {
		t.Error("Quote with 30s left must not be expired")
	}
	if !quote.Expired(now.Add(30 * time.Second)) {
		t.Error("Quote must expire at its expiry instant")
	}
	if !quote.Expired(now.Add(time.Minute)) {
		t.Error("Quote past expiry must be expired")
	}
}

func TestFeeQuote_TimeLeftFloorsAtZero(t *testing.T) {
	now := time.Unix(1700000000, 0)
	quote := FeeQuote{Expiry: now.Add(10 * time.Second).Unix()}

	if left := quote.TimeLeft(now); left != 10*time.Second {
		t.Errorf("Expected 10s, got %s", left)
	}
	if left := quote.TimeLeft(now.Add(time.Minute)); left != 0 {
		t.Errorf("Expected floored zero, got %s", left)
	}
}

func TestFeeQuote_Total(t *testing.T) {
	quote := FeeQuote{AmountEthPerCredit: decimal.RequireFromString("0.001")}
	if total := quote.Total(7); !total.Equal(decimal.RequireFromString("0.007")) {
		t.Errorf("Expected 0.007, got %s", total.String())
	}
}

func TestHistoryEntry_ReportIsFreeReplay(t *testing.T) {
	entry := HistoryEntry{
		Address:      "0xabc",
		Score:        81,
		CostDeducted: 3,
		CreditSource: "credits",
		ReportHash:   "h1",
	}

	report := entry.Report()
	if report.CostDeducted != 0 {
		t.Errorf("A replay costs nothing, got %d", report.CostDeducted)
	}
	if report.CreditSource != "recall" {
		t.Errorf("Expected recall source, got %s", report.CreditSource)
	}
	if report.Score != 81 || report.ReportHash != "h1" {
		t.Errorf("Replay must preserve the findings: %+v", report)
	}
}

/**
 * Copyright 2025-present VeraGuard Labs
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package models

import "time"

// Tier is the analysis depth a request runs at.
type Tier string

const (
	TierStandard Tier = "standard"
	TierDeep     Tier = "deep"
)

// ApprovalState tracks a request's passage through the deep-dive upgrade
// decision. A request passes through AwaitingApproval at most once per
// submission.
type ApprovalState string

const (
	ApprovalNone     ApprovalState = "none"
	ApprovalAwaiting ApprovalState = "awaiting_approval"
	ApprovalApproved ApprovalState = "approved"
	ApprovalBypassed ApprovalState = "bypassed"
)

// PendingAuditRequest is the single source of truth for an in-flight audit's
// target. During a tier-escalation resubmission the pending target is used,
// never the (possibly edited) input field.
type PendingAuditRequest struct {
	TargetAddress string
	Tier          Tier
	ApprovalState ApprovalState
}

// Vitals are the contract health readings attached to a report.
type Vitals struct {
	BytecodeSize int  `json:"bytecode_size"`
	AgeDays      int  `json:"age_days"`
	TxCount      int  `json:"tx_count"`
	Verified     bool `json:"verified"`
}

// Milestone is one step of the analysis narrative shown with a report.
type Milestone struct {
	Label  string `json:"label"`
	Detail string `json:"detail"`
	Passed bool   `json:"passed"`
}

// AuditReport is a completed analysis result from the metered engine.
type AuditReport struct {
	Address      string      `json:"address"`
	Score        int         `json:"vera_score"`
	Warnings     []string    `json:"warnings"`
	RiskSummary  string      `json:"risk_summary"`
	Milestones   []Milestone `json:"milestones"`
	Vitals       *Vitals     `json:"vitals"`
	ReportHash   string      `json:"report_hash"`
	CostDeducted int         `json:"cost_deducted"`
	CreditSource string      `json:"credit_source"`
	IsProxy      bool        `json:"is_proxy"`
}

// HistoryEntry is a locally cached completed audit. IsProxy invalidates free
// recall: an upgradeable contract's logic may have changed since the scan, so
// the cached score cannot be trusted and a repeat request must re-submit.
type HistoryEntry struct {
	Address      string      `db:"address"`
	Score        int         `db:"score"`
	Warnings     []string    `db:"warnings"`
	Vitals       *Vitals     `db:"vitals"`
	Milestones   []Milestone `db:"milestones"`
	CostDeducted int         `db:"cost_deducted"`
	CreditSource string      `db:"credit_source"`
	ReportHash   string      `db:"report_hash"`
	IsProxy      bool        `db:"is_proxy"`
	CreatedAt    time.Time   `db:"created_at"`
}

// Report rebuilds a displayable report from the cached entry.
func (e *HistoryEntry) Report() *AuditReport {
	return &AuditReport{
		Address:      e.Address,
		Score:        e.Score,
		Warnings:     e.Warnings,
		Milestones:   e.Milestones,
		Vitals:       e.Vitals,
		ReportHash:   e.ReportHash,
		CostDeducted: 0, // replayed from cache, nothing spent
		CreditSource: "recall",
		IsProxy:      e.IsProxy,
	}
}

// Lead is one row of the priority leads ticker.
type Lead struct {
	Address   string `json:"address"`
	Risk      string `json:"risk"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

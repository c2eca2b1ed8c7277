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

package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"veraguard-go/internal/models"
)

// AuditSubmission is one request to the metered analysis endpoint.
type AuditSubmission struct {
	Address         string `json:"address"`
	UserId          string `json:"user_id"`
	ConfirmDeepDive bool   `json:"confirm_deep_dive"`
	BypassDeepDive  bool   `json:"bypass_deep_dive"`
}

// AuditOutcome is the decoded analysis response. Exactly one of the two
// fields is populated: RequiresApproval signals a mid-flight tier escalation
// that needs a user decision before resubmission; otherwise Report holds the
// completed analysis.
type AuditOutcome struct {
	RequiresApproval bool
	Report           *models.AuditReport
}

// SubmitAudit sends a metered analysis request. Domain-coded rejections map
// to sentinel errors: 402 wraps ErrInsufficientCredits with the server's
// detail, 503 returns ErrVaultHalted. Any other non-2xx is generic.
func (s *Service) SubmitAudit(ctx context.Context, submission AuditSubmission) (*AuditOutcome, error) {
	if submission.Address == "" {
		return nil, fmt.Errorf("target address is required")
	}
	if submission.UserId == "" {
		return nil, fmt.Errorf("user id is required")
	}

	status, raw, err := s.do(ctx, http.MethodPost, "/api/audit", submission)
	if err != nil {
		return nil, err
	}

	switch status {
	case http.StatusPaymentRequired:
		var detail struct {
			Detail string `json:"detail"`
		}
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Detail != "" {
			return nil, fmt.Errorf("%w: %s", ErrInsufficientCredits, detail.Detail)
		}
		return nil, ErrInsufficientCredits
	case http.StatusServiceUnavailable:
		return nil, ErrVaultHalted
	}
	if status < 200 || status > 299 {
		return nil, fmt.Errorf("engine returned status %d for audit submission", status)
	}

	var envelope struct {
		Status string `json:"status"`
		Error  string `json:"error"`
		models.AuditReport
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("unable to decode audit response: %w", err)
	}

	if envelope.Status == "requires_approval" {
		return &AuditOutcome{RequiresApproval: true}, nil
	}
	if envelope.Error != "" {
		return nil, fmt.Errorf("audit rejected: %s", envelope.Error)
	}

	report := envelope.AuditReport
	report.Address = submission.Address
	return &AuditOutcome{Report: &report}, nil
}

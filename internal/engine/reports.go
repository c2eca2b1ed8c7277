package engine

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"veraguard-go/internal/models"
)

// LiveReportResult is a published report fetched by id, with the server's
// optional referral banner message.
type LiveReportResult struct {
	Report      *models.AuditReport `json:"report"`
	ReferralMsg string              `json:"referral_msg"`
}

// GetLiveReport fetches a shared report permalink. The optional inbound
// referral code is forwarded so the server can attribute the visit.
func (s *Service) GetLiveReport(ctx context.Context, reportId, refCode string) (*LiveReportResult, error) {
	if reportId == "" {
		return nil, fmt.Errorf("report id is required")
	}

	path := "/api/audit/live/" + url.PathEscape(reportId)
	if refCode != "" {
		path += "?ref=" + url.QueryEscape(refCode)
	}

	var result LiveReportResult
	if err := s.doJSON(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, fmt.Errorf("unable to fetch live report %s: %w", reportId, err)
	}
	if result.Report == nil {
		return nil, fmt.Errorf("report not found or expired")
	}
	return &result, nil
}

// GetLeads fetches the priority leads ticker for a user. Locked rows come
// back with a non-VISIBLE status and redacted content.
func (s *Service) GetLeads(ctx context.Context, userId string) ([]models.Lead, error) {
	if userId == "" {
		return nil, fmt.Errorf("user id is required")
	}

	var response struct {
		Leads []models.Lead `json:"leads"`
	}
	path := "/api/leads?user_id=" + url.QueryEscape(userId)
	if err := s.doJSON(ctx, http.MethodGet, path, nil, &response); err != nil {
		return nil, fmt.Errorf("unable to fetch leads: %w", err)
	}
	return response.Leads, nil
}

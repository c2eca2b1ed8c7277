package engine

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"veraguard-go/internal/models"
)

// GetReferralStats fetches a user's referral code and standing. A user with
// no code yet gets an empty Code.
func (s *Service) GetReferralStats(ctx context.Context, userId string) (*models.ReferralStats, error) {
	if userId == "" {
		return nil, fmt.Errorf("user id is required")
	}

	var stats models.ReferralStats
	path := "/api/referral/" + url.PathEscape(userId)
	if err := s.doJSON(ctx, http.MethodGet, path, nil, &stats); err != nil {
		return nil, fmt.Errorf("unable to fetch referral stats: %w", err)
	}
	return &stats, nil
}

// CreateReferralCode asks the engine to mint a referral code for the user.
// Eligibility (lifetime spend threshold) is enforced server-side.
func (s *Service) CreateReferralCode(ctx context.Context, userId string) (string, error) {
	if userId == "" {
		return "", fmt.Errorf("user id is required")
	}

	request := struct {
		UserId string `json:"user_id"`
	}{UserId: userId}

	var response struct {
		Code  string `json:"code"`
		Error string `json:"error"`
	}
	if err := s.doJSON(ctx, http.MethodPost, "/api/referral/create", request, &response); err != nil {
		return "", fmt.Errorf("unable to create referral code: %w", err)
	}
	if response.Error != "" {
		return "", fmt.Errorf("referral code rejected: %s", response.Error)
	}
	if response.Code == "" {
		return "", fmt.Errorf("engine returned no referral code")
	}
	return response.Code, nil
}

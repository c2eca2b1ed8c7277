package engine

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"veraguard-go/internal/models"
)

// GetCredits fetches the remote ledger's balance snapshot for a user.
func (s *Service) GetCredits(ctx context.Context, userId string) (*models.CreditBalance, error) {
	if userId == "" {
		return nil, fmt.Errorf("user id is required")
	}

	var balance models.CreditBalance
	path := "/api/credits/" + url.PathEscape(userId)
	if err := s.doJSON(ctx, http.MethodGet, path, nil, &balance); err != nil {
		return nil, fmt.Errorf("unable to fetch credits for %s: %w", userId, err)
	}
	return &balance, nil
}

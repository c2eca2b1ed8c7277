package engine

import (
	"context"
	"fmt"
	"net/http"

	"veraguard-go/internal/models"
)

// GetFeeQuote fetches a fresh time-boxed price quote from the pricing
// collaborator.
func (s *Service) GetFeeQuote(ctx context.Context) (*models.FeeQuote, error) {
	var response struct {
		Quote *models.FeeQuote `json:"quote"`
	}
	if err := s.doJSON(ctx, http.MethodGet, "/api/fee", nil, &response); err != nil {
		return nil, fmt.Errorf("unable to fetch fee quote: %w", err)
	}
	if response.Quote == nil {
		return nil, fmt.Errorf("pricing response contained no quote")
	}
	return response.Quote, nil
}

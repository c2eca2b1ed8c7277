package engine

import (
	"context"
	"fmt"
	"net/http"

	"veraguard-go/internal/models"
)

// PaymentRequest is one settlement submission. Exactly one is issued per
// purchase confirmation; there are no automatic retries.
type PaymentRequest struct {
	TxHash         string `json:"tx_hash"`
	UserId         string `json:"user_id"`
	Credits        int    `json:"credits"`
	IsSubscription bool   `json:"is_subscription"`
	ReferralCode   string `json:"referral_code,omitempty"`
}

// SubmitPayment sends a payment intent to the settlement collaborator and
// returns the updated ledger snapshot. The snapshot is adopted verbatim by
// the caller, never recomputed locally.
func (s *Service) SubmitPayment(ctx context.Context, request PaymentRequest) (*models.CreditBalance, error) {
	if request.UserId == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if request.TxHash == "" {
		return nil, fmt.Errorf("tx hash is required")
	}
	if !request.IsSubscription && request.Credits <= 0 {
		return nil, fmt.Errorf("credit amount must be positive for non-subscription purchases")
	}

	var balance models.CreditBalance
	if err := s.doJSON(ctx, http.MethodPost, "/api/pay", request, &balance); err != nil {
		return nil, fmt.Errorf("payment verification failed: %w", err)
	}
	return &balance, nil
}

package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"veraguard-go/internal/models"
)

// ErrNoSession signals the store holds no persisted identity yet.
var ErrNoSession = errors.New("no local session")

// GetSession loads the persisted session identity.
func (s *Service) GetSession(ctx context.Context) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx, queryGetSession)

	var session models.Session
	err := row.Scan(&session.UserId, &session.WalletAddress, &session.IsMember,
		&session.CreatedAt, &session.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("error reading session: %w", err)
	}
	return &session, nil
}

// CreateSession persists a freshly generated identity.
func (s *Service) CreateSession(ctx context.Context, session *models.Session) error {
	if session.UserId == "" {
		return fmt.Errorf("user id is required")
	}
	_, err := s.db.ExecContext(ctx, queryInsertSession,
		session.UserId, session.WalletAddress, session.IsMember)
	if err != nil {
		return fmt.Errorf("error persisting session: %w", err)
	}
	return nil
}

// SetWallet updates the persisted wallet address. An empty address records a
// logout; the user id row is preserved either way.
func (s *Service) SetWallet(ctx context.Context, walletAddress string) error {
	_, err := s.db.ExecContext(ctx, queryUpdateWallet, walletAddress)
	if err != nil {
		return fmt.Errorf("error updating wallet address: %w", err)
	}
	return nil
}

// SetMember mirrors the membership flag from the remote ledger.
func (s *Service) SetMember(ctx context.Context, isMember bool) error {
	_, err := s.db.ExecContext(ctx, queryUpdateMember, isMember)
	if err != nil {
		return fmt.Errorf("error updating membership flag: %w", err)
	}
	return nil
}

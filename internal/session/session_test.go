package session

import (
	"context"
	"strings"
	"testing"

	"veraguard-go/internal/history"
)

func setupManager(t *testing.T) (*Manager, *history.Service, func()) {
	ctx := context.Background()
	store, err := history.NewMemoryService(ctx)
	if err != nil {
		t.Fatalf("Failed to open in-memory store: %v", err)
	}
	manager, err := Load(ctx, store)
	if err != nil {
		store.Close()
		t.Fatalf("Load failed: %v", err)
	}
	return manager, store, store.Close
}

func TestLoad_GeneratesIdentityOnFirstRun(t *testing.T) {
	manager, _, cleanup := setupManager(t)
	defer cleanup()

	if manager.UserId() == "" {
		t.Fatal("Expected a generated user id")
	}
}

func TestLoad_ReusesPersistedIdentity(t *testing.T) {
	ctx := context.Background()
	store, err := history.NewMemoryService(ctx)
	if err != nil {
		t.Fatalf("Failed to open in-memory store: %v", err)
	}
	defer store.Close()

	first, err := Load(ctx, store)
	if err != nil {
		t.Fatalf("First load failed: %v", err)
	}
	second, err := Load(ctx, store)
	if err != nil {
		t.Fatalf("Second load failed: %v", err)
	}
	if first.UserId() != second.UserId() {
		t.Errorf("Identity must persist across loads: %s != %s", first.UserId(), second.UserId())
	}
}

func TestLogout_PreservesUserId(t *testing.T) {
	manager, _, cleanup := setupManager(t)
	defer cleanup()
	ctx := context.Background()

	userId := manager.UserId()
	if err := manager.ConnectWallet(ctx, "0xwallet1"); err != nil {
		t.Fatalf("ConnectWallet failed: %v", err)
	}
	if err := manager.Logout(ctx); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	current := manager.Current()
	if current.WalletAddress != "" {
		t.Error("Logout must clear the wallet address")
	}
	if current.UserId != userId {
		t.Error("Logout must preserve the user id")
	}
}

func TestPaymentTxHash_PrefixFollowsWalletState(t *testing.T) {
	manager, _, cleanup := setupManager(t)
	defer cleanup()
	ctx := context.Background()

	if hash := manager.PaymentTxHash(); !strings.HasPrefix(hash, "0xvalid_") {
		t.Errorf("Expected 0xvalid_ prefix without a wallet, got %s", hash)
	}

	if err := manager.ConnectWallet(ctx, "0xwallet1"); err != nil {
		t.Fatalf("ConnectWallet failed: %v", err)
	}
	if hash := manager.PaymentTxHash(); !strings.HasPrefix(hash, "0xreal_") {
		t.Errorf("Expected 0xreal_ prefix with a wallet, got %s", hash)
	}

	if a, b := manager.PaymentTxHash(), manager.PaymentTxHash(); a == b {
		t.Error("Each payment reference must carry a fresh nonce")
	}
}

func TestAdoptMembership_PersistsFlag(t *testing.T) {
	manager, store, cleanup := setupManager(t)
	defer cleanup()
	ctx := context.Background()

	if err := manager.AdoptMembership(ctx, true); err != nil {
		t.Fatalf("AdoptMembership failed: %v", err)
	}

	session, err := store.GetSession(ctx)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if !session.IsMember {
		t.Error("Membership flag must be persisted")
	}
}

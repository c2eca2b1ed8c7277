package ledger

import (
	"context"
	"sync"

	"veraguard-go/internal/models"
	"veraguard-go/internal/notify"

	"go.uber.org/zap"
)

// Remote is the credits ledger collaborator. It owns the balance; the mirror
// only caches it.
type Remote interface {
	GetCredits(ctx context.Context, userId string) (*models.CreditBalance, error)
}

// Mirror is the local read-mostly cache of the remote credit ledger.
// It is overwritten wholesale after every fetch or mutating call and never
// incremented speculatively: server-side bonuses, referral multipliers, and
// membership discounts make local arithmetic unreliable.
type Mirror struct {
	remote Remote
	sink   notify.Sink

	mu      sync.RWMutex
	balance models.CreditBalance
	synced  bool
}

func NewMirror(remote Remote, sink notify.Sink) *Mirror {
	return &Mirror{remote: remote, sink: sink}
}

// Refresh fetches the ledger snapshot and adopts it verbatim. A failure keeps
// the last-known balance in place and is logged, never surfaced as blocking.
func (m *Mirror) Refresh(ctx context.Context, userId string) {
	balance, err := m.remote.GetCredits(ctx, userId)
	if err != nil {
		zap.L().Warn("Credit ledger refresh failed, keeping last-known balance",
			zap.String("user_id", userId),
			zap.Error(err))
		return
	}
	m.Adopt(*balance)
}

// Adopt overwrites the mirror with a server-returned snapshot, e.g. from a
// settlement response.
func (m *Mirror) Adopt(balance models.CreditBalance) {
	m.mu.Lock()
	m.balance = balance
	m.synced = true
	m.mu.Unlock()

	zap.L().Debug("Credit balance adopted",
		zap.Int("credits", balance.Credits),
		zap.Bool("is_member", balance.IsMember))

	if m.sink != nil {
		snapshot := balance
		m.sink.Publish(notify.Notification{Category: notify.CategoryBalance, Balance: &snapshot})
	}
}

// Current returns the last-known balance and whether the mirror has ever been
// synced. Multi-reader; only the flow currently mutating writes.
func (m *Mirror) Current() (models.CreditBalance, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balance, m.synced
}

// Credits is a display convenience for the last-known credit count.
func (m *Mirror) Credits() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balance.Credits
}

package live

import (
	"context"
	"time"

	"veraguard-go/internal/engine"
	"veraguard-go/internal/models"
)

// Stream yields push events until closed.
type Stream interface {
	Next() (*models.LiveEvent, error)
	Close() error
}

// Source opens a fresh stream; the bridge redials through it on failure.
type Source interface {
	Subscribe(ctx context.Context) (Stream, error)
}

var _ Stream = (*engine.LiveStream)(nil)

// EngineSource adapts the engine's websocket subscription to the Source
// interface.
type EngineSource struct {
	Service     *engine.Service
	DialTimeout time.Duration
}

func (s *EngineSource) Subscribe(ctx context.Context) (Stream, error) {
	return s.Service.SubscribeLive(ctx, s.DialTimeout)
}

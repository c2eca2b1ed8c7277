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

// Package live maintains the server push subscription and the set of
// currently visible ephemeral events.
package live

import (
	"context"
	"sync"
	"time"

	"veraguard-go/internal/models"
	"veraguard-go/internal/notify"

	"go.uber.org/zap"
)

// Per-tag display lifetimes. An event vanishes on its own after its
// lifetime unless replaced first.
var eventLifetimes = map[models.EventTag]time.Duration{
	models.EventContractDetected:   4 * time.Second,
	models.EventIntelligenceUpdate: 2500 * time.Millisecond,
	models.EventSpoofAlert:         6 * time.Second,
	models.EventBrainDiscovery:     8 * time.Second,
}

const defaultEventLifetime = 5 * time.Second

// slot holds the visible event for one tag. seq guards expiry: a timer fired
// for a replaced event must not clear its successor.
type slot struct {
	event *models.LiveEvent
	seq   uint64
	timer *time.Timer
}

// Bridge consumes the push stream, keeps at most one visible event per tag,
// and republishes arrivals to the notification sink. Losing the connection
// never disturbs the rest of the client; the bridge redials quietly.
type Bridge struct {
	source            Source
	sink              *notify.Hub
	reconnectInterval time.Duration

	mu    sync.Mutex
	slots map[models.EventTag]*slot
	seq   uint64

	started  bool
	stopChan chan struct{}
	doneChan chan struct{}
}

func NewBridge(source Source, sink *notify.Hub, reconnectInterval time.Duration) *Bridge {
	if reconnectInterval <= 0 {
		reconnectInterval = 5 * time.Second
	}
	return &Bridge{
		source:            source,
		sink:              sink,
		reconnectInterval: reconnectInterval,
		slots:             make(map[models.EventTag]*slot),
		stopChan:          make(chan struct{}),
		doneChan:          make(chan struct{}),
	}
}

// Start begins consuming the push stream.
func (b *Bridge) Start(ctx context.Context) {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return
	}
	b.started = true
	b.mu.Unlock()
	zap.L().Info("Starting live event bridge")
	go b.runLoop(ctx)
}

// Stop tears down the subscription and waits for the loop to exit. A no-op
// if Start was never called.
func (b *Bridge) Stop() {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return
	}
	b.started = false
	b.mu.Unlock()
	zap.L().Info("Stopping live event bridge")
	close(b.stopChan)
	<-b.doneChan

	b.mu.Lock()
	for _, s := range b.slots {
		if s.timer != nil {
			s.timer.Stop()
		}
	}
	b.slots = make(map[models.EventTag]*slot)
	b.mu.Unlock()

	zap.L().Info("Live event bridge stopped")
}

// runLoop dials, consumes until the stream fails, and redials after the
// reconnect interval.
func (b *Bridge) runLoop(ctx context.Context) {
	defer close(b.doneChan)

	for {
		select {
		case <-b.stopChan:
			return
		case <-ctx.Done():
			return
		default:
		}

		stream, err := b.source.Subscribe(ctx)
		if err != nil {
			zap.L().Warn("Live subscription failed, will retry",
				zap.Duration("retry_in", b.reconnectInterval),
				zap.Error(err))
			if !b.sleep(ctx) {
				return
			}
			continue
		}

		zap.L().Info("Live event stream connected")
		b.consume(ctx, stream)
		stream.Close()

		if !b.sleep(ctx) {
			return
		}
	}
}

func (b *Bridge) sleep(ctx context.Context) bool {
	select {
	case <-time.After(b.reconnectInterval):
		return true
	case <-b.stopChan:
		return false
	case <-ctx.Done():
		return false
	}
}

func (b *Bridge) consume(ctx context.Context, stream Stream) {
	events := make(chan *models.LiveEvent)
	readErr := make(chan error, 1)

	go func() {
		for {
			event, err := stream.Next()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case events <- event:
			case <-b.stopChan:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case event := <-events:
			b.show(event)
		case err := <-readErr:
			zap.L().Warn("Live event stream lost", zap.Error(err))
			return
		case <-b.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// show installs the event in its tag's slot, replacing any predecessor, and
// arms the expiry timer.
func (b *Bridge) show(event *models.LiveEvent) {
	if event == nil || event.Tag == "" {
		return
	}
	event.ReceivedAt = time.Now()

	lifetime, ok := eventLifetimes[event.Tag]
	if !ok {
		lifetime = defaultEventLifetime
	}

	b.mu.Lock()
	b.seq++
	seq := b.seq

	s, ok := b.slots[event.Tag]
	if !ok {
		s = &slot{}
		b.slots[event.Tag] = s
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.event = event
	s.seq = seq

	tag := event.Tag
	s.timer = time.AfterFunc(lifetime, func() {
		b.expire(tag, seq)
	})
	b.mu.Unlock()

	zap.L().Debug("Live event visible",
		zap.String("tag", string(event.Tag)),
		zap.String("address", event.Address),
		zap.Duration("lifetime", lifetime))

	if b.sink != nil {
		b.sink.Publish(notify.Notification{
			Category: notify.CategoryLive,
			Event:    event,
		})
	}
}

// expire clears a slot only if the slot still holds the event the timer was
// armed for.
func (b *Bridge) expire(tag models.EventTag, seq uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.slots[tag]
	if !ok || s.seq != seq {
		return
	}
	s.event = nil
	s.timer = nil
}

// Visible returns the currently displayed event per tag.
func (b *Bridge) Visible() map[models.EventTag]*models.LiveEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	visible := make(map[models.EventTag]*models.LiveEvent, len(b.slots))
	for tag, s := range b.slots {
		if s.event != nil {
			visible[tag] = s.event
		}
	}
	return visible
}

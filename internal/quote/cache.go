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

package quote

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"veraguard-go/internal/models"
	"veraguard-go/internal/notify"

	"go.uber.org/zap"
)

// Pricing is the remote pricing collaborator.
type Pricing interface {
	GetFeeQuote(ctx context.Context) (*models.FeeQuote, error)
}

// ErrQuoteUnavailable signals no live quote could be obtained. Rendered as
// "quote unavailable", not as a blocking error.
var ErrQuoteUnavailable = errors.New("quote unavailable")

// Cache holds the current price quote and its countdown. An expired quote is
// refetched, never mutated in place; the countdown reaching zero triggers an
// automatic refetch, not a cancellation.
type Cache struct {
	pricing Pricing
	sink    notify.Sink

	mu    sync.RWMutex
	quote *models.FeeQuote

	// now is replaceable in tests.
	now func() time.Time

	started  bool
	stopChan chan struct{}
	doneChan chan struct{}
}

func NewCache(pricing Pricing, sink notify.Sink) *Cache {
	return &Cache{
		pricing:  pricing,
		sink:     sink,
		now:      time.Now,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start runs the one-second countdown ticker that refetches the quote when it
// expires. Stop with Stop or by cancelling ctx.
func (c *Cache) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()
	go c.tickLoop(ctx)
}

// Stop halts the ticker loop. A no-op if Start was never called.
func (c *Cache) Stop() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	c.started = false
	c.mu.Unlock()
	close(c.stopChan)
	<-c.doneChan
}

func (c *Cache) tickLoop(ctx context.Context) {
	defer close(c.doneChan)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.RLock()
			expired := c.quote != nil && c.quote.Expired(c.now())
			c.mu.RUnlock()
			if expired {
				if _, err := c.refetch(ctx); err != nil {
					zap.L().Warn("Quote refetch failed", zap.Error(err))
				}
			}
		case <-c.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Get returns the live quote, fetching a fresh one on first call or whenever
// the stored quote has expired.
func (c *Cache) Get(ctx context.Context) (*models.FeeQuote, error) {
	c.mu.RLock()
	quote := c.quote
	c.mu.RUnlock()

	if quote != nil && !quote.Expired(c.now()) {
		return quote, nil
	}

	quote, err := c.refetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuoteUnavailable, err)
	}
	return quote, nil
}

// Current returns the stored quote without fetching, or nil. Display-only;
// transacting callers must use Get.
func (c *Cache) Current() *models.FeeQuote {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.quote
}

// TimeLeft returns the countdown for display. Zero with no live quote means
// "quote unavailable", not an error.
func (c *Cache) TimeLeft() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.quote == nil {
		return 0
	}
	return c.quote.TimeLeft(c.now())
}

func (c *Cache) refetch(ctx context.Context) (*models.FeeQuote, error) {
	quote, err := c.pricing.GetFeeQuote(ctx)
	if err != nil {
		return nil, err
	}
	if quote.Expired(c.now()) {
		return nil, fmt.Errorf("pricing returned an already-expired quote (expiry %d)", quote.Expiry)
	}

	c.mu.Lock()
	c.quote = quote
	c.mu.Unlock()

	zap.L().Debug("Fee quote refreshed",
		zap.String("amount_eth", quote.AmountEthPerCredit.String()),
		zap.Int64("expiry", quote.Expiry))

	if c.sink != nil {
		c.sink.Publish(notify.Notification{Category: notify.CategoryQuote, Quote: quote})
	}
	return quote, nil
}

// Package notify is the single sink that both pull-based sources (ledger and
// quote refreshes) and the push-based live bridge feed. Consumers drain one
// channel regardless of where a notification originated.
package notify

import (
	"sync"
	"time"

	"veraguard-go/internal/models"
)

// Category groups notifications by origin.
type Category string

const (
	CategoryBalance Category = "balance"
	CategoryQuote   Category = "quote"
	CategoryLive    Category = "live"
)

// Notification is one item delivered to the sink. Exactly one of the payload
// pointers is set, matching the category.
type Notification struct {
	Category Category
	Balance  *models.CreditBalance
	Quote    *models.FeeQuote
	Event    *models.LiveEvent
	At       time.Time
}

// Sink accepts notifications without blocking the publisher.
type Sink interface {
	Publish(Notification)
}

// Hub is a bounded, drop-oldest Sink. Publishing never blocks: when the
// buffer is full the oldest pending notification is discarded.
type Hub struct {
	mu     sync.Mutex
	ch     chan Notification
	closed bool
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 32
	}
	return &Hub{ch: make(chan Notification, buffer)}
}

// Publish delivers n to the hub, discarding the oldest pending notification
// if the buffer is full.
func (h *Hub) Publish(n Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	if n.At.IsZero() {
		n.At = time.Now()
	}
	for {
		select {
		case h.ch <- n:
			return
		default:
			select {
			case <-h.ch:
			default:
			}
		}
	}
}

// Notifications is the consumer side of the hub.
func (h *Hub) Notifications() <-chan Notification {
	return h.ch
}

// Close stops the hub. Publishes after Close are dropped.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.closed {
		h.closed = true
		close(h.ch)
	}
}

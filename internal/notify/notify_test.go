package notify

import (
	"testing"

	"veraguard-go/internal/models"
)

func TestPublish_NeverBlocksWhenFull(t *testing.T) {
	hub := NewHub(2)

	for i := 0; i < 10; i++ {
		hub.Publish(Notification{Category: CategoryQuote})
	}
	// Reaching here at all is the assertion; drain what survived.
	drained := 0
	for {
		select {
		case <-hub.Notifications():
			drained++
		default:
			if drained != 2 {
				t.Errorf("Expected 2 buffered notifications, got %d", drained)
			}
			return
		}
	}
}

func TestPublish_DropsOldestFirst(t *testing.T) {
	hub := NewHub(1)

	hub.Publish(Notification{Category: CategoryBalance, Balance: &models.CreditBalance{Credits: 1}})
	hub.Publish(Notification{Category: CategoryBalance, Balance: &models.CreditBalance{Credits: 2}})

	n := <-hub.Notifications()
	if n.Balance.Credits != 2 {
		t.Errorf("Expected the newest notification to survive, got credits=%d", n.Balance.Credits)
	}
}

func TestPublish_StampsTime(t *testing.T) {
	hub := NewHub(1)
	hub.Publish(Notification{Category: CategoryLive})

	n := <-hub.Notifications()
	if n.At.IsZero() {
		t.Error("Expected a publish timestamp")
	}
}

func TestClose_DropsSubsequentPublishes(t *testing.T) {
	hub := NewHub(2)
	hub.Close()
	hub.Publish(Notification{Category: CategoryQuote})

	if _, ok := <-hub.Notifications(); ok {
		t.Error("Expected the channel to be closed and empty")
	}
}

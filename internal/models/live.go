package models

import "time"

// EventTag identifies the category of a server push event. The bridge keeps
// at most one visible event per tag.
type EventTag string

const (
	EventContractDetected   EventTag = "contract_detected"
	EventIntelligenceUpdate EventTag = "intelligence_update"
	EventBrainDiscovery     EventTag = "brain_discovery"
	EventSpoofAlert         EventTag = "spoof_alert"
)

// LiveEvent is one ephemeral push notification. Which payload fields are set
// depends on the tag.
type LiveEvent struct {
	Tag        EventTag  `json:"event"`
	Address    string    `json:"address,omitempty"`
	Heuristic  string    `json:"heuristic,omitempty"`
	Message    string    `json:"message,omitempty"`
	ReceivedAt time.Time `json:"-"`
}

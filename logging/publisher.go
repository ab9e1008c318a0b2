// Package logging carries the structured event stream the netcode emits:
// frame drops, scene lifecycle, identity churn, connection churn. Events
// flow through a buffered Router into one or more sinks; publishing never
// blocks the tick.
package logging

import (
	"context"
	"time"
)

type EventType string

type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarn
	SeverityError
)

// PeerKind classifies the subject of an event.
type PeerKind string

const (
	PeerKindUnknown    PeerKind = "unknown"
	PeerKindConnection PeerKind = "connection"
	PeerKindPlayer     PeerKind = "player"
	PeerKindScene      PeerKind = "scene"
	PeerKindIdentity   PeerKind = "identity"
	PeerKindSystem     PeerKind = "system"
)

// PeerRef names the subject of an event.
type PeerRef struct {
	ID   string   `json:"id"`
	Kind PeerKind `json:"kind"`
}

// Event is one structured record in the netcode event stream.
type Event struct {
	Type     EventType      `json:"type"`
	Tick     uint64         `json:"tick"`
	Time     time.Time      `json:"time"`
	Subject  PeerRef        `json:"subject"`
	Severity Severity       `json:"severity"`
	Category string         `json:"category,omitempty"`
	Payload  any            `json:"payload,omitempty"`
	Extra    map[string]any `json:"extra,omitempty"`
}

const (
	CategoryNetwork   = "network"
	CategoryHierarchy = "hierarchy"
	CategorySystem    = "system"
)

type Publisher interface {
	Publish(ctx context.Context, event Event)
}

func cloneForFields(event Event) Event {
	cloned := event
	if event.Extra != nil {
		copied := make(map[string]any, len(event.Extra))
		for k, v := range event.Extra {
			copied[k] = v
		}
		cloned.Extra = copied
	}
	return cloned
}

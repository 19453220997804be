// Package events publishes leave lifecycle notifications.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/leave-approval-api/internal/models"
)

// Type names a lifecycle transition.
type Type string

const (
	TypeSubmitted Type = "submitted"
	TypeApproved  Type = "approved"
	TypeCompleted Type = "completed"
	TypeRejected  Type = "rejected"
)

// LeaveEvent is the payload published for every transition.
type LeaveEvent struct {
	EventID    string               `json:"event_id"`
	EventType  Type                 `json:"event_type"`
	ActorID    string               `json:"actor_id,omitempty"`
	OccurredAt time.Time            `json:"occurred_at"`
	Request    *models.LeaveRequest `json:"request"`
}

// TypeFor maps a request status to the event emitted after an action produced it.
func TypeFor(status models.RequestStatus) Type {
	switch status {
	case models.RequestStatusCompleted:
		return TypeCompleted
	case models.RequestStatusRejected:
		return TypeRejected
	case models.RequestStatusApproved:
		return TypeApproved
	default:
		return TypeSubmitted
	}
}

// NewLeaveEvent snapshots req into an event.
func NewLeaveEvent(t Type, actorID string, req *models.LeaveRequest) LeaveEvent {
	return LeaveEvent{
		EventID:    uuid.NewString(),
		EventType:  t,
		ActorID:    actorID,
		OccurredAt: time.Now().UTC(),
		Request:    req.Clone(),
	}
}

// Publisher delivers events to a broker.
type Publisher interface {
	Publish(ctx context.Context, event LeaveEvent) error
	Close()
}

// NopPublisher discards events. It is used when no broker is configured.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, LeaveEvent) error { return nil }

// Close implements Publisher.
func (NopPublisher) Close() {}

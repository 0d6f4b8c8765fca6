package dto

import (
	"time"

	"github.com/uthutho/admin-api/internal/models"
)

// ResolveRequest carries the reviewer decision for a pending request.
type ResolveRequest struct {
	Decision string `json:"decision"`
}

// ResolutionResult is returned for every successful resolution. Message is
// suitable for direct display to the reviewer.
type ResolutionResult struct {
	RequestID string             `json:"requestId"`
	Kind      models.RequestKind `json:"kind"`
	Decision  models.Decision    `json:"decision"`
	Message   string             `json:"message"`
	// PointsAwarded is only meaningful for approved price changes.
	PointsAwarded bool   `json:"pointsAwarded"`
	CreatedID     string `json:"createdId,omitempty"`
}

// PendingRequests groups the pending listing by request kind.
type PendingRequests struct {
	PriceChanges []models.PriceChangeRequest `json:"priceChanges"`
	Hubs         []models.HubRequest         `json:"hubs"`
	Stops        []models.StopRequest        `json:"stops"`
}

// Total returns the number of pending requests across kinds.
func (p PendingRequests) Total() int {
	return len(p.PriceChanges) + len(p.Hubs) + len(p.Stops)
}

// ResolutionEvent is published after a request leaves the pending set.
type ResolutionEvent struct {
	RequestID     string             `json:"requestId"`
	Kind          models.RequestKind `json:"kind"`
	Decision      models.Decision    `json:"decision"`
	RequesterID   string             `json:"requesterId"`
	ResolvedBy    string             `json:"resolvedBy,omitempty"`
	PointsAwarded bool               `json:"pointsAwarded"`
	CreatedID     string             `json:"createdId,omitempty"`
	ResolvedAt    time.Time          `json:"resolvedAt"`
}

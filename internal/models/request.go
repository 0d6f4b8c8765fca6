package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RequestStatus is the stored status of a user submitted request.
// Resolved requests are deleted, so only pending rows are ever read back.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
)

// Decision is the reviewer's verdict on a pending request.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// ParseDecision normalises raw input into a Decision.
func ParseDecision(raw string) (Decision, error) {
	switch d := Decision(strings.ToLower(strings.TrimSpace(raw))); d {
	case DecisionApprove, DecisionReject:
		return d, nil
	default:
		return "", fmt.Errorf("unsupported decision %q", raw)
	}
}

// Valid reports whether d is one of the two terminal decisions.
func (d Decision) Valid() bool {
	return d == DecisionApprove || d == DecisionReject
}

// RequestKind tags the variant of a pending request.
type RequestKind string

const (
	RequestKindPriceChange RequestKind = "price-change"
	RequestKindHub         RequestKind = "hub"
	RequestKindStop        RequestKind = "stop"
)

// ParseRequestKind maps the URL form of a kind to RequestKind.
func ParseRequestKind(raw string) (RequestKind, error) {
	switch k := RequestKind(strings.ToLower(strings.TrimSpace(raw))); k {
	case RequestKindPriceChange, RequestKindHub, RequestKindStop:
		return k, nil
	case "price_change", "price":
		return RequestKindPriceChange, nil
	default:
		return "", fmt.Errorf("unsupported request kind %q", raw)
	}
}

// Table returns the table backing requests of kind k.
func (k RequestKind) Table() Table {
	switch k {
	case RequestKindPriceChange:
		return TablePriceChangeRequests
	case RequestKindHub:
		return TableHubRequests
	case RequestKindStop:
		return TableStopRequests
	}
	return ""
}

// PendingRequest is implemented by the three request variants only.
type PendingRequest interface {
	RequestID() string
	Kind() RequestKind
	Requester() string
	State() RequestStatus
	pendingRequest()
}

// PriceChangeRequest proposes a new fare for a route.
type PriceChangeRequest struct {
	ID           string          `db:"id" json:"id" validate:"required"`
	UserID       string          `db:"user_id" json:"userId" validate:"required"`
	RouteID      string          `db:"route_id" json:"routeId" validate:"required"`
	CurrentPrice decimal.Decimal `db:"current_price" json:"currentPrice"`
	NewPrice     decimal.Decimal `db:"new_price" json:"newPrice" validate:"gt=0"`
	Status       RequestStatus   `db:"status" json:"status"`
	CreatedAt    time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updatedAt"`
}

func (r *PriceChangeRequest) RequestID() string    { return r.ID }
func (r *PriceChangeRequest) Kind() RequestKind    { return RequestKindPriceChange }
func (r *PriceChangeRequest) Requester() string    { return r.UserID }
func (r *PriceChangeRequest) State() RequestStatus { return r.Status }
func (r *PriceChangeRequest) pendingRequest()      {}

// HubRequest proposes a new hub.
type HubRequest struct {
	ID            string        `db:"id" json:"id" validate:"required"`
	UserID        string        `db:"user_id" json:"userId" validate:"required"`
	Name          string        `db:"name" json:"name" validate:"required"`
	Address       string        `db:"address" json:"address" validate:"required"`
	TransportType string        `db:"transport_type" json:"transportType" validate:"required"`
	Description   *string       `db:"description" json:"description,omitempty"`
	Latitude      float64       `db:"latitude" json:"latitude" validate:"min=-90,max=90"`
	Longitude     float64       `db:"longitude" json:"longitude" validate:"min=-180,max=180"`
	Status        RequestStatus `db:"status" json:"status"`
	CreatedAt     time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updatedAt"`
}

func (r *HubRequest) RequestID() string    { return r.ID }
func (r *HubRequest) Kind() RequestKind    { return RequestKindHub }
func (r *HubRequest) Requester() string    { return r.UserID }
func (r *HubRequest) State() RequestStatus { return r.Status }
func (r *HubRequest) pendingRequest()      {}

// StopRequest proposes a new stop on an existing route.
type StopRequest struct {
	ID          string              `db:"id" json:"id" validate:"required"`
	UserID      string              `db:"user_id" json:"userId" validate:"required"`
	RouteID     string              `db:"route_id" json:"routeId" validate:"required"`
	Name        string              `db:"name" json:"name" validate:"required"`
	Latitude    float64             `db:"latitude" json:"latitude" validate:"min=-90,max=90"`
	Longitude   float64             `db:"longitude" json:"longitude" validate:"min=-180,max=180"`
	Cost        decimal.NullDecimal `db:"cost" json:"cost"`
	Description *string             `db:"description" json:"description,omitempty"`
	Status      RequestStatus       `db:"status" json:"status"`
	CreatedAt   time.Time           `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time           `db:"updated_at" json:"updatedAt"`
}

func (r *StopRequest) RequestID() string    { return r.ID }
func (r *StopRequest) Kind() RequestKind    { return RequestKindStop }
func (r *StopRequest) Requester() string    { return r.UserID }
func (r *StopRequest) State() RequestStatus { return r.Status }
func (r *StopRequest) pendingRequest()      {}

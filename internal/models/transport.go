package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Route is a priced connection between two points, optionally anchored at a hub.
type Route struct {
	ID            string          `db:"id" json:"id"`
	Name          string          `db:"name" json:"name"`
	StartPoint    string          `db:"start_point" json:"startPoint"`
	EndPoint      string          `db:"end_point" json:"endPoint"`
	TransportType string          `db:"transport_type" json:"transportType"`
	Cost          decimal.Decimal `db:"cost" json:"cost"`
	HubID         *string         `db:"hub_id" json:"hubId,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updatedAt"`
}

// Hub is a transport interchange (taxi rank, bus terminus, station).
type Hub struct {
	ID            string    `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	Address       string    `db:"address" json:"address"`
	TransportType string    `db:"transport_type" json:"transportType"`
	Description   *string   `db:"description" json:"description,omitempty"`
	Latitude      float64   `db:"latitude" json:"latitude"`
	Longitude     float64   `db:"longitude" json:"longitude"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `db:"updated_at" json:"updatedAt"`
}

// Stop is a boarding point along a route.
type Stop struct {
	ID          string              `db:"id" json:"id"`
	RouteID     *string             `db:"route_id" json:"routeId,omitempty"`
	Name        string              `db:"name" json:"name"`
	Latitude    float64             `db:"latitude" json:"latitude"`
	Longitude   float64             `db:"longitude" json:"longitude"`
	Cost        decimal.NullDecimal `db:"cost" json:"cost"`
	Description *string             `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time           `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time           `db:"updated_at" json:"updatedAt"`
}

// RouteStop orders a stop within a route.
type RouteStop struct {
	ID          string `db:"id" json:"id"`
	RouteID     string `db:"route_id" json:"routeId"`
	StopID      string `db:"stop_id" json:"stopId"`
	OrderNumber int    `db:"order_number" json:"orderNumber"`
}

// Profile holds the public profile of an app user, including loyalty points.
type Profile struct {
	ID        string    `db:"id" json:"id"`
	FirstName *string   `db:"first_name" json:"firstName,omitempty"`
	LastName  *string   `db:"last_name" json:"lastName,omitempty"`
	Points    int       `db:"points" json:"points"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

package models

import "time"

type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Stop is one endpoint of a pickup request (origin or destination).
type Stop struct {
	Address  string `json:"address"`
	Coords   Coord  `json:"coords"`
	Time     string `json:"time"`
	Distance string `json:"distance"`
}

type Item struct {
	Description string `json:"description"`
	Type        string `json:"type"`
	NeedsHelp   bool   `json:"needs_help"`
}

type Customer struct {
	Name   string  `json:"name"`
	Rating float64 `json:"rating"` // 0..5
	Photo  string  `json:"photo"`
}

// PickupRequest is a candidate job offered to a driver. IDs are stable
// across polls; expiry is server-owned and advisory on the client side.
type PickupRequest struct {
	ID        string    `json:"id"`
	Pickup    Stop      `json:"pickup"`
	Dropoff   Stop      `json:"dropoff"`
	Price     string    `json:"price"`
	Item      Item      `json:"item"`
	Customer  Customer  `json:"customer"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// DriverSession tracks availability state for one driver. SessionID is
// non-empty exactly while Online is true; going offline clears it.
type DriverSession struct {
	DriverID        string    `json:"driver_id"`
	SessionID       string    `json:"session_id,omitempty"`
	Online          bool      `json:"online"`
	LastLocation    *Coord    `json:"last_location,omitempty"`
	LastHeartbeatAt time.Time `json:"last_heartbeat_at,omitempty"`
}

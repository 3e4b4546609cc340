package model

import "time"

// Venue is a place events are held at. Listed publicly, managed by admins.
type Venue struct {
	ID        uint64    // venues.id
	Name      string    // venues.name
	Location  string    // venues.location
	Capacity  *uint32   // venues.capacity (nullable)
	CreatedAt time.Time // venues.created_at
	UpdatedAt time.Time // venues.updated_at
}

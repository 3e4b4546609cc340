package model

import "time"

// Event is a bookable event in the catalog. Rows are created and
// maintained by administrators; the booking flow only ever reads them.
//
// TicketPriceCents is the unit price of one ticket in cents. Tickets
// copy this value at booking time, so editing an event's price never
// changes the total of an already created ticket.
type Event struct {
	ID               uint64    // events.id
	Name             string    // events.name
	Description      string    // events.description
	EventDate        time.Time // events.event_date (UTC)
	Venue            string    // events.venue
	Location         string    // events.location
	Artist           string    // events.artist
	Image            string    // events.image
	Category         string    // events.category
	TicketPriceCents uint64    // events.ticket_price_cents
	CreatedAt        time.Time // events.created_at
	UpdatedAt        time.Time // events.updated_at
}

// This file defines handlers for the public browsing API: the event
// catalog and the venue listing. These routes require no authentication
// and are the ones fronted by the response cache.
package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eventbooker/eventbooker/internal/model"
	"github.com/eventbooker/eventbooker/internal/repository"
)

// CatalogHandler aggregates the repositories needed for unauthenticated
// browsing of events and venues.
type CatalogHandler struct {
	Events *repository.EventRepo
	Venues *repository.VenueRepo
}

// NewCatalogHandler constructs a CatalogHandler.
func NewCatalogHandler(events *repository.EventRepo, venues *repository.VenueRepo) *CatalogHandler {
	if events == nil || venues == nil {
		panic("nil repository passed to NewCatalogHandler")
	}
	return &CatalogHandler{Events: events, Venues: venues}
}

type eventResp struct {
	EventID          uint64 `json:"eventId"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	EventDate        string `json:"eventDate"`
	Venue            string `json:"venue"`
	Location         string `json:"location"`
	Artist           string `json:"artist"`
	Image            string `json:"image"`
	Category         string `json:"category"`
	TicketPriceCents uint64 `json:"ticketPriceCents"`
}

func toEventResp(ev model.Event) eventResp {
	return eventResp{
		EventID:          ev.ID,
		Name:             ev.Name,
		Description:      ev.Description,
		EventDate:        ev.EventDate.UTC().Format(time.RFC3339),
		Venue:            ev.Venue,
		Location:         ev.Location,
		Artist:           ev.Artist,
		Image:            ev.Image,
		Category:         ev.Category,
		TicketPriceCents: ev.TicketPriceCents,
	}
}

// ListEvents handles GET /api/events. Events come back ordered by date,
// soonest first. Optional ?location= and ?category= query parameters
// narrow the listing for the search filters in the UI.
func (h *CatalogHandler) ListEvents(c echo.Context) error {
	events, err := h.Events.ListAll(c.Request().Context(), c.QueryParam("location"), c.QueryParam("category"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Error fetching events"})
	}
	out := make([]eventResp, 0, len(events))
	for _, ev := range events {
		out = append(out, toEventResp(ev))
	}
	return c.JSON(http.StatusOK, out)
}

// GetEvent handles GET /api/events/:id.
func (h *CatalogHandler) GetEvent(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid event id"})
	}
	ev, err := h.Events.GetByID(c.Request().Context(), id)
	if err != nil {
		if err == repository.ErrEventNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "Event not found."})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Error fetching event"})
	}
	return c.JSON(http.StatusOK, toEventResp(ev))
}

type venueResp struct {
	VenueID  uint64  `json:"venueId"`
	Name     string  `json:"name"`
	Location string  `json:"location"`
	Capacity *uint32 `json:"capacity,omitempty"`
}

// ListVenues handles GET /api/venues.
func (h *CatalogHandler) ListVenues(c echo.Context) error {
	venues, err := h.Venues.ListAll(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Failed to fetch venues."})
	}
	out := make([]venueResp, 0, len(venues))
	for _, v := range venues {
		out = append(out, venueResp{VenueID: v.ID, Name: v.Name, Location: v.Location, Capacity: v.Capacity})
	}
	return c.JSON(http.StatusOK, out)
}

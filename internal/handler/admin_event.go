package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eventbooker/eventbooker/internal/model"
	"github.com/eventbooker/eventbooker/internal/repository"
)

// AdminHandler implements catalog administration. All routes are behind
// JWT auth with the ADMIN role; handlers assume the middleware already
// ran.
type AdminHandler struct {
	Events *repository.EventRepo
	Venues *repository.VenueRepo
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(events *repository.EventRepo, venues *repository.VenueRepo) *AdminHandler {
	if events == nil || venues == nil {
		panic("nil repository passed to NewAdminHandler")
	}
	return &AdminHandler{Events: events, Venues: venues}
}

// parseEventDate accepts either a full "2006-01-02 15:04:05" timestamp
// or a bare date, both UTC.
func parseEventDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation("2006-01-02 15:04:05", s, time.UTC); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02", s, time.UTC)
}

type createEventReq struct {
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

// CreateEvent handles POST /api/admin/events.
func (h *AdminHandler) CreateEvent(c echo.Context) error {
	var req createEventReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.Name == "" || req.EventDate == "" || req.Venue == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name, eventDate and venue are required"})
	}
	date, err := parseEventDate(req.EventDate)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "eventDate must be YYYY-MM-DD or YYYY-MM-DD HH:MM:SS"})
	}

	ev := &model.Event{
		Name:             req.Name,
		Description:      req.Description,
		EventDate:        date,
		Venue:            req.Venue,
		Location:         req.Location,
		Artist:           req.Artist,
		Image:            req.Image,
		Category:         req.Category,
		TicketPriceCents: req.TicketPriceCents,
	}
	if err := h.Events.Create(c.Request().Context(), ev); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create event"})
	}
	return c.JSON(http.StatusCreated, toEventResp(*ev))
}

type updateEventReq struct {
	Name             *string `json:"name"`
	Description      *string `json:"description"`
	EventDate        *string `json:"eventDate"`
	Venue            *string `json:"venue"`
	Location         *string `json:"location"`
	Artist           *string `json:"artist"`
	Image            *string `json:"image"`
	Category         *string `json:"category"`
	TicketPriceCents *uint64 `json:"ticketPriceCents"`
}

// UpdateEvent handles PUT /api/admin/events/:id. Only the provided
// fields change. A price edit affects future bookings only; existing
// tickets keep the total copied when they were created.
func (h *AdminHandler) UpdateEvent(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	var req updateEventReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	u := repository.EventUpdate{
		Name:             req.Name,
		Description:      req.Description,
		Venue:            req.Venue,
		Location:         req.Location,
		Artist:           req.Artist,
		Image:            req.Image,
		Category:         req.Category,
		TicketPriceCents: req.TicketPriceCents,
	}
	if req.EventDate != nil {
		date, err := parseEventDate(*req.EventDate)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "eventDate must be YYYY-MM-DD or YYYY-MM-DD HH:MM:SS"})
		}
		s := date.Format("2006-01-02 15:04:05")
		u.EventDate = &s
	}

	switch err := h.Events.Update(c.Request().Context(), id, u); err {
	case nil:
		return c.JSON(http.StatusOK, echo.Map{"updated": true})
	case repository.ErrEventNotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
	case repository.ErrNoChange:
		return c.JSON(http.StatusOK, echo.Map{"updated": false})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update event"})
	}
}

// DeleteEvent handles DELETE /api/admin/events/:id. Events that already
// have tickets are protected by the foreign key and reported as a
// conflict.
func (h *AdminHandler) DeleteEvent(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	switch err := h.Events.Delete(c.Request().Context(), id); {
	case err == nil:
		return c.NoContent(http.StatusNoContent)
	case err == repository.ErrEventNotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
	case strings.Contains(strings.ToLower(err.Error()), "1451"):
		// MySQL 1451: row is referenced by event_tickets
		return c.JSON(http.StatusConflict, echo.Map{"error": "event has tickets"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete event"})
	}
}

// seedCatalog is the starter catalog loaded by SeedEvents. Prices are
// cents.
var seedCatalog = []model.Event{
	{
		Name:             "Nairobi Jazz Festival",
		EventDate:        time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC),
		Location:         "nairobi",
		Venue:            "KICC Grounds",
		Artist:           "Jazz Collective",
		TicketPriceCents: 3500,
		Image:            "/images/jazz-eventbooker.jpg",
		Category:         "music",
	},
	{
		Name:             "Tech Expo 2025",
		EventDate:        time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC),
		Location:         "nairobi",
		Venue:            "Sarit Centre Expo Hall",
		Artist:           "Tech Talks KE",
		TicketPriceCents: 1000,
		Image:            "/images/tech-expo.jpg",
		Category:         "conference",
	},
	{
		Name:             "Summertides",
		EventDate:        time.Date(2025, 7, 12, 0, 0, 0, 0, time.UTC),
		Location:         "mombasa",
		Venue:            "Diani",
		Artist:           "DJ Brit",
		TicketPriceCents: 5000,
		Image:            "/images/summertides.jpg",
		Category:         "music",
	},
	{
		Name:             "Nairobi Street Food Festival",
		EventDate:        time.Date(2025, 6, 7, 0, 0, 0, 0, time.UTC),
		Location:         "nairobi",
		Venue:            "Jamhuri Show Ground, Main Arena",
		Artist:           "Mutoriah",
		TicketPriceCents: 1500,
		Image:            "/images/NFF.jpg",
		Category:         "art",
	},
}

// SeedEvents handles POST /api/admin/events/seed. It inserts the starter
// catalog and returns the created events. Intended for fresh
// deployments; calling it twice duplicates the catalog, so don't.
func (h *AdminHandler) SeedEvents(c echo.Context) error {
	ctx := c.Request().Context()
	out := make([]eventResp, 0, len(seedCatalog))
	for _, ev := range seedCatalog {
		ev := ev
		if err := h.Events.Create(ctx, &ev); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to seed events"})
		}
		out = append(out, toEventResp(ev))
	}
	return c.JSON(http.StatusCreated, echo.Map{"inserted": out})
}

type createVenueReq struct {
	Name     string  `json:"name"`
	Location string  `json:"location"`
	Capacity *uint32 `json:"capacity"`
}

// CreateVenue handles POST /api/admin/venues.
func (h *AdminHandler) CreateVenue(c echo.Context) error {
	var req createVenueReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}
	v := &model.Venue{Name: req.Name, Location: req.Location, Capacity: req.Capacity}
	if err := h.Venues.Create(c.Request().Context(), v); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create venue"})
	}
	return c.JSON(http.StatusCreated, venueResp{VenueID: v.ID, Name: v.Name, Location: v.Location, Capacity: v.Capacity})
}

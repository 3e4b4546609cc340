// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/eventbooker/eventbooker/internal/handler"
	"github.com/eventbooker/eventbooker/internal/middleware"
)

// RegisterRoutes registers routes that need no dependencies. Currently
// that is only the health check used by load balancers and monitoring.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterCatalog registers the unauthenticated browse endpoints for
// events and venues. These are plain read listings; the response cache
// middleware (when Redis is configured) sits in front of them.
func RegisterCatalog(e *echo.Echo, h *handler.CatalogHandler, mw ...echo.MiddlewareFunc) {
	e.GET("/api/events", h.ListEvents, mw...)
	e.GET("/api/events/:id", h.GetEvent, mw...)
	e.GET("/api/venues", h.ListVenues, mw...)
}

// RegisterBookings registers the booking flow: creation (which also
// initiates the STK push), the listing, the provider callback and the
// status query proxy. The callback route must stay reachable without
// authentication; the payment provider is the caller.
func RegisterBookings(e *echo.Echo, b *handler.BookingHandler, cb *handler.CallbackHandler) {
	g := e.Group("/api/bookings")
	g.POST("", b.CreateBooking)
	g.GET("", b.ListBookings)
	g.POST("/mpesa-callback", cb.HandleCallback)
	g.POST("/query-payment-status", b.QueryPaymentStatus)
}

// RegisterAuth registers admin authentication routes and the admin
// catalog management endpoints. Unauthenticated operations live under
// /api/auth; the management endpoints require a valid access token with
// the ADMIN role.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, ad *handler.AdminHandler, jwtSecret string) {
	g := e.Group("/api/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	// Logout accepts either a refresh token in the body or a bearer
	// token, so it is registered outside the JWT-protected group.
	g.POST("/logout", a.Logout)

	admin := e.Group("/api/admin")
	admin.Use(middleware.JWTAuth(jwtSecret))
	admin.Use(middleware.RequireRole("ADMIN"))
	admin.GET("/me", a.Me)
	admin.POST("/events", ad.CreateEvent)
	admin.PUT("/events/:id", ad.UpdateEvent)
	admin.DELETE("/events/:id", ad.DeleteEvent)
	admin.POST("/events/seed", ad.SeedEvents)
	admin.POST("/venues", ad.CreateVenue)
}

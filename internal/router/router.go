// Package router registers the HTTP routes of the booking API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/showtime-booking/internal/booking"
	"github.com/iliyamo/showtime-booking/internal/config"
	"github.com/iliyamo/showtime-booking/internal/handler"
	"github.com/iliyamo/showtime-booking/internal/middleware"
)

// Deps carries what the route groups need.  RDB may be nil, which turns
// rate limiting off.
type Deps struct {
	JWTSecret string
	RateLimit config.RateLimit
	RDB       redis.UniversalClient
	Log       *zap.Logger

	Health   *handler.Health
	Booking  *handler.BookingHandler
	Schedule *handler.ScheduleHandler
}

// RegisterRoutes mounts every route on e.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", d.Health.Handle)

	registerShowtimes(e, d)
	registerReservations(e, d)
	registerCatalog(e, d)
}

// registerShowtimes mounts seat availability (public) and holds (customers).
func registerShowtimes(e *echo.Echo, d Deps) {
	g := e.Group("/v1/showtimes")
	g.GET("/:id/seats", d.Booking.SeatMap)
	g.GET("/:id/seats/:seat_id", d.Booking.SeatStatus)

	g.POST("/:id/holds", d.Booking.HoldSeats,
		middleware.JWTAuth(d.JWTSecret),
		middleware.RequireRole(booking.RoleCustomer, booking.RoleAdmin),
		middleware.RateLimit(d.RateLimit, d.RDB, d.Log),
	)
}

// registerReservations mounts the owner-only reservation lifecycle.
func registerReservations(e *echo.Echo, d Deps) {
	g := e.Group("/v1/reservations",
		middleware.JWTAuth(d.JWTSecret),
		middleware.RequireRole(booking.RoleCustomer, booking.RoleAdmin),
	)
	g.GET("/:id", d.Booking.GetReservation)
	g.POST("/:id/confirm", d.Booking.Confirm)
	g.POST("/:id/cancel", d.Booking.Cancel)
	g.DELETE("/:id", d.Booking.Cancel)
}

// registerCatalog mounts catalog administration helpers.
func registerCatalog(e *echo.Echo, d Deps) {
	g := e.Group("/v1/catalog",
		middleware.JWTAuth(d.JWTSecret),
		middleware.RequireRole(booking.RoleAdmin),
	)
	g.POST("/showtimes/overlap-check", d.Schedule.CheckOverlap)
}

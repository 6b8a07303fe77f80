package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/showtime-booking/internal/booking"
)

// ScheduleHandler exposes the showtime overlap check to catalog admins.
type ScheduleHandler struct {
	validator *booking.OverlapValidator
	log       *zap.Logger
}

func NewScheduleHandler(validator *booking.OverlapValidator, log *zap.Logger) *ScheduleHandler {
	return &ScheduleHandler{validator: validator, log: log}
}

type overlapRequest struct {
	AuditoriumID      uint64    `json:"auditorium_id"`
	StartsAt          time.Time `json:"starts_at"`
	EndsAt            time.Time `json:"ends_at"`
	ExcludeShowtimeID *uint64   `json:"exclude_showtime_id"`
}

// CheckOverlap handles POST /v1/catalog/showtimes/overlap-check.  Times are
// RFC 3339.
func (h *ScheduleHandler) CheckOverlap(c echo.Context) error {
	var req overlapRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	err := h.validator.ValidateNoOverlap(c.Request().Context(), req.AuditoriumID, req.StartsAt, req.EndsAt, req.ExcludeShowtimeID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

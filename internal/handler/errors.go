package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/showtime-booking/internal/booking"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error       string   `json:"error"`
	Message     string   `json:"message,omitempty"`
	Unavailable []uint64 `json:"unavailable,omitempty"`
	Overlaps    []uint64 `json:"overlaps,omitempty"`
}

// writeError maps a booking error onto its HTTP status.  Errors outside the
// booking taxonomy are logged and reported as 500 without detail.
func writeError(c echo.Context, log *zap.Logger, err error) error {
	var (
		seatConflict *booking.SeatConflictError
		overlap      *booking.OverlapError
	)
	switch {
	case errors.As(err, &seatConflict):
		return c.JSON(http.StatusConflict, errorBody{Error: "seats_unavailable", Message: err.Error(), Unavailable: seatConflict.SeatIDs})
	case errors.As(err, &overlap):
		return c.JSON(http.StatusConflict, errorBody{Error: "showtime_overlap", Message: err.Error(), Overlaps: overlap.ShowtimeIDs})
	case errors.Is(err, booking.ErrConflict):
		return c.JSON(http.StatusConflict, errorBody{Error: "conflict", Message: err.Error()})
	case errors.Is(err, booking.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorBody{Error: "not_found", Message: err.Error()})
	case errors.Is(err, booking.ErrExpired):
		return c.JSON(http.StatusGone, errorBody{Error: "hold_expired", Message: err.Error()})
	case errors.Is(err, booking.ErrForbidden):
		return c.JSON(http.StatusForbidden, errorBody{Error: "forbidden", Message: err.Error()})
	case errors.Is(err, booking.ErrInvalidState):
		return c.JSON(http.StatusConflict, errorBody{Error: "invalid_state", Message: err.Error()})
	case errors.Is(err, booking.ErrValidation):
		return c.JSON(http.StatusBadRequest, errorBody{Error: "validation_failed", Message: err.Error()})
	}
	log.Error("request failed",
		zap.String("method", c.Request().Method), zap.String("route", c.Path()), zap.Error(err))
	return c.JSON(http.StatusInternalServerError, errorBody{Error: "internal_error"})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, errorBody{Error: "bad_request", Message: msg})
}

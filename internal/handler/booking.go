package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/showtime-booking/internal/booking"
	"github.com/iliyamo/showtime-booking/internal/middleware"
)

// BookingHandler serves seat holds, availability and the reservation
// lifecycle.  Identity comes from middleware.JWTAuth.
type BookingHandler struct {
	holds     *booking.HoldManager
	lifecycle *booking.Lifecycle
	status    *booking.StatusReader
	log       *zap.Logger
}

func NewBookingHandler(holds *booking.HoldManager, lifecycle *booking.Lifecycle, status *booking.StatusReader, log *zap.Logger) *BookingHandler {
	if holds == nil || lifecycle == nil || status == nil {
		panic("nil booking component passed to NewBookingHandler")
	}
	return &BookingHandler{holds: holds, lifecycle: lifecycle, status: status, log: log}
}

type holdRequest struct {
	SeatIDs []uint64 `json:"seat_ids"`
}

// HoldSeats handles POST /v1/showtimes/:id/holds.
func (h *BookingHandler) HoldSeats(c echo.Context) error {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errorBody{Error: "unauthorized"})
	}
	showtimeID, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid showtime id")
	}
	var req holdRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	res, err := h.holds.HoldSeats(c.Request().Context(), caller, showtimeID, req.SeatIDs)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// SeatStatus handles GET /v1/showtimes/:id/seats/:seat_id.
func (h *BookingHandler) SeatStatus(c echo.Context) error {
	showtimeID, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid showtime id")
	}
	seatID, err := pathID(c, "seat_id")
	if err != nil {
		return badRequest(c, "invalid seat id")
	}
	state, err := h.status.GetSeatStatus(c.Request().Context(), showtimeID, seatID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, booking.SeatStatus{SeatID: seatID, Status: state})
}

// SeatMap handles GET /v1/showtimes/:id/seats.
func (h *BookingHandler) SeatMap(c echo.Context) error {
	showtimeID, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid showtime id")
	}
	seats, err := h.status.SeatMap(c.Request().Context(), showtimeID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"showtime_id": showtimeID, "seats": seats})
}

// GetReservation handles GET /v1/reservations/:id.
func (h *BookingHandler) GetReservation(c echo.Context) error {
	return h.withReservation(c, func(caller booking.Caller, id uint64) (interface{}, error) {
		return h.lifecycle.Get(c.Request().Context(), caller, id)
	})
}

// Confirm handles POST /v1/reservations/:id/confirm.
func (h *BookingHandler) Confirm(c echo.Context) error {
	return h.withReservation(c, func(caller booking.Caller, id uint64) (interface{}, error) {
		return h.lifecycle.Confirm(c.Request().Context(), caller, id)
	})
}

// Cancel handles POST /v1/reservations/:id/cancel and DELETE /v1/reservations/:id.
func (h *BookingHandler) Cancel(c echo.Context) error {
	return h.withReservation(c, func(caller booking.Caller, id uint64) (interface{}, error) {
		return h.lifecycle.Cancel(c.Request().Context(), caller, id)
	})
}

func (h *BookingHandler) withReservation(c echo.Context, op func(booking.Caller, uint64) (interface{}, error)) error {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errorBody{Error: "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid reservation id")
	}
	out, err := op(caller, id)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, out)
}

func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, strconv.ErrSyntax
	}
	return id, nil
}

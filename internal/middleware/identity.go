package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/showtime-booking/internal/booking"
)

// callerKey is the echo context key JWTAuth stores the caller under.
const callerKey = "caller"

// CallerFrom returns the authenticated caller, if JWTAuth ran.
func CallerFrom(c echo.Context) (booking.Caller, bool) {
	caller, ok := c.Get(callerKey).(booking.Caller)
	return caller, ok && caller.ID != 0
}

// SetCaller stores caller on c.  Handlers under test use it to skip token
// parsing.
func SetCaller(c echo.Context, caller booking.Caller) {
	c.Set(callerKey, caller)
}

// userKey identifies the rate limited subject; "anon" without a caller.
func userKey(c echo.Context) string {
	if caller, ok := CallerFrom(c); ok {
		return strconv.FormatUint(caller.ID, 10)
	}
	return "anon"
}

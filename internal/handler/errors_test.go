package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iliyamo/showtime-booking/internal/booking"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
		logged bool
	}{
		{&booking.SeatConflictError{ShowtimeID: 1, SeatIDs: []uint64{4, 5}}, http.StatusConflict, "seats_unavailable", false},
		{&booking.OverlapError{AuditoriumID: 2, ShowtimeIDs: []uint64{8}}, http.StatusConflict, "showtime_overlap", false},
		{fmt.Errorf("%w: deadlock", booking.ErrConflict), http.StatusConflict, "conflict", false},
		{fmt.Errorf("%w: reservation 3", booking.ErrNotFound), http.StatusNotFound, "not_found", false},
		{booking.ErrExpired, http.StatusGone, "hold_expired", false},
		{booking.ErrForbidden, http.StatusForbidden, "forbidden", false},
		{booking.ErrInvalidState, http.StatusConflict, "invalid_state", false},
		{booking.ErrValidation, http.StatusBadRequest, "validation_failed", false},
		{errors.New("driver: bad connection"), http.StatusInternalServerError, "internal_error", true},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			core, logs := observer.New(zapcore.ErrorLevel)
			rec := httptest.NewRecorder()
			c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

			require.NoError(t, writeError(c, zap.New(core), tt.err))
			assert.Equal(t, tt.status, rec.Code)

			var body errorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.Error)
			assert.Equal(t, tt.logged, logs.Len() == 1)
			if tt.logged {
				assert.Empty(t, body.Message, "internal detail is not exposed")
			}
		})
	}
}

func TestWriteError_ListsUnavailableSeats(t *testing.T) {
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)
	require.NoError(t, writeError(c, zap.NewNop(), &booking.SeatConflictError{ShowtimeID: 1, SeatIDs: []uint64{4, 5}}))

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []uint64{4, 5}, body.Unavailable)
}

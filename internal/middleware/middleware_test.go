package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iliyamo/showtime-booking/internal/booking"
	"github.com/iliyamo/showtime-booking/internal/config"
)

const secret = "test-secret"

func sign(t *testing.T, method jwt.SigningMethod, key interface{}, sub, role string, exp time.Time) string {
	t.Helper()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func whoAmI(c echo.Context) error {
	caller, ok := CallerFrom(c)
	if !ok {
		return c.NoContent(http.StatusTeapot)
	}
	return c.JSON(http.StatusOK, caller)
}

func serve(e *echo.Echo, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth(t *testing.T) {
	e := echo.New()
	e.GET("/me", whoAmI, JWTAuth(secret))
	future := time.Now().Add(time.Hour)

	rec := serve(e, http.MethodGet, "/me", sign(t, jwt.SigningMethodHS256, []byte(secret), "42", "customer", future))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ID":42,"Role":"CUSTOMER"}`, rec.Body.String())

	tests := []struct {
		name  string
		token string
	}{
		{"missing", ""},
		{"wrong secret", sign(t, jwt.SigningMethodHS256, []byte("other"), "42", "CUSTOMER", future)},
		{"expired", sign(t, jwt.SigningMethodHS256, []byte(secret), "42", "CUSTOMER", time.Now().Add(-time.Minute))},
		{"wrong alg", sign(t, jwt.SigningMethodHS512, []byte(secret), "42", "CUSTOMER", future)},
		{"non numeric subject", sign(t, jwt.SigningMethodHS256, []byte(secret), "alice", "CUSTOMER", future)},
		{"unknown role", sign(t, jwt.SigningMethodHS256, []byte(secret), "42", "OWNER", future)},
		{"garbage", "not.a.token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(e, http.MethodGet, "/me", tt.token)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	e.GET("/admin", whoAmI, JWTAuth(secret), RequireRole(booking.RoleAdmin))
	future := time.Now().Add(time.Hour)

	rec := serve(e, http.MethodGet, "/admin", sign(t, jwt.SigningMethodHS256, []byte(secret), "1", "ADMIN", future))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(e, http.MethodGet, "/admin", sign(t, jwt.SigningMethodHS256, []byte(secret), "2", "CUSTOMER", future))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := config.RateLimit{Enabled: true, Capacity: 2, RefillTokens: 1, RefillInterval: time.Minute, TTL: 10 * time.Minute, KeyStrategy: "user_route", Prefix: "rl"}
	e := echo.New()
	e.GET("/v1/showtimes/:id/seats", func(c echo.Context) error { return c.NoContent(http.StatusOK) },
		func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				SetCaller(c, booking.Caller{ID: 9, Role: booking.RoleCustomer})
				return next(c)
			}
		},
		RateLimit(cfg, rdb, zap.NewNop()))

	for i := 0; i < 2; i++ {
		rec := serve(e, http.MethodGet, "/v1/showtimes/1/seats", "")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := serve(e, http.MethodGet, "/v1/showtimes/2/seats", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code, "the bucket is per route, not per path")
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.True(t, mr.Exists("rl:user:9:route:GET /v1/showtimes/:id/seats"))

	mr.Close()
	rec = serve(e, http.MethodGet, "/v1/showtimes/1/seats", "")
	assert.Equal(t, http.StatusOK, rec.Code, "fails open without redis")
}

func TestRateLimit_Disabled(t *testing.T) {
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) },
		RateLimit(config.RateLimit{Enabled: false}, nil, zap.NewNop()))
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/x", "").Code)
}

func TestRequestIDAndLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	e := echo.New()
	e.Use(RequestID(), RequestLogger(zap.New(core)))
	e.GET("/ok", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/missing", func(c echo.Context) error { return echo.ErrNotFound })

	rec := serve(e, http.MethodGet, "/ok", "")
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	req.Header.Set(echo.HeaderXRequestID, "abc-123")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "abc-123", rec.Header().Get(echo.HeaderXRequestID))

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "request completed", logs.All()[0].Message)
	warn := logs.All()[1]
	assert.Equal(t, zapcore.WarnLevel, warn.Level)
	assert.Equal(t, "abc-123", warn.ContextMap()["request_id"])
}

package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/showtime-booking/internal/booking"
)

// Claims are the access token claims issued by the identity service.  The
// subject is the numeric user id; role is CUSTOMER or ADMIN.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTAuth validates an HS256 Bearer access token and stores the resulting
// booking.Caller on the context.  Tokens are issued elsewhere; this service
// only verifies them.
func JWTAuth(secret string) echo.MiddlewareFunc {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	keyFunc := func(*jwt.Token) (interface{}, error) { return []byte(secret), nil }

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, "Bearer ") {
				return unauthorized(c, "missing bearer token")
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			var claims Claims
			tok, err := parser.ParseWithClaims(raw, &claims, keyFunc)
			if err != nil || !tok.Valid {
				return unauthorized(c, "invalid token")
			}
			caller, err := callerFromClaims(&claims)
			if err != nil {
				return unauthorized(c, err.Error())
			}
			SetCaller(c, caller)
			return next(c)
		}
	}
}

func callerFromClaims(claims *Claims) (booking.Caller, error) {
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return booking.Caller{}, fmt.Errorf("invalid subject %q", claims.Subject)
	}
	role := strings.ToUpper(claims.Role)
	if role != booking.RoleCustomer && role != booking.RoleAdmin {
		return booking.Caller{}, fmt.Errorf("unknown role %q", claims.Role)
	}
	return booking.Caller{ID: id, Role: role}, nil
}

func unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": msg})
}

package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Check probes one dependency.
type Check func(ctx context.Context) error

// Health reports 200 when every required check passes.  Optional checks
// (the hold index, the broker) only change the reported detail, since the
// service keeps booking without them.
type Health struct {
	required map[string]Check
	optional map[string]Check
}

func NewHealth() *Health {
	return &Health{required: map[string]Check{}, optional: map[string]Check{}}
}

// Require registers a dependency the service cannot run without.
func (h *Health) Require(name string, check Check) *Health {
	h.required[name] = check
	return h
}

// Optional registers a dependency whose outage degrades the service.
func (h *Health) Optional(name string, check Check) *Health {
	h.optional[name] = check
	return h
}

// Handle serves GET /healthz.
func (h *Health) Handle(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	state := "ok"
	deps := make(map[string]string, len(h.required)+len(h.optional))
	for name, check := range h.required {
		if err := check(ctx); err != nil {
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
			state = "down"
			continue
		}
		deps[name] = "ok"
	}
	for name, check := range h.optional {
		if err := check(ctx); err != nil {
			deps[name] = err.Error()
			if state == "ok" {
				state = "degraded"
			}
			continue
		}
		deps[name] = "ok"
	}
	return c.JSON(status, echo.Map{"status": state, "dependencies": deps})
}

package handler

import (
	"context"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-lms-api/internal/config"
	"github.com/noah-isme/gema-lms-api/internal/utils"
)

// DependencyCheck checks one backing service. A nil check marks the dependency as disabled.
type DependencyCheck func(ctx context.Context) error

// Dependency states reported by the health endpoint.
const (
	DependencyUp       = "up"
	DependencyDown     = "down"
	DependencyDisabled = "disabled"
)

const checkTimeout = 2 * time.Second

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status       string            `json:"status"`
	Timestamp    time.Time         `json:"timestamp"`
	Service      string            `json:"service"`
	Environment  string            `json:"environment"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// HealthCheck reports the state of every checked dependency. The database is
// required: when it is down the endpoint answers 503. Optional services such as
// the progress cache or the event bus only degrade the status.
func HealthCheck(cfg config.Config, checks map[string]DependencyCheck) fiber.Handler {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
		}

		status := fiber.StatusOK
		if len(names) > 0 {
			payload.Dependencies = make(map[string]string, len(names))
		}
		for _, name := range names {
			state := runCheck(c.UserContext(), checks[name])
			payload.Dependencies[name] = state
			if state != DependencyDown {
				continue
			}
			if name == "database" {
				payload.Status = "unavailable"
				status = fiber.StatusServiceUnavailable
			} else if payload.Status == "ok" {
				payload.Status = "degraded"
			}
		}

		if status != fiber.StatusOK {
			return c.Status(status).JSON(utils.APIResponse{Success: false, Data: payload, Message: "service unavailable"})
		}
		return utils.SendSuccess(c, "service healthy", payload)
	}
}

func runCheck(parent context.Context, check DependencyCheck) string {
	if check == nil {
		return DependencyDisabled
	}
	ctx, cancel := context.WithTimeout(parent, checkTimeout)
	defer cancel()
	if err := check(ctx); err != nil {
		return DependencyDown
	}
	return DependencyUp
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func roleApp(userID interface{}, role string, guard fiber.Handler) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if userID != nil {
			c.Locals("user_id", userID)
			c.Locals("user_role", role)
		}
		return c.Next()
	})
	app.Use(guard)
	app.Get("/templates", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestRequireRoleAdminSatisfiesInstructor(t *testing.T) {
	for _, role := range []string{"instructor", " ADMIN "} {
		app := roleApp(uint(1), role, RequireRole(AuthRoleInstructor))
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/templates", nil))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode, role)
	}
}

func TestRequireRoleRejectsStudentsAndAnonymous(t *testing.T) {
	app := roleApp(uint(2), "student", RequireRole(AuthRoleInstructor))
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/templates", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	app = roleApp(nil, "", RequireRole(AuthRoleInstructor))
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/templates", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRoleSatisfies(t *testing.T) {
	require.True(t, roleSatisfies(AuthRoleAdmin, AuthRoleInstructor))
	require.True(t, roleSatisfies(AuthRoleStudent, AuthRoleAny))
	require.False(t, roleSatisfies(AuthRoleAdmin, AuthRoleStudent))
	require.False(t, roleSatisfies(AuthRoleInstructor, AuthRoleAdmin))
}

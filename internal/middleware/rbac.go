package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-lms-api/internal/utils"
)

// RequireRole guards a whole route group. Anonymous callers get 401, callers whose
// role satisfies none of roles get 403. Admins satisfy the instructor role.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make([]string, 0, len(roles))
	for _, role := range roles {
		if normalized := strings.ToLower(strings.TrimSpace(role)); normalized != "" {
			allowed = append(allowed, normalized)
		}
	}

	return func(c *fiber.Ctx) error {
		if c.Locals("user_id") == nil {
			return utils.Fail(c, fiber.StatusUnauthorized, "authentication required", nil)
		}

		current := RoleFromLocals(c)
		for _, role := range allowed {
			if roleSatisfies(current, role) {
				return c.Next()
			}
		}
		return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", fiber.Map{"allowed_roles": allowed})
	}
}

// RoleFromLocals returns the lower-cased role the JWT middleware stored.
func RoleFromLocals(c *fiber.Ctx) string {
	return normalizeRoleValue(c.Locals("user_role"))
}

// roleSatisfies reports whether a caller holding current may act as required.
// Course authoring is shared by instructors and admins; learner routes are students only.
func roleSatisfies(current, required string) bool {
	switch required {
	case AuthRoleAny:
		return true
	case AuthRoleInstructor:
		return current == AuthRoleInstructor || current == AuthRoleAdmin
	default:
		return current == required
	}
}

func normalizeRoleValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.ToLower(strings.TrimSpace(v))
	case fmt.Stringer:
		return strings.ToLower(strings.TrimSpace(v.String()))
	default:
		return strings.ToLower(strings.TrimSpace(fmt.Sprintf("%v", value)))
	}
}

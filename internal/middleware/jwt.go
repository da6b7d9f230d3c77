package middleware

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/gema-lms-api/internal/utils"
)

// Roles the identity provider may put in a token.
var knownRoles = map[string]struct{}{
	AuthRoleStudent:    {},
	AuthRoleInstructor: {},
	AuthRoleAdmin:      {},
}

const tokenLeeway = 30 * time.Second

var (
	errMissingSubject = errors.New("token subject missing")
	errUnknownRole    = errors.New("token role not recognised")
)

// tokenIdentity is what the LMS needs from an access token.
type tokenIdentity struct {
	UserID uint
	Role   string
}

// JWTProtected validates HS256 bearer tokens issued by the identity provider.
// Tokens must expire and name a known role; the subject and role become the
// user_id and user_role locals.
func JWTProtected(secret string) fiber.Handler {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(tokenLeeway),
	)
	key := []byte(secret)

	return func(c *fiber.Ctx) error {
		raw, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return utils.Fail(c, fiber.StatusUnauthorized, "bearer token required", nil)
		}

		claims := jwt.MapClaims{}
		if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
			return key, nil
		}); err != nil {
			reason := "invalid token"
			if errors.Is(err, jwt.ErrTokenExpired) {
				reason = "token expired"
			}
			return utils.Fail(c, fiber.StatusUnauthorized, reason, nil)
		}

		identity, err := identityFromClaims(claims)
		if err != nil {
			return utils.Fail(c, fiber.StatusUnauthorized, "invalid token claims", fiber.Map{"reason": err.Error()})
		}

		c.Locals("user_id", identity.UserID)
		c.Locals("user_role", identity.Role)
		return c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func identityFromClaims(claims jwt.MapClaims) (tokenIdentity, error) {
	var identity tokenIdentity
	for _, key := range []string{"sub", "user_id"} {
		if id, err := parseSubject(claims[key]); err == nil {
			identity.UserID = id
			break
		}
	}
	if identity.UserID == 0 {
		return tokenIdentity{}, errMissingSubject
	}

	identity.Role = roleClaim(claims["role"])
	if identity.Role == "" {
		identity.Role = roleClaim(claims["roles"])
	}
	if _, ok := knownRoles[identity.Role]; !ok {
		return tokenIdentity{}, errUnknownRole
	}
	return identity, nil
}

func parseSubject(value interface{}) (uint, error) {
	switch v := value.(type) {
	case float64:
		if v <= 0 || v != float64(uint(v)) {
			return 0, fmt.Errorf("invalid subject %v", v)
		}
		return uint(v), nil
	case string:
		parsed, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, err
		}
		return uint(parsed), nil
	default:
		return 0, fmt.Errorf("unsupported subject type %T", value)
	}
}

// roleClaim accepts a single role or a list, taking the first non-blank entry.
func roleClaim(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.ToLower(strings.TrimSpace(v))
	case []interface{}:
		for _, item := range v {
			if role := roleClaim(item); role != "" {
				return role
			}
		}
	}
	return ""
}
